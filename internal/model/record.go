package model

import "time"

// Identifiers are the provider-assigned ids recovered for a sent message.
// Any of them may be empty; all empty is a degraded but valid result.
type Identifiers struct {
	ConversationID    string `json:"conversation_id"`
	InternetMessageID string `json:"internet_message_id"`
	EntryID           string `json:"entry_id"`
}

// Empty reports whether no identifier was recovered.
func (i Identifiers) Empty() bool {
	return i.ConversationID == "" && i.InternetMessageID == "" && i.EntryID == ""
}

// AuditRecord is the persisted proof that one item was dispatched. Records
// are written once and never updated.
type AuditRecord struct {
	// RecordID uniquely identifies this row.
	RecordID string `json:"record_id" db:"record_id"`

	// RunID groups all records appended by a single run.
	RunID string `json:"run_id" db:"run_id"`

	Position      int    `json:"position" db:"position"`
	ClientID      string `json:"client_id" db:"client_id"`
	ClientName    string `json:"client_name" db:"client_name"`
	Structure     string `json:"structure" db:"structure"`
	Asset         string `json:"asset" db:"asset"`
	AllocationPct string `json:"allocation_pct" db:"allocation_pct"`
	AdvisorCode   string `json:"advisor_code" db:"advisor_code"`
	LeaderCode    string `json:"leader_code" db:"leader_code"`

	AdvisorEmail string `json:"advisor_email" db:"advisor_email"`
	LeaderEmail  string `json:"leader_email" db:"leader_email"`

	Subject string `json:"subject" db:"subject"`
	Token   string `json:"token" db:"token"`

	// Status is the configured label for a sent item (e.g. "Enviado").
	Status string `json:"status" db:"status"`

	ConversationID    string `json:"conversation_id" db:"conversation_id"`
	InternetMessageID string `json:"internet_message_id" db:"internet_message_id"`
	EntryID           string `json:"entry_id" db:"entry_id"`

	// DisplayOnly is true when the message was left as a draft for review.
	DisplayOnly bool `json:"display_only" db:"display_only"`

	SentAt time.Time `json:"sent_at" db:"sent_at"`
}

// NewAuditRecord copies the item fields into a record. Identifiers,
// ids and timestamps are filled in by the caller.
func NewAuditRecord(item DispatchItem, advisor, leader Recipient) AuditRecord {
	return AuditRecord{
		Position:      item.Position,
		ClientID:      item.ClientID,
		ClientName:    item.ClientName,
		Structure:     item.Structure,
		Asset:         item.Asset,
		AllocationPct: item.AllocationPct,
		AdvisorCode:   item.AdvisorCode,
		LeaderCode:    item.LeaderCode,
		AdvisorEmail:  advisor.Email,
		LeaderEmail:   leader.Email,
	}
}

// WithIdentifiers returns a copy of r carrying ids.
func (r AuditRecord) WithIdentifiers(ids Identifiers) AuditRecord {
	r.ConversationID = ids.ConversationID
	r.InternetMessageID = ids.InternetMessageID
	r.EntryID = ids.EntryID
	return r
}

// RunSummary is the per-run tally kept alongside the records.
type RunSummary struct {
	RunID      string    `json:"run_id" db:"run_id"`
	StartedAt  time.Time `json:"started_at" db:"started_at"`
	FinishedAt time.Time `json:"finished_at" db:"finished_at"`
	DryRun     bool      `json:"dry_run" db:"dry_run"`
	Processed  int       `json:"processed" db:"processed"`
	Succeeded  int       `json:"succeeded" db:"succeeded"`
	Failed     int       `json:"failed" db:"failed"`
	Previewed  int       `json:"previewed" db:"previewed"`
}
