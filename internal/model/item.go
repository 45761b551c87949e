package model

import (
	"fmt"
	"strings"
)

// DispatchItem is one unit of audit-email work derived from a single row of
// the operations spreadsheet. All fields are normalized strings.
type DispatchItem struct {
	// Position is the spreadsheet row number (the header is row 1).
	Position int `json:"position"`

	ClientID      string `json:"client_id"`
	ClientName    string `json:"client_name"`
	Structure     string `json:"structure"`
	Asset         string `json:"asset"`
	AllocationPct string `json:"allocation_pct"`

	// AdvisorCode identifies the professional who ran the operation.
	AdvisorCode string `json:"advisor_code"`

	// LeaderCode identifies the professional copied on the email.
	LeaderCode string `json:"leader_code"`
}

// Validate reports the required fields that are empty. Allocation
// percentage is informational and never required.
func (d DispatchItem) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"client_id", d.ClientID},
		{"client_name", d.ClientName},
		{"structure", d.Structure},
		{"asset", d.Asset},
		{"advisor_code", d.AdvisorCode},
		{"leader_code", d.LeaderCode},
	}

	var missing []string
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	return &ItemValidationError{
		Position: d.Position,
		ClientID: d.ClientID,
		Missing:  missing,
		Reason:   "required fields missing",
	}
}

// Recipient is a professional resolved from the reference table.
type Recipient struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	LeaderCode string `json:"leader_code"`
}

// ItemValidationError marks a single item as unprocessable. It never aborts
// the run.
type ItemValidationError struct {
	Position int
	ClientID string
	Missing  []string
	Reason   string
}

func (e *ItemValidationError) Error() string {
	msg := fmt.Sprintf("row %d", e.Position)
	if e.ClientID != "" {
		msg += fmt.Sprintf(" (client %s)", e.ClientID)
	}
	msg += ": " + e.Reason
	if len(e.Missing) > 0 {
		msg += ": " + strings.Join(e.Missing, ", ")
	}
	return msg
}
