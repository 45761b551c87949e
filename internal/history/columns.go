package history

import (
	"strconv"
	"time"

	"github.com/nhle/audit-mailer/internal/model"
)

// sentAtLayout formats SentAt in the workbook.
const sentAtLayout = "2006-01-02 15:04:05"

// column maps one audit record field to its workbook header and sqlite
// column.
type column struct {
	header string
	name   string
	value  func(r model.AuditRecord) any
}

// columns is the canonical column set, in workbook order.
var columns = []column{
	{"Record ID", "record_id", func(r model.AuditRecord) any { return r.RecordID }},
	{"Run ID", "run_id", func(r model.AuditRecord) any { return r.RunID }},
	{"Linha", "position", func(r model.AuditRecord) any { return r.Position }},
	{"Código Cliente", "client_id", func(r model.AuditRecord) any { return r.ClientID }},
	{"Nome do Cliente", "client_name", func(r model.AuditRecord) any { return r.ClientName }},
	{"Estrutura", "structure", func(r model.AuditRecord) any { return r.Structure }},
	{"Ativo", "asset", func(r model.AuditRecord) any { return r.Asset }},
	{"% PL", "allocation_pct", func(r model.AuditRecord) any { return r.AllocationPct }},
	{"Assessor da Operação", "advisor_code", func(r model.AuditRecord) any { return r.AdvisorCode }},
	{"Assessor do Cliente", "leader_code", func(r model.AuditRecord) any { return r.LeaderCode }},
	{"E-mail Assessor", "advisor_email", func(r model.AuditRecord) any { return r.AdvisorEmail }},
	{"E-mail Líder", "leader_email", func(r model.AuditRecord) any { return r.LeaderEmail }},
	{"Assunto", "subject", func(r model.AuditRecord) any { return r.Subject }},
	{"Token", "token", func(r model.AuditRecord) any { return r.Token }},
	{"Status", "status", func(r model.AuditRecord) any { return r.Status }},
	{"ConversationID", "conversation_id", func(r model.AuditRecord) any { return r.ConversationID }},
	{"InternetMessageID", "internet_message_id", func(r model.AuditRecord) any { return r.InternetMessageID }},
	{"EntryID", "entry_id", func(r model.AuditRecord) any { return r.EntryID }},
	{"Somente Exibir", "display_only", func(r model.AuditRecord) any { return strconv.FormatBool(r.DisplayOnly) }},
	{"Data Envio", "sent_at", func(r model.AuditRecord) any { return formatSentAt(r.SentAt) }},
}

func formatSentAt(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(sentAtLayout)
}

// Headers returns the canonical workbook header row.
func Headers() []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.header
	}
	return out
}
