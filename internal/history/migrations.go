package history

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
// The audit table itself is named by configuration and created by
// ensureTable.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS dispatch_runs (
	run_id      TEXT PRIMARY KEY,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	dry_run     INTEGER NOT NULL DEFAULT 0,
	processed   INTEGER NOT NULL DEFAULT 0,
	succeeded   INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	previewed   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_dispatch_runs_started ON dispatch_runs(started_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}

// auditTableSQL creates the audit table; %s is the quoted table name and
// %s again the quoted index name.
const auditTableSQL = `
CREATE TABLE IF NOT EXISTS %s (
	seq                 INTEGER PRIMARY KEY AUTOINCREMENT,
	record_id           TEXT NOT NULL,
	run_id              TEXT NOT NULL,
	position            INTEGER NOT NULL DEFAULT 0,
	client_id           TEXT NOT NULL,
	client_name         TEXT NOT NULL DEFAULT '',
	structure           TEXT NOT NULL DEFAULT '',
	asset               TEXT NOT NULL DEFAULT '',
	allocation_pct      TEXT NOT NULL DEFAULT '',
	advisor_code        TEXT NOT NULL DEFAULT '',
	leader_code         TEXT NOT NULL DEFAULT '',
	advisor_email       TEXT NOT NULL DEFAULT '',
	leader_email        TEXT NOT NULL DEFAULT '',
	subject             TEXT NOT NULL DEFAULT '',
	token               TEXT NOT NULL,
	status              TEXT NOT NULL DEFAULT '',
	conversation_id     TEXT NOT NULL DEFAULT '',
	internet_message_id TEXT NOT NULL DEFAULT '',
	entry_id            TEXT NOT NULL DEFAULT '',
	display_only        INTEGER NOT NULL DEFAULT 0,
	sent_at             DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS %s ON %s(token);
`
