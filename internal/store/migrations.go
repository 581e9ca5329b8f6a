package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create reminders",
		SQL: `
			CREATE TABLE reminders (
				id          TEXT PRIMARY KEY,
				chat_id     TEXT NOT NULL,
				produto     TEXT NOT NULL,
				validade    TEXT NOT NULL,
				dias_antes  INTEGER NOT NULL CHECK (dias_antes BETWEEN 0 AND 3650),
				created_at  TEXT NOT NULL,
				sent_at     TEXT
			);

			CREATE INDEX idx_reminders_chat ON reminders (chat_id);
		`,
	},
	{
		Version: 2,
		Name:    "index pending reminders",
		SQL: `
			CREATE INDEX idx_reminders_pending ON reminders (validade) WHERE sent_at IS NULL;
		`,
	},
}
