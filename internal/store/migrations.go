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
		Name:    "create sessions",
		SQL: `
			CREATE TABLE sessions (
				context_id   TEXT PRIMARY KEY,
				session_id   TEXT NOT NULL,
				last_used    INTEGER NOT NULL,
				resource_ids TEXT NOT NULL DEFAULT '[]'
			);

			CREATE INDEX idx_sessions_last_used ON sessions (last_used);
		`,
	},
}
