package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	user_id    INTEGER NOT NULL,
	id         INTEGER NOT NULL,
	type       TEXT NOT NULL DEFAULT '',
	title      TEXT NOT NULL,
	message    TEXT NOT NULL DEFAULT '',
	is_read    INTEGER NOT NULL DEFAULT 0 CHECK(is_read IN (0, 1)),
	priority   TEXT NOT NULL DEFAULT 'normal',
	created_at DATETIME NOT NULL,
	read_at    DATETIME,
	extra_data TEXT NOT NULL DEFAULT '{}',
	fetched_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (user_id, id)
);

CREATE INDEX IF NOT EXISTS idx_notifications_user_created
	ON notifications(user_id, created_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS unread_counts (
	user_id    INTEGER PRIMARY KEY,
	count      INTEGER NOT NULL CHECK(count >= 0),
	updated_at DATETIME NOT NULL
);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
