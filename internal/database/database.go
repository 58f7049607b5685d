package database

import (
	"database/sql"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver
)

// DefaultPragmas are applied to every connection in the pool. The busy
// timeout makes concurrent writers wait for the lock instead of failing.
var DefaultPragmas = []string{
	"foreign_keys(1)",
	"busy_timeout(5000)",
	"journal_mode(WAL)",
}

// DSN assembles a modernc.org/sqlite data source name from a database path and
// pragma settings such as "busy_timeout(5000)". Times are always written in
// SQLite's own datetime format so they sort as text.
func DSN(path string, pragmas ...string) string {
	params := make([]string, 0, len(pragmas)+1)
	params = append(params, "_time_format=sqlite")
	for _, pragma := range pragmas {
		params = append(params, "_pragma="+pragma)
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(params, "&")
}

// New creates a new database connection pool.
func New(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate runs the SQL statements to set up the database schema.
func Migrate(db *sql.DB) error {
	const sqlStmt = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT NOT NULL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS posts (
		id TEXT NOT NULL PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		author_id TEXT NOT NULL, -- soft reference, deleting a user keeps their posts
		title TEXT NOT NULL,
		intro TEXT NOT NULL,
		markdown TEXT NOT NULL,
		sanitized_html TEXT NOT NULL,
		tags_json TEXT NOT NULL DEFAULT '[]',
		views INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS posts_created_at_idx ON posts (created_at);
	CREATE INDEX IF NOT EXISTS posts_views_idx ON posts (views);

	-- Full-text index over every text field of a post.
	CREATE VIRTUAL TABLE IF NOT EXISTS posts_fts USING fts5 (
		title,
		intro,
		markdown,
		tags_json,
		content = 'posts',
		content_rowid = 'rowid',
		tokenize = 'unicode61 remove_diacritics 2'
	);

	CREATE TRIGGER IF NOT EXISTS posts_fts_insert AFTER INSERT ON posts BEGIN
		INSERT INTO posts_fts (rowid, title, intro, markdown, tags_json)
		VALUES (new.rowid, new.title, new.intro, new.markdown, new.tags_json);
	END;

	CREATE TRIGGER IF NOT EXISTS posts_fts_delete AFTER DELETE ON posts BEGIN
		INSERT INTO posts_fts (posts_fts, rowid, title, intro, markdown, tags_json)
		VALUES ('delete', old.rowid, old.title, old.intro, old.markdown, old.tags_json);
	END;

	-- View counter updates do not touch the index.
	CREATE TRIGGER IF NOT EXISTS posts_fts_update AFTER UPDATE OF title, intro, markdown, tags_json ON posts BEGIN
		INSERT INTO posts_fts (posts_fts, rowid, title, intro, markdown, tags_json)
		VALUES ('delete', old.rowid, old.title, old.intro, old.markdown, old.tags_json);
		INSERT INTO posts_fts (rowid, title, intro, markdown, tags_json)
		VALUES (new.rowid, new.title, new.intro, new.markdown, new.tags_json);
	END;

	CREATE TABLE IF NOT EXISTS events (
		id TEXT NOT NULL PRIMARY KEY,
		type TEXT NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		post_id TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(sqlStmt)
	return err
}
