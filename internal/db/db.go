package db

import (
	"database/sql"
	"fmt"

	// Import the libSQL driver — registers "libsql" with database/sql.
	// Handles remote URLs (libsql://, https://, wss://).
	_ "github.com/tursodatabase/libsql-client-go/libsql"

	// Import the pure-Go SQLite driver for local file: URLs.
	// libsql-client-go delegates file: URLs to this driver.
	_ "modernc.org/sqlite"
)

// driverName is the database/sql driver to use. Package-level so tests can
// point at the plain sqlite driver; production always uses "libsql".
var driverName = "libsql"

// Connect opens a libSQL database connection and verifies it with a ping.
//
// Supported URL schemes:
//
//	Local file:   "file:path/to/db.db"
//	Remote Turso: "libsql://[db-name].turso.io?authToken=[token]"
func Connect(dbURL string) (*sql.DB, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("database URL must not be empty")
	}

	db, err := sql.Open(driverName, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open libsql: %w", err)
	}

	// Verify the connection is actually reachable.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// schema creates every table the service uses. Idempotent; safe to run at
// every startup.
const schema = `
CREATE TABLE IF NOT EXISTS chat_sessions (
	session_id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT 'New Chat',
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	last_active TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	role TEXT NOT NULL CHECK (role IN ('user', 'assistant', 'system')),
	content TEXT NOT NULL,
	timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	metadata TEXT,
	FOREIGN KEY (session_id) REFERENCES chat_sessions (session_id)
);

CREATE TABLE IF NOT EXISTS research_cache (
	query_hash TEXT PRIMARY KEY,
	query TEXT NOT NULL,
	results TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	expires_at TIMESTAMP NOT NULL,
	access_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS semantic_cache (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	query TEXT NOT NULL,
	embedding BLOB NOT NULL,
	results TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	expires_at TIMESTAMP NOT NULL,
	access_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS function_cache (
	call_key TEXT PRIMARY KEY,
	tool TEXT NOT NULL,
	args TEXT NOT NULL,
	result TEXT NOT NULL,
	is_error INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS resource_cache (
	url TEXT PRIMARY KEY,
	content BLOB NOT NULL,
	content_type TEXT,
	size INTEGER,
	cached_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	expires_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id);
CREATE INDEX IF NOT EXISTS idx_research_cache_expires ON research_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_semantic_cache_expires ON semantic_cache(expires_at);
`

// Migrate applies the schema to db.
func Migrate(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("db must not be nil")
	}
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("db migrate: %w", err)
	}
	return nil
}
