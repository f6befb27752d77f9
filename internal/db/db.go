package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB with investigation-specific helpers.
type DB struct {
	*sql.DB
	mu   sync.RWMutex
	path string
}

// Open creates or opens a SQLite database at the given path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	d := &DB{DB: sqlDB, path: path}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

// OpenMemory creates an in-memory SQLite database (useful for testing).
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}

	// Each new connection to :memory: is a distinct database, so the
	// pool must be pinned to a single connection.
	sqlDB.SetMaxOpenConns(1)

	d := &DB{DB: sqlDB, path: ":memory:"}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

// migrate runs all schema migrations.
func (d *DB) migrate() error {
	_, err := d.Exec(schema)
	return err
}

// schema contains the full database schema. New tables are added here.
// The audit_events table is append-only: no UPDATE or DELETE statement
// is issued against it anywhere in this codebase.
const schema = `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    file_name TEXT NOT NULL,
    mime_kind TEXT NOT NULL CHECK(mime_kind IN ('pdf','docx','xlsx','json')),
    size_bytes INTEGER NOT NULL DEFAULT 0,
    document_type TEXT NOT NULL DEFAULT 'Evidence'
        CHECK(document_type IN ('Evidence','Report','Statement','Financial','Communication')),
    intelligence_level TEXT NOT NULL DEFAULT 'Medium'
        CHECK(intelligence_level IN ('Low','Medium','High','Critical')),
    definition TEXT NOT NULL DEFAULT '',
    ingested_at DATETIME NOT NULL DEFAULT (datetime('now')),
    seq INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_seq ON documents(seq);

CREATE TABLE IF NOT EXISTS tasks (
    id TEXT PRIMARY KEY,
    original_input TEXT NOT NULL,
    stage TEXT NOT NULL CHECK(stage IN ('submitted','analyzed','executing','completed','failed')),
    parent_task_id TEXT,
    context_document_ids TEXT NOT NULL DEFAULT '[]',
    plan TEXT,
    result TEXT,
    output_files TEXT NOT NULL DEFAULT '[]',
    failure_reason TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT (datetime('now')),
    updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_tasks_stage ON tasks(stage);
CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks(parent_task_id);
CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks(created_at);

CREATE TABLE IF NOT EXISTS audit_events (
    id INTEGER PRIMARY KEY,
    timestamp DATETIME NOT NULL,
    kind TEXT NOT NULL CHECK(kind IN ('upload','analysis','query','export','chain')),
    actor TEXT NOT NULL CHECK(actor IN ('user','ai')),
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    source_files TEXT NOT NULL DEFAULT '[]',
    output_files TEXT NOT NULL DEFAULT '[]',
    transformation_logic TEXT NOT NULL DEFAULT '',
    confidence REAL,
    records_processed INTEGER,
    execution_time_ms INTEGER,
    parameters TEXT NOT NULL DEFAULT '{}',
    status TEXT NOT NULL CHECK(status IN ('completed','failed','in_progress'))
);

CREATE INDEX IF NOT EXISTS idx_audit_kind ON audit_events(kind);
CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_events(actor);
CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_events(timestamp);
`
