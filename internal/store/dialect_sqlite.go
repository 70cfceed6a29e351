package store

import (
	"fmt"
	"strings"
)

type SQLiteDialect struct{}

func (d *SQLiteDialect) Name() string       { return "sqlite" }
func (d *SQLiteDialect) DriverName() string { return "sqlite" }
func (d *SQLiteDialect) NowExpr() string    { return "datetime('now')" }

func (d *SQLiteDialect) NewParamBuilder() ParamBuilder {
	return &sqliteParamBuilder{}
}

func (d *SQLiteDialect) JSONField(column, field string) string {
	return fmt.Sprintf("json_extract(%s, '$.%s')", column, field)
}

func (d *SQLiteDialect) SystemTablesSQL() string {
	return sqliteSystemTablesSQL
}

func (d *SQLiteDialect) MapError(err error) error {
	if err == nil {
		return nil
	}
	errStr := err.Error()
	if strings.Contains(errStr, "UNIQUE constraint failed") || strings.Contains(errStr, "constraint failed: UNIQUE") {
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	}
	return err
}

const sqliteSystemTablesSQL = `
CREATE TABLE IF NOT EXISTS _content_types (
    uid         TEXT PRIMARY KEY,
    definition  TEXT NOT NULL,
    created_at  TEXT DEFAULT (datetime('now')),
    updated_at  TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS _components (
    uid         TEXT PRIMARY KEY,
    definition  TEXT NOT NULL,
    created_at  TEXT DEFAULT (datetime('now')),
    updated_at  TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS _documents (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    content_type TEXT NOT NULL,
    document_id  TEXT NOT NULL,
    locale       TEXT NOT NULL DEFAULT 'default',
    status       TEXT NOT NULL,
    data         TEXT NOT NULL DEFAULT '{}',
    published_at TEXT,
    created_at   TEXT DEFAULT (datetime('now')),
    updated_at   TEXT DEFAULT (datetime('now')),
    UNIQUE (content_type, document_id, locale, status)
);
CREATE INDEX IF NOT EXISTS idx_documents_type_status ON _documents(content_type, status);

CREATE TABLE IF NOT EXISTS _files (
    id               TEXT PRIMARY KEY,
    name             TEXT NOT NULL,
    hash             TEXT,
    url              TEXT NOT NULL,
    mime             TEXT,
    caption          TEXT,
    alternative_text TEXT,
    created_at       TEXT DEFAULT (datetime('now')),
    updated_at       TEXT DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_files_hash ON _files(hash);

CREATE TABLE IF NOT EXISTS _users (
    id            TEXT PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    roles         TEXT NOT NULL DEFAULT '[]',
    active        INTEGER DEFAULT 1,
    created_at    TEXT DEFAULT (datetime('now'))
);
`
