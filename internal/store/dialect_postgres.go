package store

import (
	"fmt"
	"strings"
)

type PostgresDialect struct{}

func (d *PostgresDialect) Name() string       { return "postgres" }
func (d *PostgresDialect) DriverName() string { return "pgx" }
func (d *PostgresDialect) NowExpr() string    { return "NOW()" }

func (d *PostgresDialect) NewParamBuilder() ParamBuilder {
	return &pgParamBuilder{}
}

func (d *PostgresDialect) JSONField(column, field string) string {
	return fmt.Sprintf("%s->>'%s'", column, field)
}

func (d *PostgresDialect) SystemTablesSQL() string {
	return pgSystemTablesSQL
}

func (d *PostgresDialect) MapError(err error) error {
	if err == nil {
		return nil
	}
	// With pgx/stdlib, the underlying error message includes the PG code
	errStr := err.Error()
	if strings.Contains(errStr, "23505") || strings.Contains(errStr, "unique constraint") || strings.Contains(errStr, "duplicate key") {
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	}
	return err
}

const pgSystemTablesSQL = `
CREATE TABLE IF NOT EXISTS _content_types (
    uid         TEXT PRIMARY KEY,
    definition  JSONB NOT NULL,
    created_at  TIMESTAMPTZ DEFAULT NOW(),
    updated_at  TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS _components (
    uid         TEXT PRIMARY KEY,
    definition  JSONB NOT NULL,
    created_at  TIMESTAMPTZ DEFAULT NOW(),
    updated_at  TIMESTAMPTZ DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS _documents (
    id           BIGSERIAL PRIMARY KEY,
    content_type TEXT NOT NULL,
    document_id  UUID NOT NULL,
    locale       TEXT NOT NULL DEFAULT 'default',
    status       TEXT NOT NULL,
    data         JSONB NOT NULL DEFAULT '{}',
    published_at TIMESTAMPTZ,
    created_at   TIMESTAMPTZ DEFAULT NOW(),
    updated_at   TIMESTAMPTZ DEFAULT NOW(),
    UNIQUE (content_type, document_id, locale, status)
);
CREATE INDEX IF NOT EXISTS idx_documents_type_status ON _documents(content_type, status);

CREATE TABLE IF NOT EXISTS _files (
    id               UUID PRIMARY KEY,
    name             TEXT NOT NULL,
    hash             TEXT,
    url              TEXT NOT NULL,
    mime             TEXT,
    caption          TEXT,
    alternative_text TEXT,
    created_at       TIMESTAMPTZ DEFAULT NOW(),
    updated_at       TIMESTAMPTZ DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_files_hash ON _files(hash);

CREATE TABLE IF NOT EXISTS _users (
    id            UUID PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    roles         TEXT NOT NULL DEFAULT '[]',
    active        BOOLEAN DEFAULT true,
    created_at    TIMESTAMPTZ DEFAULT NOW()
);
`
