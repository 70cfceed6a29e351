package store

import "fmt"

// Dialect abstracts database-specific SQL generation and behavior.
type Dialect interface {
	// Name returns "postgres" or "sqlite".
	Name() string

	// DriverName returns the database/sql driver name ("pgx" or "sqlite").
	DriverName() string

	// NewParamBuilder creates a dialect-aware parameter builder.
	NewParamBuilder() ParamBuilder

	// NowExpr returns the SQL expression for the current timestamp.
	NowExpr() string

	// JSONField returns the SQL expression extracting a text value from a
	// JSON column.
	JSONField(column, field string) string

	// SystemTablesSQL returns the DDL for all system tables.
	SystemTablesSQL() string

	// MapError inspects a driver error and returns a well-known sentinel
	// error if applicable.
	MapError(err error) error
}

// ParamBuilder accumulates query parameters and generates dialect-specific
// placeholders.
type ParamBuilder interface {
	// Add appends a value and returns the placeholder string.
	Add(v any) string

	// Params returns all accumulated parameter values.
	Params() []any
}

// InExpr builds "field IN (...)" with one placeholder per value.
// The field may be any SQL expression.
func InExpr(field string, pb ParamBuilder, values []any) string {
	expr := field + " IN ("
	for i, v := range values {
		if i > 0 {
			expr += ", "
		}
		expr += pb.Add(v)
	}
	return expr + ")"
}

// NewDialect creates a Dialect for the given driver name ("postgres" or "sqlite").
func NewDialect(driver string) Dialect {
	switch driver {
	case "sqlite":
		return &SQLiteDialect{}
	default:
		return &PostgresDialect{}
	}
}

// --- PostgreSQL ParamBuilder ---

type pgParamBuilder struct {
	params []any
	n      int
}

func (p *pgParamBuilder) Add(v any) string {
	p.n++
	p.params = append(p.params, v)
	return fmt.Sprintf("$%d", p.n)
}

func (p *pgParamBuilder) Params() []any { return p.params }

// --- SQLite ParamBuilder ---

type sqliteParamBuilder struct {
	params []any
	n      int
}

func (p *sqliteParamBuilder) Add(v any) string {
	p.n++
	p.params = append(p.params, v)
	return fmt.Sprintf("?%d", p.n)
}

func (p *sqliteParamBuilder) Params() []any { return p.params }
