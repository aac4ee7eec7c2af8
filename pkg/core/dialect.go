package core

import (
	"context"
	"database/sql"
)

// Querier is implemented by *sql.Conn and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Dialect isolates everything that differs between database engines:
// command rendering, catalog lookups, output parameters, bulk copy and the
// set of error codes treated as transient.
type Dialect interface {
	// Name identifies the dialect, e.g. "sqlserver".
	Name() string

	// DriverName is the database/sql driver registered for this dialect.
	DriverName() string

	// Text renders a text command and its bound arguments.
	Text(query string, params []Param) (string, []any)

	// Routine renders the invocation of a stored routine by name.
	Routine(name string, params []Param) (string, []any)

	// Paginate appends a window clause that skips offset rows and takes limit rows.
	Paginate(query string, offset, limit int) string

	// ParameterCatalog returns the catalog query listing a routine's declared
	// parameters as (name, data type, mode, ordinal). An empty query means the
	// engine has no catalog for routines.
	ParameterCatalog(routine string) (string, []any)

	// CallWithOutput invokes a routine with one trailing NVARCHAR output
	// parameter called output and returns its value after execution.
	CallWithOutput(ctx context.Context, q Querier, name string, params []Param, output string) (any, error)

	// BulkLoad copies data into destination using the engine's bulk path.
	BulkLoad(ctx context.Context, tx *sql.Tx, destination string, data Table) (int64, error)

	// CurrentDatabase returns a query selecting the current database name.
	CurrentDatabase() string

	// DataSource extracts the server or file a DSN points at.
	DataSource(dsn string) string

	// IsTransient reports whether err is one of the engine's transient codes.
	IsTransient(err error) bool

	// BuildDSN renders a connection string for this engine.
	BuildDSN(cfg ConnectionConfig) (string, error)
}
