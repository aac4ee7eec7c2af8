package core

import (
	"context"
)

// Cursor is a forward-only result cursor. It releases its connection when
// Next returns false or Close is called, and Err reports iteration failures
// as *Error.
type Cursor interface {
	Scanner
	Next() bool
	Err() error
	Close() error
}

// DataAccess is the uniform execution surface over one owned connection.
// Modes that are generic over the mapped type (lazy streaming, paginated
// and procedure queries) are package functions of the implementation.
// Reader and Statistics return concrete types and live only on the
// implementation; its Reader result satisfies Cursor.
type DataAccess interface {
	// NonQuery executes a command and returns the number of affected rows.
	// The connection stays open afterwards.
	NonQuery(ctx context.Context, spec CommandSpec) (int64, error)

	// Scalar returns the first column of the first row, or nil when the
	// command yields no rows.
	Scalar(ctx context.Context, spec CommandSpec) (any, error)

	// DescribeRoutine derives a routine's declared parameters from the
	// catalog without executing it.
	DescribeRoutine(ctx context.Context, name string) (RoutineDescriptor, error)

	// ProcedureDataSet binds values against a descriptor and returns every
	// result set.
	ProcedureDataSet(ctx context.Context, desc RoutineDescriptor, values []any) (DataSet, error)

	// ProcedureTable binds values against a descriptor and returns only the
	// first result set.
	ProcedureTable(ctx context.Context, desc RoutineDescriptor, values []any) (Table, error)

	// ProcedureTableParams runs a routine with explicit parameters and returns
	// its first result set.
	ProcedureTableParams(ctx context.Context, name string, params []Param) (Table, error)

	// ProcedureWithOutput runs a routine with one conventional output
	// parameter and returns its value.
	ProcedureWithOutput(ctx context.Context, name string, params []Param) (any, error)

	// Batch runs every entry in order on one connection. It is not
	// transactional and stops at the first failure.
	Batch(ctx context.Context, entries []BatchEntry, kind QueryKind) error

	// BulkLoad copies data into destination and returns the rows copied.
	BulkLoad(ctx context.Context, data Table, destination string) (int64, error)

	// Close disposes the owned connection.
	Close() error
}
