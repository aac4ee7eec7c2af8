package executor

import (
	"context"
	"database/sql"
	"sync"

	"github.com/asaidimu/dataaccess/pkg/core"
)

// Rows is a forward-only cursor bound to the executor's connection. The
// connection is closed and the handle released when Next returns false or
// Close is called.
type Rows struct {
	rows     *sql.Rows
	release  func() error
	fail     func(error) error
	once     sync.Once
	closeErr error
}

var _ core.Cursor = (*Rows)(nil)

// Reader executes spec and returns a cursor over its results.
func (e *Executor) Reader(ctx context.Context, spec core.CommandSpec) (*Rows, error) {
	cmd, err := e.render("reader", spec)
	if err != nil {
		return nil, err
	}
	rows, release, err := e.open(ctx, cmd, false)
	if err != nil {
		return nil, err
	}
	return &Rows{
		rows:    rows,
		release: release,
		fail: func(err error) error {
			return e.fail(ctx, cmd, err)
		},
	}, nil
}

// Next advances to the next row. Exhaustion releases the connection.
func (r *Rows) Next() bool {
	if r.rows.Next() {
		return true
	}
	r.Close()
	return false
}

func (r *Rows) Columns() ([]string, error) {
	return r.rows.Columns()
}

func (r *Rows) ColumnTypes() ([]*sql.ColumnType, error) {
	return r.rows.ColumnTypes()
}

func (r *Rows) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}

// Err returns the classified error, if any, encountered during iteration.
func (r *Rows) Err() error {
	if err := r.rows.Err(); err != nil {
		return r.fail(err)
	}
	return nil
}

// Close releases the cursor and the connection. It is safe to call more than
// once.
func (r *Rows) Close() error {
	r.once.Do(func() {
		r.closeErr = r.release()
	})
	return r.closeErr
}
