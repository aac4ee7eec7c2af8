// Package executor runs commands of every execution mode over a single owned
// connection.
package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/asaidimu/dataaccess/pkg/conn"
	"github.com/asaidimu/dataaccess/pkg/core"
)

var _ core.DataAccess = (*Executor)(nil)

// Executor implements core.DataAccess. It owns one conn.Handle and is not
// safe for concurrent use: overlapping calls fail with conn.ErrBusy.
type Executor struct {
	dialect core.Dialect
	handle  *conn.Handle
	dsn     string
	opts    options
	logger  *slog.Logger
}

// New creates an Executor for dsn. No connection is made until the first
// command.
func New(dialect core.Dialect, dsn string, opts ...Option) (*Executor, error) {
	if dialect == nil {
		return nil, core.NewError(core.KindValidation, "new", "", errors.New("dialect is required"))
	}
	o := defaultOptions(dialect)
	for _, opt := range opts {
		opt(&o)
	}
	h, err := conn.New(o.driverName, dsn,
		conn.WithConnectTimeout(o.connectTimeout),
		conn.WithLogger(o.logger),
	)
	if err != nil {
		return nil, err
	}
	return &Executor{
		dialect: dialect,
		handle:  h,
		dsn:     dsn,
		opts:    o,
		logger:  o.logger.With("dialect", dialect.Name()),
	}, nil
}

// Connect builds the DSN from cfg with the dialect and creates an Executor.
// The configured timeout becomes the connect timeout unless an option
// overrides it.
func Connect(dialect core.Dialect, cfg core.ConnectionConfig, opts ...Option) (*Executor, error) {
	if dialect == nil {
		return nil, core.NewError(core.KindValidation, "connect", "", errors.New("dialect is required"))
	}
	dsn, err := dialect.BuildDSN(cfg)
	if err != nil {
		return nil, err
	}
	opts = append([]Option{WithConnectTimeout(cfg.ConnectTimeout())}, opts...)
	return New(dialect, dsn, opts...)
}

// Handle exposes the owned connection handle.
func (e *Executor) Handle() *conn.Handle {
	return e.handle
}

// Dialect returns the dialect commands are rendered with.
func (e *Executor) Dialect() core.Dialect {
	return e.dialect
}

// Close disposes the owned connection. The executor cannot be used afterwards.
func (e *Executor) Close() error {
	return e.handle.Dispose()
}

// command is a rendered statement ready for the driver.
type command struct {
	op      string
	text    string
	kind    core.QueryKind
	query   string
	args    []any
	timeout time.Duration
}

// render resolves the kind of spec and renders it with the dialect. Routine
// names are validated before anything is sent.
func (e *Executor) render(op string, spec core.CommandSpec) (command, error) {
	kind := core.Resolve(spec)
	cmd := command{op: op, text: spec.Text, kind: kind, timeout: spec.Timeout}
	if cmd.timeout == 0 {
		cmd.timeout = e.opts.defaultTimeout
	}
	if kind.IsRoutine() {
		if !core.Validate(spec.Text) {
			return cmd, core.NewError(core.KindValidation, op, spec.Text, core.ErrInvalidName)
		}
		cmd.query, cmd.args = e.dialect.Routine(spec.Text, spec.Params)
		return cmd, nil
	}
	if strings.TrimSpace(spec.Text) == "" {
		return cmd, core.NewError(core.KindValidation, op, spec.Text, errors.New("command text is empty"))
	}
	cmd.query, cmd.args = e.dialect.Text(spec.Text, spec.Params)
	return cmd, nil
}

// renderRoutine renders a stored-procedure invocation bounded by the routine
// timeout.
func (e *Executor) renderRoutine(op, name string, params []core.Param) (command, error) {
	cmd, err := e.render(op, core.CommandSpec{Text: name, Kind: core.StandardStoredProcedure, Params: params})
	cmd.timeout = e.opts.routineTimeout
	return cmd, err
}

// session is one leased use of the open connection.
type session struct {
	e     *Executor
	lease *conn.Lease
	conn  *sql.Conn
}

// begin leases the handle and opens it if needed.
func (e *Executor) begin(ctx context.Context) (*session, error) {
	lease, err := e.handle.Acquire()
	if err != nil {
		return nil, err
	}
	if err := e.handle.Open(ctx); err != nil {
		lease.Release()
		return nil, err
	}
	c, err := e.handle.Conn()
	if err != nil {
		lease.Release()
		return nil, err
	}
	return &session{e: e, lease: lease, conn: c}, nil
}

// end returns the lease, closing the connection first when closeConn is set.
func (s *session) end(closeConn bool) error {
	defer s.lease.Release()
	if closeConn {
		return s.e.handle.Close()
	}
	return nil
}

// endInto ends the session and records a close failure in errp unless an
// earlier error is already there.
func (s *session) endInto(closeConn bool, errp *error) {
	if err := s.end(closeConn); err != nil && *errp == nil {
		*errp = err
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

func (e *Executor) logCommand(ctx context.Context, cmd command) {
	e.logger.DebugContext(ctx, "executing command",
		"op", cmd.op,
		"kind", cmd.kind,
		"query", cmd.query,
		"params", len(cmd.args),
	)
}

// fail classifies a driver error for cmd and logs it.
func (e *Executor) fail(ctx context.Context, cmd command, err error) error {
	err = core.ClassifyError(e.dialect, cmd.op, cmd.text, err)
	e.logger.WarnContext(ctx, "command failed",
		"op", cmd.op,
		"query", cmd.text,
		"kind", core.KindOf(err),
		"error", err,
	)
	return err
}

// open runs cmd as a query on a fresh session and returns the cursor along
// with a release function that closes the rows and the connection and
// returns the lease. The statement is prepared first when prepared is set.
// On error everything is released before returning.
func (e *Executor) open(ctx context.Context, cmd command, prepared bool) (*sql.Rows, func() error, error) {
	s, err := e.begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	qctx, cancel := withTimeout(ctx, cmd.timeout)
	e.logCommand(qctx, cmd)

	var stmt *sql.Stmt
	var rows *sql.Rows
	if prepared {
		stmt, err = s.conn.PrepareContext(qctx, cmd.query)
		if err == nil {
			rows, err = stmt.QueryContext(qctx, cmd.args...)
		}
	} else {
		rows, err = s.conn.QueryContext(qctx, cmd.query, cmd.args...)
	}
	if err != nil {
		if stmt != nil {
			_ = stmt.Close()
		}
		cancel()
		_ = s.end(true)
		return nil, nil, e.fail(ctx, cmd, err)
	}

	release := func() error {
		var errs []error
		if err := rows.Close(); err != nil {
			errs = append(errs, e.fail(ctx, cmd, err))
		}
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				errs = append(errs, e.fail(ctx, cmd, err))
			}
		}
		cancel()
		if err := s.end(true); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	}
	return rows, release, nil
}

// collect runs cmd and maps every row, closing the connection afterwards.
func collect[T any](ctx context.Context, e *Executor, cmd command, prepared bool, mapper core.RowMapper[T]) (_ []T, err error) {
	rows, release, err := e.open(ctx, cmd, prepared)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := release(); rerr != nil && err == nil {
			err = rerr
		}
	}()

	var out []T
	for rows.Next() {
		v, err := mapper(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, e.fail(ctx, cmd, err)
	}
	return out, nil
}

// NonQuery executes spec and returns the number of rows affected. The
// connection is left open.
func (e *Executor) NonQuery(ctx context.Context, spec core.CommandSpec) (_ int64, err error) {
	cmd, err := e.render("non_query", spec)
	if err != nil {
		return 0, err
	}
	s, err := e.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer s.endInto(false, &err)

	qctx, cancel := withTimeout(ctx, cmd.timeout)
	defer cancel()
	e.logCommand(qctx, cmd)

	result, err := s.conn.ExecContext(qctx, cmd.query, cmd.args...)
	if err != nil {
		return 0, e.fail(ctx, cmd, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, e.fail(ctx, cmd, err)
	}
	return n, nil
}

// Scalar returns the first column of the first row, or nil when spec yields
// no rows. The connection is left open.
func (e *Executor) Scalar(ctx context.Context, spec core.CommandSpec) (_ any, err error) {
	cmd, err := e.render("scalar", spec)
	if err != nil {
		return nil, err
	}
	s, err := e.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer s.endInto(false, &err)

	qctx, cancel := withTimeout(ctx, cmd.timeout)
	defer cancel()
	e.logCommand(qctx, cmd)

	rows, err := s.conn.QueryContext(qctx, cmd.query, cmd.args...)
	if err != nil {
		return nil, e.fail(ctx, cmd, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, e.fail(ctx, cmd, err)
		}
		return nil, nil
	}
	values, err := core.MapValues(rows)
	if err != nil {
		return nil, e.fail(ctx, cmd, err)
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values[0], nil
}

// Batch runs every entry in order on one connection, resolving each entry's
// kind from kind. It is not transactional: the first failure stops the batch,
// earlier entries stay applied and later ones are never run. The returned
// error wraps a *BatchError naming the failing entry. The connection is
// closed afterwards.
func (e *Executor) Batch(ctx context.Context, entries []core.BatchEntry, kind core.QueryKind) (err error) {
	const op = "batch"
	if len(entries) == 0 {
		return core.NewError(core.KindValidation, op, "", core.ErrEmptyBatch)
	}
	cmds := make([]command, len(entries))
	for i, entry := range entries {
		cmd, err := e.render(op, core.CommandSpec{Text: entry.Query, Kind: kind, Params: entry.Params})
		if err != nil {
			return core.NewError(core.KindValidation, op, entry.Query, &BatchError{Index: i, Err: err})
		}
		cmds[i] = cmd
	}

	s, err := e.begin(ctx)
	if err != nil {
		return err
	}
	defer s.endInto(true, &err)

	for i, cmd := range cmds {
		qctx, cancel := withTimeout(ctx, cmd.timeout)
		e.logCommand(qctx, cmd)
		_, err := s.conn.ExecContext(qctx, cmd.query, cmd.args...)
		cancel()
		if err != nil {
			return e.fail(ctx, cmd, &BatchError{Index: i, Err: err})
		}
	}
	e.logger.DebugContext(ctx, "batch completed", "entries", len(cmds))
	return nil
}

// BatchError identifies the batch entry that failed.
type BatchError struct {
	Index int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch entry %d failed: %v", e.Index, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// BulkLoad copies data into destination through the dialect's bulk path in
// one transaction and returns the rows copied. The connection is closed
// afterwards.
func (e *Executor) BulkLoad(ctx context.Context, data core.Table, destination string) (_ int64, err error) {
	cmd := command{op: "bulk_load", text: destination, kind: core.Other, timeout: e.opts.defaultTimeout}
	if strings.TrimSpace(destination) == "" {
		return 0, core.NewError(core.KindValidation, cmd.op, destination, errors.New("destination table is empty"))
	}
	if len(data.Columns) == 0 {
		return 0, core.NewError(core.KindValidation, cmd.op, destination, core.ErrEmptyTable)
	}

	s, err := e.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer s.endInto(true, &err)

	qctx, cancel := withTimeout(ctx, cmd.timeout)
	defer cancel()
	e.logger.DebugContext(qctx, "bulk loading", "destination", destination, "rows", len(data.Rows))

	tx, err := s.conn.BeginTx(qctx, nil)
	if err != nil {
		return 0, e.fail(ctx, cmd, err)
	}
	n, err := e.dialect.BulkLoad(qctx, tx, destination, data)
	if err != nil {
		_ = tx.Rollback()
		return 0, e.fail(ctx, cmd, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, e.fail(ctx, cmd, err)
	}
	return n, nil
}

// ProcedureWithOutput runs the routine name with one trailing string output
// parameter and returns its value after execution. The connection is left
// open.
func (e *Executor) ProcedureWithOutput(ctx context.Context, name string, params []core.Param) (_ any, err error) {
	cmd, err := e.renderRoutine("procedure_with_output", name, params)
	if err != nil {
		return nil, err
	}
	s, err := e.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer s.endInto(false, &err)

	qctx, cancel := withTimeout(ctx, cmd.timeout)
	defer cancel()
	e.logger.DebugContext(qctx, "executing command",
		"op", cmd.op,
		"kind", cmd.kind,
		"query", name,
		"params", len(params),
		"output", e.opts.outputParam,
	)

	out, err := e.dialect.CallWithOutput(qctx, s.conn, name, params, e.opts.outputParam)
	if err != nil {
		return nil, e.fail(ctx, cmd, err)
	}
	return out, nil
}
