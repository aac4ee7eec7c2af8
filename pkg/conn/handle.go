// Package conn owns exactly one physical database connection and drives it
// through its Closed, Open and Disposed states.
package conn

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/asaidimu/dataaccess/pkg/core"
)

// State is the lifecycle state of a Handle.
type State int

const (
	Closed State = iota
	Open
	Disposed
)

func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case Disposed:
		return "Disposed"
	default:
		return "Unknown"
	}
}

var (
	// ErrDisposed is returned by every operation on a disposed handle.
	ErrDisposed = errors.New("connection handle is disposed")

	// ErrClosed is returned by Conn when the handle has not been opened.
	ErrClosed = errors.New("connection is not open")

	// ErrBusy is returned by Acquire while another lease is outstanding.
	ErrBusy = errors.New("connection handle is in use")
)

// Handle owns one physical connection. It never pools: the underlying
// *sql.DB is capped at a single connection and Open pins it.
//
// A Handle is not meant to be shared between goroutines; Acquire turns
// accidental concurrent use into ErrBusy instead of undefined behavior.
type Handle struct {
	mu             sync.Mutex
	db             *sql.DB
	conn           *sql.Conn
	state          State
	opening        bool
	leased         bool
	connectTimeout time.Duration
	logger         *slog.Logger
}

// Option configures a Handle.
type Option func(*Handle)

// WithConnectTimeout bounds Open. Zero leaves it to the caller's context.
func WithConnectTimeout(d time.Duration) Option {
	return func(h *Handle) {
		h.connectTimeout = d
	}
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handle) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// New creates a closed Handle for the given driver and DSN. No connection is
// made until Open.
func New(driverName, dsn string, opts ...Option) (*Handle, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, core.NewError(core.KindConnection, "new", "", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	h := &Handle{
		db:     db,
		state:  Closed,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Open acquires the physical connection if the handle is closed. Opening an
// open handle is a no-op. The handle is not locked while dialing, so State,
// Leased and Acquire answer immediately; a second Open issued meanwhile
// fails with ErrBusy.
func (h *Handle) Open(ctx context.Context) error {
	h.mu.Lock()
	switch {
	case h.state == Disposed:
		h.mu.Unlock()
		return core.NewError(core.KindConnection, "open", "", ErrDisposed)
	case h.state == Open:
		h.mu.Unlock()
		return nil
	case h.opening:
		h.mu.Unlock()
		return core.NewError(core.KindConnection, "open", "", ErrBusy)
	}
	h.opening = true
	db := h.db
	h.mu.Unlock()

	c, err := h.dial(ctx, db)

	h.mu.Lock()
	defer h.mu.Unlock()
	h.opening = false
	if err != nil {
		return core.NewError(core.KindConnection, "open", "", err)
	}
	if h.state == Disposed {
		_ = c.Close()
		return core.NewError(core.KindConnection, "open", "", ErrDisposed)
	}
	h.conn = c
	h.state = Open
	h.logger.Debug("connection opened")
	return nil
}

func (h *Handle) dial(ctx context.Context, db *sql.DB) (*sql.Conn, error) {
	if h.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.connectTimeout)
		defer cancel()
	}
	c, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.PingContext(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Close returns the physical connection if the handle is open. Closing a
// closed handle is a no-op.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case Disposed:
		return core.NewError(core.KindConnection, "close", "", ErrDisposed)
	case Closed:
		return nil
	}
	return h.closeLocked()
}

func (h *Handle) closeLocked() error {
	c := h.conn
	h.conn = nil
	h.state = Closed
	if err := c.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return core.NewError(core.KindConnection, "close", "", err)
	}
	h.logger.Debug("connection closed")
	return nil
}

// DB returns the connection object without opening it.
func (h *Handle) DB() (*sql.DB, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == Disposed {
		return nil, core.NewError(core.KindConnection, "get", "", ErrDisposed)
	}
	return h.db, nil
}

// Conn returns the open physical connection.
func (h *Handle) Conn() (*sql.Conn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch h.state {
	case Disposed:
		return nil, core.NewError(core.KindConnection, "get", "", ErrDisposed)
	case Closed:
		return nil, core.NewError(core.KindConnection, "get", "", ErrClosed)
	}
	return h.conn, nil
}

// State reports the current lifecycle state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// ConnectTimeout reports the timeout applied by Open.
func (h *Handle) ConnectTimeout() time.Duration {
	return h.connectTimeout
}

// Dispose releases the connection and the driver object. It runs its
// release logic once; later calls return nil.
func (h *Handle) Dispose() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == Disposed {
		return nil
	}
	var errs []error
	if h.state == Open {
		if err := h.closeLocked(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := h.db.Close(); err != nil {
		errs = append(errs, core.NewError(core.KindConnection, "dispose", "", err))
	}
	h.state = Disposed
	h.leased = false
	h.logger.Debug("connection handle disposed")
	return errors.Join(errs...)
}

// Using runs fn with h and disposes h on every exit path, including panics.
func Using(h *Handle, fn func(*Handle) error) (err error) {
	defer func() {
		if derr := h.Dispose(); err == nil {
			err = derr
		}
	}()
	return fn(h)
}
