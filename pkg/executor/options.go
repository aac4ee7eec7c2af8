package executor

import (
	"log/slog"
	"time"

	"github.com/asaidimu/dataaccess/pkg/core"
)

const (
	// DefaultRoutineTimeout bounds the stored-procedure modes.
	DefaultRoutineTimeout = 600 * time.Second

	// DefaultOutputParam is the conventional name of the output parameter
	// appended by ProcedureWithOutput.
	DefaultOutputParam = "OutputParam"
)

type options struct {
	logger         *slog.Logger
	defaultTimeout time.Duration
	routineTimeout time.Duration
	outputParam    string
	driverName     string
	connectTimeout time.Duration
}

func defaultOptions(d core.Dialect) options {
	return options{
		logger:         slog.Default(),
		routineTimeout: DefaultRoutineTimeout,
		outputParam:    DefaultOutputParam,
		driverName:     d.DriverName(),
		connectTimeout: core.DefaultConnectTimeout,
	}
}

// Option configures an Executor.
type Option func(*options)

// WithLogger sets the structured logger for commands and lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithDefaultTimeout bounds commands that carry no timeout of their own.
// Zero leaves them to the driver.
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *options) {
		o.defaultTimeout = d
	}
}

// WithRoutineTimeout bounds the stored-procedure modes.
func WithRoutineTimeout(d time.Duration) Option {
	return func(o *options) {
		o.routineTimeout = d
	}
}

// WithOutputParamName overrides the output parameter name used by
// ProcedureWithOutput.
func WithOutputParamName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.outputParam = name
		}
	}
}

// WithDriverName opens the database with a driver other than the dialect's
// default, e.g. a go-sqlite3 driver registered with custom routines.
func WithDriverName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.driverName = name
		}
	}
}

// WithConnectTimeout bounds opening the connection.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) {
		o.connectTimeout = d
	}
}
