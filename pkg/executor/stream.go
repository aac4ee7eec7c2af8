package executor

import (
	"context"
	"database/sql"
	"iter"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/asaidimu/dataaccess/pkg/core"
)

// Stream is a single-pass, pull-based sequence of mapped rows. It holds the
// executor's connection until it is exhausted, closed, its context is
// canceled, or it becomes unreachable.
type Stream[T any] struct {
	state    *streamState
	mapper   core.RowMapper[T]
	fail     func(error) error
	consumed atomic.Bool
	stop     func() bool
	cleanup  runtime.Cleanup
}

// streamState is kept apart from Stream so the cleanup can run after the
// Stream itself is unreachable.
type streamState struct {
	mu      sync.Mutex
	rows    *sql.Rows
	release func() error
	done    bool
	err     error
}

func (s *streamState) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return s.err
	}
	s.done = true
	s.err = s.release()
	return s.err
}

// Lazy executes spec and returns a stream that maps each row on demand. The
// command stays open for the lifetime of the stream.
func Lazy[T any](ctx context.Context, e *Executor, spec core.CommandSpec, mapper core.RowMapper[T]) (*Stream[T], error) {
	cmd, err := e.render("reader_lazy", spec)
	if err != nil {
		return nil, err
	}
	rows, release, err := e.open(ctx, cmd, false)
	if err != nil {
		return nil, err
	}

	state := &streamState{rows: rows, release: release}
	s := &Stream[T]{
		state:  state,
		mapper: mapper,
		fail: func(err error) error {
			return e.fail(ctx, cmd, err)
		},
	}
	s.stop = context.AfterFunc(ctx, func() {
		_ = state.close()
	})
	s.cleanup = runtime.AddCleanup(s, func(st *streamState) {
		_ = st.close()
	}, state)
	return s, nil
}

// All returns the sequence of mapped rows. It can be ranged over once; a
// second enumeration yields ErrStreamConsumed. Mapper errors are yielded
// unmodified and end the sequence. Breaking out of the loop closes the
// stream.
func (s *Stream[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		if !s.consumed.CompareAndSwap(false, true) {
			yield(zero, core.NewError(core.KindValidation, "reader_lazy", "", core.ErrStreamConsumed))
			return
		}
		defer s.Close()

		rows := s.state.rows
		for rows.Next() {
			v, err := s.mapper(rows)
			if err != nil {
				yield(zero, err)
				return
			}
			if !yield(v, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(zero, s.fail(err))
		}
	}
}

// Collect drains the stream into a slice, stopping at the first error.
func (s *Stream[T]) Collect() ([]T, error) {
	var out []T
	for v, err := range s.All() {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Close releases the stream's command and connection. It is safe to call
// more than once and from any goroutine.
func (s *Stream[T]) Close() error {
	s.stop()
	s.cleanup.Stop()
	return s.state.close()
}
