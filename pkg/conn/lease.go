package conn

import (
	"sync"

	"github.com/asaidimu/dataaccess/pkg/core"
)

// Lease is exclusive permission to run commands on a Handle. Only one lease
// exists at a time.
type Lease struct {
	h    *Handle
	once sync.Once
}

// Acquire borrows the handle. It fails with ErrBusy while another lease is
// outstanding and with ErrDisposed after Dispose.
func (h *Handle) Acquire() (*Lease, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == Disposed {
		return nil, core.NewError(core.KindConnection, "acquire", "", ErrDisposed)
	}
	if h.leased {
		return nil, core.NewError(core.KindConnection, "acquire", "", ErrBusy)
	}
	h.leased = true
	return &Lease{h: h}, nil
}

// Release returns the handle. Calling it more than once has no effect.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.h.mu.Lock()
		l.h.leased = false
		l.h.mu.Unlock()
	})
}

// Leased reports whether a lease is outstanding.
func (h *Handle) Leased() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.leased
}
