package scan

import (
	"sync"
	"time"
)

// DefaultReleaseDelay is the bounded window after which a granted guard
// releases itself, permitting the next distinct scan request.
const DefaultReleaseDelay = time.Second

// Guard is a single-flight gate ensuring at most one scan request is
// being initiated at a time. Duplicate acquisitions, whether from rapid
// repeated clicks or duplicate effect firing, are dropped silently; that
// is debouncing, not an error condition. The guard holds no state beyond
// the in-flight flag and is process-local.
type Guard struct {
	mu       sync.Mutex
	inFlight bool

	// after schedules the delayed self-release; injectable for tests.
	after func(time.Duration, func())
}

// NewGuard creates a released guard.
func NewGuard() *Guard {
	return &Guard{after: func(d time.Duration, f func()) { time.AfterFunc(d, f) }}
}

// TryAcquire attempts to take the gate. It returns true exactly once per
// release; concurrent or repeated callers get false and must drop their
// request without surfacing an error.
func (g *Guard) TryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight {
		return false
	}
	g.inFlight = true
	return true
}

// Release reopens the gate. Safe to call when already released.
func (g *Guard) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inFlight = false
}

// ReleaseAfter schedules Release after d, independent of the real
// operation's completion. Callers that acquired the gate use this to
// bound the debounce window.
func (g *Guard) ReleaseAfter(d time.Duration) {
	g.after(d, g.Release)
}
