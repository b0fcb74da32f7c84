package overlay

import "sync"

// Accountant enforces the aggregate in-memory ceiling shared by every
// pending buffer (§4.6, §5, §6 -C/--max-cache). Bytes beyond the ceiling are
// not rejected — callers spill them to a temp file instead.
type Accountant struct {
	mu      sync.Mutex
	ceiling int64
	used    int64
}

func NewAccountant(ceilingBytes int64) *Accountant {
	return &Accountant{ceiling: ceilingBytes}
}

// TryReserve attempts to account for n additional resident bytes. It
// returns false (reserving nothing) if that would exceed the ceiling.
func (a *Accountant) TryReserve(n int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.used+n > a.ceiling {
		return false
	}
	a.used += n
	return true
}

// Release returns n resident bytes to the pool, e.g. when a buffer spills
// or is closed.
func (a *Accountant) Release(n int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.used -= n
	if a.used < 0 {
		a.used = 0
	}
}

func (a *Accountant) Used() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.used
}
