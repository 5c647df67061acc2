package assignment

import "sync"

// LicenceTracker is the licence-token semaphore: a fixed pool of tokens per
// named licence (e.g. a renderer's floating seat count), shared across
// ticks. The assignment loop acquires a token before dispatching a command
// that declares a Licence and releases it once the command reaches a
// terminal status; the release call is made by whatever observes that
// completion (internal/depengine.RecordCommandResult's caller), since the
// loop itself never waits on a command to finish.
type LicenceTracker struct {
	mu       sync.Mutex
	capacity map[string]int
	inUse    map[string]int
}

// NewLicenceTracker builds a tracker from a fixed capacity-per-licence map.
// A licence name absent from capacity is treated as unlimited.
func NewLicenceTracker(capacity map[string]int) *LicenceTracker {
	return &LicenceTracker{capacity: capacity, inUse: map[string]int{}}
}

// Acquire reserves one token for name, reporting false if the pool is
// exhausted. An empty name always succeeds (no licence required).
func (l *LicenceTracker) Acquire(name string) bool {
	if name == "" {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	cap, limited := l.capacity[name]
	if limited && l.inUse[name] >= cap {
		return false
	}
	l.inUse[name]++
	return true
}

// Release returns one token for name. A no-op for an empty name or a name
// already at zero in-use.
func (l *LicenceTracker) Release(name string) {
	if name == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inUse[name] > 0 {
		l.inUse[name]--
	}
}

// SetCapacity changes the token limit for name, used by the control API's
// licence-quota endpoint. Lowering capacity below the current in-use count
// does not revoke already-acquired tokens; it only blocks new acquisitions
// until enough are released.
func (l *LicenceTracker) SetCapacity(name string, tokens int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.capacity == nil {
		l.capacity = map[string]int{}
	}
	l.capacity[name] = tokens
}

// InUse reports the current token count held for name, for metrics.
func (l *LicenceTracker) InUse(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inUse[name]
}
