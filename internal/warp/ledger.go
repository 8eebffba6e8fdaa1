package warp

import "sync"

// Ledger is the in-memory mapping from target container id to the
// ordered sequence of routes installed for it (§3 ContainerRouteLedger).
// It is the only persistent state the core keeps; per §5 it is mutated
// only from the event loop's single-writer execution context, but the
// mutex makes it safe to inspect from tests and other goroutines too.
type Ledger struct {
	mu      sync.Mutex
	entries map[string][]RouteEntry
}

func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string][]RouteEntry)}
}

// Record stores the routes installed for a container, created lazily.
func (l *Ledger) Record(containerID string, routes []RouteEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := make([]RouteEntry, len(routes))
	copy(cp, routes)
	l.entries[containerID] = cp
}

// Take removes and returns the routes recorded for a container, if any.
func (l *Ledger) Take(containerID string) ([]RouteEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	routes, ok := l.entries[containerID]
	delete(l.entries, containerID)
	return routes, ok
}

// Has reports whether a container currently has recorded routes.
func (l *Ledger) Has(containerID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.entries[containerID]
	return ok
}

// Len returns the number of containers currently tracked, for tests/metrics.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
