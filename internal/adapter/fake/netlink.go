package fake

import (
	"sync"

	"github.com/genzj/docker-warp-connect/internal/adapter/fake/fault"
	"github.com/genzj/docker-warp-connect/internal/warp"
)

var _ warp.NamespaceEntry = (*NamespaceEntry)(nil)

const (
	FaultNamespaceEnter = "namespace.enter"
	FaultRouteAdd       = "namespace.add_route"
	FaultRouteDel       = "namespace.del_route"
)

// NamespaceEntry is an in-memory implementation of warp.NamespaceEntry.
// Each namespace path maps to an independent, ordered slice of routes;
// Enter fails outright for paths registered via Deny, simulating a
// namespace that has vanished or is not accessible.
type NamespaceEntry struct {
	CallRecorder

	mu      sync.Mutex
	routes  map[string][]warp.RouteEntry
	denied  map[string]error
	faults  *fault.Injector
	entries int
}

func NewNamespaceEntry() *NamespaceEntry {
	return &NamespaceEntry{
		routes: make(map[string][]warp.RouteEntry),
		denied: make(map[string]error),
		faults: fault.NewInjector(),
	}
}

func (n *NamespaceEntry) FailOnce(point string, err error)   { n.faults.FailOnce(point, err) }
func (n *NamespaceEntry) FailAlways(point string, err error) { n.faults.FailAlways(point, err) }
func (n *NamespaceEntry) SetFaultHook(point string, hook fault.Hook) { n.faults.SetHook(point, hook) }
func (n *NamespaceEntry) ResetFaults()                       { n.faults.Reset() }

// Deny makes every later Enter for this path fail with err, simulating an
// inaccessible or vanished namespace.
func (n *NamespaceEntry) Deny(path string, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.denied[path] = err
}

// Routes returns a snapshot of the routes currently installed in a namespace.
func (n *NamespaceEntry) Routes(path string) []warp.RouteEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]warp.RouteEntry, len(n.routes[path]))
	copy(out, n.routes[path])
	return out
}

func (n *NamespaceEntry) Enter(ns warp.NetworkNamespace) (warp.NetlinkTransport, func() error, error) {
	n.record("Enter", ns.Path)

	n.mu.Lock()
	if err, ok := n.denied[ns.Path]; ok {
		n.mu.Unlock()
		return nil, nil, err
	}
	n.entries++
	n.mu.Unlock()

	if err := n.faults.Eval(FaultNamespaceEnter, ns.Path); err != nil {
		return nil, nil, err
	}

	t := &transport{owner: n, path: ns.Path}
	release := func() error {
		n.mu.Lock()
		n.entries--
		n.mu.Unlock()
		return nil
	}
	return t, release, nil
}

type transport struct {
	owner *NamespaceEntry
	path  string
}

func (t *transport) AddRoute(r warp.RouteEntry) error {
	t.owner.record("AddRoute", t.path, r)
	if err := t.owner.faults.Eval(FaultRouteAdd, t.path, r); err != nil {
		return err
	}
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	t.owner.routes[t.path] = append(t.owner.routes[t.path], r)
	return nil
}

func (t *transport) DelRoute(r warp.RouteEntry) error {
	t.owner.record("DelRoute", t.path, r)
	if err := t.owner.faults.Eval(FaultRouteDel, t.path, r); err != nil {
		return err
	}
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	routes := t.owner.routes[t.path]
	for i, existing := range routes {
		if existing.Destination.String() == r.Destination.String() {
			t.owner.routes[t.path] = append(routes[:i], routes[i+1:]...)
			return nil
		}
	}
	return nil
}

func (t *transport) ListRoutes() ([]warp.RouteEntry, error) {
	t.owner.record("ListRoutes", t.path)
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	out := make([]warp.RouteEntry, len(t.owner.routes[t.path]))
	copy(out, t.owner.routes[t.path])
	return out, nil
}
