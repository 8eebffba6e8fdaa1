package warp

import "context"

// ContainerEventAction is the lifecycle transition carried by a ContainerEvent.
type ContainerEventAction string

const (
	ActionStart ContainerEventAction = "start"
	ActionStop  ContainerEventAction = "stop"
)

// ContainerEvent is one entry in the Runtime Client's event stream.
type ContainerEvent struct {
	ContainerID string
	Action      ContainerEventAction
}

// ContainerRuntime is the narrow interface the core requires of a
// container runtime (§4.1, §6). Adapters live outside the core, e.g.
// internal/adapter/docker.
type ContainerRuntime interface {
	// ListContainers returns a snapshot. Networks may be empty; callers
	// that need network attachments must call Inspect.
	ListContainers(ctx context.Context, includeStopped bool) ([]ContainerInfo, error)

	// Inspect returns the full record for one container. Returns
	// ErrContainerNotFound if it no longer exists.
	Inspect(ctx context.Context, id string) (ContainerInfo, error)

	// SubscribeEvents returns an infinite stream of lifecycle events.
	// The returned channel is closed (with an error delivered via the
	// second return, read once) when the stream breaks.
	SubscribeEvents(ctx context.Context) (<-chan ContainerEvent, <-chan error, error)
}

// NetlinkTransport is the narrow interface the core requires to
// manipulate routes once inside a namespace (§4.5, §6). It must be
// opened after namespace entry so it binds to the target namespace.
type NetlinkTransport interface {
	AddRoute(route RouteEntry) error
	DelRoute(route RouteEntry) error
	ListRoutes() ([]RouteEntry, error)
}

// NamespaceEntry opens a network namespace and returns a NetlinkTransport
// bound to it, plus a function that releases the namespace handle and
// restores the caller's original namespace. Restoration MUST happen on
// every path, success or failure (§4.5 step 2).
//
// Implementations must serialize concurrent entries onto a single
// execution context (§4.5 Concurrency) since entering a namespace
// mutates thread-scoped state.
type NamespaceEntry interface {
	Enter(ns NetworkNamespace) (NetlinkTransport, func() error, error)
}
