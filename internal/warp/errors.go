package warp

import (
	"errors"
	"fmt"
)

// Sentinel error kinds per spec.md §7. Each is terminal for the
// triggering event unless noted otherwise; callers distinguish them
// with errors.Is.
var (
	// ErrContainerNotFound: the container died before it could be inspected.
	ErrContainerNotFound = errors.New("warp: container not found")

	// ErrAmbiguousWarp: more than one container matched the referenced warp name.
	ErrAmbiguousWarp = errors.New("warp: ambiguous warp container name")
	// ErrWarpMissing: zero containers matched the referenced warp name.
	ErrWarpMissing = errors.New("warp: warp container not found")
	// ErrWarpInvalid: the referenced container exists but does not validate as a warp.
	ErrWarpInvalid = errors.New("warp: referenced container is not a valid warp")

	// ErrNoPreference: multiple networks attached, no preference label set.
	ErrNoPreference = errors.New("warp: no network preference set for multi-network container")
	// ErrPreferredNetworkMissing: preference label set but no matching attachment.
	ErrPreferredNetworkMissing = errors.New("warp: preferred network not attached")
	// ErrNoNetwork: zero networks attached.
	ErrNoNetwork = errors.New("warp: container has no attached networks")

	// ErrInvalidRoute: a rule failed to parse or validate into a route.
	ErrInvalidRoute = errors.New("warp: invalid route")
	// ErrRouteConflict: two computed routes share a destination but disagree on gateway.
	ErrRouteConflict = errors.New("warp: conflicting routes")

	// ErrNamespaceAccess: the namespace path is missing, or exists but could not be entered/used.
	ErrNamespaceAccess = errors.New("warp: network namespace inaccessible")
	// ErrInsufficientPrivileges: permission denied entering the namespace or using netlink.
	ErrInsufficientPrivileges = errors.New("warp: insufficient privileges")
	// ErrAddRoute / ErrRemoveRoute: netlink-level failures, transport message attached via %w.
	ErrAddRoute    = errors.New("warp: add route failed")
	ErrRemoveRoute = errors.New("warp: remove route failed")

	// ErrRuntimeTransport: transient failure talking to the runtime; retry the subscription.
	ErrRuntimeTransport = errors.New("warp: runtime transport error")
	// ErrStreamBroken: the event subscription stream ended.
	ErrStreamBroken = errors.New("warp: event stream broken")
)

// classificationError wraps one of the Classification sentinels with the
// offending container id for logging.
type classificationError struct {
	sentinel    error
	containerID string
}

func (e *classificationError) Error() string {
	return fmt.Sprintf("%s (container %s)", e.sentinel, e.containerID)
}

func (e *classificationError) Unwrap() error { return e.sentinel }

func newClassificationError(sentinel error, containerID string) error {
	return &classificationError{sentinel: sentinel, containerID: containerID}
}

// resolveError wraps one of the Network Resolver sentinels with the
// offending container id.
type resolveError struct {
	sentinel    error
	containerID string
}

func (e *resolveError) Error() string {
	return fmt.Sprintf("%s (container %s)", e.sentinel, e.containerID)
}

func (e *resolveError) Unwrap() error { return e.sentinel }

func newResolveError(sentinel error, containerID string) error {
	return &resolveError{sentinel: sentinel, containerID: containerID}
}
