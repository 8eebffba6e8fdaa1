package warp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	defaultRetryDelay       = 5 * time.Second
	defaultRetryMaxAttempts = 10
)

// Handler observes container lifecycle events dispatched by the Loop.
// The built-in routing handler (always registered first) performs the
// §4.6 install/remove logic; additional handlers registered via
// RegisterHandler run afterward in registration order and are intended
// for tests and auxiliary bookkeeping. A handler's error is logged and
// never stops the loop or subsequent handlers (§4.6 "Handler fan-out").
type Handler interface {
	HandleEvent(ctx context.Context, event ContainerEvent) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event ContainerEvent) error

func (f HandlerFunc) HandleEvent(ctx context.Context, event ContainerEvent) error { return f(ctx, event) }

// LoopConfig collects the Loop's dependencies. All fields except
// RouteInterface, RetryDelay/RetryMaxAttempts and the metrics hooks are
// required.
type LoopConfig struct {
	Runtime    ContainerRuntime
	Classifier *Classifier
	Resolver   *Resolver
	Rules      *RuleEngine
	Namespace  NamespaceEntry
	Ledger     *Ledger

	RoutingRules   []RoutingRule
	RouteInterface string // optional, attached to every computed route

	RetryDelay       time.Duration
	RetryMaxAttempts int

	// Metrics hooks; nil is safe. Wired to OpenTelemetry counters by
	// internal/telemetry in production (see SPEC_FULL.md E.1).
	OnRoutesInstalled func(n int)
	OnRoutesRemoved   func(n int)
	OnSubscribeRetry  func(attempt int)
}

// Loop is the Event Loop & Bookkeeping component (§4.6). It is not
// safe to call Run concurrently with itself; events are processed
// strictly one at a time on whichever goroutine calls Run.
type Loop struct {
	cfg      LoopConfig
	handlers []Handler
	routing  *routingHandler
}

// NewLoop constructs a Loop with its built-in routing handler already
// registered as the first handler.
func NewLoop(cfg LoopConfig) *Loop {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.RetryMaxAttempts <= 0 {
		cfg.RetryMaxAttempts = defaultRetryMaxAttempts
	}
	routing := &routingHandler{cfg: cfg}
	return &Loop{cfg: cfg, handlers: []Handler{routing}, routing: routing}
}

// RegisterHandler appends a handler to the fan-out list. It takes no
// lock, and dispatch reads the list without one, so a registration is
// not synchronized with a Run executing on another goroutine.
func (l *Loop) RegisterHandler(h Handler) {
	l.handlers = append(l.handlers, h)
}

// Run reconciles existing containers, then consumes the event
// subscription until ctx is canceled or the stream fails permanently.
// A canceled ctx causes Run to finish any in-flight dispatch and
// return ctx.Err(); partial route installs are rolled back by the
// routing handler itself before that return.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.reconcile(ctx); err != nil {
		return err
	}

	events, errs, err := l.subscribeWithRetry(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				continue
			}
			slog.Warn("event stream broken, resubscribing", "err", err)
			events, errs, err = l.subscribeWithRetry(ctx)
			if err != nil {
				return err
			}
		case event, ok := <-events:
			if !ok {
				events, errs, err = l.subscribeWithRetry(ctx)
				if err != nil {
					return err
				}
				continue
			}
			l.dispatch(ctx, event)
		}
	}
}

// reconcile implements §4.6 Start-up: list running containers and
// process each as if it had just emitted a start event. This happens
// strictly before the first subscription event is consumed.
func (l *Loop) reconcile(ctx context.Context) error {
	containers, err := l.cfg.Runtime.ListContainers(ctx, false)
	if err != nil {
		return fmt.Errorf("%w: initial container list: %v", ErrRuntimeTransport, err)
	}
	for _, c := range containers {
		l.dispatch(ctx, ContainerEvent{ContainerID: c.ID, Action: ActionStart})
	}
	return nil
}

func (l *Loop) dispatch(ctx context.Context, event ContainerEvent) {
	for _, h := range l.handlers {
		if err := h.HandleEvent(ctx, event); err != nil {
			slog.Warn("handler failed", "container", event.ContainerID, "action", event.Action, "err", err)
		}
	}
}

// subscribeWithRetry retries the event subscription with a fixed delay
// up to RetryMaxAttempts times (§4.6 Retry policy). Per-event errors
// are never retried here, only the subscription itself.
func (l *Loop) subscribeWithRetry(ctx context.Context) (<-chan ContainerEvent, <-chan error, error) {
	var lastErr error
	for attempt := 1; attempt <= l.cfg.RetryMaxAttempts; attempt++ {
		events, errs, err := l.cfg.Runtime.SubscribeEvents(ctx)
		if err == nil {
			return events, errs, nil
		}
		lastErr = err
		if l.cfg.OnSubscribeRetry != nil {
			l.cfg.OnSubscribeRetry(attempt)
		}
		slog.Warn("event subscription failed, retrying", "attempt", attempt, "err", err)
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(l.cfg.RetryDelay):
		}
	}
	return nil, nil, fmt.Errorf("%w: subscription failed after %d attempts: %v", ErrStreamBroken, l.cfg.RetryMaxAttempts, lastErr)
}

// routingHandler implements the §4.6 on-start / on-stop logic. It is
// always the first handler in a Loop.
type routingHandler struct {
	cfg LoopConfig
}

func (r *routingHandler) HandleEvent(ctx context.Context, event ContainerEvent) error {
	switch event.Action {
	case ActionStart:
		return r.handleStart(ctx, event.ContainerID)
	case ActionStop:
		return r.handleStop(ctx, event.ContainerID)
	default:
		return nil
	}
}

func (r *routingHandler) handleStart(ctx context.Context, id string) error {
	container, err := r.cfg.Runtime.Inspect(ctx, id)
	if err != nil {
		if errors.Is(err, ErrContainerNotFound) {
			slog.Debug("container gone before inspection", "container", id)
			return nil
		}
		return fmt.Errorf("%w: inspect %s: %v", ErrRuntimeTransport, id, err)
	}

	classification := r.cfg.Classifier.Classify(container)
	switch classification.Kind {
	case KindIgnored, KindWarp:
		return nil
	}

	warp, err := r.findWarp(ctx, classification.WarpTargetName)
	if err != nil {
		slog.Warn("skipping target: warp lookup failed", "target", id, "warp_name", classification.WarpTargetName, "err", err)
		return err
	}

	warpClassification := r.cfg.Classifier.Classify(warp)
	if warpClassification.Kind != KindWarp {
		err := newClassificationError(ErrWarpInvalid, warp.ID)
		slog.Warn("skipping target: referenced warp invalid", "target", id, "warp", warp.ID, "err", err)
		return err
	}

	gateway, err := r.cfg.Resolver.ResolveIP(warp)
	if err != nil {
		slog.Warn("skipping target: gateway resolution failed", "target", id, "warp", warp.ID, "err", err)
		return err
	}

	routes, err := r.cfg.Rules.Compute(r.cfg.RoutingRules, gateway, r.cfg.RouteInterface)
	if err != nil {
		slog.Error("skipping target: route computation failed", "target", id, "err", err)
		return err
	}

	ns := NetworkNamespace{Path: procNetNSPath(container.PID), ContainerID: id}
	if err := r.installRoutes(ns, routes); err != nil {
		return err
	}

	r.cfg.Ledger.Record(id, routes)
	if r.cfg.OnRoutesInstalled != nil {
		r.cfg.OnRoutesInstalled(len(routes))
	}
	slog.Info("routes installed", "target", id, "warp", warp.ID, "gateway", gateway.String(), "count", len(routes))
	return nil
}

// installRoutes adds routes in order; on the first failure it rolls
// back everything already installed, in reverse order, before
// returning an error that wraps ErrAddRoute (or ErrInsufficientPrivileges)
// and carries the failing call's message (§4.6 step e, Testable Property 7).
func (r *routingHandler) installRoutes(ns NetworkNamespace, routes []RouteEntry) error {
	transport, release, err := r.cfg.Namespace.Enter(ns)
	if err != nil {
		return err
	}
	defer release()

	installed := make([]RouteEntry, 0, len(routes))
	for _, route := range routes {
		if err := transport.AddRoute(route); err != nil {
			for i := len(installed) - 1; i >= 0; i-- {
				if rerr := transport.DelRoute(installed[i]); rerr != nil {
					slog.Error("rollback: failed to remove partially installed route", "route", installed[i].Destination.String(), "err", rerr)
				}
			}
			if errors.Is(err, ErrInsufficientPrivileges) {
				return fmt.Errorf("%w: %v", ErrInsufficientPrivileges, err)
			}
			return fmt.Errorf("%w: %v", ErrAddRoute, err)
		}
		installed = append(installed, route)
	}
	return nil
}

func (r *routingHandler) handleStop(ctx context.Context, id string) error {
	routes, ok := r.cfg.Ledger.Take(id)
	if !ok {
		return nil
	}

	container, err := r.cfg.Runtime.Inspect(ctx, id)
	if err != nil {
		// Container gone: its namespace is gone with it, and the
		// routes are gone with the namespace (§4.6 step 1).
		slog.Debug("stop: container already gone, treating route removal as successful", "container", id)
		return nil
	}

	ns := NetworkNamespace{Path: procNetNSPath(container.PID), ContainerID: id}
	transport, release, err := r.cfg.Namespace.Enter(ns)
	if err != nil {
		if errors.Is(err, ErrNamespaceAccess) {
			slog.Debug("stop: namespace no longer accessible, treating as successful", "container", id)
			return nil
		}
		return err
	}
	defer release()

	for i := len(routes) - 1; i >= 0; i-- {
		if err := transport.DelRoute(routes[i]); err != nil {
			slog.Error("remove route failed", "container", id, "route", routes[i].Destination.String(), "err", err)
		}
	}
	if r.cfg.OnRoutesRemoved != nil {
		r.cfg.OnRoutesRemoved(len(routes))
	}
	slog.Info("routes removed", "target", id, "count", len(routes))
	return nil
}

// findWarp resolves a warp container by exact name match (§4.6 step 3a).
func (r *routingHandler) findWarp(ctx context.Context, name string) (ContainerInfo, error) {
	containers, err := r.cfg.Runtime.ListContainers(ctx, true)
	if err != nil {
		return ContainerInfo{}, fmt.Errorf("%w: list containers: %v", ErrRuntimeTransport, err)
	}

	var matches []ContainerInfo
	for _, c := range containers {
		if c.Name == name {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
		return ContainerInfo{}, newClassificationError(ErrWarpMissing, name)
	case 1:
		return r.cfg.Runtime.Inspect(ctx, matches[0].ID)
	default:
		return ContainerInfo{}, newClassificationError(ErrAmbiguousWarp, name)
	}
}

func procNetNSPath(pid int) string {
	return fmt.Sprintf("/proc/%d/ns/net", pid)
}
