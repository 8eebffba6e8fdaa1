package fake

import (
	"context"
	"sync"

	"github.com/genzj/docker-warp-connect/internal/adapter/fake/fault"
	"github.com/genzj/docker-warp-connect/internal/check"
	"github.com/genzj/docker-warp-connect/internal/warp"
)

var _ warp.ContainerRuntime = (*Runtime)(nil)

const (
	FaultRuntimeList      = "runtime.list_containers"
	FaultRuntimeInspect   = "runtime.inspect"
	FaultRuntimeSubscribe = "runtime.subscribe_events"
)

// Runtime is an in-memory implementation of warp.ContainerRuntime. Tests
// populate containers through Put and push events through Emit.
type Runtime struct {
	CallRecorder

	mu         sync.Mutex
	containers map[string]warp.ContainerInfo
	faults     *fault.Injector

	events chan warp.ContainerEvent
	errs   chan error
}

func NewRuntime() *Runtime {
	return &Runtime{
		containers: make(map[string]warp.ContainerInfo),
		faults:     fault.NewInjector(),
	}
}

func (r *Runtime) FailOnce(point string, err error)        { r.faults.FailOnce(point, err) }
func (r *Runtime) FailAlways(point string, err error)       { r.faults.FailAlways(point, err) }
func (r *Runtime) SetFaultHook(point string, hook fault.Hook) { r.faults.SetHook(point, hook) }
func (r *Runtime) ClearFault(point string)                  { r.faults.Clear(point) }
func (r *Runtime) ResetFaults()                              { r.faults.Reset() }

func (r *Runtime) evalFault(point string, args ...any) error {
	check.Assert(r != nil, "fake.Runtime.evalFault: receiver must not be nil")
	if r == nil {
		return nil
	}
	return r.faults.Eval(point, args...)
}

// Put inserts or replaces a container record.
func (r *Runtime) Put(c warp.ContainerInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.containers[c.ID] = c
}

// Remove deletes a container record, simulating it having vanished.
func (r *Runtime) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.containers, id)
}

func (r *Runtime) ListContainers(ctx context.Context, includeStopped bool) ([]warp.ContainerInfo, error) {
	r.record("ListContainers", includeStopped)
	if err := r.evalFault(FaultRuntimeList, ctx, includeStopped); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]warp.ContainerInfo, 0, len(r.containers))
	for _, c := range r.containers {
		if !includeStopped && c.State != warp.StateRunning {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *Runtime) Inspect(ctx context.Context, id string) (warp.ContainerInfo, error) {
	r.record("Inspect", id)
	if err := r.evalFault(FaultRuntimeInspect, ctx, id); err != nil {
		return warp.ContainerInfo{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.containers[id]
	if !ok {
		return warp.ContainerInfo{}, warp.ErrContainerNotFound
	}
	return c, nil
}

// SubscribeEvents returns the channel pair Emit/Fail write into. Only one
// subscriber is supported at a time, matching how the Loop uses it.
func (r *Runtime) SubscribeEvents(ctx context.Context) (<-chan warp.ContainerEvent, <-chan error, error) {
	r.record("SubscribeEvents")
	if err := r.evalFault(FaultRuntimeSubscribe, ctx); err != nil {
		return nil, nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = make(chan warp.ContainerEvent, 16)
	r.errs = make(chan error, 1)
	return r.events, r.errs, nil
}

// Emit delivers an event to the current subscriber, if any.
func (r *Runtime) Emit(e warp.ContainerEvent) {
	r.mu.Lock()
	ch := r.events
	r.mu.Unlock()
	if ch != nil {
		ch <- e
	}
}

// Fail delivers a stream error to the current subscriber, if any.
func (r *Runtime) Fail(err error) {
	r.mu.Lock()
	ch := r.errs
	r.mu.Unlock()
	if ch != nil {
		ch <- err
	}
}
