// Package docker implements warp.ContainerRuntime on top of the Docker
// Engine API.
package docker

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"

	"github.com/genzj/docker-warp-connect/internal/warp"
)

var _ warp.ContainerRuntime = (*Runtime)(nil)

// Runtime implements warp.ContainerRuntime using the Docker Engine API.
type Runtime struct {
	cli *client.Client
}

// NewRuntime creates a Runtime from a Docker client built from the
// environment (DOCKER_HOST / DOCKER_CERT_PATH / DOCKER_TLS_VERIFY),
// negotiating the API version with the daemon.
func NewRuntime() (*Runtime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &Runtime{cli: cli}, nil
}

// NewRuntimeFromClient wraps an existing Docker client.
func NewRuntimeFromClient(cli *client.Client) *Runtime {
	return &Runtime{cli: cli}
}

// Client returns the underlying Docker client, for WaitReady and callers
// that still need low-level access.
func (r *Runtime) Client() *client.Client { return r.cli }

// Close releases the underlying client connection.
func (r *Runtime) Close() error { return r.cli.Close() }

func (r *Runtime) ListContainers(ctx context.Context, includeStopped bool) ([]warp.ContainerInfo, error) {
	summaries, err := r.cli.ContainerList(ctx, container.ListOptions{All: includeStopped})
	if err != nil {
		return nil, fmt.Errorf("%w: list containers: %v", warp.ErrRuntimeTransport, err)
	}

	infos := make([]warp.ContainerInfo, 0, len(summaries))
	for _, s := range summaries {
		name := strings.TrimPrefix(firstOrEmpty(s.Names), "/")
		infos = append(infos, warp.ContainerInfo{
			ID:     s.ID,
			Name:   name,
			Labels: s.Labels,
			State:  stateFromSummary(s.State),
		})
	}
	return infos, nil
}

func (r *Runtime) Inspect(ctx context.Context, id string) (warp.ContainerInfo, error) {
	info, err := r.cli.ContainerInspect(ctx, id)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return warp.ContainerInfo{}, warp.ErrContainerNotFound
		}
		return warp.ContainerInfo{}, fmt.Errorf("%w: inspect %s: %v", warp.ErrRuntimeTransport, id, err)
	}

	out := warp.ContainerInfo{
		ID:     info.ID,
		Name:   strings.TrimPrefix(info.Name, "/"),
		Labels: info.Config.Labels,
		State:  stateFromInspect(info.State),
	}
	if info.State != nil {
		out.PID = info.State.Pid
	}
	if info.NetworkSettings != nil {
		for name, n := range info.NetworkSettings.Networks {
			if n == nil {
				continue
			}
			ni := warp.NetworkInfo{
				Name:      name,
				IPAddress: net.ParseIP(n.IPAddress),
				Gateway:   net.ParseIP(n.Gateway),
			}
			if ip := net.ParseIP(n.IPAddress); ip != nil && n.IPPrefixLen > 0 {
				bits := 32
				if ip.To4() == nil {
					bits = 128
				}
				ni.Subnet = &net.IPNet{IP: ip.Mask(net.CIDRMask(n.IPPrefixLen, bits)), Mask: net.CIDRMask(n.IPPrefixLen, bits)}
			}
			out.Networks = append(out.Networks, ni)
		}
	}
	return out, nil
}

// SubscribeEvents streams container-typed start/stop events. Other
// event types and actions are filtered out before reaching the
// returned channel, matching warp.ContainerEventAction's vocabulary.
func (r *Runtime) SubscribeEvents(ctx context.Context) (<-chan warp.ContainerEvent, <-chan error, error) {
	f := filters.NewArgs()
	f.Add("type", string(events.ContainerEventType))
	f.Add("event", string(events.ActionStart))
	f.Add("event", string(events.ActionStop))
	f.Add("event", string(events.ActionDie))

	raw, rawErrs := r.cli.Events(ctx, events.ListOptions{Filters: f})

	out := make(chan warp.ContainerEvent)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-rawErrs:
				if !ok {
					return
				}
				errs <- fmt.Errorf("%w: %v", warp.ErrStreamBroken, err)
				return
			case msg, ok := <-raw:
				if !ok {
					return
				}
				action, ok := translateAction(msg.Action)
				if !ok {
					continue
				}
				select {
				case out <- warp.ContainerEvent{ContainerID: msg.Actor.ID, Action: action}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, errs, nil
}

func translateAction(a events.Action) (warp.ContainerEventAction, bool) {
	switch a {
	case events.ActionStart:
		return warp.ActionStart, true
	case events.ActionStop, events.ActionDie:
		return warp.ActionStop, true
	default:
		return "", false
	}
}

func stateFromSummary(s string) warp.ContainerState {
	switch s {
	case "running":
		return warp.StateRunning
	case "created", "restarting":
		return warp.StateStarting
	default:
		return warp.StateStopped
	}
}

func stateFromInspect(s *container.State) warp.ContainerState {
	if s == nil {
		return warp.StateStopped
	}
	switch {
	case s.Running:
		return warp.StateRunning
	case s.Restarting:
		return warp.StateStarting
	default:
		return warp.StateStopped
	}
}

func firstOrEmpty(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return names[0]
}
