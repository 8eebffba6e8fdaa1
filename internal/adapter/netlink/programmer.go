//go:build linux

// Package netlink implements warp.NamespaceEntry and warp.NetlinkTransport
// by entering a container's network namespace and manipulating its routing
// table with vishvananda/netlink.
package netlink

import (
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"sync"
	"syscall"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"

	"github.com/genzj/docker-warp-connect/internal/warp"
)

var _ warp.NamespaceEntry = (*Programmer)(nil)

// Programmer enters network namespaces and programs routes inside them.
// Its Enter method serializes every call on a single mutex: entering a
// namespace reassigns the calling OS thread's namespace, so two Enters
// racing on different goroutines scheduled onto the same thread would
// corrupt each other (§4.5 Concurrency).
type Programmer struct {
	mu sync.Mutex
}

func NewProgrammer() *Programmer {
	return &Programmer{}
}

// Enter locks the current goroutine to its OS thread, switches that
// thread into ns, and returns a NetlinkTransport bound to it. The
// release function restores the thread's original namespace and frees
// the lock; it must be called exactly once, on every path, whether
// Enter's caller succeeds or fails.
func (p *Programmer) Enter(ns warp.NetworkNamespace) (warp.NetlinkTransport, func() error, error) {
	p.mu.Lock()
	runtime.LockOSThread()

	origin, err := netns.Get()
	if err != nil {
		runtime.UnlockOSThread()
		p.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: capture current namespace: %v", warp.ErrNamespaceAccess, err)
	}

	target, err := netns.GetFromPath(ns.Path)
	if err != nil {
		origin.Close()
		runtime.UnlockOSThread()
		p.mu.Unlock()
		return nil, nil, mapNamespaceError(ns.Path, err)
	}

	if err := netns.Set(target); err != nil {
		target.Close()
		origin.Close()
		runtime.UnlockOSThread()
		p.mu.Unlock()
		return nil, nil, mapNamespaceError(ns.Path, err)
	}

	released := false
	release := func() error {
		if released {
			return nil
		}
		released = true
		err := netns.Set(origin)
		target.Close()
		origin.Close()
		runtime.UnlockOSThread()
		p.mu.Unlock()
		if err != nil {
			return fmt.Errorf("%w: restore origin namespace: %v", warp.ErrNamespaceAccess, err)
		}
		return nil
	}

	return &transport{}, release, nil
}

func mapNamespaceError(path string, err error) error {
	if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
		return fmt.Errorf("%w: %s: %v", warp.ErrInsufficientPrivileges, path, err)
	}
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ENOENT) {
		return fmt.Errorf("%w: %s: %v", warp.ErrNamespaceAccess, path, err)
	}
	return fmt.Errorf("%w: %s: %v", warp.ErrNamespaceAccess, path, err)
}

// transport issues netlink route calls against whatever namespace is
// current on the calling thread. It must only be used between a
// successful Programmer.Enter and its release.
type transport struct{}

func (t *transport) AddRoute(r warp.RouteEntry) error {
	route, err := toNetlinkRoute(r)
	if err != nil {
		return err
	}
	if err := netlink.RouteAdd(route); err != nil {
		if errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
			return fmt.Errorf("%w: %v", warp.ErrInsufficientPrivileges, err)
		}
		return err
	}
	return nil
}

func (t *transport) DelRoute(r warp.RouteEntry) error {
	route, err := toNetlinkRoute(r)
	if err != nil {
		return err
	}
	if err := netlink.RouteDel(route); err != nil {
		if errors.Is(err, syscall.ESRCH) || errors.Is(err, syscall.ENOENT) {
			// Already gone; removal is idempotent.
			return nil
		}
		return fmt.Errorf("%w: %v", warp.ErrRemoveRoute, err)
	}
	return nil
}

func (t *transport) ListRoutes() ([]warp.RouteEntry, error) {
	raw, err := netlink.RouteList(nil, netlink.FAMILY_ALL)
	if err != nil {
		return nil, fmt.Errorf("%w: list routes: %v", warp.ErrNamespaceAccess, err)
	}

	out := make([]warp.RouteEntry, 0, len(raw))
	for _, rt := range raw {
		if rt.Dst == nil || rt.Gw == nil {
			continue
		}
		prefix, _ := rt.Dst.Mask.Size()
		var ifaceName string
		if rt.LinkIndex > 0 {
			if link, err := netlink.LinkByIndex(rt.LinkIndex); err == nil {
				ifaceName = link.Attrs().Name
			}
		}
		out = append(out, warp.RouteEntry{
			Destination: warp.IPNetwork{IP: rt.Dst.IP, Prefix: prefix},
			Gateway:     rt.Gw,
			Interface:   ifaceName,
			Metric:      rt.Priority,
		})
	}
	return out, nil
}

func toNetlinkRoute(r warp.RouteEntry) (*netlink.Route, error) {
	bits := 32
	if !r.Destination.IsIPv4() {
		bits = 128
	}
	route := &netlink.Route{
		Dst: &net.IPNet{
			IP:   r.Destination.IP,
			Mask: net.CIDRMask(r.Destination.Prefix, bits),
		},
		Gw:       r.Gateway,
		Priority: r.Metric,
	}
	if r.Interface != "" {
		link, err := netlink.LinkByName(r.Interface)
		if err != nil {
			return nil, fmt.Errorf("%w: interface %s: %v", warp.ErrInvalidRoute, r.Interface, err)
		}
		route.LinkIndex = link.Attrs().Index
	}
	return route, nil
}
