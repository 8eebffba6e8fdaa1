package warp

import (
	"errors"
	"net"
	"testing"
)

func TestResolveIPSingleNetwork(t *testing.T) {
	r := NewResolver("network.warp.network")
	container := ContainerInfo{
		ID: "warp1",
		Networks: []NetworkInfo{
			{Name: "bridge", IPAddress: net.ParseIP("172.17.0.5")},
		},
	}

	ip, err := r.ResolveIP(container)
	if err != nil {
		t.Fatalf("ResolveIP: %v", err)
	}
	if !ip.Equal(net.ParseIP("172.17.0.5")) {
		t.Errorf("ResolveIP = %v, want 172.17.0.5", ip)
	}
}

func TestResolveIPMultiNetworkWithPreference(t *testing.T) {
	r := NewResolver("network.warp.network")
	container := ContainerInfo{
		ID:     "warp1",
		Labels: map[string]string{"network.warp.network": "egress"},
		Networks: []NetworkInfo{
			{Name: "bridge", IPAddress: net.ParseIP("172.17.0.5")},
			{Name: "egress", IPAddress: net.ParseIP("10.1.0.5")},
		},
	}

	ip, err := r.ResolveIP(container)
	if err != nil {
		t.Fatalf("ResolveIP: %v", err)
	}
	if !ip.Equal(net.ParseIP("10.1.0.5")) {
		t.Errorf("ResolveIP = %v, want 10.1.0.5 (the preferred network)", ip)
	}
}

func TestResolveIPMultiNetworkWithoutPreferenceFails(t *testing.T) {
	r := NewResolver("network.warp.network")
	container := ContainerInfo{
		ID: "warp1",
		Networks: []NetworkInfo{
			{Name: "bridge", IPAddress: net.ParseIP("172.17.0.5")},
			{Name: "egress", IPAddress: net.ParseIP("10.1.0.5")},
		},
	}

	_, err := r.ResolveIP(container)
	if !errors.Is(err, ErrNoPreference) {
		t.Fatalf("ResolveIP error = %v, want ErrNoPreference", err)
	}
}

func TestResolveIPPreferredNetworkMissing(t *testing.T) {
	r := NewResolver("network.warp.network")
	container := ContainerInfo{
		ID:     "warp1",
		Labels: map[string]string{"network.warp.network": "egress"},
		Networks: []NetworkInfo{
			{Name: "bridge", IPAddress: net.ParseIP("172.17.0.5")},
			{Name: "internal", IPAddress: net.ParseIP("10.2.0.5")},
		},
	}

	_, err := r.ResolveIP(container)
	if !errors.Is(err, ErrPreferredNetworkMissing) {
		t.Fatalf("ResolveIP error = %v, want ErrPreferredNetworkMissing", err)
	}
}

func TestResolveIPNoNetworks(t *testing.T) {
	r := NewResolver("network.warp.network")
	container := ContainerInfo{ID: "warp1"}

	_, err := r.ResolveIP(container)
	if !errors.Is(err, ErrNoNetwork) {
		t.Fatalf("ResolveIP error = %v, want ErrNoNetwork", err)
	}
}

func TestResolveNamedBypassesLabel(t *testing.T) {
	r := NewResolver("network.warp.network")
	container := ContainerInfo{
		ID: "warp1",
		Networks: []NetworkInfo{
			{Name: "bridge", IPAddress: net.ParseIP("172.17.0.5")},
			{Name: "egress", IPAddress: net.ParseIP("10.1.0.5")},
		},
	}

	ip, err := r.ResolveNamed(container, "egress")
	if err != nil {
		t.Fatalf("ResolveNamed: %v", err)
	}
	if !ip.Equal(net.ParseIP("10.1.0.5")) {
		t.Errorf("ResolveNamed = %v, want 10.1.0.5", ip)
	}
}

func TestResolverIsTotal(t *testing.T) {
	// Every combination of network count/preference must return either a
	// valid IP or one of the Network Resolver's sentinel errors, never a
	// panic or an unwrapped error.
	r := NewResolver("network.warp.network")
	cases := []ContainerInfo{
		{ID: "a"},
		{ID: "b", Networks: []NetworkInfo{{Name: "only", IPAddress: net.ParseIP("10.0.0.1")}}},
		{ID: "c", Networks: []NetworkInfo{{Name: "a"}, {Name: "b"}}},
	}
	for _, c := range cases {
		_, err := r.ResolveIP(c)
		if err != nil &&
			!errors.Is(err, ErrNoNetwork) &&
			!errors.Is(err, ErrNoPreference) &&
			!errors.Is(err, ErrPreferredNetworkMissing) {
			t.Errorf("ResolveIP(%+v) returned unrecognized error: %v", c, err)
		}
	}
}
