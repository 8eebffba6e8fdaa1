package warp

import (
	"errors"
	"net"
	"testing"
)

func TestRuleEngineComputeSingleRule(t *testing.T) {
	e := NewRuleEngine()
	gateway := net.ParseIP("172.17.0.5")

	routes, err := e.Compute([]RoutingRule{{Destination: "10.0.0.0/8"}}, gateway, "")
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(routes) != 1 {
		t.Fatalf("len(routes) = %d, want 1", len(routes))
	}
	got := routes[0]
	if got.Destination.String() != "10.0.0.0/8" {
		t.Errorf("Destination = %v, want 10.0.0.0/8", got.Destination)
	}
	if !got.Gateway.Equal(gateway) {
		t.Errorf("Gateway = %v, want %v", got.Gateway, gateway)
	}
	if got.Metric != metricRule {
		t.Errorf("Metric = %d, want %d", got.Metric, metricRule)
	}
}

func TestRuleEngineComputePreservesOrder(t *testing.T) {
	e := NewRuleEngine()
	gateway := net.ParseIP("172.17.0.5")

	rules := []RoutingRule{
		{Destination: "10.0.0.0/8"},
		{Destination: "192.168.0.0/16"},
		{Destination: "0.0.0.0/0"},
	}
	routes, err := e.Compute(rules, gateway, "")
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	want := []string{"10.0.0.0/8", "192.168.0.0/16", "0.0.0.0/0"}
	for i, w := range want {
		if routes[i].Destination.String() != w {
			t.Errorf("routes[%d] = %v, want %v", i, routes[i].Destination, w)
		}
	}
}

func TestRuleEngineComputeInvalidCIDR(t *testing.T) {
	e := NewRuleEngine()
	_, err := e.Compute([]RoutingRule{{Destination: "not-a-cidr"}}, net.ParseIP("172.17.0.5"), "")
	if !errors.Is(err, ErrInvalidRoute) {
		t.Fatalf("Compute error = %v, want ErrInvalidRoute", err)
	}
}

func TestRuleEngineComputeFamilyMismatch(t *testing.T) {
	e := NewRuleEngine()
	_, err := e.Compute([]RoutingRule{{Destination: "2001:db8::/32"}}, net.ParseIP("172.17.0.5"), "")
	if !errors.Is(err, ErrInvalidRoute) {
		t.Fatalf("Compute error = %v, want ErrInvalidRoute for address family mismatch", err)
	}
}

func TestRuleEngineComputeIdenticalDestinationSameGatewayIsNotAConflict(t *testing.T) {
	e := NewRuleEngine()
	gateway := net.ParseIP("172.17.0.5")
	rules := []RoutingRule{
		{Destination: "10.0.0.0/8"},
		{Destination: "10.0.0.0/8"},
	}
	routes, err := e.Compute(rules, gateway, "")
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("len(routes) = %d, want 2", len(routes))
	}
}

func TestRuleEngineComputeOverlappingButUnequalIsNotAConflict(t *testing.T) {
	e := NewRuleEngine()
	gateway := net.ParseIP("172.17.0.5")
	rules := []RoutingRule{
		{Destination: "10.0.0.0/8"},
		{Destination: "10.0.0.0/16"},
	}
	_, err := e.Compute(rules, gateway, "")
	if err != nil {
		t.Fatalf("Compute: %v, want no conflict: overlapping-but-unequal destinations are allowed", err)
	}
}

func TestDetectConflictsSameDestinationDifferentGateway(t *testing.T) {
	routes := []RouteEntry{
		{Destination: IPNetwork{IP: net.ParseIP("10.0.0.0"), Prefix: 8}, Gateway: net.ParseIP("172.17.0.5"), Metric: metricRule},
		{Destination: IPNetwork{IP: net.ParseIP("10.0.0.0"), Prefix: 8}, Gateway: net.ParseIP("172.17.0.6"), Metric: metricRule},
	}
	err := detectConflicts(routes)
	if !errors.Is(err, ErrRouteConflict) {
		t.Fatalf("detectConflicts = %v, want ErrRouteConflict", err)
	}
}

func TestRuleEngineDefaultRoute(t *testing.T) {
	e := NewRuleEngine()
	gateway := net.ParseIP("172.17.0.5")

	route, err := e.DefaultRoute(gateway)
	if err != nil {
		t.Fatalf("DefaultRoute: %v", err)
	}
	if route.Destination.Prefix != 0 {
		t.Errorf("Prefix = %d, want 0", route.Destination.Prefix)
	}
	if route.Metric != metricDefault {
		t.Errorf("Metric = %d, want %d", route.Metric, metricDefault)
	}
}

func TestRuleEngineHostRouteOutranksDefaultAndRule(t *testing.T) {
	e := NewRuleEngine()
	gateway := net.ParseIP("172.17.0.5")

	host, err := e.HostRoute(net.ParseIP("172.17.0.9"), gateway)
	if err != nil {
		t.Fatalf("HostRoute: %v", err)
	}
	if host.Metric >= metricRule {
		t.Errorf("host route metric %d is not higher priority than rule metric %d", host.Metric, metricRule)
	}
	def, err := e.DefaultRoute(gateway)
	if err != nil {
		t.Fatalf("DefaultRoute: %v", err)
	}
	if host.Metric >= def.Metric {
		t.Errorf("host route metric %d is not higher priority than default metric %d", host.Metric, def.Metric)
	}
}

func TestRuleEngineRejectsZeroMetric(t *testing.T) {
	err := validateRoute(RouteEntry{
		Destination: IPNetwork{IP: net.ParseIP("10.0.0.0"), Prefix: 8},
		Gateway:     net.ParseIP("172.17.0.5"),
		Metric:      0,
	})
	if !errors.Is(err, ErrInvalidRoute) {
		t.Fatalf("validateRoute = %v, want ErrInvalidRoute for zero metric", err)
	}
}
