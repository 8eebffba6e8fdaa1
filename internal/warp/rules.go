package warp

import (
	"fmt"
	"net"
)

// Metric convention: smaller is higher priority. Host routes override
// explicit rule routes, which override the default route (§4.4).
const (
	metricHost    = 50
	metricRule    = 100
	metricDefault = 200
)

// RuleEngine translates declarative RoutingRules plus a gateway IP into
// concrete RouteEntry values (§4.4). It is stateless; the ledger it
// feeds is owned by the event loop.
type RuleEngine struct{}

func NewRuleEngine() *RuleEngine { return &RuleEngine{} }

// Compute produces one RouteEntry per rule, in input order, validates
// each, and rejects the whole batch if any two routes conflict.
func (e *RuleEngine) Compute(rules []RoutingRule, gateway net.IP, iface string) ([]RouteEntry, error) {
	routes := make([]RouteEntry, 0, len(rules))
	for _, rule := range rules {
		route, err := e.computeOne(rule, gateway, iface)
		if err != nil {
			return nil, err
		}
		routes = append(routes, route)
	}

	if err := detectConflicts(routes); err != nil {
		return nil, err
	}

	return routes, nil
}

func (e *RuleEngine) computeOne(rule RoutingRule, gateway net.IP, iface string) (RouteEntry, error) {
	ip, ipNet, err := net.ParseCIDR(rule.Destination)
	if err != nil {
		return RouteEntry{}, fmt.Errorf("%w: %s: %v", ErrInvalidRoute, rule.Destination, err)
	}

	prefix, _ := ipNet.Mask.Size()
	dest := IPNetwork{IP: ip, Prefix: prefix}

	route := RouteEntry{
		Destination: dest,
		Gateway:     gateway,
		Interface:   iface,
		Metric:      metricRule,
	}

	if err := validateRoute(route); err != nil {
		return RouteEntry{}, err
	}
	return route, nil
}

// DefaultRoute returns the catch-all route (0.0.0.0/0 or ::/0, matching
// gateway's family) at metric 200.
func (e *RuleEngine) DefaultRoute(gateway net.IP) (RouteEntry, error) {
	var dest IPNetwork
	if gateway.To4() != nil {
		dest = IPNetwork{IP: net.IPv4zero, Prefix: 0}
	} else {
		dest = IPNetwork{IP: net.IPv6zero, Prefix: 0}
	}
	route := RouteEntry{Destination: dest, Gateway: gateway, Metric: metricDefault}
	if err := validateRoute(route); err != nil {
		return RouteEntry{}, err
	}
	return route, nil
}

// HostRoute returns a /32 or /128 route to a single host at metric 50,
// overriding both rule and default routes.
func (e *RuleEngine) HostRoute(host, gateway net.IP) (RouteEntry, error) {
	prefix := 32
	if host.To4() == nil {
		prefix = 128
	}
	route := RouteEntry{
		Destination: IPNetwork{IP: host, Prefix: prefix},
		Gateway:     gateway,
		Metric:      metricHost,
	}
	if err := validateRoute(route); err != nil {
		return RouteEntry{}, err
	}
	return route, nil
}

func validateRoute(r RouteEntry) error {
	if !r.SameFamily() {
		return fmt.Errorf("%w: destination and gateway address family mismatch", ErrInvalidRoute)
	}
	maxPrefix := 32
	if !r.Destination.IsIPv4() {
		maxPrefix = 128
	}
	if r.Destination.Prefix < 0 || r.Destination.Prefix > maxPrefix {
		return fmt.Errorf("%w: prefix %d out of range for family", ErrInvalidRoute, r.Destination.Prefix)
	}
	if r.Metric == 0 {
		return fmt.Errorf("%w: metric must not be zero", ErrInvalidRoute)
	}
	return nil
}

// detectConflicts enforces §4.4: two routes conflict iff they share an
// identical destination but have different gateways. Overlapping-but-
// not-equal destinations are not conflicts.
func detectConflicts(routes []RouteEntry) error {
	gatewayByDest := make(map[string]string, len(routes))
	for _, r := range routes {
		key := r.Destination.String()
		gw := r.Gateway.String()
		if existing, ok := gatewayByDest[key]; ok {
			if existing != gw {
				return fmt.Errorf("%w: destination %s routed via both %s and %s", ErrRouteConflict, key, existing, gw)
			}
			continue
		}
		gatewayByDest[key] = gw
	}
	return nil
}
