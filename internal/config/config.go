// Package config loads and validates the daemon's configuration record
// (§6): a TOML file, overridden by WARP_-prefixed environment variables,
// overridden in turn by CLI flags. The result feeds internal/warp, which
// never reads the file, environment, or flags itself.
package config

import (
	"fmt"
	"strings"

	"github.com/genzj/docker-warp-connect/internal/warp"
)

// DockerConnectionMethod names the Docker transport. It is validated and
// printed by dump-config, but the Docker adapter reads neither it nor
// DockerSocket: it connects with the Docker client's environment settings
// (DOCKER_HOST, DOCKER_CERT_PATH, DOCKER_TLS_VERIFY).
type DockerConnectionMethod string

const (
	ConnectionSocket DockerConnectionMethod = "socket"
	ConnectionHTTP   DockerConnectionMethod = "http"
	ConnectionSSL    DockerConnectionMethod = "ssl"
)

// Config is the validated record the core is wired against (§6). Field
// names mirror the TOML keys in snake_case; see toml.go for the decode
// shape and env.go for the WARP_ override mapping.
type Config struct {
	WarpContainerPattern   string                  `toml:"warp_container_pattern"`
	TargetContainerLabel   string                  `toml:"target_container_label"`
	NetworkPreferenceLabel string                  `toml:"network_preference_label"`
	RoutingRules           []warp.RoutingRule      `toml:"-"`
	RawRoutingRules        []routingRuleTOML       `toml:"routing_rules"`
	DockerConnectionMethod DockerConnectionMethod  `toml:"docker_connection_method"`
	DockerSocket           string                  `toml:"docker_socket"`
	LogLevel               string                  `toml:"log_level"`

	RetryDelaySeconds int `toml:"retry_delay_seconds"`
	RetryMaxAttempts  int `toml:"retry_max_attempts"`
}

type routingRuleTOML struct {
	Destination string `toml:"destination"`
	Protocol    string `toml:"protocol"`
	PortStart   uint16 `toml:"port_start"`
	PortEnd     uint16 `toml:"port_end"`
}

// Defaults returns the loader-supplied defaults named in §6.
func Defaults() Config {
	return Config{
		WarpContainerPattern:   "warp-*",
		TargetContainerLabel:   "network.warp.target",
		NetworkPreferenceLabel: "network.warp.network",
		RawRoutingRules:        []routingRuleTOML{{Destination: "0.0.0.0/0"}},
		DockerConnectionMethod: ConnectionSocket,
		DockerSocket:           "/var/run/docker.sock",
		LogLevel:               "info",
		RetryDelaySeconds:      5,
		RetryMaxAttempts:       10,
	}
}

// Validate resolves RawRoutingRules into RoutingRules and checks that
// every required field is set. It must run after file, env, and flag
// layers have all applied.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.WarpContainerPattern) == "" {
		return fmt.Errorf("warp_container_pattern must not be empty")
	}
	if strings.TrimSpace(c.TargetContainerLabel) == "" {
		return fmt.Errorf("target_container_label must not be empty")
	}
	switch c.DockerConnectionMethod {
	case ConnectionSocket, ConnectionHTTP, ConnectionSSL:
	default:
		return fmt.Errorf("docker_connection_method: unrecognized %q", c.DockerConnectionMethod)
	}
	if strings.TrimSpace(c.DockerSocket) == "" {
		return fmt.Errorf("docker_socket must not be empty")
	}
	if c.RetryDelaySeconds <= 0 {
		return fmt.Errorf("retry_delay_seconds must be positive")
	}
	if c.RetryMaxAttempts <= 0 {
		return fmt.Errorf("retry_max_attempts must be positive")
	}

	rules := make([]warp.RoutingRule, 0, len(c.RawRoutingRules))
	for _, r := range c.RawRoutingRules {
		if strings.TrimSpace(r.Destination) == "" {
			return fmt.Errorf("routing_rules: destination must not be empty")
		}
		rule := warp.RoutingRule{Destination: r.Destination, Protocol: r.Protocol}
		if r.PortStart != 0 || r.PortEnd != 0 {
			rule.PortRange = &warp.PortRange{Start: r.PortStart, End: r.PortEnd}
		}
		rules = append(rules, rule)
	}
	c.RoutingRules = rules
	return nil
}
