package config

import (
	"fmt"
	"os"
	"strconv"
)

// ApplyEnv overrides scalar fields from WARP_-prefixed environment
// variables. Routing rules are not overridable this way: their nested
// shape does not map cleanly onto flat env vars, so they are set from
// the file only (no CLI flag sets them either).
func ApplyEnv(cfg Config) (Config, error) {
	if v, ok := os.LookupEnv("WARP_WARP_CONTAINER_PATTERN"); ok {
		cfg.WarpContainerPattern = v
	}
	if v, ok := os.LookupEnv("WARP_TARGET_CONTAINER_LABEL"); ok {
		cfg.TargetContainerLabel = v
	}
	if v, ok := os.LookupEnv("WARP_NETWORK_PREFERENCE_LABEL"); ok {
		cfg.NetworkPreferenceLabel = v
	}
	if v, ok := os.LookupEnv("WARP_DOCKER_CONNECTION_METHOD"); ok {
		cfg.DockerConnectionMethod = DockerConnectionMethod(v)
	}
	if v, ok := os.LookupEnv("WARP_DOCKER_SOCKET"); ok {
		cfg.DockerSocket = v
	}
	if v, ok := os.LookupEnv("WARP_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("WARP_RETRY_DELAY_SECONDS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("WARP_RETRY_DELAY_SECONDS: %w", err)
		}
		cfg.RetryDelaySeconds = n
	}
	if v, ok := os.LookupEnv("WARP_RETRY_MAX_ATTEMPTS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("WARP_RETRY_MAX_ATTEMPTS: %w", err)
		}
		cfg.RetryMaxAttempts = n
	}
	return cfg, nil
}
