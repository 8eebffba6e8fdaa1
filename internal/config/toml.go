package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// LoadFile decodes a TOML file on top of base, leaving fields absent from
// the file untouched. A missing path is not an error: the caller passed
// no --config flag and defaults-plus-env still apply.
func LoadFile(path string, base Config) (Config, error) {
	if path == "" {
		return base, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return base, nil
	}

	cfg := base
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return base, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}
