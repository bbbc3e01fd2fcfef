package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if SYNHEART_CONFIG is set
//  3. env (prefix SYNHEART_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("SYNHEART_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: SYNHEART_ADDR, SYNHEART_TENANT_ID, ...
	// Underscores are preserved to match the koanf tags on the struct.
	envProvider := env.Provider("SYNHEART_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "synheart_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.TenantID == "":
		return fmt.Errorf("%w: tenant_id must not be empty", ErrInvalidConfig)
	case c.ExportQueueCapacity <= 0:
		return fmt.Errorf("%w: export_queue_capacity must be positive", ErrInvalidConfig)
	case c.SmoothingAlpha <= 0 || c.SmoothingAlpha > 1:
		return fmt.Errorf("%w: smoothing_alpha must be in (0,1]", ErrInvalidConfig)
	}
	return nil
}
