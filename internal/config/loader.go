package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load failures split into two kinds so callers can tell a broken source
// (missing file, malformed YAML) from a value that parsed but is unusable.
var (
	ErrLoadConfig    = errors.New("load config failed")
	ErrInvalidConfig = errors.New("invalid config")
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if STUDYLAKE_CONFIG is set
//  3. env (prefix STUDYLAKE_)
func Load(ctx context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("STUDYLAKE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: STUDYLAKE_ADDR, STUDYLAKE_POSTGRES_DSN, ...
	// Underscores are preserved to match the koanf tags on the struct.
	envProvider := env.Provider("STUDYLAKE_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "studylake_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	switch {
	case cfg.Addr == "":
		return nil, fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case cfg.RefreshIntervalSeconds <= 0:
		return nil, fmt.Errorf("%w: refresh_interval_seconds must be positive", ErrInvalidConfig)
	case cfg.WriterCount <= 0:
		return nil, fmt.Errorf("%w: writer_count must be positive", ErrInvalidConfig)
	}
	return &cfg, nil
}
