package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix = "NEARBY_"
	envFile   = "NEARBY_CONFIG"
)

var listKeys = map[string]struct{}{ //nolint:gochecknoglobals // fixed key set
	"cors_allowed_origins": {},
}

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if NEARBY_CONFIG is set
//  3. env (prefix NEARBY_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// NEARBY_QUEUE_SIZE -> queue_size; underscores are kept to match the
	// flat koanf tags. List keys take comma separated values.
	envProvider := env.ProviderWithValue(envPrefix, ".", func(key, value string) (string, any) {
		if key == envFile {
			return "", nil
		}
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(envPrefix))
		if _, ok := listKeys[key]; ok {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: time_zone: %w", ErrInvalidConfig, err)
	}
	return nil
}

func splitList(v string) []string {
	out := make([]string, 0, strings.Count(v, ",")+1)
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
