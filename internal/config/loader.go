package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

var validate = validator.New()

// Load builds a Config by layering sources, lowest precedence first:
//
//  1. Default()
//  2. YAML file named by MEETCORE_CONFIG, when set
//  3. MEETCORE_-prefixed environment variables (MEETCORE_ADDR,
//     MEETCORE_STORAGE_DRIVER, ...)
//
// The merged configuration is validated before it is returned.
func Load() (Config, error) {
	cfg := Default()

	k := koanf.New(".")

	if path := os.Getenv("MEETCORE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("%w: file %s: %v", ErrLoadConfig, path, err)
		}
	}

	// MEETCORE_LOG_LEVEL -> log_level, matching the koanf tags. MEETCORE_CONFIG
	// is the file path above, not a key; houses arrive comma-separated.
	envProvider := env.ProviderWithValue("MEETCORE_", ".", func(key, value string) (string, any) {
		name := strings.ToLower(strings.TrimPrefix(key, "MEETCORE_"))
		switch name {
		case "config":
			return "", nil
		case "houses":
			return name, splitList(value)
		}
		return name, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("%w: environment: %v", ErrLoadConfig, err)
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
