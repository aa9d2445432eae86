// Package config defines the process configuration for the competition
// server and its layered loading: baked-in defaults, an optional YAML file,
// then environment variables.
package config

import (
	"log/slog"
)

// Config holds everything the server binary needs at startup. Koanf tags
// double as the YAML keys and, uppercased with the MEETCORE_ prefix, as the
// environment variable names.
type Config struct {
	// Addr is the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr" validate:"required"`

	// LogLevel controls slog verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// StorageDriver selects the persistent store backend.
	StorageDriver string `koanf:"storage_driver" validate:"required,oneof=memory sqlite postgres"`

	// SQLitePath locates the sqlite database file when storage_driver=sqlite.
	SQLitePath string `koanf:"sqlite_path" validate:"required_if=StorageDriver sqlite"`

	// PostgresDSN is the connection string when storage_driver=postgres.
	PostgresDSN string `koanf:"postgres_dsn" validate:"required_if=StorageDriver postgres"`

	// BlobDriver selects the snapshot blob backend.
	BlobDriver string `koanf:"blob_driver" validate:"required,oneof=memory fs s3"`

	// BlobFSRoot is the directory root when blob_driver=fs.
	BlobFSRoot string `koanf:"blob_fs_root" validate:"required_if=BlobDriver fs"`

	// S3 settings apply when blob_driver=s3. Credentials come from the
	// standard AWS environment or the default chain.
	BlobS3Bucket    string `koanf:"blob_s3_bucket" validate:"required_if=BlobDriver s3"`
	BlobS3Region    string `koanf:"blob_s3_region"`
	BlobS3Endpoint  string `koanf:"blob_s3_endpoint"`
	BlobS3PathStyle bool   `koanf:"blob_s3_path_style"`

	// Houses whitelists house names for competitor and relay team
	// registration. An empty list admits any house.
	Houses []string `koanf:"houses"`

	// StrictAllocations rejects allocation tables containing defective
	// entries instead of dropping them with a warning.
	StrictAllocations bool `koanf:"strict_allocations"`

	// Metrics enables the Prometheus /metrics endpoint.
	Metrics bool `koanf:"metrics"`

	// Trace enables JSON span logging for service operations.
	Trace bool `koanf:"trace"`
}

// Default returns the baked-in configuration. The default house list mirrors
// the embedded rulebook; TestDefaultHousesMatchRulebook keeps them in sync.
func Default() Config {
	return Config{
		Addr:          ":8080",
		LogLevel:      "info",
		StorageDriver: "sqlite",
		SQLitePath:    "./meetcore.db",
		BlobDriver:    "fs",
		BlobFSRoot:    "./blobstore",
		Houses:        []string{"Ignis", "Nereus", "Ventus", "Terra"},
		Metrics:       true,
	}
}

// Level maps the configured log level onto slog. Validation restricts the
// field to the four supported names, so unknown input never reaches here in
// a loaded Config; the fallback keeps the zero value usable.
func (c Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
