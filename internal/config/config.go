// Package config manages the netcored daemon configuration using koanf/v2.
//
// Supports YAML files, environment variables, and CLI flags. This is
// strictly the host daemon's own configuration — which Transport to
// drive the core over, where to persist the 5-slot identity store, log
// and metrics settings — never the embedded target's own Network
// Identity, which lives in internal/store and is never touched by
// koanf (SPEC_FULL.md §10).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete netcored configuration.
type Config struct {
	Transport TransportConfig `koanf:"transport"`
	Store     StoreConfig     `koanf:"store"`
	Console   ConsoleConfig   `koanf:"console"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Log       LogConfig       `koanf:"log"`
}

// TransportConfig selects and parameterizes the MAC/PHY Transport the
// Driver is built over (internal/machw/transport).
type TransportConfig struct {
	// Kind is one of "sim", "spi", "rawsock".
	Kind string `koanf:"kind"`
	// Device is the spidev node path for "spi" (e.g. "/dev/spidev0.0").
	Device string `koanf:"device"`
	// Interface is the Linux interface name for "rawsock" (e.g. "veth-enc0").
	Interface string `koanf:"interface"`
	// SpeedHz is the SPI clock rate for "spi".
	SpeedHz uint32 `koanf:"speed_hz"`
}

// StoreConfig selects the persistent-store backend for the 5-slot
// Network Identity (internal/store).
type StoreConfig struct {
	// Path is the backing file for a file-backed store; empty selects
	// an in-memory store, which does not survive a restart.
	Path string `koanf:"path"`
}

// ConsoleConfig configures the operator console's host-side transport.
type ConsoleConfig struct {
	// Addr is the TCP listen address a Telnet-style console is bridged
	// through (e.g. ":2323"); empty disables the console entirely.
	Addr string `koanf:"addr"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults: a
// simulated transport and an in-memory store, so `netcored` runs with
// zero configuration for local experimentation.
func DefaultConfig() *Config {
	return &Config{
		Transport: TransportConfig{
			Kind:    "sim",
			SpeedHz: 8_000_000,
		},
		Store: StoreConfig{},
		Console: ConsoleConfig{
			Addr: ":2323",
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for netcored configuration.
// Variables are named NETCORE_<section>_<key>, e.g., NETCORE_TRANSPORT_KIND.
const envPrefix = "NETCORE_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (NETCORE_ prefix), and merges on top of DefaultConfig().
// Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	NETCORE_TRANSPORT_KIND  -> transport.kind
//	NETCORE_STORE_PATH      -> store.path
//	NETCORE_CONSOLE_ADDR    -> console.addr
//	NETCORE_METRICS_ADDR    -> metrics.addr
//	NETCORE_METRICS_PATH    -> metrics.path
//	NETCORE_LOG_LEVEL       -> log.level
//	NETCORE_LOG_FORMAT      -> log.format
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load defaults first.
	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	// Load YAML file on top of defaults.
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
	}

	// Load environment variable overrides on top of YAML.
	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms NETCORE_TRANSPORT_KIND -> transport.kind.
// Strips the NETCORE_ prefix, lowercases, and replaces _ with .
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"transport.kind":     defaults.Transport.Kind,
		"transport.device":   defaults.Transport.Device,
		"transport.interface": defaults.Transport.Interface,
		"transport.speed_hz": defaults.Transport.SpeedHz,
		"store.path":         defaults.Store.Path,
		"console.addr":       defaults.Console.Addr,
		"metrics.addr":       defaults.Metrics.Addr,
		"metrics.path":       defaults.Metrics.Path,
		"log.level":          defaults.Log.Level,
		"log.format":         defaults.Log.Format,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrInvalidTransportKind indicates transport.kind is not recognized.
	ErrInvalidTransportKind = errors.New("transport.kind must be sim, spi, or rawsock")

	// ErrMissingSPIDevice indicates transport.kind=spi with no device path.
	ErrMissingSPIDevice = errors.New("transport.device must be set for transport.kind=spi")

	// ErrMissingInterface indicates transport.kind=rawsock with no interface name.
	ErrMissingInterface = errors.New("transport.interface must be set for transport.kind=rawsock")

	// ErrEmptyMetricsAddr indicates the metrics listen address is empty.
	ErrEmptyMetricsAddr = errors.New("metrics.addr must not be empty")
)

// ValidTransportKinds lists the recognized transport.kind strings.
var ValidTransportKinds = map[string]bool{
	"sim":     true,
	"spi":     true,
	"rawsock": true,
}

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if !ValidTransportKinds[cfg.Transport.Kind] {
		return ErrInvalidTransportKind
	}

	if cfg.Transport.Kind == "spi" && cfg.Transport.Device == "" {
		return ErrMissingSPIDevice
	}

	if cfg.Transport.Kind == "rawsock" && cfg.Transport.Interface == "" {
		return ErrMissingInterface
	}

	if cfg.Metrics.Addr == "" {
		return ErrEmptyMetricsAddr
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
