package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/thinkd/internal/flexibility"
	"github.com/fyrsmithlabs/thinkd/internal/options"
)

// Duration wraps time.Duration with YAML/JSON text support ("5s", "2m").
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if parsed < 0 {
		return fmt.Errorf("duration cannot be negative: %s", text)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration().String()), nil
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration().String())
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Store backends.
const (
	StoreFile   = "file"
	StoreMemory = "memory"
)

// StoreConfig selects and configures the session persistence backend.
type StoreConfig struct {
	// Backend is "file" or "memory".
	Backend string `koanf:"backend"`

	// Path is the session directory for the file backend.
	Path string `koanf:"path"`

	// MemoryFallback degrades to the in-memory backend when the file
	// backend cannot be initialized, instead of refusing to start.
	MemoryFallback bool `koanf:"memory_fallback"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is "json" or "console".
	Format string `koanf:"format"`

	// Quiet drops the log output to stderr-only errors. The stdio
	// transport owns stdout, so logs never go there regardless.
	Quiet bool `koanf:"quiet"`
}

// ServerConfig configures the sidecar HTTP listener (health, metrics).
type ServerConfig struct {
	// Enabled starts the listener. Off by default: a stdio tool server
	// does not need an open port.
	Enabled bool `koanf:"enabled"`

	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// TelemetryConfig configures the OTLP exporters.
type TelemetryConfig struct {
	Enabled        bool   `koanf:"enabled"`
	Endpoint       string `koanf:"endpoint"`
	ServiceName    string `koanf:"service_name"`
	ServiceVersion string `koanf:"service_version"`

	// Insecure disables TLS; only allowed for local endpoints.
	Insecure bool `koanf:"insecure"`

	MetricInterval  Duration `koanf:"metric_interval"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// Config is the full thinkd configuration document.
type Config struct {
	Store     StoreConfig     `koanf:"store"`
	Log       LogConfig       `koanf:"log"`
	Server    ServerConfig    `koanf:"server"`
	Telemetry TelemetryConfig `koanf:"telemetry"`

	// Tracker holds the flexibility scoring constants.
	Tracker flexibility.Config `koanf:"tracker"`

	// Options configures option generation.
	Options options.Config `koanf:"options"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreFile, StoreMemory:
	default:
		return fmt.Errorf("store.backend must be %q or %q, got %q", StoreFile, StoreMemory, c.Store.Backend)
	}
	if c.Store.Backend == StoreFile && c.Store.Path == "" {
		return fmt.Errorf("store.path is required for the file backend")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn, or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}

	if c.Server.Enabled {
		if c.Server.Port < 1 || c.Server.Port > 65535 {
			return fmt.Errorf("server.port must be in [1,65535], got %d", c.Server.Port)
		}
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.Endpoint == "" {
			return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
		}
		if c.Telemetry.ServiceName == "" {
			return fmt.Errorf("telemetry.service_name is required when telemetry is enabled")
		}
		if c.Telemetry.Insecure && !isLocalEndpoint(c.Telemetry.Endpoint) {
			return fmt.Errorf("insecure telemetry is only allowed for local endpoints, got %q", c.Telemetry.Endpoint)
		}
	}

	if c.Tracker.Baseline < 0 || c.Tracker.Baseline > 1 {
		return fmt.Errorf("tracker.baseline must be in [0,1], got %f", c.Tracker.Baseline)
	}
	if c.Options.TargetCount < 1 {
		return fmt.Errorf("options.target_count must be >= 1, got %d", c.Options.TargetCount)
	}

	return nil
}
