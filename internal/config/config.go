// ABOUTME: Configuration loading and parsing for lcu-gateway
// ABOUTME: Reads YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable that overrides the config location.
const EnvConfigPath = "LCU_GATEWAY_CONFIG"

// Config represents the complete lcu-gateway configuration
type Config struct {
	Client    ClientConfig    `yaml:"client" toml:"client"`
	Events    EventsConfig    `yaml:"events" toml:"events"`
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry"`
}

// ClientConfig locates and authenticates the local control plane
type ClientConfig struct {
	Host               string `yaml:"host" toml:"host"`
	Port               int    `yaml:"port" toml:"port"`
	AuthToken          string `yaml:"auth_token" toml:"auth_token"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify" toml:"insecure_skip_verify"`

	RequestTimeout    time.Duration `yaml:"-" toml:"-"`
	RequestTimeoutRaw string        `yaml:"request_timeout" toml:"request_timeout"`
}

// EventsConfig tunes the event stream
type EventsConfig struct {
	// LogURIs are resources whose events are written to the debug log.
	LogURIs []string `yaml:"log_uris" toml:"log_uris"`

	ReconnectInitial time.Duration `yaml:"-" toml:"-"`
	ReconnectMax     time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	ReconnectInitialRaw string `yaml:"reconnect_initial" toml:"reconnect_initial"`
	ReconnectMaxRaw     string `yaml:"reconnect_max" toml:"reconnect_max"`
}

// ServerConfig holds the host-facing HTTP address
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled" toml:"enabled"`
	Exporter    string  `yaml:"exporter" toml:"exporter"`
	Endpoint    string  `yaml:"endpoint" toml:"endpoint"`
	ServiceName string  `yaml:"service_name" toml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate" toml:"sample_rate"`
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
	exporters  = []string{"otlp-http", "stdout", "none"}
)

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{
		Client: ClientConfig{
			Host:               "127.0.0.1",
			InsecureSkipVerify: true,
			RequestTimeoutRaw:  "10s",
		},
		Events: EventsConfig{
			ReconnectInitialRaw: "1s",
			ReconnectMaxRaw:     "30s",
		},
		Server: ServerConfig{
			HTTPAddr: "127.0.0.1:8089",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			Exporter:    "none",
			ServiceName: "lcu-gateway",
			SampleRate:  1.0,
		},
	}
	// Defaults always parse.
	_ = parseDurations(cfg)
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded and
// keys absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads path, falling back to Default when the file does not
// exist. Any other read, parse, or validation failure is returned.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// ResolvePath picks the config file location. Priority: explicit flag value,
// then LCU_GATEWAY_CONFIG, then $XDG_CONFIG_HOME/lcu-gateway/config.yaml
// (falling back to ~/.config).
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml"
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "lcu-gateway", "config.yaml")
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(re.FindStringSubmatch(match)[1])
	})
}

// Validate checks that all configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
// An empty client.port or client.auth_token is allowed; initialization
// then reports the credential as unresolved.
func (c *Config) Validate() error {
	if c.Client.Host == "" {
		return fmt.Errorf("client.host is required")
	}
	if c.Client.Port < 0 || c.Client.Port > 65535 {
		return fmt.Errorf("client.port %d is out of range", c.Client.Port)
	}
	if c.Client.RequestTimeout <= 0 {
		return fmt.Errorf("client.request_timeout must be positive")
	}

	if c.Events.ReconnectInitial <= 0 {
		return fmt.Errorf("events.reconnect_initial must be positive")
	}
	if c.Events.ReconnectMax < c.Events.ReconnectInitial {
		return fmt.Errorf("events.reconnect_max must not be less than events.reconnect_initial")
	}
	for _, uri := range c.Events.LogURIs {
		if !strings.HasPrefix(uri, "/") {
			return fmt.Errorf("events.log_uris entry %q must start with /", uri)
		}
	}

	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}
	if _, _, err := net.SplitHostPort(c.Server.HTTPAddr); err != nil {
		return fmt.Errorf("server.http_addr %q: %w", c.Server.HTTPAddr, err)
	}

	if !slices.Contains(logLevels, strings.ToLower(c.Logging.Level)) {
		return fmt.Errorf("logging.level %q must be one of %s", c.Logging.Level, strings.Join(logLevels, ", "))
	}
	if !slices.Contains(logFormats, strings.ToLower(c.Logging.Format)) {
		return fmt.Errorf("logging.format %q must be one of %s", c.Logging.Format, strings.Join(logFormats, ", "))
	}

	if c.Telemetry.Enabled && !slices.Contains(exporters, c.Telemetry.Exporter) {
		return fmt.Errorf("telemetry.exporter %q must be one of %s", c.Telemetry.Exporter, strings.Join(exporters, ", "))
	}
	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate %v must be between 0 and 1", c.Telemetry.SampleRate)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"client.request_timeout", cfg.Client.RequestTimeoutRaw, &cfg.Client.RequestTimeout},
		{"events.reconnect_initial", cfg.Events.ReconnectInitialRaw, &cfg.Events.ReconnectInitial},
		{"events.reconnect_max", cfg.Events.ReconnectMaxRaw, &cfg.Events.ReconnectMax},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}
