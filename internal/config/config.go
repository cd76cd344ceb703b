// Package config provides configuration management for driftwatch.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultConfigDir  = ".config/driftwatch"
	DefaultConfigFile = "config.yaml"

	DefaultNomadAddress = "http://localhost:4646"
	DefaultListen       = ":3000"
	DefaultInterval     = 15 * time.Minute
	DefaultTimeout      = 30 * time.Second
)

// validate is the shared validator instance.
var validate = validator.New()

// Config represents the full driftwatch configuration.
type Config struct {
	Nomad     NomadConfig     `mapstructure:"nomad" validate:"required"`
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Reconcile ReconcileConfig `mapstructure:"reconcile" validate:"required"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Log       LogConfig       `mapstructure:"log"`
}

// NomadConfig holds the connection settings for the Nomad API.
type NomadConfig struct {
	// Address is the base URL of the Nomad API.
	Address string `mapstructure:"address" validate:"required,url"`

	// EventStream enables the event-stream listener, which triggers
	// out-of-cycle reconciliations when the cluster changes.
	EventStream bool `mapstructure:"event_stream"`
}

// ServerConfig holds the metrics HTTP server settings.
type ServerConfig struct {
	// Listen is the address the metrics endpoint binds to.
	Listen string `mapstructure:"listen" validate:"required"`
}

// ReconcileConfig holds reconciliation loop settings.
type ReconcileConfig struct {
	// Interval is the pause between reconciliation cycles.
	Interval time.Duration `mapstructure:"interval" validate:"required,min=1s"`
}

// RegistryConfig holds outbound registry client settings.
type RegistryConfig struct {
	// Timeout bounds each registry request.
	Timeout time.Duration `mapstructure:"timeout" validate:"omitempty,min=1s"`

	// Insecure switches registry requests to plain HTTP. Test clusters only.
	Insecure bool `mapstructure:"insecure"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Verbosity raises the log level: 0 info, 1+ debug, negative error-only.
	Verbosity int `mapstructure:"verbosity"`

	// JSON switches to machine-readable log output.
	JSON bool `mapstructure:"json"`
}

// Validate checks the configuration for errors using struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Loader provides configuration loading.
type Loader struct {
	v    *viper.Viper
	path string
}

// NewLoader creates a new configuration loader. When path is empty the
// default location under the user's config directory is used.
func NewLoader(path string) (*Loader, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		path = filepath.Join(home, DefaultConfigDir, DefaultConfigFile)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Environment variable binding
	v.SetEnvPrefix("DRIFTWATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Bind specific env vars to config keys. NOMAD_ADDR is honored as a
	// fallback since every Nomad tool understands it.
	// We intentionally ignore errors here as BindEnv only fails if called with zero arguments.
	//nolint:errcheck // BindEnv only fails with zero arguments
	v.BindEnv("nomad.address", "DRIFTWATCH_NOMAD_ADDRESS", "NOMAD_ADDR")
	//nolint:errcheck // BindEnv only fails with zero arguments
	v.BindEnv("nomad.event_stream", "DRIFTWATCH_NOMAD_EVENT_STREAM")
	//nolint:errcheck // BindEnv only fails with zero arguments
	v.BindEnv("server.listen", "DRIFTWATCH_SERVER_LISTEN")
	//nolint:errcheck // BindEnv only fails with zero arguments
	v.BindEnv("reconcile.interval", "DRIFTWATCH_RECONCILE_INTERVAL")
	//nolint:errcheck // BindEnv only fails with zero arguments
	v.BindEnv("log.json", "DRIFTWATCH_LOG_JSON")

	l := &Loader{v: v, path: path}
	l.setDefaults()

	return l, nil
}

// setDefaults sets all default configuration values using Viper.
func (l *Loader) setDefaults() {
	l.v.SetDefault("nomad.address", DefaultNomadAddress)
	l.v.SetDefault("nomad.event_stream", false)
	l.v.SetDefault("server.listen", DefaultListen)
	l.v.SetDefault("reconcile.interval", DefaultInterval)
	l.v.SetDefault("registry.timeout", DefaultTimeout)
	l.v.SetDefault("registry.insecure", false)
	l.v.SetDefault("log.verbosity", 0)
	l.v.SetDefault("log.json", false)
}

// Load reads the configuration, creating the default file if it doesn't
// exist.
func (l *Loader) Load() (*Config, error) {
	if _, err := os.Stat(l.path); os.IsNotExist(err) {
		if err := l.createDefault(); err != nil {
			return nil, fmt.Errorf("create default config: %w", err)
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Path returns the configuration file path.
func (l *Loader) Path() string {
	return l.path
}

// createDefault writes the default configuration file using Viper.
func (l *Loader) createDefault() error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	return l.v.SafeWriteConfigAs(l.path)
}
