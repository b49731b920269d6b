// Package config provides configuration management for the brs-dap server.
//
// Configuration controls:
//   - Capability mode (readonly vs full): which MCP tools are exposed
//   - Listen addresses for the DAP, MCP and metrics endpoints
//   - The device adapter used for new sessions
//   - Safety limits: maximum sessions and session idle timeout
//
// Configuration is read from an optional JSON or YAML file through viper, with
// BRSDAP_-prefixed environment variables taking precedence over the file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ctagard/brs-dap/internal/log"
)

// CapabilityMode defines the level of control exposed to MCP clients
type CapabilityMode string

const (
	ModeReadOnly CapabilityMode = "readonly" // Only inspection tools
	ModeFull     CapabilityMode = "full"     // Inspection and execution control
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "BRSDAP"

// DefaultFiles selects what a BrightScript channel ships when a launch
// configuration does not say otherwise.
var DefaultFiles = []string{
	"manifest",
	"source/**/*",
	"components/**/*",
	"images/**/*",
}

// Config holds the server configuration
type Config struct {
	// Capability levels
	Mode          CapabilityMode `mapstructure:"mode" json:"mode"`
	AllowEvaluate bool           `mapstructure:"allowEvaluate" json:"allowEvaluate"`

	// Listen is the DAP TCP address. Empty serves DAP over stdio.
	Listen string `mapstructure:"listen" json:"listen"`
	// MCPAddr enables the MCP streamable HTTP endpoint when set.
	MCPAddr string `mapstructure:"mcpAddr" json:"mcpAddr"`
	// MetricsAddr enables the Prometheus /metrics endpoint when set.
	MetricsAddr string `mapstructure:"metricsAddr" json:"metricsAddr"`

	// Adapter names the registered device adapter used for new sessions.
	Adapter string `mapstructure:"adapter" json:"adapter"`
	// Files are the default staging globs.
	Files []string `mapstructure:"files" json:"files"`

	// Limits for safety
	MaxSessions    int           `mapstructure:"maxSessions" json:"maxSessions"`
	SessionTimeout time.Duration `mapstructure:"sessionTimeout" json:"sessionTimeout"`

	Log log.Config `mapstructure:"log" json:"log"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Mode:           ModeReadOnly,
		AllowEvaluate:  true,
		Adapter:        "telnet",
		Files:          append([]string(nil), DefaultFiles...),
		MaxSessions:    4,
		SessionTimeout: 30 * time.Minute,
		Log:            *log.DefaultConfig(),
	}
}

// LoadConfig loads configuration from a JSON or YAML file, then applies
// environment overrides. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	def := DefaultConfig()

	v := viper.New()
	v.SetDefault("mode", string(def.Mode))
	v.SetDefault("allowEvaluate", def.AllowEvaluate)
	v.SetDefault("listen", def.Listen)
	v.SetDefault("mcpAddr", def.MCPAddr)
	v.SetDefault("metricsAddr", def.MetricsAddr)
	v.SetDefault("adapter", def.Adapter)
	v.SetDefault("files", def.Files)
	v.SetDefault("maxSessions", def.MaxSessions)
	v.SetDefault("sessionTimeout", def.SessionTimeout)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", string(def.Log.Format))
	v.SetDefault("log.addSource", def.Log.AddSource)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Log.Output = def.Log.Output

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field values that viper cannot type-check.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeReadOnly, ModeFull:
	default:
		return fmt.Errorf("invalid mode %q: expected %q or %q", c.Mode, ModeReadOnly, ModeFull)
	}
	if c.MaxSessions < 1 {
		return fmt.Errorf("maxSessions must be at least 1, got %d", c.MaxSessions)
	}
	if c.SessionTimeout < 0 {
		return fmt.Errorf("sessionTimeout must not be negative, got %s", c.SessionTimeout)
	}
	return nil
}

// CanUseControlTools returns true if execution control tools are enabled
func (c *Config) CanUseControlTools() bool {
	return c.Mode == ModeFull
}

// CanEvaluate returns true if expression evaluation is allowed
func (c *Config) CanEvaluate() bool {
	return c.AllowEvaluate
}
