// Package config provides YAML-based configuration loading for the grader queue.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level grader queue configuration, loaded from config.yaml.
type Config struct {
	ListenPort int            `yaml:"listen_port"`
	Database   DatabaseConfig `yaml:"database"`
	Auth       AuthConfig     `yaml:"auth"`
	Solution   SolutionConfig `yaml:"solution"`
	Wake       WakeConfig     `yaml:"wake"`
	Log        LogConfig      `yaml:"log"`
	Catalog    CatalogConfig  `yaml:"catalog"`
}

// DatabaseConfig holds connection settings for the backing SQL store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // mysql, postgres or sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Path     string `yaml:"path"` // sqlite only
}

// AuthConfig controls the two authentication paths.
type AuthConfig struct {
	AcceptInterfaceTokens bool          `yaml:"accept_interface_tokens"`
	PrivateKeyFile        string        `yaml:"private_key_file"`
	TokenTTL              time.Duration `yaml:"token_ttl"`
}

// SolutionConfig tunes how solution parameters are turned into jobs.
type SolutionConfig struct {
	// DefaultExtensions maps a language to the extension used for inline
	// solution content. The "[default]" key is used for unknown languages.
	DefaultExtensions map[string]string `yaml:"default_extensions"`
	MaxUploadBytes    int64             `yaml:"max_upload_bytes"`
}

// WakeConfig controls the advisory wake-up signal sent to idle workers.
type WakeConfig struct {
	Transport     string        `yaml:"transport"` // udp or redis
	Timeout       time.Duration `yaml:"timeout"`
	SweepSchedule string        `yaml:"sweep_schedule"`
	Redis         RedisConfig   `yaml:"redis"`
}

// RedisConfig is used when wake.transport is redis.
type RedisConfig struct {
	Addr          string `yaml:"addr"`
	Password      string `yaml:"password"`
	DB            int    `yaml:"db"`
	ChannelPrefix string `yaml:"channel_prefix"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string         `yaml:"level"`
	Format      string         `yaml:"format"` // json or console
	Outputs     []string       `yaml:"outputs"`
	Development bool           `yaml:"development"`
	Rotation    RotationConfig `yaml:"rotation"`
}

// RotationConfig enables lumberjack rotation for file outputs.
type RotationConfig struct {
	Enable     bool `yaml:"enable"`
	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days"`
	Compress   bool `yaml:"compress"`
}

// CatalogConfig is the static tag and worker-type reference data seeded by
// `gq db init`.
type CatalogConfig struct {
	ServerTypes []ServerTypeConfig `yaml:"server_types"`
}

// ServerTypeConfig declares a worker type and the tags it honors.
type ServerTypeConfig struct {
	Name string   `yaml:"name"`
	Tags []string `yaml:"tags"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.ListenPort == 0 {
		c.ListenPort = 8080
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		switch c.Database.Driver {
		case "postgres":
			c.Database.Port = 5432
		default:
			c.Database.Port = 3306
		}
	}
	if c.Database.User == "" {
		c.Database.User = "graderqueue"
	}
	if c.Database.Database == "" {
		c.Database.Database = "graderqueue"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "graderqueue.db"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = time.Hour
	}
	if c.Solution.MaxUploadBytes == 0 {
		c.Solution.MaxUploadBytes = 8 << 20
	}
	if c.Wake.Transport == "" {
		c.Wake.Transport = "udp"
	}
	if c.Wake.Timeout == 0 {
		c.Wake.Timeout = time.Second
	}
	if c.Wake.Redis.ChannelPrefix == "" {
		c.Wake.Redis.ChannelPrefix = "graderqueue:wake:"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stderr"}
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be mysql, postgres or sqlite", c.Database.Driver))
	}
	if c.ListenPort < 0 || c.ListenPort > 65535 {
		errs = append(errs, fmt.Sprintf("listen_port %d out of range", c.ListenPort))
	}
	if c.Auth.TokenTTL < 0 {
		errs = append(errs, "auth.token_ttl must be positive")
	}
	switch c.Wake.Transport {
	case "udp":
	case "redis":
		if c.Wake.Redis.Addr == "" {
			errs = append(errs, "wake.redis.addr is required when wake.transport is redis")
		}
	default:
		errs = append(errs, fmt.Sprintf("wake.transport %q must be udp or redis", c.Wake.Transport))
	}
	for ext := range c.Solution.DefaultExtensions {
		if ext == "" {
			errs = append(errs, "solution.default_extensions has an empty language key")
		}
	}
	seen := make(map[string]bool)
	for i, st := range c.Catalog.ServerTypes {
		if st.Name == "" {
			errs = append(errs, fmt.Sprintf("catalog.server_types[%d].name is required", i))
			continue
		}
		if seen[st.Name] {
			errs = append(errs, fmt.Sprintf("catalog.server_types[%d].name %q is duplicated", i, st.Name))
		}
		seen[st.Name] = true
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
