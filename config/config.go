package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type LoggerConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	Console    bool   `yaml:"console"`
}

type ModerationConfig struct {
	ReconcileInterval      time.Duration `yaml:"reconcile_interval"`
	PlatformTimeout        time.Duration `yaml:"platform_timeout"`
	NotifyTimeout          time.Duration `yaml:"notify_timeout"`
	RateLimit              float64       `yaml:"rate_limit"`
	RateBurst              int           `yaml:"rate_burst"`
	MaxEnforcementAttempts int           `yaml:"max_enforcement_attempts"`
	ConfigCacheSize        int           `yaml:"config_cache_size"`
	ConfigCacheTTL         time.Duration `yaml:"config_cache_ttl"`
}

type Config struct {
	Discord struct {
		Token    string   `yaml:"token"`
		GuildID  string   `yaml:"guild_id"`
		Status   string   `yaml:"status"`
		ClientID string   `yaml:"client_id"`
		Devs     []string `yaml:"developers"`
		Sharding struct {
			Enabled     bool `yaml:"enabled"`
			TotalShards int  `yaml:"total_shards"`
		} `yaml:"sharding"`
	} `yaml:"discord"`

	MongoDB struct {
		URI      string `yaml:"uri"`
		Password string `yaml:"password"`
		Database string `yaml:"database"`
	} `yaml:"mongodb"`

	Storage struct {
		Driver     string `yaml:"driver"`
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"storage"`

	HTTP struct {
		Address string `yaml:"address"`
	} `yaml:"http"`

	Logger     LoggerConfig     `yaml:"logger"`
	Moderation ModerationConfig `yaml:"moderation"`

	Debug        bool      `yaml:"debug"`
	BotStartTime time.Time `yaml:"-"`
}

const (
	StorageMongo  = "mongo"
	StorageSQLite = "sqlite"
)

func Load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(file)
}

// Parse decodes a YAML document, applies defaults and environment overrides
// and validates the result.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.BotStartTime = time.Now()

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("VOID_DISCORD_TOKEN"); v != "" {
		c.Discord.Token = v
	}
	if v := os.Getenv("VOID_MONGODB_URI"); v != "" {
		c.MongoDB.URI = v
	}
	if v := os.Getenv("VOID_MONGODB_PASSWORD"); v != "" {
		c.MongoDB.Password = v
	}
}

func (c *Config) applyDefaults() {
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageMongo
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "data/void.db"
	}
	if c.MongoDB.Database == "" {
		c.MongoDB.Database = "void"
	}
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}

	m := &c.Moderation
	if m.ReconcileInterval == 0 {
		m.ReconcileInterval = time.Minute
	}
	if m.PlatformTimeout == 0 {
		m.PlatformTimeout = 10 * time.Second
	}
	if m.NotifyTimeout == 0 {
		m.NotifyTimeout = 5 * time.Second
	}
	if m.RateLimit == 0 {
		m.RateLimit = 5
	}
	if m.RateBurst == 0 {
		m.RateBurst = 1
	}
	if m.MaxEnforcementAttempts == 0 {
		m.MaxEnforcementAttempts = 5
	}
	if m.ConfigCacheSize == 0 {
		m.ConfigCacheSize = 1024
	}
	if m.ConfigCacheTTL == 0 {
		m.ConfigCacheTTL = 5 * time.Minute
	}
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMongo:
		if c.MongoDB.URI == "" {
			return fmt.Errorf("mongodb.uri is required for the %q storage driver", StorageMongo)
		}
	case StorageSQLite:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	m := c.Moderation
	if m.ReconcileInterval < time.Second {
		return fmt.Errorf("moderation.reconcile_interval must be at least 1s, got %s", m.ReconcileInterval)
	}
	if m.RateLimit < 0 || m.RateBurst < 1 {
		return fmt.Errorf("moderation.rate_limit and rate_burst must be positive")
	}
	if m.MaxEnforcementAttempts < 0 {
		return fmt.Errorf("moderation.max_enforcement_attempts cannot be negative")
	}
	if c.Discord.Sharding.Enabled && c.Discord.Sharding.TotalShards <= 0 {
		return fmt.Errorf("discord.sharding.total_shards must be positive when sharding is enabled")
	}

	return nil
}
