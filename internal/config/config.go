package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the default config location.
const EnvConfigPath = "RESERVO_CONFIG_PATH"

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup BackupConfig `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	HTTP struct {
		Port   int    `yaml:"port"`
		APIKey string `yaml:"api_key"`
	} `yaml:"http"`

	GRPC struct {
		Port int `yaml:"port"`
	} `yaml:"grpc"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Regeneration RegenerationConfig `yaml:"regeneration"`

	CalendarImport ImportConfig `yaml:"calendar_import"`

	Notify struct {
		Telegram TelegramConfig `yaml:"telegram"`
		AMQP     AMQPConfig     `yaml:"amqp"`
	} `yaml:"notify"`

	BusinessesPath string `yaml:"businesses_path"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	StoragePath   string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// Interval returns the time between backups, one day by default.
func (b BackupConfig) Interval() time.Duration {
	if b.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(b.IntervalHours) * time.Hour
}

type RegenerationConfig struct {
	DefaultAdvanceDays int `yaml:"default_advance_days"`
	MaxParallelDates   int `yaml:"max_parallel_dates"`
	TimeoutSeconds     int `yaml:"timeout_seconds"`
}

// Timeout bounds a background regeneration pass.
func (r RegenerationConfig) Timeout() time.Duration {
	if r.TimeoutSeconds <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(r.TimeoutSeconds) * time.Second
}

type ImportConfig struct {
	Enabled         bool           `yaml:"enabled"`
	IntervalMinutes int            `yaml:"interval_minutes"`
	LookaheadDays   int            `yaml:"lookahead_days"`
	Sources         []SourceConfig `yaml:"sources"`
}

// Interval returns the polling period of calendar imports.
func (i ImportConfig) Interval() time.Duration {
	if i.IntervalMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(i.IntervalMinutes) * time.Minute
}

// SourceConfig describes one external calendar feeding exceptions of a business.
type SourceConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"` // ics, caldav, google
	BusinessID int64  `yaml:"business_id"`
	URL        string `yaml:"url"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	// Google Calendar only.
	CalendarID      string `yaml:"calendar_id"`
	CredentialsFile string `yaml:"credentials_file"`
	AccessToken     string `yaml:"access_token"`
	// ICS only; 0 disables the Redis feed cache.
	CacheTTLMinutes int `yaml:"cache_ttl_minutes"`
}

type TelegramConfig struct {
	BotToken      string  `yaml:"bot_token"`
	ChatIDs       []int64 `yaml:"chat_ids"`
	RatePerSecond float64 `yaml:"rate_per_second"`
	RateBurst     int     `yaml:"rate_burst"`
}

type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// Load reads the YAML config. An empty path falls back to RESERVO_CONFIG_PATH
// and then to configs/config.yaml. A .env file in the working directory is
// loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "data/reservo.db"
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "data/backups"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.Regeneration.DefaultAdvanceDays <= 0 {
		c.Regeneration.DefaultAdvanceDays = 30
	}
	if c.Regeneration.MaxParallelDates <= 0 {
		c.Regeneration.MaxParallelDates = 4
	}
	if c.Notify.AMQP.Exchange == "" {
		c.Notify.AMQP.Exchange = "reservo.events"
	}
	if c.BusinessesPath == "" {
		c.BusinessesPath = "configs/businesses.yaml"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}
