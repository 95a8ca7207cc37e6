package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	JobService JobServiceConfig `mapstructure:"job_service"`
	Polling    PollingConfig    `mapstructure:"polling"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Media      MediaConfig      `mapstructure:"media"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite or postgres
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	}
	return c.Path
}

type JobServiceConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type PollingConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	MaxFailures      int           `mapstructure:"max_failures"`
	SubRangeInterval time.Duration `mapstructure:"subrange_interval"`
}

type NotifyConfig struct {
	Backend           string        `mapstructure:"backend"` // memory, store or redis
	RedisAddr         string        `mapstructure:"redis_addr"`
	RedisChannel      string        `mapstructure:"redis_channel"`
	StorePollInterval time.Duration `mapstructure:"store_poll_interval"`
	Retention         time.Duration `mapstructure:"retention"`
}

type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"` // r2, s3, s3compatible
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

type MediaConfig struct {
	FFmpegBin  string `mapstructure:"ffmpeg_bin"`
	FFprobeBin string `mapstructure:"ffprobe_bin"`
	WorkDir    string `mapstructure:"work_dir"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("server.port", 8090)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/footfall.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("job_service.base_url", "http://localhost:8000/api")
	v.SetDefault("job_service.timeout", 5*time.Minute)
	v.SetDefault("polling.interval", 2*time.Second)
	v.SetDefault("polling.max_failures", 5)
	v.SetDefault("polling.subrange_interval", time.Second)
	v.SetDefault("notify.backend", "store")
	v.SetDefault("notify.redis_channel", "footfall-jobs")
	v.SetDefault("notify.store_poll_interval", 2*time.Second)
	v.SetDefault("notify.retention", 24*time.Hour)
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.bucket", "footfall-exports")
	v.SetDefault("media.work_dir", "./data/work")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets are bound explicitly so they never need to live in the YAML file
	v.BindEnv("job_service.base_url", "JOB_SERVICE_URL")
	v.BindEnv("job_service.api_key", "JOB_SERVICE_API_KEY")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("notify.redis_addr", "REDIS_ADDR")
	v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "S3_SECRET_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the controllers cannot run with.
func (c *Config) Validate() error {
	if c.Polling.Interval <= 0 {
		return errors.New("polling.interval must be positive")
	}
	if c.Polling.MaxFailures <= 0 {
		return errors.New("polling.max_failures must be positive")
	}
	if c.Polling.SubRangeInterval <= 0 {
		return errors.New("polling.subrange_interval must be positive")
	}
	switch c.Notify.Backend {
	case "memory", "store":
	case "redis":
		if c.Notify.RedisAddr == "" {
			return errors.New("notify.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown notify.backend %q", c.Notify.Backend)
	}
	if c.JobService.BaseURL == "" {
		return errors.New("job_service.base_url is required")
	}
	return nil
}
