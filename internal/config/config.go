package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Channels ChannelsConfig `mapstructure:"channels"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

// AuthConfig configures the service-token middleware guarding the API.
// Callers are other backend services, not end users.
type AuthConfig struct {
	Secret string `mapstructure:"secret"`
}

// WorkerConfig drives the cron orchestrator loop.
type WorkerConfig struct {
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	BatchSize           int           `mapstructure:"batch_size"`
	DispatchConcurrency int           `mapstructure:"dispatch_concurrency"`
	ProcessingTimeout   time.Duration `mapstructure:"processing_timeout"`
	RetentionDays       int           `mapstructure:"retention_days"`
	CleanupInterval     time.Duration `mapstructure:"cleanup_interval"`
}

// EngineConfig holds the scheduling/retry policy knobs.
type EngineConfig struct {
	MaxSnoozeCount     int           `mapstructure:"max_snooze_count"`
	ChannelMaxRetries  int           `mapstructure:"channel_max_retries"`
	NotificationBudget int           `mapstructure:"notification_retry_budget"`
	BackoffBase        time.Duration `mapstructure:"backoff_base"`
	BackoffCap         time.Duration `mapstructure:"backoff_cap"`
	ChannelTimeout     time.Duration `mapstructure:"channel_timeout"`
}

type ChannelsConfig struct {
	Email EmailConfig `mapstructure:"email"`
	Push  PushConfig  `mapstructure:"push"`
	SMS   SMSConfig   `mapstructure:"sms"`
}

type EmailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type PushConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	ProjectID string `mapstructure:"project_id"`
	APIKey    string `mapstructure:"api_key"`
}

type SMSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
	From     string `mapstructure:"from"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.timeoutSeconds", 30)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)

	viper.SetDefault("worker.poll_interval", time.Minute)
	viper.SetDefault("worker.batch_size", 50)
	viper.SetDefault("worker.dispatch_concurrency", 8)
	viper.SetDefault("worker.processing_timeout", 10*time.Minute)
	viper.SetDefault("worker.retention_days", 90)
	viper.SetDefault("worker.cleanup_interval", time.Hour)

	viper.SetDefault("engine.max_snooze_count", 3)
	viper.SetDefault("engine.channel_max_retries", 3)
	viper.SetDefault("engine.notification_retry_budget", 5)
	viper.SetDefault("engine.backoff_base", 30*time.Second)
	viper.SetDefault("engine.backoff_cap", 30*time.Minute)
	viper.SetDefault("engine.channel_timeout", 10*time.Second)

	viper.SetDefault("logging.level", "info")
}
