package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server" envconfig:"SERVER"`
	Database DatabaseConfig `mapstructure:"database" envconfig:"DB"`
	Redis    RedisConfig    `mapstructure:"redis" envconfig:"REDIS"`
	SMTP     SMTPConfig     `mapstructure:"smtp" envconfig:"SMTP"`
	JWT      JWTConfig      `mapstructure:"jwt" envconfig:"JWT"`
	Admin    AdminConfig    `mapstructure:"admin" envconfig:"ADMIN"`
	Queue    QueueConfig    `mapstructure:"queue" envconfig:"QUEUE"`
	Stripe   StripeConfig   `mapstructure:"stripe" envconfig:"STRIPE"`
	Cache    CacheConfig    `mapstructure:"cache" envconfig:"CACHE"`
	Log      LogConfig      `mapstructure:"log" envconfig:"LOG"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" envconfig:"PORT"`
	Mode              string        `mapstructure:"mode" envconfig:"MODE"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" envconfig:"RPS"`
	Burst             int           `mapstructure:"burst" envconfig:"BURST"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	WorkerHealthPort  int           `mapstructure:"worker_health_port" envconfig:"WORKER_HEALTH_PORT"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host" envconfig:"HOST"`
	Port         int    `mapstructure:"port" envconfig:"PORT"`
	User         string `mapstructure:"user" envconfig:"USER"`
	Password     string `mapstructure:"password" envconfig:"PASSWORD"`
	Name         string `mapstructure:"name" envconfig:"NAME"`
	SSLMode      string `mapstructure:"sslmode" envconfig:"SSLMODE"`
	MaxOpenConns int    `mapstructure:"max_open_conns" envconfig:"MAX_OPEN_CONNS"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" envconfig:"MAX_IDLE_CONNS"`
}

// DSN renders the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// URL renders the postgres:// form used by the migrator.
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	URL          string        `mapstructure:"url" envconfig:"URL"`
	Channel      string        `mapstructure:"channel" envconfig:"CHANNEL"`
	MaxRetries   int           `mapstructure:"max_retries" envconfig:"MAX_RETRIES"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" envconfig:"RETRY_BACKOFF"`
	PoolSize     int           `mapstructure:"pool_size" envconfig:"POOL_SIZE"`
	MinIdleConns int           `mapstructure:"min_idle_conns" envconfig:"MIN_IDLE_CONNS"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host" envconfig:"HOST"`
	Port     int    `mapstructure:"port" envconfig:"PORT"`
	Username string `mapstructure:"username" envconfig:"USERNAME"`
	Password string `mapstructure:"password" envconfig:"PASSWORD"`
	From     string `mapstructure:"from" envconfig:"FROM"`
	FromName string `mapstructure:"from_name" envconfig:"FROM_NAME"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret" envconfig:"SECRET"`
	ExpiryHours int    `mapstructure:"expiry_hours" envconfig:"EXPIRY_HOURS"`
}

type AdminConfig struct {
	Email        string `mapstructure:"email" envconfig:"EMAIL"`
	PasswordHash string `mapstructure:"password_hash" envconfig:"PASSWORD_HASH"`
}

type QueueConfig struct {
	MaxRetries      int           `mapstructure:"max_retries" envconfig:"MAX_RETRIES"`
	BatchSize       int           `mapstructure:"batch_size" envconfig:"BATCH_SIZE"`
	PollInterval    time.Duration `mapstructure:"poll_interval" envconfig:"POLL_INTERVAL"`
	CleanupSchedule string        `mapstructure:"cleanup_schedule" envconfig:"CLEANUP_SCHEDULE"`
	RetentionDays   int           `mapstructure:"retention_days" envconfig:"RETENTION_DAYS"`
}

type StripeConfig struct {
	SecretKey string `mapstructure:"secret_key" envconfig:"SECRET_KEY"`
	Currency  string `mapstructure:"currency" envconfig:"CURRENCY"`
}

type CacheConfig struct {
	TTL             time.Duration `mapstructure:"ttl" envconfig:"TTL"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" envconfig:"CLEANUP_INTERVAL"`
}

type LogConfig struct {
	Level   string `mapstructure:"level" envconfig:"LEVEL"`
	Console bool   `mapstructure:"console" envconfig:"CONSOLE"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.requests_per_second", 20)
	v.SetDefault("server.burst", 40)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.worker_health_port", 8081)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "rdv")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.channel", "rdv:appointments")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.from_name", "Calendrier RDV")

	v.SetDefault("jwt.expiry_hours", 12)

	v.SetDefault("queue.max_retries", 3)
	v.SetDefault("queue.batch_size", 50)
	v.SetDefault("queue.poll_interval", time.Minute)
	v.SetDefault("queue.cleanup_schedule", "0 3 * * *")
	v.SetDefault("queue.retention_days", 30)

	v.SetDefault("stripe.currency", "eur")

	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.cleanup_interval", 10*time.Minute)

	v.SetDefault("log.level", "info")
}

// LoadConfig reads config.yaml when present, then applies RDV_* environment
// overrides. A .env file in the working directory is loaded first.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")           // current directory
	v.AddConfigPath("./config")    // config subdirectory
	v.AddConfigPath("/app/config") // container config directory
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("RDV", &config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects settings the services cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Queue.MaxRetries <= 0 {
		return fmt.Errorf("queue.max_retries must be positive")
	}
	if c.Queue.BatchSize <= 0 {
		return fmt.Errorf("queue.batch_size must be positive")
	}
	return nil
}
