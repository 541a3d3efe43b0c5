package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Pricing  PricingConfig  `mapstructure:"pricing"`
	Provider ProviderConfig `mapstructure:"provider"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PricingConfig holds pricing engine configuration.
type PricingConfig struct {
	// CostPerSecondMilliCents is the internal cost of one resource-second in
	// thousandths of a cent, kept integral for config round-tripping.
	CostPerSecondMilliCents int64   `mapstructure:"cost_per_second_millicents"`
	MinimumMargin           float64 `mapstructure:"minimum_margin"`
}

// ProviderConfig holds external AI provider configuration.
type ProviderConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	RetryMaxAttempts int           `mapstructure:"retry_max_attempts"`
	RetryBaseDelay   time.Duration `mapstructure:"retry_base_delay"`

	BreakerThreshold          uint32        `mapstructure:"breaker_threshold"`
	BreakerOpenDuration       time.Duration `mapstructure:"breaker_open_duration"`
	StatusBreakerThreshold    uint32        `mapstructure:"status_breaker_threshold"`
	StatusBreakerOpenDuration time.Duration `mapstructure:"status_breaker_open_duration"`

	HTTPClient HTTPClientConfig `mapstructure:"http_client"`
}

// HTTPClientConfig holds outbound HTTP transport configuration.
type HTTPClientConfig struct {
	DialTimeout         time.Duration `mapstructure:"dial_timeout"`
	KeepAlive           time.Duration `mapstructure:"keep_alive"`
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `mapstructure:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`
	TLSHandshakeTimeout time.Duration `mapstructure:"tls_handshake_timeout"`
	ResponseTimeout     time.Duration `mapstructure:"response_timeout"`
}

// WorkerConfig holds job orchestrator configuration.
type WorkerConfig struct {
	MaxConcurrent   int           `mapstructure:"max_concurrent"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	MaxPollAttempts int           `mapstructure:"max_poll_attempts"`
}

// PaymentConfig holds payment gateway configuration.
type PaymentConfig struct {
	StripeSecretKey     string `mapstructure:"stripe_secret_key"`
	StripeWebhookSecret string `mapstructure:"stripe_webhook_secret"`
	SkipSignatureCheck  bool   `mapstructure:"skip_signature_check"`
}

// AuthConfig holds token verification configuration.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// CatalogConfig holds catalog cache configuration.
type CatalogConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/chopshop")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults and env
	}

	v.SetEnvPrefix("CHOPSHOP")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override with environment variables for sensitive values
	if secret := os.Getenv("CHOPSHOP_JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if password := os.Getenv("CHOPSHOP_DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}
	if password := os.Getenv("CHOPSHOP_REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if key := os.Getenv("CHOPSHOP_PROVIDER_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("CHOPSHOP_STRIPE_SECRET_KEY"); key != "" {
		cfg.Payment.StripeSecretKey = key
	}
	if key := os.Getenv("CHOPSHOP_STRIPE_WEBHOOK_SECRET"); key != "" {
		cfg.Payment.StripeWebhookSecret = key
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "chopshop")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 30*time.Minute)

	// Redis defaults
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)

	// Pricing defaults: 1.11 cents per resource-second, 40% minimum margin.
	v.SetDefault("pricing.cost_per_second_millicents", 1110)
	v.SetDefault("pricing.minimum_margin", 0.40)

	// Provider defaults
	v.SetDefault("provider.base_url", "https://video.a2e.ai")
	v.SetDefault("provider.request_timeout", 30*time.Second)
	v.SetDefault("provider.retry_max_attempts", 3)
	v.SetDefault("provider.retry_base_delay", time.Second)
	v.SetDefault("provider.breaker_threshold", 5)
	v.SetDefault("provider.breaker_open_duration", 60*time.Second)
	v.SetDefault("provider.status_breaker_threshold", 10)
	v.SetDefault("provider.status_breaker_open_duration", 30*time.Second)
	v.SetDefault("provider.http_client.dial_timeout", 10*time.Second)
	v.SetDefault("provider.http_client.keep_alive", 30*time.Second)
	v.SetDefault("provider.http_client.max_idle_conns", 100)
	v.SetDefault("provider.http_client.max_idle_conns_per_host", 10)
	v.SetDefault("provider.http_client.max_conns_per_host", 50)
	v.SetDefault("provider.http_client.idle_conn_timeout", 90*time.Second)
	v.SetDefault("provider.http_client.tls_handshake_timeout", 10*time.Second)
	v.SetDefault("provider.http_client.response_timeout", 30*time.Second)

	// Worker defaults: 10s polling for up to 30 minutes.
	v.SetDefault("worker.max_concurrent", 10)
	v.SetDefault("worker.poll_interval", 10*time.Second)
	v.SetDefault("worker.max_poll_attempts", 180)

	// Catalog defaults
	v.SetDefault("catalog.cache_ttl", 5*time.Minute)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
