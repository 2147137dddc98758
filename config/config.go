package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// HTTP server
	Server ServerConfig `mapstructure:"server"`

	// Logging
	Log LogConfig `mapstructure:"log"`

	// PostgreSQL
	Postgres PostgresConfig `mapstructure:"postgres"`

	// Redis
	Redis RedisConfig `mapstructure:"redis"`

	// NATS
	NATS NATSConfig `mapstructure:"nats"`

	// Prometheus
	Prometheus PrometheusConfig `mapstructure:"prometheus"`

	// OpenTelemetry
	Tracing TracingConfig `mapstructure:"tracing"`

	// Google OAuth + Drive
	Google GoogleConfig `mapstructure:"google"`

	// Owner sessions and administrators
	Auth AuthConfig `mapstructure:"auth"`

	// Short links
	Links LinksConfig `mapstructure:"links"`

	// Access events
	Events EventsConfig `mapstructure:"events"`

	// Rate limiting for the owner API
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Addr    string `mapstructure:"addr"`
	BaseURL string `mapstructure:"base_url"`
}

type LogConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"`
}

type PostgresConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	Host              string `mapstructure:"host"`
	User              string `mapstructure:"user"`
	Password          string `mapstructure:"password"`
	Database          string `mapstructure:"database"`
	Port              int    `mapstructure:"port"`
	SSLMode           string `mapstructure:"sslmode"`
	MaxConns          int32  `mapstructure:"max_conns"`
	MinConns          int32  `mapstructure:"min_conns"`
	MaxConnLifetime   string `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   string `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod string `mapstructure:"health_check_period"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NATSConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	MonitorPort int    `mapstructure:"monitor_port"`
}

type PrometheusConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
	AuthURL      string `mapstructure:"auth_url"`
	TokenURL     string `mapstructure:"token_url"`
	DriveAPI     string `mapstructure:"drive_api"`
	UserInfoURL  string `mapstructure:"userinfo_url"`
}

type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	AdminIDs   []string      `mapstructure:"admin_ids"`
}

type LinksConfig struct {
	FileRetention     time.Duration `mapstructure:"file_retention"`
	ListRetention     time.Duration `mapstructure:"list_retention"`
	CodeLength        int           `mapstructure:"code_length"`
	GrantSecret       string        `mapstructure:"grant_secret"`
	GrantTokenTTL     time.Duration `mapstructure:"grant_token_ttl"`
	TokenSafetyMargin time.Duration `mapstructure:"token_safety_margin"`
}

type EventsConfig struct {
	Retention     time.Duration `mapstructure:"retention"`
	PruneInterval time.Duration `mapstructure:"prune_interval"`
}

type RateLimitConfig struct {
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

func Load() (*Config, error) {
	// Load local .env for development (ignored when missing).
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()

	// Search for config/config.yaml (plus root for overrides).
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Allow environment variables to override YAML entries.
	v.SetEnvPrefix("")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Preserve legacy env variable names.
	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate reports settings the service cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Google.ClientID == "" || c.Google.ClientSecret == "" {
		errs = append(errs, errors.New("google.client_id and google.client_secret are required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	if c.Links.GrantSecret == "" {
		errs = append(errs, errors.New("links.grant_secret is required"))
	}
	if c.Links.CodeLength < 4 {
		errs = append(errs, fmt.Errorf("links.code_length must be at least 4, got %d", c.Links.CodeLength))
	}
	if c.Links.TokenSafetyMargin < 0 {
		errs = append(errs, errors.New("links.token_safety_margin must not be negative"))
	}
	return errors.Join(errs...)
}

// IsAdmin reports whether ownerID is listed in auth.admin_ids.
func (c AuthConfig) IsAdmin(ownerID string) bool {
	for _, id := range c.AdminIDs {
		if id == ownerID {
			return true
		}
	}
	return false
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")

	v.SetDefault("google.auth_url", "https://accounts.google.com/o/oauth2/v2/auth")
	v.SetDefault("google.token_url", "https://oauth2.googleapis.com/token")
	v.SetDefault("google.drive_api", "https://www.googleapis.com/drive/v3")
	v.SetDefault("google.userinfo_url", "https://www.googleapis.com/oauth2/v2/userinfo")

	v.SetDefault("auth.session_ttl", 24*time.Hour)

	v.SetDefault("links.file_retention", 30*24*time.Hour)
	v.SetDefault("links.list_retention", 90*24*time.Hour)
	v.SetDefault("links.code_length", 6)
	v.SetDefault("links.grant_token_ttl", 30*time.Minute)
	v.SetDefault("links.token_safety_margin", 300*time.Second)

	v.SetDefault("events.retention", 30*24*time.Hour)
	v.SetDefault("events.prune_interval", time.Hour)

	v.SetDefault("rate_limit.max_requests", 100)
	v.SetDefault("rate_limit.window", time.Minute)

	v.SetDefault("prometheus.port", 9090)
	v.SetDefault("tracing.service_name", "decentralize-file-share")
}

func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.addr", "SERVER_ADDR")
	v.BindEnv("server.base_url", "BASE_URL")

	// Logging
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.encoding", "LOG_ENCODING")

	// PostgreSQL
	v.BindEnv("postgres.enabled", "PG_ENABLED")
	v.BindEnv("postgres.host", "PG_HOST")
	v.BindEnv("postgres.user", "PG_USER")
	v.BindEnv("postgres.password", "PG_PASSWORD")
	v.BindEnv("postgres.database", "PG_DB")
	v.BindEnv("postgres.port", "PG_PORT")
	v.BindEnv("postgres.sslmode", "PG_SSLMODE")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	// NATS
	v.BindEnv("nats.enabled", "NATS_ENABLED")
	v.BindEnv("nats.host", "NATS_HOST")
	v.BindEnv("nats.port", "NATS_PORT")
	v.BindEnv("nats.user", "NATS_USER")
	v.BindEnv("nats.password", "NATS_PASSWORD")
	v.BindEnv("nats.monitor_port", "NATS_MONITOR_PORT")

	// Prometheus
	v.BindEnv("prometheus.enabled", "PROM_ENABLED")
	v.BindEnv("prometheus.port", "PROM_PORT")

	// Tracing
	v.BindEnv("tracing.enabled", "OTEL_ENABLED")
	v.BindEnv("tracing.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")

	// Google
	v.BindEnv("google.client_id", "GOOGLE_CLIENT_ID")
	v.BindEnv("google.client_secret", "GOOGLE_CLIENT_SECRET")
	v.BindEnv("google.redirect_url", "GOOGLE_REDIRECT_URL")

	// Auth
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")

	// Links
	v.BindEnv("links.grant_secret", "GRANT_SECRET")
}
