// Package config provides configuration loading for the web guard service.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the web guard service.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	CSP        CSPConfig        `mapstructure:"csp"`
	Security   SecurityConfig   `mapstructure:"security"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Redis      RedisConfig      `mapstructure:"redis"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Database   DatabaseConfig   `mapstructure:"database"`
	OpenSearch OpenSearchConfig `mapstructure:"opensearch"`
	Upstream   UpstreamConfig   `mapstructure:"upstream"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// CSPConfig mirrors the environment flags that drive policy generation.
type CSPConfig struct {
	Environment        string `mapstructure:"environment"`
	UseNonce           bool   `mapstructure:"use_nonce"`
	ReportOnly         bool   `mapstructure:"report_only"`
	ReportURI          string `mapstructure:"report_uri"`
	UseVercelAnalytics bool   `mapstructure:"use_vercel_analytics"`
	AllowVercelLive    bool   `mapstructure:"allow_vercel_live"`
}

// IsProduction reports whether the service runs with production semantics.
func (c CSPConfig) IsProduction() bool {
	return c.Environment == "production"
}

// SecurityConfig holds security-event and CORS settings
type SecurityConfig struct {
	// EventStore is "memory" or "redis".
	EventStore         string   `mapstructure:"event_store"`
	EventCapacity      int      `mapstructure:"event_capacity"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
	// TrustedProxies lists CIDRs whose X-Forwarded-For / X-Real-IP are honored.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// AuthConfig holds session and admin credentials
type AuthConfig struct {
	// URL of the external auth provider used for cookie refresh. Empty disables refresh.
	URL             string `mapstructure:"url"`
	JWTSecret       string `mapstructure:"jwt_secret"`
	AdminRole       string `mapstructure:"admin_role"`
	AdminAPIKeyHash string `mapstructure:"admin_api_key_hash"`
	CookieDomain    string `mapstructure:"cookie_domain"`
	CookieSecure    bool   `mapstructure:"cookie_secure"`
}

// TelemetryConfig holds settings for the report, metrics and alert endpoints
type TelemetryConfig struct {
	// ReportStore is "auto", "file", "opensearch" or "discard". "auto" writes
	// files outside production and discards in production.
	ReportStore      string        `mapstructure:"report_store"`
	ReportsDir       string        `mapstructure:"reports_dir"`
	PerformanceDir   string        `mapstructure:"performance_dir"`
	BaselineStore    string        `mapstructure:"baseline_store"`
	BaselineCapacity int           `mapstructure:"baseline_capacity"`
	MaxBodyBytes     int64         `mapstructure:"max_body_bytes"`
	RateLimitEnabled bool          `mapstructure:"rate_limit_enabled"`
	RateLimitCount   int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow  time.Duration `mapstructure:"rate_limit_window"`
}

// RedisConfig holds Redis configuration for shared state
type RedisConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"`
	Prefix  string `mapstructure:"prefix"`
}

// NATSConfig holds NATS message broker configuration
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Enabled       bool          `mapstructure:"enabled"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Enabled        bool           `mapstructure:"enabled"`
	MigrationsPath string         `mapstructure:"migrations_path"`
	Postgres       PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig holds PostgreSQL connection settings
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ConnString builds a postgres:// URL usable by both pgx and migrate.
func (p PostgresConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// OpenSearchConfig holds OpenSearch connection settings for report storage
type OpenSearchConfig struct {
	URL           string `mapstructure:"url"`
	Username      string `mapstructure:"username"`
	Password      string `mapstructure:"password"`
	TLSSkipVerify bool   `mapstructure:"tls_skip_verify"`
	IndexPrefix   string `mapstructure:"index_prefix"`
}

// UpstreamConfig points at the page renderer behind the guard
type UpstreamConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// exactEnv binds keys to the unprefixed variable names the deployment already uses.
// The prefixed form stays accepted and wins when both are set.
var exactEnv = map[string]string{
	"csp.environment":          "NODE_ENV",
	"csp.use_nonce":            "USE_CSP_NONCE",
	"csp.report_only":          "REPORT_ONLY_CSP",
	"csp.report_uri":           "CSP_REPORT_URI",
	"csp.use_vercel_analytics": "USE_VERCEL_ANALYTICS",
	"csp.allow_vercel_live":    "ALLOW_VERCEL_LIVE",
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/shisei/web")
	}

	// Environment variables override (WEB_SERVER_PORT, etc.)
	v.SetEnvPrefix("WEB")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, name := range exactEnv {
		prefixed := "WEB_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, name); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", name, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// Only fail if a specific config path was given
		if configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("csp.environment", "development")
	v.SetDefault("csp.use_nonce", false)
	v.SetDefault("csp.report_only", false)
	v.SetDefault("csp.report_uri", "")
	v.SetDefault("csp.use_vercel_analytics", false)
	v.SetDefault("csp.allow_vercel_live", false)

	v.SetDefault("security.event_store", "memory")
	v.SetDefault("security.event_capacity", 1000)
	v.SetDefault("security.cors_allowed_origins", []string{"*"})
	v.SetDefault("security.trusted_proxies", []string{})

	v.SetDefault("auth.url", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.admin_role", "admin")
	v.SetDefault("auth.admin_api_key_hash", "")
	v.SetDefault("auth.cookie_domain", "")
	v.SetDefault("auth.cookie_secure", true)

	v.SetDefault("telemetry.report_store", "auto")
	v.SetDefault("telemetry.reports_dir", "csp-reports")
	v.SetDefault("telemetry.performance_dir", "performance-data")
	v.SetDefault("telemetry.baseline_store", "memory")
	v.SetDefault("telemetry.baseline_capacity", 20)
	v.SetDefault("telemetry.max_body_bytes", 1<<20)
	v.SetDefault("telemetry.rate_limit_enabled", true)
	v.SetDefault("telemetry.rate_limit_requests", 120)
	v.SetDefault("telemetry.rate_limit_window", "1m")

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.prefix", "shisei")

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.max_reconnects", -1)
	v.SetDefault("nats.reconnect_wait", "2s")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.migrations_path", "file://migrations")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "shisei")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.database", "shisei_web")
	v.SetDefault("database.postgres.sslmode", "disable")

	v.SetDefault("opensearch.url", "https://localhost:9200")
	v.SetDefault("opensearch.username", "admin")
	v.SetDefault("opensearch.password", "")
	v.SetDefault("opensearch.tls_skip_verify", true)
	v.SetDefault("opensearch.index_prefix", "shisei")

	v.SetDefault("upstream.url", "http://localhost:3001")
	v.SetDefault("upstream.timeout", "30s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
