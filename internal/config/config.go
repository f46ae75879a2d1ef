// Package config provides configuration management for the paper discovery service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Config holds all configuration for the paper discovery service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings, or selects the
	// in-memory store backend.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// OpenAlex contains upstream OpenAlex client settings (C1).
	OpenAlex OpenAlexConfig `mapstructure:"openalex"`
	// OAuth contains the authorization-code login flow settings (C8).
	OAuth OAuthConfig `mapstructure:"oauth"`
	// Session contains signed session cookie settings (C8).
	Session SessionConfig `mapstructure:"session"`
	// QueryParser contains the optional LLM-backed query parser settings (C4).
	QueryParser QueryParserConfig `mapstructure:"query_parser"`
	// Feeds contains tunable limits shared by the search, following, and
	// recommendation feeds (C5, C6, C7).
	Feeds FeedsConfig `mapstructure:"feeds"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// MetricsPort is the metrics server port (default: 9091).
	MetricsPort int `mapstructure:"metrics_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// RequestTimeout bounds the total time a handler may spend, including
	// upstream fan-out, before the server cancels its context.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// BaseURL is this service's externally reachable origin, used to build
	// the OAuth redirect URI.
	BaseURL string `mapstructure:"base_url"`
	// SPARedirectURL is where a user's browser is sent after a completed
	// login, typically the front-end application's origin.
	SPARedirectURL string `mapstructure:"spa_redirect_url"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Backend selects the storage backend: "memory" or "postgres". The
	// in-process memory backend requires no database and is the default,
	// matching a zero-config local run.
	Backend string `mapstructure:"backend"`
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (use environment variable in production).
	Password string `mapstructure:"password"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	// Default is "require" for production security. Use "disable" only for local development.
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool (default: 50).
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open (default: 10).
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: false).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
	// StatementCacheCapacity is the size of the prepared statement cache.
	StatementCacheCapacity int `mapstructure:"statement_cache_capacity"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination ("stdout" or "stderr"; any other
	// value writes to stdout).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
}

// OpenAlexConfig holds configuration for the OpenAlex upstream client (C1).
type OpenAlexConfig struct {
	// BaseURL is the OpenAlex API base URL.
	BaseURL string `mapstructure:"base_url"`
	// Email is sent as the polite-pool mailto parameter on every request.
	Email string `mapstructure:"-"`
	// Timeout is the per-request timeout.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second against OpenAlex.
	RateLimit float64 `mapstructure:"rate_limit"`
	// BurstSize is the token bucket burst size.
	BurstSize int `mapstructure:"burst_size"`
	// MaxResults caps per_page on any single search request.
	MaxResults int `mapstructure:"max_results"`
	// MaxRetries is the maximum number of retries for a failed request.
	MaxRetries int `mapstructure:"max_retries"`
}

// OAuthConfig holds the OAuth 2.0 authorization-code flow settings for C8.
type OAuthConfig struct {
	// Provider names the identity provider; "google" is the only one wired
	// up today, but the fields below are provider-agnostic.
	Provider string `mapstructure:"provider"`
	// ClientID is the OAuth client id (loaded from environment).
	ClientID string `mapstructure:"-"`
	// ClientSecret is the OAuth client secret (loaded from environment).
	ClientSecret string `mapstructure:"-"`
	// AuthURL is the provider's authorization endpoint.
	AuthURL string `mapstructure:"auth_url"`
	// TokenURL is the provider's token exchange endpoint.
	TokenURL string `mapstructure:"token_url"`
	// UserInfoURL is the provider's userinfo endpoint.
	UserInfoURL string `mapstructure:"userinfo_url"`
	// Scopes is a space-separated scope list requested at authorization time.
	Scopes string `mapstructure:"scopes"`
}

// SessionConfig holds signed-session-cookie settings for C8.
type SessionConfig struct {
	// Secret signs and verifies session cookies with HMAC-SHA256 (loaded
	// from environment).
	Secret string `mapstructure:"-"`
	// CookieName is the name of the session cookie.
	CookieName string `mapstructure:"cookie_name"`
	// TTL is how long a session remains valid from its last use.
	TTL time.Duration `mapstructure:"ttl"`
	// Secure sets the cookie's Secure flag; disable only for local HTTP development.
	Secure bool `mapstructure:"secure"`
}

// QueryParserConfig holds the optional LLM-backed natural-language query
// parser settings for C4. When Provider is empty the service falls back to
// the rule-based parser for every request.
type QueryParserConfig struct {
	// Provider is the LLM provider ("openai", "anthropic", or "" to disable).
	Provider string `mapstructure:"provider"`
	// Model is the model name to request.
	Model string `mapstructure:"model"`
	// BaseURL is the provider API base URL.
	BaseURL string `mapstructure:"base_url"`
	// APIKey is the provider API key (loaded from environment).
	APIKey string `mapstructure:"-"`
	// Timeout bounds a single parse call; exceeding it falls back to the
	// rule-based parser rather than failing the request.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the maximum number of retries for a failed call.
	MaxRetries int `mapstructure:"max_retries"`
	// Temperature is the sampling temperature; 0 for deterministic parses.
	Temperature float64 `mapstructure:"temperature"`
}

// FeedsConfig holds the tunable limits for the search, following, and
// recommendation feeds (C5, C6, C7).
type FeedsConfig struct {
	// DefaultPerPage is the page size used when a request omits one.
	DefaultPerPage int `mapstructure:"default_per_page"`
	// MaxPerPage is the largest page size a caller may request.
	MaxPerPage int `mapstructure:"max_per_page"`
	// AuthorResolveTopK bounds how many candidate author ids a name resolves to.
	AuthorResolveTopK int `mapstructure:"author_resolve_top_k"`
	// FollowPerEntityLimit caps works fetched per followed entity per page.
	FollowPerEntityLimit int `mapstructure:"follow_per_entity_limit"`
	// FollowTotalLimit caps the total number of papers in a merged follow feed.
	FollowTotalLimit int `mapstructure:"follow_total_limit"`
	// FollowConcurrency bounds concurrent upstream calls during fan-out.
	FollowConcurrency int `mapstructure:"follow_concurrency"`
	// RecommendationDefaultLimit is the default size of a "for you" page.
	RecommendationDefaultLimit int `mapstructure:"recommendation_default_limit"`
	// RecommendationMaxLimit is the largest "for you" page size allowed.
	RecommendationMaxLimit int `mapstructure:"recommendation_max_limit"`
	// RecentLikesConsidered bounds how many of the user's most recent likes
	// seed the recommendation engine.
	RecentLikesConsidered int `mapstructure:"recent_likes_considered"`
	// RelatedPerLike bounds related-works fetched per seed like.
	RelatedPerLike int `mapstructure:"related_per_like"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}
	if c.StatementCacheCapacity > 0 {
		params.Set("statement_cache_capacity", fmt.Sprintf("%d", c.StatementCacheCapacity))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("PAPERFEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/paper-discovery-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" to prevent loading from config files.
func loadSecrets(cfg *Config) {
	cfg.OpenAlex.Email = os.Getenv("PAPERFEED_OPENALEX_EMAIL")
	cfg.OAuth.ClientID = os.Getenv("PAPERFEED_OAUTH_CLIENT_ID")
	cfg.OAuth.ClientSecret = os.Getenv("PAPERFEED_OAUTH_CLIENT_SECRET")
	cfg.Session.Secret = os.Getenv("PAPERFEED_SESSION_SECRET")
	cfg.QueryParser.APIKey = os.Getenv("PAPERFEED_QUERY_PARSER_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.metrics_port", 9091)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.request_timeout", "20s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.spa_redirect_url", "http://localhost:3000")

	// Database defaults
	v.SetDefault("database.backend", "memory")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "paperfeed")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "paper_discovery_service")
	// Default to "require" for production security. Use PAPERFEED_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 50)
	v.SetDefault("database.min_conns", 10)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)
	v.SetDefault("database.statement_cache_capacity", 512)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// OpenAlex defaults
	v.SetDefault("openalex.base_url", "https://api.openalex.org")
	v.SetDefault("openalex.timeout", "15s")
	v.SetDefault("openalex.rate_limit", 10.0)
	v.SetDefault("openalex.burst_size", 10)
	v.SetDefault("openalex.max_results", 200)
	v.SetDefault("openalex.max_retries", 3)

	// OAuth defaults
	v.SetDefault("oauth.provider", "google")
	v.SetDefault("oauth.auth_url", "https://accounts.google.com/o/oauth2/v2/auth")
	v.SetDefault("oauth.token_url", "https://oauth2.googleapis.com/token")
	v.SetDefault("oauth.userinfo_url", "https://openidconnect.googleapis.com/v1/userinfo")
	v.SetDefault("oauth.scopes", "openid email profile")

	// Session defaults
	v.SetDefault("session.cookie_name", "paperfeed_session")
	v.SetDefault("session.ttl", "720h")
	v.SetDefault("session.secure", true)

	// Query parser defaults. Provider is empty by default: the rule-based
	// parser is the only load-bearing path.
	v.SetDefault("query_parser.provider", "")
	v.SetDefault("query_parser.model", "gpt-4o-mini")
	v.SetDefault("query_parser.base_url", "https://api.openai.com/v1")
	v.SetDefault("query_parser.timeout", "5s")
	v.SetDefault("query_parser.max_retries", 1)
	v.SetDefault("query_parser.temperature", 0.0)

	// Feeds defaults
	v.SetDefault("feeds.default_per_page", 25)
	v.SetDefault("feeds.max_per_page", 200)
	v.SetDefault("feeds.author_resolve_top_k", 3)
	v.SetDefault("feeds.follow_per_entity_limit", 50)
	v.SetDefault("feeds.follow_total_limit", 200)
	v.SetDefault("feeds.follow_concurrency", 8)
	v.SetDefault("feeds.recommendation_default_limit", 20)
	v.SetDefault("feeds.recommendation_max_limit", 100)
	v.SetDefault("feeds.recent_likes_considered", 10)
	v.SetDefault("feeds.related_per_like", 5)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}

	// Validate database config
	switch c.Database.Backend {
	case "memory":
		// No further validation; the in-process store needs nothing.
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", c.Database.Port)
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
		}
	default:
		return fmt.Errorf("invalid database backend: %q (want \"memory\" or \"postgres\")", c.Database.Backend)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate session config. The signing secret is always required: even
	// the in-memory backend issues real signed cookies.
	if c.Session.Secret == "" {
		return fmt.Errorf("PAPERFEED_SESSION_SECRET is required")
	}

	// Validate OAuth config.
	if c.OAuth.ClientID == "" || c.OAuth.ClientSecret == "" {
		return fmt.Errorf("PAPERFEED_OAUTH_CLIENT_ID and PAPERFEED_OAUTH_CLIENT_SECRET are required")
	}

	// The query parser is an optional soft dependency: when a provider is
	// named it needs an API key, but leaving it unset never fails startup
	// because the rule-based parser is always available.
	if c.QueryParser.Provider != "" && c.QueryParser.APIKey == "" {
		return fmt.Errorf("query parser provider %q requires PAPERFEED_QUERY_PARSER_API_KEY to be set", c.QueryParser.Provider)
	}

	if c.Feeds.MaxPerPage <= 0 || c.Feeds.MaxPerPage > 200 {
		return fmt.Errorf("feeds.max_per_page must be in (0, 200]")
	}
	if c.Feeds.DefaultPerPage <= 0 || c.Feeds.DefaultPerPage > c.Feeds.MaxPerPage {
		return fmt.Errorf("feeds.default_per_page must be in (0, max_per_page]")
	}

	return nil
}
