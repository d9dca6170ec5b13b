package config

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/upb/sessiongate/session"
	"github.com/upb/sessiongate/token"
	"github.com/upb/sessiongate/utils"
	"go.uber.org/zap"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Auth          AuthConfig
	OIDC          OIDCConfig
	Database      DatabaseConfig // Optional: enables the login audit trail when set
	Transcription TranscriptionConfig
	CORS          CORSConfig
	Observability ObservabilityConfig
	Environment   string `validate:"required"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int `validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TLS             struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// AuthConfig holds the session token and cookie settings
type AuthConfig struct {
	JWTSecret          string `validate:"required"`
	TokenTTLMinutes    int    `validate:"gt=0"`
	RedirectSuccessURL string `validate:"required,url"` // Post-login landing page (FRONTEND_REDIRECT_SUCCESS)
	CookieSecure       bool
	CookieSameSite     string
}

// OIDCConfig holds the upstream identity provider settings.
// Login endpoints are disabled when IssuerURL or ClientID is empty.
type OIDCConfig struct {
	IssuerURL    string `validate:"omitempty,url"`
	ClientID     string
	ClientSecret string
	RedirectURI  string `validate:"omitempty,url"`
	Scopes       []string
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// TranscriptionConfig holds the speech-to-text passthrough configuration
type TranscriptionConfig struct {
	APIKey         string
	BaseURL        string        `validate:"required,url"`
	Model          string        `validate:"required"`
	Language       string
	MaxUploadBytes int64         `validate:"gt=0"`
	Timeout        time.Duration `validate:"gt=0"`
}

// CORSConfig holds the browser origins allowed to call the API with credentials
type CORSConfig struct {
	AllowedOrigins []string `validate:"required,min=1"`
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string `validate:"required,oneof=debug info warn error"`
	LogFormat      string `validate:"required,oneof=json console"`
	MetricsEnabled bool
	MetricsPort    int `validate:"gt=0,lte=65535"`
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 90*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			TLS: struct {
				Enabled  bool
				CertFile string
				KeyFile  string
			}{
				Enabled:  getEnvAsBool("TLS_ENABLED", false),
				CertFile: getEnv("TLS_CERT_FILE", "certs/cert.pem"),
				KeyFile:  getEnv("TLS_KEY_FILE", "certs/key.pem"),
			},
		},
		Auth: AuthConfig{
			JWTSecret:          getEnv("APP_JWT_SECRET", ""),
			TokenTTLMinutes:    getEnvAsInt("APP_JWT_EXPIRY_MINUTES", 120),
			RedirectSuccessURL: getEnv("FRONTEND_REDIRECT_SUCCESS", "http://localhost:5173/auth/callback"),
			CookieSecure:       getEnvAsBool("SESSION_COOKIE_SECURE", true),
			CookieSameSite:     getEnv("SESSION_COOKIE_SAMESITE", ""),
		},
		OIDC: OIDCConfig{
			IssuerURL:    getEnv("OIDC_ISSUER_URL", ""),
			ClientID:     getEnv("OIDC_CLIENT_ID", ""),
			ClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("OIDC_REDIRECT_URI", "http://localhost:8080/login/oauth2/code/oidc"),
			Scopes:       getEnvAsList("OIDC_SCOPES", []string{"openid", "email", "profile"}),
		},
		Database: loadDatabaseConfig(),
		Transcription: TranscriptionConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			BaseURL:        getEnv("OPENAI_API_URL", "https://api.openai.com/v1"),
			Model:          getEnv("TRANSCRIPTION_MODEL", "whisper-1"),
			Language:       getEnv("TRANSCRIPTION_LANGUAGE", "en"),
			MaxUploadBytes: getEnvAsInt64("TRANSCRIPTION_MAX_UPLOAD_BYTES", 25*1024*1024),
			Timeout:        getEnvAsDuration("TRANSCRIPTION_TIMEOUT", 60*time.Second),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks struct constraints and the cross-field rules
func (c *Config) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return err
	}

	if len(c.Auth.JWTSecret) < token.MinSecretLength {
		return fmt.Errorf("APP_JWT_SECRET must be at least %d bytes", token.MinSecretLength)
	}

	// An insecure session cookie is an explicit development-only choice
	if !c.Auth.CookieSecure && c.IsProduction() {
		return fmt.Errorf("SESSION_COOKIE_SECURE=false is not allowed in production")
	}

	sameSite, ok := session.ParseSameSite(c.Auth.CookieSameSite)
	if !ok {
		return fmt.Errorf("invalid SESSION_COOKIE_SAMESITE %q: use lax, strict, none or leave empty", c.Auth.CookieSameSite)
	}
	if sameSite == http.SameSiteNoneMode && !c.Auth.CookieSecure {
		return fmt.Errorf("SESSION_COOKIE_SAMESITE=none requires SESSION_COOKIE_SECURE=true")
	}

	// OIDC validation (required in production)
	if c.IsProduction() {
		if c.OIDC.IssuerURL == "" {
			return fmt.Errorf("oidc issuer URL is required in production")
		}
		if c.OIDC.ClientID == "" {
			return fmt.Errorf("oidc client ID is required in production")
		}
	}

	if c.Database.Enabled() && c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	return nil
}

// TokenTTL returns the configured session lifetime
func (c *AuthConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// SameSite returns the parsed SameSite mode; call after Validate
func (c *AuthConfig) SameSite() http.SameSite {
	mode, _ := session.ParseSameSite(c.CookieSameSite)
	return mode
}

// Enabled reports whether OIDC login is configured
func (c *OIDCConfig) Enabled() bool {
	return c.IssuerURL != "" && c.ClientID != ""
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// LogFields returns the configuration as log fields with secrets redacted
func (c *Config) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("environment", c.Environment),
		zap.String("address", c.Server.Address()),
		zap.Bool("tls", c.Server.TLS.Enabled),
		zap.Int("token_ttl_minutes", c.Auth.TokenTTLMinutes),
		zap.Bool("cookie_secure", c.Auth.CookieSecure),
		zap.String("redirect_success", c.Auth.RedirectSuccessURL),
		zap.Bool("oidc_enabled", c.OIDC.Enabled()),
		zap.String("oidc_issuer", c.OIDC.IssuerURL),
		zap.Bool("audit_db_enabled", c.Database.Enabled()),
		zap.Bool("transcription_configured", c.Transcription.APIKey != ""),
		zap.Strings("cors_origins", c.CORS.AllowedOrigins),
	}
}

// Enabled reports whether a database is configured
func (c *DatabaseConfig) Enabled() bool {
	return c.ConnectionString != "" || c.Host != ""
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", ""),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", ""),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "sessiongate"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma-separated value, dropping empty entries
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
