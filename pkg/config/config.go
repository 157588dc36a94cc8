package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NATS     NATSConfig
	Auth     AuthConfig
	Email    EmailConfig
	Waitlist WaitlistConfig
}

type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

// Storage backends understood by repository.Open.
const (
	BackendJSON     = "json"
	BackendCSV      = "csv"
	BackendPostgres = "postgres"
)

type StorageConfig struct {
	Backend string
	DataDir string
}

type DatabaseConfig struct {
	URL         string
	MaxConns    int
	MinConns    int
	MaxLifetime time.Duration
	AutoMigrate bool
}

type RedisConfig struct {
	URL               string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

type NATSConfig struct {
	URL string
}

// DefaultJWTSecret is the development fallback for JWT_SECRET. It is public,
// so Validate refuses it once admin login is enabled.
const DefaultJWTSecret = "dev-only-secret-change-in-prod"

type AuthConfig struct {
	JWTSecret         string
	AdminPasswordHash string // argon2id encoded hash
	AdminTokenTTL     time.Duration
}

// Email providers.
const (
	ProviderSMTP       = "smtp"
	ProviderMailerSend = "mailersend"
	ProviderDev        = "dev"
)

type EmailConfig struct {
	Provider      string
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPass      string
	SMTPFrom      string
	FromName      string
	SMTPUseTLS    bool // implicit TLS, e.g. port 465
	MailerSendKey string
	DevMode       bool // print emails to logs instead of sending
	SendTimeout   time.Duration
	LogoPath      string
}

type WaitlistConfig struct {
	RequireName bool
}

func Load() *Config {
	smtpUser := getEnv("SMTP_USER", "")
	return &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			ReadTimeout:    getDuration("SERVER_READ_TIMEOUT", 5*time.Second),
			WriteTimeout:   getDuration("SERVER_WRITE_TIMEOUT", 20*time.Second),
			IdleTimeout:    getDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			AllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Storage: StorageConfig{
			Backend: strings.ToLower(getEnv("STORAGE_BACKEND", BackendJSON)),
			DataDir: getEnv("DATA_DIR", "."),
		},
		Database: DatabaseConfig{
			URL:         getEnv("DATABASE_URL", ""),
			MaxConns:    getInt("DB_MAX_CONNS", 10),
			MinConns:    getInt("DB_MIN_CONNS", 1),
			MaxLifetime: getDuration("DB_MAX_LIFETIME", time.Hour),
			AutoMigrate: getBool("DB_AUTO_MIGRATE", true),
		},
		Redis: RedisConfig{
			URL:               getEnv("REDIS_URL", ""),
			RateLimitRequests: getInt("RATE_LIMIT_REQUESTS", 10),
			RateLimitWindow:   getDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", ""),
		},
		Auth: AuthConfig{
			JWTSecret:         getEnv("JWT_SECRET", DefaultJWTSecret),
			AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
			AdminTokenTTL:     getDuration("ADMIN_TOKEN_TTL", 12*time.Hour),
		},
		Email: EmailConfig{
			Provider:      strings.ToLower(getEnv("EMAIL_PROVIDER", ProviderSMTP)),
			SMTPHost:      getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:      getInt("SMTP_PORT", 465),
			SMTPUser:      smtpUser,
			SMTPPass:      getEnv("SMTP_PASS", ""),
			SMTPFrom:      getEnv("SMTP_FROM", smtpUser),
			FromName:      getEnv("EMAIL_FROM_NAME", "JustBook"),
			SMTPUseTLS:    getBool("SMTP_USE_TLS", true),
			MailerSendKey: getEnv("MAILERSEND_API_KEY", ""),
			DevMode:       getBool("EMAIL_DEV_MODE", false),
			SendTimeout:   getDuration("EMAIL_SEND_TIMEOUT", 10*time.Second),
			LogoPath:      getEnv("EMAIL_LOGO_PATH", ""),
		},
		Waitlist: WaitlistConfig{
			RequireName: getBool("WAITLIST_REQUIRE_NAME", false),
		},
	}
}

// Validate checks the settings the process cannot start without. Missing mail
// credentials are not an error here: joins report CONFIG_ERROR instead.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case BackendJSON, BackendCSV:
		if strings.TrimSpace(c.Storage.DataDir) == "" {
			errs = append(errs, errors.New("DATA_DIR is required for file storage"))
		}
	case BackendPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend))
	}

	switch c.Email.Provider {
	case ProviderSMTP, ProviderMailerSend, ProviderDev:
	default:
		errs = append(errs, fmt.Errorf("unknown EMAIL_PROVIDER %q", c.Email.Provider))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	} else if c.Auth.AdminPasswordHash != "" && c.Auth.JWTSecret == DefaultJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be set when ADMIN_PASSWORD_HASH is configured"))
	}
	if c.Email.SendTimeout <= 0 {
		errs = append(errs, errors.New("EMAIL_SEND_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}

// Configured reports whether the selected mail transport has the credentials
// it needs to deliver anything.
func (e EmailConfig) Configured() bool {
	if e.DevMode || e.Provider == ProviderDev {
		return true
	}
	switch e.Provider {
	case ProviderMailerSend:
		return e.MailerSendKey != "" && e.SMTPFrom != ""
	case ProviderSMTP:
		return e.SMTPHost != "" && e.SMTPUser != "" && e.SMTPPass != "" && e.SMTPFrom != ""
	}
	return false
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
