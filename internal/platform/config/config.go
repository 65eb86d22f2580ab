// Package config builds runtime configuration from environment variables so
// main stays lean. Every knob has a development default; production deploys
// override via env.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full runtime configuration for the server.
type Config struct {
	Addr string

	PostgresDSN string
	Redis       RedisConfig

	Tokens     TokenConfig
	Retries    RetryConfig
	Directory  DirectoryConfig
	Notify     NotifyConfig
	RememberMe RememberMeConfig
	Session    SessionConfig
	Mfa        MfaConfig

	AuditBrokers []string
	AuditTopic   string
}

// RedisConfig carries connection settings for the optional Redis token store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// TokenConfig holds per-type token lifetimes.
type TokenConfig struct {
	ResetTTL      time.Duration
	VerifiedTTL   time.Duration
	AccountTTL    time.Duration
	MfaTTL        time.Duration
	RememberMeTTL time.Duration
}

// RetryConfig holds the lockout threshold shared by login and MFA counters.
type RetryConfig struct {
	LockoutThreshold int
}

// DirectoryConfig points at the upstream user directories.
type DirectoryConfig struct {
	PrisonBaseURL    string
	ProbationBaseURL string
	FederatedBaseURL string
	Timeout          time.Duration
}

// NotifyConfig carries the notification service endpoint and template ids.
type NotifyConfig struct {
	BaseURL          string
	APIKey           string
	MfaEmailTemplate string
	MfaTextTemplate  string
	ResetTemplate    string
	VerifyTemplate   string
	InitialTemplate  string
}

// RememberMeConfig configures signed remember-this-device tokens.
type RememberMeConfig struct {
	SigningKey string
	TTL        time.Duration
}

// SessionConfig configures the signed principal tokens handed out after a
// fully verified login.
type SessionConfig struct {
	SigningKey string
	TTL        time.Duration
}

// MfaConfig holds the challenge policy knobs.
type MfaConfig struct {
	// TrustedCIDRs lists networks whose logins skip the second factor.
	TrustedCIDRs []string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:        envOr("SIGNON_ADDR", ":8080"),
		PostgresDSN: envOr("SIGNON_POSTGRES_DSN", ""),
		Redis: RedisConfig{
			URL:          envOr("SIGNON_REDIS_URL", ""),
			PoolSize:     envInt("SIGNON_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("SIGNON_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("SIGNON_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("SIGNON_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("SIGNON_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Tokens: TokenConfig{
			ResetTTL:      envDuration("SIGNON_TOKEN_RESET_TTL", 24*time.Hour),
			VerifiedTTL:   envDuration("SIGNON_TOKEN_VERIFIED_TTL", 24*time.Hour),
			AccountTTL:    envDuration("SIGNON_TOKEN_ACCOUNT_TTL", 7*24*time.Hour),
			MfaTTL:        envDuration("SIGNON_TOKEN_MFA_TTL", 20*time.Minute),
			RememberMeTTL: envDuration("SIGNON_TOKEN_REMEMBER_ME_TTL", 7*24*time.Hour),
		},
		Retries: RetryConfig{
			LockoutThreshold: envInt("SIGNON_LOCKOUT_THRESHOLD", 3),
		},
		Directory: DirectoryConfig{
			PrisonBaseURL:    envOr("SIGNON_PRISON_API_URL", ""),
			ProbationBaseURL: envOr("SIGNON_PROBATION_API_URL", ""),
			FederatedBaseURL: envOr("SIGNON_FEDERATED_API_URL", ""),
			Timeout:          envDuration("SIGNON_DIRECTORY_TIMEOUT", 5*time.Second),
		},
		Notify: NotifyConfig{
			BaseURL:          envOr("SIGNON_NOTIFY_URL", ""),
			APIKey:           envOr("SIGNON_NOTIFY_API_KEY", ""),
			MfaEmailTemplate: envOr("SIGNON_NOTIFY_MFA_EMAIL_TEMPLATE", "mfa-email"),
			MfaTextTemplate:  envOr("SIGNON_NOTIFY_MFA_TEXT_TEMPLATE", "mfa-text"),
			ResetTemplate:    envOr("SIGNON_NOTIFY_RESET_TEMPLATE", "reset-password"),
			VerifyTemplate:   envOr("SIGNON_NOTIFY_VERIFY_TEMPLATE", "verify-email"),
			InitialTemplate:  envOr("SIGNON_NOTIFY_INITIAL_TEMPLATE", "initial-password"),
		},
		RememberMe: RememberMeConfig{
			// Override in production. The default keeps local development working.
			SigningKey: envOr("SIGNON_REMEMBER_ME_KEY", "dev-secret-key-change-in-production"),
			TTL:        envDuration("SIGNON_TOKEN_REMEMBER_ME_TTL", 7*24*time.Hour),
		},
		Session: SessionConfig{
			SigningKey: envOr("SIGNON_SESSION_KEY", "dev-secret-key-change-in-production"),
			TTL:        envDuration("SIGNON_SESSION_TTL", 12*time.Hour),
		},
		Mfa: MfaConfig{
			TrustedCIDRs: splitNonEmpty(envOr("SIGNON_MFA_TRUSTED_CIDRS", "")),
		},
		AuditBrokers: splitNonEmpty(envOr("SIGNON_AUDIT_BROKERS", "")),
		AuditTopic:   envOr("SIGNON_AUDIT_TOPIC", "signon.audit"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
