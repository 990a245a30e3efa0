// Package config loads application configuration from environment variables.
package config

import (
	"log"
	"os"
	"strings"
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env  string // application environment (e.g. "dev", "prod")
	Port string // HTTP port to listen on

	PublicBaseURL string // where this API is reachable; magic links point here
	PortalURL     string // customer-facing frontend; reset links and redirects point here

	JWTSecret    string // secret used to sign access tokens
	AccessTTLMin int    // access token time-to-live in minutes

	InternalSecret   string // shared secret for /internal endpoints
	PasswordPepper   string // server-side pepper mixed into project password digests
	PBKDF2Iterations int

	StoreTimeout time.Duration // bound on every key-value call

	DeveloperEmail        string // developer login and notification recipient
	DeveloperPasswordHash string // bcrypt hash of the developer password

	AMQPURL     string // empty disables the broker; events are logged instead
	NotifyQueue string

	SMTP SMTPConfig
}

// SMTPConfig describes the outbound mail relay.  An empty Host selects the
// log mailer.
type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
	cfg := Config{
		Env:                   envStr("APP_ENV", "dev"),
		Port:                  envStr("APP_PORT", "8080"),
		PublicBaseURL:         strings.TrimRight(envStr("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		PortalURL:             strings.TrimRight(envStr("PORTAL_URL", "http://localhost:3000"), "/"),
		JWTSecret:             must("JWT_SECRET"),
		AccessTTLMin:          envInt("ACCESS_TOKEN_TTL_MIN", 120),
		InternalSecret:        must("INTERNAL_API_SECRET"),
		PasswordPepper:        must("PASSWORD_PEPPER"),
		PBKDF2Iterations:      envInt("PBKDF2_ITERATIONS", 0),
		StoreTimeout:          envDur("STORE_TIMEOUT", 3*time.Second),
		DeveloperEmail:        os.Getenv("DEVELOPER_EMAIL"),
		DeveloperPasswordHash: os.Getenv("DEVELOPER_PASSWORD_HASH"),
		AMQPURL:               envStr("RABBITMQ_URL", os.Getenv("AMQP_URL")),
		NotifyQueue:           envStr("NOTIFY_QUEUE", "portal.notifications"),
		SMTP: SMTPConfig{
			Host: os.Getenv("SMTP_HOST"),
			Port: envInt("SMTP_PORT", 587),
			User: os.Getenv("SMTP_USER"),
			Pass: os.Getenv("SMTP_PASS"),
			From: envStr("SMTP_FROM", "portal@localhost"),
		},
	}
	if cfg.Env == "prod" {
		if cfg.DeveloperEmail == "" || cfg.DeveloperPasswordHash == "" {
			log.Fatalf("DEVELOPER_EMAIL and DEVELOPER_PASSWORD_HASH are required in prod")
		}
	}
	return cfg
}

// AccessTTL returns the access token lifetime.
func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLMin) * time.Minute
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
