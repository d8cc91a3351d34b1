package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	DatabaseURL        string
	AdminEmails        []string
	PayFastPassphrase  string
	AdminTokenSecret   string
	AdminTokenIssuer   string
	AdminTokenAudience string
	KafkaBrokers       []string
	OrderTopic         string
	EmailServiceURL    string
	NotifyEmail        string
	MigrationsPath     string
}

const DefaultPort = "8080"

type loadOptions struct {
	defaultPort string
}

type Option func(*loadOptions)

// WithDefaultPort sets the port used when PORT is unset, for binaries that
// do not listen on DefaultPort.
func WithDefaultPort(port string) Option {
	return func(o *loadOptions) {
		o.defaultPort = port
	}
}

// Load reads the process environment, after merging a .env file from the
// working directory when one exists. Variables already set win over .env.
// A missing DATABASE_URL is not an error here; the connector reports it
// on first use.
func Load(opts ...Option) (*Config, error) {
	o := loadOptions{defaultPort: DefaultPort}
	for _, opt := range opts {
		opt(&o)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	cfg := &Config{
		Port:               getEnv("PORT", o.defaultPort),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		AdminEmails:        SplitList(os.Getenv("ADMIN_EMAILS")),
		PayFastPassphrase:  os.Getenv("PAYFAST_PASSPHRASE"),
		AdminTokenSecret:   os.Getenv("ADMIN_TOKEN_SECRET"),
		AdminTokenIssuer:   os.Getenv("ADMIN_TOKEN_ISSUER"),
		AdminTokenAudience: os.Getenv("ADMIN_TOKEN_AUDIENCE"),
		KafkaBrokers:       SplitList(os.Getenv("KAFKA_BROKERS")),
		OrderTopic:         getEnv("ORDER_TOPIC", "order.received"),
		EmailServiceURL:    os.Getenv("EMAIL_SERVICE_URL"),
		NotifyEmail:        getEnv("NOTIFY_EMAIL", "sales@example.com"),
		MigrationsPath:     getEnv("MIGRATIONS_PATH", "file://migrations"),
	}

	if len(cfg.AdminEmails) == 0 {
		slog.Warn("ADMIN_EMAILS is empty, admin endpoints will reject every request")
	}

	return cfg, nil
}

// SplitList splits a comma-separated value, trimming blanks and dropping
// empty entries.
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
