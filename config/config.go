// Package config loads the storefront process configuration from the
// environment, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverMongo    = "mongo"
	DriverDynamoDB = "dynamodb"
	DriverMemory   = "memory"
)

var (
	// ErrMissingJWTKey is returned when JWT_PRIVATE_KEY is not set.
	ErrMissingJWTKey = errors.New("config: JWT_PRIVATE_KEY is not defined")

	// ErrMissingMailCredentials is returned when MAIL_USER or MAIL_PASSWORD is not set.
	ErrMissingMailCredentials = errors.New("config: MAIL_USER and MAIL_PASSWORD must be defined")

	// ErrInvalidValue is returned when a variable can't be parsed.
	ErrInvalidValue = errors.New("config: invalid value")
)

// Config is the process configuration.
type Config struct {
	Host string
	Port string

	StoreDriver string

	MongoURI      string
	MongoDatabase string

	DynamoDBEndpoint    string
	DynamoDBTablePrefix string
	AWSRegion           string

	JWTPrivateKey string

	MailHost     string
	MailPort     int
	MailUser     string
	MailPassword string
	MailFrom     string

	PublicBaseURL     string
	RoutePolicyStrict bool

	LogLevel  slog.Level
	LogFormat string
}

// Addr returns the address the HTTP server listens on.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// Load reads the configuration from the environment after loading the given
// .env files (".env" when none are named). Missing files are ignored;
// variables already set in the environment take precedence.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return parse(os.LookupEnv)
}

func parse(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	c := &Config{
		Host:                get("HOST", ""),
		Port:                get("PORT", "3000"),
		StoreDriver:         strings.ToLower(get("STORE_DRIVER", DriverMongo)),
		MongoURI:            get("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
		MongoDatabase:       get("MONGO_DB", "storefront"),
		DynamoDBEndpoint:    get("DYNAMODB_ENDPOINT", ""),
		DynamoDBTablePrefix: get("DYNAMODB_TABLE_PREFIX", "storefront-"),
		AWSRegion:           get("AWS_REGION", "us-east-1"),
		JWTPrivateKey:       get("JWT_PRIVATE_KEY", ""),
		MailHost:            get("MAIL_HOST", "smtp.gmail.com"),
		MailUser:            get("MAIL_USER", ""),
		MailPassword:        get("MAIL_PASSWORD", ""),
		PublicBaseURL:       get("PUBLIC_BASE_URL", "http://localhost:3000"),
		LogFormat:           strings.ToLower(get("LOG_FORMAT", "json")),
	}
	c.MailFrom = get("MAIL_FROM", c.MailUser)

	port, err := strconv.Atoi(get("MAIL_PORT", "587"))
	if err != nil || port <= 0 {
		return nil, fmt.Errorf("%w: MAIL_PORT %q", ErrInvalidValue, get("MAIL_PORT", ""))
	}
	c.MailPort = port

	c.RoutePolicyStrict, err = strconv.ParseBool(get("ROUTE_POLICY_STRICT", "false"))
	if err != nil {
		return nil, fmt.Errorf("%w: ROUTE_POLICY_STRICT %q", ErrInvalidValue, get("ROUTE_POLICY_STRICT", ""))
	}

	if err := c.LogLevel.UnmarshalText([]byte(get("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("%w: LOG_LEVEL: %w", ErrInvalidValue, err)
	}

	switch c.StoreDriver {
	case DriverMongo, DriverDynamoDB, DriverMemory:
	default:
		return nil, fmt.Errorf("%w: STORE_DRIVER %q", ErrInvalidValue, c.StoreDriver)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return nil, fmt.Errorf("%w: LOG_FORMAT %q", ErrInvalidValue, c.LogFormat)
	}

	return c, nil
}

// RequireSecrets reports the secrets missing for serving the API. Commands
// that only touch the store run without them.
func (c *Config) RequireSecrets() error {
	if c.JWTPrivateKey == "" {
		return ErrMissingJWTKey
	}
	if c.MailUser == "" || c.MailPassword == "" {
		return ErrMissingMailCredentials
	}
	return nil
}

// NewLogger returns a logger writing to w in the configured format and level.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
