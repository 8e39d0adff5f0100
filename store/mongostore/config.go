package mongostore

import "time"

// Config holds configuration for the Store.
type Config struct {
	// Database is the MongoDB database holding the collections.
	// Default: "storefront"
	Database string

	// ConnectTimeout bounds server selection and the initial ping in Connect.
	// Default: 10s
	ConnectTimeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Database:       "storefront",
		ConnectTimeout: 10 * time.Second,
	}
}

// validate fills in defaults.
func (c *Config) validate() {
	if c.Database == "" {
		c.Database = "storefront"
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
}
