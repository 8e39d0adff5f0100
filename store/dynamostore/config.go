package dynamostore

// Config holds configuration for the Store.
type Config struct {
	// TablePrefix is prepended to collection names to form table names.
	// Default: "storefront-"
	TablePrefix string

	// UniqueTable is the name of the unique constraints table.
	// Default: TablePrefix + "unique_constraints"
	UniqueTable string
}

// DefaultConfig returns the default table layout.
func DefaultConfig() Config {
	return Config{
		TablePrefix: "storefront-",
		UniqueTable: "storefront-unique_constraints",
	}
}

// validate fills in defaults.
func (c *Config) validate() {
	if c.TablePrefix == "" {
		c.TablePrefix = "storefront-"
	}
	if c.UniqueTable == "" {
		c.UniqueTable = c.TablePrefix + "unique_constraints"
	}
}
