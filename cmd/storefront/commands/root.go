package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jacentio/storefront/config"
)

// Version is set at build time with -ldflags "-X .../commands.Version=...".
var Version = "dev"

var (
	// Global flags
	envFiles []string
	driver   string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Storefront catalog API",
	Long: `Storefront serves the catalog REST API (categories, products, users,
reviews and orders) on MongoDB, DynamoDB or an in-memory store.

Configuration is read from the environment, optionally seeded from .env files.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "Environment files to load (default .env)")
	rootCmd.PersistentFlags().StringVar(&driver, "driver", "", "Store driver overriding STORE_DRIVER (mongo, dynamodb, memory)")
}

// loadConfig loads the configuration and the logger every command runs with.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(envFiles...)
	if err != nil {
		return nil, nil, err
	}
	if driver != "" {
		cfg.StoreDriver = driver
	}
	logger := cfg.NewLogger(os.Stdout)
	slog.SetDefault(logger)
	return cfg, logger, nil
}
