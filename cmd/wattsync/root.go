package main

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hfujita/wattsync/internal/config"
	"github.com/hfujita/wattsync/internal/database"
	"github.com/hfujita/wattsync/internal/issues"
	"github.com/hfujita/wattsync/internal/statistics"
)

var (
	cfgFile string
	dbPath  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "wattsync",
	Short: "Sync electricity usage from a scraper addon into a local statistics store",
	Long: `wattsync pulls daily electricity interval readings from a remote scraper
service, reconciles them into a monotonically cumulative SQLite time
series, and optionally republishes committed points to Home Assistant
over MQTT. Run 'wattsync serve' for the daily schedule, or 'wattsync
fetch' for an on-demand backfill.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (default is ./wattsync.db)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// getDBPath returns the database file path (local directory)
func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	return "wattsync.db"
}

// loadConfig loads the configuration file
func loadConfig() (*config.Config, error) {
	return config.Load(getConfigPath())
}

// openStores opens the database and wires the statistics store and the
// issue registry on the shared connection. The caller closes conn.
func openStores() (*sql.DB, *statistics.Store, *issues.Registry, error) {
	conn, err := database.Open(getDBPath())
	if err != nil {
		return nil, nil, nil, err
	}

	store, err := statistics.NewStore(conn)
	if err != nil {
		conn.Close()
		return nil, nil, nil, err
	}

	registry, err := issues.NewRegistry(conn)
	if err != nil {
		conn.Close()
		return nil, nil, nil, err
	}

	return conn, store, registry, nil
}

// newLogger builds the process logger; --verbose lowers it to debug
func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}
