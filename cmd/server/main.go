// Command splitit runs the Split-it group expense ledger.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitit/internal/config"
	"github.com/mmynk/splitit/internal/storage/sqlstore"
	"github.com/mmynk/splitit/pkg/logging"
)

// rootOptions holds flags shared by every command. Set flags override
// the environment.
type rootOptions struct {
	EnvFile   string
	DBDriver  string
	DBDSN     string
	LogLevel  string
	LogFormat string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "splitit",
		Short: "Split-it group expense ledger",
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file to load before reading the environment")
	cmd.PersistentFlags().StringVar(&opts.DBDriver, "db-driver", "", "database driver (sqlite|mysql)")
	cmd.PersistentFlags().StringVar(&opts.DBDSN, "db", "", "SQLite path or MySQL DSN")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format (text|json)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newExpireInvitesCommand(opts))
	cmd.AddCommand(newCheckCommand(opts))

	return cmd
}

// load builds the configuration and logger for a command.
func (o *rootOptions) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.EnvFile)
	if err != nil {
		return nil, nil, err
	}
	if o.DBDriver != "" && o.DBDriver != cfg.DBDriver {
		if o.DBDSN == "" {
			return nil, nil, fmt.Errorf("--db is required when --db-driver changes the driver to %q", o.DBDriver)
		}
		cfg.DBDriver = o.DBDriver
	}
	if o.DBDSN != "" {
		cfg.DBDSN = o.DBDSN
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.LogFormat = o.LogFormat
	}
	return cfg, logging.Setup(cfg.LogLevel, cfg.LogFormat), nil
}

func openStore(cfg *config.Config, logger *slog.Logger) (*sqlstore.Store, error) {
	var store *sqlstore.Store
	var err error
	if cfg.DBDriver == sqlstore.DriverSQLite {
		store, err = sqlstore.New(cfg.DBDSN)
	} else {
		store, err = sqlstore.Open(cfg.DBDriver, cfg.DBDSN)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	logger.Info("Storage initialized", "driver", cfg.DBDriver)
	return store, nil
}
