// Package commands implements the wiredm command line.
package commands

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/wiredm/internal/config"
	"github.com/vovakirdan/wiredm/internal/log"
)

var (
	configPath string
	// overrides holds flag values; zero fields leave the loaded config alone.
	overrides config.Config

	cfg    config.Config
	logger *zerolog.Logger
)

// Execute runs the root command.
func Execute() error {
	root := &cobra.Command{
		Use:           "wiredm",
		Short:         "End-to-end encrypted direct messaging relay",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default ./config.yaml or $WIREDM_CONFIG_DEFAULT_PATH)")
	root.PersistentFlags().StringVar(&overrides.LogLevel, "log-level", "", "override log_level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&overrides.DBDriver, "db-driver", "", "override db_driver (sqlite, postgres)")
	root.PersistentFlags().StringVar(&overrides.DatabaseURL, "database-url", "", "override database_url")

	root.AddCommand(serveCmd(), migrateCmd(), keygenCmd(), chatCmd())
	return root.Execute()
}

// loadConfig resolves configuration for commands that talk to the store.
func loadConfig(cmd *cobra.Command, _ []string) error {
	bootstrap := log.New("info", "console")
	loaded, path, err := config.Load(bootstrap, configPath)
	if err != nil {
		return err
	}
	loaded.UpdateFrom(overrides)
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded
	logger = log.New(cfg.LogLevel, cfg.LogFormat)
	logger.Debug().Str("config", path).Str("command", cmd.Name()).Msg("configuration loaded")
	return nil
}
