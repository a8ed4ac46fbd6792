package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wiredm/internal/app"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "migrate",
		Short:   "Apply pending database migrations and exit",
		Args:    cobra.NoArgs,
		PreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.OpenStore(context.Background(), &cfg)
			if err != nil {
				return err
			}
			logger.Info().Str("driver", cfg.DBDriver).Msg("migrations applied")
			return st.Close()
		},
	}
}
