package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/contentapi/internal/cli/ui"
	"github.com/conduit-lang/contentapi/internal/config"
	"github.com/conduit-lang/contentapi/internal/logging"
	"github.com/conduit-lang/contentapi/internal/store/sqlstore"
)

func newMigrateCommand(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the SQL schema",
		Long: `Apply pending schema migrations to the configured SQL database.

serve and import migrate automatically; run this to prepare a database
ahead of a deploy.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := sqlConfig(global)
			if err != nil {
				return err
			}
			logger := logging.Must(cfg.Log)
			defer logger.Sync()

			store, err := openMigrated(cmd, cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			ui.WriteSuccess(cmd.OutOrStdout(), "Schema is up to date", color.NoColor)
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they have been applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := sqlConfig(global)
			if err != nil {
				return err
			}
			store, err := sqlstore.Open(cmd.Context(), cfg.Store.Driver, cfg.Store.DSN, logging.Must(cfg.Log))
			if err != nil {
				return err
			}
			defer store.Close()

			states, err := store.MigrationStatus(cmd.Context())
			if err != nil {
				return err
			}

			table := ui.NewTable(cmd.OutOrStdout(), color.NoColor, "VERSION", "NAME", "STATUS")
			for _, st := range states {
				status := "pending"
				if st.Applied {
					status = "applied"
				}
				table.AddRow(fmt.Sprint(st.Version), st.Name, status)
			}
			table.Render()
			return nil
		},
	})

	return cmd
}

func sqlConfig(global *globalOptions) (*config.Config, error) {
	cfg, err := global.load()
	if err != nil {
		return nil, err
	}
	if cfg.Store.Driver == config.DriverMemory {
		return nil, fmt.Errorf("store.driver %q has no schema to migrate", cfg.Store.Driver)
	}
	return cfg, nil
}
