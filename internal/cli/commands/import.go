package commands

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/contentapi/internal/cli/ui"
	"github.com/conduit-lang/contentapi/internal/config"
	"github.com/conduit-lang/contentapi/internal/logging"
	"github.com/conduit-lang/contentapi/internal/store/fixtures"
	"github.com/conduit-lang/contentapi/internal/store/sqlstore"
)

func newImportCommand(global *globalOptions) *cobra.Command {
	var siteFile string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load the site file into the SQL database",
		Long: `Replace the content of the configured SQL database with the sites,
pages, images and documents of a site file. Pending migrations are applied
first. The whole import runs in one transaction.

Examples:
  contentapi import
  contentapi import --site-file content/site.yml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("site-file") {
				cfg.Store.SiteFile = siteFile
			}
			return runImport(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&siteFile, "site-file", "", "Site file to import (overrides store.site_file)")
	return cmd
}

func runImport(cmd *cobra.Command, cfg *config.Config) error {
	if cfg.Store.Driver == config.DriverMemory {
		return fmt.Errorf("import needs a SQL store.driver (%s, %s or %s), got %s",
			config.DriverSQLite, config.DriverPgx, config.DriverPostgres, cfg.Store.Driver)
	}

	ds, err := fixtures.Load(cfg.Store.SiteFile)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	logger := logging.Must(cfg.Log)
	defer logger.Sync()

	store, err := openMigrated(cmd, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	var stats sqlstore.ImportStats
	err = ui.WithSpinner(out, "Importing "+cfg.Store.SiteFile, interactive(cmd), color.NoColor, func() error {
		var err error
		stats, err = store.Import(ctx, ds)
		return err
	})
	if err != nil {
		return err
	}

	kv := ui.NewKeyValueTable(out, color.NoColor)
	kv.AddRow("Sites", strconv.Itoa(stats.Sites))
	kv.AddRow("Pages", strconv.Itoa(stats.Pages))
	kv.AddRow("Images", strconv.Itoa(stats.Images))
	kv.AddRow("Documents", strconv.Itoa(stats.Documents))
	kv.Render()
	return nil
}

// openMigrated opens the configured SQL store and applies pending migrations
func openMigrated(cmd *cobra.Command, cfg *config.Config, logger *zap.Logger) (*sqlstore.Store, error) {
	store, err := sqlstore.Open(cmd.Context(), cfg.Store.Driver, cfg.Store.DSN, logger.Named("sqlstore"))
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(cmd.Context()); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// interactive reports whether the command writes to a terminal
func interactive(cmd *cobra.Command) bool {
	f, ok := cmd.OutOrStdout().(interface{ Fd() uintptr })
	return ok && isatty.IsTerminal(f.Fd())
}
