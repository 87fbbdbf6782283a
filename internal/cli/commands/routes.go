package commands

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/contentapi/internal/app"
	"github.com/conduit-lang/contentapi/internal/cli/ui"
	"github.com/conduit-lang/contentapi/internal/config"
)

func newRoutesCommand(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the routes the server answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.load()
			if err != nil {
				return err
			}
			// routes never reach the store or cache
			cfg.Store.Driver = config.DriverMemory
			cfg.Cache.Backend = config.CacheNone

			a, err := app.New(cmd.Context(), cfg, zap.NewNop())
			if err != nil {
				return err
			}
			defer a.Close()

			table := ui.NewTable(cmd.OutOrStdout(), color.NoColor, "METHOD", "PATH", "NAME")
			for _, r := range a.Router().GetRoutes() {
				table.AddRow(r.Method, r.Pattern, r.Name)
			}
			table.Render()
			return nil
		},
	}
}
