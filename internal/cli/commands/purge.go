package commands

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/contentapi/internal/app"
	"github.com/conduit-lang/contentapi/internal/cli/ui"
	"github.com/conduit-lang/contentapi/internal/config"
	"github.com/conduit-lang/contentapi/internal/content"
	"github.com/conduit-lang/contentapi/internal/logging"
)

var collections = []string{
	content.KindPage.Collection(),
	content.KindImage.Collection(),
	content.KindDocument.Collection(),
}

func newPurgeCommand(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "purge <collection> <id>",
		Short: "Evict an object's detail URLs from the caches",
		Long: `Purge the detail URL of one object, on every allowed host, from the
Redis response cache and from each purge.frontend_urls cache.

Use this after changing content in the SQL database outside contentapi.

Examples:
  contentapi purge pages 16
  contentapi purge documents 3`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := content.ParseKind(args[0])
			if err != nil {
				return ui.UnknownCollectionError(args[0], collections, color.NoColor, err)
			}
			id, err := strconv.Atoi(args[1])
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid id %q: must be a positive integer", args[1])
			}

			cfg, err := global.load()
			if err != nil {
				return err
			}
			return runPurge(cmd, cfg, kind, id)
		},
	}
}

func runPurge(cmd *cobra.Command, cfg *config.Config, kind content.Kind, id int) error {
	out := cmd.OutOrStdout()
	if cfg.Cache.Backend == config.CacheMemory {
		fmt.Fprint(out, ui.Warning("the memory cache lives inside the server process and cannot be purged from here", color.NoColor))
		cfg.Cache.Backend = config.CacheNone
	}
	if cfg.Cache.Backend == config.CacheNone && len(cfg.Purge.FrontendURLs) == 0 {
		fmt.Fprint(out, ui.Warning("no cache to purge: set cache.backend to redis or purge.frontend_urls", color.NoColor))
		return nil
	}

	logger := logging.Must(cfg.Log)
	defer logger.Sync()

	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	urls, err := a.Notifier.URLs(kind, id)
	if err != nil {
		return err
	}
	if err := a.Notifier.Purge(cmd.Context(), kind, id); err != nil {
		return err
	}
	for _, u := range urls {
		ui.WriteSuccess(out, "Purged "+u, color.NoColor)
	}
	return nil
}
