package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/contentapi/internal/app"
	"github.com/conduit-lang/contentapi/internal/logging"
	"github.com/conduit-lang/contentapi/internal/web/server"
)

type serveOptions struct {
	host            string
	port            int
	shutdownTimeout time.Duration
}

func newServeCommand(global *globalOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long: `Start the API server and serve until interrupted.

SIGINT or SIGTERM stops accepting connections, waits for in-flight requests
and then closes the store and cache.

Examples:
  contentapi serve
  contentapi serve --port 9000
  contentapi serve --config /etc/contentapi.yml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, global, opts)
		},
	}

	cmd.Flags().StringVar(&opts.host, "host", "", "Host to listen on (overrides server.host)")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "Port to listen on (overrides server.port)")
	cmd.Flags().DurationVar(&opts.shutdownTimeout, "shutdown-timeout", 30*time.Second, "Time allowed for in-flight requests on shutdown")

	return cmd
}

func runServe(cmd *cobra.Command, global *globalOptions, opts *serveOptions) error {
	cfg, err := global.load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = opts.host
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = opts.port
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	srvCfg := server.DefaultConfig(a.Handler())
	srvCfg.Address = cfg.Server.Address()
	srvCfg.Logger = logger
	if cfg.Server.RequestTimeout+5*time.Second > srvCfg.WriteTimeout {
		srvCfg.WriteTimeout = cfg.Server.RequestTimeout + 5*time.Second
	}
	srv, err := server.New(srvCfg)
	if err != nil {
		return err
	}

	gs := server.NewGracefulShutdown(srv, &server.ShutdownConfig{
		Timeout: opts.shutdownTimeout,
		Logger:  logger,
	})
	gs.RegisterHook(func(context.Context) error {
		logger.Info("closing store and cache")
		return a.Close()
	})

	logger.Info("starting contentapi",
		zap.String("version", Version),
		zap.String("address", srvCfg.Address),
		zap.String("store", cfg.Store.Driver),
		zap.String("cache", cfg.Cache.Backend),
	)
	return gs.Run(ctx)
}
