package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/promptcoach/internal/config"
	"github.com/dshills/promptcoach/internal/server"
)

var (
	flagAddr    string
	flagNoWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the review API over HTTP",
	Long: "Serve the review API. The config file is watched and persona, provider and " +
		"fallback settings are reloaded on save; cache, ledger and listener settings need " +
		"a restart.",
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides := map[string]string{}
		if flagAddr != "" {
			overrides["server.addr"] = flagAddr
		}
		cfg, err := loadConfig(overrides)
		if err != nil {
			return fail(cmd, err)
		}
		warnRedaction(cmd, cfg)

		rt, err := newRuntime(cfg)
		if err != nil {
			return fail(cmd, err)
		}
		defer rt.Close()

		opts := []server.Option{
			server.WithLogger(logger),
			server.WithLedger(rt.ledger),
			server.WithVersion(version),
		}
		if rt.redis != nil {
			opts = append(opts, server.WithHealthCheck("redis", pingRedis(rt.redis)))
		}
		srv := server.New(rt.engine, cfg, opts...)

		ctx, stop := signalContext(cmd)
		defer stop()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return srv.Run(gctx, cfg.Server.Addr)
		})
		if !flagNoWatch {
			path, err := configFilePath()
			if err != nil {
				return fail(cmd, err)
			}
			g.Go(func() error {
				err := config.Watch(gctx, path, overrides, config.DefaultDebounce, func(next config.Config, err error) {
					if err != nil {
						logger.Warn("config reload failed, keeping previous config", zap.Error(err))
						return
					}
					srv.SetConfig(next)
				})
				if err != nil && !errors.Is(err, context.Canceled) {
					// Serving continues without hot reload.
					logger.Warn("config watch stopped", zap.String("path", path), zap.Error(err))
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return fail(cmd, err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address (default from config server.addr)")
	serveCmd.Flags().BoolVar(&flagNoWatch, "no-watch", false, "Do not reload the config file on change")
}
