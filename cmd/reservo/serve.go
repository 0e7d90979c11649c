package main

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"reservo/internal/api"
	"reservo/internal/db"
	"reservo/internal/importer"
	"reservo/internal/metrics"
	"reservo/internal/notify"
)

func newServeCmd(base *zerolog.Logger) *cobra.Command {
	var noSync bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, gRPC health, imports and background jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, base)
			if err != nil {
				return err
			}
			defer a.close()

			cfg := a.cfg
			if cfg.Monitoring.PrometheusEnabled {
				metrics.Register()
			}

			if !noSync {
				if err := a.syncBusinesses(ctx, true); err != nil {
					return err
				}
			}

			g, ctx := errgroup.WithContext(ctx)

			if cfg.Backup.Enabled {
				backups := db.NewBackupService(a.db, cfg.Backup, &a.logger)
				g.Go(func() error {
					backups.Start(ctx)
					return nil
				})
			}

			if tg := cfg.Notify.Telegram; tg.BotToken != "" && len(tg.ChatIDs) > 0 {
				notifier, err := notify.NewTelegramFromToken(tg.BotToken, tg.ChatIDs, notify.Options{
					RatePerSecond: tg.RatePerSecond,
					Burst:         tg.RateBurst,
				}, &a.logger)
				if err != nil {
					a.logger.Warn().Err(err).Msg("Telegram notifications disabled")
				} else {
					notifier.Attach(a.bus)
					g.Go(func() error {
						notifier.Run(ctx)
						return nil
					})
				}
			}

			if cfg.CalendarImport.Enabled && len(cfg.CalendarImport.Sources) > 0 {
				im, err := newImporter(ctx, a)
				if err != nil {
					return err
				}
				g.Go(func() error {
					im.Run(ctx, cfg.CalendarImport.Interval())
					return nil
				})
			}

			httpServer := api.NewHTTPServer(cfg.HTTP.Port, cfg.HTTP.APIKey, api.Deps{
				Calendar:   a.calendar,
				Settings:   a.settings,
				Store:      a.db,
				Exceptions: a.exceptions,
				Regen:      a.trigger,
				Slots:      a.db,
				Reports:    a.keeper,
				DB:         a.db,
				Redis:      redisOrNil(a),
			}, &a.logger)
			g.Go(func() error { return httpServer.Start(ctx) })

			if cfg.GRPC.Port > 0 {
				grpcServer := api.NewGRPCServer(cfg.GRPC.Port, &a.logger)
				g.Go(func() error { return grpcServer.Start(ctx) })
			}

			a.logger.Info().Msg("Reservo started")
			err = g.Wait()
			a.logger.Info().Msg("Reservo stopped")
			return err
		},
	}
	cmd.Flags().BoolVar(&noSync, "no-sync", false, "do not apply businesses.yaml on start")
	return cmd
}

func newImporter(ctx context.Context, a *app) (*importer.Importer, error) {
	bindings, err := importer.BindingsFromConfig(ctx, a.cfg.CalendarImport, a.db, redisOrNil(a), &a.logger)
	if err != nil {
		return nil, err
	}
	return importer.New(a.db, a.trigger, bindings, a.cfg.CalendarImport.LookaheadDays, &a.logger), nil
}

// redisOrNil keeps a nil *redis.Client from becoming a non-nil interface.
func redisOrNil(a *app) redis.UniversalClient {
	if a.redis == nil {
		return nil
	}
	return a.redis
}
