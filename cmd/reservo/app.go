package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"reservo/internal/config"
	"reservo/internal/db"
	"reservo/internal/events"
	"reservo/internal/regen"
	"reservo/internal/report"
	"reservo/internal/schedule"
	"reservo/internal/slots"
)

// app holds the wired services shared by every command.
type app struct {
	cfg        *config.Config
	logger     zerolog.Logger
	db         *db.DB
	redis      *redis.Client
	bus        *events.Bus
	forwarder  *events.AMQPForwarder
	trigger    *regen.Trigger
	keeper     *report.Keeper
	loader     *schedule.Loader
	settings   *schedule.SettingsService
	exceptions *schedule.ExceptionService
	calendar   *schedule.CalendarService
}

func newApp(ctx context.Context, base *zerolog.Logger) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	logger := base.Level(lvl)

	a := &app{cfg: cfg, logger: logger}

	a.db, err = db.NewDB(cfg.Database.Path, &a.logger)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	var versions regen.Versioner = regen.NewLocalVersioner()
	if cfg.Redis.Address != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := a.redis.Ping(pingCtx).Err(); err != nil {
			a.logger.Warn().Err(err).Msg("Redis unavailable, using in-process versions")
			a.redis.Close()
			a.redis = nil
		} else {
			versions = regen.NewRedisVersioner(a.redis, "")
		}
	}

	a.bus = events.NewBus(&a.logger)
	if cfg.Notify.AMQP.URL != "" {
		pub, err := events.NewAMQPPublisher(cfg.Notify.AMQP.URL, cfg.Notify.AMQP.Exchange, &a.logger)
		if err != nil {
			a.logger.Warn().Err(err).Msg("AMQP unavailable, events stay in-process")
		} else {
			a.forwarder = events.NewAMQPForwarder(a.bus, pub, &a.logger)
		}
	}

	a.keeper = report.NewKeeper()
	a.keeper.Attach(a.bus)

	a.trigger = regen.NewTrigger(a.db, slots.NewGenerator(time.UTC), versions, a.bus, regen.Config{
		DefaultAdvanceDays: cfg.Regeneration.DefaultAdvanceDays,
		MaxParallelDates:   cfg.Regeneration.MaxParallelDates,
		Timeout:            cfg.Regeneration.Timeout(),
	}, &a.logger)

	a.loader = schedule.NewLoader(a.db)
	a.settings = schedule.NewSettingsService(a.db, a.loader, a.bus, a.trigger, &a.logger)
	a.exceptions = schedule.NewExceptionService(a.db, a.loader, a.trigger, nil, &a.logger)
	a.calendar = schedule.NewCalendarService(a.db, a.loader)

	return a, nil
}

// close waits for background passes and releases connections.
func (a *app) close() {
	a.trigger.Wait()
	if a.forwarder != nil {
		if err := a.forwarder.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("AMQP close failed")
		}
	}
	if a.redis != nil {
		a.redis.Close()
	}
	a.db.Close()
}

// syncBusinesses applies businesses.yaml once and, when watch is set, on
// every later change of the file.
func (a *app) syncBusinesses(ctx context.Context, watch bool) error {
	syncer := schedule.NewSyncer(a.db, a.settings, a.trigger, nil, &a.logger)
	apply := func(cfg *config.BusinessesConfig) {
		a.logger.Info().Int("businesses", len(cfg.Businesses)).Msg("Applying businesses config")
		if err := syncer.SyncFromConfig(ctx, cfg); err != nil {
			a.logger.Error().Err(err).Msg("Businesses sync finished with errors")
		}
	}

	if watch {
		return config.WatchBusinesses(ctx, a.cfg.BusinessesPath, 10*time.Second, apply)
	}

	cfg, err := config.LoadBusinessesConfig(a.cfg.BusinessesPath)
	if err != nil {
		return err
	}
	apply(cfg)
	return nil
}
