package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"mileage/config"
	"mileage/db/cache"
	dbt "mileage/db/db"
	"mileage/db/mem"
	"mileage/db/pg"
	"mileage/logger"
	"mileage/mq/gcppubsub"
	"mileage/mq/goch"
	"mileage/mq/mq"
	"mileage/mq/rabbit"
	"mileage/route"
	"mileage/service"
)

const rateCacheTTL = time.Hour

// app holds everything a command needs. close releases it in reverse order.
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	store   dbt.MileageDBWrapper
	events  mq.MileageMessageQueueWrapper
	svc     *service.Service
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func openApp(ctx context.Context, withEvents bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg: cfg,
		log: logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}),
	}

	if err := a.openStore(); err != nil {
		a.close()
		return nil, err
	}
	if withEvents {
		if err := a.openEvents(ctx); err != nil {
			a.close()
			return nil, err
		}
	}

	var estimator route.Estimator = route.NewStraightLine(cfg.Maps.RoadFactor)
	if cfg.Maps.APIKey != "" {
		google, err := route.NewGoogle(cfg.Maps.APIKey)
		if err != nil {
			a.close()
			return nil, err
		}
		estimator = google
		a.log.Info("route distances from Google Maps")
	}

	a.svc = service.New(a.store, a.events, estimator, a.log, service.OptionsFromConfig(cfg))
	return a, nil
}

func (a *app) openStore() error {
	if a.cfg.DatabaseURL == "" {
		a.log.Warn("DATABASE_URL not set, using the in-memory store")
		a.store = mem.NewInMemoryMileageDBWrapper()
		return nil
	}
	db, err := pg.InitPostgresGORM(pg.CreateDSN(a.cfg.DatabaseURL))
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() { pg.CloseGORM(db) })
	a.store = pg.NewGORMMileageDBWrapper(db)

	if a.cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(a.cfg.RedisURL)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { client.Close() })
		a.store = cache.NewRateCache(a.store, client, rateCacheTTL, a.log)
		a.log.Info("rate lookups cached in redis")
	}
	return nil
}

func (a *app) openEvents(ctx context.Context) error {
	switch mq.Mode(a.cfg.MqMode) {
	case mq.ModeGoChan, "":
		w := goch.NewGoChanMileageMessageQueueWrapper(64)
		a.events = w
	case mq.ModeRabbitMQ:
		conn, err := rabbit.NewRabbitConnection(rabbit.CreateAmqpURL(a.cfg.RabbitURL))
		if err != nil {
			return err
		}
		a.closers = append(a.closers, func() { conn.Close() })
		w, err := rabbit.NewRabbitMileageMessageQueueWrapper(conn, a.log)
		if err != nil {
			return err
		}
		a.events = w
	case mq.ModeGCPPubSub:
		projectID, err := gcppubsub.GetGCPProjectID(a.cfg.GCPProjectID)
		if err != nil {
			return err
		}
		w, err := gcppubsub.NewGCPMileageMessageQueueWrapper(ctx, projectID, a.log)
		if err != nil {
			return err
		}
		a.events = w
	default:
		return fmt.Errorf("unknown mq mode %q", a.cfg.MqMode)
	}
	events := a.events
	a.closers = append(a.closers, func() {
		if err := events.Close(); err != nil {
			a.log.WithError(err).Warn("failed to close message queue")
		}
	})
	a.log.WithField("mode", a.cfg.MqMode).Info("message queue ready")
	return nil
}
