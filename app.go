package main

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/delivery-app/config"
	"github.com/yeremiapane/delivery-app/models"
	"github.com/yeremiapane/delivery-app/realtime"
	"github.com/yeremiapane/delivery-app/router"
	"github.com/yeremiapane/delivery-app/services"
	"github.com/yeremiapane/delivery-app/utils"
	"gorm.io/gorm"
)

// app is the wired backend. Close releases what newApp opened, in reverse.
type app struct {
	DB      *gorm.DB
	Hub     *realtime.Hub
	Orders  *services.OrderService
	Sweeper *services.Sweeper
	Router  *gin.Engine

	closers []func()
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{}

	db, err := config.InitDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	utils.InfoLogger.Info("AutoMigrate completed.")
	a.DB = db
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, func() { _ = sqlDB.Close() })
	}

	// Realtime fan-out goes through Redis when configured so several
	// instances share channels.
	var broker realtime.Broker
	rdb, err := config.InitRedis(ctx, cfg)
	switch {
	case err != nil:
		utils.ErrorLogger.WithError(err).Warn("Redis unavailable, realtime stays in-process")
	case rdb != nil:
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		broker = realtime.NewRedisBroker(rdb)
		utils.InfoLogger.WithField("addr", cfg.RedisAddr).Info("Realtime fan-out via Redis")
	}
	a.Hub = realtime.NewHub(broker)
	if err := a.Hub.Run(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("start realtime hub: %w", err)
	}
	a.closers = append(a.closers, func() { _ = a.Hub.Close() })

	var events services.EventPublisher = services.NopEventPublisher{}
	if w := config.NewKafkaWriter(cfg); w != nil {
		kp := services.NewKafkaEventPublisher(w)
		a.closers = append(a.closers, func() { _ = kp.Close() })
		events = kp
		utils.InfoLogger.WithField("topic", cfg.KafkaTopic).Info("Publishing order events to Kafka")
	}

	a.Orders = services.NewOrderService(db, a.Hub, events, services.OrderConfig{
		Fees:     cfg.Fees,
		Checkout: cfg.Checkout,
		Earnings: cfg.Earnings,
	})

	a.Sweeper = services.NewSweeper(a.Orders, cfg.SweepInterval, cfg.AcceptTimeout)
	a.Sweeper.Start()
	a.closers = append(a.closers, a.Sweeper.Stop)

	a.Router = router.SetupRouter(router.Deps{
		DB:          db,
		Hub:         a.Hub,
		Orders:      a.Orders,
		CORSOrigins: cfg.CORSOrigins,
		UploadDir:   cfg.UploadDir,
	})
	if err := a.Router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		utils.ErrorLogger.WithError(err).Warn("Could not set trusted proxies")
	}
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
