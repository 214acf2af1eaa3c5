package main

import (
	"context"
	"os"
	"os/signal"

	"fulfillment/api"
	"fulfillment/config"
	"fulfillment/db"
	"fulfillment/message"
	"fulfillment/service"
	observability "fulfillment/trace"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Invalid configuration")
	}

	log.Init(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	traceProvider, err := observability.ConfigureTraceProvider(cfg.JaegerEndpoint)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = traceProvider.Shutdown(context.Background())
	}()

	watermillLogger := log.NewWatermill(log.FromContext(ctx))

	redisClient := message.NewRedisClient(cfg.RedisAddr)
	defer redisClient.Close()

	redisPublisher, err := message.NewRedisPublisher(redisClient, watermillLogger)
	if err != nil {
		panic(err)
	}

	var dbConn *db.DB
	if cfg.PostgresURL != "" {
		conn, err := db.NewDBConn(cfg.PostgresURL)
		if err != nil {
			panic(err)
		}
		defer conn.Close()

		conn.MigrateSchema()
		dbConn = &conn
	}

	svc, err := service.New(
		ctx,
		cfg,
		redisPublisher,
		message.NewRedisSubscriberConstructor(redisClient, watermillLogger),
		redisClient,
		dbConn,
		api.NewMailClient(cfg.MailServiceURL),
		prometheus.DefaultRegisterer,
	)
	if err != nil {
		panic(err)
	}

	logrus.WithField("components", cfg.Components).Info("Starting service")

	err = svc.Run(ctx)
	if err != nil {
		panic(err)
	}
}
