package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"fulfillment/config"
	"fulfillment/db"
	"fulfillment/db/memory"
	fulfillmentHttp "fulfillment/http"
	"fulfillment/message"
	"fulfillment/message/bus"
	"fulfillment/message/command"
	"fulfillment/message/delay"
	"fulfillment/message/event"
	"fulfillment/message/outbox"
	"fulfillment/message/sagas"
	"fulfillment/notification"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	watermillMetrics "github.com/ThreeDotsLabs/watermill/components/metrics"
	watermillMessage "github.com/ThreeDotsLabs/watermill/message"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type inventoryLedger interface {
	command.InventoryLedger
	fulfillmentHttp.InventoryRepository
}

type Service struct {
	httpAddr string

	watermillRouter *watermillMessage.Router
	delayForwarder  *delay.Forwarder
	echoRouter      *echo.Echo
}

// New wires the service. Orders and stock are kept in Postgres when dbConn is
// set, in memory otherwise.
func New(
	ctx context.Context,
	cfg config.Config,
	broker watermillMessage.Publisher,
	newSubscriber bus.SubscriberConstructor,
	redisClient redis.UniversalClient,
	dbConn *db.DB,
	mailer command.Mailer,
	registerer prometheus.Registerer,
) (Service, error) {
	watermillLogger := log.NewWatermill(log.FromContext(ctx))
	metricsBuilder := watermillMetrics.NewPrometheusMetricsBuilder(registerer, "fulfillment", "")

	scheduler := delay.NewScheduler(redisClient, "")

	brokerPublisher, err := message.NewBrokerPublisher(broker, scheduler, cfg.DelayTiers, metricsBuilder)
	if err != nil {
		return Service{}, err
	}
	envelopePublisher := bus.NewPublisher(message.NewPublisher(brokerPublisher))

	var (
		orderRepository  sagas.OrderRepository
		ledger           inventoryLedger
		outboxSubscriber watermillMessage.Subscriber
	)

	if dbConn != nil {
		orderRepository = db.NewOrderRepository(dbConn.Conn)

		dbLedger := db.NewInventoryLedger(dbConn.Conn)
		if err := dbLedger.Seed(ctx, cfg.InventorySeed...); err != nil {
			return Service{}, err
		}
		ledger = dbLedger

		outboxSubscriber, err = outbox.NewSubscriber(dbConn.Conn, watermillLogger)
		if err != nil {
			return Service{}, err
		}
	} else {
		orderRepository = memory.NewOrderStore(envelopePublisher, cfg.RetryPolicy())
		ledger = memory.NewInventoryLedger(cfg.InventorySeed...)
	}

	orders, err := sagas.NewOrderFulfillment(orderRepository, cfg.TimeoutDelayTier)
	if err != nil {
		return Service{}, err
	}

	dispatcher := notification.NewDispatcher(
		envelopePublisher,
		cfg.RetryPolicy(),
		cfg.MailDefaultRecipient,
		cfg.PaymentWindow(),
	)

	registry, err := message.NewRegistry(cfg, message.Handlers{
		Orders:        orders,
		Commands:      command.NewHandler(ledger, mailer, cfg.RetryPolicy()),
		Notifications: event.NewHandler(dispatcher),
	})
	if err != nil {
		return Service{}, fmt.Errorf("could not register handlers: %w", err)
	}

	watermillRouter, err := message.NewWatermillRouter(
		outboxSubscriber,
		brokerPublisher,
		broker,
		registry,
		newSubscriber,
		metricsBuilder,
		watermillLogger,
	)
	if err != nil {
		return Service{}, err
	}

	return Service{
		httpAddr:        cfg.HTTPAddr,
		watermillRouter: watermillRouter,
		delayForwarder:  delay.NewForwarder(scheduler, broker, cfg.DelayPollInterval),
		echoRouter:      fulfillmentHttp.NewHttpRouter(orders, ledger),
	}, nil
}

func (s Service) Run(
	ctx context.Context,
) error {
	errgrp, ctx := errgroup.WithContext(ctx)

	errgrp.Go(func() error {
		return s.watermillRouter.Run(ctx)
	})

	errgrp.Go(func() error {
		return s.delayForwarder.Run(ctx)
	})

	errgrp.Go(func() error {
		// we don't want to start HTTP server before Watermill router (so service won't be healthy before it's ready)
		select {
		case <-s.watermillRouter.Running():
		case <-ctx.Done():
			return nil
		}

		err := s.echoRouter.Start(s.httpAddr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	errgrp.Go(func() error {
		<-ctx.Done()
		return s.echoRouter.Shutdown(context.Background())
	})

	return errgrp.Wait()
}
