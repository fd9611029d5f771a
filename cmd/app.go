package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/config"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/gateway"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/interfaces"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/lock"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/notify"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/queue"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/repository"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/service"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/telemetry"
)

// lockWait bounds how long a refund waits on another refund of the same order.
const lockWait = 5 * time.Second

// app holds the wired service and everything that must be closed on exit.
type app struct {
	cfg          *config.Config
	commerce     *repository.CommerceRepository
	logs         *repository.RefundLogRepository
	orchestrator *service.Orchestrator
	closers      []func() error
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	a.closers = append(a.closers, db.Close)

	requests := repository.NewRefundRequestRepository(db)
	if err := requests.InitDB(); err != nil {
		a.close()
		return nil, fmt.Errorf("initialize refund_request table: %w", err)
	}
	logs := repository.NewRefundLogRepository(db)
	a.logs = logs
	if err := logs.InitDB(); err != nil {
		a.close()
		return nil, fmt.Errorf("initialize refund_log table: %w", err)
	}
	a.commerce = repository.NewCommerceRepository(db, cfg.AdminAccountIDs)

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
	})
	a.closers = append(a.closers, redisClient.Close)

	// Connect to Kafka
	kafkaWriter := queue.NewWriter(cfg.KafkaBrokers)
	a.closers = append(a.closers, kafkaWriter.Close)

	notifier, err := a.newNotifier()
	if err != nil {
		a.close()
		return nil, err
	}

	a.orchestrator = service.NewOrchestrator(service.Dependencies{
		Requests: requests,
		Logs:     logs,
		Commerce: a.commerce,
		Stores:   a.commerce,
		Gateway:  gateway.NewStripeGateway(cfg.StripeSecretKey, a.commerce),
		Queue:    queue.NewKafkaQueue(kafkaWriter),
		Notifier: notifier,
		Locker:   lock.NewRedisLocker(redisClient, lockWait),
		Events:   queue.NewStatePublisher(kafkaWriter, cfg.RefundEventsTopic),
		Ledger:   a.commerce,
	}, service.Options{
		QueueName: cfg.RefundQueueTopic,
		LockTTL:   cfg.OrderLockTTL,
	})

	return a, nil
}

func (a *app) newNotifier() (interfaces.Notifier, error) {
	if a.cfg.Notifier == "smtp" {
		n, err := notify.NewMailNotifier(a.cfg.SMTP)
		if err != nil {
			return nil, err
		}
		return n, nil
	}

	// Connect to NATS
	nc, err := nats.Connect(a.cfg.NatsURL)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	a.closers = append(a.closers, func() error {
		nc.Close()
		return nil
	})
	return notify.NewNATSNotifier(nc), nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			telemetry.Logger.Warn("Error closing resource", zap.Error(err))
		}
	}
}

func initTelemetry(cfg *config.Config) func() {
	if err := telemetry.InitTelemetry("refund-orchestrator", cfg.JaegerEndpoint); err != nil {
		panic(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	}
	return func() { _ = telemetry.Shutdown(context.Background()) }
}
