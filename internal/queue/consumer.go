package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/telemetry"
)

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler runs one refund job.
type Handler func(ctx context.Context, logID int64) error

// permanent is implemented by handler errors that retrying cannot fix.
type permanent interface {
	Permanent() bool
}

func isPermanent(err error) bool {
	var p permanent
	return errors.As(err, &p) && p.Permanent()
}

func NewReader(brokers, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{brokers},
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
}

type Consumer struct {
	reader      MessageReader
	handle      Handler
	maxAttempts int
	backoff     time.Duration
}

func NewConsumer(reader MessageReader, handle Handler) *Consumer {
	return &Consumer{reader: reader, handle: handle, maxAttempts: 3, backoff: time.Second}
}

// Run consumes jobs until ctx is canceled. A job whose handler keeps
// failing is logged and committed; the refund log stays pending and can be
// re-run by hand.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	telemetry.Logger.Info("Started consuming refund jobs")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			telemetry.Logger.Error("Error reading message from Kafka", zap.Error(err))
			continue
		}

		c.process(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			telemetry.Logger.Error("Error committing message", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	var job models.RefundJob
	if err := json.Unmarshal(msg.Value, &job); err != nil || job.LogID == 0 {
		telemetry.Logger.Error("Skipping malformed refund job",
			zap.ByteString("value", msg.Value),
			zap.Error(err),
		)
		return
	}

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		err := c.handle(ctx, job.LogID)
		if err == nil {
			return
		}
		telemetry.Logger.Error("Error processing refund job",
			zap.Int64("refund_log_id", job.LogID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if isPermanent(err) {
			telemetry.Logger.Warn("Dropping refund job that cannot succeed",
				zap.Int64("refund_log_id", job.LogID),
			)
			return
		}
		if attempt == c.maxAttempts {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.backoff * time.Duration(attempt)):
		}
	}
}
