// Package queue carries refund execution jobs and refund state events over
// Kafka.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/models"
)

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewWriter returns a writer without a fixed topic; every message names
// its own.
func NewWriter(brokers string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}
}

// KafkaQueue enqueues refund jobs. The queue name is the topic.
type KafkaQueue struct {
	writer MessageWriter
}

func NewKafkaQueue(writer MessageWriter) *KafkaQueue {
	return &KafkaQueue{writer: writer}
}

func (q *KafkaQueue) Enqueue(ctx context.Context, queueName string, job models.RefundJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	err = q.writer.WriteMessages(ctx, kafka.Message{
		Topic: queueName,
		Key:   []byte(strconv.FormatInt(job.LogID, 10)),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "message_id", Value: []byte(uuid.NewString())},
		},
	})
	if err != nil {
		return fmt.Errorf("enqueue refund log %d on %s: %w", job.LogID, queueName, err)
	}
	return nil
}

// StatePublisher publishes refund state changes keyed by order, so one
// order's events stay in one partition.
type StatePublisher struct {
	writer MessageWriter
	topic  string
}

func NewStatePublisher(writer MessageWriter, topic string) *StatePublisher {
	return &StatePublisher{writer: writer, topic: topic}
}

func (p *StatePublisher) PublishRefundState(ctx context.Context, event models.RefundStateEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topic,
		Key:   []byte(strconv.FormatInt(event.OrderID, 10)),
		Value: payload,
	})
}
