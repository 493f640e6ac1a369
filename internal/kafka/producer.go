package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-ticketcodes/internal/logger"
	"ms-ticketcodes/internal/models"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Topics struct {
	PaymentCompleted string
	CodesProvisioned string
}

type Producer struct {
	Writer MessageWriter
	Topics Topics
	Logger *logger.Logger
}

func NewProducer(brokers []string, topics Topics, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		ErrorLogger:            kafka.LoggerFunc(log.Printf),
	}
	return &Producer{Writer: writer, Topics: topics, Logger: log}
}

// PublishPaymentCompleted streams the completion of one order, keyed by
// order id so events for an order stay on one partition.
func (p *Producer) PublishPaymentCompleted(ctx context.Context, evt models.PaymentCompletedEvent) error {
	return p.publish(ctx, p.Topics.PaymentCompleted, evt.OrderID, evt)
}

// PublishCodesProvisioned announces a code import so pending orders can be
// topped up.
func (p *Producer) PublishCodesProvisioned(ctx context.Context, evt models.CodesProvisionedEvent) error {
	return p.publish(ctx, p.Topics.CodesProvisioned, evt.Source, evt)
}

func (p *Producer) publish(ctx context.Context, topic, key string, payload any) error {
	msgBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: msgBytes,
	})
	if err != nil {
		p.Logger.LogKafka("PUBLISH_FAILED", topic, err.Error())
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	p.Logger.LogKafka("PUBLISHED", topic, fmt.Sprintf("key=%s", key))
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
