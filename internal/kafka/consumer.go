package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ms-ticketcodes/internal/logger"
	"ms-ticketcodes/internal/models"

	"github.com/segmentio/kafka-go"
)

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	Reader MessageReader
	Logger *logger.Logger
}

// NewConsumer creates a consumer-group reader for one topic.
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
		ErrorLogger: kafka.LoggerFunc(log.Printf),
	})
	return &Consumer{Reader: reader, Logger: log}
}

// RunCodesProvisioned feeds every codes-provisioned event to handler until
// ctx is done. A message is committed once handler returns, whether or not
// it failed, so a poison message cannot stall the group.
func (c *Consumer) RunCodesProvisioned(ctx context.Context, handler func(context.Context, models.CodesProvisionedEvent) error) error {
	c.Logger.Info("KAFKA", "Codes-provisioned consumer started")

	for {
		msg, err := c.Reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return nil
			}
			c.Logger.Error("KAFKA", fmt.Sprintf("Error reading message: %v", err))
			return err
		}

		var evt models.CodesProvisionedEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			c.Logger.Warn("KAFKA", fmt.Sprintf("Failed to unmarshal message at offset %d: %v", msg.Offset, err))
		} else {
			c.Logger.LogKafka("RECEIVED", msg.Topic, fmt.Sprintf("%d codes from %s", evt.Inserted, evt.Source))
			if err := handler(ctx, evt); err != nil {
				c.Logger.Error("KAFKA", fmt.Sprintf("Handler failed for offset %d: %v", msg.Offset, err))
			}
		}

		if err := c.Reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.Logger.Warn("KAFKA", fmt.Sprintf("Commit failed for offset %d: %v", msg.Offset, err))
		}
	}
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.Reader.Close()
}
