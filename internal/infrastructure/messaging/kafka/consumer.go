package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/VisionServe/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/VisionServe/pkg/errors"
)

// Handler processes one consumed record.  A returned error logs the record
// and moves on; the offset is committed either way.
type Handler func(ctx context.Context, key, value []byte) error

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer pulls batch prediction requests for workers.
type Consumer struct {
	reader ReaderInterface
	logger logging.Logger
}

// NewConsumer joins groupID on topic.
func NewConsumer(cfg Config, topic, groupID string, logger logging.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.InvalidParam("brokers required")
	}
	applyDefaults(&cfg)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: cfg.MaxMessageBytes,
	})
	return &Consumer{reader: reader, logger: logger}, nil
}

// NewConsumerWithReader wires a pre-built reader, used by tests.
func NewConsumerWithReader(r ReaderInterface, logger logging.Logger) *Consumer {
	return &Consumer{reader: r, logger: logger}
}

// Run consumes until ctx is canceled, invoking handle per record.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, errors.ErrCodeUpstream, "consume failed")
		}
		if err := handle(ctx, msg.Key, msg.Value); err != nil {
			c.logger.Error("Record handling failed",
				logging.String("topic", msg.Topic),
				logging.Int64("offset", msg.Offset),
				logging.Err(err))
		}
	}
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
