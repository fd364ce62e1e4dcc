package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/MrEthical07/goIdentity/delivery"
)

// maxSendAttempts bounds retries of one job before it is committed and dropped.
const maxSendAttempts = 3

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads jobs published by a Dispatcher and hands them to a sender.
type Consumer struct {
	r         reader
	next      delivery.Sender
	logger    *zap.Logger
	backoff   time.Duration
	closeOnce sync.Once
}

// NewConsumer joins cfg.GroupID on cfg.Topic.
func NewConsumer(cfg Config, next delivery.Sender, logger *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		GroupID: cfg.GroupID,
		Topic:   cfg.Topic,
	})
	return newConsumer(r, next, logger)
}

func newConsumer(r reader, next delivery.Sender, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{r: r, next: next, logger: logger.Named("kafka"), backoff: 100 * time.Millisecond}
}

// Run consumes until ctx is cancelled or the reader is closed. Fetch errors
// are retried after the consumer's backoff.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return c.Close()
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe):
				c.logger.Info("delivery job reader closed")
				return nil
			}
			c.logger.Error("failed to fetch delivery job", zap.Error(err))
			select {
			case <-ctx.Done():
				return c.Close()
			case <-time.After(c.backoff):
			}
			continue
		}
		c.handle(ctx, msg)
		if err := c.r.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit delivery job", zap.Error(err))
		}
	}
}

func (c *Consumer) handle(ctx context.Context, km kafka.Message) {
	var msg delivery.Message
	if err := json.Unmarshal(km.Value, &msg); err != nil {
		c.logger.Error("dropping malformed delivery job", zap.Int64("offset", km.Offset), zap.Error(err))
		return
	}

	var lastErr error
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		if lastErr = c.next.Send(ctx, msg); lastErr == nil {
			return
		}
		c.logger.Warn("delivery attempt failed",
			zap.String("kind", string(msg.Kind)),
			zap.String("user_id", msg.UserID),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
		if attempt < maxSendAttempts {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempt) * c.backoff):
			}
		}
	}
	c.logger.Error("delivery job dropped after retries",
		zap.String("kind", string(msg.Kind)),
		zap.String("user_id", msg.UserID),
		zap.Error(lastErr),
	)
}

// Close leaves the consumer group.
func (c *Consumer) Close() error {
	var err error
	c.closeOnce.Do(func() { err = c.r.Close() })
	return err
}
