// Package kafka moves delivery out of the request path: Dispatcher publishes
// messages to a topic and Consumer drains that topic into a real sender.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/MrEthical07/goIdentity/delivery"
)

const headerKind = "delivery_kind"

// Config describes the topic jobs are published to.
type Config struct {
	Brokers      []string      `yaml:"brokers" env:"BROKERS" envSeparator:","`
	Topic        string        `yaml:"topic" env:"TOPIC" envDefault:"identity.delivery"`
	GroupID      string        `yaml:"group_id" env:"GROUP_ID" envDefault:"identity-delivery"`
	BatchTimeout time.Duration `yaml:"batch_timeout" env:"BATCH_TIMEOUT" envDefault:"10ms"`
}

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Dispatcher is a delivery.Sender that enqueues messages instead of sending
// them. The topic carries plaintext codes and must be access controlled.
type Dispatcher struct {
	w      writer
	logger *zap.Logger
}

// NewDispatcher returns a Dispatcher writing to cfg.Topic.
func NewDispatcher(cfg Config, logger *zap.Logger) (*Dispatcher, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("kafka: brokers and topic are required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireAll,
	}
	return newDispatcher(w, logger), nil
}

func newDispatcher(w writer, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{w: w, logger: logger.Named("kafka")}
}

// Send publishes msg keyed by user id, so one user's messages stay ordered.
func (d *Dispatcher) Send(ctx context.Context, msg delivery.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal delivery job: %w", err)
	}
	km := kafka.Message{
		Key:   []byte(msg.UserID),
		Value: data,
		Headers: []kafka.Header{
			{Key: headerKind, Value: []byte(msg.Kind)},
		},
	}
	if err := d.w.WriteMessages(ctx, km); err != nil {
		d.logger.Error("failed to publish delivery job",
			zap.String("kind", string(msg.Kind)),
			zap.String("user_id", msg.UserID),
			zap.Error(err),
		)
		return fmt.Errorf("publish delivery job: %w", err)
	}
	return nil
}

// Close flushes pending writes.
func (d *Dispatcher) Close() error {
	return d.w.Close()
}
