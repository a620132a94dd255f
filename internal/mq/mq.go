package mq

import (
	"context"
	"fmt"

	"github.com/apnisec/apiserver/config"
)

// Message is a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a nack/retry.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker operations used by the notification
// pipeline.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// NewBackend constructs the configured broker backend.
func NewBackend(ctx context.Context, cfg config.Config) (Backend, error) {
	switch cfg.Broker.Kind {
	case "pubsub":
		return NewPubSubClient(ctx, cfg.PubSub)
	case "rabbitmq", "":
		return NewRabbitMQClient(cfg.RabbitMQ)
	default:
		return nil, fmt.Errorf("unknown broker kind %q", cfg.Broker.Kind)
	}
}
