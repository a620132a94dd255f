package notify

import (
	"context"
	"encoding/json"

	"github.com/apnisec/apiserver/internal/mq"
)

// Channel carrying notification events between the API and the mailer
// worker.
const Channel = "notifications"

// BrokerBackend publishes notification events to the configured
// message broker instead of delivering them inline. The mailer worker
// consumes the channel and sends the actual email.
type BrokerBackend struct {
	backend mq.Backend
}

func NewBrokerBackend(backend mq.Backend) *BrokerBackend {
	return &BrokerBackend{backend: backend}
}

func (b *BrokerBackend) Send(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = b.backend.Publish(ctx, Channel, data, map[string]string{"kind": ev.Kind})
	return err
}

func (b *BrokerBackend) Close() error {
	return b.backend.Close()
}
