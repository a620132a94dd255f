package notify

import (
	"context"
	"log"
)

// LogBackend is used when notification delivery is disabled. Events
// are logged and dropped, mirroring what a real send would have done.
type LogBackend struct{}

func NewLogBackend() *LogBackend {
	return &LogBackend{}
}

func (b *LogBackend) Send(ctx context.Context, ev Event) error {
	log.Printf("notify: delivery disabled, would send %s to %s", ev.Kind, ev.To)
	return nil
}

func (b *LogBackend) Close() error {
	return nil
}
