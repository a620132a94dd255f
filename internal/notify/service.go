package notify

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/apnisec/apiserver/config"
	"github.com/apnisec/apiserver/internal/mq"
)

const sendTimeout = 15 * time.Second

// Backend delivers one notification event.
type Backend interface {
	Send(ctx context.Context, ev Event) error
	Close() error
}

// Service dispatches notification events fire-and-forget: the caller
// never waits for delivery and never sees a delivery failure. Failures
// are logged here and swallowed.
type Service struct {
	backend Backend
	wg      sync.WaitGroup
}

// New builds the notification service for the configured mode: "smtp"
// sends mail inline, "broker" publishes events for the mailer worker,
// anything else logs and drops.
func New(ctx context.Context, cfg config.Config) (*Service, error) {
	var backend Backend
	switch cfg.Notify.Mode {
	case "smtp":
		backend = NewSMTPBackend(cfg.SMTP, cfg.Notify.From, cfg.FrontendURL)
	case "broker":
		brokerBackend, err := mq.NewBackend(ctx, cfg)
		if err != nil {
			return nil, err
		}
		backend = NewBrokerBackend(brokerBackend)
	default:
		backend = NewLogBackend()
	}
	return NewService(backend), nil
}

// NewService wraps an explicit backend.
func NewService(backend Backend) *Service {
	return &Service{backend: backend}
}

// Dispatch hands the event to the backend on a detached goroutine and
// returns immediately.
func (s *Service) Dispatch(ev Event) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := s.backend.Send(ctx, ev); err != nil {
			log.Printf("notify: %s to %s failed: %v", ev.Kind, ev.To, err)
		}
	}()
}

// Close waits for in-flight sends and closes the backend.
func (s *Service) Close() error {
	s.wg.Wait()
	return s.backend.Close()
}
