package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/apnisec/apiserver/config"
	"github.com/apnisec/apiserver/internal/mq"
	"github.com/apnisec/apiserver/types"
)

type recordingBackend struct {
	mu     sync.Mutex
	events []Event
	closed bool
	err    error
}

func (b *recordingBackend) Send(ctx context.Context, ev Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return b.err
}

func (b *recordingBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Close must observe every dispatched event, even though Dispatch
// returns before delivery happens.
func TestDispatchIsDrainedByClose(t *testing.T) {
	backend := &recordingBackend{}
	svc := NewService(backend)

	for i := 0; i < 10; i++ {
		svc.Dispatch(Event{Kind: KindWelcome, To: "a@b.com"})
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if len(backend.events) != 10 {
		t.Fatalf("expected 10 deliveries, got %d", len(backend.events))
	}
	if !backend.closed {
		t.Fatal("backend not closed")
	}
}

// Delivery failures never propagate to the dispatching caller.
func TestDispatchSwallowsFailures(t *testing.T) {
	backend := &recordingBackend{err: errors.New("smtp down")}
	svc := NewService(backend)

	svc.Dispatch(Event{Kind: KindProfileUpdated, To: "a@b.com"})
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(backend.events) != 1 {
		t.Fatalf("expected the send to be attempted, got %d", len(backend.events))
	}
}

type fakeMQBackend struct {
	channel string
	data    []byte
	attrs   map[string]string
}

func (b *fakeMQBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	b.channel = channel
	b.data = data
	b.attrs = attrs
	return "msg-1", nil
}

func (b *fakeMQBackend) Subscribe(ctx context.Context, channel string, handler mq.Handler) error {
	return nil
}

func (b *fakeMQBackend) Close() error { return nil }

func TestBrokerBackendPublishesEvent(t *testing.T) {
	publisher := &fakeMQBackend{}
	backend := NewBrokerBackend(publisher)

	issue := &types.Issue{ID: 3, Title: "Open bucket", Type: types.IssueTypeCloudSecurity}
	if err := backend.Send(context.Background(), Event{Kind: KindIssueCreated, To: "a@b.com", Issue: issue}); err != nil {
		t.Fatalf("send: %v", err)
	}

	if publisher.channel != Channel {
		t.Fatalf("published to %q", publisher.channel)
	}
	if publisher.attrs["kind"] != KindIssueCreated {
		t.Fatalf("kind attr = %q", publisher.attrs["kind"])
	}

	var decoded Event
	if err := json.Unmarshal(publisher.data, &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if decoded.To != "a@b.com" || decoded.Issue == nil || decoded.Issue.Title != "Open bucket" {
		t.Fatalf("unexpected payload %+v", decoded)
	}
}

func TestSMTPRenderPerKind(t *testing.T) {
	backend := NewSMTPBackend(config.SMTPConfig{}, "noreply@apnisec.io", "http://localhost:3000")

	subject, body := backend.render(Event{Kind: KindWelcome, To: "a@b.com"})
	if subject != "Welcome to ApniSec - Your Cybersecurity Partner" {
		t.Fatalf("welcome subject %q", subject)
	}
	if body == "" {
		t.Fatal("empty welcome body")
	}

	issue := &types.Issue{Title: "Open bucket", Type: types.IssueTypeCloudSecurity, Priority: types.PriorityHigh, Status: types.StatusOpen}
	subject, body = backend.render(Event{Kind: KindIssueCreated, To: "a@b.com", Issue: issue})
	if subject != "New Issue Created: Open bucket" {
		t.Fatalf("issue subject %q", subject)
	}
	if !containsAll(body, "Cloud Security", "Open bucket", "high", "open") {
		t.Fatalf("issue body missing fields: %s", body)
	}

	subject, _ = backend.render(Event{Kind: KindProfileUpdated, To: "a@b.com"})
	if subject != "Profile Updated Successfully" {
		t.Fatalf("profile subject %q", subject)
	}
}

func containsAll(s string, parts ...string) bool {
	for _, part := range parts {
		if !strings.Contains(s, part) {
			return false
		}
	}
	return true
}
