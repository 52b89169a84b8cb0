package listener

import (
	"context"
	"sync"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/groblegark/auditstore/internal/model"
)

// startTestNATS starts an embedded NATS server and returns its client URL.
func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

// captureSink records enqueued events.
type captureSink struct {
	mu     sync.Mutex
	events []*model.Event
}

func (c *captureSink) Enqueue(_ context.Context, event *model.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captureSink) snapshot() []*model.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*model.Event, len(c.events))
	copy(out, c.events)
	return out
}

func startListener(t *testing.T, url string, sink Enqueuer, opts Options) (*Listener, *NATSPublisher) {
	t.Helper()

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	t.Cleanup(func() { sub.Close() })

	l := New(sub, sink, opts)
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("starting listener: %v", err)
	}
	t.Cleanup(l.Stop)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	t.Cleanup(func() { pub.Close() })

	return l, pub
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestListenerStoresPublishedEvents(t *testing.T) {
	url := startTestNATS(t)
	sink := &captureSink{}
	_, pub := startListener(t, url, sink, Options{})

	data := model.EventData{Category: "model", Action: "created", Actor: "alice"}
	if err := pub.Publish(context.Background(), "audit.event.model", data); err != nil {
		t.Fatalf("publishing: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		return len(sink.snapshot()) == 1
	})

	event := sink.snapshot()[0]
	if event.Category != "model" || event.Action != "created" || event.Actor != "alice" {
		t.Errorf("decoded event fields wrong: %+v", event)
	}
	if event.ID == "" {
		t.Error("event was stored without an ID")
	}
}

func TestListenerIgnoresConfiguredCategories(t *testing.T) {
	url := startTestNATS(t)
	sink := &captureSink{}
	_, pub := startListener(t, url, sink, Options{
		IgnoredCategories: []string{"heartbeat"},
		IgnoredActions:    []string{"poll"},
	})

	ctx := context.Background()
	noisy := []model.EventData{
		{Category: "heartbeat", Action: "tick"},
		{Category: "model", Action: "poll"},
	}
	for _, data := range noisy {
		if err := pub.Publish(ctx, "audit.event.noise", data); err != nil {
			t.Fatalf("publishing: %v", err)
		}
	}
	kept := model.EventData{Category: "model", Action: "created"}
	if err := pub.Publish(ctx, "audit.event.model", kept); err != nil {
		t.Fatalf("publishing: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		return len(sink.snapshot()) == 1
	})
	if got := sink.snapshot()[0]; got.Category != "model" || got.Action != "created" {
		t.Errorf("wrong event survived the ignore lists: %+v", got)
	}
}

func TestListenerSkipsMalformedPayloads(t *testing.T) {
	url := startTestNATS(t)
	sink := &captureSink{}
	_, pub := startListener(t, url, sink, Options{})

	// Raw garbage straight through the connection, then a valid event.
	if err := pub.conn.Publish("audit.event.junk", []byte("not json")); err != nil {
		t.Fatalf("publishing: %v", err)
	}
	// Decodes but fails validation: no action.
	if err := pub.Publish(context.Background(), "audit.event.junk", model.EventData{Category: "model"}); err != nil {
		t.Fatalf("publishing: %v", err)
	}
	if err := pub.Publish(context.Background(), "audit.event.model", model.EventData{Category: "model", Action: "created"}); err != nil {
		t.Fatalf("publishing: %v", err)
	}

	waitFor(t, time.Second, func() bool {
		return len(sink.snapshot()) == 1
	})
	if got := sink.snapshot()[0]; got.Action != "created" {
		t.Errorf("unexpected stored event: %+v", got)
	}
}

func TestListenerStop(t *testing.T) {
	url := startTestNATS(t)
	sink := &captureSink{}

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	l := New(sub, sink, Options{})
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("starting listener: %v", err)
	}

	// Stop must return once the consume goroutine exits, and be safe to
	// follow with no further deliveries.
	l.Stop()
}

func TestSubscriberCancelClosesChannel(t *testing.T) {
	url := startTestNATS(t)

	sub, err := NewNATSSubscriber(url)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	ch, cancel, err := sub.Subscribe("audit.event.>")
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}

	// Double cancel must not panic.
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after cancel")
	}
}

func TestSubscriberReconnectOption(t *testing.T) {
	url := startTestNATS(t)

	sub, err := NewNATSSubscriber(url,
		nats.ReconnectHandler(func(_ *nats.Conn) {}),
	)
	if err != nil {
		t.Fatalf("creating subscriber: %v", err)
	}
	defer sub.Close()

	if !sub.conn.IsConnected() {
		t.Fatal("expected subscriber to be connected")
	}
}
