package listener

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/groblegark/auditstore/internal/model"
)

// Enqueuer accepts decoded events for asynchronous storage. The batch
// writer satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, event *model.Event) error
}

// Options configures a Listener.
type Options struct {
	// Topic overrides DefaultTopic.
	Topic string

	// IgnoredCategories and IgnoredActions drop matching events before
	// they reach storage. Useful for chatty subsystems whose events
	// carry no audit value.
	IgnoredCategories []string
	IgnoredActions    []string

	Logger *slog.Logger
}

// Listener consumes event data from the bus, validates it, and hands
// the resulting events to the writer. Malformed or ignored payloads are
// logged and skipped; they never stall the subscription.
type Listener struct {
	sub    Subscriber
	sink   Enqueuer
	topic  string
	logger *slog.Logger

	ignoredCategories map[string]struct{}
	ignoredActions    map[string]struct{}

	cancel func()
	done   chan struct{}
}

func New(sub Subscriber, sink Enqueuer, opts Options) *Listener {
	topic := opts.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		sub:               sub,
		sink:              sink,
		topic:             topic,
		logger:            logger,
		ignoredCategories: toSet(opts.IgnoredCategories),
		ignoredActions:    toSet(opts.IgnoredActions),
		done:              make(chan struct{}),
	}
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// Start subscribes and launches the consume goroutine. ctx bounds the
// enqueue calls; use Stop for shutdown.
func (l *Listener) Start(ctx context.Context) error {
	ch, cancel, err := l.sub.Subscribe(l.topic)
	if err != nil {
		return err
	}
	l.cancel = cancel

	go func() {
		defer close(l.done)
		for payload := range ch {
			l.handle(ctx, payload)
		}
	}()
	return nil
}

// Stop unsubscribes and waits for in-flight payloads to be handled.
func (l *Listener) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	<-l.done
}

func (l *Listener) handle(ctx context.Context, payload []byte) {
	var data model.EventData
	if err := json.Unmarshal(payload, &data); err != nil {
		l.logger.Warn("discarding undecodable event payload", "error", err)
		return
	}

	if _, ok := l.ignoredCategories[data.Category]; ok {
		return
	}
	if _, ok := l.ignoredActions[data.Action]; ok {
		return
	}

	event, err := model.New(data)
	if err != nil {
		l.logger.Warn("discarding invalid event",
			"category", data.Category, "action", data.Action, "error", err)
		return
	}

	if err := l.sink.Enqueue(ctx, event); err != nil {
		l.logger.Error("enqueue event", "event_id", event.ID, "error", err)
	}
}
