// Package redisrepo implements the repository contract over Redis.
//
// Redis offers no predicate queries, only key enumeration, so every
// filterable field is packed into one composite hash field
// ("id:..|category:..|..|ts:..") and matching is done with HSCAN glob
// patterns. Time bounds cannot be expressed in a pattern and are applied
// as a post-filter over the scanned hits.
package redisrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/groblegark/auditstore/internal/model"
	"github.com/groblegark/auditstore/internal/repository"
)

// Name is the registry identifier for this backend.
const Name = "redis"

// collectionKey is the single hash holding every stored event.
const collectionKey = "event-audit"

// scanCount is the per-round-trip hint passed to HSCAN.
const scanCount = 512

// Repository stores events in one Redis hash keyed by composite field
// names. Safe for concurrent use; the go-redis client pools connections.
type Repository struct {
	client *redis.Client

	connOnce sync.Once
	connUp   bool
}

// Compile-time checks for the contract and every removal capability.
var (
	_ repository.Repository      = (*Repository)(nil)
	_ repository.SingleRemover   = (*Repository)(nil)
	_ repository.FilteredRemover = (*Repository)(nil)
	_ repository.AllRemover      = (*Repository)(nil)
)

// New wraps an existing Redis client.
func New(client *redis.Client) *Repository {
	return &Repository{client: client}
}

// Open connects to Redis at the given address and validates connectivity
// with a PING before returning the repository.
func Open(ctx context.Context, addr string) (*Repository, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return New(client), nil
}

func (r *Repository) Name() string { return Name }

func (r *Repository) BuildEvent(data model.EventData) (*model.Event, error) {
	return model.New(data)
}

func (r *Repository) WriteEvent(ctx context.Context, event *model.Event) model.Result {
	data, err := json.Marshal(event)
	if err != nil {
		return model.Fail(fmt.Sprintf("serialize event %s: %v", event.ID, err))
	}
	if err := r.client.HSet(ctx, collectionKey, compositeKey(event), data).Err(); err != nil {
		return model.Fail(err.Error())
	}
	return model.OK("")
}

// WriteEvents pipelines all HSETs into one round-trip.
func (r *Repository) WriteEvents(ctx context.Context, events []*model.Event) model.Result {
	pipe := r.client.Pipeline()
	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			return model.Fail(fmt.Sprintf("serialize event %s: %v", event.ID, err))
		}
		pipe.HSet(ctx, collectionKey, compositeKey(event), data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return model.Fail(err.Error())
	}
	return model.OK("")
}

func (r *Repository) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	hits, err := r.scan(ctx, idPattern(id))
	if err != nil {
		return nil, err
	}
	switch len(hits) {
	case 0:
		return nil, nil
	case 1:
		return hits[0].event, nil
	default:
		return nil, fmt.Errorf("%w: id %s matched %d records", repository.ErrMultipleMatches, id, len(hits))
	}
}

func (r *Repository) FilterEvents(ctx context.Context, filter model.Filter) ([]*model.Event, error) {
	hits, err := r.scan(ctx, scanPattern(filter))
	if err != nil {
		return nil, err
	}
	events := make([]*model.Event, 0, len(hits))
	for _, hit := range hits {
		if filter.Matches(hit.event) {
			events = append(events, hit.event)
		}
	}
	repository.SortByTimestamp(events)
	return events, nil
}

// RemoveEvent deletes the event with the given ID.
func (r *Repository) RemoveEvent(ctx context.Context, id string) model.Result {
	hits, err := r.scan(ctx, idPattern(id))
	if err != nil {
		return model.Fail(err.Error())
	}
	if len(hits) == 0 {
		return model.Fail("Event not found")
	}
	fields := make([]string, len(hits))
	for i, hit := range hits {
		fields[i] = hit.field
	}
	if err := r.client.HDel(ctx, collectionKey, fields...).Err(); err != nil {
		return model.Fail(err.Error())
	}
	return model.OK("Event removed successfully")
}

// RemoveEvents deletes every event matching the filter.
func (r *Repository) RemoveEvents(ctx context.Context, filter model.Filter) model.Result {
	hits, err := r.scan(ctx, scanPattern(filter))
	if err != nil {
		return model.Fail(err.Error())
	}
	var fields []string
	for _, hit := range hits {
		if filter.Matches(hit.event) {
			fields = append(fields, hit.field)
		}
	}
	if len(fields) > 0 {
		if err := r.client.HDel(ctx, collectionKey, fields...).Err(); err != nil {
			return model.Fail(err.Error())
		}
	}
	return model.OK(fmt.Sprintf("%d event(s) removed successfully", len(fields)))
}

// RemoveAllEvents drops the whole collection hash.
func (r *Repository) RemoveAllEvents(ctx context.Context) model.Result {
	if err := r.client.Del(ctx, collectionKey).Err(); err != nil {
		return model.Fail(err.Error())
	}
	return model.OK("All events removed successfully")
}

// TestConnection issues one PING and caches the outcome for the process
// lifetime.
func (r *Repository) TestConnection(ctx context.Context) bool {
	r.connOnce.Do(func() {
		r.connUp = r.client.Ping(ctx).Err() == nil
	})
	return r.connUp
}

func (r *Repository) Close() error {
	return r.client.Close()
}

// hit pairs a scanned hash field with its deserialized event, so that
// deletions can reuse the exact composite key that matched.
type hit struct {
	field string
	event *model.Event
}

// scan exhausts HSCAN with the given glob pattern and deserializes every
// matched value.
func (r *Repository) scan(ctx context.Context, pattern string) ([]hit, error) {
	var hits []hit
	var cursor uint64
	for {
		pairs, next, err := r.client.HScan(ctx, collectionKey, cursor, pattern, scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("hscan %q: %w", pattern, err)
		}
		// HSCAN returns alternating field, value entries.
		for i := 0; i+1 < len(pairs); i += 2 {
			var event model.Event
			if err := json.Unmarshal([]byte(pairs[i+1]), &event); err != nil {
				return nil, fmt.Errorf("deserialize event at %q: %w", pairs[i], err)
			}
			hits = append(hits, hit{field: pairs[i], event: &event})
		}
		cursor = next
		if cursor == 0 {
			return hits, nil
		}
	}
}
