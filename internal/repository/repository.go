// Package repository defines the storage contract every audit event
// backend implements, the optional deletion capabilities a backend may
// declare, and the registry that resolves backend names to shared
// handles.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/groblegark/auditstore/internal/model"
)

// ErrNotSupported is returned (wrapped) when a deletion capability is
// invoked on a backend that does not declare it.
var ErrNotSupported = errors.New("operation not supported by this repository")

// ErrMultipleMatches indicates that more than one stored record matched a
// supposedly unique event ID. This is a data-integrity fault, never
// resolved by silently picking one match.
var ErrMultipleMatches = errors.New("multiple events match a unique id")

// Repository is the uniform contract over the interchangeable storage
// backends. Implementations must be safe for concurrent use from
// multiple goroutines against one shared handle.
type Repository interface {
	// Name returns the stable backend identifier used for registry
	// lookup and key namespacing.
	Name() string

	// BuildEvent fills defaults and validates a partial field bag.
	// Pure; performs no I/O.
	BuildEvent(data model.EventData) (*model.Event, error)

	// WriteEvent durably stores one event. Storage-level failures are
	// reported in the Result, not raised, so callers can requeue.
	WriteEvent(ctx context.Context, event *model.Event) model.Result

	// WriteEvents stores a batch. Backends with a native bulk path
	// override the default write-one-at-a-time loop (see WriteAll).
	// A failing write aborts the batch and is reported in the Result.
	WriteEvents(ctx context.Context, events []*model.Event) model.Result

	// GetEvent returns the event with the given ID, or (nil, nil) when
	// no such event exists. More than one match is a hard error
	// wrapping ErrMultipleMatches.
	GetEvent(ctx context.Context, id string) (*model.Event, error)

	// FilterEvents returns all events satisfying the filter, ordered
	// ascending by timestamp. The result is never nil: an empty match
	// set yields an empty slice.
	FilterEvents(ctx context.Context, filter model.Filter) ([]*model.Event, error)

	// TestConnection performs one real round-trip to the backend and
	// reports reachability. The result is cached on the handle for the
	// process lifetime; credential faults surface as false, never as a
	// raw transport error.
	TestConnection(ctx context.Context) bool

	// Close releases the underlying connection or session.
	Close() error
}

// SingleRemover is the capability to delete one event by ID.
type SingleRemover interface {
	RemoveEvent(ctx context.Context, id string) model.Result
}

// FilteredRemover is the capability to delete every event matching a
// filter.
type FilteredRemover interface {
	RemoveEvents(ctx context.Context, filter model.Filter) model.Result
}

// AllRemover is the capability to delete every stored event.
type AllRemover interface {
	RemoveAllEvents(ctx context.Context) model.Result
}

// WriteAll is the default bulk-write path: a loop over WriteEvent that
// aborts on the first failure. Backends without a cheaper native batch
// delegate WriteEvents here.
func WriteAll(ctx context.Context, repo Repository, events []*model.Event) model.Result {
	for i, event := range events {
		if res := repo.WriteEvent(ctx, event); !res.Status {
			return model.Fail(fmt.Sprintf("write %d of %d (id %s): %s", i+1, len(events), event.ID, res.Message))
		}
	}
	return model.OK("")
}
