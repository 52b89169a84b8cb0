package cloudwatchrepo

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"

	"github.com/groblegark/auditstore/internal/model"
	"github.com/groblegark/auditstore/internal/repository"
)

// fakeLogs is an in-memory stand-in for the CloudWatch Logs API.
type fakeLogs struct {
	groupExists   bool
	createGroups  int
	createStreams int
	deleteGroups  int

	put []cloudwatchlogs.PutLogEventsInput

	// pages are returned one per FilterLogEvents call, chained with
	// NextToken the way the real service paginates.
	pages       [][]cwtypes.FilteredLogEvent
	lastPattern string

	describeErr error
	describes   int
}

func (f *fakeLogs) CreateLogGroup(_ context.Context, _ *cloudwatchlogs.CreateLogGroupInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error) {
	f.createGroups++
	if f.groupExists {
		return nil, &cwtypes.ResourceAlreadyExistsException{}
	}
	f.groupExists = true
	return &cloudwatchlogs.CreateLogGroupOutput{}, nil
}

func (f *fakeLogs) CreateLogStream(_ context.Context, _ *cloudwatchlogs.CreateLogStreamInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error) {
	f.createStreams++
	return &cloudwatchlogs.CreateLogStreamOutput{}, nil
}

func (f *fakeLogs) PutLogEvents(_ context.Context, in *cloudwatchlogs.PutLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error) {
	f.put = append(f.put, *in)
	return &cloudwatchlogs.PutLogEventsOutput{}, nil
}

func (f *fakeLogs) FilterLogEvents(_ context.Context, in *cloudwatchlogs.FilterLogEventsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error) {
	if in.FilterPattern != nil {
		f.lastPattern = *in.FilterPattern
	}
	page := 0
	if in.NextToken != nil {
		page = int((*in.NextToken)[0] - '0')
	}
	out := &cloudwatchlogs.FilterLogEventsOutput{}
	if page < len(f.pages) {
		out.Events = f.pages[page]
	}
	if page+1 < len(f.pages) {
		out.NextToken = aws.String(string(rune('0' + page + 1)))
	}
	return out, nil
}

func (f *fakeLogs) DescribeLogGroups(_ context.Context, _ *cloudwatchlogs.DescribeLogGroupsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error) {
	f.describes++
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	return &cloudwatchlogs.DescribeLogGroupsOutput{}, nil
}

func (f *fakeLogs) DeleteLogGroup(_ context.Context, _ *cloudwatchlogs.DeleteLogGroupInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DeleteLogGroupOutput, error) {
	f.deleteGroups++
	f.groupExists = false
	return &cloudwatchlogs.DeleteLogGroupOutput{}, nil
}

func newTestRepo(t *testing.T) (*Repository, *fakeLogs) {
	t.Helper()
	fake := &fakeLogs{}
	repo := FromClient(fake, Options{LogGroup: "test-group", LogStream: "test-stream"})
	return repo, fake
}

func testEvent(t *testing.T, data model.EventData) *model.Event {
	t.Helper()
	event, err := model.New(data)
	if err != nil {
		t.Fatalf("build event: %v", err)
	}
	return event
}

func record(t *testing.T, event *model.Event, ts int64) cwtypes.FilteredLogEvent {
	t.Helper()
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return cwtypes.FilteredLogEvent{
		Message:   aws.String(string(data)),
		Timestamp: aws.Int64(ts),
	}
}

func TestFilterPattern(t *testing.T) {
	tests := []struct {
		name   string
		filter model.Filter
		want   string
	}{
		{"empty", model.Filter{}, ""},
		{
			"single field",
			model.Filter{Category: "model"},
			`{ ($.category = "model") }`,
		},
		{
			"multiple fields",
			model.Filter{Category: "model", Action: "created", Actor: "alice"},
			`{ ($.category = "model") && ($.action = "created") && ($.actor = "alice") }`,
		},
		{
			"id only",
			model.Filter{ID: "abc123"},
			`{ ($.id = "abc123") }`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := filterPattern(tt.filter); got != tt.want {
				t.Errorf("filterPattern() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteEventCreatesGroupOnce(t *testing.T) {
	repo, fake := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		event := testEvent(t, model.EventData{Category: "model", Action: "created"})
		if res := repo.WriteEvent(ctx, event); !res.Status {
			t.Fatalf("write failed: %s", res.Message)
		}
	}

	if fake.createGroups != 1 {
		t.Errorf("CreateLogGroup called %d times, want 1", fake.createGroups)
	}
	if fake.createStreams != 1 {
		t.Errorf("CreateLogStream called %d times, want 1", fake.createStreams)
	}
	if len(fake.put) != 3 {
		t.Errorf("PutLogEvents called %d times, want 3", len(fake.put))
	}
}

func TestWriteEventExistingGroup(t *testing.T) {
	repo, fake := newTestRepo(t)
	fake.groupExists = true

	event := testEvent(t, model.EventData{Category: "model", Action: "created"})
	if res := repo.WriteEvent(context.Background(), event); !res.Status {
		t.Fatalf("write against existing group failed: %s", res.Message)
	}
}

func TestWriteEventsSingleCall(t *testing.T) {
	repo, fake := newTestRepo(t)

	events := []*model.Event{
		testEvent(t, model.EventData{Category: "model", Action: "created"}),
		testEvent(t, model.EventData{Category: "model", Action: "updated"}),
	}
	if res := repo.WriteEvents(context.Background(), events); !res.Status {
		t.Fatalf("bulk write failed: %s", res.Message)
	}
	if len(fake.put) != 1 {
		t.Fatalf("PutLogEvents called %d times, want 1", len(fake.put))
	}
	if got := len(fake.put[0].LogEvents); got != 2 {
		t.Errorf("batch carried %d records, want 2", got)
	}
}

func TestWriteEventStripsOversizedPayload(t *testing.T) {
	repo, fake := newTestRepo(t)

	event := testEvent(t, model.EventData{
		Category: "model",
		Action:   "created",
		Payload:  map[string]any{"blob": strings.Repeat("x", maxRecordBytes)},
	})
	if res := repo.WriteEvent(context.Background(), event); !res.Status {
		t.Fatalf("oversized write failed: %s", res.Message)
	}

	var stored model.Event
	if err := json.Unmarshal([]byte(*fake.put[0].LogEvents[0].Message), &stored); err != nil {
		t.Fatalf("unmarshal stored record: %v", err)
	}
	if len(stored.Payload) != 0 {
		t.Errorf("payload survived the size cap: %d keys", len(stored.Payload))
	}
	if len(stored.Result) != 0 {
		t.Errorf("result survived the size cap: %d keys", len(stored.Result))
	}
	if stored.ID != event.ID || stored.Category != "model" {
		t.Errorf("correlation fields lost: got id %q category %q", stored.ID, stored.Category)
	}
	// The original event must be left intact.
	if len(event.Payload) == 0 {
		t.Error("caller's event was mutated")
	}
}

func TestFilterEventsPaginates(t *testing.T) {
	repo, fake := newTestRepo(t)

	older := testEvent(t, model.EventData{
		Category:  "model",
		Action:    "created",
		Timestamp: "2024-01-01T10:00:00Z",
	})
	newer := testEvent(t, model.EventData{
		Category:  "model",
		Action:    "created",
		Timestamp: "2024-01-02T10:00:00Z",
	})
	// Newer record on the first page: ordering must come from the
	// events' own timestamps, not page order.
	fake.pages = [][]cwtypes.FilteredLogEvent{
		{record(t, newer, 2)},
		{record(t, older, 1)},
	}

	events, err := repo.FilterEvents(context.Background(), model.Filter{Category: "model"})
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].ID != older.ID || events[1].ID != newer.ID {
		t.Errorf("events not in ascending timestamp order: %s, %s", events[0].ID, events[1].ID)
	}
	if want := `{ ($.category = "model") }`; fake.lastPattern != want {
		t.Errorf("filter pattern = %q, want %q", fake.lastPattern, want)
	}
}

func TestFilterEventsTimeRange(t *testing.T) {
	repo, fake := newTestRepo(t)

	inside := testEvent(t, model.EventData{
		Category:  "model",
		Action:    "created",
		Timestamp: "2024-06-15T12:00:00Z",
	})
	outside := testEvent(t, model.EventData{
		Category:  "model",
		Action:    "created",
		Timestamp: "2024-09-01T12:00:00Z",
	})
	fake.pages = [][]cwtypes.FilteredLogEvent{
		{record(t, inside, 1), record(t, outside, 2)},
	}

	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	events, err := repo.FilterEvents(context.Background(), model.Filter{TimeFrom: &from, TimeTo: &to})
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if len(events) != 1 || events[0].ID != inside.ID {
		t.Fatalf("time range returned wrong events: %d", len(events))
	}
}

func TestGetEvent(t *testing.T) {
	repo, fake := newTestRepo(t)

	event := testEvent(t, model.EventData{Category: "model", Action: "created"})
	fake.pages = [][]cwtypes.FilteredLogEvent{{record(t, event, 1)}}

	got, err := repo.GetEvent(context.Background(), event.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.ID != event.ID {
		t.Fatalf("got %+v, want event %s", got, event.ID)
	}
}

func TestGetEventNotFound(t *testing.T) {
	repo, _ := newTestRepo(t)

	got, err := repo.GetEvent(context.Background(), "missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("got %+v, want nil", got)
	}
}

func TestGetEventMultipleMatches(t *testing.T) {
	repo, fake := newTestRepo(t)

	event := testEvent(t, model.EventData{Category: "model", Action: "created"})
	fake.pages = [][]cwtypes.FilteredLogEvent{
		{record(t, event, 1), record(t, event, 2)},
	}

	_, err := repo.GetEvent(context.Background(), event.ID)
	if !errors.Is(err, repository.ErrMultipleMatches) {
		t.Fatalf("err = %v, want ErrMultipleMatches", err)
	}
}

func TestRemoveAllEvents(t *testing.T) {
	repo, fake := newTestRepo(t)
	ctx := context.Background()

	event := testEvent(t, model.EventData{Category: "model", Action: "created"})
	if res := repo.WriteEvent(ctx, event); !res.Status {
		t.Fatalf("write: %s", res.Message)
	}

	res := repo.RemoveAllEvents(ctx)
	if !res.Status {
		t.Fatalf("remove all: %s", res.Message)
	}
	if fake.deleteGroups != 1 {
		t.Errorf("DeleteLogGroup called %d times, want 1", fake.deleteGroups)
	}

	// A write after deletion must recreate the group.
	if res := repo.WriteEvent(ctx, event); !res.Status {
		t.Fatalf("write after remove: %s", res.Message)
	}
	if fake.createGroups != 2 {
		t.Errorf("CreateLogGroup called %d times after recreate, want 2", fake.createGroups)
	}
}

func TestRemoveCapabilities(t *testing.T) {
	repo, _ := newTestRepo(t)

	var iface repository.Repository = repo
	if _, ok := iface.(repository.SingleRemover); ok {
		t.Error("backend unexpectedly claims single-event removal")
	}
	if _, ok := iface.(repository.FilteredRemover); ok {
		t.Error("backend unexpectedly claims filtered removal")
	}
	if _, ok := iface.(repository.AllRemover); !ok {
		t.Error("backend must support whole-store removal")
	}
}

func TestTestConnection(t *testing.T) {
	t.Run("reachable", func(t *testing.T) {
		repo, fake := newTestRepo(t)
		if !repo.TestConnection(context.Background()) {
			t.Fatal("expected reachable")
		}
		repo.TestConnection(context.Background())
		if fake.describes != 1 {
			t.Errorf("DescribeLogGroups called %d times, want 1 (cached)", fake.describes)
		}
	})

	t.Run("auth failure", func(t *testing.T) {
		repo, fake := newTestRepo(t)
		fake.describeErr = errors.New("AccessDeniedException: not authorized")
		if repo.TestConnection(context.Background()) {
			t.Fatal("expected unreachable on auth failure")
		}
	})
}
