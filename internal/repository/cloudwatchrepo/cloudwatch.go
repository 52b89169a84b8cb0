// Package cloudwatchrepo implements the repository contract over AWS
// CloudWatch Logs, an append-only log service addressed by group and
// stream names.
package cloudwatchrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"

	"github.com/groblegark/auditstore/internal/model"
	"github.com/groblegark/auditstore/internal/repository"
)

// Name is the registry identifier for this backend.
const Name = "cloudwatch"

// maxRecordBytes is the CloudWatch Logs per-record size ceiling. When the
// combined serialized result and payload exceed it, both are stripped
// from the record rather than failing the write: correlation metadata is
// worth more to an audit trail than an oversized payload.
const maxRecordBytes = 262144

// Client is the narrow slice of the CloudWatch Logs API this backend
// uses. *cloudwatchlogs.Client satisfies it; tests substitute a fake.
type Client interface {
	CreateLogGroup(ctx context.Context, in *cloudwatchlogs.CreateLogGroupInput, opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
	CreateLogStream(ctx context.Context, in *cloudwatchlogs.CreateLogStreamInput, opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
	PutLogEvents(ctx context.Context, in *cloudwatchlogs.PutLogEventsInput, opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
	FilterLogEvents(ctx context.Context, in *cloudwatchlogs.FilterLogEventsInput, opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error)
	DescribeLogGroups(ctx context.Context, in *cloudwatchlogs.DescribeLogGroupsInput, opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error)
	DeleteLogGroup(ctx context.Context, in *cloudwatchlogs.DeleteLogGroupInput, opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DeleteLogGroupOutput, error)
}

// Options configures the CloudWatch backend.
type Options struct {
	LogGroup  string
	LogStream string
	Region    string

	// Static credentials; when empty the default AWS credential chain
	// applies.
	AccessKey string
	SecretKey string

	Logger *slog.Logger
}

// Repository writes one JSON log record per event and queries them back
// with CloudWatch filter-pattern expressions.
type Repository struct {
	client    Client
	logGroup  string
	logStream string
	logger    *slog.Logger

	// ensured tracks idempotent group/stream creation; reset when the
	// whole group is deleted.
	ensureMu sync.Mutex
	ensured  bool

	connOnce sync.Once
	connUp   bool
}

// Compile-time checks: the contract plus whole-group removal. Surgical
// deletion is deliberately absent — see RemoveAllEvents.
var (
	_ repository.Repository = (*Repository)(nil)
	_ repository.AllRemover = (*Repository)(nil)
)

// New loads AWS configuration and returns a CloudWatch-backed repository.
func New(ctx context.Context, opts Options) (*Repository, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return FromClient(cloudwatchlogs.NewFromConfig(cfg), opts), nil
}

// FromClient wraps an existing CloudWatch Logs client.
func FromClient(client Client, opts Options) *Repository {
	logGroup := opts.LogGroup
	if logGroup == "" {
		logGroup = "auditstore/event-audit"
	}
	logStream := opts.LogStream
	if logStream == "" {
		logStream = "event-audit-stream"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		client:    client,
		logGroup:  logGroup,
		logStream: logStream,
		logger:    logger,
	}
}

func (r *Repository) Name() string { return Name }

func (r *Repository) BuildEvent(data model.EventData) (*model.Event, error) {
	return model.New(data)
}

func (r *Repository) WriteEvent(ctx context.Context, event *model.Event) model.Result {
	return r.putEvents(ctx, []*model.Event{event})
}

// WriteEvents sends the whole batch in a single PutLogEvents call.
func (r *Repository) WriteEvents(ctx context.Context, events []*model.Event) model.Result {
	if len(events) == 0 {
		return model.OK("")
	}
	return r.putEvents(ctx, events)
}

func (r *Repository) putEvents(ctx context.Context, events []*model.Event) model.Result {
	if err := r.ensureGroupAndStream(ctx); err != nil {
		return model.Fail(err.Error())
	}

	records := make([]cwtypes.InputLogEvent, 0, len(events))
	for _, event := range events {
		message, err := r.serialize(event)
		if err != nil {
			return model.Fail(fmt.Sprintf("serialize event %s: %v", event.ID, err))
		}
		// The service indexes by ingestion time, so each record is
		// stamped with the send time rather than the event's logical
		// timestamp.
		records = append(records, cwtypes.InputLogEvent{
			Message:   aws.String(message),
			Timestamp: aws.Int64(time.Now().UTC().UnixMilli()),
		})
	}

	_, err := r.client.PutLogEvents(ctx, &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(r.logGroup),
		LogStreamName: aws.String(r.logStream),
		LogEvents:     records,
	})
	if err != nil {
		return model.Fail(err.Error())
	}
	return model.OK("")
}

// serialize renders the event as its canonical JSON record. When result
// and payload together exceed the service's record ceiling they are
// dropped from the record, preserving the correlation fields.
func (r *Repository) serialize(event *model.Event) (string, error) {
	resultSize, err := jsonSize(event.Result)
	if err != nil {
		return "", err
	}
	payloadSize, err := jsonSize(event.Payload)
	if err != nil {
		return "", err
	}

	if resultSize+payloadSize > maxRecordBytes {
		r.logger.Warn("event result/payload exceed record size limit, storing without them",
			"event_id", event.ID,
			"result_bytes", resultSize,
			"payload_bytes", payloadSize,
			"limit", maxRecordBytes)
		stripped := *event
		stripped.Result = map[string]any{}
		stripped.Payload = map[string]any{}
		event = &stripped
	}

	data, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func jsonSize(m map[string]any) (int, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

// ensureGroupAndStream creates the log group and stream if missing,
// swallowing already-exists faults so the call stays idempotent.
func (r *Repository) ensureGroupAndStream(ctx context.Context) error {
	r.ensureMu.Lock()
	defer r.ensureMu.Unlock()
	if r.ensured {
		return nil
	}

	_, err := r.client.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(r.logGroup),
	})
	if err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("create log group %s: %w", r.logGroup, err)
	}

	_, err = r.client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(r.logGroup),
		LogStreamName: aws.String(r.logStream),
	})
	if err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("create log stream %s: %w", r.logStream, err)
	}

	r.ensured = true
	return nil
}

func isAlreadyExists(err error) bool {
	var exists *cwtypes.ResourceAlreadyExistsException
	return errors.As(err, &exists)
}

func (r *Repository) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	events, err := r.FilterEvents(ctx, model.Filter{ID: id})
	if err != nil {
		return nil, err
	}
	switch len(events) {
	case 0:
		return nil, nil
	case 1:
		return events[0], nil
	default:
		return nil, fmt.Errorf("%w: id %s matched %d records", repository.ErrMultipleMatches, id, len(events))
	}
}

// FilterEvents translates the filter into a CloudWatch filter-pattern
// expression, exhausts pagination internally, and returns the matches
// ordered by their logical timestamps. Callers never observe partial
// pages.
func (r *Repository) FilterEvents(ctx context.Context, filter model.Filter) ([]*model.Event, error) {
	input := &cloudwatchlogs.FilterLogEventsInput{
		LogGroupName: aws.String(r.logGroup),
	}
	if pattern := filterPattern(filter); pattern != "" {
		input.FilterPattern = aws.String(pattern)
	}
	// Time bounds are first-class query parameters on this service, not
	// part of the expression string.
	if filter.TimeFrom != nil {
		input.StartTime = aws.Int64(filter.TimeFrom.UnixMilli())
	}
	if filter.TimeTo != nil {
		input.EndTime = aws.Int64(filter.TimeTo.UnixMilli())
	}

	events := []*model.Event{}
	paginator := cloudwatchlogs.NewFilterLogEventsPaginator(r.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("filter log events: %w", err)
		}
		for _, record := range page.Events {
			if record.Message == nil {
				continue
			}
			var event model.Event
			if err := json.Unmarshal([]byte(*record.Message), &event); err != nil {
				return nil, fmt.Errorf("deserialize log record: %w", err)
			}
			// The service's start/end bounds apply to ingestion time;
			// re-check against the events' logical timestamps.
			if filter.Matches(&event) {
				events = append(events, &event)
			}
		}
	}
	repository.SortByTimestamp(events)
	return events, nil
}

// RemoveAllEvents deletes the whole log group. This is the only deletion
// this backend offers: removing individual records from an append-only
// stream would require rewriting the stream into a fresh group, which is
// too expensive to support.
func (r *Repository) RemoveAllEvents(ctx context.Context) model.Result {
	_, err := r.client.DeleteLogGroup(ctx, &cloudwatchlogs.DeleteLogGroupInput{
		LogGroupName: aws.String(r.logGroup),
	})
	if err != nil {
		return model.Fail(err.Error())
	}
	r.ensureMu.Lock()
	r.ensured = false
	r.ensureMu.Unlock()
	return model.OK("All events removed successfully")
}

// TestConnection lists log groups once; credential and authorization
// faults surface as false, never as a raw service error. The outcome is
// cached for the process lifetime.
func (r *Repository) TestConnection(ctx context.Context) bool {
	r.connOnce.Do(func() {
		_, err := r.client.DescribeLogGroups(ctx, &cloudwatchlogs.DescribeLogGroupsInput{
			Limit: aws.Int32(1),
		})
		r.connUp = err == nil
	})
	return r.connUp
}

// Close is a no-op; the underlying HTTP client needs no teardown.
func (r *Repository) Close() error {
	return nil
}
