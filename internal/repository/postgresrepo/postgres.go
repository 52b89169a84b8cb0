// Package postgresrepo implements the repository contract backed by
// PostgreSQL.
package postgresrepo

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/groblegark/auditstore/internal/model"
	"github.com/groblegark/auditstore/internal/repository"
)

// Name is the registry identifier for this backend.
const Name = "postgres"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Repository stores one row per event in the event_audit_event table.
type Repository struct {
	db *sql.DB

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

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*Repository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return FromDB(db), nil
}

// FromDB wraps an existing database handle without running migrations.
func FromDB(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

func (r *Repository) Name() string { return Name }

func (r *Repository) BuildEvent(data model.EventData) (*model.Event, error) {
	return model.New(data)
}

func (r *Repository) WriteEvent(ctx context.Context, event *model.Event) model.Result {
	if err := queryWriteEvent(ctx, r.db, event); err != nil {
		return model.Fail(err.Error())
	}
	return model.OK("")
}

// WriteEvents inserts the whole batch inside one transaction and commits
// once, so a mid-batch failure leaves no partial writes behind.
func (r *Repository) WriteEvents(ctx context.Context, events []*model.Event) model.Result {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Fail(fmt.Sprintf("begin transaction: %v", err))
	}
	for _, event := range events {
		if err := queryWriteEvent(ctx, tx, event); err != nil {
			_ = tx.Rollback()
			return model.Fail(fmt.Sprintf("write event %s: %v", event.ID, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return model.Fail(fmt.Sprintf("commit transaction: %v", err))
	}
	return model.OK("")
}

func (r *Repository) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	return queryGetEvent(ctx, r.db, id)
}

func (r *Repository) FilterEvents(ctx context.Context, filter model.Filter) ([]*model.Event, error) {
	return queryFilterEvents(ctx, r.db, filter)
}

// RemoveEvent deletes one event by ID.
func (r *Repository) RemoveEvent(ctx context.Context, id string) model.Result {
	n, err := queryRemoveEvent(ctx, r.db, id)
	if err != nil {
		return model.Fail(err.Error())
	}
	if n == 0 {
		return model.Fail("Event not found")
	}
	return model.OK("Event removed successfully")
}

// RemoveEvents deletes every event matching the filter using the same
// predicate building as FilterEvents.
func (r *Repository) RemoveEvents(ctx context.Context, filter model.Filter) model.Result {
	n, err := queryRemoveEvents(ctx, r.db, filter)
	if err != nil {
		return model.Fail(err.Error())
	}
	return model.OK(fmt.Sprintf("%d event(s) removed successfully", n))
}

// RemoveAllEvents truncates the event table.
func (r *Repository) RemoveAllEvents(ctx context.Context) model.Result {
	if _, err := r.db.ExecContext(ctx, `TRUNCATE `+tableName); err != nil {
		return model.Fail(err.Error())
	}
	return model.OK("All events removed successfully")
}

// TestConnection pings the database once and caches the outcome for the
// process lifetime.
func (r *Repository) TestConnection(ctx context.Context) bool {
	r.connOnce.Do(func() {
		r.connUp = r.db.PingContext(ctx) == nil
	})
	return r.connUp
}

func (r *Repository) Close() error {
	return r.db.Close()
}
