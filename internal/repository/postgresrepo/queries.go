package postgresrepo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/groblegark/auditstore/internal/model"
)

const tableName = "event_audit_event"

// eventColumns is the column list used for SELECT statements.
const eventColumns = `id, category, action, actor, action_object, action_object_id,
	target_type, target_id, timestamp, result, payload`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryWriteEvent(ctx context.Context, db executor, e *model.Event) error {
	ts, err := e.Time()
	if err != nil {
		return fmt.Errorf("event %s timestamp: %w", e.ID, err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO `+tableName+` (
			id, category, action, actor, action_object, action_object_id,
			target_type, target_id, timestamp, result, payload
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11
		)`,
		e.ID,
		e.Category,
		e.Action,
		e.Actor,
		e.ActionObject,
		e.ActionObjectID,
		e.TargetType,
		e.TargetID,
		ts,
		jsonbMap(e.Result),
		jsonbMap(e.Payload),
	)
	return err
}

func queryGetEvent(ctx context.Context, db executor, id string) (*model.Event, error) {
	row := db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM `+tableName+` WHERE id = $1`, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// buildWhere translates the filter into a WHERE clause with numbered
// placeholders. Shared by the filter and filtered-removal paths so both
// always agree on what matches.
func buildWhere(filter model.Filter) (string, []any) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	for _, cond := range filter.FieldConditions() {
		whereClauses = append(whereClauses, cond.Field+" = "+nextArg())
		args = append(args, cond.Value)
	}

	if filter.TimeFrom != nil {
		whereClauses = append(whereClauses, "timestamp >= "+nextArg())
		args = append(args, *filter.TimeFrom)
	}
	if filter.TimeTo != nil {
		whereClauses = append(whereClauses, "timestamp <= "+nextArg())
		args = append(args, *filter.TimeTo)
	}

	if len(whereClauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(whereClauses, " AND "), args
}

func queryFilterEvents(ctx context.Context, db executor, filter model.Filter) ([]*model.Event, error) {
	whereSQL, args := buildWhere(filter)
	query := `SELECT ` + eventColumns + ` FROM ` + tableName + whereSQL + ` ORDER BY timestamp ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("filter events: %w", err)
	}
	defer rows.Close()

	events := []*model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	return events, nil
}

func queryRemoveEvent(ctx context.Context, db executor, id string) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM `+tableName+` WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func queryRemoveEvents(ctx context.Context, db executor, filter model.Filter) (int64, error) {
	whereSQL, args := buildWhere(filter)
	res, err := db.ExecContext(ctx, `DELETE FROM `+tableName+whereSQL, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
