package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/example/family-calendar/internal/persistence"
)

// EventRepository implements persistence.EventRepository.
type EventRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

func NewEventRepository(pool *ConnectionPool) *EventRepository {
	return &EventRepository{pool: pool, helper: NewQueryHelper(pool), mapper: NewErrorMapper()}
}

const eventColumns = `id, title, description, start_time, end_time, all_day, user_id,
	reminder_enabled, reminder_minutes, recurrence_type, recurrence_interval, recurrence_end_date,
	created_at, updated_at`

func (r *EventRepository) CreateEvent(ctx context.Context, event persistence.Event) error {
	if event.ID == "" {
		return persistence.ErrConstraintViolation
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	if event.UpdatedAt.IsZero() {
		event.UpdatedAt = event.CreatedAt
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := r.helper.ExecTx(ctx, tx,
			`INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			event.ID,
			event.Title,
			nullString(event.Description),
			formatTimestamp(event.Start),
			formatTimestamp(event.End),
			event.AllDay,
			event.UserID,
			event.ReminderEnabled,
			event.ReminderMinutes,
			recurrenceTypeOrNone(event.RecurrenceType),
			event.RecurrenceInterval,
			nullString(event.RecurrenceEndDate),
			formatTimestamp(event.CreatedAt),
			formatTimestamp(event.UpdatedAt),
		)
		return err
	})
}

// ReplaceEvent overwrites every mutable column of an existing event.
func (r *EventRepository) ReplaceEvent(ctx context.Context, event persistence.Event) error {
	if event.ID == "" {
		return persistence.ErrConstraintViolation
	}
	if event.UpdatedAt.IsZero() {
		event.UpdatedAt = time.Now().UTC()
	}

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := r.helper.ExecTx(ctx, tx, `
			UPDATE events
			SET title = ?, description = ?, start_time = ?, end_time = ?, all_day = ?, user_id = ?,
				reminder_enabled = ?, reminder_minutes = ?, recurrence_type = ?, recurrence_interval = ?,
				recurrence_end_date = ?, updated_at = ?
			WHERE id = ?`,
			event.Title,
			nullString(event.Description),
			formatTimestamp(event.Start),
			formatTimestamp(event.End),
			event.AllDay,
			event.UserID,
			event.ReminderEnabled,
			event.ReminderMinutes,
			recurrenceTypeOrNone(event.RecurrenceType),
			event.RecurrenceInterval,
			nullString(event.RecurrenceEndDate),
			formatTimestamp(event.UpdatedAt),
			event.ID,
		)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

func (r *EventRepository) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	row := r.helper.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	return r.scanEvent(row)
}

// ListEvents returns events ordered by start time, then id.
func (r *EventRepository) ListEvents(ctx context.Context, filter persistence.EventFilter) ([]persistence.Event, error) {
	var (
		clauses []string
		args    []any
	)
	if len(filter.OwnerIDs) > 0 {
		placeholders := make([]string, len(filter.OwnerIDs))
		for i, id := range filter.OwnerIDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		clauses = append(clauses, "user_id IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.StartsBefore != nil {
		clauses = append(clauses, "start_time < ?")
		args = append(args, formatTimestamp(*filter.StartsBefore))
	}
	if filter.EndsAfter != nil {
		clauses = append(clauses, "(recurrence_type <> 'none' OR end_time >= ?)")
		args = append(args, formatTimestamp(*filter.EndsAfter))
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY start_time ASC, id ASC"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var events []persistence.Event
	for rows.Next() {
		event, err := r.scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return events, nil
}

func (r *EventRepository) DeleteEvent(ctx context.Context, id string) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := r.helper.ExecTx(ctx, tx, `DELETE FROM events WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

func (r *EventRepository) scanEvent(row rowScanner) (persistence.Event, error) {
	var (
		event                        persistence.Event
		description, endDate         sql.NullString
		start, end, created, updated string
	)
	err := row.Scan(
		&event.ID,
		&event.Title,
		&description,
		&start,
		&end,
		&event.AllDay,
		&event.UserID,
		&event.ReminderEnabled,
		&event.ReminderMinutes,
		&event.RecurrenceType,
		&event.RecurrenceInterval,
		&endDate,
		&created,
		&updated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Event{}, persistence.ErrNotFound
		}
		return persistence.Event{}, r.mapper.MapError(err)
	}
	event.Description = stringPtr(description)
	event.RecurrenceEndDate = stringPtr(endDate)

	for _, f := range []struct {
		column string
		value  string
		dest   *time.Time
	}{
		{"start_time", start, &event.Start},
		{"end_time", end, &event.End},
		{"created_at", created, &event.CreatedAt},
		{"updated_at", updated, &event.UpdatedAt},
	} {
		t, err := parseTimestamp(f.column, f.value)
		if err != nil {
			return persistence.Event{}, err
		}
		*f.dest = t
	}
	return event, nil
}

func recurrenceTypeOrNone(t string) string {
	if strings.TrimSpace(t) == "" {
		return "none"
	}
	return t
}
