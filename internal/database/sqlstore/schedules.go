package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

const scheduleColumns = "id, title, start_time, end_time, status, created_at, updated_at"

func scanSchedule(row rowScanner) (*database.Schedule, error) {
	var sc database.Schedule
	if err := row.Scan(&sc.ID, &sc.Title, &sc.StartTime, &sc.EndTime, &sc.Status, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
		return nil, err
	}
	return &sc, nil
}

// GetSchedule returns a schedule by ID.
func (s *Store) GetSchedule(ctx context.Context, id int64) (*database.Schedule, error) {
	row := s.db.QueryRowContext(ctx, s.rebind("SELECT "+scheduleColumns+" FROM schedules WHERE id = ?"), id)
	sc, err := scanSchedule(row)
	if err != nil {
		return nil, s.translate(err)
	}
	return sc, nil
}

// ListSchedules returns schedules ordered by start time.
func (s *Store) ListSchedules(ctx context.Context, activeOnly bool) ([]database.Schedule, error) {
	query := "SELECT " + scheduleColumns + " FROM schedules"
	var args []any
	if activeOnly {
		query += " WHERE status = ?"
		args = append(args, database.ScheduleActive)
	}
	query += " ORDER BY start_time, id"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	var out []database.Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		out = append(out, *sc)
	}
	return out, rows.Err()
}

// CreateSchedule inserts a schedule.
func (s *Store) CreateSchedule(ctx context.Context, in database.ScheduleInput) (*database.Schedule, error) {
	now := time.Now().UTC()
	id, err := s.insert(ctx, s.db,
		"INSERT INTO schedules (title, start_time, end_time, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		in.Title, in.StartTime, in.EndTime, in.Status, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert schedule: %w", err)
	}
	return &database.Schedule{
		ID: id, Title: in.Title, StartTime: in.StartTime, EndTime: in.EndTime,
		Status: in.Status, CreatedAt: now, UpdatedAt: now,
	}, nil
}

// UpdateSchedule replaces the editable fields of a schedule.
func (s *Store) UpdateSchedule(ctx context.Context, id int64, in database.ScheduleInput) (*database.Schedule, error) {
	err := s.execOne(ctx, s.db,
		"UPDATE schedules SET title = ?, start_time = ?, end_time = ?, status = ?, updated_at = ? WHERE id = ?",
		in.Title, in.StartTime, in.EndTime, in.Status, time.Now().UTC(), id)
	if err != nil {
		return nil, err
	}
	return s.GetSchedule(ctx, id)
}

// SetScheduleStatus changes only the status.
func (s *Store) SetScheduleStatus(ctx context.Context, id int64, status string) (*database.Schedule, error) {
	err := s.execOne(ctx, s.db, "UPDATE schedules SET status = ?, updated_at = ? WHERE id = ?", status, time.Now().UTC(), id)
	if err != nil {
		return nil, err
	}
	return s.GetSchedule(ctx, id)
}

// DeleteSchedule removes a schedule and its attendance events.
func (s *Store) DeleteSchedule(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.rebind("DELETE FROM user_attendances WHERE schedule_id = ?"), id); err != nil {
			return fmt.Errorf("delete attendances: %w", err)
		}
		return s.execOne(ctx, tx, "DELETE FROM schedules WHERE id = ?", id)
	})
}
