package sqlstore

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/database"
)

const attendanceColumns = "id, user_id, schedule_id, attended_at, status"

func (s *Store) queryAttendances(ctx context.Context, where string, arg any) ([]database.AttendanceEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind("SELECT "+attendanceColumns+" FROM user_attendances WHERE "+where+" ORDER BY attended_at, id"), arg)
	if err != nil {
		return nil, fmt.Errorf("query attendances: %w", err)
	}
	defer rows.Close()

	var out []database.AttendanceEvent
	for rows.Next() {
		var a database.AttendanceEvent
		if err := rows.Scan(&a.ID, &a.UserID, &a.ScheduleID, &a.AttendedAt, &a.Status); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListUserAttendances returns a user's events, oldest first.
func (s *Store) ListUserAttendances(ctx context.Context, userID int64) ([]database.AttendanceEvent, error) {
	return s.queryAttendances(ctx, "user_id = ?", userID)
}

// ListScheduleAttendances returns a schedule's events, oldest first.
func (s *Store) ListScheduleAttendances(ctx context.Context, scheduleID int64) ([]database.AttendanceEvent, error) {
	return s.queryAttendances(ctx, "schedule_id = ?", scheduleID)
}

// CreateAttendance appends one event.
func (s *Store) CreateAttendance(ctx context.Context, event database.AttendanceEvent) (*database.AttendanceEvent, error) {
	event.AttendedAt = event.AttendedAt.UTC()
	id, err := s.insert(ctx, s.db,
		"INSERT INTO user_attendances (user_id, schedule_id, attended_at, status) VALUES (?, ?, ?, ?)",
		event.UserID, event.ScheduleID, event.AttendedAt, event.Status)
	if err != nil {
		return nil, fmt.Errorf("insert attendance: %w", err)
	}
	event.ID = id
	return &event, nil
}
