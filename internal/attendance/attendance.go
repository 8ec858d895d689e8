// Package attendance classifies and records schedule check-ins.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"go.uber.org/zap"
)

var (
	// ErrTooEarly is returned for check-ins before the window opens.
	ErrTooEarly = errors.New("schedule has not started yet")
	// ErrScheduleInactive is returned for check-ins on an inactive schedule.
	ErrScheduleInactive = errors.New("schedule is not active")
	// ErrInvalidWindow is returned for malformed or empty windows.
	ErrInvalidWindow = errors.New("invalid schedule window")
)

// Clock is a wall-clock time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM" (24 hour). "HH:MM:SS" is accepted and the
// seconds are dropped, as some databases return TIME columns that way.
func ParseClock(s string) (Clock, error) {
	var t time.Time
	var err error
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err = time.Parse(layout, s); err == nil {
			return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
		}
	}
	return Clock{}, fmt.Errorf("%w: %q is not HH:MM", ErrInvalidWindow, s)
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) minutes() int {
	return c.Hour*60 + c.Minute
}

// On returns the instant of c on the calendar day of day, in day's location.
func (c Clock) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, day.Location())
}

// Window is the daily check-in window of a schedule.
type Window struct {
	Start Clock
	End   Clock
}

// NewWindow parses both ends and requires end to be after start.
func NewWindow(start, end string) (Window, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Window{}, err
	}
	if e.minutes() <= s.minutes() {
		return Window{}, fmt.Errorf("%w: end %s is not after start %s", ErrInvalidWindow, e, s)
	}
	return Window{Start: s, End: e}, nil
}

// WindowOf returns the window of a stored schedule.
func WindowOf(s *database.Schedule) (Window, error) {
	return NewWindow(s.StartTime, s.EndTime)
}

// Classify returns AttendancePresent inside [start, end], AttendanceLate
// after end and ErrTooEarly before start. The window is applied to the
// calendar day of now.
func Classify(w Window, now time.Time) (string, error) {
	start := w.Start.On(now)
	end := w.End.On(now)
	switch {
	case now.Before(start):
		return "", ErrTooEarly
	case now.After(end):
		return database.AttendanceLate, nil
	default:
		return database.AttendancePresent, nil
	}
}

// Observer is notified about every recorded event.
type Observer interface {
	RecordAttendance(status string)
}

// Store is the persistence the recorder needs.
type Store interface {
	database.ScheduleReader
	database.AttendanceWriter
}

// Recorder appends attendance events.
type Recorder struct {
	store    Store
	location *time.Location
	now      func() time.Time
	observer Observer
	logger   *zap.Logger
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithObserver installs an observer.
func WithObserver(o Observer) Option {
	return func(r *Recorder) { r.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Recorder) { r.logger = l }
}

// NewRecorder creates a recorder evaluating windows in location.
func NewRecorder(store Store, location *time.Location, opts ...Option) *Recorder {
	if location == nil {
		location = time.Local
	}
	r := &Recorder{store: store, location: location, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record classifies the current time against the schedule and appends one
// event. Earlier events are never touched.
func (r *Recorder) Record(ctx context.Context, userID, scheduleID int64) (*database.AttendanceEvent, error) {
	sched, err := r.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("loading schedule %d: %w", scheduleID, err)
	}
	if !sched.IsActive() {
		return nil, ErrScheduleInactive
	}
	window, err := WindowOf(sched)
	if err != nil {
		return nil, err
	}

	now := r.now().In(r.location)
	status, err := Classify(window, now)
	if err != nil {
		return nil, err
	}

	event, err := r.store.CreateAttendance(ctx, database.AttendanceEvent{
		UserID:     userID,
		ScheduleID: scheduleID,
		AttendedAt: now,
		Status:     status,
	})
	if err != nil {
		return nil, fmt.Errorf("storing attendance: %w", err)
	}

	r.logger.Info("attendance recorded",
		zap.Int64("user_id", userID),
		zap.Int64("schedule_id", scheduleID),
		zap.String("status", status))
	if r.observer != nil {
		r.observer.RecordAttendance(status)
	}
	return event, nil
}
