package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 2, hour, minute, 0, 0, time.UTC)
}

func TestClassify(t *testing.T) {
	w, err := NewWindow("09:00", "09:30")
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}

	tests := []struct {
		name    string
		now     time.Time
		want    string
		wantErr error
	}{
		{"too early", at(8, 55), "", ErrTooEarly},
		{"at start", at(9, 0), database.AttendancePresent, nil},
		{"inside", at(9, 10), database.AttendancePresent, nil},
		{"at end", at(9, 30), database.AttendancePresent, nil},
		{"late", at(9, 45), database.AttendanceLate, nil},
		{"a second after end", at(9, 30).Add(time.Second), database.AttendanceLate, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify(w, tt.now)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("status = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{"09:00", Clock{9, 0}, false},
		{"23:59", Clock{23, 59}, false},
		{"07:15:00", Clock{7, 15}, false},
		{"24:00", Clock{}, true},
		{"9am", Clock{}, true},
		{"", Clock{}, true},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseClock(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseClock(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWindow_EndMustFollowStart(t *testing.T) {
	for _, tc := range [][2]string{{"10:00", "09:00"}, {"10:00", "10:00"}, {"xx", "10:00"}} {
		if _, err := NewWindow(tc[0], tc[1]); !errors.Is(err, ErrInvalidWindow) {
			t.Errorf("NewWindow(%s, %s) = %v, want ErrInvalidWindow", tc[0], tc[1], err)
		}
	}
}

func TestClassify_UsesLocation(t *testing.T) {
	prague, err := time.LoadLocation("Europe/Prague")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	w, _ := NewWindow("09:00", "09:30")
	// 08:10 UTC is 09:10 in Prague during winter time.
	now := time.Date(2026, 1, 12, 8, 10, 0, 0, time.UTC).In(prague)
	got, err := Classify(w, now)
	if err != nil || got != database.AttendancePresent {
		t.Errorf("Classify = %q, %v; want present", got, err)
	}
}

type countingObserver struct{ statuses []string }

func (o *countingObserver) RecordAttendance(status string) { o.statuses = append(o.statuses, status) }

func newSchedule(t *testing.T, store *mock.Store, status string) *database.Schedule {
	t.Helper()
	s, err := store.CreateSchedule(context.Background(), database.ScheduleInput{
		Title: "Standup", StartTime: "09:00", EndTime: "09:30", Status: status,
	})
	if err != nil {
		t.Fatalf("CreateSchedule: %v", err)
	}
	return s
}

func TestRecorder_Record(t *testing.T) {
	store := mock.NewStore()
	user := store.AddUser(database.NewUser{Email: "alice@example.com", Role: database.RoleUser})
	sched := newSchedule(t, store, database.ScheduleActive)
	obs := &countingObserver{}

	clock := at(9, 10)
	r := NewRecorder(store, time.UTC, WithClock(func() time.Time { return clock }), WithObserver(obs))

	first, err := r.Record(context.Background(), user.ID, sched.ID)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if first.Status != database.AttendancePresent || first.ID == 0 {
		t.Errorf("first event = %+v", first)
	}

	clock = at(9, 45)
	second, err := r.Record(context.Background(), user.ID, sched.ID)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if second.Status != database.AttendanceLate {
		t.Errorf("second status = %q, want late", second.Status)
	}

	events, _ := store.ListUserAttendances(context.Background(), user.ID)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Status != database.AttendancePresent {
		t.Error("earlier event was modified")
	}
	if len(obs.statuses) != 2 {
		t.Errorf("observer saw %d events, want 2", len(obs.statuses))
	}
}

func TestRecorder_Rejections(t *testing.T) {
	store := mock.NewStore()
	user := store.AddUser(database.NewUser{Email: "alice@example.com", Role: database.RoleUser})
	active := newSchedule(t, store, database.ScheduleActive)
	inactive := newSchedule(t, store, database.ScheduleInactive)

	r := NewRecorder(store, time.UTC, WithClock(func() time.Time { return at(8, 55) }))

	if _, err := r.Record(context.Background(), user.ID, active.ID); !errors.Is(err, ErrTooEarly) {
		t.Errorf("expected ErrTooEarly, got %v", err)
	}
	if _, err := r.Record(context.Background(), user.ID, inactive.ID); !errors.Is(err, ErrScheduleInactive) {
		t.Errorf("expected ErrScheduleInactive, got %v", err)
	}
	if _, err := r.Record(context.Background(), user.ID, 999); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	events, _ := store.ListUserAttendances(context.Background(), user.ID)
	if len(events) != 0 {
		t.Errorf("rejected check-ins must not be stored, got %d", len(events))
	}
}

func TestRecorder_StoreFailure(t *testing.T) {
	store := mock.NewStore()
	sched := newSchedule(t, store, database.ScheduleActive)
	store.CreateAttendanceError = errors.New("insert failed")

	r := NewRecorder(store, time.UTC, WithClock(func() time.Time { return at(9, 5) }))
	if _, err := r.Record(context.Background(), 1, sched.ID); err == nil {
		t.Error("expected error")
	}
}
