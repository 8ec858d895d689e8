package database

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint (e.g. users.email) is violated.
	ErrDuplicate = errors.New("duplicate record")
)

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Schedule statuses
const (
	ScheduleActive   = "active"
	ScheduleInactive = "inactive"
)

// Attendance statuses
const (
	AttendancePresent = "present"
	AttendanceLate    = "late"
)

// User is an identity record. The biometric engine only relies on ID.
type User struct {
	ID           int64
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

// DisplayName joins first and last name.
func (u *User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// IsAdmin reports whether the user has the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// NewUser holds the fields needed to create a user.
type NewUser struct {
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Role         string
}

// UserUpdate holds the editable profile fields of a user.
type UserUpdate struct {
	FirstName string
	LastName  string
	Email     string
	Role      string
}

// BiometricRecord is one enrolled image of a user and its signature.
// Feature is nil until populated (per-image embedding or subspace rebuild).
type BiometricRecord struct {
	ID        int64
	UserID    int64
	Feature   []float64
	ImageRef  string
	CreatedAt time.Time
}

// HasFeature reports whether the record carries a signature.
func (r *BiometricRecord) HasFeature() bool {
	return len(r.Feature) > 0
}

// NewBiometric is a biometric record that has not been stored yet.
type NewBiometric struct {
	Feature  []float64
	ImageRef string
}

// FeatureUpdate replaces the signature of one record. A nil Feature clears it.
type FeatureUpdate struct {
	RecordID int64
	Feature  []float64
}

// Schedule is an attendance window expressed as clock times ("15:04").
type Schedule struct {
	ID        int64
	Title     string
	StartTime string
	EndTime   string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive reports whether attendance may be recorded against the schedule.
func (s *Schedule) IsActive() bool {
	return s.Status == ScheduleActive
}

// ScheduleInput holds the editable fields of a schedule.
type ScheduleInput struct {
	Title     string
	StartTime string
	EndTime   string
	Status    string
}

// AttendanceEvent is an append-only attendance record.
type AttendanceEvent struct {
	ID         int64
	UserID     int64
	ScheduleID int64
	AttendedAt time.Time
	Status     string
}
