package database

import (
	"context"
)

// UserReader provides read-only access to identities
type UserReader interface {
	// GetUser returns the user or ErrNotFound
	GetUser(ctx context.Context, id int64) (*User, error)
	// GetUserByEmail returns the user with the given (normalized) email or ErrNotFound
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	// ListUsers returns all users ordered by ID
	ListUsers(ctx context.Context) ([]User, error)
}

// UserWriter provides write access to identities
type UserWriter interface {
	UserReader

	// UpdateUser changes profile fields; returns ErrDuplicate when the email is taken
	UpdateUser(ctx context.Context, id int64, update UserUpdate) error
	// UpdatePasswordHash replaces the stored password hash
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
	// DeleteUser removes the user together with attendances and biometric records.
	// Returns the image references of the removed biometric records.
	DeleteUser(ctx context.Context, id int64) ([]string, error)
}

// SignatureReader is the typed view the verifier needs over stored signatures
type SignatureReader interface {
	// ListUserSignatures returns the user's records with a non-null feature, ordered by ID
	ListUserSignatures(ctx context.Context, userID int64) ([]BiometricRecord, error)
	// ListSignatures returns every record with a non-null feature, ordered by ID
	ListSignatures(ctx context.Context) ([]BiometricRecord, error)
}

// BiometricReader provides read-only access to biometric records
type BiometricReader interface {
	SignatureReader

	// ListBiometrics returns every record, with or without a feature, ordered by ID
	ListBiometrics(ctx context.Context) ([]BiometricRecord, error)
	// ListUserBiometrics returns all records of one user, ordered by ID
	ListUserBiometrics(ctx context.Context, userID int64) ([]BiometricRecord, error)
	// ImageRefs returns the image reference of every record
	ImageRefs(ctx context.Context) ([]string, error)
}

// BiometricWriter provides write access to biometric records
type BiometricWriter interface {
	BiometricReader

	// ReplaceFeatures applies all updates in a single transaction
	ReplaceFeatures(ctx context.Context, updates []FeatureUpdate) error
}

// EnrollmentWriter persists a new identity and its biometric records atomically
type EnrollmentWriter interface {
	// CreateUserWithBiometrics inserts the user and every record in one transaction.
	// Returns ErrDuplicate when the email is already registered.
	CreateUserWithBiometrics(ctx context.Context, user NewUser, records []NewBiometric) (*User, []BiometricRecord, error)
}

// ScheduleReader provides read-only access to schedules
type ScheduleReader interface {
	GetSchedule(ctx context.Context, id int64) (*Schedule, error)
	// ListSchedules returns schedules ordered by start time; activeOnly filters inactive ones
	ListSchedules(ctx context.Context, activeOnly bool) ([]Schedule, error)
}

// ScheduleWriter provides write access to schedules
type ScheduleWriter interface {
	ScheduleReader

	CreateSchedule(ctx context.Context, input ScheduleInput) (*Schedule, error)
	UpdateSchedule(ctx context.Context, id int64, input ScheduleInput) (*Schedule, error)
	SetScheduleStatus(ctx context.Context, id int64, status string) (*Schedule, error)
	// DeleteSchedule removes the schedule and its attendance events
	DeleteSchedule(ctx context.Context, id int64) error
}

// AttendanceReader provides read-only access to attendance events
type AttendanceReader interface {
	ListUserAttendances(ctx context.Context, userID int64) ([]AttendanceEvent, error)
	ListScheduleAttendances(ctx context.Context, scheduleID int64) ([]AttendanceEvent, error)
}

// AttendanceWriter appends attendance events
type AttendanceWriter interface {
	AttendanceReader

	// CreateAttendance appends one event and returns it with its ID
	CreateAttendance(ctx context.Context, event AttendanceEvent) (*AttendanceEvent, error)
}

// Store bundles every repository the application needs
type Store interface {
	UserWriter
	BiometricWriter
	EnrollmentWriter
	ScheduleWriter
	AttendanceWriter
}
