// Package mock provides an in-memory implementation of database.Store for testing.
package mock

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Store is an in-memory database.Store
type Store struct {
	mu          sync.RWMutex
	nextID      int64
	users       map[int64]*database.User
	biometrics  map[int64]*database.BiometricRecord
	schedules   map[int64]*database.Schedule
	attendances map[int64]*database.AttendanceEvent

	// Error injection
	CreateUserError       error
	ReplaceFeaturesError  error
	CreateAttendanceError error
	ListSignaturesError   error

	// ReplaceFeaturesCalls counts successful ReplaceFeatures invocations
	ReplaceFeaturesCalls int
}

var _ database.Store = (*Store)(nil)

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		users:       make(map[int64]*database.User),
		biometrics:  make(map[int64]*database.BiometricRecord),
		schedules:   make(map[int64]*database.Schedule),
		attendances: make(map[int64]*database.AttendanceEvent),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// AddUser inserts a user directly and returns it with its ID
func (s *Store) AddUser(u database.NewUser) *database.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := &database.User{
		ID: s.id(), FirstName: u.FirstName, LastName: u.LastName, Email: u.Email,
		PasswordHash: u.PasswordHash, Role: u.Role, CreatedAt: time.Now(),
	}
	s.users[user.ID] = user
	return copyUser(user)
}

// AddBiometric inserts a biometric record directly and returns it with its ID
func (s *Store) AddBiometric(userID int64, feature []float64, imageRef string) database.BiometricRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := &database.BiometricRecord{
		ID: s.id(), UserID: userID, Feature: slices.Clone(feature), ImageRef: imageRef, CreatedAt: time.Now(),
	}
	s.biometrics[rec.ID] = rec
	return copyRecord(rec)
}

// UserCount returns the number of stored users
func (s *Store) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// BiometricCount returns the number of stored biometric records
func (s *Store) BiometricCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.biometrics)
}

func copyUser(u *database.User) *database.User {
	c := *u
	return &c
}

func copyRecord(r *database.BiometricRecord) database.BiometricRecord {
	c := *r
	c.Feature = slices.Clone(r.Feature)
	return c
}

// GetUser returns a user by ID
func (s *Store) GetUser(ctx context.Context, id int64) (*database.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return copyUser(u), nil
}

// GetUserByEmail returns a user by email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*database.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, database.ErrNotFound
}

// ListUsers returns all users ordered by ID
func (s *Store) ListUsers(ctx context.Context) ([]database.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]database.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) emailTaken(email string, exceptID int64) bool {
	for _, u := range s.users {
		if u.ID != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

// UpdateUser changes profile fields
func (s *Store) UpdateUser(ctx context.Context, id int64, update database.UserUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return database.ErrNotFound
	}
	if s.emailTaken(update.Email, id) {
		return database.ErrDuplicate
	}
	u.FirstName, u.LastName, u.Email, u.Role = update.FirstName, update.LastName, update.Email, update.Role
	return nil
}

// UpdatePasswordHash replaces the password hash
func (s *Store) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return database.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

// DeleteUser removes a user with its attendances and biometrics
func (s *Store) DeleteUser(ctx context.Context, id int64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return nil, database.ErrNotFound
	}
	for aid, a := range s.attendances {
		if a.UserID == id {
			delete(s.attendances, aid)
		}
	}
	var refs []string
	for _, rec := range s.sortedRecords(func(r *database.BiometricRecord) bool { return r.UserID == id }) {
		refs = append(refs, rec.ImageRef)
		delete(s.biometrics, rec.ID)
	}
	delete(s.users, id)
	return refs, nil
}

func (s *Store) sortedRecords(keep func(*database.BiometricRecord) bool) []database.BiometricRecord {
	var out []database.BiometricRecord
	for _, r := range s.biometrics {
		if keep(r) {
			out = append(out, copyRecord(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListUserSignatures returns a user's records with a feature
func (s *Store) ListUserSignatures(ctx context.Context, userID int64) ([]database.BiometricRecord, error) {
	if s.ListSignaturesError != nil {
		return nil, s.ListSignaturesError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedRecords(func(r *database.BiometricRecord) bool { return r.UserID == userID && r.HasFeature() }), nil
}

// ListSignatures returns all records with a feature
func (s *Store) ListSignatures(ctx context.Context) ([]database.BiometricRecord, error) {
	if s.ListSignaturesError != nil {
		return nil, s.ListSignaturesError
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedRecords(func(r *database.BiometricRecord) bool { return r.HasFeature() }), nil
}

// ListBiometrics returns all records
func (s *Store) ListBiometrics(ctx context.Context) ([]database.BiometricRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedRecords(func(*database.BiometricRecord) bool { return true }), nil
}

// ListUserBiometrics returns all records of one user
func (s *Store) ListUserBiometrics(ctx context.Context, userID int64) ([]database.BiometricRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedRecords(func(r *database.BiometricRecord) bool { return r.UserID == userID }), nil
}

// ImageRefs returns every record's image reference
func (s *Store) ImageRefs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	refs := make([]string, 0, len(s.biometrics))
	for _, r := range s.sortedRecords(func(*database.BiometricRecord) bool { return true }) {
		refs = append(refs, r.ImageRef)
	}
	return refs, nil
}

// ReplaceFeatures applies all updates or none
func (s *Store) ReplaceFeatures(ctx context.Context, updates []database.FeatureUpdate) error {
	if s.ReplaceFeaturesError != nil {
		return s.ReplaceFeaturesError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range updates {
		if _, ok := s.biometrics[u.RecordID]; !ok {
			return database.ErrNotFound
		}
	}
	for _, u := range updates {
		s.biometrics[u.RecordID].Feature = slices.Clone(u.Feature)
	}
	s.ReplaceFeaturesCalls++
	return nil
}

// CreateUserWithBiometrics inserts a user and its records atomically
func (s *Store) CreateUserWithBiometrics(ctx context.Context, nu database.NewUser, records []database.NewBiometric) (*database.User, []database.BiometricRecord, error) {
	if s.CreateUserError != nil {
		return nil, nil, s.CreateUserError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emailTaken(nu.Email, 0) {
		return nil, nil, database.ErrDuplicate
	}
	now := time.Now()
	user := &database.User{
		ID: s.id(), FirstName: nu.FirstName, LastName: nu.LastName, Email: nu.Email,
		PasswordHash: nu.PasswordHash, Role: nu.Role, CreatedAt: now,
	}
	s.users[user.ID] = user
	stored := make([]database.BiometricRecord, 0, len(records))
	for _, r := range records {
		rec := &database.BiometricRecord{
			ID: s.id(), UserID: user.ID, Feature: slices.Clone(r.Feature), ImageRef: r.ImageRef, CreatedAt: now,
		}
		s.biometrics[rec.ID] = rec
		stored = append(stored, copyRecord(rec))
	}
	return copyUser(user), stored, nil
}

// GetSchedule returns a schedule by ID
func (s *Store) GetSchedule(ctx context.Context, id int64) (*database.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.schedules[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	c := *sc
	return &c, nil
}

// ListSchedules returns schedules ordered by start time
func (s *Store) ListSchedules(ctx context.Context, activeOnly bool) ([]database.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []database.Schedule
	for _, sc := range s.schedules {
		if activeOnly && !sc.IsActive() {
			continue
		}
		out = append(out, *sc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CreateSchedule inserts a schedule
func (s *Store) CreateSchedule(ctx context.Context, in database.ScheduleInput) (*database.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	sc := &database.Schedule{
		ID: s.id(), Title: in.Title, StartTime: in.StartTime, EndTime: in.EndTime,
		Status: in.Status, CreatedAt: now, UpdatedAt: now,
	}
	s.schedules[sc.ID] = sc
	c := *sc
	return &c, nil
}

// UpdateSchedule replaces a schedule's fields
func (s *Store) UpdateSchedule(ctx context.Context, id int64, in database.ScheduleInput) (*database.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.schedules[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	sc.Title, sc.StartTime, sc.EndTime, sc.Status = in.Title, in.StartTime, in.EndTime, in.Status
	sc.UpdatedAt = time.Now()
	c := *sc
	return &c, nil
}

// SetScheduleStatus changes only the status
func (s *Store) SetScheduleStatus(ctx context.Context, id int64, status string) (*database.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.schedules[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	sc.Status = status
	sc.UpdatedAt = time.Now()
	c := *sc
	return &c, nil
}

// DeleteSchedule removes a schedule and its attendances
func (s *Store) DeleteSchedule(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[id]; !ok {
		return database.ErrNotFound
	}
	for aid, a := range s.attendances {
		if a.ScheduleID == id {
			delete(s.attendances, aid)
		}
	}
	delete(s.schedules, id)
	return nil
}

func (s *Store) sortedAttendances(keep func(*database.AttendanceEvent) bool) []database.AttendanceEvent {
	var out []database.AttendanceEvent
	for _, a := range s.attendances {
		if keep(a) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListUserAttendances returns a user's attendance events
func (s *Store) ListUserAttendances(ctx context.Context, userID int64) ([]database.AttendanceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedAttendances(func(a *database.AttendanceEvent) bool { return a.UserID == userID }), nil
}

// ListScheduleAttendances returns a schedule's attendance events
func (s *Store) ListScheduleAttendances(ctx context.Context, scheduleID int64) ([]database.AttendanceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedAttendances(func(a *database.AttendanceEvent) bool { return a.ScheduleID == scheduleID }), nil
}

// CreateAttendance appends an event
func (s *Store) CreateAttendance(ctx context.Context, event database.AttendanceEvent) (*database.AttendanceEvent, error) {
	if s.CreateAttendanceError != nil {
		return nil, s.CreateAttendanceError
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	event.ID = s.id()
	s.attendances[event.ID] = &event
	c := event
	return &c, nil
}
