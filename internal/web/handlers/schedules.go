package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/validation"
	"go.uber.org/zap"
)

// ScheduleStore is the schedule persistence the admin endpoints need.
type ScheduleStore interface {
	database.ScheduleWriter
	database.AttendanceReader
}

// SchedulesHandler handles schedule administration
type SchedulesHandler struct {
	store  ScheduleStore
	logger *zap.Logger
}

// NewSchedulesHandler creates a new schedules handler
func NewSchedulesHandler(store ScheduleStore, logger *zap.Logger) *SchedulesHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchedulesHandler{store: store, logger: logger}
}

// ScheduleResponse is the JSON form of a schedule
type ScheduleResponse struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func scheduleResponse(s database.Schedule) ScheduleResponse {
	return ScheduleResponse{
		ID:        s.ID,
		Title:     s.Title,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		Status:    s.Status,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func scheduleResponses(schedules []database.Schedule) []ScheduleResponse {
	out := make([]ScheduleResponse, len(schedules))
	for i, s := range schedules {
		out[i] = scheduleResponse(s)
	}
	return out
}

type scheduleRequest struct {
	Title     string `json:"title" validate:"required,max=255"`
	StartTime string `json:"start_time" validate:"required,clock"`
	EndTime   string `json:"end_time" validate:"required,clock"`
	Status    string `json:"status" validate:"omitempty,oneof=active inactive"`
}

// input validates the payload, including the window order.
func (req scheduleRequest) input() (database.ScheduleInput, error) {
	if err := validation.Struct(req); err != nil {
		return database.ScheduleInput{}, err
	}
	if _, err := attendance.NewWindow(req.StartTime, req.EndTime); err != nil {
		return database.ScheduleInput{}, validation.FieldErrors{"end_time": "must be after start_time"}
	}
	if req.Status == "" {
		req.Status = database.ScheduleActive
	}
	return database.ScheduleInput{
		Title:     req.Title,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Status:    req.Status,
	}, nil
}

func decodeSchedule(w http.ResponseWriter, r *http.Request) (database.ScheduleInput, bool) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return database.ScheduleInput{}, false
	}
	in, err := req.input()
	if err != nil {
		if !respondInvalid(w, err) {
			respondError(w, http.StatusBadRequest, err.Error())
		}
		return database.ScheduleInput{}, false
	}
	return in, true
}

// List returns every schedule
func (h *SchedulesHandler) List(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.store.ListSchedules(r.Context(), false)
	if err != nil {
		h.logger.Error("failed to list schedules", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list schedules")
		return
	}
	respondJSON(w, http.StatusOK, scheduleResponses(schedules))
}

// Get returns one schedule
func (h *SchedulesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid schedule id")
		return
	}
	s, err := h.store.GetSchedule(r.Context(), id)
	if err != nil {
		respondStoreError(w, err, "schedule")
		return
	}
	respondJSON(w, http.StatusOK, scheduleResponse(*s))
}

// Create adds a schedule
func (h *SchedulesHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeSchedule(w, r)
	if !ok {
		return
	}
	s, err := h.store.CreateSchedule(r.Context(), in)
	if err != nil {
		h.logger.Error("failed to create schedule", zap.Error(err))
		respondStoreError(w, err, "schedule")
		return
	}
	respondJSON(w, http.StatusCreated, scheduleResponse(*s))
}

// Update replaces a schedule's fields
func (h *SchedulesHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid schedule id")
		return
	}
	in, ok := decodeSchedule(w, r)
	if !ok {
		return
	}
	s, err := h.store.UpdateSchedule(r.Context(), id, in)
	if err != nil {
		respondStoreError(w, err, "schedule")
		return
	}
	respondJSON(w, http.StatusOK, scheduleResponse(*s))
}

// Toggle flips a schedule between active and inactive
func (h *SchedulesHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid schedule id")
		return
	}
	current, err := h.store.GetSchedule(r.Context(), id)
	if err != nil {
		respondStoreError(w, err, "schedule")
		return
	}
	next := database.ScheduleActive
	if current.IsActive() {
		next = database.ScheduleInactive
	}
	s, err := h.store.SetScheduleStatus(r.Context(), id, next)
	if err != nil {
		respondStoreError(w, err, "schedule")
		return
	}
	respondJSON(w, http.StatusOK, scheduleResponse(*s))
}

// Delete removes a schedule and its attendance events
func (h *SchedulesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid schedule id")
		return
	}
	if err := h.store.DeleteSchedule(r.Context(), id); err != nil {
		respondStoreError(w, err, "schedule")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Attendances lists the events recorded against a schedule
func (h *SchedulesHandler) Attendances(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid schedule id")
		return
	}
	if _, err := h.store.GetSchedule(r.Context(), id); err != nil {
		respondStoreError(w, err, "schedule")
		return
	}
	events, err := h.store.ListScheduleAttendances(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list attendances", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list attendances")
		return
	}
	respondJSON(w, http.StatusOK, attendanceResponses(events))
}
