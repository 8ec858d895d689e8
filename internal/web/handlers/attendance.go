package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
	"go.uber.org/zap"
)

// AttendanceRecorder appends attendance events.
type AttendanceRecorder interface {
	Record(ctx context.Context, userID, scheduleID int64) (*database.AttendanceEvent, error)
}

// AttendanceStore is the read side the attendance endpoints need.
type AttendanceStore interface {
	database.ScheduleReader
	database.AttendanceReader
}

// AttendanceHandler handles attendance endpoints for signed-in users
type AttendanceHandler struct {
	verifier FaceVerifier
	recorder AttendanceRecorder
	store    AttendanceStore
	logger   *zap.Logger
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(verifier FaceVerifier, recorder AttendanceRecorder, store AttendanceStore, logger *zap.Logger) *AttendanceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceHandler{verifier: verifier, recorder: recorder, store: store, logger: logger}
}

// AttendanceResponse is the JSON form of an attendance event
type AttendanceResponse struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	ScheduleID int64     `json:"schedule_id"`
	AttendedAt time.Time `json:"attended_at"`
	Status     string    `json:"status"`
}

func attendanceResponse(e database.AttendanceEvent) AttendanceResponse {
	return AttendanceResponse{
		ID:         e.ID,
		UserID:     e.UserID,
		ScheduleID: e.ScheduleID,
		AttendedAt: e.AttendedAt,
		Status:     e.Status,
	}
}

func attendanceResponses(events []database.AttendanceEvent) []AttendanceResponse {
	out := make([]AttendanceResponse, len(events))
	for i, e := range events {
		out[i] = attendanceResponse(e)
	}
	return out
}

// Schedules lists the active schedules
func (h *AttendanceHandler) Schedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.store.ListSchedules(r.Context(), true)
	if err != nil {
		h.logger.Error("failed to list schedules", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list schedules")
		return
	}
	respondJSON(w, http.StatusOK, scheduleResponses(schedules))
}

// Mark verifies the caller's face and records attendance for a schedule
func (h *AttendanceHandler) Mark(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	photo, req, err := readLivePhoto(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ScheduleID <= 0 {
		respondError(w, http.StatusBadRequest, "schedule_id is required")
		return
	}

	res, err := h.verifier.VerifyBytes(r.Context(), photo, claims.UserID())
	if err != nil {
		h.logger.Error("verification failed", zap.Int64("user_id", claims.UserID()), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "verification failed")
		return
	}
	if !res.Accept {
		respondRejection(w, res.Reason, verificationDetails(res))
		return
	}

	event, err := h.recorder.Record(r.Context(), claims.UserID(), req.ScheduleID)
	switch {
	case errors.Is(err, attendance.ErrTooEarly):
		respondError(w, http.StatusUnprocessableEntity, "too_early")
		return
	case errors.Is(err, attendance.ErrScheduleInactive):
		respondError(w, http.StatusConflict, "schedule_inactive")
		return
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, "schedule not found")
		return
	case err != nil:
		h.logger.Error("failed to record attendance", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to record attendance")
		return
	}

	respondJSON(w, http.StatusCreated, attendanceResponse(*event))
}

// History lists the caller's attendance events
func (h *AttendanceHandler) History(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	events, err := h.store.ListUserAttendances(r.Context(), claims.UserID())
	if err != nil {
		h.logger.Error("failed to list attendances", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list attendances")
		return
	}
	respondJSON(w, http.StatusOK, attendanceResponses(events))
}
