package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/biometric"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/validation"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// maxPhotoBytes caps a single uploaded or captured image.
const maxPhotoBytes = 8 << 20

// Enroller registers identities with their enrollment photos.
type Enroller interface {
	Enroll(ctx context.Context, req biometric.EnrollmentRequest) (biometric.EnrollmentResult, error)
	RequiredPhotos() int
}

// FaceVerifier checks a live capture against a claimed user.
type FaceVerifier interface {
	VerifyBytes(ctx context.Context, data []byte, claimedUserID int64) (biometric.VerificationResult, error)
}

// ModelManager exposes model administration.
type ModelManager interface {
	Status() biometric.ModelStatus
	Rebuild(ctx context.Context) (biometric.RebuildStats, error)
	RemoveUser(ctx context.Context, userID int64) error
}

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondInvalid reports payload validation failures per field.
func respondInvalid(w http.ResponseWriter, err error) bool {
	var fe validation.FieldErrors
	if !errors.As(err, &fe) {
		return false
	}
	respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"error":  "validation failed",
		"fields": fe,
	})
	return true
}

// rejectionStatus maps a biometric rejection to an HTTP status.
func rejectionStatus(reason error) int {
	switch {
	case errors.Is(reason, biometric.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(reason, biometric.ErrModelNotInitialized):
		return http.StatusServiceUnavailable
	case errors.Is(reason, biometric.ErrNoMatch),
		errors.Is(reason, biometric.ErrImpostorMatch),
		errors.Is(reason, biometric.ErrNoEnrollmentData):
		return http.StatusUnauthorized
	default:
		return http.StatusUnprocessableEntity
	}
}

// respondRejection renders a biometric rejection with its stable code.
func respondRejection(w http.ResponseWriter, reason error, extra map[string]any) {
	body := map[string]any{
		"error":  biometric.Reason(reason),
		"reason": reason.Error(),
	}
	for k, v := range extra {
		body[k] = v
	}
	respondJSON(w, rejectionStatus(reason), body)
}

// respondStoreError maps repository errors.
func respondStoreError(w http.ResponseWriter, err error, what string) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		respondError(w, http.StatusNotFound, what+" not found")
	case errors.Is(err, database.ErrDuplicate):
		respondError(w, http.StatusConflict, what+" already exists")
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
