package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/account"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
	"go.uber.org/zap"
)

// UserStore is the user persistence the admin endpoints need.
type UserStore interface {
	database.UserWriter
	database.AttendanceReader
	ListUserBiometrics(ctx context.Context, userID int64) ([]database.BiometricRecord, error)
}

// UsersHandler handles user administration
type UsersHandler struct {
	store  UserStore
	model  ModelManager
	logger *zap.Logger
}

// NewUsersHandler creates a new users handler
func NewUsersHandler(store UserStore, model ModelManager, logger *zap.Logger) *UsersHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UsersHandler{store: store, model: model, logger: logger}
}

// UserResponse is the JSON form of a user; the password hash is never exposed
type UserResponse struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func userResponse(u database.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// UserDetailResponse adds enrollment and attendance data
type UserDetailResponse struct {
	UserResponse
	Photos      int                  `json:"photos"`
	Signatures  int                  `json:"signatures"`
	Attendances []AttendanceResponse `json:"attendances"`
}

// List returns every user
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("failed to list users", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	out := make([]UserResponse, len(users))
	for i, u := range users {
		out[i] = userResponse(u)
	}
	respondJSON(w, http.StatusOK, out)
}

// Get returns one user with enrollment counts and attendance history
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	user, err := h.store.GetUser(r.Context(), id)
	if err != nil {
		respondStoreError(w, err, "user")
		return
	}
	records, err := h.store.ListUserBiometrics(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list biometrics", zap.Int64("user_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	events, err := h.store.ListUserAttendances(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list attendances", zap.Int64("user_id", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	signatures := 0
	for _, rec := range records {
		if rec.Feature != nil {
			signatures++
		}
	}
	respondJSON(w, http.StatusOK, UserDetailResponse{
		UserResponse: userResponse(*user),
		Photos:       len(records),
		Signatures:   signatures,
		Attendances:  attendanceResponses(events),
	})
}

// Update edits names, email and role
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req account.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	update, err := req.UserUpdate()
	if err != nil {
		if !respondInvalid(w, err) {
			respondError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	if err := h.store.UpdateUser(r.Context(), id, update); err != nil {
		respondStoreError(w, err, "user")
		return
	}
	user, err := h.store.GetUser(r.Context(), id)
	if err != nil {
		respondStoreError(w, err, "user")
		return
	}
	respondJSON(w, http.StatusOK, userResponse(*user))
}

// Delete removes a user with their biometrics, images and attendances
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if claims := middleware.GetClaimsFromContext(r.Context()); claims != nil && claims.UserID() == id {
		respondError(w, http.StatusConflict, "cannot delete your own account")
		return
	}
	if err := h.model.RemoveUser(r.Context(), id); err != nil {
		h.logger.Error("failed to delete user", zap.Int64("user_id", id), zap.Error(err))
		respondStoreError(w, err, "user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
