package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/kozaktomas/face-attendance/internal/account"
	"github.com/kozaktomas/face-attendance/internal/biometric"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
	"go.uber.org/zap"
)

// Authenticator checks passwords.
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*database.User, error)
}

// AuthHandler handles registration and the two-step login
type AuthHandler struct {
	enroller Enroller
	verifier FaceVerifier
	accounts Authenticator
	tokens   *middleware.TokenManager
	logger   *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(enroller Enroller, verifier FaceVerifier, accounts Authenticator, tokens *middleware.TokenManager, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{
		enroller: enroller,
		verifier: verifier,
		accounts: accounts,
		tokens:   tokens,
		logger:   logger,
	}
}

// RegisterResponse is returned for a successful enrollment
type RegisterResponse struct {
	UserID int64 `json:"user_id"`
	Photos int   `json:"photos"`
}

// Register enrolls a new user from a multipart form with `photos` uploads
// and `webcam_photos_<i>` captures.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(h.enroller.RequiredPhotos()+1)*2*maxPhotoBytes)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		respondError(w, http.StatusBadRequest, "expected a multipart form")
		return
	}

	reg := account.Registration{
		FirstName: r.FormValue("first_name"),
		LastName:  r.FormValue("last_name"),
		Email:     r.FormValue("email"),
		Password:  r.FormValue("password"),
		Role:      r.FormValue("role"),
	}
	if reg.Role == database.RoleAdmin && !h.callerIsAdmin(r) {
		reg.Role = database.RoleUser
	}

	user, err := reg.NewUser()
	if err != nil {
		if !respondInvalid(w, err) {
			h.logger.Error("failed to prepare registration", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	images, err := enrollmentImages(r.MultipartForm)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	res, err := h.enroller.Enroll(r.Context(), biometric.EnrollmentRequest{User: user, Images: images})
	if err != nil && !res.OK {
		h.logger.Error("enrollment failed", zap.String("email", sanitizeForLog(user.Email)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "enrollment failed")
		return
	}
	if err != nil {
		// The user exists; the model catches up on the next rebuild.
		h.logger.Warn("enrolled without model rebuild", zap.Int64("user_id", res.UserID), zap.Error(err))
	}
	if !res.OK {
		respondRejection(w, res.Reason, map[string]any{
			"required_photos": h.enroller.RequiredPhotos(),
			"received_photos": len(images),
		})
		return
	}

	respondJSON(w, http.StatusCreated, RegisterResponse{UserID: res.UserID, Photos: len(res.Records)})
}

func (h *AuthHandler) callerIsAdmin(r *http.Request) bool {
	claims, err := h.tokens.FromRequest(r)
	return err == nil && claims.Stage == middleware.StageSession && claims.Role == database.RoleAdmin
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the pending token of a password login
type LoginResponse struct {
	PendingToken string `json:"pending_token"`
	ExpiresAt    string `json:"expires_at"`
	Next         string `json:"next"`
}

// Login checks the password and issues a pending token for face verification
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if errors.Is(err, account.ErrInvalidCredentials) {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		h.logger.Error("login failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	token, expires, err := h.tokens.Issue(user.ID, user.Role, middleware.StagePending)
	if err != nil {
		h.logger.Error("failed to issue pending token", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, LoginResponse{
		PendingToken: token,
		ExpiresAt:    expires.UTC().Format(time.RFC3339),
		Next:         "/api/v1/auth/verify",
	})
}

// VerifyResponse carries the session token after a successful face check
type VerifyResponse struct {
	Success   bool    `json:"success"`
	Token     string  `json:"token"`
	ExpiresAt string  `json:"expires_at"`
	Distance  float64 `json:"distance"`
}

// Verify completes the login with a live capture. Requires a pending token.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	photo, _, err := readLivePhoto(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
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

	token, expires, err := h.tokens.Issue(claims.UserID(), claims.Role, middleware.StageSession)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.tokens.SetSessionCookie(w, r, token, expires)

	respondJSON(w, http.StatusOK, VerifyResponse{
		Success:   true,
		Token:     token,
		ExpiresAt: expires.UTC().Format(time.RFC3339),
		Distance:  res.Distance,
	})
}

// verificationDetails exposes the distance of a rejected verification when
// any signature was compared.
func verificationDetails(res biometric.VerificationResult) map[string]any {
	if res.Compared == 0 {
		return nil
	}
	return map[string]any{"distance": res.Distance}
}

// Logout clears the session cookie
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.tokens.ClearSessionCookie(w)
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// StatusResponse represents the auth status response
type StatusResponse struct {
	Authenticated bool   `json:"authenticated"`
	Stage         string `json:"stage,omitempty"`
	UserID        int64  `json:"user_id,omitempty"`
	Role          string `json:"role,omitempty"`
	ExpiresAt     string `json:"expires_at,omitempty"`
}

// Status reports the stage of the caller's token.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	claims, err := h.tokens.FromRequest(r)
	if err != nil {
		respondJSON(w, http.StatusOK, StatusResponse{Authenticated: false})
		return
	}
	respondJSON(w, http.StatusOK, StatusResponse{
		Authenticated: claims.Stage == middleware.StageSession,
		Stage:         claims.Stage,
		UserID:        claims.UserID(),
		Role:          claims.Role,
		ExpiresAt:     claims.ExpiresAt.Time.UTC().Format(time.RFC3339),
	})
}
