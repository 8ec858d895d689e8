package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/account"
	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/biometric"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/metrics"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

type stubEngine struct{}

func (stubEngine) Enroll(context.Context, biometric.EnrollmentRequest) (biometric.EnrollmentResult, error) {
	return biometric.EnrollmentResult{}, nil
}
func (stubEngine) RequiredPhotos() int { return 5 }
func (stubEngine) VerifyBytes(context.Context, []byte, int64) (biometric.VerificationResult, error) {
	return biometric.VerificationResult{}, nil
}
func (stubEngine) Status() biometric.ModelStatus { return biometric.ModelStatus{Initialized: true} }
func (stubEngine) Rebuild(context.Context) (biometric.RebuildStats, error) {
	return biometric.RebuildStats{}, nil
}
func (stubEngine) RemoveUser(context.Context, int64) error { return nil }

func newTestServer(t *testing.T, withMetrics bool) (*Server, *middleware.TokenManager) {
	t.Helper()
	store := mock.NewStore()
	tokens, err := middleware.NewTokenManager("test-secret", 5*time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	deps := Dependencies{
		Engine:   stubEngine{},
		Store:    store,
		Accounts: account.NewService(store, nil),
		Recorder: attendance.NewRecorder(store, time.UTC),
		Tokens:   tokens,
	}
	if withMetrics {
		m, err := metrics.New(prometheus.NewRegistry())
		if err != nil {
			t.Fatalf("metrics.New: %v", err)
		}
		deps.Metrics = m
	}
	srv, err := NewServer(&config.Config{}, deps)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv, tokens
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	if _, err := NewServer(&config.Config{}, Dependencies{}); err == nil {
		t.Error("expected error for missing dependencies")
	}
}

func TestRoutes_Access(t *testing.T) {
	srv, tokens := newTestServer(t, false)
	token := func(role, stage string) string {
		tok, _, err := tokens.Issue(7, role, stage)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		return tok
	}

	tests := []struct {
		name       string
		method     string
		path       string
		token      string
		wantStatus int
	}{
		{"health", "GET", "/api/v1/health", "", http.StatusOK},
		{"status without token", "GET", "/api/v1/auth/status", "", http.StatusOK},
		{"schedules without token", "GET", "/api/v1/schedules", "", http.StatusUnauthorized},
		{"schedules with pending token", "GET", "/api/v1/schedules", token(database.RoleUser, middleware.StagePending), http.StatusUnauthorized},
		{"schedules with session", "GET", "/api/v1/schedules", token(database.RoleUser, middleware.StageSession), http.StatusOK},
		{"verify with session token", "POST", "/api/v1/auth/verify", token(database.RoleUser, middleware.StageSession), http.StatusUnauthorized},
		{"admin as user", "GET", "/api/v1/admin/users", token(database.RoleUser, middleware.StageSession), http.StatusForbidden},
		{"admin as admin", "GET", "/api/v1/admin/users", token(database.RoleAdmin, middleware.StageSession), http.StatusOK},
		{"model as admin", "GET", "/api/v1/admin/model", token(database.RoleAdmin, middleware.StageSession), http.StatusOK},
		{"metrics disabled", "GET", "/metrics", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestRoutes_Metrics(t *testing.T) {
	srv, _ := newTestServer(t, true)

	srv.Router().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/health", nil))

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `face_attendance_http_requests_total{code="200",method="GET"}`) {
		t.Errorf("request counter missing from exposition")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}
