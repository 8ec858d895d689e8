package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/biometric"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/database/mock"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

// fakeEngine records calls and returns canned results.
type fakeEngine struct {
	required int

	enrollResult biometric.EnrollmentResult
	enrollErr    error
	enrolled     []biometric.EnrollmentRequest

	verifyResult biometric.VerificationResult
	verifyErr    error
	verifiedFor  []int64

	status     biometric.ModelStatus
	stats      biometric.RebuildStats
	rebuildErr error
	removed    []int64
	removeErr  error
}

func (f *fakeEngine) Enroll(_ context.Context, req biometric.EnrollmentRequest) (biometric.EnrollmentResult, error) {
	f.enrolled = append(f.enrolled, req)
	return f.enrollResult, f.enrollErr
}

func (f *fakeEngine) RequiredPhotos() int {
	if f.required == 0 {
		return 5
	}
	return f.required
}

func (f *fakeEngine) VerifyBytes(_ context.Context, _ []byte, uid int64) (biometric.VerificationResult, error) {
	f.verifiedFor = append(f.verifiedFor, uid)
	return f.verifyResult, f.verifyErr
}

func (f *fakeEngine) Status() biometric.ModelStatus { return f.status }

func (f *fakeEngine) Rebuild(context.Context) (biometric.RebuildStats, error) {
	return f.stats, f.rebuildErr
}

func (f *fakeEngine) RemoveUser(_ context.Context, id int64) error {
	f.removed = append(f.removed, id)
	return f.removeErr
}

func newTestTokens(t *testing.T) *middleware.TokenManager {
	t.Helper()
	tm, err := middleware.NewTokenManager("test-secret", 5*time.Minute, 12*time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	return tm
}

// requestWithClaims creates a request carrying token claims in its context
func requestWithClaims(r *http.Request, userID int64, role, stage string) *http.Request {
	claims := &middleware.Claims{Stage: stage, Role: role}
	claims.Subject = strconv.FormatInt(userID, 10)
	return r.WithContext(middleware.SetClaimsInContext(r.Context(), claims))
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// jsonRequest builds a request with a JSON body
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// pngBytes encodes a small image
func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func dataURL(data []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
}

// multipartRequest builds a multipart request from form fields and files
// keyed by field name; every file is named after its index.
func multipartRequest(t *testing.T, path string, fields map[string]string, files map[string][]namedFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for field, list := range files {
		for _, f := range list {
			part, err := w.CreateFormFile(field, f.name)
			if err != nil {
				t.Fatal(err)
			}
			part.Write(f.data)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

type namedFile struct {
	name string
	data []byte
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%v'", expectedMessage, result["error"])
	}
}

func newAdmin(store *mock.Store) *database.User {
	return store.AddUser(database.NewUser{FirstName: "Grace", LastName: "Hopper", Email: "grace@example.com", Role: database.RoleAdmin})
}

func itoa64(n int64) string {
	return strconv.FormatInt(n, 10)
}

func bytesContain(b []byte, s string) bool {
	return bytes.Contains(b, []byte(s))
}
