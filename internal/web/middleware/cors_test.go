package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://attendance.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	tests := []struct {
		name          string
		method        string
		origin        string
		requestMethod string
		wantOrigin    string
		wantStatus    int
	}{
		{"allowed origin", "GET", "https://attendance.example.com", "", "https://attendance.example.com", http.StatusTeapot},
		{"localhost", "GET", "http://localhost:5173", "", "http://localhost:5173", http.StatusTeapot},
		{"loopback ip", "GET", "http://127.0.0.1:3000", "", "http://127.0.0.1:3000", http.StatusTeapot},
		{"localhost lookalike", "GET", "http://localhost.evil.com", "", "", http.StatusTeapot},
		{"foreign origin", "GET", "https://evil.com", "", "", http.StatusTeapot},
		{"preflight", "OPTIONS", "https://attendance.example.com", "POST", "https://attendance.example.com", http.StatusNoContent},
		{"foreign preflight", "OPTIONS", "https://evil.com", "POST", "", http.StatusTeapot},
		{"plain options", "OPTIONS", "https://attendance.example.com", "", "https://attendance.example.com", http.StatusTeapot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/health", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.requestMethod != "" {
				req.Header.Set("Access-Control-Request-Method", tt.requestMethod)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}
