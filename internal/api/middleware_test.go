package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dgnsrekt/riser-voice/internal/config"
	"github.com/dgnsrekt/riser-voice/internal/logging"
)

func testServer(cfg *config.Config) *Server {
	return New(cfg, logging.New("error", "text"), Deps{})
}

func TestWithAuth(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		header     string
		wantCalled bool
		wantErr    string
	}{
		{"missing header", "secret-token", "", false, "missing authorization header"},
		{"basic scheme", "secret-token", "Basic dXNlcjpwYXNz", false, "invalid authorization format"},
		{"no separator", "secret-token", "Bearersecret-token", false, "invalid authorization format"},
		{"wrong token", "secret-token", "Bearer wrong-token", false, "invalid token"},
		{"valid token", "secret-token", "Bearer secret-token", true, ""},
		{"lowercase scheme", "secret-token", "bearer secret-token", true, ""},
		{"auth disabled", "", "", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.BearerToken = tt.configured
			srv := testServer(cfg)

			called := false
			handler := srv.withAuth(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest("GET", "/test", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler(w, req)

			if called != tt.wantCalled {
				t.Fatalf("handler called = %v, want %v", called, tt.wantCalled)
			}
			if tt.wantCalled {
				if w.Code != http.StatusOK {
					t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
				}
				return
			}

			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if resp.Error != tt.wantErr {
				t.Errorf("expected error %q, got %q", tt.wantErr, resp.Error)
			}
		})
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := testServer(testConfig())

	routes := []struct{ method, path string }{
		{"GET", "/v1/voices"},
		{"POST", "/v1/speak"},
		{"POST", "/v1/interrupt"},
		{"POST", "/v1/synthesize"},
		{"POST", "/v1/transcode"},
		{"GET", "/v1/history"},
		{"DELETE", "/v1/history"},
		{"DELETE", "/v1/history/abc"},
		{"GET", "/v1/history/abc/audio"},
		{"POST", "/v1/history/abc/replay"},
		{"GET", "/metrics"},
	}

	for _, r := range routes {
		req := httptest.NewRequest(r.method, r.path, nil)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without token: expected %d, got %d", r.method, r.path, http.StatusUnauthorized, w.Code)
		}
	}
}

func TestWithMetrics(t *testing.T) {
	srv := testServer(testConfig())

	handler := srv.withMetrics("GET /x", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok")) // implicit 200
	})
	teapot := srv.withMetrics("GET /tea", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK) // superfluous, ignored
	})

	handler(httptest.NewRecorder(), httptest.NewRequest("GET", "/x", nil))
	handler(httptest.NewRecorder(), httptest.NewRequest("GET", "/x", nil))
	teapot(httptest.NewRecorder(), httptest.NewRequest("GET", "/tea", nil))

	if got := testutil.ToFloat64(srv.metrics.HTTPRequests.WithLabelValues("GET /x", "200")); got != 2 {
		t.Errorf("GET /x 200 = %v, want 2", got)
	}
	if got := testutil.ToFloat64(srv.metrics.HTTPRequests.WithLabelValues("GET /tea", "418")); got != 1 {
		t.Errorf("GET /tea 418 = %v, want 1", got)
	}
}
