package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProbes(t *testing.T) {
	s := New(0, "v1.2.3")
	h := s.Handler()

	tests := []struct {
		name       string
		ready      bool
		path       string
		wantCode   int
		wantStatus string
	}{
		{"liveness before ready", false, "/healthz", http.StatusOK, "ok"},
		{"readiness before ready", false, "/readyz", http.StatusServiceUnavailable, "not_ready"},
		{"readiness when ready", true, "/readyz", http.StatusOK, "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.SetReady(tt.ready)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			var body status
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
		})
	}
}

func TestLivenessReportsVersion(t *testing.T) {
	rec := httptest.NewRecorder()
	New(0, "v1.2.3").Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var body status
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Version != "v1.2.3" || body.Uptime == "" {
		t.Errorf("body = %+v", body)
	}
}
