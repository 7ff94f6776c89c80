package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/scastiel/parity.coffee/internal/domain"
	"github.com/scastiel/parity.coffee/internal/services"
)

type stubSystemService struct {
	report services.SystemHealthReport
	err    error
}

func (s *stubSystemService) HealthReport(context.Context) (services.SystemHealthReport, error) {
	return s.report, s.err
}

func TestHealthHandlersHealthz(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(30 * time.Second)
	handlers := NewHealthHandlers(
		WithHealthBuildInfo(services.BuildInfo{
			Version:     "1.0.0",
			CommitSHA:   "abc123",
			Environment: "prod",
			StartedAt:   start,
		}),
		WithHealthClock(func() time.Time { return now }),
	)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	handlers.Healthz(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["status"] != domain.HealthStatusOK {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
	if body["version"] != "1.0.0" || body["commitSha"] != "abc123" || body["environment"] != "prod" {
		t.Fatalf("unexpected build info %v", body)
	}
	if body["uptime"] != "30s" {
		t.Fatalf("expected uptime 30s, got %v", body["uptime"])
	}
}

func TestHealthHandlersReadyz(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 1, 0, 0, time.UTC)
	cases := []struct {
		name       string
		status     string
		checks     map[string]domain.SystemHealthCheck
		wantCode   int
		wantDetail int
	}{
		{
			name:   "ok",
			status: domain.HealthStatusOK,
			checks: map[string]domain.SystemHealthCheck{
				"ppp":   {Status: domain.HealthStatusOK, Latency: 10 * time.Millisecond, CheckedAt: now},
				"geoip": {Status: domain.HealthStatusOK, CheckedAt: now},
			},
			wantCode: http.StatusOK,
		},
		{
			name:   "degraded stays ready",
			status: domain.HealthStatusDegraded,
			checks: map[string]domain.SystemHealthCheck{
				"ppp": {Status: domain.HealthStatusDegraded, Error: "status 500", CheckedAt: now},
			},
			wantCode:   http.StatusOK,
			wantDetail: 1,
		},
		{
			name:   "error",
			status: domain.HealthStatusError,
			checks: map[string]domain.SystemHealthCheck{
				"ppp":   {Status: domain.HealthStatusError, Error: "deadline exceeded", CheckedAt: now},
				"geoip": {Status: domain.HealthStatusDegraded, CheckedAt: now},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantDetail: 2,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubSystemService{report: services.SystemHealthReport{
				Status:      tc.status,
				Version:     "1.0.0",
				Uptime:      time.Minute,
				GeneratedAt: now,
				Checks:      tc.checks,
			}}
			handlers := NewHealthHandlers(WithHealthSystemService(svc), WithHealthClock(func() time.Time { return now }))

			rr := httptest.NewRecorder()
			handlers.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rr.Code)
			}
			var body struct {
				Status string `json:"status"`
				Checks map[string]struct {
					Status string `json:"status"`
				} `json:"checks"`
				Details []string `json:"details"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to parse response: %v", err)
			}
			if body.Status != tc.status {
				t.Fatalf("expected status %s, got %s", tc.status, body.Status)
			}
			if len(body.Checks) != len(tc.checks) {
				t.Fatalf("expected %d checks, got %v", len(tc.checks), body.Checks)
			}
			if len(body.Details) != tc.wantDetail {
				t.Fatalf("expected %d details, got %v", tc.wantDetail, body.Details)
			}
		})
	}
}

func TestHealthHandlersReadyzServiceError(t *testing.T) {
	handlers := NewHealthHandlers(WithHealthSystemService(&stubSystemService{err: errors.New("boom")}))

	rr := httptest.NewRecorder()
	handlers.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
