package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scastiel/parity.coffee/internal/domain"
)

func TestNewDependencyHealthRepositoryValidatesChecks(t *testing.T) {
	ok := func(context.Context) error { return nil }
	cases := map[string][]DependencyCheck{
		"empty":     nil,
		"no name":   {{Name: " ", Check: ok}},
		"no func":   {{Name: "ppp"}},
		"duplicate": {{Name: "ppp", Check: ok}, {Name: "ppp", Check: ok}},
	}
	for name, checks := range cases {
		if _, err := NewDependencyHealthRepository(checks); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestCollectAggregatesStatuses(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo, err := NewDependencyHealthRepository([]DependencyCheck{
		{Name: "ppp", Check: func(context.Context) error { return nil }},
		{Name: "geoip", Check: func(context.Context) error { return errors.New("database missing") }},
	}, WithDependencyClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected degraded, got %s", report.Status)
	}
	if report.Checks["ppp"].Status != domain.HealthStatusOK {
		t.Fatalf("expected ppp ok, got %+v", report.Checks["ppp"])
	}
	geo := report.Checks["geoip"]
	if geo.Status != domain.HealthStatusDegraded || geo.Error != "database missing" {
		t.Fatalf("unexpected geoip check %+v", geo)
	}
	if !report.GeneratedAt.Equal(fixed) {
		t.Fatalf("expected generated at %s, got %s", fixed, report.GeneratedAt)
	}
}

func TestCollectMarksTimeoutsAsErrors(t *testing.T) {
	repo, err := NewDependencyHealthRepository([]DependencyCheck{
		{Name: "ppp", Timeout: 10 * time.Millisecond, Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
		{Name: "geoip", Check: func(context.Context) error { return errors.New("degraded") }},
	})
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusError {
		t.Fatalf("expected error status, got %s", report.Status)
	}
	if detail := report.Checks["ppp"].Detail; detail != "timeout" {
		t.Fatalf("expected timeout detail, got %s", detail)
	}
}

func TestCollectFlagsChecksIgnoringDeadline(t *testing.T) {
	repo, err := NewDependencyHealthRepository([]DependencyCheck{
		{Name: "slow", Check: func(context.Context) error {
			time.Sleep(30 * time.Millisecond)
			return nil
		}},
	}, WithDependencyTimeout(5*time.Millisecond))
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Checks["slow"].Status != domain.HealthStatusError {
		t.Fatalf("expected late check to be an error, got %+v", report.Checks["slow"])
	}
}
