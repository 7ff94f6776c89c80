package geo

import (
	"context"
	"errors"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/scastiel/parity.coffee/internal/domain"
)

type recordingLocator struct {
	mu      sync.Mutex
	lookups []netip.Addr
	country string
	err     error
}

func (l *recordingLocator) CountryCode(_ context.Context, addr netip.Addr) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lookups = append(l.lookups, addr)
	return l.country, l.err
}

func (l *recordingLocator) calls() []netip.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]netip.Addr(nil), l.lookups...)
}

func TestResolveGeolocatesClientIP(t *testing.T) {
	locator := &recordingLocator{country: "fr"}
	resolver := NewResolver(locator)

	got := resolver.Resolve(context.Background(), RequestContext{ClientIP: "198.51.100.7"})
	if got.Country != "FR" || got.Source != domain.CountrySourceGeolocated {
		t.Fatalf("unexpected resolution %+v", got)
	}
	if !got.Known() {
		t.Fatalf("expected known country")
	}
}

func TestResolveSimulatedCountrySkipsLookup(t *testing.T) {
	locator := &recordingLocator{country: "US"}
	resolver := NewResolver(locator, WithSimulatedCountry("IN"))

	got := resolver.Resolve(context.Background(), RequestContext{ClientIP: "198.51.100.7"})
	if got.Country != "IN" || got.Source != domain.CountrySourceSimulated {
		t.Fatalf("unexpected resolution %+v", got)
	}
	if len(locator.calls()) != 0 {
		t.Fatalf("expected no lookups when simulating")
	}

	// Simulation applies even when no address is known.
	if got := resolver.Resolve(context.Background(), RequestContext{}); got.Country != "IN" {
		t.Fatalf("expected simulated country without ip, got %+v", got)
	}
}

func TestResolveSubstitutesLocalIPForLoopback(t *testing.T) {
	for _, clientIP := range []string{"127.0.0.1", "::1", "::ffff:127.0.0.1"} {
		locator := &recordingLocator{country: "DE"}
		resolver := NewResolver(locator, WithLocalIP("203.0.113.5"))

		got := resolver.Resolve(context.Background(), RequestContext{ClientIP: clientIP})
		if got.Country != "DE" {
			t.Fatalf("%s: unexpected resolution %+v", clientIP, got)
		}
		calls := locator.calls()
		if len(calls) != 1 || calls[0] != netip.MustParseAddr("203.0.113.5") {
			t.Fatalf("%s: expected lookup of local ip, got %v", clientIP, calls)
		}
	}
}

func TestResolveFailsClosed(t *testing.T) {
	cases := []struct {
		name    string
		ip      string
		locator Geolocator
		opts    []Option
	}{
		{name: "missing ip", ip: "", locator: &recordingLocator{country: "FR"}},
		{name: "malformed ip", ip: "not-an-ip", locator: &recordingLocator{country: "FR"}},
		{name: "loopback without local ip", ip: "127.0.0.1", locator: &recordingLocator{country: "FR"}},
		{name: "invalid local ip", ip: "::1", locator: &recordingLocator{country: "FR"}, opts: []Option{WithLocalIP("nope")}},
		{name: "lookup error", ip: "198.51.100.7", locator: &recordingLocator{err: errors.New("corrupt database")}},
		{name: "no country", ip: "198.51.100.7", locator: &recordingLocator{err: ErrNoCountry}},
		{name: "empty code", ip: "198.51.100.7", locator: &recordingLocator{country: " "}},
		{name: "no locator", ip: "198.51.100.7", locator: nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resolver := NewResolver(tc.locator, tc.opts...)
			got := resolver.Resolve(context.Background(), RequestContext{ClientIP: tc.ip})
			if got.Known() || got.Source != domain.CountrySourceUnavailable {
				t.Fatalf("expected unavailable, got %+v", got)
			}
		})
	}
}

func TestResolveTimesOutSlowLookups(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	locator := GeolocatorFunc(func(ctx context.Context, _ netip.Addr) (string, error) {
		select {
		case <-release:
		case <-time.After(time.Second):
		}
		return "FR", nil
	})
	resolver := NewResolver(locator, WithTimeout(10*time.Millisecond))

	start := time.Now()
	got := resolver.Resolve(context.Background(), RequestContext{ClientIP: "198.51.100.7"})
	if got.Known() {
		t.Fatalf("expected timeout to yield unavailable, got %+v", got)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("expected lookup to be abandoned promptly, took %s", elapsed)
	}
}

func TestResolveHonoursCancelledContext(t *testing.T) {
	locator := GeolocatorFunc(func(ctx context.Context, _ netip.Addr) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	resolver := NewResolver(locator)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := resolver.Resolve(ctx, RequestContext{ClientIP: "198.51.100.7"}); got.Known() {
		t.Fatalf("expected unavailable for cancelled context, got %+v", got)
	}
}
