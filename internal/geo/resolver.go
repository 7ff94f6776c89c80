package geo

import (
	"context"
	"errors"
	"net/netip"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scastiel/parity.coffee/internal/domain"
)

const defaultLookupTimeout = 500 * time.Millisecond

var (
	// ErrNoCountry is returned by a Geolocator that found no country for an address.
	ErrNoCountry = errors.New("geo: no country for address")
	// ErrLocatorUnavailable marks a resolver constructed without a Geolocator.
	ErrLocatorUnavailable = errors.New("geo: geolocator unavailable")
)

// RequestContext carries the request attributes needed to determine a client's country.
type RequestContext struct {
	ClientIP string
}

// Resolution is the outcome of country resolution. Country is empty when Source is unavailable.
type Resolution struct {
	Country string
	Source  domain.CountrySource
}

// Known reports whether a country was determined.
func (r Resolution) Known() bool {
	return r.Country != ""
}

// Geolocator maps an IP address to an ISO 3166-1 alpha-2 country code.
type Geolocator interface {
	CountryCode(ctx context.Context, addr netip.Addr) (string, error)
}

// GeolocatorFunc adapts a function to Geolocator.
type GeolocatorFunc func(context.Context, netip.Addr) (string, error)

// CountryCode calls f.
func (f GeolocatorFunc) CountryCode(ctx context.Context, addr netip.Addr) (string, error) {
	return f(ctx, addr)
}

// Option customises a Resolver.
type Option func(*Resolver)

// WithSimulatedCountry forces every resolution to the given country without a lookup.
func WithSimulatedCountry(country string) Option {
	return func(r *Resolver) {
		r.simulated = strings.ToUpper(strings.TrimSpace(country))
	}
}

// WithLocalIP sets the address substituted for loopback clients during local development.
func WithLocalIP(ip string) Option {
	return func(r *Resolver) {
		r.localIP = strings.TrimSpace(ip)
	}
}

// WithTimeout bounds each geolocation lookup.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Resolver) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// WithLogger sets the logger used for lookup failures.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Resolver determines the client's country for a request. It never returns an error: any failure
// yields an unavailable resolution so callers can fall back to undiscounted pricing.
type Resolver struct {
	locator   Geolocator
	simulated string
	localIP   string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewResolver constructs a Resolver. locator may be nil when no geolocation database is
// installed, in which case only the simulated country can resolve.
func NewResolver(locator Geolocator, opts ...Option) *Resolver {
	r := &Resolver{
		locator: locator,
		timeout: defaultLookupTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the client's country.
func (r *Resolver) Resolve(ctx context.Context, req RequestContext) Resolution {
	if r.simulated != "" {
		return Resolution{Country: r.simulated, Source: domain.CountrySourceSimulated}
	}

	addr, ok := r.lookupAddr(req.ClientIP)
	if !ok {
		return unavailable()
	}

	country, err := r.lookup(ctx, addr)
	if err != nil {
		if !errors.Is(err, ErrNoCountry) {
			r.logger.Warn("geo: lookup failed", zap.String("ip", addr.String()), zap.Error(err))
		}
		return unavailable()
	}
	return Resolution{Country: country, Source: domain.CountrySourceGeolocated}
}

func (r *Resolver) lookupAddr(raw string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil {
		return netip.Addr{}, false
	}
	addr = addr.Unmap()
	if !addr.IsLoopback() {
		return addr, true
	}
	if r.localIP == "" {
		return netip.Addr{}, false
	}
	local, err := netip.ParseAddr(r.localIP)
	if err != nil {
		r.logger.Warn("geo: invalid local ip", zap.String("local_ip", r.localIP))
		return netip.Addr{}, false
	}
	return local.Unmap(), true
}

type lookupResult struct {
	country string
	err     error
}

func (r *Resolver) lookup(ctx context.Context, addr netip.Addr) (string, error) {
	if r.locator == nil {
		return "", ErrLocatorUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan lookupResult, 1)
	go func() {
		country, err := r.locator.CountryCode(ctx, addr)
		done <- lookupResult{country: country, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		if res.err != nil {
			return "", res.err
		}
		country := strings.ToUpper(strings.TrimSpace(res.country))
		if country == "" {
			return "", ErrNoCountry
		}
		return country, nil
	}
}

func unavailable() Resolution {
	return Resolution{Source: domain.CountrySourceUnavailable}
}
