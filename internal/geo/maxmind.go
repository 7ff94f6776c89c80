package geo

import (
	"context"
	"fmt"
	"net"
	"net/netip"

	"github.com/oschwald/geoip2-golang"
)

// MaxMind looks countries up in a GeoLite2/GeoIP2 Country database.
type MaxMind struct {
	reader *geoip2.Reader
}

// OpenMaxMind memory-maps the database at path.
func OpenMaxMind(path string) (*MaxMind, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geo: open database %s: %w", path, err)
	}
	return &MaxMind{reader: reader}, nil
}

// CountryCode implements Geolocator. Addresses missing from the database yield ErrNoCountry.
func (m *MaxMind) CountryCode(ctx context.Context, addr netip.Addr) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	record, err := m.reader.Country(net.IP(addr.AsSlice()))
	if err != nil {
		return "", fmt.Errorf("geo: lookup %s: %w", addr, err)
	}
	if record.Country.IsoCode == "" {
		return "", ErrNoCountry
	}
	return record.Country.IsoCode, nil
}

// DatabaseType reports the loaded database edition, e.g. "GeoLite2-Country".
func (m *MaxMind) DatabaseType() string {
	return m.reader.Metadata().DatabaseType
}

// Close unmaps the database.
func (m *MaxMind) Close() error {
	return m.reader.Close()
}
