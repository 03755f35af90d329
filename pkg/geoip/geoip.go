package geoip

import (
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"
)

// Resolver maps a client IP to an ISO 3166-1 alpha-2 country code.
// An empty string means the country is unknown.
type Resolver interface {
	Country(ip string) string
	Close() error
}

// New opens the GeoLite2/GeoIP2 Country database at path. An empty path
// returns a resolver that never resolves anything.
func New(path string, log *zap.Logger) (Resolver, error) {
	if log == nil {
		log = zap.NewNop()
	}

	path = strings.TrimSpace(path)
	if path == "" {
		log.Info("GeoIP database not configured, country resolution disabled")
		return Noop{}, nil
	}

	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open GeoIP database: %w", err)
	}

	log.Info("GeoIP database loaded", zap.String("path", path))
	return &maxmindResolver{reader: reader, log: log}, nil
}

type maxmindResolver struct {
	mu     sync.RWMutex
	reader *geoip2.Reader
	log    *zap.Logger
}

func (r *maxmindResolver) Country(ip string) string {
	parsed := parseLookupIP(ip)
	if parsed == nil {
		return ""
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.reader == nil {
		return ""
	}

	record, err := r.reader.Country(parsed)
	if err != nil {
		r.log.Debug("GeoIP lookup failed", zap.Error(err))
		return ""
	}

	return record.Country.IsoCode
}

func (r *maxmindResolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.reader == nil {
		return nil
	}
	err := r.reader.Close()
	r.reader = nil
	return err
}

// Noop never resolves a country
type Noop struct{}

func (Noop) Country(string) string { return "" }

func (Noop) Close() error { return nil }

// parseLookupIP returns nil for values that cannot resolve to a country
func parseLookupIP(ip string) net.IP {
	ip = strings.TrimSpace(ip)
	if ip == "" || ip == "unknown" {
		return nil
	}

	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() {
		return nil
	}
	return parsed
}

// NormalizeCountryCode validates a two-letter country header value such as
// CF-IPCountry. Cloudflare uses XX for unknown and T1 for Tor.
func NormalizeCountryCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 2 || code == "XX" || code == "T1" {
		return ""
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return ""
		}
	}
	return code
}
