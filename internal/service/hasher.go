package service

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const visitorHashLength = 16

// VisitorHasher derives the daily-rotating pseudonymous visitor identifier.
// The UTC date is part of the digest, so the same client hashes differently
// on different days and cannot be followed across days.
type VisitorHasher struct {
	salt string
	now  func() time.Time
}

// NewVisitorHasher creates a hasher; the salt is mandatory
func NewVisitorHasher(salt string) (*VisitorHasher, error) {
	if strings.TrimSpace(salt) == "" {
		return nil, fmt.Errorf("analytics salt is required for visitor hashing")
	}

	return &VisitorHasher{salt: salt, now: time.Now}, nil
}

// Hash returns the first 16 hex characters of SHA-256(ip|userAgent|date|salt)
func (h *VisitorHasher) Hash(ip, userAgent string) string {
	day := h.now().UTC().Format("2006-01-02")
	sum := sha256.Sum256([]byte(ip + "|" + userAgent + "|" + day + "|" + h.salt))
	return hex.EncodeToString(sum[:])[:visitorHashLength]
}

// HashIP returns a salted, non-rotating hash of the IP used for rate limit keys
func (h *VisitorHasher) HashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip + "|" + h.salt))
	return hex.EncodeToString(sum[:])[:visitorHashLength]
}
