package model

import (
	"time"

	"license-authority/internal/domain"
)

type Tier string

const (
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// ValidTier reports whether t is a recognized plan tier.
func ValidTier(t Tier) bool {
	switch t {
	case TierPro, TierEnterprise:
		return true
	}
	return false
}

// LicenseRecord is the server-authoritative state of one issued license.
// The signed token is the source of truth for cryptographic validity; the
// record is the source of truth for mutable state (devices, revocation).
type LicenseRecord struct {
	ID           string // UUID, also the token's jti
	SignedToken  string
	Subject      string
	Tier         Tier
	DeviceLimit  int
	ExpiresAt    time.Time
	BoundDevices []string // normalized fingerprints, insertion order = activation order
	Revoked      bool     // monotonic false -> true
	CreatedAt    time.Time
	Version      int64 // optimistic-concurrency counter, bumped on every device update
}

// NewLicenseRecord creates a fresh record for a just-signed license.
func NewLicenseRecord(id, signedToken, subject string, tier Tier, deviceLimit int, issuedAt, expiresAt time.Time) (*LicenseRecord, error) {
	if id == "" || signedToken == "" || subject == "" {
		return nil, domain.ErrInvalidArgument
	}
	if !ValidTier(tier) || deviceLimit < 1 || !expiresAt.After(issuedAt) {
		return nil, domain.ErrInvalidArgument
	}
	return &LicenseRecord{
		ID:           id,
		SignedToken:  signedToken,
		Subject:      subject,
		Tier:         tier,
		DeviceLimit:  deviceLimit,
		ExpiresAt:    expiresAt,
		BoundDevices: []string{},
		Revoked:      false,
		CreatedAt:    issuedAt,
		Version:      0,
	}, nil
}

// HasDevice reports whether fp is already bound to the license.
func (r *LicenseRecord) HasDevice(fp string) bool {
	for _, d := range r.BoundDevices {
		if d == fp {
			return true
		}
	}
	return false
}

// Expired reports whether the record's expiry has passed at t.
// The boundary is inclusive: a license expiring exactly at t is expired.
func (r *LicenseRecord) Expired(t time.Time) bool {
	return !r.ExpiresAt.After(t)
}
