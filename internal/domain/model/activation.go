package model

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

type ActivationOutcome string

const (
	ActivationBound         ActivationOutcome = "bound"
	ActivationAlreadyBound  ActivationOutcome = "already_bound"
	ActivationLimitExceeded ActivationOutcome = "limit_exceeded"
)

// ActivationEvent is one append-only audit entry for a device admission
// attempt. Events are never mutated or deleted.
type ActivationEvent struct {
	ID          string // ULID, lexicographically time-ordered
	LicenseID   string
	Fingerprint string
	Outcome     ActivationOutcome
	OccurredAt  time.Time
}

// NewActivationEvent stamps a new audit event with a fresh ULID.
func NewActivationEvent(licenseID, fingerprint string, outcome ActivationOutcome, at time.Time) *ActivationEvent {
	return &ActivationEvent{
		ID:          ulid.MustNew(ulid.Timestamp(at), rand.Reader).String(),
		LicenseID:   licenseID,
		Fingerprint: fingerprint,
		Outcome:     outcome,
		OccurredAt:  at,
	}
}
