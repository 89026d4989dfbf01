package repository

import (
	"context"
	"time"

	"license-authority/internal/domain/model"
)

// LicenseRepository is the port for durable license records.
type LicenseRepository interface {
	// FindByID returns the record or domain.ErrNotFound.
	FindByID(ctx context.Context, tx Tx, id string) (*model.LicenseRecord, error)

	// Insert atomically creates a new record. Returns domain.ErrAlreadyExists
	// if a record with the same id is already present.
	Insert(ctx context.Context, tx Tx, rec *model.LicenseRecord) error

	// CompareAndUpdateDevices replaces the bound-device list if and only if
	// the stored version still equals expectedVersion, bumping the version.
	// Returns domain.ErrVersionConflict when another writer got there first.
	CompareAndUpdateDevices(ctx context.Context, tx Tx, id string, expectedVersion int64, devices []string) error

	// SetRevoked durably marks the license revoked. Returns
	// domain.ErrNotFound or domain.ErrAlreadyRevoked as appropriate.
	SetRevoked(ctx context.Context, tx Tx, id string) error

	// FindActiveBySubjectAndTier returns a non-revoked, non-expired record
	// for the subject/tier pair, or domain.ErrNotFound. Used by the
	// one-active-license-per-subject issuance policy.
	FindActiveBySubjectAndTier(ctx context.Context, tx Tx, subject string, tier model.Tier) (*model.LicenseRecord, error)

	// FindExpiring lists non-revoked records expiring within the window,
	// soonest first.
	FindExpiring(ctx context.Context, tx Tx, within time.Duration) ([]*model.LicenseRecord, error)
}
