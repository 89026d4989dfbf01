package repository

import (
	"context"

	"license-authority/internal/domain/model"
)

// ActivationEventRepository is the port for the append-only activation
// audit log. Writes are best-effort: callers may drop failures after
// logging them.
type ActivationEventRepository interface {
	Append(ctx context.Context, tx Tx, ev *model.ActivationEvent) error

	// ListByLicense returns events for one license, oldest first.
	ListByLicense(ctx context.Context, tx Tx, licenseID string) ([]*model.ActivationEvent, error)
}
