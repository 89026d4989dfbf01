package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"license-authority/internal/domain"
	"license-authority/internal/domain/model"
	"license-authority/internal/domain/ports/repository"
	"license-authority/internal/infra/metrics"
)

// Ensure activationEventRepo implements repository.ActivationEventRepository
var _ repository.ActivationEventRepository = (*activationEventRepo)(nil)

type activationEventRepo struct {
	pool *pgxpool.Pool
}

func NewActivationEventRepo(pool *pgxpool.Pool) *activationEventRepo {
	return &activationEventRepo{pool: pool}
}

func (r *activationEventRepo) Append(ctx context.Context, tx repository.Tx, ev *model.ActivationEvent) error {
	const q = `
INSERT INTO activation_events (id, license_id, fingerprint, outcome, occurred_at)
VALUES ($1,$2,$3,$4,$5);`

	_, err := execSQL(ctx, r.pool, tx, q, ev.ID, ev.LicenseID, ev.Fingerprint, string(ev.Outcome), ev.OccurredAt)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidExecContext):
			return err
		default:
			metrics.IncDBQueryError("activation_events.append")
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *activationEventRepo) ListByLicense(ctx context.Context, tx repository.Tx, licenseID string) ([]*model.ActivationEvent, error) {
	const q = `
SELECT id, license_id, fingerprint, outcome, occurred_at
  FROM activation_events
 WHERE license_id=$1
 ORDER BY id ASC;`

	rows, err := queryRows(ctx, r.pool, tx, q, licenseID)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, domain.ErrNotFound
		case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidExecContext):
			return nil, err
		default:
			metrics.IncDBQueryError("activation_events.list")
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.ActivationEvent
	for rows.Next() {
		var ev model.ActivationEvent
		var outcome string
		if err := rows.Scan(&ev.ID, &ev.LicenseID, &ev.Fingerprint, &outcome, &ev.OccurredAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		ev.Outcome = model.ActivationOutcome(outcome)
		out = append(out, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
