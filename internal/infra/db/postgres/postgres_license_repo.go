package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"license-authority/internal/domain"
	"license-authority/internal/domain/model"
	"license-authority/internal/domain/ports/repository"
	"license-authority/internal/infra/metrics"
)

// Ensure licenseRepo implements repository.LicenseRepository
var _ repository.LicenseRepository = (*licenseRepo)(nil)

type licenseRepo struct {
	pool *pgxpool.Pool
}

func NewLicenseRepo(pool *pgxpool.Pool) *licenseRepo {
	return &licenseRepo{pool: pool}
}

const licenseColumns = `id, signed_token, subject, tier, device_limit, expires_at, bound_devices, revoked, created_at, version`

func (r *licenseRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.LicenseRecord, error) {
	const q = `
SELECT ` + licenseColumns + `
  FROM licenses
 WHERE id=$1;`
	return r.queryOne(ctx, tx, q, id)
}

func (r *licenseRepo) Insert(ctx context.Context, tx repository.Tx, rec *model.LicenseRecord) error {
	const q = `
INSERT INTO licenses (
  id, signed_token, subject, tier, device_limit, expires_at, bound_devices, revoked, created_at, version
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);`

	_, err := execSQL(ctx, r.pool, tx, q,
		rec.ID, rec.SignedToken, rec.Subject, string(rec.Tier), rec.DeviceLimit,
		rec.ExpiresAt, rec.BoundDevices, rec.Revoked, rec.CreatedAt, rec.Version)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidExecContext):
			return err
		default:
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return domain.ErrAlreadyExists
			}
			metrics.IncDBQueryError("licenses.insert")
			return domain.ErrOperationFailed
		}
	}
	return nil
}

// CompareAndUpdateDevices is the optimistic-CAS half of device admission:
// the device list is only replaced while the stored version is unchanged.
func (r *licenseRepo) CompareAndUpdateDevices(ctx context.Context, tx repository.Tx, id string, expectedVersion int64, devices []string) error {
	const q = `
UPDATE licenses
   SET bound_devices=$3, version=version+1
 WHERE id=$1 AND version=$2;`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, expectedVersion, devices)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidExecContext):
			return err
		default:
			metrics.IncDBQueryError("licenses.cas_devices")
			return domain.ErrOperationFailed
		}
	}
	if cmd.RowsAffected() == 0 {
		// Either the version moved or the record is gone; records are never
		// deleted, so the caller treats this as a lost race and reloads.
		return domain.ErrVersionConflict
	}
	return nil
}

func (r *licenseRepo) SetRevoked(ctx context.Context, tx repository.Tx, id string) error {
	const q = `
UPDATE licenses
   SET revoked=TRUE
 WHERE id=$1 AND revoked=FALSE;`

	cmd, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidExecContext):
			return err
		default:
			metrics.IncDBQueryError("licenses.set_revoked")
			return domain.ErrOperationFailed
		}
	}
	if cmd.RowsAffected() == 1 {
		return nil
	}

	// Distinguish missing from already-revoked for the caller.
	row, err := queryRow(ctx, r.pool, tx, `SELECT revoked FROM licenses WHERE id=$1;`, id)
	if err != nil {
		return err
	}
	var revoked bool
	if err := row.Scan(&revoked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		metrics.IncDBQueryError("licenses.set_revoked")
		return domain.ErrOperationFailed
	}
	if revoked {
		return domain.ErrAlreadyRevoked
	}
	return domain.ErrOperationFailed
}

func (r *licenseRepo) FindActiveBySubjectAndTier(ctx context.Context, tx repository.Tx, subject string, tier model.Tier) (*model.LicenseRecord, error) {
	const q = `
SELECT ` + licenseColumns + `
  FROM licenses
 WHERE subject=$1 AND tier=$2 AND revoked=FALSE AND expires_at > NOW()
 ORDER BY created_at DESC
 LIMIT 1;`
	return r.queryOne(ctx, tx, q, subject, string(tier))
}

func (r *licenseRepo) FindExpiring(ctx context.Context, tx repository.Tx, within time.Duration) ([]*model.LicenseRecord, error) {
	const q = `
SELECT ` + licenseColumns + `
  FROM licenses
 WHERE revoked=FALSE
   AND expires_at > NOW()
   AND expires_at <= NOW() + make_interval(secs => $1)
 ORDER BY expires_at ASC;`

	rows, err := queryRows(ctx, r.pool, tx, q, within.Seconds())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidExecContext):
			return nil, err
		default:
			metrics.IncDBQueryError("licenses.find_expiring")
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.LicenseRecord
	for rows.Next() {
		rec, err := scanLicense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *licenseRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.LicenseRecord, error) {
	row, err := queryRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	rec, err := scanLicense(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		metrics.IncDBQueryError("licenses.query_one")
		return nil, domain.ErrOperationFailed
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLicense(row rowScanner) (*model.LicenseRecord, error) {
	var rec model.LicenseRecord
	var tier string
	if err := row.Scan(
		&rec.ID, &rec.SignedToken, &rec.Subject, &tier, &rec.DeviceLimit,
		&rec.ExpiresAt, &rec.BoundDevices, &rec.Revoked, &rec.CreatedAt, &rec.Version,
	); err != nil {
		return nil, err
	}
	rec.Tier = model.Tier(tier)
	if rec.BoundDevices == nil {
		rec.BoundDevices = []string{}
	}
	return &rec, nil
}
