package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"license-authority/internal/domain"
	"license-authority/internal/domain/model"
	"license-authority/internal/domain/ports/repository"
	"license-authority/internal/fingerprint"
	"license-authority/internal/token"
)

// BackgroundRunner runs fire-and-forget tasks off the request path.
// Implemented by the worker pool; a nil runner makes the write synchronous.
type BackgroundRunner interface {
	Submit(task func(ctx context.Context) error) error
}

// AdminNotifier delivers operational alerts (revocations, expiring
// licenses) to the operators. Best-effort.
type AdminNotifier interface {
	Notify(ctx context.Context, message string) error
}

// IssueResult is returned once the token is signed AND the record is
// persisted; a failed persist never leaks a token.
type IssueResult struct {
	LicenseID string
	Token     string
	ExpiresAt time.Time
}

// VerificationResult reports the authoritative state of a license after a
// verification call, including the device count after any admission.
type VerificationResult struct {
	LicenseID           string
	Tier                model.Tier
	ExpiresAt           time.Time
	DeviceLimit         int
	BoundDeviceCount    int
	DeviceLimitExceeded bool
	Outcome             model.ActivationOutcome // empty when no fingerprint was supplied
}

// LicenseUseCase orchestrates the license lifecycle: issuance, verification
// with device admission, and revocation.
type LicenseUseCase struct {
	licenses          repository.LicenseRepository
	events            repository.ActivationEventRepository
	txm               repository.TransactionManager
	codec             *token.Codec
	onePerSubjectTier bool
	runner            BackgroundRunner
	notifier          AdminNotifier
	log               *zerolog.Logger
	now               func() time.Time
}

func NewLicenseUseCase(
	licenses repository.LicenseRepository,
	events repository.ActivationEventRepository,
	txm repository.TransactionManager,
	codec *token.Codec,
	onePerSubjectTier bool,
	runner BackgroundRunner,
	notifier AdminNotifier,
	logger *zerolog.Logger,
) *LicenseUseCase {
	l := logger.With().Str("component", "LicenseUseCase").Logger()
	return &LicenseUseCase{
		licenses:          licenses,
		events:            events,
		txm:               txm,
		codec:             codec,
		onePerSubjectTier: onePerSubjectTier,
		runner:            runner,
		notifier:          notifier,
		log:               &l,
		now:               time.Now,
	}
}

// WithClock overrides the time source. Used by tests.
func (uc *LicenseUseCase) WithClock(now func() time.Time) *LicenseUseCase {
	uc.now = now
	return uc
}

// Issue creates, signs and persists a new license. The license id is a
// fresh 128-bit random UUID; collision probability is negligible. The
// duplicate-policy check and the insert share one serializable transaction,
// so concurrent issuance for the same subject/tier cannot slip past the
// policy.
func (uc *LicenseUseCase) Issue(ctx context.Context, subject string, tier model.Tier, deviceLimit int, period time.Duration) (*IssueResult, error) {
	if subject == "" || !model.ValidTier(tier) || deviceLimit < 1 || period <= 0 {
		return nil, domain.ErrInvalidArgument
	}

	id := uuid.NewString()
	issuedAt := uc.now()
	expiresAt := issuedAt.Add(period)

	claims := uc.codec.NewClaims(subject, id, tier, deviceLimit, issuedAt, expiresAt)
	signed, err := uc.codec.Sign(claims)
	if err != nil {
		return nil, err
	}

	rec, err := model.NewLicenseRecord(id, signed, subject, tier, deviceLimit, issuedAt, expiresAt)
	if err != nil {
		return nil, err
	}

	persist := func(ctx context.Context, tx repository.Tx) error {
		if uc.onePerSubjectTier {
			existing, err := uc.licenses.FindActiveBySubjectAndTier(ctx, tx, subject, tier)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			if existing != nil {
				return domain.ErrDuplicateActive
			}
		}
		return uc.licenses.Insert(ctx, tx, rec)
	}
	if uc.txm != nil {
		err = uc.txm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, persist)
	} else {
		err = persist(ctx, repository.NoTX)
	}
	if err != nil {
		// No record, no license: the signed token is dropped here.
		return nil, err
	}

	uc.log.Info().Str("license_id", id).Str("tier", string(tier)).Int("device_limit", deviceLimit).Msg("license issued")
	return &IssueResult{LicenseID: id, Token: signed, ExpiresAt: expiresAt}, nil
}

// Verify validates a token against the stored record and, when a raw
// fingerprint is supplied, runs device admission against the quota.
// Record state (revocation, authoritative expiry) is checked before the
// cryptographic verification so callers learn the most useful failure.
func (uc *LicenseUseCase) Verify(ctx context.Context, tokenStr, rawFingerprint string) (*VerificationResult, error) {
	id, err := uc.codec.PeekLicenseID(tokenStr)
	if err != nil {
		return nil, err
	}

	rec, err := uc.licenses.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if rec.Revoked {
		return nil, domain.ErrLicenseRevoked
	}
	if rec.Expired(uc.now()) {
		return nil, domain.ErrLicenseExpired
	}
	if _, err := uc.codec.Verify(tokenStr); err != nil {
		return nil, err
	}

	res := &VerificationResult{
		LicenseID:        rec.ID,
		Tier:             rec.Tier,
		ExpiresAt:        rec.ExpiresAt,
		DeviceLimit:      rec.DeviceLimit,
		BoundDeviceCount: len(rec.BoundDevices),
	}
	if rawFingerprint == "" {
		return res, nil
	}

	canon, err := fingerprint.Normalize(rawFingerprint)
	if err != nil {
		return nil, err
	}

	outcome, count, err := uc.admit(ctx, rec, canon)
	if err != nil {
		return nil, err
	}
	res.Outcome = outcome
	res.BoundDeviceCount = count
	res.DeviceLimitExceeded = outcome == model.ActivationLimitExceeded

	uc.recordActivation(model.NewActivationEvent(rec.ID, canon, outcome, uc.now()))
	return res, nil
}

// admit runs the read-check-append sequence as an optimistic
// compare-and-swap against the record version, so that two concurrent
// callers can never bind past the device limit. One immediate retry on a
// version conflict, then the conflict surfaces as retryable.
func (uc *LicenseUseCase) admit(ctx context.Context, rec *model.LicenseRecord, canon string) (model.ActivationOutcome, int, error) {
	for attempt := 0; ; attempt++ {
		if rec.HasDevice(canon) {
			return model.ActivationAlreadyBound, len(rec.BoundDevices), nil
		}
		if len(rec.BoundDevices) >= rec.DeviceLimit {
			return model.ActivationLimitExceeded, len(rec.BoundDevices), nil
		}

		devices := make([]string, 0, len(rec.BoundDevices)+1)
		devices = append(devices, rec.BoundDevices...)
		devices = append(devices, canon)

		err := uc.licenses.CompareAndUpdateDevices(ctx, repository.NoTX, rec.ID, rec.Version, devices)
		if err == nil {
			return model.ActivationBound, len(devices), nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) || attempt >= 1 {
			return "", 0, err
		}

		// Lost the race; reload and re-evaluate once.
		fresh, err := uc.licenses.FindByID(ctx, repository.NoTX, rec.ID)
		if err != nil {
			return "", 0, err
		}
		rec = fresh
	}
}

// recordActivation appends the audit event off the request path. Audit
// failures are logged and dropped; they never fail the verification.
func (uc *LicenseUseCase) recordActivation(ev *model.ActivationEvent) {
	write := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := uc.events.Append(ctx, repository.NoTX, ev); err != nil {
			uc.log.Warn().Err(err).Str("license_id", ev.LicenseID).Str("outcome", string(ev.Outcome)).Msg("activation audit write failed")
			return err
		}
		return nil
	}
	if uc.runner == nil {
		_ = write(context.Background())
		return
	}
	if err := uc.runner.Submit(write); err != nil {
		uc.log.Warn().Err(err).Str("license_id", ev.LicenseID).Msg("activation audit write dropped")
	}
}

// Revoke durably and irreversibly invalidates a license. Revoking an
// already-revoked license is reported, not silently ignored.
func (uc *LicenseUseCase) Revoke(ctx context.Context, licenseID string) error {
	if licenseID == "" {
		return domain.ErrInvalidArgument
	}
	if err := uc.licenses.SetRevoked(ctx, repository.NoTX, licenseID); err != nil {
		return err
	}
	uc.log.Info().Str("license_id", licenseID).Msg("license revoked")

	if uc.notifier != nil {
		alert := func(ctx context.Context) error {
			return uc.notifier.Notify(ctx, "license revoked: "+licenseID)
		}
		if uc.runner != nil {
			_ = uc.runner.Submit(alert)
		} else {
			_ = alert(ctx)
		}
	}
	return nil
}

// Activations lists the audit trail of one license, oldest first.
func (uc *LicenseUseCase) Activations(ctx context.Context, licenseID string) ([]*model.ActivationEvent, error) {
	if licenseID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return uc.events.ListByLicense(ctx, repository.NoTX, licenseID)
}
