package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// License state errors
	ErrLicenseRevoked  = errors.New("license has been revoked")
	ErrLicenseExpired  = errors.New("license has expired")
	ErrAlreadyRevoked  = errors.New("license is already revoked")
	ErrDuplicateActive = errors.New("subject already has an active license for this tier")

	// Token errors reported by the codec
	ErrTokenMalformed    = errors.New("token is malformed")
	ErrBadSignature      = errors.New("token signature is invalid")
	ErrIssuerMismatch    = errors.New("token issuer mismatch")
	ErrAudienceMismatch  = errors.New("token audience mismatch")
	ErrTokenExpired      = errors.New("token has expired")
	ErrSigningKeyInvalid = errors.New("signing key unavailable or malformed")

	// Fingerprint validation errors
	ErrFingerprintEmpty    = errors.New("fingerprint is empty")
	ErrFingerprintTooShort = errors.New("fingerprint too short after normalization")

	// Storage errors
	ErrVersionConflict    = errors.New("record version conflict")
	ErrOperationFailed    = errors.New("storage operation failed")
	ErrInvalidExecContext = errors.New("invalid executor context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
