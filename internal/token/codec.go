package token

import (
	"crypto/ed25519"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"license-authority/internal/domain"
	"license-authority/internal/domain/model"
)

// LicenseClaims is the signed payload of a license token. Issuer, audience,
// subject, license id (jti) and the timestamps ride in the registered
// claims so that tampering with any of them invalidates the signature.
type LicenseClaims struct {
	Tier        model.Tier `json:"tier"`
	DeviceLimit int        `json:"device_limit"`
	jwt.RegisteredClaims
}

// NewClaims builds claims for a license issued at issuedAt.
func NewClaims(issuer, audience, subject, licenseID string, tier model.Tier, deviceLimit int, issuedAt, expiresAt time.Time) *LicenseClaims {
	return &LicenseClaims{
		Tier:        tier,
		DeviceLimit: deviceLimit,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			Subject:   subject,
			ID:        licenseID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
}

// Codec signs and verifies license tokens with an Ed25519 key pair.
// The private key may be nil for a verify-only codec (client side).
type Codec struct {
	issuer   string
	audience string
	priv     ed25519.PrivateKey
	pub      ed25519.PublicKey
	now      func() time.Time
}

func NewCodec(issuer, audience string, priv ed25519.PrivateKey, pub ed25519.PublicKey) *Codec {
	return &Codec{
		issuer:   issuer,
		audience: audience,
		priv:     priv,
		pub:      pub,
		now:      time.Now,
	}
}

// NewClaims builds claims carrying this codec's issuer and audience.
func (c *Codec) NewClaims(subject, licenseID string, tier model.Tier, deviceLimit int, issuedAt, expiresAt time.Time) *LicenseClaims {
	return NewClaims(c.issuer, c.audience, subject, licenseID, tier, deviceLimit, issuedAt, expiresAt)
}

// WithClock overrides the codec's time source. Used by tests to pin the
// expiry boundary.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	c.now = now
	return c
}

// Sign serializes and signs claims. It enforces the claim invariants
// (expiry after issuance, positive device limit, non-empty subject and id)
// before touching the key.
func (c *Codec) Sign(claims *LicenseClaims) (string, error) {
	if claims == nil || claims.Subject == "" || claims.ID == "" {
		return "", domain.ErrInvalidArgument
	}
	if !model.ValidTier(claims.Tier) || claims.DeviceLimit < 1 {
		return "", domain.ErrInvalidArgument
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil || !claims.ExpiresAt.After(claims.IssuedAt.Time) {
		return "", domain.ErrInvalidArgument
	}
	if len(c.priv) != ed25519.PrivateKeySize {
		return "", domain.ErrSigningKeyInvalid
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(c.priv)
	if err != nil {
		return "", domain.ErrSigningKeyInvalid
	}
	return signed, nil
}

// Verify checks the signature against the public key and validates issuer,
// audience and expiry. Expiry has zero grace: a token whose exp equals the
// current second is already expired. Verify never consults stored state.
func (c *Codec) Verify(tokenStr string) (*LicenseClaims, error) {
	if len(c.pub) != ed25519.PublicKeySize {
		return nil, domain.ErrSigningKeyInvalid
	}
	claims := &LicenseClaims{}
	tkn, err := jwt.ParseWithClaims(tokenStr, claims,
		func(t *jwt.Token) (any, error) { return c.pub, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
		// Strict base64: a token that differs in any byte, including the
		// unused trailing bits of a segment, never verifies.
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, domain.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return nil, domain.ErrIssuerMismatch
		case errors.Is(err, jwt.ErrTokenInvalidAudience):
			return nil, domain.ErrAudienceMismatch
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, domain.ErrBadSignature
		default:
			return nil, domain.ErrTokenMalformed
		}
	}
	if !tkn.Valid {
		return nil, domain.ErrBadSignature
	}
	return claims, nil
}

// PeekLicenseID extracts the license id (jti) WITHOUT verifying the
// signature. It exists only so the caller can look up the license record
// before running the authoritative check; the result must never be trusted
// until Verify has also succeeded on the same token.
func (c *Codec) PeekLicenseID(tokenStr string) (string, error) {
	claims := &LicenseClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenStr, claims); err != nil {
		return "", domain.ErrTokenMalformed
	}
	if claims.ID == "" {
		return "", domain.ErrTokenMalformed
	}
	return claims.ID, nil
}
