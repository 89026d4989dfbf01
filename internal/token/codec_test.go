package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"license-authority/internal/domain"
	"license-authority/internal/domain/model"
)

const (
	testIssuer   = "acme-licensing"
	testAudience = "acme-desktop"
)

func newKeyPair(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return pub, priv
}

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	pub, priv := newKeyPair(t)
	return NewCodec(testIssuer, testAudience, priv, pub)
}

func validClaims(c *Codec) *LicenseClaims {
	now := time.Now().Truncate(time.Second)
	return c.NewClaims("owner@example.com", "lic-0001-aaaa", model.TierPro, 3, now, now.Add(time.Hour))
}

func TestSignVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t)
	in := validClaims(c)

	signed, err := c.Sign(in)
	if err != nil {
		t.Fatalf("Sign returned error: %v", err)
	}
	out, err := c.Verify(signed)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}

	if out.ID != in.ID || out.Subject != in.Subject {
		t.Fatalf("identity claims changed: %+v vs %+v", out, in)
	}
	if out.Tier != in.Tier || out.DeviceLimit != in.DeviceLimit {
		t.Fatalf("license claims changed: %+v vs %+v", out, in)
	}
	if out.Issuer != testIssuer {
		t.Fatalf("issuer %q, want %q", out.Issuer, testIssuer)
	}
	if !out.ExpiresAt.Time.Equal(in.ExpiresAt.Time) || !out.IssuedAt.Time.Equal(in.IssuedAt.Time) {
		t.Fatalf("timestamps changed: %v/%v vs %v/%v", out.IssuedAt, out.ExpiresAt, in.IssuedAt, in.ExpiresAt)
	}
}

func TestSign_RejectsInvalidClaims(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t)
	now := time.Now()

	cases := []struct {
		name   string
		claims *LicenseClaims
	}{
		{"nil claims", nil},
		{"empty subject", c.NewClaims("", "id-1234", model.TierPro, 1, now, now.Add(time.Hour))},
		{"empty id", c.NewClaims("a@b.c", "", model.TierPro, 1, now, now.Add(time.Hour))},
		{"bad tier", c.NewClaims("a@b.c", "id-1234", model.Tier("gold"), 1, now, now.Add(time.Hour))},
		{"zero device limit", c.NewClaims("a@b.c", "id-1234", model.TierPro, 0, now, now.Add(time.Hour))},
		{"expiry before issuance", c.NewClaims("a@b.c", "id-1234", model.TierPro, 1, now, now.Add(-time.Hour))},
		{"expiry equals issuance", c.NewClaims("a@b.c", "id-1234", model.TierPro, 1, now, now)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := c.Sign(tc.claims); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestSign_MissingPrivateKey(t *testing.T) {
	t.Parallel()

	pub, _ := newKeyPair(t)
	c := NewCodec(testIssuer, testAudience, nil, pub)
	if _, err := c.Sign(validClaims(c)); !errors.Is(err, domain.ErrSigningKeyInvalid) {
		t.Fatalf("expected ErrSigningKeyInvalid, got %v", err)
	}
}

func TestVerify_TamperedTokenNeverVerifies(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t)
	signed, err := c.Sign(validClaims(c))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	for i := 0; i < len(signed); i++ {
		if signed[i] == '.' {
			continue
		}
		flip := byte('A')
		if signed[i] == 'A' {
			flip = 'B'
		}
		mutated := signed[:i] + string(flip) + signed[i+1:]
		if mutated == signed {
			continue
		}
		if _, err := c.Verify(mutated); err == nil {
			t.Fatalf("mutation at byte %d verified successfully", i)
		}
	}
}

func TestVerify_SignatureFromOtherKey(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t)
	other := newTestCodec(t)
	signed, err := other.Sign(validClaims(other))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := c.Verify(signed); !errors.Is(err, domain.ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestVerify_IssuerAndAudienceMismatch(t *testing.T) {
	t.Parallel()

	pub, priv := newKeyPair(t)
	signer := NewCodec(testIssuer, testAudience, priv, pub)
	signed, err := signer.Sign(validClaims(signer))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	wrongIssuer := NewCodec("someone-else", testAudience, priv, pub)
	if _, err := wrongIssuer.Verify(signed); !errors.Is(err, domain.ErrIssuerMismatch) {
		t.Fatalf("expected ErrIssuerMismatch, got %v", err)
	}

	wrongAudience := NewCodec(testIssuer, "other-product", priv, pub)
	if _, err := wrongAudience.Verify(signed); !errors.Is(err, domain.ErrAudienceMismatch) {
		t.Fatalf("expected ErrAudienceMismatch, got %v", err)
	}
}

func TestVerify_ExpiryBoundaryHasZeroGrace(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t)
	issued := time.Now().Truncate(time.Second)
	expiry := issued.Add(time.Hour)
	signed, err := c.Sign(c.NewClaims("owner@example.com", "lic-0001-aaaa", model.TierPro, 1, issued, expiry))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	// exp == now is already expired.
	c.WithClock(func() time.Time { return expiry })
	if _, err := c.Verify(signed); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired at exp==now, got %v", err)
	}

	// One second earlier it is still valid.
	c.WithClock(func() time.Time { return expiry.Add(-time.Second) })
	if _, err := c.Verify(signed); err != nil {
		t.Fatalf("expected valid one second before expiry, got %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t)
	for _, tok := range []string{"", "garbage", "a.b", "a.b.c.d", strings.Repeat("x", 2048)} {
		if _, err := c.Verify(tok); !errors.Is(err, domain.ErrTokenMalformed) {
			t.Fatalf("token %q: expected ErrTokenMalformed, got %v", tok, err)
		}
	}
}

func TestPeekLicenseID(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t)
	signed, err := c.Sign(validClaims(c))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	id, err := c.PeekLicenseID(signed)
	if err != nil {
		t.Fatalf("PeekLicenseID: %v", err)
	}
	if id != "lic-0001-aaaa" {
		t.Fatalf("peeked id %q", id)
	}

	// Peek works on an expired token too; it does not validate anything.
	c.WithClock(func() time.Time { return time.Now().Add(48 * time.Hour) })
	if _, err := c.PeekLicenseID(signed); err != nil {
		t.Fatalf("peek on expired token: %v", err)
	}

	if _, err := c.PeekLicenseID("not-a-token"); !errors.Is(err, domain.ErrTokenMalformed) {
		t.Fatalf("expected ErrTokenMalformed, got %v", err)
	}
}

func TestKeyPEMRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	privPath := dir + "/priv.pem"
	pubPath := dir + "/pub.pem"

	pub, priv := newKeyPair(t)
	writeTestKeys(t, privPath, pubPath, priv, pub)

	loadedPriv, err := LoadPrivateKeyFile(privPath)
	if err != nil {
		t.Fatalf("LoadPrivateKeyFile: %v", err)
	}
	loadedPub, err := LoadPublicKeyFile(pubPath)
	if err != nil {
		t.Fatalf("LoadPublicKeyFile: %v", err)
	}

	c := NewCodec(testIssuer, testAudience, loadedPriv, loadedPub)
	signed, err := c.Sign(validClaims(c))
	if err != nil {
		t.Fatalf("Sign with loaded keys: %v", err)
	}
	if _, err := c.Verify(signed); err != nil {
		t.Fatalf("Verify with loaded keys: %v", err)
	}

	if _, err := LoadPrivateKeyFile(dir + "/missing.pem"); !errors.Is(err, domain.ErrSigningKeyInvalid) {
		t.Fatalf("expected ErrSigningKeyInvalid for missing file, got %v", err)
	}
	if _, err := ParsePublicKeyPEM([]byte("not pem")); !errors.Is(err, domain.ErrSigningKeyInvalid) {
		t.Fatalf("expected ErrSigningKeyInvalid for junk, got %v", err)
	}
}

func writeTestKeys(t *testing.T, privPath, pubPath string, priv ed25519.PrivateKey, pub ed25519.PublicKey) {
	t.Helper()
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatalf("marshal private key: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	if err := os.WriteFile(privPath, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}), 0o600); err != nil {
		t.Fatalf("write private key: %v", err)
	}
	if err := os.WriteFile(pubPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}), 0o644); err != nil {
		t.Fatalf("write public key: %v", err)
	}
}
