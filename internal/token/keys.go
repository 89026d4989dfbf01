package token

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"os"

	"license-authority/internal/domain"
)

// ParsePrivateKeyPEM decodes a PKCS#8 PEM block into an Ed25519 private key.
func ParsePrivateKeyPEM(data []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, domain.ErrSigningKeyInvalid
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, domain.ErrSigningKeyInvalid
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, domain.ErrSigningKeyInvalid
	}
	return priv, nil
}

// ParsePublicKeyPEM decodes a PKIX PEM block into an Ed25519 public key.
func ParsePublicKeyPEM(data []byte) (ed25519.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, domain.ErrSigningKeyInvalid
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, domain.ErrSigningKeyInvalid
	}
	pub, ok := key.(ed25519.PublicKey)
	if !ok {
		return nil, domain.ErrSigningKeyInvalid
	}
	return pub, nil
}

// LoadPrivateKeyFile reads an Ed25519 private key from a PEM file.
func LoadPrivateKeyFile(path string) (ed25519.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.ErrSigningKeyInvalid
	}
	return ParsePrivateKeyPEM(b)
}

// LoadPublicKeyFile reads an Ed25519 public key from a PEM file.
func LoadPublicKeyFile(path string) (ed25519.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.ErrSigningKeyInvalid
	}
	return ParsePublicKeyPEM(b)
}
