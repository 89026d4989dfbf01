// Command keygen generates the Ed25519 key pair used to sign and verify
// license tokens. The private key stays on the issuing side; the public key
// is distributed with client builds for offline checks.
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"flag"
	"log"
	"os"
)

func main() {
	privPath := flag.String("priv", "license_signing_key.pem", "output path for the private key (PKCS#8 PEM)")
	pubPath := flag.String("pub", "license_public_key.pem", "output path for the public key (PKIX PEM)")
	flag.Parse()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		log.Fatalf("generate key: %v", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		log.Fatalf("marshal private key: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		log.Fatalf("marshal public key: %v", err)
	}

	if err := writePEM(*privPath, "PRIVATE KEY", privDER, 0o600); err != nil {
		log.Fatalf("write private key: %v", err)
	}
	if err := writePEM(*pubPath, "PUBLIC KEY", pubDER, 0o644); err != nil {
		log.Fatalf("write public key: %v", err)
	}
	log.Printf("wrote %s and %s", *privPath, *pubPath)
}

func writePEM(path, blockType string, der []byte, mode os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer f.Close()
	return pem.Encode(f, &pem.Block{Type: blockType, Bytes: der})
}
