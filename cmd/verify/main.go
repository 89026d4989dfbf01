// Command verify checks a license token offline against a public key, the
// same way a client build with an embedded key would. It never talks to the
// authority, so revocation and device state are not checked here.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"license-authority/internal/token"
)

func main() {
	pubPath := flag.String("pub", "license_public_key.pem", "path to the public key (PKIX PEM)")
	tokenPath := flag.String("token", "", "path to a file containing the license token")
	issuer := flag.String("issuer", "license-authority", "expected issuer tag")
	audience := flag.String("audience", "license-authority/clients", "expected audience")
	flag.Parse()

	if *tokenPath == "" {
		log.Fatal("-token is required")
	}
	raw, err := os.ReadFile(*tokenPath)
	if err != nil {
		log.Fatalf("read token: %v", err)
	}
	pub, err := token.LoadPublicKeyFile(*pubPath)
	if err != nil {
		log.Fatalf("load public key: %v", err)
	}

	codec := token.NewCodec(*issuer, *audience, nil, pub)
	claims, err := codec.Verify(strings.TrimSpace(string(raw)))
	if err != nil {
		log.Fatalf("INVALID: %v", err)
	}

	fmt.Println("VALID")
	fmt.Printf("  license_id:   %s\n", claims.ID)
	fmt.Printf("  subject:      %s\n", claims.Subject)
	fmt.Printf("  tier:         %s\n", claims.Tier)
	fmt.Printf("  device_limit: %d\n", claims.DeviceLimit)
	fmt.Printf("  expires_at:   %s\n", claims.ExpiresAt.Time)
}
