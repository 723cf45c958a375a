// Package apns signs and delivers alerts to the Apple Push Notification service.
package apns

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// Credentials holds the signing key material for the push gateway.
// Loaded once from configuration; never mutated afterwards.
type Credentials struct {
	KeyID    string
	TeamID   string
	BundleID string

	privateKey *ecdsa.PrivateKey
}

// LoadCredentials validates and parses the APNs signing configuration.
// It fails fast on missing values or malformed key material so that a bad
// deployment is caught before any delivery is attempted.
func LoadCredentials(keyID, teamID, bundleID, keyP8 string) (*Credentials, error) {
	switch {
	case keyID == "":
		return nil, fmt.Errorf("missing APNs key id")
	case teamID == "":
		return nil, fmt.Errorf("missing APNs team id")
	case bundleID == "":
		return nil, fmt.Errorf("missing APNs bundle id")
	case keyP8 == "":
		return nil, fmt.Errorf("missing APNs private key")
	}

	// Normalize P8: support both literal newlines and \n-escaped forms.
	if strings.Contains(keyP8, "\\n") && !strings.Contains(keyP8, "\n") {
		keyP8 = strings.ReplaceAll(keyP8, "\\n", "\n")
	}

	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(keyP8))
	if err != nil {
		return nil, fmt.Errorf("failed to parse APNs P8 key: %w", err)
	}

	// The gateway only accepts ES256 assertions.
	if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("unsupported curve %s, APNs requires P-256", key.Curve.Params().Name)
	}

	return &Credentials{
		KeyID:      keyID,
		TeamID:     teamID,
		BundleID:   bundleID,
		privateKey: key,
	}, nil
}
