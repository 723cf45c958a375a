package apns

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Signer produces the bearer assertion the push gateway authenticates with:
// an ES256-signed compact JWT carrying the key id in the header and the team
// id plus issuance time in the payload.
type Signer struct {
	creds *Credentials
	now   func() time.Time
}

// NewSigner creates a signer over already-validated credentials.
func NewSigner(creds *Credentials) *Signer {
	return &Signer{
		creds: creds,
		now:   time.Now,
	}
}

// Assertion signs a new authentication assertion. Callers create exactly one
// per dispatch and reuse it across every delivery in the batch, so the whole
// batch shares a single issuance time.
func (s *Signer) Assertion() (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": s.creds.TeamID,
		"iat": s.now().Unix(),
	})
	token.Header["kid"] = s.creds.KeyID

	signed, err := token.SignedString(s.creds.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign APNs assertion: %w", err)
	}

	return signed, nil
}

// FailingSigner reports a credential error on every use. It stands in for a
// real signer when the service starts without valid APNs configuration, so
// dispatch requests surface the configuration error instead of the whole
// service refusing to boot while other routes still work.
type FailingSigner struct {
	Err error
}

func (s FailingSigner) Assertion() (string, error) {
	return "", s.Err
}
