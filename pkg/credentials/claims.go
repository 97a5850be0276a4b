package credentials

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are display-only fields peeked out of a JWT-shaped license key. The
// client never verifies the signature; the server is the authority and opaque
// (non-JWT) keys are perfectly valid.
type Claims struct {
	CustomerID string
	Plan       string
	ExpiresAt  *time.Time
}

type licenseClaims struct {
	jwt.RegisteredClaims
	Plan string `json:"plan,omitempty"`
}

// PeekClaims parses the license key without verification. Returns nil (and no
// error) when the key isn't a JWT.
func PeekClaims(licenseKey string) *Claims {
	parser := jwt.NewParser()
	var lc licenseClaims
	if _, _, err := parser.ParseUnverified(licenseKey, &lc); err != nil {
		return nil
	}

	claims := &Claims{
		CustomerID: lc.Subject,
		Plan:       lc.Plan,
	}
	if lc.ExpiresAt != nil {
		t := lc.ExpiresAt.Time
		claims.ExpiresAt = &t
	}
	return claims
}
