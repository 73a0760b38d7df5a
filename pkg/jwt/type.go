package jwt

import "github.com/golang-jwt/jwt/v5"

// Config holds JWT validation configuration.
type Config struct {
	SecretKey string
}

// Claims is the claims structure carried by access tokens. The subject is
// the member ID the live connection will be keyed by.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Validator verifies inbound access tokens.
type Validator struct {
	secretKey []byte
}
