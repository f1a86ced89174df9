package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningKey is a verification key and the algorithm it is used with.
type SigningKey struct {
	Key    any
	JWTAlg string
}

// Config holds token verification options.
type Config struct {
	// SigningKey verifies tokens when no other key source is configured.
	SigningKey SigningKey
	// SigningKeys maps key ids to keys.
	SigningKeys map[string]SigningKey
	// JWKSURL enables remote key discovery.
	JWKSURL string
	// KeyFunc overrides every other key source.
	KeyFunc jwt.Keyfunc

	// Issuer and Audience are enforced when set.
	Issuer   string
	Audience string

	// Algorithms restricts accepted signing methods.
	// Default: HS256.
	Algorithms []string

	// Leeway tolerates clock skew on time based claims.
	Leeway time.Duration

	// JWKSRefreshInterval controls background refresh of the key set.
	// Default: 1 hour.
	JWKSRefreshInterval time.Duration
}

// DefaultConfig returns a Config verifying HS256 tokens with key.
func DefaultConfig(key []byte) Config {
	return Config{
		SigningKey: SigningKey{Key: key, JWTAlg: jwt.SigningMethodHS256.Alg()},
		Algorithms: []string{jwt.SigningMethodHS256.Alg()},
	}
}

func (c Config) algorithms() []string {
	if len(c.Algorithms) > 0 {
		return c.Algorithms
	}
	if c.SigningKey.JWTAlg != "" {
		return []string{c.SigningKey.JWTAlg}
	}
	return []string{jwt.SigningMethodHS256.Alg()}
}
