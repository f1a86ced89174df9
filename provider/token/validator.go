package token

import (
	"fmt"
	"log"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

// TokenValidator verifies access tokens and returns their claims.
type TokenValidator struct {
	config  Config
	keyFunc jwt.Keyfunc
	jwks    *keyfunc.JWKS
	now     func() time.Time
}

// NewTokenValidator builds a validator from cfg. Key sources are tried in
// order: KeyFunc, JWKSURL (with SigningKeys as given keys), SigningKeys,
// SigningKey.
func NewTokenValidator(cfg Config) (*TokenValidator, error) {
	v := &TokenValidator{config: cfg, now: time.Now}

	givenKeys := make(map[string]keyfunc.GivenKey, len(cfg.SigningKeys))
	for kid, key := range cfg.SigningKeys {
		givenKeys[kid] = keyfunc.NewGivenCustom(key.Key, keyfunc.GivenKeyOptions{
			Algorithm: key.JWTAlg,
		})
	}

	switch {
	case cfg.KeyFunc != nil:
		v.keyFunc = cfg.KeyFunc
	case cfg.JWKSURL != "":
		jwks, err := keyfunc.Get(cfg.JWKSURL, jwksOptions(cfg, givenKeys))
		if err != nil {
			return nil, fmt.Errorf("token: failed to get JWKS: %w", err)
		}
		v.jwks = jwks
		v.keyFunc = jwks.Keyfunc
	case len(givenKeys) > 0:
		v.keyFunc = keyfunc.NewGiven(givenKeys).Keyfunc
	case cfg.SigningKey.Key != nil:
		v.keyFunc = signingKeyFunc(cfg.SigningKey)
	default:
		return nil, fmt.Errorf("token: one of KeyFunc, JWKSURL, SigningKeys or SigningKey is required")
	}

	return v, nil
}

// Validate verifies tokenString and returns its claims.
func (v *TokenValidator) Validate(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, normalizeValidationError(jwt.ErrTokenMalformed)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.config.algorithms()),
		jwt.WithTimeFunc(v.now),
		jwt.WithIssuedAt(),
	}
	if v.config.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(v.config.Leeway))
	}
	if v.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.config.Issuer))
	}
	if v.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.config.Audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keyFunc, opts...)
	if err != nil {
		return nil, normalizeValidationError(err)
	}
	if !token.Valid {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

// Close stops the background JWKS refresh, if any.
func (v *TokenValidator) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

func jwksOptions(cfg Config, givenKeys map[string]keyfunc.GivenKey) keyfunc.Options {
	interval := cfg.JWKSRefreshInterval
	if interval <= 0 {
		interval = time.Hour
	}
	return keyfunc.Options{
		GivenKeys: givenKeys,
		RefreshErrorHandler: func(err error) {
			log.Printf("failed to do a background refresh of JWT set: %s", err)
		},
		RefreshInterval:   interval,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	}
}

func signingKeyFunc(key SigningKey) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if key.JWTAlg != "" {
			alg, ok := token.Header["alg"].(string)
			if !ok {
				return nil, fmt.Errorf("unexpected JWT signing method: expected %q got: missing json type", key.JWTAlg)
			}
			if alg != key.JWTAlg {
				return nil, fmt.Errorf("unexpected jwt signing method: expected: %q: got: %q", key.JWTAlg, alg)
			}
		}
		return key.Key, nil
	}
}
