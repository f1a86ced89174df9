package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-navauth"
)

// Claims are the access token claims the provider understands.
type Claims struct {
	jwt.RegisteredClaims
	Email    string         `json:"email,omitempty"`
	Role     string         `json:"role,omitempty"`
	UserName string         `json:"user_name,omitempty"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
}

// Identity returns the identity carried by the claims.
func (c *Claims) Identity() navauth.UserIdentity {
	return navauth.UserIdentity{
		UserID:    c.Subject,
		UserName:  c.UserName,
		UserEmail: c.Email,
		UserRole:  c.Role,
	}
}

// SessionFromClaims builds a session from verified claims and the bundle
// they came with. Expiry comes from exp, falling back to expires_in.
func SessionFromClaims(claims *Claims, bundle navauth.TokenBundle, now time.Time) (*navauth.Session, error) {
	if claims == nil || claims.Subject == "" {
		return nil, ErrTokenMalformed
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	} else if d, err := bundle.ExpiresInDuration(); err == nil && d > 0 {
		expiresAt = now.Add(d)
	}

	var issuedAt *time.Time
	if claims.IssuedAt != nil {
		iat := claims.IssuedAt.Time
		issuedAt = &iat
	}

	data := map[string]any{}
	if claims.Role != "" {
		data["role"] = claims.Role
	}
	if len(claims.Metadata) > 0 {
		data["metadata"] = claims.Metadata
	}

	return &navauth.Session{
		UserID:    claims.Subject,
		Identity:  claims.Identity(),
		Tokens:    bundle.Tokens(),
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
		Data:      data,
	}, nil
}
