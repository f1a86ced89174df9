package navauth

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Tokens is the credential material attached to a Present session.
type Tokens struct {
	AccessToken   string `json:"access_token,omitempty"`
	RefreshToken  string `json:"refresh_token,omitempty"`
	ProviderToken string `json:"provider_token,omitempty"`
	TokenType     string `json:"token_type,omitempty"`
}

// Session is the application's belief about who is signed in. A nil
// *Session is the Absent state.
type Session struct {
	UserID    string         `json:"user_id,omitempty"`
	Identity  Identity       `json:"-"`
	Tokens    Tokens         `json:"tokens"`
	IssuedAt  *time.Time     `json:"issued_at,omitempty"`
	ExpiresAt time.Time      `json:"expires_at"`
	Data      map[string]any `json:"data,omitempty"`
}

// IsPresent reports whether s represents a signed-in user.
func IsPresent(s *Session) bool {
	return s != nil
}

func (s *Session) GetUserID() string {
	if s == nil {
		return ""
	}
	return s.UserID
}

func (s *Session) GetUserUUID() (uuid.UUID, error) {
	return uuid.Parse(s.GetUserID())
}

func (s *Session) GetIssuedAt() *time.Time {
	if s == nil {
		return nil
	}
	return s.IssuedAt
}

func (s *Session) GetExpiresAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.ExpiresAt
}

func (s *Session) GetData() map[string]any {
	if s == nil {
		return nil
	}
	return s.Data
}

// IsExpired reports whether the session expiry is not after now. A zero
// expiry never expires.
func (s *Session) IsExpired(now time.Time) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !s.ExpiresAt.After(now)
}

// Validate returns ErrSessionResolution when the session cannot be trusted.
func (s *Session) Validate(now time.Time) error {
	switch {
	case s == nil:
		return sessionResolutionError("session is nil")
	case s.UserID == "":
		return sessionResolutionError("session has no user id")
	case s.Tokens.AccessToken == "":
		return sessionResolutionError("session has no access token")
	case s.IsExpired(now):
		return sessionResolutionError("session expired")
	}
	return nil
}

// Clone returns a copy that readers may keep without observing later writes.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.IssuedAt != nil {
		iat := *s.IssuedAt
		out.IssuedAt = &iat
	}
	if s.Data != nil {
		out.Data = make(map[string]any, len(s.Data))
		for k, v := range s.Data {
			out.Data[k] = v
		}
	}
	return &out
}

func (s Session) String() string {
	issuedAt := "<nil>"
	if s.IssuedAt != nil {
		issuedAt = s.IssuedAt.Format(time.RFC1123)
	}
	return fmt.Sprintf(
		"user=%s iat=%s exp=%s type=%s",
		s.UserID,
		issuedAt,
		s.ExpiresAt.Format(time.RFC1123),
		s.Tokens.TokenType,
	)
}

// UserIdentity is a plain Identity value.
type UserIdentity struct {
	UserID    string `json:"id"`
	UserName  string `json:"username,omitempty"`
	UserEmail string `json:"email,omitempty"`
	UserRole  string `json:"role,omitempty"`
}

var _ Identity = UserIdentity{}

func (u UserIdentity) ID() string       { return u.UserID }
func (u UserIdentity) Username() string { return u.UserName }
func (u UserIdentity) Email() string    { return u.UserEmail }
func (u UserIdentity) Role() string     { return u.UserRole }
