package navauth

import (
	"time"

	"github.com/goliatone/go-router"
)

// DefaultSessionKey is the locals key the page guard reads the request
// session from.
const DefaultSessionKey = "session"

// GetRouterSession extracts the Session from the router context
func GetRouterSession(ctx router.Context, key string) (*Session, bool) {
	if key == "" {
		key = DefaultSessionKey
	}
	raw := ctx.Locals(key)
	if raw == nil {
		return nil, false
	}
	session, ok := raw.(*Session)
	return session, ok && session != nil
}

// IsSignedIn reports whether the router context carries a session that is
// still usable at now.
func IsSignedIn(ctx router.Context, key string, now time.Time) bool {
	session, ok := GetRouterSession(ctx, key)
	return ok && session.Validate(now) == nil
}
