package navauth

import "time"

// AuthEvent tags a session transition.
type AuthEvent string

const (
	EventSignedIn         AuthEvent = "SIGNED_IN"
	EventSignedOut        AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed   AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated      AuthEvent = "USER_UPDATED"
	EventPasswordRecovery AuthEvent = "PASSWORD_RECOVERY"
)

// TopicAuth is the bus topic carrying every AuthEvent. The name is kept
// for existing subscribers even though it is not limited to sign-ins.
const TopicAuth = "sign-in"

// Valid reports whether e is one of the known events.
func (e AuthEvent) Valid() bool {
	switch e {
	case EventSignedIn, EventSignedOut, EventTokenRefreshed, EventUserUpdated, EventPasswordRecovery:
		return true
	}
	return false
}

func (e AuthEvent) String() string {
	return string(e)
}

// AuthEventPayload is what the holder publishes on TopicAuth. Session is a
// copy; subscribers cannot reach the holder's cell through it.
type AuthEventPayload struct {
	Event      AuthEvent
	Session    *Session
	OccurredAt time.Time
}
