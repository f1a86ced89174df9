package navauth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventSignedIn         ActivityEventType = "auth.signed_in"
	ActivityEventSignedOut        ActivityEventType = "auth.signed_out"
	ActivityEventTokenRefreshed   ActivityEventType = "auth.token_refreshed"
	ActivityEventUserUpdated      ActivityEventType = "auth.user_updated"
	ActivityEventPasswordRecovery ActivityEventType = "auth.password_recovery"
	ActivityEventRedirected       ActivityEventType = "navigation.redirected"
)

// ActivityEvent captures analytics friendly information about a transition.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	Route      string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}

// ActivityTypeFor maps an auth event to its activity type.
func ActivityTypeFor(event AuthEvent) ActivityEventType {
	switch event {
	case EventSignedIn:
		return ActivityEventSignedIn
	case EventSignedOut:
		return ActivityEventSignedOut
	case EventTokenRefreshed:
		return ActivityEventTokenRefreshed
	case EventUserUpdated:
		return ActivityEventUserUpdated
	case EventPasswordRecovery:
		return ActivityEventPasswordRecovery
	}
	return ActivityEventType("auth." + string(event))
}

// AttachActivitySink subscribes sink to auth transitions on topic. Sink
// failures are logged, they never reach the bus.
func AttachActivitySink(bus *AuthBus, topic string, sink ActivitySink, logger Logger) (unsubscribe func()) {
	sink = normalizeActivitySink(sink)
	if logger == nil {
		logger = defLogger{}
	}
	return bus.On(topic, func(payload AuthEventPayload) error {
		event := ActivityEvent{
			EventType:  ActivityTypeFor(payload.Event),
			UserID:     payload.Session.GetUserID(),
			OccurredAt: payload.OccurredAt,
		}
		if event.OccurredAt.IsZero() {
			event.OccurredAt = time.Now()
		}
		if err := sink.Record(context.Background(), event); err != nil {
			logger.Warn("activity sink error", "error", err)
		}
		return nil
	})
}

// RedirectActivityHook records navigations that ended somewhere other than
// requested.
func RedirectActivityHook(sink ActivitySink, sessions SessionReader, logger Logger) AfterEachHook {
	sink = normalizeActivitySink(sink)
	if logger == nil {
		logger = defLogger{}
	}
	return func(result NavigationResult) {
		if !result.Redirected {
			return
		}
		var userID string
		if sessions != nil {
			userID = sessions.CurrentSession().GetUserID()
		}
		event := ActivityEvent{
			EventType: ActivityEventRedirected,
			UserID:    userID,
			Route:     result.To.Path,
			Metadata: map[string]any{
				"requested":  result.Requested.Path,
				"navigation": result.ID.String(),
			},
			OccurredAt: time.Now(),
		}
		if err := sink.Record(context.Background(), event); err != nil {
			logger.Warn("activity sink error", "error", err)
		}
	}
}
