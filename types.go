package navauth

import (
	"context"
	"fmt"
)

// Logger is the structured logger used across the package. Args are
// key/value pairs, which matches glog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// LoggerProvider hands out named loggers.
type LoggerProvider interface {
	GetLogger(name string) Logger
}

// LoggerProviderFunc adapts a function to LoggerProvider.
type LoggerProviderFunc func(name string) Logger

// GetLogger implements LoggerProvider.
func (f LoggerProviderFunc) GetLogger(name string) Logger {
	if f == nil {
		return defLogger{}
	}
	if lgr := f(name); lgr != nil {
		return lgr
	}
	return defLogger{}
}

// Identity holds the attributes of a signed-in identity
type Identity interface {
	ID() string
	Username() string
	Email() string
	Role() string
}

// SessionListener is invoked with the new session and the event that caused it.
// A nil session means Absent.
type SessionListener func(session *Session, event AuthEvent)

// AuthProvider is the narrow capability surface of the external auth
// provider. Implementations own credential storage and token issuance.
type AuthProvider interface {
	// GetCurrentSession returns the provider's best-effort view of the
	// session, nil when nobody is signed in.
	GetCurrentSession(ctx context.Context) (*Session, error)
	// OnSessionChange registers for provider originated transitions. The
	// returned function removes the registration.
	OnSessionChange(fn func(event AuthEvent, session *Session)) (unsubscribe func())
	// ExchangeCallback trades a callback token bundle for a session.
	ExchangeCallback(ctx context.Context, bundle TokenBundle) (*Session, error)
}

// SessionReader is the read side of the session cell.
type SessionReader interface {
	CurrentSession() *Session
}

// SessionReaderFunc adapts a function to SessionReader.
type SessionReaderFunc func() *Session

// CurrentSession implements SessionReader.
func (f SessionReaderFunc) CurrentSession() *Session {
	if f == nil {
		return nil
	}
	return f()
}

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Println(format("[DBG] NAVAUTH", msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Println(format("[INF] NAVAUTH", msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Println(format("[WRN] NAVAUTH", msg, args...))
}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Println(format("[ERR] NAVAUTH", msg, args...))
}

func format(prefix, msg string, args ...any) string {
	out := prefix + " " + msg
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			out += fmt.Sprintf(" %v=%v", args[i], args[i+1])
		} else {
			out += fmt.Sprintf(" %v", args[i])
		}
	}
	return out
}

func loggerFrom(provider LoggerProvider, name string) Logger {
	if provider == nil {
		return defLogger{}
	}
	if lgr := provider.GetLogger(name); lgr != nil {
		return lgr
	}
	return defLogger{}
}
