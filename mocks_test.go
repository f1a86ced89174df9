package navauth_test

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-navauth"
	"github.com/stretchr/testify/mock"
)

// MockProvider implements navauth.AuthProvider
type MockProvider struct {
	mock.Mock

	mu        sync.Mutex
	listeners []func(navauth.AuthEvent, *navauth.Session)
}

func (m *MockProvider) GetCurrentSession(ctx context.Context) (*navauth.Session, error) {
	args := m.Called(ctx)
	session, _ := args.Get(0).(*navauth.Session)
	return session, args.Error(1)
}

func (m *MockProvider) OnSessionChange(fn func(navauth.AuthEvent, *navauth.Session)) func() {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.listeners = nil
		m.mu.Unlock()
	}
}

func (m *MockProvider) ExchangeCallback(ctx context.Context, bundle navauth.TokenBundle) (*navauth.Session, error) {
	args := m.Called(ctx, bundle)
	session, _ := args.Get(0).(*navauth.Session)
	return session, args.Error(1)
}

// Emit reports a provider side transition, like the real provider would.
func (m *MockProvider) Emit(event navauth.AuthEvent, session *navauth.Session) {
	m.mu.Lock()
	listeners := append([]func(navauth.AuthEvent, *navauth.Session){}, m.listeners...)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(event, session)
	}
}

func (m *MockProvider) Listeners() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

func newMockProvider(session *navauth.Session) *MockProvider {
	p := &MockProvider{}
	p.On("GetCurrentSession", mock.Anything).Return(session, nil)
	return p
}

func validSession(userID string) *navauth.Session {
	return &navauth.Session{
		UserID:    userID,
		Identity:  navauth.UserIdentity{UserID: userID, UserEmail: userID + "@example.com"},
		Tokens:    navauth.Tokens{AccessToken: "access-" + userID, TokenType: "bearer"},
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

var quietLogs = navauth.LoggerProviderFunc(func(string) navauth.Logger { return nopLogger{} })
