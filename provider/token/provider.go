package token

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-navauth"
	"github.com/google/uuid"
)

var _ navauth.AuthProvider = (*Provider)(nil)

type listener struct {
	id uuid.UUID
	fn func(navauth.AuthEvent, *navauth.Session)
}

// Provider is an in-memory AuthProvider that trusts a session only after
// its access token verifies.
type Provider struct {
	validator *TokenValidator
	now       func() time.Time
	logger    navauth.Logger

	mu        sync.Mutex
	session   *navauth.Session
	listeners []listener
}

// Option customizes a Provider.
type Option func(*Provider)

// WithClock injects the clock used for token verification and expiry.
func WithClock(clock func() time.Time) Option {
	return func(p *Provider) {
		if clock != nil {
			p.now = clock
		}
	}
}

// WithLogger overrides the provider logger.
func WithLogger(logger navauth.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithSession seeds the provider with a session, as if restored from storage.
func WithSession(session *navauth.Session) Option {
	return func(p *Provider) {
		p.session = session.Clone()
	}
}

// NewProvider returns a provider verifying tokens with validator.
func NewProvider(validator *TokenValidator, opts ...Option) *Provider {
	p := &Provider{
		validator: validator,
		now:       time.Now,
		logger:    nopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if validator != nil {
		validator.now = p.now
	}
	return p
}

// GetCurrentSession implements navauth.AuthProvider. An expired session is
// dropped and reported as absent.
func (p *Provider) GetCurrentSession(ctx context.Context) (*navauth.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session != nil && p.session.IsExpired(p.now()) {
		p.logger.Info("stored session expired", "user", p.session.UserID)
		p.session = nil
	}
	return p.session.Clone(), nil
}

// OnSessionChange implements navauth.AuthProvider.
func (p *Provider) OnSessionChange(fn func(navauth.AuthEvent, *navauth.Session)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}

	id := uuid.New()
	p.mu.Lock()
	p.listeners = append(p.listeners, listener{id: id, fn: fn})
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { p.removeListener(id) })
	}
}

// ExchangeCallback implements navauth.AuthProvider. The access token must
// verify; on success the session is stored and SIGNED_IN is reported.
func (p *Provider) ExchangeCallback(ctx context.Context, bundle navauth.TokenBundle) (*navauth.Session, error) {
	session, err := p.sessionFor(ctx, bundle)
	if err != nil {
		return nil, err
	}
	p.store(session)
	p.notify(navauth.EventSignedIn, session)
	return session.Clone(), nil
}

// Recover exchanges a password recovery bundle and reports PASSWORD_RECOVERY.
func (p *Provider) Recover(ctx context.Context, bundle navauth.TokenBundle) (*navauth.Session, error) {
	session, err := p.sessionFor(ctx, bundle)
	if err != nil {
		return nil, err
	}
	p.store(session)
	p.notify(navauth.EventPasswordRecovery, session)
	return session.Clone(), nil
}

// Refresh replaces the tokens of the current session. The new access token
// must belong to the same subject.
func (p *Provider) Refresh(ctx context.Context, bundle navauth.TokenBundle) (*navauth.Session, error) {
	session, err := p.sessionFor(ctx, bundle)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	current := p.session
	if current == nil {
		p.mu.Unlock()
		return nil, ErrNoSession
	}
	if current.UserID != session.UserID {
		p.mu.Unlock()
		clone := ErrSubjectChanged.Clone()
		return nil, clone.WithMetadata(map[string]any{
			"current": current.UserID,
			"refresh": session.UserID,
		})
	}
	p.session = session
	p.mu.Unlock()

	p.notify(navauth.EventTokenRefreshed, session)
	return session.Clone(), nil
}

// UpdateUser replaces the identity attached to the current session.
func (p *Provider) UpdateUser(ctx context.Context, identity navauth.UserIdentity) (*navauth.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.session == nil {
		p.mu.Unlock()
		return nil, ErrNoSession
	}
	identity.UserID = p.session.UserID
	next := p.session.Clone()
	next.Identity = identity
	p.session = next
	p.mu.Unlock()

	p.notify(navauth.EventUserUpdated, next)
	return next.Clone(), nil
}

// SignOut drops the session and reports SIGNED_OUT.
func (p *Provider) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.store(nil)
	p.notify(navauth.EventSignedOut, nil)
	return nil
}

func (p *Provider) sessionFor(ctx context.Context, bundle navauth.TokenBundle) (*navauth.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.validator == nil {
		return nil, ErrTokenMalformed
	}

	claims, err := p.validator.Validate(bundle.AccessToken)
	if err != nil {
		p.logger.Warn("access token rejected", "error", err)
		return nil, err
	}
	return SessionFromClaims(claims, bundle, p.now())
}

func (p *Provider) store(session *navauth.Session) {
	p.mu.Lock()
	p.session = session
	p.mu.Unlock()
}

func (p *Provider) notify(event navauth.AuthEvent, session *navauth.Session) {
	p.mu.Lock()
	listeners := make([]listener, len(p.listeners))
	copy(listeners, p.listeners)
	p.mu.Unlock()

	p.logger.Debug("session change", "event", event.String(), "user", session.GetUserID())
	for _, l := range listeners {
		l.fn(event, session.Clone())
	}
}

func (p *Provider) removeListener(id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, l := range p.listeners {
		if l.id == id {
			p.listeners = append(p.listeners[:i:i], p.listeners[i+1:]...)
			return
		}
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
