package navauth

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Subscription is returned by OnChange.
type Subscription struct {
	id     uuid.UUID
	cancel func()
	once   sync.Once
}

// ID identifies the subscription in logs.
func (s *Subscription) ID() uuid.UUID {
	return s.id
}

// Unsubscribe stops delivery. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.cancel == nil {
		return
	}
	s.once.Do(s.cancel)
}

type holderListener struct {
	id uuid.UUID
	fn SessionListener
}

// SessionHolder owns the session cell. It is the only writer: provider
// notifications are queued on the loop and applied there, while reads are
// lock free and always return the last applied value.
type SessionHolder struct {
	provider AuthProvider
	loop     *Loop
	bus      *AuthBus
	topic    string
	now      func() time.Time
	logger   Logger

	current  atomic.Pointer[Session]
	resolved atomic.Bool
	applied  atomic.Uint64

	mu                sync.Mutex
	listeners         []holderListener
	resolvedListeners []func()
	providerOff       func()
	started           bool
	// bounds provider calls made on behalf of the holder
	lifetime context.Context
	cancel   context.CancelFunc
}

// HolderOption customizes a SessionHolder.
type HolderOption func(*SessionHolder)

// WithHolderClock injects the clock used for expiry checks (useful for tests).
func WithHolderClock(clock func() time.Time) HolderOption {
	return func(h *SessionHolder) {
		if clock != nil {
			h.now = clock
		}
	}
}

// WithHolderLogger overrides the holder logger.
func WithHolderLogger(logger Logger) HolderOption {
	return func(h *SessionHolder) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithHolderTopic overrides the bus topic transitions are published on.
func WithHolderTopic(topic string) HolderOption {
	return func(h *SessionHolder) {
		if topic != "" {
			h.topic = topic
		}
	}
}

// NewSessionHolder builds a holder. Call Start to hook the provider.
func NewSessionHolder(provider AuthProvider, loop *Loop, bus *AuthBus, opts ...HolderOption) *SessionHolder {
	h := &SessionHolder{
		provider: provider,
		loop:     loop,
		bus:      bus,
		topic:    TopicAuth,
		now:      time.Now,
		logger:   defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.loop == nil {
		h.loop = NewLoop(WithLoopLogger(h.logger))
	}
	if h.bus == nil {
		h.bus = NewAuthBus(WithBusLogger(h.logger))
	}
	h.lifetime, h.cancel = context.WithCancel(context.Background())
	return h
}

// CurrentSession returns the last applied session, nil when Absent or not
// yet resolved. Never blocks.
func (h *SessionHolder) CurrentSession() *Session {
	return h.current.Load()
}

// Resolved reports whether the initial resolution (or any provider event)
// has been applied.
func (h *SessionHolder) Resolved() bool {
	return h.resolved.Load()
}

// Loop returns the loop the holder applies transitions on.
func (h *SessionHolder) Loop() *Loop {
	return h.loop
}

// Bus returns the bus transitions are published on.
func (h *SessionHolder) Bus() *AuthBus {
	return h.bus
}

// OnChange registers listener for every applied transition.
func (h *SessionHolder) OnChange(listener SessionListener) *Subscription {
	sub := &Subscription{id: uuid.New()}
	if listener == nil {
		return sub
	}

	h.mu.Lock()
	h.listeners = append(h.listeners, holderListener{id: sub.id, fn: listener})
	h.mu.Unlock()

	sub.cancel = func() { h.removeListener(sub.id) }
	return sub
}

// OnResolved registers a one-shot callback run on the loop once the session
// is resolved. If it already is, fn is scheduled right away.
func (h *SessionHolder) OnResolved(fn func()) {
	if fn == nil {
		return
	}

	h.mu.Lock()
	if !h.resolved.Load() {
		h.resolvedListeners = append(h.resolvedListeners, fn)
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	if err := h.loop.Post(Task(fn)); err != nil {
		h.logger.Warn("unable to schedule resolved listener", "error", err)
	}
}

// Start subscribes to provider notifications and resolves the initial
// session off the loop. Until resolution completes the session is Absent.
func (h *SessionHolder) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return
	}
	h.started = true
	h.cancel()
	h.lifetime, h.cancel = context.WithCancel(ctx)
	ctx = h.lifetime
	h.mu.Unlock()

	if h.provider == nil {
		h.post(func() { h.resolve(nil, sessionResolutionError("no auth provider configured")) })
		return
	}

	off := h.provider.OnSessionChange(h.HandleProviderEvent)

	h.mu.Lock()
	h.providerOff = off
	h.mu.Unlock()

	go func() {
		session, err := h.provider.GetCurrentSession(ctx)
		h.post(func() { h.resolve(session, err) })
	}()
}

// Stop removes the provider registration and cancels pending provider
// calls.
func (h *SessionHolder) Stop() {
	h.mu.Lock()
	off := h.providerOff
	h.providerOff = nil
	h.cancel()
	h.mu.Unlock()

	if off != nil {
		off()
	}
}

// HandleProviderEvent queues a provider notification. It may be called from
// any goroutine; transitions apply on the loop in arrival order.
func (h *SessionHolder) HandleProviderEvent(event AuthEvent, session *Session) {
	session = session.Clone()
	h.post(func() { h.apply(event, session) })
}

// Exchange hands a callback bundle to the provider off the loop. The
// provider reports the resulting transition through OnSessionChange. The
// returned channel yields the exchange error, nil on success. The call is
// cancelled when ctx ends or the holder stops.
func (h *SessionHolder) Exchange(ctx context.Context, bundle TokenBundle) <-chan error {
	done := make(chan error, 1)
	if h.provider == nil {
		done <- sessionResolutionError("no auth provider configured")
		return done
	}

	ctx, cancel := h.exchangeContext(ctx)
	go func() {
		defer cancel()
		_, err := h.provider.ExchangeCallback(ctx, bundle)
		if err != nil {
			h.logger.Warn("callback exchange failed, session unchanged", "error", err)
		}
		done <- err
	}()
	return done
}

// exchangeContext derives from the holder lifetime and also ends with ctx.
func (h *SessionHolder) exchangeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	h.mu.Lock()
	lifetime := h.lifetime
	h.mu.Unlock()

	derived, cancel := context.WithCancel(lifetime)
	if ctx == nil {
		return derived, cancel
	}
	stop := context.AfterFunc(ctx, cancel)
	return derived, func() {
		stop()
		cancel()
	}
}

func (h *SessionHolder) post(task Task) {
	if err := h.loop.Post(task); err != nil {
		h.logger.Warn("unable to schedule session update", "error", err)
	}
}

func (h *SessionHolder) resolve(session *Session, err error) {
	if h.applied.Load() > 0 {
		// a provider event already superseded the initial lookup
		h.markResolved()
		return
	}

	if err != nil {
		h.logger.Warn("session resolution failed, treating as signed out", "error", err)
		session = nil
	}
	h.current.Store(h.validated(session))
	h.markResolved()
}

func (h *SessionHolder) apply(event AuthEvent, session *Session) {
	if !event.Valid() {
		h.logger.Warn("ignoring unknown provider event", "event", string(event))
		return
	}

	next := session
	if event == EventSignedOut {
		next = nil
	}
	next = h.validated(next)

	h.current.Store(next)
	h.applied.Add(1)
	h.markResolved()

	h.logger.Debug("session transition applied", "event", string(event), "present", IsPresent(next))

	h.mu.Lock()
	listeners := make([]holderListener, len(h.listeners))
	copy(listeners, h.listeners)
	h.mu.Unlock()

	for _, l := range listeners {
		h.notify(l, next.Clone(), event)
	}

	h.bus.Emit(h.topic, AuthEventPayload{
		Event:      event,
		Session:    next.Clone(),
		OccurredAt: h.now(),
	})
}

func (h *SessionHolder) validated(session *Session) *Session {
	if session == nil {
		return nil
	}
	if err := session.Validate(h.now()); err != nil {
		h.logger.Warn("discarding untrusted session", "error", err)
		return nil
	}
	return session
}

func (h *SessionHolder) markResolved() {
	h.mu.Lock()
	if h.resolved.Load() {
		h.mu.Unlock()
		return
	}
	h.resolved.Store(true)
	pending := h.resolvedListeners
	h.resolvedListeners = nil
	h.mu.Unlock()

	for _, fn := range pending {
		h.safeCall(fn)
	}
}

func (h *SessionHolder) notify(l holderListener, session *Session, event AuthEvent) {
	h.safeCall(func() { l.fn(session, event) })
}

func (h *SessionHolder) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("session listener panicked", "panic", r)
		}
	}()
	fn()
}

func (h *SessionHolder) removeListener(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, l := range h.listeners {
		if l.id == id {
			h.listeners = append(h.listeners[:i:i], h.listeners[i+1:]...)
			return
		}
	}
}
