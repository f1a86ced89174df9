package navauth

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// NavigationState is the router state for the latest navigation attempt.
type NavigationState int

const (
	StateIdle NavigationState = iota
	StateNavigating
	StateSettled
)

func (s NavigationState) String() string {
	switch s {
	case StateNavigating:
		return "navigating"
	case StateSettled:
		return "settled"
	default:
		return "idle"
	}
}

// NavigationStatus is how a navigation attempt ended.
type NavigationStatus string

const (
	NavigationCommitted NavigationStatus = "committed"
	NavigationCancelled NavigationStatus = "cancelled"
	NavigationAborted   NavigationStatus = "aborted"
)

// NavigationResult reports the outcome of a navigation attempt.
type NavigationResult struct {
	ID         uuid.UUID
	From       Location
	Requested  Location
	To         Location
	Route      *Route
	Redirected bool
	Status     NavigationStatus
	Err        error
}

// AfterEachHook runs after a navigation commits.
type AfterEachHook func(result NavigationResult)

// Router owns the route table and serializes navigations on the loop. The
// most recent navigation request always wins; stale ones never commit.
type Router struct {
	table  *RouteTable
	engine *GuardEngine
	holder *SessionHolder
	loop   *Loop
	config Config
	logger Logger

	generation atomic.Uint64

	mu        sync.RWMutex
	state     NavigationState
	current   Location
	route     *Route
	requested Location
	// navigation id and generation of the last commit
	committedID  uuid.UUID
	committedGen uint64
	// requirement-only decision for requested at commit time
	requestedDecision Decision
	afterEach         []AfterEachHook

	busOff  func()
	started bool
}

// RouterOption customizes a Router.
type RouterOption func(*Router)

// WithRouterConfig overrides the router configuration.
func WithRouterConfig(cfg Config) RouterOption {
	return func(r *Router) {
		if cfg != nil {
			r.config = cfg
		}
	}
}

// WithRouterLogger overrides the router logger.
func WithRouterLogger(logger Logger) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithAfterEach registers a hook run after every committed navigation.
func WithAfterEach(hook AfterEachHook) RouterOption {
	return func(r *Router) {
		if hook != nil {
			r.afterEach = append(r.afterEach, hook)
		}
	}
}

// NewRouter validates routes and wires the guard engine and the callback
// resolver into the table. Call Start to react to auth events.
func NewRouter(routes []Route, holder *SessionHolder, opts ...RouterOption) (*Router, error) {
	table, err := NewRouteTable(routes)
	if err != nil {
		return nil, err
	}

	r := &Router{
		table:  table,
		holder: holder,
		config: DefaultOptions(),
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	if r.holder == nil {
		r.holder = NewSessionHolder(nil, nil, nil, WithHolderLogger(r.logger))
	}
	r.loop = r.holder.Loop()
	r.engine = NewGuardEngine(r.holder, WithGuardConfig(r.config), WithGuardLogger(r.logger))

	table.addGuard(r.config.GetResetPasswordRouteName(), RecoveryGuard())
	table.addGuard(r.config.GetCallbackRouteName(), CallbackGuard(r.holder, r.logger, r.exchangeFailed))

	return r, nil
}

// Table returns the route table.
func (r *Router) Table() *RouteTable {
	return r.table
}

// Engine returns the guard engine.
func (r *Router) Engine() *GuardEngine {
	return r.engine
}

// Start subscribes the router to auth events and to session resolution.
func (r *Router) Start() {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.mu.Unlock()

	off := r.holder.Bus().On(r.config.GetEventTopic(), r.handleAuthEvent)

	r.mu.Lock()
	r.busOff = off
	r.mu.Unlock()

	r.holder.OnResolved(r.reevaluate)
}

// Stop removes the bus subscription.
func (r *Router) Stop() {
	r.mu.Lock()
	off := r.busOff
	r.busOff = nil
	r.started = false
	r.mu.Unlock()

	if off != nil {
		off()
	}
}

// State returns the state of the latest navigation.
func (r *Router) State() NavigationState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Current returns the settled location.
func (r *Router) Current() Location {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// CurrentRoute returns the settled leaf route, nil before the first commit.
func (r *Router) CurrentRoute() *Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.route
}

// OnAfterEach registers a hook run after every committed navigation.
func (r *Router) OnAfterEach(hook AfterEachHook) {
	if hook == nil {
		return
	}
	r.mu.Lock()
	r.afterEach = append(r.afterEach, hook)
	r.mu.Unlock()
}

// Push schedules a navigation to target ("/path#fragment").
func (r *Router) Push(target string) (uuid.UUID, error) {
	return r.schedule(ParseLocation(target), nil)
}

// PushNamed schedules a navigation to the route registered under name.
func (r *Router) PushNamed(name string) (uuid.UUID, error) {
	route, ok := r.table.FindByName(name)
	if !ok {
		return uuid.Nil, withMetadata(ErrRouteNotFound, "", map[string]any{"name": name})
	}
	return r.schedule(Location{Path: normalizePath(route.Path)}, nil)
}

// Navigate schedules a navigation and waits for its outcome. The loop must
// be running on another goroutine.
func (r *Router) Navigate(ctx context.Context, target string) (NavigationResult, error) {
	done := make(chan NavigationResult, 1)
	if _, err := r.schedule(ParseLocation(target), done); err != nil {
		return NavigationResult{}, err
	}

	select {
	case <-ctx.Done():
		return NavigationResult{}, ctx.Err()
	case res := <-done:
		return res, res.Err
	}
}

func (r *Router) schedule(loc Location, done chan NavigationResult) (uuid.UUID, error) {
	gen := r.generation.Add(1)
	id := uuid.New()
	r.setState(StateNavigating)

	err := r.loop.Post(func() {
		r.run(gen, id, loc, done)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// run evaluates and commits one navigation. It always executes on the loop.
func (r *Router) run(gen uint64, id uuid.UUID, requested Location, done chan NavigationResult) {
	from := r.Current()
	result := NavigationResult{
		ID:        id,
		From:      from,
		Requested: requested,
	}

	if r.stale(gen) {
		r.finish(gen, result, NavigationCancelled, done)
		return
	}

	target := requested
	for hops := 0; ; hops++ {
		match, _ := r.table.Match(target.Path)
		nav := Navigation{ID: id, From: from, To: target}
		decision := r.engine.EvaluateChain(match, nav)

		if r.stale(gen) {
			r.finish(gen, result, NavigationCancelled, done)
			return
		}

		if !decision.IsRedirect() {
			result.To = target
			result.Route = match.Leaf()
			break
		}

		if hops+1 > r.config.GetMaxRedirects() {
			result.Err = withMetadata(ErrRedirectLoop, "", map[string]any{
				"requested": requested.String(),
				"last":      decision.Path,
				"hops":      hops + 1,
			})
			r.logger.Error("navigation aborted", "navigation", id.String(), "error", result.Err)
			r.finish(gen, result, NavigationAborted, done)
			return
		}

		result.Redirected = true
		target = ParseLocation(decision.Path)
	}

	requestedMatch, _ := r.table.Match(requested.Path)
	requirementDecision := r.engine.EvaluateRequirements(requestedMatch, Navigation{ID: id, From: from, To: requested})

	r.mu.Lock()
	r.current = result.To
	r.route = result.Route
	r.committedID = id
	r.committedGen = gen
	r.requested = requested
	r.requestedDecision = requirementDecision
	r.state = StateSettled
	hooks := make([]AfterEachHook, len(r.afterEach))
	copy(hooks, r.afterEach)
	r.mu.Unlock()

	r.logger.Debug("navigation committed",
		"navigation", id.String(),
		"from", from.String(),
		"to", result.To.String(),
		"redirected", result.Redirected,
	)

	result.Status = NavigationCommitted
	for _, hook := range hooks {
		r.safeHook(hook, result)
	}
	r.deliver(result, done)
}

func (r *Router) setState(state NavigationState) {
	r.mu.Lock()
	r.state = state
	r.mu.Unlock()
}

func (r *Router) stale(gen uint64) bool {
	return gen != r.generation.Load()
}

func (r *Router) finish(gen uint64, result NavigationResult, status NavigationStatus, done chan NavigationResult) {
	result.Status = status
	if status == NavigationCancelled {
		result.Err = withMetadata(ErrNavigationCancelled, "", map[string]any{
			"navigation": result.ID.String(),
			"requested":  result.Requested.String(),
		})
	}

	// an aborted navigation of the latest request leaves the old route settled
	if status == NavigationAborted && !r.stale(gen) {
		r.setState(StateSettled)
	}
	r.deliver(result, done)
}

func (r *Router) deliver(result NavigationResult, done chan NavigationResult) {
	if done == nil {
		return
	}
	select {
	case done <- result:
	default:
	}
}

func (r *Router) safeHook(hook AfterEachHook, result NavigationResult) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("after each hook panicked", "panic", rec)
		}
	}()
	hook(result)
}

// handleAuthEvent runs inside the holder transition, on the loop.
func (r *Router) handleAuthEvent(payload AuthEventPayload) error {
	switch payload.Event {
	case EventSignedOut:
		r.logger.Info("signed out, forcing sign in", "path", r.config.GetSignInPath())
		_, err := r.Push(r.config.GetSignInPath())
		return err
	case EventSignedIn:
		route := r.CurrentRoute()
		if route == nil || route.Name != r.config.GetCallbackRouteName() {
			return nil
		}
		home, ok := r.table.FindByName(r.config.GetHomeRouteName())
		if !ok {
			return withMetadata(ErrRouteNotFound, "", map[string]any{"name": r.config.GetHomeRouteName()})
		}
		loc := Location{Path: normalizePath(home.Path)}
		// one-shot: leave the callback view after the exchange settles
		gen := r.generation.Add(1)
		r.setState(StateNavigating)
		_, err := r.loop.Defer(func() {
			r.run(gen, uuid.New(), loc, nil)
		})
		return err
	}
	return nil
}

// exchangeFailed leaves the callback view when the exchange started by
// nav is rejected. A newer navigation wins.
func (r *Router) exchangeFailed(nav Navigation, err error) {
	r.logger.Warn("callback exchange failed, returning home",
		"navigation", nav.ID.String(),
		"error", err,
	)
	postErr := r.loop.Post(func() {
		r.mu.RLock()
		id, gen := r.committedID, r.committedGen
		r.mu.RUnlock()

		if id != nav.ID || r.stale(gen) {
			return
		}
		if _, err := r.schedule(Location{Path: r.config.GetHomePath()}, nil); err != nil {
			r.logger.Warn("unable to leave callback view", "error", err)
		}
	})
	if postErr != nil {
		r.logger.Warn("unable to leave callback view", "error", postErr)
	}
}

// reevaluate re-checks the last requested target once the session is
// resolved and navigates again if the decision changed.
func (r *Router) reevaluate() {
	r.mu.RLock()
	state := r.state
	requested := r.requested
	previous := r.requestedDecision
	r.mu.RUnlock()

	if state != StateSettled {
		return
	}

	match, _ := r.table.Match(requested.Path)
	decision := r.engine.EvaluateRequirements(match, Navigation{
		ID:   uuid.New(),
		From: r.Current(),
		To:   requested,
	})
	if decision == previous {
		return
	}

	r.logger.Debug("session resolved, decision changed",
		"requested", requested.String(),
		"before", previous.String(),
		"after", decision.String(),
	)
	if _, err := r.schedule(requested, nil); err != nil {
		r.logger.Warn("unable to re-navigate after session resolution", "error", err)
	}
}
