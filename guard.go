package navauth

import (
	"strings"

	"github.com/google/uuid"
)

// DecisionKind is the outcome class of a guard evaluation.
type DecisionKind int

const (
	DecisionAllow DecisionKind = iota
	DecisionRedirect
)

// Decision is what a guard returns for a navigation.
type Decision struct {
	Kind DecisionKind
	Path string
}

// Allow lets the navigation proceed.
func Allow() Decision {
	return Decision{Kind: DecisionAllow}
}

// RedirectTo sends the navigation to path instead.
func RedirectTo(path string) Decision {
	return Decision{Kind: DecisionRedirect, Path: path}
}

// IsRedirect reports whether d redirects.
func (d Decision) IsRedirect() bool {
	return d.Kind == DecisionRedirect
}

func (d Decision) String() string {
	if d.IsRedirect() {
		return "redirect:" + d.Path
	}
	return "allow"
}

// Navigation describes one navigation attempt.
type Navigation struct {
	ID   uuid.UUID
	From Location
	To   Location
}

// GuardContext is handed to route guards. Session is the snapshot the
// engine read when the evaluation started.
type GuardContext struct {
	Navigation Navigation
	Route      *Route
	Session    *Session
	Config     Config
}

// RouteGuard is a per-route check run after the requirement check.
type RouteGuard func(gc GuardContext) Decision

// GuardEngine decides whether a navigation may proceed.
type GuardEngine struct {
	sessions SessionReader
	config   Config
	logger   Logger
}

// GuardOption customizes a GuardEngine.
type GuardOption func(*GuardEngine)

// WithGuardLogger overrides the engine logger.
func WithGuardLogger(logger Logger) GuardOption {
	return func(e *GuardEngine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithGuardConfig overrides the engine configuration.
func WithGuardConfig(cfg Config) GuardOption {
	return func(e *GuardEngine) {
		if cfg != nil {
			e.config = cfg
		}
	}
}

// NewGuardEngine returns an engine reading sessions from sessions.
func NewGuardEngine(sessions SessionReader, opts ...GuardOption) *GuardEngine {
	e := &GuardEngine{
		sessions: sessions,
		config:   DefaultOptions(),
		logger:   defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Evaluate checks a single route for nav.
func (e *GuardEngine) Evaluate(route *Route, nav Navigation) Decision {
	return e.evaluate(route, nav, e.snapshot(), true)
}

// EvaluateChain checks every route in match, parent first. The first
// redirect wins and the rest of the chain is skipped.
func (e *GuardEngine) EvaluateChain(match Match, nav Navigation) Decision {
	return e.evaluateChain(match, nav, true)
}

// EvaluateRequirements is EvaluateChain without per-route guards. Used to
// re-check a settled navigation after the session changed, where running
// side-effecting guards again is not wanted.
func (e *GuardEngine) EvaluateRequirements(match Match, nav Navigation) Decision {
	return e.evaluateChain(match, nav, false)
}

func (e *GuardEngine) evaluateChain(match Match, nav Navigation, withGuards bool) Decision {
	session := e.snapshot()
	for _, route := range match.Chain {
		if d := e.evaluate(route, nav, session, withGuards); d.IsRedirect() {
			e.logger.Debug("guard redirect",
				"navigation", nav.ID.String(),
				"route", route.Name,
				"to", nav.To.String(),
				"redirect", d.Path,
			)
			return d
		}
	}
	return Allow()
}

func (e *GuardEngine) snapshot() *Session {
	if e.sessions == nil {
		return nil
	}
	return e.sessions.CurrentSession()
}

func (e *GuardEngine) evaluate(route *Route, nav Navigation, session *Session, withGuards bool) Decision {
	if route == nil {
		return Allow()
	}

	switch route.Requirement {
	case RequiresAuth:
		if !IsPresent(session) {
			return RedirectTo(e.config.GetSignInPath())
		}
	case RequiresNoAuth:
		if IsPresent(session) {
			return RedirectTo(e.config.GetHomePath())
		}
	}

	if !withGuards {
		return Allow()
	}

	gc := GuardContext{
		Navigation: nav,
		Route:      route,
		Session:    session,
		Config:     e.config,
	}
	for _, guard := range route.Guards {
		if guard == nil {
			continue
		}
		if d := guard(gc); d.IsRedirect() {
			return d
		}
	}
	return Allow()
}

// RecoveryGuard protects the password reset route. Navigations whose
// fragment carries the recovery marker are allowed; anything else is sent
// home when signed in and to sign in otherwise.
func RecoveryGuard() RouteGuard {
	return func(gc GuardContext) Decision {
		if strings.Contains(gc.Navigation.To.Fragment, gc.Config.GetRecoveryMarker()) {
			return Allow()
		}
		if IsPresent(gc.Session) {
			return RedirectTo(gc.Config.GetHomePath())
		}
		return RedirectTo(gc.Config.GetSignInPath())
	}
}
