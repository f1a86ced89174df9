package navguard

import (
	"context"
	"net/http"

	"github.com/goliatone/go-navauth"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// DefaultContextKey is where the matched navigation is stored when
// Config.ContextKey is not set and StoreMatch is enabled.
const DefaultContextKey = "navigation"

// Config configures the page guard middleware.
type Config struct {
	// Skip bypasses the guard when it returns true.
	Skip func(router.Context) bool

	// Routes is the route table requests are matched against.
	Routes *navauth.RouteTable

	// Options supplies sign in and home paths. Default: navauth.DefaultOptions.
	Options navauth.Config

	// SessionSource returns the session of the request, nil when absent.
	// Default: reads a *navauth.Session from ctx.Locals(SessionKey).
	SessionSource func(router.Context) *navauth.Session

	// SessionKey is the locals key read by the default SessionSource.
	// Default: "session"
	SessionKey string

	// RedirectStatus is the status used by the default RedirectHandler.
	// Default: 303 See Other
	RedirectStatus int

	// RedirectHandler answers a redirect decision.
	RedirectHandler func(router.Context, navauth.Decision) error

	// StoreMatch stores the matched Result in ctx.Locals(ContextKey).
	StoreMatch bool
	ContextKey string

	Logger navauth.Logger
}

// Result is what the guard stores for downstream handlers.
type Result struct {
	Navigation navauth.Navigation
	Route      *navauth.Route
	Decision   navauth.Decision
}

// New returns a middleware applying route requirements to page requests.
// Fragments never reach the server, so only requirement checks run here;
// recovery and callback checks belong to the client router.
func New(config Config) router.MiddlewareFunc {
	cfg := configDefault(config)
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return ctx.Next()
			}

			loc := navauth.ParseLocation(ctx.OriginalURL())
			match, ok := cfg.Routes.Match(loc.Path)
			if !ok {
				return ctx.Next()
			}

			session := cfg.SessionSource(ctx)
			engine := navauth.NewGuardEngine(
				navauth.SessionReaderFunc(func() *navauth.Session { return session }),
				navauth.WithGuardConfig(cfg.Options),
				navauth.WithGuardLogger(cfg.Logger),
			)

			nav := navauth.Navigation{ID: uuid.New(), To: loc}
			decision := engine.EvaluateRequirements(match, nav)

			if cfg.StoreMatch {
				ctx.Locals(cfg.ContextKey, Result{
					Navigation: nav,
					Route:      match.Leaf(),
					Decision:   decision,
				})
			}

			if decision.IsRedirect() {
				cfg.Logger.Debug("page request redirected",
					"path", loc.Path,
					"redirect", decision.Path,
					"user", session.GetUserID(),
				)
				return cfg.RedirectHandler(ctx, decision)
			}
			return ctx.Next()
		}
	}
}

func configDefault(config Config) Config {
	cfg := config

	if cfg.Routes == nil {
		table, err := navauth.NewRouteTable(navauth.StorefrontRoutes())
		if err != nil {
			panic("NAVGUARD: storefront route table: " + err.Error())
		}
		cfg.Routes = table
	}

	if cfg.Options == nil {
		cfg.Options = navauth.DefaultOptions()
	}

	if cfg.SessionKey == "" {
		cfg.SessionKey = navauth.DefaultSessionKey
	}

	if cfg.SessionSource == nil {
		key := cfg.SessionKey
		cfg.SessionSource = func(ctx router.Context) *navauth.Session {
			session, _ := navauth.GetRouterSession(ctx, key)
			return session
		}
	}

	if cfg.RedirectStatus == 0 {
		cfg.RedirectStatus = http.StatusSeeOther
	}

	if cfg.RedirectHandler == nil {
		status := cfg.RedirectStatus
		cfg.RedirectHandler = func(ctx router.Context, d navauth.Decision) error {
			return ctx.Redirect(d.Path, status)
		}
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}

	return cfg
}

// Exchanger trades a callback bundle for a session.
type Exchanger interface {
	ExchangeCallback(ctx context.Context, bundle navauth.TokenBundle) (*navauth.Session, error)
}

// CallbackHandler accepts the callback fragment posted by the client in the
// "fragment" form field and exchanges it with the provider. Rejections carry
// the home path under "redirect".
func CallbackHandler(exchanger Exchanger, logger navauth.Logger) router.HandlerFunc {
	if logger == nil {
		logger = nopLogger{}
	}
	home := navauth.DefaultOptions().GetHomePath()
	return func(ctx router.Context) error {
		bundle, err := navauth.ResolveCallback(ctx.FormValue("fragment"))
		if err != nil {
			logger.Info("callback rejected", "error", err)
			return ctx.JSON(router.StatusBadRequest, map[string]any{
				"error":    err.Error(),
				"missing":  navauth.MissingCallbackFields(err),
				"redirect": home,
			})
		}

		session, err := exchanger.ExchangeCallback(ctx.Context(), bundle)
		if err != nil {
			logger.Warn("callback exchange failed", "error", err)
			return ctx.JSON(router.StatusUnauthorized, map[string]any{
				"error":    err.Error(),
				"redirect": home,
			})
		}

		return ctx.JSON(router.StatusOK, map[string]any{
			"user_id":    session.GetUserID(),
			"expires_at": session.GetExpiresAt(),
		})
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
