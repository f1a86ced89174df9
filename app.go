package navauth

import (
	"context"
	"sync"
	"time"
)

// App bundles the per-application pieces: one loop, one bus, one session
// holder and one router. Their lifecycle is bound to Start and Stop.
type App struct {
	loop   *Loop
	bus    *AuthBus
	holder *SessionHolder
	router *Router
	config Config
	logger Logger

	mu          sync.Mutex
	activityOff func()
}

// AppOption customizes an App.
type AppOption func(*appOptions)

type appOptions struct {
	config         Config
	loggerProvider LoggerProvider
	clock          func() time.Time
	activity       ActivitySink
	afterEach      []AfterEachHook
}

// WithConfig sets the navigation options.
func WithConfig(cfg Config) AppOption {
	return func(o *appOptions) {
		if cfg != nil {
			o.config = cfg
		}
	}
}

// WithLoggerProvider sets the provider used to name component loggers.
func WithLoggerProvider(provider LoggerProvider) AppOption {
	return func(o *appOptions) {
		if provider != nil {
			o.loggerProvider = provider
		}
	}
}

// WithClock injects the clock used for session expiry checks.
func WithClock(clock func() time.Time) AppOption {
	return func(o *appOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithActivitySink subscribes sink to auth transitions and redirects.
func WithActivitySink(sink ActivitySink) AppOption {
	return func(o *appOptions) {
		o.activity = sink
	}
}

// WithNavigationHook registers an after each hook on the router.
func WithNavigationHook(hook AfterEachHook) AppOption {
	return func(o *appOptions) {
		if hook != nil {
			o.afterEach = append(o.afterEach, hook)
		}
	}
}

// NewApp wires loop, bus, holder and router around provider.
func NewApp(provider AuthProvider, routes []Route, opts ...AppOption) (*App, error) {
	options := &appOptions{
		config: DefaultOptions(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	if o, ok := options.config.(Options); ok {
		if err := o.Validate(); err != nil {
			return nil, err
		}
	}

	lp := options.loggerProvider
	loop := NewLoop(WithLoopLogger(loggerFrom(lp, "navauth.loop")))
	bus := NewAuthBus(WithBusLogger(loggerFrom(lp, "navauth.bus")))
	holder := NewSessionHolder(provider, loop, bus,
		WithHolderClock(options.clock),
		WithHolderLogger(loggerFrom(lp, "navauth.session")),
		WithHolderTopic(options.config.GetEventTopic()),
	)

	routerOpts := []RouterOption{
		WithRouterConfig(options.config),
		WithRouterLogger(loggerFrom(lp, "navauth.router")),
	}
	for _, hook := range options.afterEach {
		routerOpts = append(routerOpts, WithAfterEach(hook))
	}
	if options.activity != nil {
		routerOpts = append(routerOpts, WithAfterEach(
			RedirectActivityHook(options.activity, holder, loggerFrom(lp, "navauth.activity")),
		))
	}

	router, err := NewRouter(routes, holder, routerOpts...)
	if err != nil {
		return nil, err
	}

	app := &App{
		loop:   loop,
		bus:    bus,
		holder: holder,
		router: router,
		config: options.config,
		logger: loggerFrom(lp, "navauth"),
	}

	if options.activity != nil {
		app.activityOff = AttachActivitySink(bus, options.config.GetEventTopic(), options.activity, loggerFrom(lp, "navauth.activity"))
	}

	return app, nil
}

func (a *App) Loop() *Loop              { return a.loop }
func (a *App) Bus() *AuthBus            { return a.bus }
func (a *App) Sessions() *SessionHolder { return a.holder }
func (a *App) Router() *Router          { return a.router }
func (a *App) Config() Config           { return a.config }

// Start hooks the router to auth events and starts session resolution.
func (a *App) Start(ctx context.Context) {
	a.router.Start()
	a.holder.Start(ctx)
	a.logger.Info("navigation guard started")
}

// Run drives the loop until ctx is done or Stop is called.
func (a *App) Run(ctx context.Context) error {
	return a.loop.Run(ctx)
}

// Stop tears everything down. The bus loses all subscribers.
func (a *App) Stop() {
	a.router.Stop()
	a.holder.Stop()

	a.mu.Lock()
	off := a.activityOff
	a.activityOff = nil
	a.mu.Unlock()
	if off != nil {
		off()
	}

	a.bus.Clear()
	a.loop.Close()
	a.logger.Info("navigation guard stopped")
}
