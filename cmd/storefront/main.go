package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	gconfig "github.com/goliatone/go-config/config"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-navauth"
	"github.com/goliatone/go-navauth/middleware/navguard"
	"github.com/goliatone/go-navauth/provider/token"
	repo "github.com/goliatone/go-navauth/repository"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type App struct {
	config   *gconfig.Container[*AppConfig]
	bunDB    *bun.DB
	activity *repo.ActivityRepository
	provider *token.Provider
	nav      *navauth.App
	srv      router.Server[*fiber.App]
	logger   *glog.BaseLogger
}

func (a *App) Config() *AppConfig {
	return a.config.Raw()
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func (a *App) LoggerProvider() navauth.LoggerProvider {
	return navauth.LoggerProviderFunc(func(name string) navauth.Logger {
		return a.GetLogger(name)
	})
}

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("storefront"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
	)

	cfg := gconfig.New(&AppConfig{}).
		WithLogger(lgr.GetLogger("config"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := cfg.Load(ctx); err != nil {
		panic(err)
	}

	fmt.Println("============")
	fmt.Println(print.MaybeHighlightJSON(cfg.Raw()))
	fmt.Println("============")

	app := &App{
		config: cfg,
		logger: lgr,
	}

	if err := WithPersistence(ctx, app); err != nil {
		panic(err)
	}

	if err := WithNavigation(ctx, app); err != nil {
		panic(err)
	}

	if err := WithHTTPServer(ctx, app); err != nil {
		panic(err)
	}

	go func() {
		if err := app.nav.Run(ctx); err != nil && err != context.Canceled {
			app.GetLogger("loop").Error("loop stopped", "error", err)
		}
	}()

	go app.srv.Serve(app.Config().Server.Address)

	WaitExitSignal()

	app.nav.Stop()
	cancel()
	_ = app.bunDB.Close()
}

func WithPersistence(ctx context.Context, app *App) error {
	db, err := sql.Open(sqliteshim.ShimName, app.Config().Persistence.DSN)
	if err != nil {
		return err
	}

	app.bunDB = bun.NewDB(db, sqlitedialect.New())

	repos := repo.NewRepositoryManager(app.bunDB)
	if err := repos.Migrate(ctx); err != nil {
		return err
	}
	app.activity = repos.Activity()
	return nil
}

func WithNavigation(ctx context.Context, app *App) error {
	tcfg := app.Config().Token

	vcfg := token.DefaultConfig([]byte(tcfg.SigningKey))
	vcfg.JWKSURL = tcfg.JWKSURL
	vcfg.Issuer = tcfg.Issuer
	vcfg.Audience = tcfg.Audience
	vcfg.Leeway = tcfg.GetLeeway()

	validator, err := token.NewTokenValidator(vcfg)
	if err != nil {
		return err
	}

	app.provider = token.NewProvider(validator, token.WithLogger(app.GetLogger("provider")))

	nav, err := navauth.NewApp(app.provider, navauth.StorefrontRoutes(),
		navauth.WithConfig(app.Config().Navigation),
		navauth.WithLoggerProvider(app.LoggerProvider()),
		navauth.WithActivitySink(app.activity),
		navauth.WithNavigationHook(func(res navauth.NavigationResult) {
			app.GetLogger("navigation").Info("navigation settled",
				"to", res.To.String(),
				"requested", res.Requested.String(),
				"redirected", res.Redirected,
			)
		}),
	)
	if err != nil {
		return err
	}

	nav.Start(ctx)
	app.nav = nav
	return nil
}

func WithHTTPServer(ctx context.Context, app *App) error {
	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:      true,
			EnablePrintRoutes: true,
			StrictRouting:     false,
		}))
	})

	srv.Router().WithLogger(app.GetLogger("router"))
	app.srv = srv

	guard := navguard.New(navguard.Config{
		Routes:  app.nav.Router().Table(),
		Options: app.Config().Navigation,
		SessionSource: func(ctx router.Context) *navauth.Session {
			session := app.nav.Sessions().CurrentSession()
			ctx.Locals(navauth.DefaultSessionKey, session)
			return session
		},
		StoreMatch: true,
		Logger:     app.GetLogger("navguard"),
	})

	PageRoutes(app, guard)

	r := srv.Router()
	r.Post("/auth/callback", navguard.CallbackHandler(app.provider, app.GetLogger("callback")))
	r.Post("/auth/signout", SignOut(app))
	r.Post("/navigate", Navigate(app))
	r.Get("/navigation", NavigationState(app))
	r.Get("/activity", ActivityIndex(app))

	return nil
}

func WaitExitSignal() os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return <-ch
}
