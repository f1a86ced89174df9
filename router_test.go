package navauth_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-navauth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func startApp(t *testing.T, provider *MockProvider, routes []navauth.Route, opts ...navauth.AppOption) *navauth.App {
	t.Helper()
	if routes == nil {
		routes = navauth.StorefrontRoutes()
	}
	opts = append([]navauth.AppOption{navauth.WithLoggerProvider(quietLogs)}, opts...)

	app, err := navauth.NewApp(provider, routes, opts...)
	require.NoError(t, err)
	app.Start(context.Background())
	t.Cleanup(app.Stop)

	require.Eventually(t, func() bool {
		app.Loop().RunPending()
		return app.Sessions().Resolved()
	}, time.Second, 5*time.Millisecond)
	return app
}

// runLoop drives the loop on its own goroutine for tests using Navigate.
func runLoop(t *testing.T, app *navauth.App) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = app.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func push(t *testing.T, app *navauth.App, target string) {
	t.Helper()
	_, err := app.Router().Push(target)
	require.NoError(t, err)
	app.Loop().RunPending()
}

func TestRouterGuardsNavigation(t *testing.T) {
	app := startApp(t, newMockProvider(nil), nil)

	push(t, app, "/profile")
	assert.Equal(t, "/signin", app.Router().Current().Path)
	assert.Equal(t, navauth.RouteSignIn, app.Router().CurrentRoute().Name)
	assert.Equal(t, navauth.StateSettled, app.Router().State())

	push(t, app, "/top-up")
	assert.Equal(t, "/top-up", app.Router().Current().Path)

	push(t, app, "/nowhere")
	assert.Equal(t, navauth.RouteNotFound, app.Router().CurrentRoute().Name)
}

func TestRouterSignedInBouncesFromAuthPages(t *testing.T) {
	app := startApp(t, newMockProvider(validSession("user-1")), nil)

	for _, target := range []string{"/signin", "/signup", "/forgotpassword"} {
		push(t, app, target)
		assert.Equal(t, "/", app.Router().Current().Path, target)
		assert.Equal(t, navauth.RouteHome, app.Router().CurrentRoute().Name, target)
	}

	push(t, app, "/order-history")
	assert.Equal(t, "/order-history", app.Router().Current().Path)
}

func TestRouterSignedOutForcesSignIn(t *testing.T) {
	provider := newMockProvider(validSession("user-1"))
	app := startApp(t, provider, nil)

	push(t, app, "/profile")
	require.Equal(t, "/profile", app.Router().Current().Path)

	provider.Emit(navauth.EventSignedOut, nil)
	app.Loop().RunPending()

	assert.Nil(t, app.Sessions().CurrentSession())
	assert.Equal(t, "/signin", app.Router().Current().Path)
}

func TestRouterLeavesCallbackAfterSignIn(t *testing.T) {
	provider := newMockProvider(nil)
	exchanged := make(chan navauth.TokenBundle, 1)
	provider.On("ExchangeCallback", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		exchanged <- args.Get(1).(navauth.TokenBundle)
	}).Return(validSession("user-1"), nil)

	app := startApp(t, provider, nil)

	push(t, app, "/callback#"+fullFragment)
	require.Equal(t, "/callback", app.Router().Current().Path)
	require.Equal(t, navauth.RouteCallback, app.Router().CurrentRoute().Name)

	select {
	case bundle := <-exchanged:
		assert.Equal(t, "at", bundle.AccessToken)
		assert.Equal(t, "rt", bundle.RefreshToken)
	case <-time.After(time.Second):
		t.Fatal("callback was not exchanged")
	}

	var duringTransition string
	app.Bus().On(navauth.TopicAuth, func(navauth.AuthEventPayload) error {
		duringTransition = app.Router().Current().Path
		return nil
	})

	provider.Emit(navauth.EventSignedIn, validSession("user-1"))
	app.Loop().RunPending()

	assert.Equal(t, "/callback", duringTransition, "home navigation must wait for the transition to finish")
	assert.Equal(t, "/", app.Router().Current().Path)
	assert.Equal(t, "user-1", app.Sessions().CurrentSession().GetUserID())
}

func TestRouterFailedCallbackExchangeGoesHome(t *testing.T) {
	provider := newMockProvider(nil)
	provider.On("ExchangeCallback", mock.Anything, mock.Anything).Return(nil, errors.New("token rejected"))

	app := startApp(t, provider, nil)

	push(t, app, "/callback#"+fullFragment)

	require.Eventually(t, func() bool {
		app.Loop().RunPending()
		return app.Router().Current().Path == "/"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, navauth.RouteHome, app.Router().CurrentRoute().Name)
	assert.Nil(t, app.Sessions().CurrentSession())
}

func TestRouterFailedCallbackExchangeYieldsToNewerNavigation(t *testing.T) {
	provider := newMockProvider(nil)
	release := make(chan struct{})
	failed := make(chan struct{})
	provider.On("ExchangeCallback", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		<-release
		close(failed)
	}).Return(nil, errors.New("token rejected"))

	app := startApp(t, provider, nil)

	push(t, app, "/callback#"+fullFragment)
	require.Equal(t, "/callback", app.Router().Current().Path)

	push(t, app, "/top-up")
	close(release)
	<-failed

	assert.Never(t, func() bool {
		app.Loop().RunPending()
		return app.Router().Current().Path != "/top-up"
	}, 100*time.Millisecond, 5*time.Millisecond)
}

func TestRouterSignedInElsewhereStays(t *testing.T) {
	provider := newMockProvider(nil)
	app := startApp(t, provider, nil)

	push(t, app, "/top-up")
	provider.Emit(navauth.EventSignedIn, validSession("user-1"))
	app.Loop().RunPending()

	assert.Equal(t, "/top-up", app.Router().Current().Path)
}

func TestRouterIncompleteCallbackGoesHome(t *testing.T) {
	provider := newMockProvider(nil)
	app := startApp(t, provider, nil)

	var results []navauth.NavigationResult
	app.Router().OnAfterEach(func(res navauth.NavigationResult) { results = append(results, res) })

	push(t, app, "/callback#access_token=at&token_type=bearer")

	require.Len(t, results, 1)
	assert.True(t, results[0].Redirected)
	assert.Equal(t, "/", results[0].To.Path)
	assert.Equal(t, "/callback", results[0].Requested.Path)
	provider.AssertNotCalled(t, "ExchangeCallback", mock.Anything, mock.Anything)
}

func TestRouterResetPasswordRequiresRecoveryLink(t *testing.T) {
	app := startApp(t, newMockProvider(nil), nil)

	push(t, app, "/resetpassword")
	assert.Equal(t, "/signin", app.Router().Current().Path)

	push(t, app, "/resetpassword#access_token=at&type=recovery")
	assert.Equal(t, "/resetpassword", app.Router().Current().Path)
	assert.Equal(t, "access_token=at&type=recovery", app.Router().Current().Fragment)
}

func TestRouterLatestNavigationWins(t *testing.T) {
	app := startApp(t, newMockProvider(nil), nil)

	var results []navauth.NavigationResult
	app.Router().OnAfterEach(func(res navauth.NavigationResult) { results = append(results, res) })

	_, err := app.Router().Push("/signup")
	require.NoError(t, err)
	_, err = app.Router().Push("/forgotpassword")
	require.NoError(t, err)
	assert.Equal(t, navauth.StateNavigating, app.Router().State())

	app.Loop().RunPending()

	require.Len(t, results, 1)
	assert.Equal(t, "/forgotpassword", results[0].To.Path)
	assert.Equal(t, "/forgotpassword", app.Router().Current().Path)
}

func TestRouterNavigateReportsCancellation(t *testing.T) {
	app := startApp(t, newMockProvider(nil), nil)

	started := make(chan struct{})
	block := make(chan struct{})
	require.NoError(t, app.Loop().Post(func() {
		close(started)
		<-block
	}))
	runLoop(t, app)
	<-started

	var wg sync.WaitGroup
	var first navauth.NavigationResult
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, firstErr = app.Router().Navigate(context.Background(), "/signup")
	}()

	require.Eventually(t, func() bool { return app.Loop().Len() == 1 }, time.Second, time.Millisecond)
	_, err := app.Router().Push("/top-up")
	require.NoError(t, err)
	close(block)
	wg.Wait()

	require.Error(t, firstErr)
	assert.True(t, navauth.IsNavigationCancelled(firstErr))
	assert.Equal(t, navauth.NavigationCancelled, first.Status)

	require.Eventually(t, func() bool {
		return app.Router().Current().Path == "/top-up"
	}, time.Second, time.Millisecond)
}

func TestRouterNavigate(t *testing.T) {
	app := startApp(t, newMockProvider(nil), nil)
	runLoop(t, app)

	res, err := app.Router().Navigate(context.Background(), "/order-history")
	require.NoError(t, err)
	assert.Equal(t, navauth.NavigationCommitted, res.Status)
	assert.True(t, res.Redirected)
	assert.Equal(t, "/signin", res.To.Path)
	assert.Equal(t, navauth.RouteSignIn, res.Route.Name)
}

func TestRouterRedirectLoopAborts(t *testing.T) {
	routes := []navauth.Route{
		{Path: "/", Name: navauth.RouteHome},
		{Path: "/a", Name: "a", Guards: []navauth.RouteGuard{
			func(navauth.GuardContext) navauth.Decision { return navauth.RedirectTo("/b") },
		}},
		{Path: "/b", Name: "b", Guards: []navauth.RouteGuard{
			func(navauth.GuardContext) navauth.Decision { return navauth.RedirectTo("/a") },
		}},
	}
	app := startApp(t, newMockProvider(nil), routes)
	runLoop(t, app)

	_, err := app.Router().Navigate(context.Background(), "/")
	require.NoError(t, err)

	res, err := app.Router().Navigate(context.Background(), "/a")
	require.Error(t, err)
	assert.True(t, navauth.HasTextCode(err, navauth.ErrRedirectLoop))
	assert.Equal(t, navauth.NavigationAborted, res.Status)
	assert.Equal(t, "/", app.Router().Current().Path)
	assert.Equal(t, navauth.StateSettled, app.Router().State())
}

func TestRouterReevaluatesWhenSessionResolves(t *testing.T) {
	release := make(chan time.Time)
	provider := &MockProvider{}
	provider.On("GetCurrentSession", mock.Anything).WaitUntil(release).Return(validSession("user-1"), nil)

	app, err := navauth.NewApp(provider, navauth.StorefrontRoutes(), navauth.WithLoggerProvider(quietLogs))
	require.NoError(t, err)
	app.Start(context.Background())
	t.Cleanup(app.Stop)

	push(t, app, "/profile")
	require.False(t, app.Sessions().Resolved())
	require.Equal(t, "/signin", app.Router().Current().Path)

	close(release)
	require.Eventually(t, func() bool {
		app.Loop().RunPending()
		return app.Router().Current().Path == "/profile"
	}, time.Second, 5*time.Millisecond)
}

func TestRouterPushNamed(t *testing.T) {
	app := startApp(t, newMockProvider(validSession("user-1")), nil)

	_, err := app.Router().PushNamed(navauth.RouteOrderHistory)
	require.NoError(t, err)
	app.Loop().RunPending()
	assert.Equal(t, "/order-history", app.Router().Current().Path)

	_, err = app.Router().PushNamed("missing")
	assert.True(t, navauth.HasTextCode(err, navauth.ErrRouteNotFound))
}

func TestRouterHookPanicDoesNotBreakNavigation(t *testing.T) {
	app := startApp(t, newMockProvider(nil), nil,
		navauth.WithNavigationHook(func(navauth.NavigationResult) { panic("hook bug") }),
	)

	push(t, app, "/top-up")
	assert.Equal(t, "/top-up", app.Router().Current().Path)
}

func TestRouterStoppedLoop(t *testing.T) {
	provider := newMockProvider(nil)
	app, err := navauth.NewApp(provider, nil, navauth.WithLoggerProvider(quietLogs))
	require.NoError(t, err)
	app.Stop()

	_, err = app.Router().Push("/")
	assert.True(t, navauth.HasTextCode(err, navauth.ErrLoopClosed))
}
