package main

import (
	"net/http"
	"time"

	"github.com/goliatone/go-navauth"
	"github.com/goliatone/go-navauth/middleware/navguard"
	"github.com/goliatone/go-router"
)

// PageRoutes registers every static storefront leaf behind guard.
func PageRoutes(app *App, guard router.MiddlewareFunc) {
	r := app.srv.Router()
	var walk func(routes []navauth.Route)
	walk = func(routes []navauth.Route) {
		for _, route := range routes {
			if len(route.Children) > 0 {
				walk(route.Children)
				continue
			}
			if route.IsCatchAll() {
				continue
			}
			r.Get(route.Path, PageShow(route), guard)
		}
	}
	walk(app.nav.Router().Table().Routes())
}

func PageShow(route navauth.Route) router.HandlerFunc {
	return func(ctx router.Context) error {
		payload := map[string]any{
			"route":       route.Name,
			"path":        route.Path,
			"requirement": route.Requirement.String(),
			"layout":      route.Meta["layout"],
			"signed_in":   navauth.IsSignedIn(ctx, navauth.DefaultSessionKey, time.Now()),
		}
		if res, ok := ctx.Locals(navguard.DefaultContextKey).(navguard.Result); ok {
			payload["navigation"] = res.Navigation.ID.String()
		}
		return ctx.JSON(router.StatusOK, payload)
	}
}

func SignOut(app *App) router.HandlerFunc {
	return func(ctx router.Context) error {
		if err := app.provider.SignOut(ctx.Context()); err != nil {
			return ctx.JSON(router.StatusInternalServerError, map[string]any{"error": err.Error()})
		}
		return ctx.JSON(router.StatusOK, map[string]any{"signed_out": true})
	}
}

func Navigate(app *App) router.HandlerFunc {
	return func(ctx router.Context) error {
		to := ctx.Query("to")
		if to == "" {
			return ctx.JSON(router.StatusBadRequest, map[string]any{"error": "missing to"})
		}

		res, err := app.nav.Router().Navigate(ctx.Context(), to)
		payload := map[string]any{
			"navigation": res.ID.String(),
			"requested":  res.Requested.String(),
			"to":         res.To.String(),
			"redirected": res.Redirected,
			"status":     res.Status,
		}
		if err != nil {
			payload["error"] = err.Error()
			return ctx.JSON(http.StatusConflict, payload)
		}
		return ctx.JSON(router.StatusOK, payload)
	}
}

func NavigationState(app *App) router.HandlerFunc {
	return func(ctx router.Context) error {
		nav := app.nav.Router()
		payload := map[string]any{
			"state":   nav.State().String(),
			"current": nav.Current().String(),
			"user":    app.nav.Sessions().CurrentSession().GetUserID(),
		}
		if route := nav.CurrentRoute(); route != nil {
			payload["route"] = route.Name
		}
		return ctx.JSON(router.StatusOK, payload)
	}
}

func ActivityIndex(app *App) router.HandlerFunc {
	return func(ctx router.Context) error {
		userID := ctx.Query("user")
		if userID == "" {
			userID = app.nav.Sessions().CurrentSession().GetUserID()
		}
		events, err := app.activity.ListByUser(ctx.Context(), userID)
		if err != nil {
			return ctx.JSON(router.StatusInternalServerError, map[string]any{"error": err.Error()})
		}
		return ctx.JSON(router.StatusOK, map[string]any{"events": events})
	}
}
