package navauth

// Storefront route names.
const (
	RouteSignIn         = "signIn"
	RouteSignUp         = "signUp"
	RouteForgotPassword = "forgotPassword"
	RouteResetPassword  = "resetPassword"
	RouteCallback       = "callback"
	RouteNotFound       = "NotFound"
	RouteHome           = "home"
	RouteProfile        = "profile"
	RouteOrderHistory   = "order history"
	RouteTopUp          = "Top Up"
)

// StorefrontRoutes returns the storefront route table. Layouts carry no name;
// the auth layout requires no session, every other requirement is declared
// on the leaf. The router attaches the reset password and callback guards.
func StorefrontRoutes() []Route {
	return []Route{
		{
			Path:        "/signin",
			Requirement: RequiresNoAuth,
			Meta:        map[string]any{"layout": "auth"},
			Children: []Route{
				{Path: "/signin", Name: RouteSignIn},
				{Path: "/signup", Name: RouteSignUp},
				{Path: "/forgotpassword", Name: RouteForgotPassword},
			},
		},
		{
			Path: "/resetpassword",
			Meta: map[string]any{"layout": "auth"},
			Children: []Route{
				{Path: "/resetpassword", Name: RouteResetPassword},
				{Path: "/callback", Name: RouteCallback},
				{Path: CatchAllPath, Name: RouteNotFound},
			},
		},
		{
			Path: "/",
			Meta: map[string]any{"layout": "dashboard"},
			Children: []Route{
				{Path: "/", Name: RouteHome},
				{Path: "/profile", Name: RouteProfile, Requirement: RequiresAuth},
				{Path: "/order-history", Name: RouteOrderHistory, Requirement: RequiresAuth},
				{Path: "/top-up", Name: RouteTopUp},
			},
		},
	}
}
