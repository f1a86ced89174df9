package navauth

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
)

// Requirement is the access requirement a route declares.
type Requirement int

const (
	// Public routes are reachable regardless of session. It is the zero
	// value, so untagged routes are public.
	Public Requirement = iota
	RequiresAuth
	RequiresNoAuth
)

func (r Requirement) String() string {
	switch r {
	case RequiresAuth:
		return "requires_auth"
	case RequiresNoAuth:
		return "requires_no_auth"
	default:
		return "public"
	}
}

// CatchAllPath matches any path not matched by a static route.
const CatchAllPath = "/:pathMatch(.*)*"

// Route is a static route table entry.
type Route struct {
	Path        string
	Name        string
	Requirement Requirement
	Children    []Route
	// Guards run after the requirement check, in order, for this route only.
	Guards []RouteGuard
	Meta   map[string]any
}

// IsCatchAll reports whether the route matches any path.
func (r Route) IsCatchAll() bool {
	return r.Path == CatchAllPath
}

// Location is a parsed navigation target.
type Location struct {
	Path     string
	Fragment string
}

// ParseLocation splits target into path and fragment. Any query string is
// dropped for matching purposes.
func ParseLocation(target string) Location {
	loc := Location{}
	if i := strings.IndexByte(target, '#'); i >= 0 {
		loc.Fragment = target[i+1:]
		target = target[:i]
	}
	if i := strings.IndexByte(target, '?'); i >= 0 {
		target = target[:i]
	}
	loc.Path = normalizePath(target)
	return loc
}

func (l Location) String() string {
	if l.Fragment == "" {
		return l.Path
	}
	return l.Path + "#" + l.Fragment
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}

// Match is the result of matching a path: the chain of routes from the
// outermost layout to the leaf.
type Match struct {
	Chain []*Route
}

// Leaf returns the matched route, nil for an empty match.
func (m Match) Leaf() *Route {
	if len(m.Chain) == 0 {
		return nil
	}
	return m.Chain[len(m.Chain)-1]
}

// RouteTable is an ordered, read-only tree of routes.
type RouteTable struct {
	routes []Route
	names  map[string]*Route
}

// NewRouteTable validates routes and indexes them by name.
func NewRouteTable(routes []Route) (*RouteTable, error) {
	t := &RouteTable{
		routes: cloneRoutes(routes),
		names:  make(map[string]*Route),
	}
	if err := t.index(t.routes, ""); err != nil {
		return nil, err
	}
	return t, nil
}

// Routes returns the top-level routes.
func (t *RouteTable) Routes() []Route {
	return t.routes
}

// FindByName returns the route registered under name.
func (t *RouteTable) FindByName(name string) (*Route, bool) {
	r, ok := t.names[name]
	return r, ok
}

// Match resolves path to a route chain. Static routes win over catch-all
// routes regardless of table order; among equals the first in depth-first
// table order wins.
func (t *RouteTable) Match(path string) (Match, bool) {
	path = normalizePath(path)
	if chain, ok := findChain(t.routes, nil, func(r *Route) bool {
		return !r.IsCatchAll() && normalizePath(r.Path) == path
	}); ok {
		return Match{Chain: chain}, true
	}
	if chain, ok := findChain(t.routes, nil, func(r *Route) bool {
		return r.IsCatchAll()
	}); ok {
		return Match{Chain: chain}, true
	}
	return Match{}, false
}

// findChain looks for a leaf satisfying pred. Parents with children are
// layouts and only match through a child.
func findChain(routes []Route, parents []*Route, pred func(*Route) bool) ([]*Route, bool) {
	for i := range routes {
		r := &routes[i]
		if len(r.Children) > 0 {
			next := append(append([]*Route{}, parents...), r)
			if chain, ok := findChain(r.Children, next, pred); ok {
				return chain, true
			}
			continue
		}
		if pred(r) {
			return append(append([]*Route{}, parents...), r), true
		}
	}
	return nil, false
}

func cloneRoutes(routes []Route) []Route {
	if routes == nil {
		return nil
	}
	out := make([]Route, len(routes))
	for i, r := range routes {
		out[i] = r
		out[i].Children = cloneRoutes(r.Children)
		if r.Guards != nil {
			out[i].Guards = append([]RouteGuard(nil), r.Guards...)
		}
	}
	return out
}

// addGuard appends guard to the named route.
func (t *RouteTable) addGuard(name string, guard RouteGuard) bool {
	r, ok := t.names[name]
	if !ok || guard == nil {
		return false
	}
	r.Guards = append(r.Guards, guard)
	return true
}

func (t *RouteTable) index(routes []Route, parent string) error {
	for i := range routes {
		r := &routes[i]
		if err := validateRoute(r); err != nil {
			return withMetadata(ErrInvalidRouteTable, "", map[string]any{
				"parent": parent,
				"path":   r.Path,
				"errors": err.Error(),
			})
		}
		if r.Name != "" {
			if _, exists := t.names[r.Name]; exists {
				return withMetadata(ErrInvalidRouteTable, fmt.Sprintf("duplicate route name %q", r.Name), map[string]any{
					"name": r.Name,
				})
			}
			t.names[r.Name] = r
		}
		if err := t.index(r.Children, r.Path); err != nil {
			return err
		}
	}
	return nil
}

func validateRoute(r *Route) error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Path,
			validation.Required,
			validation.By(func(value any) error {
				p, _ := value.(string)
				if !strings.HasPrefix(p, "/") {
					return fmt.Errorf("must start with /")
				}
				return nil
			}),
		),
		validation.Field(&r.Requirement, validation.In(Public, RequiresAuth, RequiresNoAuth)),
	)
}
