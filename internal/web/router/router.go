// Package router wraps chi with route introspection and named routes so the
// CLI can list endpoints and the purge notifier can build detail URLs.
package router

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/conduit-lang/contentapi/internal/web/middleware"
)

// Router manages HTTP routing using chi framework
type Router struct {
	mux    chi.Router
	prefix string
	table  *routeTable
}

// routeTable is shared by a router and its groups
type routeTable struct {
	mu     sync.RWMutex
	routes []*Route
	named  map[string]*Route
}

// Route represents a single registered route
type Route struct {
	Pattern    string
	Method     string
	Handler    http.HandlerFunc
	Name       string
	Collection string
	Operation  Operation

	table *routeTable
}

// RouteInfo provides metadata about a route for introspection
type RouteInfo struct {
	Pattern    string
	Method     string
	Name       string
	Collection string
	Operation  string
	Parameters []RouteParameter
}

// RouteParameter describes a parameter in a route
type RouteParameter struct {
	Name    string
	Type    string
	Pattern string
}

// Operation is the read operation a route performs on a collection
type Operation int

const (
	// OpNone marks routes that do not serve a collection
	OpNone Operation = iota
	// OpList lists a collection (GET /)
	OpList
	// OpDetail shows one object (GET /{id}/)
	OpDetail
)

// String returns the string representation of Operation
func (o Operation) String() string {
	switch o {
	case OpList:
		return "list"
	case OpDetail:
		return "detail"
	default:
		return ""
	}
}

// NewRouter creates a new Router instance
func NewRouter() *Router {
	return &Router{
		mux:   chi.NewRouter(),
		table: &routeTable{named: make(map[string]*Route)},
	}
}

// ServeHTTP implements http.Handler interface
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Use adds middleware. Like chi, it must be called before routes are added.
func (r *Router) Use(middlewares ...middleware.Middleware) {
	for _, m := range middlewares {
		r.mux.Use(m)
	}
}

// Get registers a GET route and answers HEAD with the same handler
func (r *Router) Get(pattern string, handler http.HandlerFunc) *Route {
	r.mux.Method(http.MethodHead, r.prefix+pattern, handler)
	return r.addRoute(http.MethodGet, pattern, handler)
}

// Group registers routes under a common prefix sharing this router's table
func (r *Router) Group(prefix string, fn func(g *Router)) {
	fn(&Router{
		mux:    r.mux,
		prefix: r.prefix + prefix,
		table:  r.table,
	})
}

// addRoute registers a route with the given method, pattern, and handler
func (r *Router) addRoute(method, pattern string, handler http.HandlerFunc) *Route {
	full := r.prefix + pattern
	route := &Route{
		Pattern: full,
		Method:  method,
		Handler: handler,
		table:   r.table,
	}

	r.mux.Method(method, full, handler)

	r.table.mu.Lock()
	r.table.routes = append(r.table.routes, route)
	r.table.mu.Unlock()

	return route
}

// Named sets a name for the route (for URL generation)
func (route *Route) Named(name string) *Route {
	route.table.mu.Lock()
	defer route.table.mu.Unlock()

	route.Name = name
	route.table.named[name] = route
	return route
}

// ForCollection records which collection and operation the route serves
func (route *Route) ForCollection(collection string, op Operation) *Route {
	route.Collection = collection
	route.Operation = op
	return route
}

// GetRoutes returns all registered routes for introspection
func (r *Router) GetRoutes() []*RouteInfo {
	r.table.mu.RLock()
	defer r.table.mu.RUnlock()

	infos := make([]*RouteInfo, 0, len(r.table.routes))
	for _, route := range r.table.routes {
		infos = append(infos, &RouteInfo{
			Pattern:    route.Pattern,
			Method:     route.Method,
			Name:       route.Name,
			Collection: route.Collection,
			Operation:  route.Operation.String(),
			Parameters: extractParameters(route.Pattern),
		})
	}
	return infos
}

// GetRoute returns a route by name
func (r *Router) GetRoute(name string) (*Route, error) {
	r.table.mu.RLock()
	defer r.table.mu.RUnlock()

	route, ok := r.table.named[name]
	if !ok {
		return nil, fmt.Errorf("route not found: %s", name)
	}
	return route, nil
}

// URL builds the path of a named route, substituting params. Values must
// satisfy the parameter's regular expression when it declares one.
func (r *Router) URL(name string, params map[string]string) (string, error) {
	route, err := r.GetRoute(name)
	if err != nil {
		return "", err
	}

	var missing []string
	path := paramPattern.ReplaceAllStringFunc(route.Pattern, func(segment string) string {
		p := parseParameter(segment)
		value, ok := params[p.Name]
		if !ok {
			missing = append(missing, p.Name)
			return segment
		}
		if p.Pattern != "" {
			re, err := regexp.Compile("^(?:" + p.Pattern + ")$")
			if err != nil || !re.MatchString(value) {
				missing = append(missing, p.Name)
			}
		}
		return value
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("route %s: missing or invalid parameters: %s", name, strings.Join(missing, ", "))
	}
	return path, nil
}

// NotFound sets the handler for 404 Not Found
func (r *Router) NotFound(handler http.HandlerFunc) {
	r.mux.NotFound(handler)
}

// MethodNotAllowed sets the handler for 405 Method Not Allowed
func (r *Router) MethodNotAllowed(handler http.HandlerFunc) {
	r.mux.MethodNotAllowed(handler)
}

var paramPattern = regexp.MustCompile(`\{[^/]+?\}`)

// extractParameters extracts parameter definitions from a route pattern
func extractParameters(pattern string) []RouteParameter {
	params := make([]RouteParameter, 0)
	for _, segment := range paramPattern.FindAllString(pattern, -1) {
		params = append(params, parseParameter(segment))
	}
	return params
}

// parseParameter parses "{name}" or "{name:regexp}"
func parseParameter(segment string) RouteParameter {
	inner := strings.TrimSuffix(strings.TrimPrefix(segment, "{"), "}")
	name, pattern, _ := strings.Cut(inner, ":")
	return RouteParameter{
		Name:    name,
		Type:    inferParameterType(name, pattern),
		Pattern: pattern,
	}
}

// inferParameterType infers the type of a parameter from its pattern or name
func inferParameterType(name, pattern string) string {
	if pattern == "[0-9]+" || pattern == `\d+` {
		return "int"
	}
	if name == "id" || strings.HasSuffix(name, "_id") {
		return "int"
	}
	return "string"
}
