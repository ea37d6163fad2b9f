package startup

import (
	"maps"
	"slices"
	"strings"

	"github.com/gorilla/mux"

	"github.com/yrk1n/video-platform/internal/logging"
)

// RouteInfo describes one method and path registered on the router.
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// GetRoutes walks router and returns one entry per route and method. Routes
// without a method matcher, such as file servers, report "*".
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo
	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := route.GetPathTemplate()
		if err != nil {
			// PathPrefix-less subrouters have no template
			return nil
		}
		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{"*"}
		}
		for _, m := range methods {
			routes = append(routes, RouteInfo{Method: m, Path: path, Name: route.GetName()})
		}
		return nil
	})
	return routes, err
}

// LogHTTPRoutes reports the access log filters and, at debug level, every
// registered route grouped by its first path segment.
func LogHTTPRoutes(router *mux.Router, logStaticFiles, logHealthChecks bool) {
	section("HTTP SERVER SETUP")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}
		groups := make(map[string][]RouteInfo)
		for _, r := range routes {
			g := getRouteGroup(r.Path)
			groups[g] = append(groups[g], r)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		for _, g := range slices.Sorted(maps.Keys(groups)) {
			label := g
			if label == "" {
				label = "root"
			}
			logging.Debug("  [%s]", label)
			for _, r := range groups[g] {
				logging.Debug("    %-6s %s", r.Method, r.Path)
			}
		}
	}

	logging.Info("  Media request logging:  %s (LOG_STATIC_FILES)", onOff(logStaticFiles))
	logging.Info("  Health check logging:   %s (LOG_HEALTH_CHECKS)", onOff(logHealthChecks))
}

// getRouteGroup returns "api/<resource>" for API routes and the first path
// segment otherwise.
func getRouteGroup(path string) string {
	first, rest, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if first == "api" && rest != "" {
		resource, _, _ := strings.Cut(rest, "/")
		return "api/" + resource
	}
	return first
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
