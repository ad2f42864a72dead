package obs

import "context"

type routePatternKey struct{}

// WithRoutePattern annotates the context with the chi pattern that matched,
// so metrics label by template rather than raw path.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RoutePatternFromContext returns the matched pattern, or "" when the request
// never hit a routed handler.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	pattern, _ := ctx.Value(routePatternKey{}).(string)
	return pattern
}
