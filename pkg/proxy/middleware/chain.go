package middleware

import "net/http"

// Chain applies middleware so that the first one listed is the outermost.
//
//	Chain(h, Recovery, RequestID, Logging) == Recovery(RequestID(Logging(h)))
func Chain(h http.Handler, middleware ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}
