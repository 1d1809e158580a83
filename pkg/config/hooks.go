package config

import "net/http"

// PreRequestHook runs synchronously on an admitted request before it is
// forwarded. It may inspect or modify the request.
type PreRequestHook func(r *http.Request)

// PostResponseHook receives the original request, the upstream response and
// its fully buffered body, and returns the body sent to the client.
type PostResponseHook func(r *http.Request, resp *http.Response, body []byte) ([]byte, error)

// Hooks groups the optional request and response hooks.
type Hooks struct {
	PreRequest   PreRequestHook
	PostResponse PostResponseHook
}
