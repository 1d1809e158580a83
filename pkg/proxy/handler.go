package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"strconv"
	"sync"
	"time"

	"mercator-hq/esproxy/pkg/config"
	"mercator-hq/esproxy/pkg/discovery"
	"mercator-hq/esproxy/pkg/filter"
	"mercator-hq/esproxy/pkg/proxy/types"
	"mercator-hq/esproxy/pkg/telemetry/logging"
	"mercator-hq/esproxy/pkg/telemetry/metrics"
)

// Pool hands out upstreams. *discovery.Registry implements it.
type Pool interface {
	Acquire() (*discovery.Upstream, error)
}

// Options configures a Handler.
type Options struct {
	// Filter decides which requests are forwarded. Required.
	Filter *filter.Filter

	// Pool supplies upstream nodes. Required.
	Pool Pool

	// Hooks are the optional request and response hooks.
	Hooks config.Hooks

	// Metrics records request outcomes. May be nil.
	Metrics *metrics.Collector

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Handler is the proxy's request handler.
type Handler struct {
	filter  *filter.Filter
	pool    Pool
	hooks   config.Hooks
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewHandler creates a proxy handler.
func NewHandler(opts Options) (*Handler, error) {
	if opts.Filter == nil {
		return nil, errors.New("filter is required")
	}
	if opts.Pool == nil {
		return nil, errors.New("upstream pool is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		filter:  opts.Filter,
		pool:    opts.Pool,
		hooks:   opts.Hooks,
		metrics: opts.Metrics,
		logger:  logger.With("component", "proxy"),
	}, nil
}

// ServeHTTP filters the request, picks a node and relays the exchange.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if !h.filter.IsAllowed(r.Method, r.URL.RequestURI()) {
		h.logger.DebugContext(r.Context(), "request rejected by allow rules",
			"method", r.Method,
			"uri", r.URL.RequestURI(),
		)
		types.WriteError(w, http.StatusForbidden, types.MessageRejected)
		h.metrics.RecordRequest(r.Method, metrics.OutcomeRejected, time.Since(start))
		return
	}

	if h.hooks.PreRequest != nil {
		h.hooks.PreRequest(r)
	}

	upstream, err := h.pool.Acquire()
	if err != nil {
		h.logger.WarnContext(r.Context(), "no upstream available",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		types.WriteError(w, http.StatusServiceUnavailable, types.MessageNoUpstream)
		h.metrics.RecordRequest(r.Method, metrics.OutcomeUnavailable, time.Since(start))
		return
	}

	ex := &exchange{
		inbound:  r,
		upstream: upstream,
		start:    time.Now(),
		outcome:  metrics.OutcomeProxied,
	}
	ctx := logging.WithNode(context.WithValue(r.Context(), exchangeKey{}, ex), upstream.Addr())

	h.metrics.IncInFlight()
	defer func() {
		h.metrics.DecInFlight()

		p := recover()
		if ex.bodyReadFailed() && r.Context().Err() == nil {
			// The node broke off a response that was already being streamed.
			ex.setOutcome(metrics.OutcomeUpstreamError)
			if upstream.Evict() {
				h.logger.WarnContext(ctx, "upstream failed while streaming response", "node_id", upstream.NodeID())
			}
		}
		h.metrics.RecordRequest(r.Method, ex.getOutcome(), time.Since(start))
		if p != nil {
			panic(p)
		}
	}()

	upstream.Handler(h.newReverseProxy).ServeHTTP(w, r.WithContext(ctx))
}

// newReverseProxy builds the handler cached on an upstream.
func (h *Handler) newReverseProxy(u *discovery.Upstream) http.Handler {
	target := u.Target()

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		Transport:      u.Transport(),
		FlushInterval:  -1,
		ModifyResponse: h.modifyResponse,
		ErrorHandler:   h.handleError,
		ErrorLog:       slog.NewLogLogger(h.logger.Handler(), slog.LevelDebug),
	}
}

// modifyResponse records upstream metrics and applies the response hook.
func (h *Handler) modifyResponse(resp *http.Response) error {
	ex := exchangeFrom(resp.Request.Context())
	if ex == nil {
		return nil
	}

	h.metrics.RecordUpstream(ex.upstream.Addr(), resp.StatusCode, time.Since(ex.start))
	resp.Body = &trackingBody{ReadCloser: resp.Body, ex: ex}

	if h.hooks.PostResponse == nil {
		// Re-chunk: relayed bodies are flushed as they arrive, so a
		// Content-Length from the node must not reach the client.
		if resp.Request.Method != http.MethodHead {
			resp.Header.Del("Content-Length")
			resp.ContentLength = -1
		}
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return fmt.Errorf("failed to read upstream response: %w", err)
	}

	out, err := h.hooks.PostResponse(ex.inbound, resp, body)
	if err != nil {
		return &hookError{err: err}
	}

	resp.Body = io.NopCloser(bytes.NewReader(out))
	resp.ContentLength = int64(len(out))
	resp.TransferEncoding = nil
	resp.Header.Set("Content-Length", strconv.Itoa(len(out)))
	return nil
}

// handleError is called for transport errors and failed response hooks,
// always before any part of the response has been written.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	ex := exchangeFrom(r.Context())
	if ex == nil {
		types.WriteError(w, http.StatusBadGateway, types.MessageUpstreamFailed)
		return
	}

	var hookErr *hookError
	switch {
	case errors.As(err, &hookErr):
		ex.setOutcome(metrics.OutcomeHookError)
		h.metrics.RecordHookError()
		h.logger.ErrorContext(r.Context(), "response hook failed", "error", hookErr.err)
		types.WriteError(w, http.StatusBadGateway, types.MessageTransformFailed)

	case errors.Is(r.Context().Err(), context.DeadlineExceeded):
		ex.setOutcome(metrics.OutcomeTimeout)
		h.logger.WarnContext(r.Context(), "upstream request timed out", "node_id", ex.upstream.NodeID())
		types.WriteError(w, http.StatusGatewayTimeout, types.MessageUpstreamTimeout)

	case r.Context().Err() != nil:
		// The client went away; nobody is left to answer.
		ex.setOutcome(metrics.OutcomeCanceled)
		h.logger.DebugContext(r.Context(), "client canceled request", "error", err)
		w.WriteHeader(http.StatusBadGateway)

	default:
		ex.setOutcome(metrics.OutcomeUpstreamError)
		evicted := ex.upstream.Evict()
		h.logger.WarnContext(r.Context(), "upstream request failed",
			"node_id", ex.upstream.NodeID(),
			"evicted", evicted,
			"error", err,
		)
		types.WriteError(w, http.StatusBadGateway, types.MessageUpstreamFailed)
	}
}

// exchangeKey is the context key of the per-request *exchange.
type exchangeKey struct{}

// exchange carries per-request state between the handler and the reverse
// proxy callbacks.
type exchange struct {
	inbound  *http.Request
	upstream *discovery.Upstream
	start    time.Time

	mu      sync.Mutex
	outcome string
	readErr error
}

func exchangeFrom(ctx context.Context) *exchange {
	ex, _ := ctx.Value(exchangeKey{}).(*exchange)
	return ex
}

func (ex *exchange) setOutcome(outcome string) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.outcome = outcome
}

func (ex *exchange) getOutcome() string {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.outcome
}

func (ex *exchange) bodyReadFailed() bool {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	return ex.readErr != nil
}

// trackingBody remembers read errors on the upstream response body.
type trackingBody struct {
	io.ReadCloser
	ex *exchange
}

func (b *trackingBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil && err != io.EOF {
		b.ex.mu.Lock()
		b.ex.readErr = err
		b.ex.mu.Unlock()
	}
	return n, err
}

// hookError marks failures of the post-response hook.
type hookError struct {
	err error
}

func (e *hookError) Error() string {
	return "post-response hook: " + e.err.Error()
}

func (e *hookError) Unwrap() error {
	return e.err
}
