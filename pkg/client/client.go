package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/time/rate"

	"github.com/goliatone/go-formsync/internal/metrics"
	"github.com/goliatone/go-formsync/pkg/auth"
	"github.com/goliatone/go-formsync/pkg/schema"
)

// RequestIDHeader carries a per-request correlation id.
const RequestIDHeader = "X-Request-ID"

const defaultTimeout = 30 * time.Second

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport. The default has a 30s timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithSessionStore enables authenticated calls. The client builds an
// auth.Authenticator over store that refreshes through the token endpoint.
func WithSessionStore(store auth.Store) Option {
	return func(c *Client) {
		c.store = store
	}
}

// WithAuthenticator uses a preconfigured authenticator instead of building
// one from a store.
func WithAuthenticator(a *auth.Authenticator) Option {
	return func(c *Client) {
		c.auth = a
	}
}

// WithRateLimit caps outgoing requests with a token bucket.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithCache keeps up to size public GET responses for ttl. Mutations of a
// resource evict its cached reads.
func WithCache(size int, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = newResponseCache(size, ttl)
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records request counts and latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithSchemas sets the registry resources are resolved against. Defaults to
// the built-in catalog.
func WithSchemas(registry *schema.Registry) Option {
	return func(c *Client) {
		c.schemas = registry
	}
}

// WithSanitizer replaces the policy applied to rich-text fields on read. Pass
// nil to keep rich text as returned by the server.
func WithSanitizer(policy *bluemonday.Policy) Option {
	return func(c *Client) {
		c.sanitizer = policy
		c.sanitizerSet = true
	}
}

// Client talks to the backend REST API.
type Client struct {
	baseURL      *url.URL
	http         *http.Client
	store        auth.Store
	auth         *auth.Authenticator
	limiter      *rate.Limiter
	cache        *responseCache
	logger       *slog.Logger
	metrics      *metrics.Metrics
	schemas      *schema.Registry
	sanitizer    *bluemonday.Policy
	sanitizerSet bool

	resourcesMu sync.Mutex
	resources   map[string]*Resource
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, options ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("client: parse base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("client: base url %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL:   parsed,
		http:      &http.Client{Timeout: defaultTimeout},
		logger:    slog.New(slog.DiscardHandler),
		resources: map[string]*Resource{},
	}
	for _, option := range options {
		if option != nil {
			option(c)
		}
	}
	c.logger = c.logger.With(slog.String("component", "client"))

	if !c.sanitizerSet {
		c.sanitizer = bluemonday.UGCPolicy()
	}
	if c.schemas == nil {
		registry, err := schema.Builtin()
		if err != nil {
			return nil, fmt.Errorf("client: %w", err)
		}
		c.schemas = registry
	}
	if c.auth == nil && c.store != nil {
		c.auth = auth.New(c.store, c.refreshAccessToken,
			auth.WithLogger(c.logger),
			auth.WithMetrics(c.metrics),
		)
	}
	return c, nil
}

// Authenticator exposes the session handling of the client, nil when the
// client was built without a session store.
func (c *Client) Authenticator() *auth.Authenticator {
	return c.auth
}

// request describes one API call. body is kept as bytes so the call can be
// replayed after a token refresh.
type request struct {
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	protected   bool
	// fresh skips the cache lookup; the response still refreshes the cache.
	fresh bool
	// resource labels metrics and scopes cache invalidation.
	resource string
}

func jsonRequest(method, path string, payload any) (request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return request{}, fmt.Errorf("client: encode body: %w", err)
	}
	return request{method: method, path: path, body: data, contentType: "application/json"}, nil
}

// do executes r and returns the response body of a 2xx reply.
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	target := c.resolve(r.path, r.query)
	cacheable := r.method == http.MethodGet && !r.protected && c.cache != nil
	if cacheable && !r.fresh {
		if body, ok := c.cache.get(target); ok {
			c.metrics.CacheLookup(true)
			return body, nil
		}
		c.metrics.CacheLookup(false)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Message: err.Error(), Err: err}
		}
	}

	send := func(ctx context.Context, token string) (*http.Response, error) {
		var body io.Reader
		if r.body != nil {
			body = bytes.NewReader(r.body)
		}
		req, err := http.NewRequestWithContext(ctx, r.method, target, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set(RequestIDHeader, uuid.NewString())
		if r.contentType != "" {
			req.Header.Set("Content-Type", r.contentType)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return c.http.Do(req)
	}

	started := time.Now()
	var (
		resp *http.Response
		err  error
	)
	if r.protected {
		if c.auth == nil {
			return nil, auth.ErrNotLoggedIn
		}
		resp, err = c.auth.Do(ctx, send)
	} else {
		resp, err = send(ctx, "")
	}
	if err != nil {
		c.metrics.ObserveRequest(r.resource, r.method, 0, time.Since(started))
		if errors.Is(err, auth.ErrNotLoggedIn) || errors.Is(err, auth.ErrRefreshFailed) {
			return nil, err
		}
		c.logger.Warn("request failed", slog.String("method", r.method), slog.String("url", target), slog.Any("error", err))
		return nil, &Error{Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.metrics.ObserveRequest(r.resource, r.method, resp.StatusCode, time.Since(started))
	if err != nil {
		return nil, &Error{Status: resp.StatusCode, Message: err.Error(), Err: err}
	}

	c.logger.Debug("api call",
		slog.String("method", r.method),
		slog.String("url", target),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseError(resp.StatusCode, body)
	}
	if r.method != http.MethodGet && c.cache != nil {
		c.cache.invalidate(c.resolve("/"+strings.Trim(r.resource, "/")+"/", nil))
	}
	if cacheable {
		c.cache.put(target, body)
	}
	return body, nil
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// decodeJSON decodes body keeping numbers as json.Number so large ids survive.
func decodeJSON(body []byte, dest any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

func expand(template, slug string) string {
	return strings.ReplaceAll(template, "{slug}", slug)
}

func pageQuery(page int, search string) url.Values {
	query := url.Values{}
	if page > 1 {
		query.Set("page", strconv.Itoa(page))
	}
	if search = strings.TrimSpace(search); search != "" {
		query.Set("search", search)
	}
	return query
}
