package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/goliatone/go-formsync/internal/metrics"
)

// RefreshFunc exchanges a refresh token for a new access token.
type RefreshFunc func(ctx context.Context, refreshToken string) (string, error)

// Sender issues one request with the given access token. It must return a
// non-nil response whenever err is nil.
type Sender func(ctx context.Context, accessToken string) (*http.Response, error)

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Authenticator) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics records refresh outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Authenticator) {
		a.metrics = m
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(a *Authenticator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithLeeway refreshes access tokens that expire within d before sending.
func WithLeeway(d time.Duration) Option {
	return func(a *Authenticator) {
		a.leeway = d
	}
}

// WithRefreshTimeout bounds a shared refresh. The refresh does not follow the
// cancellation of the request that started it, so this is its only deadline.
func WithRefreshTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.refreshTimeout = d
		}
	}
}

// Authenticator attaches the stored access token to protected requests and
// recovers from expiry with a single refresh and a single retry.
type Authenticator struct {
	store   Store
	refresh RefreshFunc
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	leeway  time.Duration

	refreshTimeout time.Duration

	mu       sync.Mutex
	inflight *refreshCall
}

type refreshCall struct {
	done   chan struct{}
	access string
	err    error
}

// New builds an Authenticator over store. refresh is called at most once per
// expiry, however many requests observe it concurrently.
func New(store Store, refresh RefreshFunc, options ...Option) *Authenticator {
	a := &Authenticator{
		store:   store,
		refresh: refresh,
		logger:  slog.New(slog.DiscardHandler),
		now:     time.Now,
		leeway:  5 * time.Second,

		refreshTimeout: 30 * time.Second,
	}
	for _, option := range options {
		if option != nil {
			option(a)
		}
	}
	a.logger = a.logger.With(slog.String("component", "auth"))
	return a
}

// Session returns the stored session or ErrNotLoggedIn.
func (a *Authenticator) Session(ctx context.Context) (Session, error) {
	session, err := a.store.Load(ctx)
	if errors.Is(err, ErrNoSession) {
		return Session{}, ErrNotLoggedIn
	}
	if err != nil {
		return Session{}, err
	}
	return session, nil
}

// Login persists a session obtained from the login endpoint.
func (a *Authenticator) Login(ctx context.Context, session Session) error {
	if !session.Valid() {
		return fmt.Errorf("auth: login: %w", ErrNoSession)
	}
	if err := a.store.Save(ctx, session); err != nil {
		return err
	}
	a.logger.Info("session stored", slog.String("role", session.Role))
	return nil
}

// Logout removes the stored session.
func (a *Authenticator) Logout(ctx context.Context) error {
	if err := a.store.Clear(ctx); err != nil {
		return err
	}
	a.logger.Info("session cleared")
	return nil
}

// Do sends a protected request. Without a session it fails with
// ErrNotLoggedIn and send is never called. A 401 triggers one refresh and one
// retry; when the refresh fails the session is cleared and the original 401
// response is returned. An access token that is already expired is refreshed
// before sending, and that refresh is the request's only one. A caller whose
// context ends during the refresh gets the context error and the session is
// left in place.
func (a *Authenticator) Do(ctx context.Context, send Sender) (*http.Response, error) {
	session, err := a.Session(ctx)
	if err != nil {
		return nil, err
	}

	token := session.AccessToken
	refreshed := false
	if a.expired(token) {
		a.logger.Debug("access token expired, refreshing before send")
		fresh, err := a.refreshShared(ctx, token)
		if err != nil {
			return nil, err
		}
		token, refreshed = fresh, true
	}

	resp, err := send(ctx, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || refreshed {
		return resp, nil
	}

	fresh, err := a.refreshShared(ctx, token)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			drain(resp)
			return nil, ctxErr
		}
		a.logger.Warn("refresh after 401 failed", slog.Any("error", err))
		return resp, nil
	}
	drain(resp)
	return send(ctx, fresh)
}

func (a *Authenticator) expired(token string) bool {
	claims, err := ParseClaims(token)
	if err != nil {
		return false
	}
	return claims.Expired(a.now(), a.leeway)
}

// refreshShared refreshes the token that stale was issued as. Callers that
// arrive while a refresh is running wait for it; callers holding a token that
// was already replaced adopt the stored one without refreshing again. The
// refresh runs detached from every caller: a caller that gives up stops
// waiting but does not abort the refresh the others wait on.
func (a *Authenticator) refreshShared(ctx context.Context, stale string) (string, error) {
	a.mu.Lock()
	if call := a.inflight; call != nil {
		a.mu.Unlock()
		return call.wait(ctx)
	}

	session, err := a.store.Load(ctx)
	if err != nil {
		a.mu.Unlock()
		if errors.Is(err, ErrNoSession) {
			return "", ErrRefreshFailed
		}
		return "", err
	}
	if session.AccessToken != stale {
		a.mu.Unlock()
		return session.AccessToken, nil
	}

	call := &refreshCall{done: make(chan struct{})}
	a.inflight = call
	a.mu.Unlock()

	go func() {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.refreshTimeout)
		defer cancel()
		call.access, call.err = a.doRefresh(refreshCtx, session)

		a.mu.Lock()
		a.inflight = nil
		a.mu.Unlock()
		close(call.done)
	}()
	return call.wait(ctx)
}

func (c *refreshCall) wait(ctx context.Context) (string, error) {
	select {
	case <-c.done:
		return c.access, c.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (a *Authenticator) doRefresh(ctx context.Context, session Session) (string, error) {
	var (
		access string
		err    error
	)
	if session.RefreshToken == "" || a.refresh == nil {
		err = errors.New("no refresh token")
	} else {
		access, err = a.refresh(ctx, session.RefreshToken)
		if err == nil && access == "" {
			err = errors.New("empty access token")
		}
	}

	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		a.metrics.Refresh("interrupted")
		a.logger.Warn("refresh interrupted, session kept", slog.Any("error", err))
		return "", fmt.Errorf("auth: refresh: %w", err)
	}
	if err != nil {
		a.metrics.Refresh("failed")
		if clearErr := a.store.Clear(ctx); clearErr != nil {
			a.logger.Error("clear session after failed refresh", slog.Any("error", clearErr))
		}
		return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	session.AccessToken = access
	if err := a.store.Save(ctx, session); err != nil {
		a.metrics.Refresh("failed")
		return "", fmt.Errorf("auth: persist refreshed token: %w", err)
	}
	a.metrics.Refresh("ok")
	a.logger.Debug("access token refreshed")
	return access, nil
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
