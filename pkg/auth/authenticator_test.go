package auth

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-formsync/internal/metrics"
)

func response(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(http.StatusText(status))),
	}
}

// tokenSender answers 200 for the valid token and 401 for everything else.
func tokenSender(valid string, calls *[]string, mu *sync.Mutex) Sender {
	return func(_ context.Context, token string) (*http.Response, error) {
		mu.Lock()
		*calls = append(*calls, token)
		mu.Unlock()
		if token == valid {
			return response(http.StatusOK), nil
		}
		return response(http.StatusUnauthorized), nil
	}
}

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func TestDoWithoutSessionDoesNotSend(t *testing.T) {
	auth := New(NewMemoryStore(Session{}), nil)
	sent := false
	_, err := auth.Do(context.Background(), func(context.Context, string) (*http.Response, error) {
		sent = true
		return response(http.StatusOK), nil
	})
	if !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn, got %v", err)
	}
	if sent {
		t.Fatalf("request must not be attempted without a session")
	}
}

func TestDoRefreshesOnceAndRetries(t *testing.T) {
	store := NewMemoryStore(Session{AccessToken: "old", RefreshToken: "r1", Role: RoleAdmin})
	var refreshes int
	refresh := func(_ context.Context, token string) (string, error) {
		refreshes++
		if token != "r1" {
			t.Errorf("refresh called with %q", token)
		}
		return "new", nil
	}
	var (
		calls []string
		mu    sync.Mutex
	)
	auth := New(store, refresh)

	resp, err := auth.Do(context.Background(), tokenSender("new", &calls, &mu))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if refreshes != 1 {
		t.Fatalf("refreshes = %d, want 1", refreshes)
	}
	if diff := cmp.Diff([]string{"old", "new"}, calls); diff != "" {
		t.Fatalf("sent tokens mismatch (-want +got):\n%s", diff)
	}
	session, _ := store.Load(context.Background())
	want := Session{AccessToken: "new", RefreshToken: "r1", Role: RoleAdmin}
	if diff := cmp.Diff(want, session); diff != "" {
		t.Fatalf("stored session mismatch (-want +got):\n%s", diff)
	}
}

func TestDoRetryStill401IsSurfaced(t *testing.T) {
	store := NewMemoryStore(Session{AccessToken: "old", RefreshToken: "r1"})
	var refreshes int
	auth := New(store, func(context.Context, string) (string, error) {
		refreshes++
		return "also-bad", nil
	})
	var (
		calls []string
		mu    sync.Mutex
	)
	resp, err := auth.Do(context.Background(), tokenSender("never", &calls, &mu))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if refreshes != 1 || len(calls) != 2 {
		t.Fatalf("refreshes = %d, sends = %d; want 1 and 2", refreshes, len(calls))
	}
}

func TestDoRefreshFailureClearsSessionAndReturnsOriginal401(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := NewMemoryStore(Session{AccessToken: "old", RefreshToken: "revoked", Role: RoleConsultancy, EntityID: "7"})
	auth := New(store, func(context.Context, string) (string, error) {
		return "", errors.New("401 from refresh endpoint")
	}, WithMetrics(metrics.New(reg)))

	var (
		calls []string
		mu    sync.Mutex
	)
	resp, err := auth.Do(context.Background(), tokenSender("new", &calls, &mu))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != http.StatusText(http.StatusUnauthorized) {
		t.Fatalf("original response body was consumed: %q", body)
	}
	if len(calls) != 1 {
		t.Fatalf("expected no retry after failed refresh, got %d sends", len(calls))
	}
	if _, err := store.Load(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected session cleared, got %v", err)
	}
	if _, err := auth.Do(context.Background(), tokenSender("new", &calls, &mu)); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("subsequent calls must report not logged in, got %v", err)
	}
}

func TestConcurrent401sShareOneRefresh(t *testing.T) {
	store := NewMemoryStore(Session{AccessToken: "old", RefreshToken: "r1"})
	var refreshes atomic.Int32
	auth := New(store, func(context.Context, string) (string, error) {
		refreshes.Add(1)
		time.Sleep(20 * time.Millisecond)
		return "new", nil
	})

	var (
		calls []string
		mu    sync.Mutex
		wg    sync.WaitGroup
	)
	statuses := make([]int, 8)
	for i := range statuses {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := auth.Do(context.Background(), tokenSender("new", &calls, &mu))
			if err != nil {
				t.Errorf("Do: %v", err)
				return
			}
			statuses[i] = resp.StatusCode
		}(i)
	}
	wg.Wait()

	if got := refreshes.Load(); got != 1 {
		t.Fatalf("refreshes = %d, want 1", got)
	}
	for i, status := range statuses {
		if status != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, status)
		}
	}
}

func TestCancelledCallerDoesNotAbortSharedRefresh(t *testing.T) {
	store := NewMemoryStore(Session{AccessToken: "old", RefreshToken: "r1"})
	started := make(chan struct{})
	release := make(chan struct{})
	var refreshes atomic.Int32
	auth := New(store, func(ctx context.Context, _ string) (string, error) {
		if refreshes.Add(1) == 1 {
			close(started)
		}
		select {
		case <-release:
			return "new", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})

	var (
		calls []string
		mu    sync.Mutex
	)
	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := auth.Do(ctxA, tokenSender("new", &calls, &mu))
		errA <- err
	}()

	<-started
	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller error = %v, want context.Canceled", err)
	}

	type result struct {
		status int
		err    error
	}
	resB := make(chan result, 1)
	go func() {
		resp, err := auth.Do(context.Background(), tokenSender("new", &calls, &mu))
		if err != nil {
			resB <- result{err: err}
			return
		}
		resB <- result{status: resp.StatusCode}
	}()
	close(release)

	got := <-resB
	if got.err != nil {
		t.Fatalf("Do: %v", got.err)
	}
	if got.status != http.StatusOK {
		t.Fatalf("status = %d, want 200", got.status)
	}
	if n := refreshes.Load(); n != 1 {
		t.Fatalf("refreshes = %d, want 1", n)
	}
	session, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("session lost after cancelled request: %v", err)
	}
	if session.AccessToken != "new" || session.RefreshToken != "r1" {
		t.Fatalf("session = %+v, want refreshed access token", session)
	}
}

func TestRefreshTimeoutKeepsSession(t *testing.T) {
	store := NewMemoryStore(Session{AccessToken: "old", RefreshToken: "r1"})
	auth := New(store, func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}, WithRefreshTimeout(10*time.Millisecond))

	var (
		calls []string
		mu    sync.Mutex
	)
	resp, err := auth.Do(context.Background(), tokenSender("new", &calls, &mu))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	session, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("session cleared after timed out refresh: %v", err)
	}
	if diff := cmp.Diff(Session{AccessToken: "old", RefreshToken: "r1"}, session); diff != "" {
		t.Fatalf("session mismatch (-want +got):\n%s", diff)
	}
}

func TestExpiredTokenRefreshedBeforeSend(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expired := signed(t, jwt.MapClaims{"user_id": 4, "exp": now.Add(-time.Minute).Unix()})
	store := NewMemoryStore(Session{AccessToken: expired, RefreshToken: "r1"})
	var refreshes int
	auth := New(store, func(context.Context, string) (string, error) {
		refreshes++
		return "new", nil
	}, WithClock(func() time.Time { return now }))

	var (
		calls []string
		mu    sync.Mutex
	)
	resp, err := auth.Do(context.Background(), tokenSender("new", &calls, &mu))
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if diff := cmp.Diff([]string{"new"}, calls); diff != "" {
		t.Fatalf("sent tokens mismatch (-want +got):\n%s", diff)
	}
	if refreshes != 1 {
		t.Fatalf("refreshes = %d, want 1", refreshes)
	}
}

func TestExpiredTokenWithFailingRefresh(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expired := signed(t, jwt.MapClaims{"exp": now.Add(-time.Hour).Unix()})
	store := NewMemoryStore(Session{AccessToken: expired})
	auth := New(store, nil, WithClock(func() time.Time { return now }))

	sent := false
	_, err := auth.Do(context.Background(), func(context.Context, string) (*http.Response, error) {
		sent = true
		return response(http.StatusOK), nil
	})
	if !errors.Is(err, ErrRefreshFailed) {
		t.Fatalf("expected ErrRefreshFailed, got %v", err)
	}
	if sent {
		t.Fatalf("request must not be sent with an expired token")
	}
	if _, err := store.Load(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected session cleared, got %v", err)
	}
}

func TestParseClaims(t *testing.T) {
	exp := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	token := signed(t, jwt.MapClaims{"user_id": 42, "role": "university", "exp": exp.Unix()})

	claims, err := ParseClaims(token)
	if err != nil {
		t.Fatalf("ParseClaims: %v", err)
	}
	want := Claims{UserID: "42", Role: "university", ExpiresAt: exp}
	if diff := cmp.Diff(want, claims); diff != "" {
		t.Fatalf("claims mismatch (-want +got):\n%s", diff)
	}
	if claims.Expired(exp.Add(-time.Hour), time.Minute) {
		t.Fatalf("token reported expired an hour early")
	}
	if !claims.Expired(exp.Add(-30*time.Second), time.Minute) {
		t.Fatalf("token inside leeway should be expired")
	}
	if _, err := ParseClaims("opaque"); err == nil {
		t.Fatalf("expected error for non-JWT token")
	}
}
