package client

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formsync/pkg/auth"
	"github.com/goliatone/go-formsync/pkg/serialize"
	"github.com/goliatone/go-formsync/pkg/testsupport"
)

func newClient(t *testing.T, backend *testsupport.Backend, options ...Option) *Client {
	t.Helper()
	c, err := New(backend.URL(), options...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func loggedIn(backend *testsupport.Backend) *auth.MemoryStore {
	access, refresh := backend.Tokens()
	return auth.NewMemoryStore(auth.Session{AccessToken: access, RefreshToken: refresh, Role: auth.RoleAdmin})
}

func namePayload(name string) serialize.Payload {
	return serialize.Payload{Parts: []serialize.Part{{Name: "name", Value: name}}}
}

func TestNewRejectsRelativeURL(t *testing.T) {
	if _, err := New("/api"); err == nil {
		t.Fatalf("expected error for relative base url")
	}
}

func TestDetailSanitizesRichText(t *testing.T) {
	backend := testsupport.NewBackend(t)
	backend.Seed("consultancy", "global-pathways", testsupport.ConsultancyRecord())
	c := newClient(t, backend)

	record, err := c.Consultancies().Detail(context.Background(), "global-pathways")
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	about, _ := record["about"].(string)
	if strings.Contains(about, "<script>") {
		t.Fatalf("rich text not sanitized: %q", about)
	}
	if !strings.Contains(about, "<p>Trusted since 2012.</p>") {
		t.Fatalf("sanitizer dropped safe markup: %q", about)
	}
	if record["address"] != "Putalisadak, Kathmandu" {
		t.Fatalf("plain field altered: %v", record["address"])
	}

	requests := backend.Requests()
	if len(requests) != 1 || requests[0].RequestID == "" {
		t.Fatalf("expected one request carrying a request id, got %+v", requests)
	}
	if requests[0].Authorization != "" {
		t.Fatalf("public read must not carry a token")
	}
}

func TestListPaginatesAndSearches(t *testing.T) {
	backend := testsupport.NewBackend(t)
	for i := 0; i < 23; i++ {
		name := "Consultancy " + string(rune('A'+i))
		backend.Seed("consultancy", strings.ToLower(strings.ReplaceAll(name, " ", "-")), map[string]any{"name": name})
	}
	c := newClient(t, backend)

	page, err := c.Consultancies().List(context.Background(), ListParams{Page: 3})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Count != 23 || len(page.Results) != 3 {
		t.Fatalf("page 3: count=%d results=%d", page.Count, len(page.Results))
	}
	if got := TotalPages(page.Count); got != 3 {
		t.Fatalf("TotalPages = %d, want 3", got)
	}

	page, err = c.Consultancies().List(context.Background(), ListParams{Search: "consultancy b"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Count != 1 || page.Results[0]["name"] != "Consultancy B" {
		t.Fatalf("search results mismatch: %+v", page)
	}

	all, err := c.Consultancies().All(context.Background(), ListParams{})
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 23 {
		t.Fatalf("All returned %d records, want 23", len(all))
	}
}

func TestTotalPages(t *testing.T) {
	for count, want := range map[int]int{0: 0, 1: 1, 10: 1, 11: 2, 95: 10} {
		if got := TotalPages(count); got != want {
			t.Errorf("TotalPages(%d) = %d, want %d", count, got, want)
		}
	}
}

func TestMutationWithoutSessionIsNotAttempted(t *testing.T) {
	backend := testsupport.NewBackend(t)
	backend.Seed("consultancy", "global-pathways", testsupport.ConsultancyRecord())
	c := newClient(t, backend, WithSessionStore(auth.NewMemoryStore(auth.Session{})))

	_, err := c.Consultancies().Update(context.Background(), "global-pathways", namePayload("Renamed"))
	if !errors.Is(err, auth.ErrNotLoggedIn) {
		t.Fatalf("expected ErrNotLoggedIn, got %v", err)
	}
	if n := len(backend.Mutations()); n != 0 {
		t.Fatalf("expected no mutation to reach the server, got %d", n)
	}
}

func TestUpdateRefreshesOnceAndRetries(t *testing.T) {
	backend := testsupport.NewBackend(t)
	backend.Seed("consultancy", "global-pathways", testsupport.ConsultancyRecord())
	store := loggedIn(backend)
	c := newClient(t, backend, WithSessionStore(store))
	backend.ExpireAccess()

	record, err := c.Consultancies().Update(context.Background(), "global-pathways", namePayload("Renamed"))
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if record["name"] != "Renamed" {
		t.Fatalf("name = %v, want Renamed", record["name"])
	}
	if got := backend.Refreshes(); got != 1 {
		t.Fatalf("refreshes = %d, want 1", got)
	}

	var calls []string
	for _, r := range backend.Mutations() {
		calls = append(calls, r.Method+" "+r.Path)
	}
	want := []string{
		"PATCH /consultancy/global-pathways/update/",
		"POST /auth/token/refresh/",
		"PATCH /consultancy/global-pathways/update/",
	}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Fatalf("calls mismatch (-want +got):\n%s", diff)
	}
	retried := backend.Mutations()[2]
	if diff := cmp.Diff([]string{"Renamed"}, retried.Form["name"]); diff != "" {
		t.Fatalf("retry must resend the same body (-want +got):\n%s", diff)
	}

	access, _ := backend.Tokens()
	session, _ := store.Load(context.Background())
	if session.AccessToken != access {
		t.Fatalf("stored token = %q, want %q", session.AccessToken, access)
	}
}

func TestRejectedRefreshClearsSession(t *testing.T) {
	backend := testsupport.NewBackend(t)
	backend.Seed("consultancy", "global-pathways", testsupport.ConsultancyRecord())
	store := loggedIn(backend)
	c := newClient(t, backend, WithSessionStore(store))
	backend.ExpireAccess()
	backend.RejectRefresh()

	_, err := c.Consultancies().Update(context.Background(), "global-pathways", namePayload("Renamed"))
	var apiErr *Error
	if !errors.As(err, &apiErr) || !apiErr.Unauthorized() {
		t.Fatalf("expected the original 401, got %v", err)
	}
	if _, err := store.Load(context.Background()); !errors.Is(err, auth.ErrNoSession) {
		t.Fatalf("expected session cleared, got %v", err)
	}
	record, _ := backend.Record("consultancy", "global-pathways")
	if record["name"] != "Global Pathways" {
		t.Fatalf("server record changed: %v", record["name"])
	}
}

func TestValidationErrorIsVerbatim(t *testing.T) {
	backend := testsupport.NewBackend(t)
	backend.Seed("consultancy", "global-pathways", testsupport.ConsultancyRecord())
	c := newClient(t, backend, WithSessionStore(loggedIn(backend)))
	backend.FailNext(http.MethodPatch, "/consultancy/global-pathways/update/", http.StatusBadRequest,
		`{"email":["Enter a valid email address."],"branches":[{},{"location":["This field is required."]}]}`)

	_, err := c.Consultancies().Update(context.Background(), "global-pathways", namePayload("x"))
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest {
		t.Fatalf("status = %d", apiErr.Status)
	}
	wantFields := map[string][]string{
		"email":               {"Enter a valid email address."},
		"branches.1.location": {"This field is required."},
	}
	if diff := cmp.Diff(wantFields, apiErr.Fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestParseError(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"detail", 403, `{"detail":"You do not have permission to perform this action."}`, "You do not have permission to perform this action."},
		{"error key", 400, `{"error":"Invalid credentials"}`, "Invalid credentials"},
		{"message key", 409, `{"message":"Slug already taken"}`, "Slug already taken"},
		{"detail list", 400, `{"detail":["first","second"]}`, "first"},
		{"bare list", 400, `["Only one main branch allowed."]`, "Only one main branch allowed."},
		{"raw text", 500, "upstream exploded\n", "upstream exploded"},
		{"field errors only", 400, `{"name":["required"]}`, `{"name":["required"]}`},
		{"empty", 502, "", "Bad Gateway"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := parseError(tc.status, []byte(tc.body))
			if err.Message != tc.message {
				t.Fatalf("message = %q, want %q", err.Message, tc.message)
			}
			if err.Status != tc.status {
				t.Fatalf("status = %d", err.Status)
			}
		})
	}
}

func TestTransportErrorHasZeroStatus(t *testing.T) {
	c, err := New("http://127.0.0.1:1", WithHTTPClient(&http.Client{Timeout: time.Second}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Consultancies().Detail(context.Background(), "anything")
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Status != 0 || apiErr.Err == nil {
		t.Fatalf("expected transport *Error, got %v", err)
	}
}

func TestCacheServesReadsUntilMutation(t *testing.T) {
	backend := testsupport.NewBackend(t)
	backend.Seed("consultancy", "global-pathways", testsupport.ConsultancyRecord())
	c := newClient(t, backend, WithCache(16, time.Minute), WithSessionStore(loggedIn(backend)))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.Consultancies().Detail(ctx, "global-pathways"); err != nil {
			t.Fatalf("Detail: %v", err)
		}
	}
	if n := len(backend.Requests()); n != 1 {
		t.Fatalf("expected cached reads, server saw %d requests", n)
	}

	if _, err := c.Consultancies().Update(ctx, "global-pathways", namePayload("Renamed")); err != nil {
		t.Fatalf("Update: %v", err)
	}
	record, err := c.Consultancies().Detail(ctx, "global-pathways")
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if record["name"] != "Renamed" {
		t.Fatalf("stale read after mutation: %v", record["name"])
	}
}

func TestLoginStoresSession(t *testing.T) {
	backend := testsupport.NewBackend(t)
	store := auth.NewMemoryStore(auth.Session{})
	c := newClient(t, backend, WithSessionStore(store))

	if _, _, err := c.Login(context.Background(), testsupport.AdminEmail, "wrong"); err == nil {
		t.Fatalf("expected invalid credentials")
	} else {
		var apiErr *Error
		if !errors.As(err, &apiErr) || apiErr.Message != "Invalid credentials" {
			t.Fatalf("unexpected login error %v", err)
		}
	}

	user, session, err := c.Login(context.Background(), testsupport.AdminEmail, testsupport.AdminPassword)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if user.Role != auth.RoleAdmin || user.ID != "1" {
		t.Fatalf("unexpected user %+v", user)
	}
	stored, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(session, stored); diff != "" {
		t.Fatalf("stored session mismatch (-want +got):\n%s", diff)
	}

	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := store.Load(context.Background()); !errors.Is(err, auth.ErrNoSession) {
		t.Fatalf("expected logged out, got %v", err)
	}
}

func TestToggleVerificationKeepsResetFields(t *testing.T) {
	backend := testsupport.NewBackend(t)
	backend.Seed("consultancy", "global-pathways", testsupport.ConsultancyRecord())
	backend.ResetWhenAbsent("consultancy", "districts", "study_abroad_destinations", "test_preparation", "partner_universities", "branches")
	c := newClient(t, backend, WithSessionStore(loggedIn(backend)), WithCache(16, time.Minute))
	ctx := context.Background()

	// A stale cached detail must not be the base of the update.
	if _, err := c.Consultancies().Detail(ctx, "global-pathways"); err != nil {
		t.Fatalf("Detail: %v", err)
	}
	stale, _ := backend.Record("consultancy", "global-pathways")
	stale["districts"] = []any{map[string]any{"id": 3, "name": "Kaski"}}
	backend.Seed("consultancy", "global-pathways", stale)

	record, err := c.ToggleVerification(ctx, "consultancy", "global-pathways", true)
	if err != nil {
		t.Fatalf("ToggleVerification: %v", err)
	}
	if record["is_verified"] != true {
		t.Fatalf("is_verified = %v", record["is_verified"])
	}

	sent := backend.Mutations()[0].Form
	want := map[string][]string{
		"is_verified":               {"true"},
		"districts":                 {"[3]"},
		"study_abroad_destinations": {"[4]"},
		"test_preparation":          {"[9]"},
		"partner_universities":      {"[]"},
	}
	for key, values := range want {
		if diff := cmp.Diff(values, sent[key]); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", key, diff)
		}
	}
	if _, ok := sent["branches"]; !ok {
		t.Errorf("branches must travel with the flag, sent %v", sent)
	}
	for _, key := range []string{"name", "phone", "logo", "gallery_images", "deleted_gallery_images"} {
		if _, ok := sent[key]; ok {
			t.Errorf("untouched %s must not be sent", key)
		}
	}

	stored, _ := backend.Record("consultancy", "global-pathways")
	if districts, _ := stored["districts"].([]any); len(districts) != 1 {
		t.Fatalf("districts lost: %v", stored["districts"])
	}
	if branches, _ := stored["branches"].([]any); len(branches) != 1 {
		t.Fatalf("branches lost: %v", stored["branches"])
	}

	if _, err := c.ToggleVerification(ctx, "district", "x", true); err == nil {
		t.Fatalf("expected error for entity without verification flag")
	}
}

func TestCommentsAndAds(t *testing.T) {
	backend := testsupport.NewBackend(t)
	c := newClient(t, backend)
	ctx := context.Background()

	if _, err := c.ListComments(ctx, "events", "x"); err == nil {
		t.Fatalf("expected unsupported kind error")
	}
	if _, err := c.FetchAds(ctx, "home_top"); err != nil {
		t.Fatalf("FetchAds: %v", err)
	}
	requests := backend.Requests()
	last := requests[len(requests)-1]
	if last.Path != "/api/ads/" || last.Query != "placement=home_top" {
		t.Fatalf("unexpected ads request %s?%s", last.Path, last.Query)
	}

	settings, err := c.FetchSiteSettings(ctx)
	if err != nil {
		t.Fatalf("FetchSiteSettings: %v", err)
	}
	if settings["site_name"] != "Abroad Advise" {
		t.Fatalf("unexpected settings %v", settings)
	}
}
