package testsupport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

// Credentials accepted by the fake login endpoint.
const (
	AdminEmail    = "admin@example.com"
	AdminPassword = "secret"
)

const pageSize = 10

// Upload describes a file part received by the backend.
type Upload struct {
	Filename    string
	ContentType string
	Size        int
}

// Request is a recorded call.
type Request struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	RequestID     string
	// Form holds multipart values in arrival order per key.
	Form  map[string][]string
	Files map[string][]Upload
	JSON  map[string]any
}

type failure struct {
	status int
	body   string
}

// Backend is an in-memory rendition of the REST API, served over httptest.
// Records are keyed by resource and slug; mutations require the current
// access token.
type Backend struct {
	server *httptest.Server

	mu            sync.Mutex
	requests      []Request
	records       map[string]map[string]map[string]any
	nextID        int64
	access        string
	refresh       string
	issued        int
	refreshes     int
	rejectRefresh bool
	failures      map[string][]failure

	// resets lists fields the admin update sets to an empty list when they
	// are absent from the request.
	resets map[string][]string

	// ignoreDeletions marks resources whose admin update drops deleted_*.
	ignoreDeletions map[string]bool

	// owners maps a resource to the slug of the dashboard account's entity.
	owners map[string]dashboardOwner
}

type dashboardOwner struct {
	slug   string
	nested bool
}

// NewBackend starts a fake backend that is closed with the test.
func NewBackend(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		records:  map[string]map[string]map[string]any{},
		nextID:   100,
		access:   "access-1",
		refresh:  "refresh-1",
		issued:   1,
		failures: map[string][]failure{},

		resets:          map[string][]string{},
		ignoreDeletions: map[string]bool{},
		owners:          map[string]dashboardOwner{},
	}
	b.server = httptest.NewServer(b.routes())
	t.Cleanup(b.server.Close)
	return b
}

// URL is the API base URL.
func (b *Backend) URL() string {
	return b.server.URL
}

// Tokens returns the currently valid access and refresh tokens.
func (b *Backend) Tokens() (string, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.access, b.refresh
}

// ExpireAccess invalidates the current access token. The next refresh issues
// a new one.
func (b *Backend) ExpireAccess() {
	b.mu.Lock()
	b.issued++
	b.access = "access-" + strconv.Itoa(b.issued)
	b.mu.Unlock()
}

// RejectRefresh makes the refresh endpoint answer 401.
func (b *Backend) RejectRefresh() {
	b.mu.Lock()
	b.rejectRefresh = true
	b.mu.Unlock()
}

// Refreshes counts successful and rejected refresh calls.
func (b *Backend) Refreshes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshes
}

// FailNext makes the next request matching method and path answer status
// with body.
func (b *Backend) FailNext(method, path string, status int, body string) {
	b.mu.Lock()
	key := method + " " + path
	b.failures[key] = append(b.failures[key], failure{status: status, body: body})
	b.mu.Unlock()
}

// ResetWhenAbsent makes the admin update of resource replace each listed
// field with an empty list when the request does not carry it.
func (b *Backend) ResetWhenAbsent(resource string, fields ...string) {
	b.mu.Lock()
	b.resets[resource] = append(b.resets[resource], fields...)
	b.mu.Unlock()
}

// IgnoreDeletions makes the admin update of resource drop deleted_* markers.
// The dashboard update still applies them.
func (b *Backend) IgnoreDeletions(resource string) {
	b.mu.Lock()
	b.ignoreDeletions[resource] = true
	b.mu.Unlock()
}

// SetDashboard makes slug the entity owned by the logged-in account on the
// dashboard routes of resource. nested serves the profile under the resource
// name next to "inquiries" instead of adding "inquiries" to the record.
func (b *Backend) SetDashboard(resource, slug string, nested bool) {
	b.mu.Lock()
	b.owners[resource] = dashboardOwner{slug: slug, nested: nested}
	b.mu.Unlock()
}

// Seed stores record under resource and slug. The record is copied.
func (b *Backend) Seed(resource, slug string, record map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seedLocked(resource, slug, record)
}

func (b *Backend) seedLocked(resource, slug string, record map[string]any) {
	bucket := b.records[resource]
	if bucket == nil {
		bucket = map[string]map[string]any{}
		b.records[resource] = bucket
	}
	copied := deepCopy(record).(map[string]any)
	copied["slug"] = slug
	if _, ok := copied["id"]; !ok {
		b.nextID++
		copied["id"] = b.nextID
	}
	bucket[slug] = copied
}

// Record returns a copy of a stored record.
func (b *Backend) Record(resource, slug string) (map[string]any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	record, ok := b.records[resource][slug]
	if !ok {
		return nil, false
	}
	return deepCopy(record).(map[string]any), true
}

// Requests returns every recorded call.
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Request(nil), b.requests...)
}

// Mutations returns recorded calls other than GET.
func (b *Backend) Mutations() []Request {
	var out []Request
	for _, r := range b.Requests() {
		if r.Method != http.MethodGet {
			out = append(out, r)
		}
	}
	return out
}

func (b *Backend) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(b.record)
	r.Use(b.injectFailures)

	r.Post("/auth/login/", b.login)
	r.Post("/auth/token/refresh/", b.refreshToken)
	r.Post("/auth/password-reset/request/", b.accept)
	r.Post("/auth/password-reset/set/", b.accept)
	r.Post("/inquiry/submit/", b.accept)
	r.With(b.requireAuth).Get("/inquiry/admin/all/", b.list("inquiry"))
	r.Get("/api/site-settings/", b.siteSettings)

	r.Route("/api/{resource}", b.resourceRoutes("api/"))
	r.Route("/{resource}", b.resourceRoutes(""))
	return r
}

func (b *Backend) resourceRoutes(prefix string) func(chi.Router) {
	return func(r chi.Router) {
		name := func(req *http.Request) string {
			return prefix + chi.URLParam(req, "resource")
		}
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			b.list(name(req))(w, req)
		})
		r.With(b.requireAuth).Post("/create/", func(w http.ResponseWriter, req *http.Request) {
			b.create(w, req, name(req))
		})
		r.With(b.requireAuth).Get("/dashboard/", func(w http.ResponseWriter, req *http.Request) {
			b.dashboard(w, name(req))
		})
		r.With(b.requireAuth).Patch("/dashboard/update/", func(w http.ResponseWriter, req *http.Request) {
			b.updateDashboard(w, req, name(req))
		})
		r.Get("/{slug}/", func(w http.ResponseWriter, req *http.Request) {
			b.detail(w, req, name(req))
		})
		r.With(b.requireAuth).Patch("/{slug}/update/", func(w http.ResponseWriter, req *http.Request) {
			b.update(w, req, name(req))
		})
		r.With(b.requireAuth).Delete("/{slug}/delete/", func(w http.ResponseWriter, req *http.Request) {
			b.remove(w, req, name(req))
		})
	}
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		recorded := Request{
			Method:        req.Method,
			Path:          req.URL.Path,
			Query:         req.URL.RawQuery,
			Authorization: req.Header.Get("Authorization"),
			RequestID:     req.Header.Get("X-Request-ID"),
		}
		mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
		switch mediaType {
		case "multipart/form-data":
			if err := req.ParseMultipartForm(32 << 20); err == nil {
				recorded.Form = map[string][]string{}
				for key, values := range req.MultipartForm.Value {
					recorded.Form[key] = append([]string(nil), values...)
				}
				recorded.Files = map[string][]Upload{}
				for key, headers := range req.MultipartForm.File {
					for _, header := range headers {
						recorded.Files[key] = append(recorded.Files[key], Upload{
							Filename:    header.Filename,
							ContentType: header.Header.Get("Content-Type"),
							Size:        int(header.Size),
						})
					}
				}
			}
		case "application/json":
			data, _ := io.ReadAll(req.Body)
			_ = json.Unmarshal(data, &recorded.JSON)
		}
		b.mu.Lock()
		b.requests = append(b.requests, recorded)
		b.mu.Unlock()
		next.ServeHTTP(w, req.WithContext(context.WithValue(req.Context(), jsonBodyKey{}, recorded.JSON)))
	})
}

func (b *Backend) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		key := req.Method + " " + req.URL.Path
		b.mu.Lock()
		queued := b.failures[key]
		var fail *failure
		if len(queued) > 0 {
			fail = &queued[0]
			b.failures[key] = queued[1:]
		}
		b.mu.Unlock()
		if fail != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(fail.status)
			_, _ = io.WriteString(w, fail.body)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (b *Backend) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		b.mu.Lock()
		valid := "Bearer " + b.access
		b.mu.Unlock()
		if req.Header.Get("Authorization") != valid {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"detail": "Given token not valid for any token type",
			})
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (b *Backend) login(w http.ResponseWriter, req *http.Request) {
	body := jsonBody(req)
	if body["email"] != AdminEmail || body["password"] != AdminPassword {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid credentials"})
		return
	}
	access, refresh := b.Tokens()
	writeJSON(w, http.StatusOK, map[string]any{
		"user":    map[string]any{"id": 1, "email": AdminEmail, "role": "admin"},
		"access":  access,
		"refresh": refresh,
	})
}

func (b *Backend) refreshToken(w http.ResponseWriter, req *http.Request) {
	body := jsonBody(req)
	b.mu.Lock()
	b.refreshes++
	ok := !b.rejectRefresh && body["refresh"] == b.refresh
	access := b.access
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Token is invalid or expired"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"access": access})
}

func (b *Backend) accept(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"message": "ok"})
}

func (b *Backend) siteSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"site_name": "Abroad Advise", "contact_email": "info@example.com"})
}

func (b *Backend) list(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		search := strings.ToLower(req.URL.Query().Get("search"))
		page, _ := strconv.Atoi(req.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}

		b.mu.Lock()
		slugs := make([]string, 0, len(b.records[resource]))
		for slug, record := range b.records[resource] {
			name, _ := record["name"].(string)
			if search != "" && !strings.Contains(strings.ToLower(name), search) {
				continue
			}
			slugs = append(slugs, slug)
		}
		sort.Strings(slugs)
		results := []any{}
		for i := (page - 1) * pageSize; i < len(slugs) && i < page*pageSize; i++ {
			results = append(results, deepCopy(b.records[resource][slugs[i]]))
		}
		b.mu.Unlock()

		var next any
		if page*pageSize < len(slugs) {
			next = fmt.Sprintf("%s?page=%d", req.URL.Path, page+1)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"count":    len(slugs),
			"next":     next,
			"previous": nil,
			"results":  results,
		})
	}
}

func (b *Backend) detail(w http.ResponseWriter, req *http.Request, resource string) {
	record, ok := b.Record(resource, chi.URLParam(req, "slug"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (b *Backend) create(w http.ResponseWriter, req *http.Request, resource string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	record := map[string]any{}
	b.applyLocked(record, req, true)
	name, _ := record["name"].(string)
	if name == "" {
		name, _ = record["title"].(string)
	}
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"name": []string{"This field is required."}})
		return
	}
	slug, _ := record["slug"].(string)
	if slug == "" {
		slug = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
	}
	b.seedLocked(resource, slug, record)
	writeJSON(w, http.StatusCreated, deepCopy(b.records[resource][slug]))
}

func (b *Backend) update(w http.ResponseWriter, req *http.Request, resource string) {
	slug := chi.URLParam(req, "slug")
	b.mu.Lock()
	defer b.mu.Unlock()
	record, ok := b.records[resource][slug]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
		return
	}
	b.applyLocked(record, req, !b.ignoreDeletions[resource])
	if req.MultipartForm != nil {
		for _, field := range b.resets[resource] {
			if _, sent := req.MultipartForm.Value[field]; !sent {
				record[field] = []any{}
			}
		}
	}
	if newSlug, _ := record["slug"].(string); newSlug != "" && newSlug != slug {
		delete(b.records[resource], slug)
		b.records[resource][newSlug] = record
	}
	writeJSON(w, http.StatusOK, deepCopy(record))
}

func (b *Backend) dashboard(w http.ResponseWriter, resource string) {
	b.mu.Lock()
	owner, ok := b.owners[resource]
	record := b.records[resource][owner.slug]
	if !ok || record == nil {
		b.mu.Unlock()
		writeJSON(w, http.StatusForbidden, map[string]any{"error": "User is not linked to any " + resource + "."})
		return
	}
	profile := deepCopy(record).(map[string]any)
	inquiries := []any{}
	for _, inquiry := range b.records["inquiry"] {
		if fmt.Sprint(inquiry[resource]) == fmt.Sprint(record["id"]) {
			inquiries = append(inquiries, deepCopy(inquiry))
		}
	}
	b.mu.Unlock()

	if owner.nested {
		writeJSON(w, http.StatusOK, map[string]any{resource: profile, "inquiries": inquiries})
		return
	}
	profile["inquiries"] = inquiries
	writeJSON(w, http.StatusOK, profile)
}

// updateDashboard applies only what the request carries, deletions included.
func (b *Backend) updateDashboard(w http.ResponseWriter, req *http.Request, resource string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	owner, ok := b.owners[resource]
	record := b.records[resource][owner.slug]
	if !ok || record == nil {
		writeJSON(w, http.StatusForbidden, map[string]any{"error": "User is not linked to any " + resource + "."})
		return
	}
	b.applyLocked(record, req, true)
	writeJSON(w, http.StatusOK, deepCopy(record))
}

func (b *Backend) remove(w http.ResponseWriter, req *http.Request, resource string) {
	slug := chi.URLParam(req, "slug")
	b.mu.Lock()
	_, ok := b.records[resource][slug]
	delete(b.records[resource], slug)
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not found."})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// applyLocked merges the multipart body of req into record: JSON values are
// decoded, "true"/"false" become booleans, deleted_<list> removes entries
// by id when deletions is set, files become media URLs and files sent for a
// list field are appended to it.
func (b *Backend) applyLocked(record map[string]any, req *http.Request, deletions bool) {
	if req.MultipartForm == nil {
		return
	}
	for key, values := range req.MultipartForm.Value {
		if strings.HasPrefix(key, "existing_") {
			continue
		}
		if list, ok := strings.CutPrefix(key, "deleted_"); ok {
			if deletions {
				record[list] = dropIDs(record[list], values)
			}
			continue
		}
		if len(values) > 1 {
			items := make([]any, 0, len(values))
			for _, v := range values {
				items = append(items, v)
			}
			record[key] = items
			continue
		}
		record[key] = decodeValue(values[0])
	}
	for key, headers := range req.MultipartForm.File {
		for _, header := range headers {
			url := "/media/" + header.Filename
			if list, ok := record[key].([]any); ok {
				b.nextID++
				record[key] = append(list, map[string]any{"id": b.nextID, "image": url})
				continue
			}
			record[key] = url
		}
	}
}

func decodeValue(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	case "":
		return nil
	}
	if strings.HasPrefix(raw, "[") || strings.HasPrefix(raw, "{") {
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
			return decoded
		}
	}
	return raw
}

func dropIDs(current any, encoded []string) any {
	list, _ := current.([]any)
	drop := map[string]bool{}
	for _, raw := range encoded {
		var ids []any
		if err := json.Unmarshal([]byte(raw), &ids); err != nil {
			drop[raw] = true
			continue
		}
		for _, id := range ids {
			drop[fmt.Sprint(id)] = true
		}
	}
	out := make([]any, 0, len(list))
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok && drop[fmt.Sprint(obj["id"])] {
			continue
		}
		out = append(out, item)
	}
	return out
}

type jsonBodyKey struct{}

func jsonBody(req *http.Request) map[string]any {
	body, _ := req.Context().Value(jsonBodyKey{}).(map[string]any)
	return body
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func deepCopy(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = deepCopy(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = deepCopy(item)
		}
		return out
	default:
		return value
	}
}
