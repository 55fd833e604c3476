package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-formsync/pkg/form"
	"github.com/goliatone/go-formsync/pkg/normalize"
	"github.com/goliatone/go-formsync/pkg/serialize"
)

// maxListPages bounds the pages walked by the lookup helpers.
const maxListPages = 50

func (c *Client) Consultancies() *Resource { return c.resource("consultancy") }
func (c *Client) Universities() *Resource  { return c.resource("university") }
func (c *Client) Colleges() *Resource      { return c.resource("college") }
func (c *Client) Courses() *Resource       { return c.resource("course") }
func (c *Client) Events() *Resource        { return c.resource("event") }
func (c *Client) Destinations() *Resource  { return c.resource("destination") }
func (c *Client) Exams() *Resource         { return c.resource("exam") }
func (c *Client) Scholarships() *Resource  { return c.resource("scholarship") }
func (c *Client) News() *Resource          { return c.resource("news") }
func (c *Client) Blogs() *Resource         { return c.resource("blog") }
func (c *Client) Featured() *Resource      { return c.resource("featured") }
func (c *Client) Ads() *Resource           { return c.resource("ad") }
func (c *Client) Districts() *Resource     { return c.resource("district") }
func (c *Client) Disciplines() *Resource   { return c.resource("discipline") }

// All walks every page of a listing.
func (r *Resource) All(ctx context.Context, params ListParams) ([]Record, error) {
	var out []Record
	params.Page = 1
	for ; params.Page <= maxListPages; params.Page++ {
		page, err := r.List(ctx, params)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Results...)
		if page.Next == "" || len(page.Results) == 0 {
			break
		}
	}
	return out, nil
}

// FetchDistricts returns every district, for relation pickers.
func (c *Client) FetchDistricts(ctx context.Context) ([]Record, error) {
	return c.Districts().All(ctx, ListParams{})
}

// FetchDisciplines returns every discipline.
func (c *Client) FetchDisciplines(ctx context.Context) ([]Record, error) {
	return c.Disciplines().All(ctx, ListParams{})
}

// FetchDestinations returns every study destination.
func (c *Client) FetchDestinations(ctx context.Context) ([]Record, error) {
	return c.Destinations().All(ctx, ListParams{})
}

// FetchExams returns every exam from the unpaginated listing.
func (c *Client) FetchExams(ctx context.Context) ([]Record, error) {
	return c.getList(ctx, "/exam/all/", nil, "exam")
}

// FetchActiveEvents returns events that have not ended.
func (c *Client) FetchActiveEvents(ctx context.Context) ([]Record, error) {
	return c.getList(ctx, "/event/active/", nil, "event")
}

// FetchAds returns the active ads of a placement. An empty placement returns
// every ad.
func (c *Client) FetchAds(ctx context.Context, placement string) ([]Record, error) {
	query := url.Values{}
	if placement = strings.TrimSpace(placement); placement != "" {
		query.Set("placement", placement)
	}
	return c.getList(ctx, "/api/ads/", query, "api/ads")
}

// FetchSiteSettings returns the singleton site configuration.
func (c *Client) FetchSiteSettings(ctx context.Context) (Record, error) {
	return c.getRecord(ctx, request{method: http.MethodGet, path: "/api/site-settings/", resource: "api/site-settings"})
}

// Comment is a public reader comment on a blog post or news item.
type Comment struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Comment string `json:"comment"`
}

func commentKind(kind string) (string, error) {
	switch kind {
	case "blog", "news":
		return kind, nil
	}
	return "", fmt.Errorf("client: comments: unsupported kind %q", kind)
}

// ListComments returns the comments of a blog post or news item.
func (c *Client) ListComments(ctx context.Context, kind, slug string) ([]Record, error) {
	kind, err := commentKind(kind)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(slug) == "" {
		return nil, ErrMissingSlug
	}
	return c.getList(ctx, "/"+kind+"/"+slug+"/comments/", nil, kind)
}

// AddComment posts a comment and returns it as stored.
func (c *Client) AddComment(ctx context.Context, kind, slug string, comment Comment) (Record, error) {
	kind, err := commentKind(kind)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(slug) == "" {
		return nil, ErrMissingSlug
	}
	r, err := jsonRequest(http.MethodPost, "/"+kind+"/"+slug+"/add-comment/", comment)
	if err != nil {
		return nil, err
	}
	r.resource = kind
	return c.getRecord(ctx, r)
}

// Inquiry is a lead sent from a public entity page.
type Inquiry struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	Message       string `json:"message,omitempty"`
	EntityType    string `json:"entity_type"`
	EntityID      string `json:"entity_id"`
	ConsultancyID string `json:"consultancy_id,omitempty"`
}

// SubmitInquiry sends a public inquiry.
func (c *Client) SubmitInquiry(ctx context.Context, inquiry Inquiry) (Record, error) {
	if inquiry.EntityType == "" || inquiry.EntityID == "" {
		return nil, fmt.Errorf("client: inquiry: entity type and id are required")
	}
	r, err := jsonRequest(http.MethodPost, "/inquiry/submit/", inquiry)
	if err != nil {
		return nil, err
	}
	r.resource = "inquiry"
	return c.getRecord(ctx, r)
}

// ListInquiries returns one page of inquiries. Admin only.
func (c *Client) ListInquiries(ctx context.Context, params ListParams) (Page, error) {
	body, err := c.do(ctx, request{
		method:    http.MethodGet,
		path:      "/inquiry/admin/all/",
		query:     params.query(),
		protected: true,
		resource:  "inquiry",
	})
	if err != nil {
		return Page{}, err
	}
	return decodePage(body)
}

// ToggleVerification sets is_verified on a consultancy or university. The
// update is built from the current record so fields the endpoint resets when
// absent travel with the flag.
func (c *Client) ToggleVerification(ctx context.Context, entity, slug string, verified bool) (Record, error) {
	r := c.resource(entity)
	if r.err != nil {
		return nil, r.err
	}
	if !r.schema.Has("is_verified") {
		return nil, fmt.Errorf("client: %s has no verification flag", entity)
	}
	current, err := r.detail(ctx, slug, true)
	if err != nil {
		return nil, err
	}
	state := form.New(r.schema, normalize.Entity(r.schema, current))
	defer state.Close()
	if err := state.SetField("is_verified", verified); err != nil {
		return nil, fmt.Errorf("client: %s: %w", entity, err)
	}
	payload, err := serialize.Encode(r.schema, state.Snapshot(), serialize.Partial)
	if err != nil {
		return nil, err
	}
	return r.Update(ctx, slug, payload)
}

// Category is a blog or news category.
type Category struct {
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

// Categories returns the category endpoints of "blog" or "news".
func (c *Client) Categories(kind string) *Categories {
	return &Categories{client: c, kind: kind}
}

// Categories manages the categories of one content kind.
type Categories struct {
	client *Client
	kind   string
}

func (cs *Categories) base() (string, error) {
	kind, err := commentKind(cs.kind)
	if err != nil {
		return "", fmt.Errorf("client: categories: unsupported kind %q", cs.kind)
	}
	return "/" + kind + "/categories/", nil
}

// List returns every category.
func (cs *Categories) List(ctx context.Context) ([]Record, error) {
	base, err := cs.base()
	if err != nil {
		return nil, err
	}
	return cs.client.getList(ctx, base, nil, cs.kind)
}

// Create adds a category.
func (cs *Categories) Create(ctx context.Context, category Category) (Record, error) {
	return cs.write(ctx, http.MethodPost, "create/", category)
}

// Update renames the category addressed by slug.
func (cs *Categories) Update(ctx context.Context, slug string, category Category) (Record, error) {
	if strings.TrimSpace(slug) == "" {
		return nil, ErrMissingSlug
	}
	return cs.write(ctx, http.MethodPatch, slug+"/update/", category)
}

// Delete removes the category addressed by slug.
func (cs *Categories) Delete(ctx context.Context, slug string) error {
	if strings.TrimSpace(slug) == "" {
		return ErrMissingSlug
	}
	base, err := cs.base()
	if err != nil {
		return err
	}
	_, err = cs.client.do(ctx, request{
		method:    http.MethodDelete,
		path:      base + slug + "/delete/",
		protected: true,
		resource:  cs.kind,
	})
	return err
}

func (cs *Categories) write(ctx context.Context, method, suffix string, category Category) (Record, error) {
	base, err := cs.base()
	if err != nil {
		return nil, err
	}
	r, err := jsonRequest(method, base+suffix, category)
	if err != nil {
		return nil, err
	}
	r.protected = true
	r.resource = cs.kind
	return cs.client.getRecord(ctx, r)
}

func (c *Client) getList(ctx context.Context, path string, query url.Values, resource string) ([]Record, error) {
	body, err := c.do(ctx, request{method: http.MethodGet, path: path, query: query, resource: resource})
	if err != nil {
		return nil, err
	}
	page, err := decodePage(body)
	if err != nil {
		return nil, err
	}
	return page.Results, nil
}

func (c *Client) getRecord(ctx context.Context, r request) (Record, error) {
	body, err := c.do(ctx, r)
	if err != nil {
		return nil, err
	}
	record := Record{}
	if err := decodeJSON(body, &record); err != nil {
		return nil, err
	}
	return record, nil
}
