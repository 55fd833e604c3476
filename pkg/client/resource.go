package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-formsync/pkg/model"
	"github.com/goliatone/go-formsync/pkg/serialize"
)

// PageSize is the server's fixed page size for paginated listings.
const PageSize = 10

// ErrMissingSlug is returned when a slug-addressed call receives an empty
// slug.
var ErrMissingSlug = errors.New("client: missing slug")

// Record is one decoded entity as returned by the server.
type Record = map[string]any

// Page is one page of a listing.
type Page struct {
	Count    int
	Next     string
	Previous string
	Results  []Record
}

// TotalPages returns the number of pages needed for count items.
func TotalPages(count int) int {
	if count <= 0 {
		return 0
	}
	return (count + PageSize - 1) / PageSize
}

// ListParams selects a page of a listing. Page is 1-based; zero means the
// first page.
type ListParams struct {
	Page    int
	Search  string
	Filters url.Values
}

func (p ListParams) query() url.Values {
	query := pageQuery(p.Page, p.Search)
	for key, values := range p.Filters {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	return query
}

// Resource performs CRUD calls for one entity schema.
type Resource struct {
	client *Client
	schema model.EntitySchema
	err    error
}

// Resource returns the resource for a registered entity.
func (c *Client) Resource(entity string) (*Resource, error) {
	r := c.resource(entity)
	if r.err != nil {
		return nil, r.err
	}
	return r, nil
}

// ResourceFor builds a resource for a schema that is not registered.
func (c *Client) ResourceFor(s model.EntitySchema) *Resource {
	return &Resource{client: c, schema: s}
}

func (c *Client) resource(entity string) *Resource {
	c.resourcesMu.Lock()
	defer c.resourcesMu.Unlock()
	if r, ok := c.resources[entity]; ok {
		return r
	}
	s, err := c.schemas.Lookup(entity)
	if err != nil {
		return &Resource{client: c, err: fmt.Errorf("client: %w", err)}
	}
	r := &Resource{client: c, schema: s}
	c.resources[entity] = r
	return r
}

// Schema returns the schema the resource was built from.
func (r *Resource) Schema() model.EntitySchema {
	return model.CloneSchema(r.schema)
}

// List fetches one page. Listings are public.
func (r *Resource) List(ctx context.Context, params ListParams) (Page, error) {
	if r.err != nil {
		return Page{}, r.err
	}
	body, err := r.client.do(ctx, request{
		method:   http.MethodGet,
		path:     r.schema.Endpoints.List,
		query:    params.query(),
		resource: r.schema.Resource,
	})
	if err != nil {
		return Page{}, err
	}
	page, err := decodePage(body)
	if err != nil {
		return Page{}, err
	}
	for _, record := range page.Results {
		r.client.sanitize(r.schema, record)
	}
	return page, nil
}

// Detail fetches one entity by slug.
func (r *Resource) Detail(ctx context.Context, slug string) (Record, error) {
	return r.detail(ctx, slug, false)
}

func (r *Resource) detail(ctx context.Context, slug string, fresh bool) (Record, error) {
	if r.err != nil {
		return nil, r.err
	}
	if strings.TrimSpace(slug) == "" {
		return nil, ErrMissingSlug
	}
	body, err := r.client.do(ctx, request{
		method:   http.MethodGet,
		path:     expand(r.schema.Endpoints.Detail, slug),
		fresh:    fresh,
		resource: r.schema.Resource,
	})
	if err != nil {
		return nil, err
	}
	record := Record{}
	if err := decodeJSON(body, &record); err != nil {
		return nil, err
	}
	r.client.sanitize(r.schema, record)
	return record, nil
}

// Create posts a full multipart payload.
func (r *Resource) Create(ctx context.Context, payload serialize.Payload) (Record, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.client.sendPayload(ctx, http.MethodPost, r.schema.Endpoints.Create, r.schema.Resource, payload)
}

// Update patches the entity with a partial multipart payload.
func (r *Resource) Update(ctx context.Context, slug string, payload serialize.Payload) (Record, error) {
	if r.err != nil {
		return nil, r.err
	}
	if strings.TrimSpace(slug) == "" {
		return nil, ErrMissingSlug
	}
	return r.client.sendPayload(ctx, http.MethodPatch, expand(r.schema.Endpoints.Update, slug), r.schema.Resource, payload)
}

// Delete removes the entity.
func (r *Resource) Delete(ctx context.Context, slug string) error {
	if r.err != nil {
		return r.err
	}
	if strings.TrimSpace(slug) == "" {
		return ErrMissingSlug
	}
	_, err := r.client.do(ctx, request{
		method:    http.MethodDelete,
		path:      expand(r.schema.Endpoints.Delete, slug),
		protected: true,
		resource:  r.schema.Resource,
	})
	return err
}

func (c *Client) sendPayload(ctx context.Context, method, path, resource string, payload serialize.Payload) (Record, error) {
	buf, contentType, err := payload.Body()
	if err != nil {
		return nil, fmt.Errorf("client: encode payload: %w", err)
	}
	body, err := c.do(ctx, request{
		method:      method,
		path:        path,
		body:        buf.Bytes(),
		contentType: contentType,
		protected:   true,
		resource:    resource,
	})
	if err != nil {
		return nil, err
	}
	record := Record{}
	if err := decodeJSON(body, &record); err != nil {
		return nil, err
	}
	return record, nil
}

// sanitize cleans the rich-text fields of record in place.
func (c *Client) sanitize(s model.EntitySchema, record Record) {
	if c.sanitizer == nil || record == nil {
		return
	}
	for _, field := range s.Fields {
		if !field.RichText {
			continue
		}
		if html, ok := record[field.Name].(string); ok {
			record[field.Name] = c.sanitizer.Sanitize(html)
		}
	}
}

// decodePage accepts both the paginated envelope and a bare array.
func decodePage(body []byte) (Page, error) {
	var raw any
	if err := decodeJSON(body, &raw); err != nil {
		return Page{}, err
	}
	switch v := raw.(type) {
	case nil:
		return Page{}, nil
	case []any:
		results := records(v)
		return Page{Count: len(results), Results: results}, nil
	case map[string]any:
		page := Page{Results: records(asSlice(v["results"]))}
		page.Count = len(page.Results)
		if count, ok := asInt(v["count"]); ok {
			page.Count = count
		}
		page.Next, _ = v["next"].(string)
		page.Previous, _ = v["previous"].(string)
		return page, nil
	default:
		return Page{}, fmt.Errorf("client: unexpected listing shape %T", raw)
	}
}

func records(items []any) []Record {
	out := make([]Record, 0, len(items))
	for _, item := range items {
		if record, ok := item.(map[string]any); ok {
			out = append(out, record)
		}
	}
	return out
}

func asSlice(value any) []any {
	items, _ := value.([]any)
	return items
}

func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case interface{ Int64() (int64, error) }:
		n, err := v.Int64()
		return int(n), err == nil
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}
