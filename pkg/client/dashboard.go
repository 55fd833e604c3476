package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/goliatone/go-formsync/pkg/model"
	"github.com/goliatone/go-formsync/pkg/serialize"
)

// ErrNoDashboardRoute is returned by Dashboard.Create and Dashboard.Delete:
// the dashboard routes only read and patch the owned entity.
var ErrNoDashboardRoute = errors.New("client: dashboard route does not support this operation")

// dashboards lists the entities whose accounts own a profile.
var dashboards = map[string]bool{"consultancy": true, "college": true}

// Dashboard edits the entity owned by the logged-in dashboard account. The
// server resolves the entity from the session, so no slug is sent. Unlike the
// admin update route, the dashboard update applies deleted_* markers and
// leaves fields it does not receive alone.
type Dashboard struct {
	client *Client
	schema model.EntitySchema
}

// Profile is the owned entity together with the inquiries addressed to it.
type Profile struct {
	Record    Record
	Inquiries []Record
}

// Dashboard returns the dashboard routes of entity, "consultancy" or
// "college".
func (c *Client) Dashboard(entity string) (*Dashboard, error) {
	if !dashboards[entity] {
		return nil, fmt.Errorf("client: %s has no dashboard", entity)
	}
	r := c.resource(entity)
	if r.err != nil {
		return nil, r.err
	}
	return &Dashboard{client: c, schema: r.schema}, nil
}

// Schema returns the schema of the owned entity.
func (d *Dashboard) Schema() model.EntitySchema {
	return model.CloneSchema(d.schema)
}

func (d *Dashboard) path(suffix string) string {
	return "/" + d.schema.Resource + "/dashboard/" + suffix
}

// Profile fetches the owned entity. Both response shapes the backend uses are
// accepted: the entity nested under its name next to "inquiries", or the
// entity itself with an "inquiries" key added.
func (d *Dashboard) Profile(ctx context.Context) (Profile, error) {
	record, err := d.client.getRecord(ctx, request{
		method:    http.MethodGet,
		path:      d.path(""),
		protected: true,
		resource:  d.schema.Resource,
	})
	if err != nil {
		return Profile{}, err
	}

	profile := Profile{Inquiries: records(asSlice(record["inquiries"]))}
	if nested, ok := record[d.schema.Entity].(map[string]any); ok {
		profile.Record = nested
	} else {
		delete(record, "inquiries")
		delete(record, "events")
		profile.Record = record
	}
	d.client.sanitize(d.schema, profile.Record)
	return profile, nil
}

// Update patches the owned entity. slug is ignored.
func (d *Dashboard) Update(ctx context.Context, _ string, payload serialize.Payload) (Record, error) {
	return d.client.sendPayload(ctx, http.MethodPatch, d.path("update/"), d.schema.Resource, payload)
}

// Create is not offered by the dashboard routes.
func (d *Dashboard) Create(context.Context, serialize.Payload) (Record, error) {
	return nil, ErrNoDashboardRoute
}

// Delete is not offered by the dashboard routes.
func (d *Dashboard) Delete(context.Context, string) error {
	return ErrNoDashboardRoute
}
