package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formsync/pkg/auth"
	"github.com/goliatone/go-formsync/pkg/client"
	"github.com/goliatone/go-formsync/pkg/prompt"
	"github.com/goliatone/go-formsync/pkg/testsupport"
	"github.com/goliatone/go-formsync/pkg/upload"
)

// scriptedDriver answers selects and inputs in order; other prompts fail.
type scriptedDriver struct {
	selects []int
	inputs  []string
}

var errUnscripted = errors.New("unscripted prompt")

func (d *scriptedDriver) Input(context.Context, prompt.InputConfig) (string, error) {
	if len(d.inputs) == 0 {
		return "", errUnscripted
	}
	v := d.inputs[0]
	d.inputs = d.inputs[1:]
	return v, nil
}

func (d *scriptedDriver) Password(context.Context, prompt.InputConfig) (string, error) {
	return "", errUnscripted
}

func (d *scriptedDriver) Confirm(context.Context, prompt.ConfirmConfig) (bool, error) {
	return false, errUnscripted
}

func (d *scriptedDriver) Select(context.Context, prompt.SelectConfig) (int, error) {
	if len(d.selects) == 0 {
		return 0, errUnscripted
	}
	v := d.selects[0]
	d.selects = d.selects[1:]
	return v, nil
}

func (d *scriptedDriver) MultiSelect(context.Context, prompt.SelectConfig) ([]int, error) {
	return nil, errUnscripted
}

func (d *scriptedDriver) TextArea(context.Context, prompt.TextAreaConfig) (string, error) {
	return "", errUnscripted
}

func (d *scriptedDriver) Info(context.Context, string) error { return nil }

func testApp(t *testing.T, backend *testsupport.Backend, driver prompt.Driver) *app {
	t.Helper()
	access, refresh := backend.Tokens()
	store := auth.NewMemoryStore(auth.Session{AccessToken: access, RefreshToken: refresh, Role: auth.RoleAdmin})
	c, err := client.New(backend.URL(), client.WithSessionStore(store))
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	return &app{
		logger:    slog.New(slog.DiscardHandler),
		client:    c,
		previewer: upload.NewRegistry(),
		driver:    driver,
	}
}

func TestChoicesFromTargetListing(t *testing.T) {
	backend := testsupport.NewBackend(t)
	backend.Seed("districts", "kathmandu", map[string]any{"id": 1, "name": "Kathmandu"})
	backend.Seed("districts", "kaski", map[string]any{"id": 3, "name": "Kaski"})

	a := testApp(t, backend, &scriptedDriver{})
	resource, err := a.client.Resource("consultancy")
	if err != nil {
		t.Fatalf("Resource: %v", err)
	}
	field, ok := resource.Schema().Field("districts")
	if !ok {
		t.Fatalf("consultancy has no districts field")
	}

	got, err := a.choices(context.Background(), field)
	if err != nil {
		t.Fatalf("choices: %v", err)
	}
	want := []prompt.Choice{
		{Key: int64(3), Label: "Kaski"},
		{Key: int64(1), Label: "Kathmandu"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("choices mismatch (-want +got):\n%s", diff)
	}
}

func TestEditSendsOnlyChangedField(t *testing.T) {
	backend := testsupport.NewBackend(t)
	backend.Seed("districts", "kaski", map[string]any{"id": 3, "name": "Kaski"})

	// pick the name field, answer, then save
	driver := &scriptedDriver{selects: []int{1, 0}, inputs: []string{"Kaski Valley"}}
	a := testApp(t, backend, driver)

	if err := a.edit(context.Background(), []string{"district", "kaski"}); err != nil {
		t.Fatalf("edit: %v", err)
	}

	mutations := backend.Mutations()
	if len(mutations) != 1 {
		t.Fatalf("expected one mutation, got %d", len(mutations))
	}
	if diff := cmp.Diff(map[string][]string{"name": {"Kaski Valley"}}, mutations[0].Form); diff != "" {
		t.Fatalf("form mismatch (-want +got):\n%s", diff)
	}
	record, _ := backend.Record("districts", "kaski")
	if record["name"] != "Kaski Valley" {
		t.Fatalf("record not updated: %v", record)
	}
}

func TestEditCancelSendsNothing(t *testing.T) {
	backend := testsupport.NewBackend(t)
	backend.Seed("districts", "kaski", map[string]any{"id": 3, "name": "Kaski"})

	// name, answer, cancel (Save + 1 field + Cancel)
	driver := &scriptedDriver{selects: []int{1, 2}, inputs: []string{"Kaski Valley"}}
	a := testApp(t, backend, driver)

	if err := a.edit(context.Background(), []string{"district", "kaski"}); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if n := len(backend.Mutations()); n != 0 {
		t.Fatalf("expected no mutations, got %d", n)
	}
}

func TestDashboardSavesThroughDashboardRoute(t *testing.T) {
	backend := testsupport.NewBackend(t)
	backend.Seed("college", "everest", map[string]any{"id": 5, "name": "Everest College"})
	backend.SetDashboard("college", "everest", false)

	// pick the name field, answer, then save
	driver := &scriptedDriver{selects: []int{1, 0}, inputs: []string{"Everest International"}}
	a := testApp(t, backend, driver)

	if err := a.dashboard(context.Background(), []string{"college"}); err != nil {
		t.Fatalf("dashboard: %v", err)
	}

	mutations := backend.Mutations()
	if len(mutations) != 1 {
		t.Fatalf("expected one mutation, got %d", len(mutations))
	}
	if mutations[0].Path != "/college/dashboard/update/" {
		t.Fatalf("unexpected path %s", mutations[0].Path)
	}
	if diff := cmp.Diff([]string{"Everest International"}, mutations[0].Form["name"]); diff != "" {
		t.Fatalf("name mismatch (-want +got):\n%s", diff)
	}
	record, _ := backend.Record("college", "everest")
	if record["name"] != "Everest International" {
		t.Fatalf("record not updated: %v", record)
	}

	if err := a.dashboard(context.Background(), []string{"university"}); err == nil {
		t.Fatalf("expected error for entity without dashboard")
	}
}

func TestIDValue(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{json.Number("7"), int64(7)},
		{json.Number("7.5"), "7.5"},
		{float64(3), int64(3)},
		{"abc", "abc"},
		{nil, nil},
	}
	for _, tt := range tests {
		if got := idValue(tt.in); got != tt.want {
			t.Errorf("idValue(%#v) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestTitleFallsBackToSlug(t *testing.T) {
	if got := title(client.Record{"title": "IELTS Prep"}); got != "IELTS Prep" {
		t.Fatalf("title = %q", got)
	}
	if got := title(client.Record{"slug": "home-banner"}); got != "home-banner" {
		t.Fatalf("title = %q", got)
	}
}
