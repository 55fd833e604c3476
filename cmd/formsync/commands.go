package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-formsync/pkg/auth"
	"github.com/goliatone/go-formsync/pkg/client"
	"github.com/goliatone/go-formsync/pkg/feedback"
	"github.com/goliatone/go-formsync/pkg/form"
	"github.com/goliatone/go-formsync/pkg/model"
	"github.com/goliatone/go-formsync/pkg/normalize"
	"github.com/goliatone/go-formsync/pkg/openapi"
	"github.com/goliatone/go-formsync/pkg/prompt"
	"github.com/goliatone/go-formsync/pkg/submit"
)

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (a *app) editor() *prompt.Editor {
	return prompt.NewEditor(a.driver, prompt.WithChoices(a.choices))
}

func (a *app) login(ctx context.Context) error {
	email, password, err := a.editor().Credentials(ctx)
	if err != nil {
		return err
	}
	user, session, err := a.client.Login(ctx, email, password)
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s (%s)\n", user.Email, user.Role)
	if session.EntityID != "" {
		fmt.Printf("Managing %s %s\n", session.Role, session.EntityID)
	}
	return nil
}

func (a *app) logout(ctx context.Context) error {
	if err := a.client.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Logged out")
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	session, err := a.store.Load(ctx)
	if err != nil {
		return err
	}
	if !session.Valid() {
		return auth.ErrNotLoggedIn
	}
	claims, err := auth.ParseClaims(session.AccessToken)
	if err != nil {
		return err
	}
	fmt.Printf("user:    %s\n", claims.UserID)
	fmt.Printf("role:    %s\n", session.Role)
	if session.EntityID != "" {
		fmt.Printf("entity:  %s\n", session.EntityID)
	}
	if !claims.ExpiresAt.IsZero() {
		state := "valid"
		if claims.Expired(time.Now(), 0) {
			state = "expired, refreshed on next request"
		}
		fmt.Printf("access:  %s (%s)\n", claims.ExpiresAt.Local().Format(time.RFC1123), state)
	}
	return nil
}

func (a *app) listSchemas(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("schemas", flag.ContinueOnError)
	source := fs.String("openapi", "", "OpenAPI document path or URL to import entity declarations from")
	validate := fs.Bool("validate", false, "validate the OpenAPI document before importing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *source != "" {
		data, err := readSource(ctx, *source, a.cfg.HTTPTimeout)
		if err != nil {
			return err
		}
		decls, err := openapi.Import(ctx, data, openapi.Options{Validate: *validate})
		if err != nil {
			return err
		}
		for _, decl := range decls {
			if err := a.schemas.Register(decl); err != nil {
				return fmt.Errorf("register %s: %w", decl.Entity, err)
			}
		}
		fmt.Printf("Imported %d entities from %s\n", len(decls), *source)
	}

	for _, entity := range a.schemas.Entities() {
		s, err := a.schemas.Lookup(entity)
		if err != nil {
			return err
		}
		fmt.Printf("%-12s %-28s %s\n", entity, s.Endpoints.List, strings.Join(s.FieldNames(), ", "))
	}
	return nil
}

func readSource(ctx context.Context, source string, timeout time.Duration) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return openapi.Fetch(ctx, nil, source, timeout)
	}
	return openapi.ReadFS(ctx, os.DirFS(filepath.Dir(source)), filepath.Base(source))
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	page := fs.Int("page", 1, "page number")
	search := fs.String("search", "", "search term")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("expected an entity")
	}

	resource, err := a.client.Resource(fs.Arg(0))
	if err != nil {
		return err
	}
	result, err := resource.List(ctx, client.ListParams{Page: *page, Search: *search})
	if err != nil {
		return err
	}
	for _, record := range result.Results {
		fmt.Printf("%-32s %s\n", stringValue(record["slug"]), title(record))
	}
	fmt.Printf("page %d of %d (%d total)\n", *page, client.TotalPages(result.Count), result.Count)
	return nil
}

func (a *app) show(ctx context.Context, args []string) error {
	entity, slug, err := entityAndSlug(args)
	if err != nil {
		return err
	}
	resource, err := a.client.Resource(entity)
	if err != nil {
		return err
	}
	record, err := resource.Detail(ctx, slug)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func (a *app) edit(ctx context.Context, args []string) error {
	entity, slug, err := entityAndSlug(args)
	if err != nil {
		return err
	}
	resource, err := a.client.Resource(entity)
	if err != nil {
		return err
	}
	record, err := resource.Detail(ctx, slug)
	if err != nil {
		return err
	}
	s := resource.Schema()
	state := form.New(s, normalize.Entity(s, record), form.WithPreviewer(a.previewer))
	return a.session(ctx, state, resource, submit.WithSlug(slug))
}

func (a *app) create(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("expected an entity")
	}
	resource, err := a.client.Resource(args[0])
	if err != nil {
		return err
	}
	state := form.New(resource.Schema(), nil, form.WithPreviewer(a.previewer))
	return a.session(ctx, state, resource)
}

// dashboard edits the profile owned by the signed-in dashboard account.
func (a *app) dashboard(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("expected consultancy or college")
	}
	dashboard, err := a.client.Dashboard(args[0])
	if err != nil {
		return err
	}
	profile, err := dashboard.Profile(ctx)
	if err != nil {
		return err
	}
	// The dashboard update ignores the slug; it only keeps the form in update mode.
	slug := stringValue(profile.Record["slug"])
	if slug == "" {
		slug = args[0]
	}
	fmt.Printf("%s (%d inquiries)\n", title(profile.Record), len(profile.Inquiries))

	s := dashboard.Schema()
	state := form.New(s, normalize.Entity(s, profile.Record), form.WithPreviewer(a.previewer))
	return a.session(ctx, state, dashboard, submit.WithSlug(slug))
}

// session runs the edit-save loop until a save succeeds or the user cancels.
func (a *app) session(ctx context.Context, state *form.State, remote submit.Remote, options ...submit.Option) error {
	defer func() {
		if err := state.Close(); err != nil {
			a.logger.Warn("release previews", slog.Any("error", err))
		}
	}()

	options = append(options, submit.WithLogger(a.logger), submit.WithMetrics(a.metrics))
	f := submit.New(state, remote, options...)
	editor := a.editor()
	_, admin := remote.(*client.Resource)

	for {
		save, err := editor.Edit(ctx, state)
		if err != nil {
			return err
		}
		if !save {
			fmt.Println("Discarded changes")
			return nil
		}
		if admin && pendingDeletions(state) {
			fmt.Fprintln(os.Stderr, "Removed gallery images are only deleted through the dashboard route; the admin update keeps them.")
		}

		result, err := f.Submit(ctx)
		report(result.Feedback)
		if err == nil {
			if result.Slug != "" {
				fmt.Printf("slug: %s\n", result.Slug)
			}
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if errors.Is(err, auth.ErrNotLoggedIn) || errors.Is(err, auth.ErrRefreshFailed) {
			return err
		}
	}
}

func (a *app) remove(ctx context.Context, args []string) error {
	entity, slug, err := entityAndSlug(args)
	if err != nil {
		return err
	}
	resource, err := a.client.Resource(entity)
	if err != nil {
		return err
	}
	ok, err := a.driver.Confirm(ctx, prompt.ConfirmConfig{Message: fmt.Sprintf("Delete %s %q?", entity, slug)})
	if err != nil || !ok {
		return err
	}
	if err := resource.Delete(ctx, slug); err != nil {
		return err
	}
	fmt.Printf("Deleted %s %s\n", entity, slug)
	return nil
}

func (a *app) verify(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	off := fs.Bool("off", false, "clear the verified flag")
	if err := fs.Parse(args); err != nil {
		return err
	}
	entity, slug, err := entityAndSlug(fs.Args())
	if err != nil {
		return err
	}
	resource, err := a.client.Resource(entity)
	if err != nil {
		return err
	}
	s := resource.Schema()
	if !s.Has("is_verified") {
		return fmt.Errorf("%s has no verification flag", entity)
	}
	record, err := resource.Detail(ctx, slug)
	if err != nil {
		return err
	}
	state := form.New(s, normalize.Entity(s, record))
	defer state.Close()

	f := submit.New(state, resource, submit.WithSlug(slug), submit.WithLogger(a.logger), submit.WithMetrics(a.metrics))
	current, _ := state.Get("is_verified")
	if verified, _ := current.(bool); verified == !*off {
		fmt.Printf("%s %s already %s\n", entity, slug, verifiedLabel(verified))
		return nil
	}
	value, err := f.Toggle(ctx, "is_verified", func(ctx context.Context, slug string, value bool) (client.Record, error) {
		return a.client.ToggleVerification(ctx, entity, slug, value)
	})
	report(f.Feedback())
	if err != nil {
		return err
	}
	fmt.Printf("%s %s is now %s\n", entity, slug, verifiedLabel(value))
	return nil
}

// choices resolves relation options through the target entity's listing.
func (a *app) choices(ctx context.Context, field model.Field) ([]prompt.Choice, error) {
	if field.Relationship == nil || field.Relationship.Target == "" {
		return nil, nil
	}
	resource, err := a.client.Resource(field.Relationship.Target)
	if err != nil {
		a.logger.Debug("no listing for relation", slog.String("field", field.Name), slog.Any("error", err))
		return nil, nil
	}
	records, err := resource.All(ctx, client.ListParams{})
	if err != nil {
		return nil, err
	}

	key := field.RelationKeyOrDefault()
	out := make([]prompt.Choice, 0, len(records))
	for _, record := range records {
		var k any
		if key == model.KeySlug {
			k = stringValue(record["slug"])
		} else {
			k = idValue(record["id"])
		}
		if k == nil || k == "" {
			continue
		}
		out = append(out, prompt.Choice{Key: k, Label: title(record)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func pendingDeletions(state *form.State) bool {
	for _, field := range state.Schema().Fields {
		if field.Kind == model.KindSubrecords && len(state.Deleted(field.Name)) > 0 {
			return true
		}
	}
	return false
}

func report(fb feedback.Feedback) {
	if fb.Success != "" {
		fmt.Println(fb.Success)
	}
	if fb.Error != "" {
		fmt.Fprintln(os.Stderr, fb.Error)
	}
	for _, path := range fb.FieldPaths() {
		fmt.Fprintf(os.Stderr, "  %s: %s\n", path, fb.FieldError(path))
	}
}

func entityAndSlug(args []string) (string, string, error) {
	if len(args) != 2 {
		return "", "", errors.New("expected an entity and a slug")
	}
	return args[0], args[1], nil
}

func title(record client.Record) string {
	for _, key := range []string{"name", "title", "placement"} {
		if s := stringValue(record[key]); s != "" {
			return s
		}
	}
	return stringValue(record["slug"])
}

func stringValue(v any) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return typed
	default:
		return fmt.Sprint(typed)
	}
}

func idValue(v any) any {
	switch typed := v.(type) {
	case json.Number:
		if n, err := typed.Int64(); err == nil {
			return n
		}
		return typed.String()
	case float64:
		return int64(typed)
	case string:
		return typed
	default:
		return nil
	}
}

func verifiedLabel(v bool) string {
	if v {
		return "verified"
	}
	return "unverified"
}
