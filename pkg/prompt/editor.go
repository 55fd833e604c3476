// Package prompt edits a form session interactively. Each field kind maps to
// one terminal prompt; the Driver interface keeps the terminal swappable so
// editing flows can be scripted in tests.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-formsync/pkg/form"
	"github.com/goliatone/go-formsync/pkg/model"
	"github.com/goliatone/go-formsync/pkg/upload"
)

// Choice is one selectable related entity.
type Choice struct {
	Key   any
	Label string
}

// ChoiceSource lists the entities a relation or reference field may point
// at. Returning no choices falls back to free-form input.
type ChoiceSource func(ctx context.Context, field model.Field) ([]Choice, error)

// Opener turns a local path into a pending upload.
type Opener func(path string) (*upload.Pending, error)

// Option configures an Editor.
type Option func(*Editor)

// WithChoices sets the lookup used for relation and reference fields.
func WithChoices(source ChoiceSource) Option {
	return func(e *Editor) {
		if source != nil {
			e.choices = source
		}
	}
}

// WithOpener overrides how file paths are read.
func WithOpener(open Opener) Option {
	return func(e *Editor) {
		if open != nil {
			e.open = open
		}
	}
}

// Editor walks an entity form field by field.
type Editor struct {
	driver  Driver
	choices ChoiceSource
	open    Opener
}

const (
	menuSave   = "Save"
	menuCancel = "Cancel"

	fileKeep    = "Keep current"
	fileReplace = "Choose file"
	fileRemove  = "Remove"

	entryAdd  = "Add entry"
	entryDone = "Done"
)

// NewEditor builds an editor on top of driver.
func NewEditor(driver Driver, options ...Option) *Editor {
	e := &Editor{
		driver:  driver,
		choices: func(context.Context, model.Field) ([]Choice, error) { return nil, nil },
		open:    upload.Open,
	}
	for _, opt := range options {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Edit shows the field menu until the user saves or cancels. It reports
// whether the user chose to save.
func (e *Editor) Edit(ctx context.Context, state *form.State) (bool, error) {
	schema := state.Schema()
	for {
		options := make([]string, 0, len(schema.Fields)+2)
		options = append(options, menuSave)
		for _, field := range schema.Fields {
			options = append(options, e.menuLabel(state, field))
		}
		options = append(options, menuCancel)

		idx, err := e.driver.Select(ctx, SelectConfig{
			Message:  fmt.Sprintf("Edit %s", schema.Entity),
			Options:  options,
			PageSize: 15,
		})
		if err != nil {
			return false, err
		}
		switch {
		case idx == 0:
			return true, nil
		case idx < 0 || idx == len(options)-1:
			return false, nil
		}

		field := schema.Fields[idx-1]
		if err := e.EditField(ctx, state, field); err != nil {
			if errors.Is(err, ErrAborted) || ctx.Err() != nil {
				return false, err
			}
			if infoErr := e.driver.Info(ctx, fmt.Sprintf("%s: %v", label(field), err)); infoErr != nil {
				return false, infoErr
			}
		}
	}
}

// EditField prompts for a single field and writes the answer into state.
func (e *Editor) EditField(ctx context.Context, state *form.State, field model.Field) error {
	current, _ := state.Get(field.Name)

	switch field.Kind {
	case model.KindBoolean:
		checked, _ := current.(bool)
		answer, err := e.driver.Confirm(ctx, ConfirmConfig{Message: label(field), Default: checked})
		if err != nil {
			return err
		}
		return state.SetField(field.Name, answer)

	case model.KindFile:
		return e.editFile(ctx, state, field, current)

	case model.KindRelation:
		return e.editRelation(ctx, state, field, current)

	case model.KindReference:
		return e.editReference(ctx, state, field, current)

	case model.KindSubrecords:
		return e.editSubrecords(ctx, state, field)
	}

	answer, err := e.scalar(ctx, field, current)
	if err != nil {
		return err
	}
	return state.SetField(field.Name, answer)
}

// Credentials asks for an email and password.
func (e *Editor) Credentials(ctx context.Context) (string, string, error) {
	email, err := e.driver.Input(ctx, InputConfig{Message: "Email", Validator: required("email")})
	if err != nil {
		return "", "", err
	}
	password, err := e.driver.Password(ctx, InputConfig{Message: "Password", Validator: required("password")})
	if err != nil {
		return "", "", err
	}
	return strings.TrimSpace(email), password, nil
}

func (e *Editor) scalar(ctx context.Context, field model.Field, current any) (string, error) {
	text := display(current)

	if len(field.Enum) > 0 {
		idx, err := e.driver.Select(ctx, SelectConfig{
			Message:      label(field),
			Options:      field.Enum,
			DefaultIndex: indexOf(field.Enum, text),
		})
		if err != nil {
			return "", err
		}
		if idx < 0 {
			return text, nil
		}
		return field.Enum[idx], nil
	}

	if field.Kind == model.KindText && field.RichText {
		return e.driver.TextArea(ctx, TextAreaConfig{Message: label(field), Default: text})
	}

	return e.driver.Input(ctx, InputConfig{
		Message:   label(field),
		Default:   text,
		Validator: validatorFor(field),
	})
}

func (e *Editor) editFile(ctx context.Context, state *form.State, field model.Field, current any) error {
	idx, err := e.driver.Select(ctx, SelectConfig{
		Message: fmt.Sprintf("%s (%s)", label(field), display(current)),
		Options: []string{fileKeep, fileReplace, fileRemove},
	})
	if err != nil {
		return err
	}
	switch idx {
	case 1:
		pending, err := e.askFile(ctx, label(field))
		if err != nil {
			return err
		}
		return state.SetFileField(field.Name, pending)
	case 2:
		return state.SetFileField(field.Name, nil)
	}
	return nil
}

func (e *Editor) editRelation(ctx context.Context, state *form.State, field model.Field, current any) error {
	selected, _ := current.([]any)
	choices, err := e.choices(ctx, field)
	if err != nil {
		return err
	}

	if len(choices) == 0 {
		answer, err := e.driver.Input(ctx, InputConfig{
			Message: label(field),
			Default: joinKeys(selected),
			Help:    "Comma separated ids or slugs",
		})
		if err != nil {
			return err
		}
		return state.SetListField(field.Name, splitKeys(answer))
	}

	options := make([]string, len(choices))
	var defaults []int
	for i, choice := range choices {
		options[i] = choice.Label
		if containsKey(selected, choice.Key) {
			defaults = append(defaults, i)
		}
	}
	picked, err := e.driver.MultiSelect(ctx, SelectConfig{
		Message:  label(field),
		Options:  options,
		Defaults: defaults,
		PageSize: 15,
	})
	if err != nil {
		return err
	}
	items := make([]any, 0, len(picked))
	for _, idx := range picked {
		if idx >= 0 && idx < len(choices) {
			items = append(items, choices[idx].Key)
		}
	}
	return state.SetListField(field.Name, items)
}

func (e *Editor) editReference(ctx context.Context, state *form.State, field model.Field, current any) error {
	choices, err := e.choices(ctx, field)
	if err != nil {
		return err
	}
	if len(choices) == 0 {
		answer, err := e.driver.Input(ctx, InputConfig{Message: label(field), Default: display(current)})
		if err != nil {
			return err
		}
		keys := splitKeys(answer)
		if len(keys) == 0 {
			return state.SetField(field.Name, "")
		}
		return state.SetField(field.Name, keys[0])
	}

	options := make([]string, len(choices))
	defaultIndex := -1
	for i, choice := range choices {
		options[i] = choice.Label
		if sameKey(choice.Key, current) {
			defaultIndex = i
		}
	}
	idx, err := e.driver.Select(ctx, SelectConfig{
		Message:      label(field),
		Options:      options,
		DefaultIndex: defaultIndex,
		PageSize:     15,
	})
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(choices) {
		return nil
	}
	return state.SetField(field.Name, choices[idx].Key)
}

func (e *Editor) editSubrecords(ctx context.Context, state *form.State, field model.Field) error {
	sub := field.Subrecords
	for {
		current, _ := state.Get(field.Name)
		entries, _ := current.([]form.Subrecord)

		options := make([]string, 0, len(entries)+2)
		options = append(options, entryAdd)
		for _, entry := range entries {
			options = append(options, "Remove "+describeEntry(sub, entry))
		}
		options = append(options, entryDone)

		idx, err := e.driver.Select(ctx, SelectConfig{Message: label(field), Options: options})
		if err != nil {
			return err
		}
		switch {
		case idx < 0 || idx == len(options)-1:
			return nil
		case idx == 0:
			if err := e.addEntry(ctx, state, field); err != nil {
				return err
			}
		default:
			if err := state.RemoveSubrecord(field.Name, entries[idx-1].ID); err != nil {
				return err
			}
		}
	}
}

func (e *Editor) addEntry(ctx context.Context, state *form.State, field model.Field) error {
	sub := field.Subrecords
	var file *upload.Pending
	if sub.FileField != "" {
		pending, err := e.askFile(ctx, label(field))
		if err != nil {
			return err
		}
		file = pending
	}

	values := make(map[string]any, len(sub.Fields))
	for _, nested := range sub.Fields {
		if nested.Kind == model.KindFile || nested.Name == sub.FileField {
			continue
		}
		answer, err := e.scalar(ctx, nested, nil)
		if err != nil {
			return err
		}
		if nested.Kind == model.KindBoolean {
			values[nested.Name] = answer == "true"
			continue
		}
		values[nested.Name] = answer
	}

	_, err := state.AddSubrecord(field.Name, values, file)
	return err
}

func (e *Editor) askFile(ctx context.Context, message string) (*upload.Pending, error) {
	path, err := e.driver.Input(ctx, InputConfig{
		Message:   message + " path",
		Validator: required("path"),
	})
	if err != nil {
		return nil, err
	}
	return e.open(strings.TrimSpace(path))
}

func (e *Editor) menuLabel(state *form.State, field model.Field) string {
	current, _ := state.Get(field.Name)
	marker := ""
	if state.IsTouched(field.Name) {
		marker = "* "
	}
	return fmt.Sprintf("%s%s: %s", marker, label(field), truncate(display(current), 40))
}

func label(field model.Field) string {
	if field.Label != "" {
		return field.Label
	}
	return field.Name
}

func validatorFor(field model.Field) func(string) error {
	check := func(string) error { return nil }
	switch field.Kind {
	case model.KindInteger:
		check = func(s string) error {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				return fmt.Errorf("%s must be a whole number", label(field))
			}
			return nil
		}
	case model.KindNumber:
		check = func(s string) error {
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				return fmt.Errorf("%s must be a number", label(field))
			}
			return nil
		}
	case model.KindDate:
		check = func(s string) error {
			if _, err := time.Parse(time.DateOnly, s); err != nil {
				return fmt.Errorf("%s must be a date (YYYY-MM-DD)", label(field))
			}
			return nil
		}
	}
	return func(s string) error {
		s = strings.TrimSpace(s)
		if s == "" {
			if field.Required {
				return fmt.Errorf("%s is required", label(field))
			}
			return nil
		}
		return check(s)
	}
}

func required(name string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func display(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case *upload.Pending:
		return typed.Filename
	case []any:
		return joinKeys(typed)
	case []form.Subrecord:
		return fmt.Sprintf("%d entries", len(typed))
	default:
		return fmt.Sprint(typed)
	}
}

func describeEntry(sub *model.Subrecords, entry form.Subrecord) string {
	if pending := entry.Pending(); pending != nil {
		return pending.Filename
	}
	if s, ok := entry.File.(string); ok && s != "" {
		return s
	}
	for _, nested := range sub.Fields {
		if v, ok := entry.Fields[nested.Name].(string); ok && v != "" {
			return v
		}
	}
	return "#" + entry.ID
}

func truncate(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

func joinKeys(items []any) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = fmt.Sprint(item)
	}
	return strings.Join(parts, ", ")
}

// splitKeys parses "1, 2, kaski" into ids and slugs.
func splitKeys(text string) []any {
	var out []any
	for _, part := range strings.Split(text, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if n, err := strconv.ParseInt(part, 10, 64); err == nil {
			out = append(out, n)
			continue
		}
		out = append(out, part)
	}
	return out
}

func sameKey(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func containsKey(items []any, key any) bool {
	for _, item := range items {
		if sameKey(item, key) {
			return true
		}
	}
	return false
}
