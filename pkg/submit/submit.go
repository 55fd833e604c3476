// Package submit drives one form through serialize, request and merge. A form
// has at most one submission in flight; a failed submission leaves the form
// exactly as it was.
package submit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-formsync/internal/metrics"
	"github.com/goliatone/go-formsync/pkg/client"
	"github.com/goliatone/go-formsync/pkg/feedback"
	"github.com/goliatone/go-formsync/pkg/form"
	"github.com/goliatone/go-formsync/pkg/model"
	"github.com/goliatone/go-formsync/pkg/normalize"
	"github.com/goliatone/go-formsync/pkg/serialize"
)

var (
	// ErrInFlight is returned to a caller that submits while another
	// submission of the same form is running. Nothing is sent.
	ErrInFlight = errors.New("submit: submission already in flight")
	// ErrNotPersisted is returned by operations that need a saved entity.
	ErrNotPersisted = errors.New("submit: entity has not been created yet")
	// ErrRequiredFields is returned when a create is missing required values.
	ErrRequiredFields = errors.New("submit: required fields are empty")
)

// Remote is the slice of client.Resource a form needs.
type Remote interface {
	Create(ctx context.Context, payload serialize.Payload) (client.Record, error)
	Update(ctx context.Context, slug string, payload serialize.Payload) (client.Record, error)
	Delete(ctx context.Context, slug string) error
}

// Option configures a Form.
type Option func(*Form)

// WithSlug puts the form in update mode for the entity addressed by slug.
// Without it the form creates.
func WithSlug(slug string) Option {
	return func(f *Form) {
		f.slug = strings.TrimSpace(slug)
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Form) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithMetrics records submission outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Form) {
		f.metrics = m
	}
}

// Result describes a finished submission.
type Result struct {
	Mode     serialize.Mode
	Slug     string
	Record   client.Record
	Feedback feedback.Feedback
	// Skipped is set when an update had nothing to send.
	Skipped bool
}

// Form couples a form state with the resource it saves to.
type Form struct {
	state   *form.State
	remote  Remote
	logger  *slog.Logger
	metrics *metrics.Metrics

	busy atomic.Bool

	mu       sync.Mutex
	slug     string
	feedback feedback.Feedback
}

// New creates a Form over state.
func New(state *form.State, remote Remote, options ...Option) *Form {
	f := &Form{
		state:  state,
		remote: remote,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, option := range options {
		if option != nil {
			option(f)
		}
	}
	f.logger = f.logger.With(
		slog.String("component", "submit"),
		slog.String("entity", state.Schema().Entity),
	)
	return f
}

// State returns the underlying form state.
func (f *Form) State() *form.State {
	return f.state
}

// Slug returns the slug of the entity being edited, empty before creation.
func (f *Form) Slug() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.slug
}

// Mode is Partial when editing and Full when creating.
func (f *Form) Mode() serialize.Mode {
	if f.Slug() == "" {
		return serialize.Full
	}
	return serialize.Partial
}

// Feedback returns the outcome of the last operation.
func (f *Form) Feedback() feedback.Feedback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.feedback
}

// Busy reports whether an operation is in flight.
func (f *Form) Busy() bool {
	return f.busy.Load()
}

// Submit saves the form. Updates send only touched fields; creates send every
// field. On success the response is merged into the state and a create
// switches the form to update mode. On failure values, touched set and
// deletions are left untouched and Feedback carries the server's message.
func (f *Form) Submit(ctx context.Context) (Result, error) {
	if !f.busy.CompareAndSwap(false, true) {
		return Result{}, ErrInFlight
	}
	defer f.busy.Store(false)

	snapshot, err := f.state.Freeze()
	if err != nil {
		return Result{}, err
	}
	schema := f.state.Schema()
	slug := f.Slug()
	mode := serialize.Partial
	if slug == "" {
		mode = serialize.Full
	}
	started := time.Now()

	if mode == serialize.Full {
		if missing := missingRequired(schema, snapshot.Values); len(missing) > 0 {
			f.state.Thaw()
			fb := feedback.Feedback{Error: "Please fill in the required fields.", Fields: missing}
			f.setFeedback(fb)
			return Result{Mode: mode, Feedback: fb}, ErrRequiredFields
		}
	}

	payload, err := serialize.Encode(schema, snapshot, mode)
	if err != nil {
		return f.fail(schema, mode, err)
	}
	if mode == serialize.Partial && payload.Empty() {
		f.state.Thaw()
		fb := feedback.Succeeded("No changes to save.")
		f.setFeedback(fb)
		return Result{Mode: mode, Slug: slug, Feedback: fb, Skipped: true}, nil
	}

	f.logger.Debug("submitting", slog.String("mode", mode.String()), slog.Any("fields", payload.Keys()))

	var record client.Record
	if mode == serialize.Full {
		record, err = f.remote.Create(ctx, payload)
	} else {
		record, err = f.remote.Update(ctx, slug, payload)
	}
	if err != nil {
		return f.fail(schema, mode, err)
	}

	if err := f.state.Commit(snapshot, normalize.Present(schema, record)); err != nil {
		f.logger.Warn("release previews after commit", slog.Any("error", err))
	}
	if returned, _ := record["slug"].(string); returned != "" {
		slug = returned
	} else if mode == serialize.Full {
		slug, _ = snapshot.Values["slug"].(string)
	}

	verb := "updated"
	if mode == serialize.Full {
		verb = "created"
	}
	fb := feedback.Succeeded(fmt.Sprintf("%s %s successfully.", displayName(schema.Entity), verb))

	f.mu.Lock()
	f.slug = slug
	f.feedback = fb
	f.mu.Unlock()

	f.metrics.Submission(schema.Entity, mode.String(), "ok")
	f.logger.Info("submitted", slog.String("mode", mode.String()), slog.String("slug", slug), slog.Duration("elapsed", time.Since(started)))
	return Result{Mode: mode, Slug: slug, Record: record, Feedback: fb}, nil
}

func (f *Form) fail(schema model.EntitySchema, mode serialize.Mode, err error) (Result, error) {
	f.state.Thaw()
	fb := feedback.FromError(schema, err)
	f.setFeedback(fb)
	f.metrics.Submission(schema.Entity, mode.String(), "failed")
	f.logger.Warn("submission failed", slog.String("mode", mode.String()), slog.Any("error", err))
	return Result{Mode: mode, Feedback: fb}, err
}

// Toggle flips a boolean field optimistically: the new value shows at once
// and is reverted if call fails. call receives the new value and performs
// the dedicated request (for example client.ToggleVerification).
func (f *Form) Toggle(ctx context.Context, name string, call func(ctx context.Context, slug string, value bool) (client.Record, error)) (bool, error) {
	schema := f.state.Schema()
	field, ok := schema.Field(name)
	if !ok || field.Kind != model.KindBoolean {
		return false, fmt.Errorf("%w: %q is not a boolean field", form.ErrFieldKind, name)
	}
	slug := f.Slug()
	if slug == "" {
		return false, ErrNotPersisted
	}
	if !f.busy.CompareAndSwap(false, true) {
		return false, ErrInFlight
	}
	defer f.busy.Store(false)

	current, _ := f.state.Get(name)
	next := !isTrue(current)
	previous, err := f.state.Apply(name, next)
	if err != nil {
		return isTrue(current), err
	}

	record, err := call(ctx, slug, next)
	if err != nil {
		if _, revertErr := f.state.Apply(name, previous); revertErr != nil {
			f.logger.Error("revert toggle", slog.String("field", name), slog.Any("error", revertErr))
		}
		fb := feedback.FromError(schema, err)
		f.setFeedback(fb)
		return isTrue(previous), err
	}

	confirmed := next
	if raw, ok := record[name].(bool); ok {
		confirmed = raw
	}
	if confirmed != next {
		if _, err := f.state.Apply(name, confirmed); err != nil {
			return confirmed, err
		}
	}
	f.setFeedback(feedback.Succeeded(fmt.Sprintf("%s %s.", displayName(field.Label), onOff(confirmed))))
	return confirmed, nil
}

// Delete removes the entity being edited.
func (f *Form) Delete(ctx context.Context) error {
	slug := f.Slug()
	if slug == "" {
		return ErrNotPersisted
	}
	if !f.busy.CompareAndSwap(false, true) {
		return ErrInFlight
	}
	defer f.busy.Store(false)

	schema := f.state.Schema()
	if err := f.remote.Delete(ctx, slug); err != nil {
		f.setFeedback(feedback.FromError(schema, err))
		return err
	}
	f.setFeedback(feedback.Succeeded(fmt.Sprintf("%s deleted successfully.", displayName(schema.Entity))))
	f.logger.Info("deleted", slog.String("slug", slug))
	return nil
}

func (f *Form) setFeedback(fb feedback.Feedback) {
	f.mu.Lock()
	f.feedback = fb
	f.mu.Unlock()
}

func missingRequired(schema model.EntitySchema, values form.Values) map[string][]string {
	missing := map[string][]string{}
	for _, field := range schema.Fields {
		if !field.Required || field.Kind == model.KindSubrecords {
			continue
		}
		if isEmpty(values[field.Name]) {
			missing[field.Name] = []string{"This field is required."}
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return missing
}

func isEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	}
	return false
}

func isTrue(value any) bool {
	b, _ := value.(bool)
	return b
}

func onOff(v bool) string {
	if v {
		return "enabled"
	}
	return "disabled"
}

func displayName(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
