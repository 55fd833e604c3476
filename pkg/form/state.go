// Package form holds the editable state of one entity being edited: current
// values, the set of touched fields and the ids of persisted sub-records the
// user removed. Mutations merge into the state without disturbing sibling
// fields; a submission freezes the state, and the result is merged back
// atomically with Commit.
package form

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/goliatone/go-formsync/pkg/model"
	"github.com/goliatone/go-formsync/pkg/upload"
)

// Option configures a State.
type Option func(*State)

// WithPreviewer sets the previewer used for pending uploads.
func WithPreviewer(previewer upload.Previewer) Option {
	return func(s *State) {
		s.previewer = previewer
	}
}

// State is the form state of one entity edit session. It is safe for
// concurrent use.
type State struct {
	mu        sync.Mutex
	schema    model.EntitySchema
	previewer upload.Previewer

	base    Values
	values  Values
	touched map[string]struct{}
	deleted map[string][]string

	frozen bool
	closed bool
}

// Snapshot is an immutable copy of the state used for serialization.
type Snapshot struct {
	Values  Values
	Touched []string
	Deleted map[string][]string
}

// IsTouched reports whether name was edited.
func (s Snapshot) IsTouched(name string) bool {
	for _, key := range s.Touched {
		if key == name {
			return true
		}
	}
	return false
}

// New creates a State seeded with values (usually normalizer output). Keys
// outside the schema are dropped and missing fields get their zero value.
func New(schema model.EntitySchema, values Values, options ...Option) *State {
	s := &State{
		schema:  model.CloneSchema(schema),
		touched: make(map[string]struct{}),
		deleted: make(map[string][]string),
	}
	for _, opt := range options {
		opt(s)
	}
	s.base = complete(s.schema, values)
	s.values = s.base.Clone()
	return s
}

// Schema returns the schema the state was built for.
func (s *State) Schema() model.EntitySchema {
	return model.CloneSchema(s.schema)
}

// Get returns a copy of the current value of name.
func (s *State) Get(name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[name]
	return deepCopy(value), ok
}

// Values returns a copy of all current values.
func (s *State) Values() Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values.Clone()
}

// Touched returns the edited field names, sorted.
func (s *State) Touched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchedLocked()
}

// IsTouched reports whether name was edited since the last commit.
func (s *State) IsTouched(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.touched[name]
	return ok
}

// Deleted returns the persisted sub-record ids removed from field.
func (s *State) Deleted(field string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted[field]...)
}

// SetField sets a scalar or reference field. Setting a field to its current
// value still marks it touched. Editing the slug source fills an empty slug.
func (s *State) SetField(name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	field, err := s.writableField(name)
	if err != nil {
		return err
	}
	coerced, err := coerceScalar(field, value)
	if err != nil {
		return err
	}
	s.values[name] = coerced
	s.touch(name)

	if name == s.schema.SlugSource {
		s.deriveSlug(coerced)
	}
	return nil
}

// Apply writes a server-confirmed scalar value to both the saved copy and the
// current values without marking the field touched. It returns the previous
// current value so an optimistic change can be reverted.
func (s *State) Apply(name string, value any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	field, err := s.writableField(name)
	if err != nil {
		return nil, err
	}
	coerced, err := coerceScalar(field, value)
	if err != nil {
		return nil, err
	}
	previous := s.values[name]
	s.values[name] = coerced
	s.base[name] = coerced
	return previous, nil
}

// SetFileField sets a file field to nil (explicit removal), a stored URL or a
// pending upload. The preview of a replaced pending upload is released.
func (s *State) SetFileField(name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	field, err := s.writableField(name)
	if err != nil {
		return err
	}
	if field.Kind != model.KindFile {
		return fmt.Errorf("%w: %s is a %s field", ErrFieldKind, name, field.Kind)
	}

	switch typed := value.(type) {
	case nil, string:
	case *upload.Pending:
		if typed == nil {
			value = nil
			break
		}
		if err := upload.Attach(s.previewer, typed); err != nil {
			return fmt.Errorf("form: preview %s: %w", name, err)
		}
	default:
		return fmt.Errorf("%w: %s expects a file, URL or nil, got %T", ErrFieldKind, name, value)
	}

	previous, _ := s.values[name].(*upload.Pending)
	s.values[name] = value
	s.touch(name)

	if previous != nil && previous != value {
		if err := upload.Detach(s.previewer, previous); err != nil {
			return fmt.Errorf("form: release preview %s: %w", name, err)
		}
	}
	return nil
}

// SetListField replaces the items of a relation field. Items are ids or
// slugs.
func (s *State) SetListField(name string, items []any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	field, err := s.writableField(name)
	if err != nil {
		return err
	}
	if field.Kind != model.KindRelation {
		return fmt.Errorf("%w: %s is a %s field", ErrFieldKind, name, field.Kind)
	}

	list := make([]any, 0, len(items))
	for _, item := range items {
		coerced, err := coerceListItem(field, item)
		if err != nil {
			return err
		}
		list = append(list, coerced)
	}
	s.values[name] = list
	s.touch(name)
	return nil
}

// AddSubrecord appends a locally created entry to a sub-record list and
// returns its generated id. Lists with a file field require file.
func (s *State) AddSubrecord(name string, fields map[string]any, file *upload.Pending) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	field, err := s.subrecordField(name)
	if err != nil {
		return "", err
	}
	sub := field.Subrecords

	entryFields := make(map[string]any, len(sub.Fields))
	for _, nested := range sub.Fields {
		entryFields[nested.Name] = zeroValue(nested)
	}
	for key, value := range fields {
		nested, ok := nestedField(sub, key)
		if !ok {
			return "", fmt.Errorf("%w: %s.%s", ErrUnknownField, name, key)
		}
		coerced, err := coerceScalar(nested, value)
		if err != nil {
			return "", err
		}
		entryFields[key] = coerced
	}

	switch {
	case sub.FileField != "" && file == nil:
		return "", fmt.Errorf("%w: %s entries require a file", ErrFieldKind, name)
	case sub.FileField == "" && file != nil:
		return "", fmt.Errorf("%w: %s entries do not carry files", ErrFieldKind, name)
	}

	entry := Subrecord{ID: ulid.Make().String(), Fields: entryFields, IsNew: true}
	if file != nil {
		if err := upload.Attach(s.previewer, file); err != nil {
			return "", fmt.Errorf("form: preview %s: %w", name, err)
		}
		entry.File = file
	}

	list, _ := s.values[name].([]Subrecord)
	s.values[name] = append(append([]Subrecord(nil), list...), entry)
	s.touch(name)
	return entry.ID, nil
}

// UpdateSubrecord sets one field of an existing entry.
func (s *State) UpdateSubrecord(name, id, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	field, err := s.subrecordField(name)
	if err != nil {
		return err
	}
	nested, ok := nestedField(field.Subrecords, key)
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, name, key)
	}
	coerced, err := coerceScalar(nested, value)
	if err != nil {
		return err
	}

	list, _ := s.values[name].([]Subrecord)
	idx := indexOf(list, id)
	if idx < 0 {
		return fmt.Errorf("%w: %s %q", ErrUnknownSubrecord, name, id)
	}
	updated := deepCopy(list).([]Subrecord)
	if updated[idx].Fields == nil {
		updated[idx].Fields = make(map[string]any)
	}
	updated[idx].Fields[key] = coerced
	s.values[name] = updated
	s.touch(name)
	return nil
}

// RemoveSubrecord drops an entry. A locally created entry just disappears and
// its preview is released; a persisted entry is also recorded as deleted,
// once. Removing an id that is not in the list is a no-op.
func (s *State) RemoveSubrecord(name, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.subrecordField(name); err != nil {
		return err
	}

	list, _ := s.values[name].([]Subrecord)
	idx := indexOf(list, id)
	if idx < 0 {
		return nil
	}
	removed := list[idx]
	remaining := make([]Subrecord, 0, len(list)-1)
	remaining = append(remaining, list[:idx]...)
	remaining = append(remaining, list[idx+1:]...)
	s.values[name] = remaining
	s.touch(name)

	if removed.IsNew {
		if err := upload.Detach(s.previewer, removed.Pending()); err != nil {
			return fmt.Errorf("form: release preview %s: %w", name, err)
		}
		return nil
	}
	for _, existing := range s.deleted[name] {
		if existing == removed.ID {
			return nil
		}
	}
	s.deleted[name] = append(s.deleted[name], removed.ID)
	return nil
}

// Snapshot returns a deep copy of values and bookkeeping.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Freeze blocks mutations and returns the snapshot to submit. Only one
// freeze may be held at a time.
func (s *State) Freeze() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrClosed
	}
	if s.frozen {
		return Snapshot{}, ErrSubmitting
	}
	s.frozen = true
	return s.snapshotLocked(), nil
}

// Thaw lifts a freeze without changing anything. It is what a failed
// submission does.
func (s *State) Thaw() {
	s.mu.Lock()
	s.frozen = false
	s.mu.Unlock()
}

// Commit merges a successful submission: the submitted values become the
// saved copy, values the server returned override them, bookkeeping is
// cleared and the freeze is lifted. Pending uploads that no longer appear in
// the state have their previews released.
func (s *State) Commit(snapshot Snapshot, server Values) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := pendingUploads(s.values)

	for _, key := range snapshot.Touched {
		if value, ok := snapshot.Values[key]; ok {
			s.base[key] = deepCopy(value)
		}
	}
	for key, value := range server {
		if s.schema.Has(key) {
			s.base[key] = deepCopy(value)
		}
	}
	s.values = s.base.Clone()
	s.touched = make(map[string]struct{})
	s.deleted = make(map[string][]string)
	s.frozen = false

	kept := make(map[*upload.Pending]struct{})
	for _, p := range pendingUploads(s.values) {
		kept[p] = struct{}{}
	}
	var errs []error
	for _, p := range before {
		if _, ok := kept[p]; ok {
			continue
		}
		if err := upload.Detach(s.previewer, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases every live preview. The state rejects mutations afterwards.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	seen := make(map[*upload.Pending]struct{})
	var errs []error
	for _, p := range append(pendingUploads(s.values), pendingUploads(s.base)...) {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		if err := upload.Detach(s.previewer, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *State) snapshotLocked() Snapshot {
	deleted := make(map[string][]string, len(s.deleted))
	for k, ids := range s.deleted {
		deleted[k] = append([]string(nil), ids...)
	}
	return Snapshot{
		Values:  s.values.Clone(),
		Touched: s.touchedLocked(),
		Deleted: deleted,
	}
}

func (s *State) touchedLocked() []string {
	keys := make([]string, 0, len(s.touched))
	for key := range s.touched {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (s *State) writableField(name string) (model.Field, error) {
	if s.closed {
		return model.Field{}, ErrClosed
	}
	if s.frozen {
		return model.Field{}, ErrSubmitting
	}
	field, ok := s.schema.Field(name)
	if !ok {
		return model.Field{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return field, nil
}

func (s *State) subrecordField(name string) (model.Field, error) {
	field, err := s.writableField(name)
	if err != nil {
		return model.Field{}, err
	}
	if field.Kind != model.KindSubrecords || field.Subrecords == nil {
		return model.Field{}, fmt.Errorf("%w: %s is a %s field", ErrFieldKind, name, field.Kind)
	}
	return field, nil
}

func (s *State) touch(name string) {
	s.touched[name] = struct{}{}
}

func (s *State) deriveSlug(source any) {
	text, _ := source.(string)
	if text == "" || !s.schema.Has("slug") {
		return
	}
	if current, _ := s.values["slug"].(string); current != "" {
		return
	}
	s.values["slug"] = model.Slugify(text)
	s.touch("slug")
}

func complete(schema model.EntitySchema, values Values) Values {
	out := make(Values, len(schema.Fields))
	for _, field := range schema.Fields {
		if value, ok := values[field.Name]; ok && value != nil {
			out[field.Name] = deepCopy(value)
			continue
		}
		out[field.Name] = zeroValue(field)
	}
	return out
}

func zeroValue(field model.Field) any {
	switch field.Kind {
	case model.KindBoolean:
		return false
	case model.KindFile:
		return nil
	case model.KindRelation:
		return []any{}
	case model.KindSubrecords:
		return []Subrecord{}
	default:
		return ""
	}
}

func nestedField(sub *model.Subrecords, name string) (model.Field, bool) {
	for _, field := range sub.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return model.Field{}, false
}

func indexOf(list []Subrecord, id string) int {
	for i, entry := range list {
		if entry.ID == id {
			return i
		}
	}
	return -1
}
