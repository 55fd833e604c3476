package schema

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"sync"

	"github.com/goliatone/go-formsync/pkg/model"
)

// ErrUnknownEntity is returned when an entity name has no declaration.
var ErrUnknownEntity = errors.New("schema: unknown entity")

// Registry resolves entity names to built schemas. It is safe for concurrent
// use.
type Registry struct {
	mu         sync.RWMutex
	builder    model.Builder
	decorators []model.Decorator
	schemas    map[string]model.EntitySchema
}

// Option configures a Registry.
type Option func(*Registry)

// WithBuilder overrides the builder used to normalise declarations.
func WithBuilder(builder model.Builder) Option {
	return func(r *Registry) {
		if builder != nil {
			r.builder = builder
		}
	}
}

// WithDecorators registers decorators applied to every schema after it is
// built, in order.
func WithDecorators(decorators ...model.Decorator) Option {
	return func(r *Registry) {
		r.decorators = append(r.decorators, decorators...)
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(options ...Option) *Registry {
	r := &Registry{
		builder: model.NewBuilder(),
		schemas: make(map[string]model.EntitySchema),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Builtin returns a registry preloaded with the built-in catalog.
func Builtin(options ...Option) (*Registry, error) {
	r := NewRegistry(options...)
	for _, decl := range builtins() {
		if err := r.Register(decl); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register builds decl and stores it, replacing any schema of the same entity.
func (r *Registry) Register(decl model.EntitySchema) error {
	schema, err := r.builder.Build(decl)
	if err != nil {
		return fmt.Errorf("schema: register %q: %w", decl.Entity, err)
	}
	for _, decorator := range r.decorators {
		if err := decorator.Decorate(&schema); err != nil {
			return fmt.Errorf("schema: decorate %q: %w", schema.Entity, err)
		}
	}
	if err := model.Validate(schema); err != nil {
		return fmt.Errorf("schema: register %q: %w", schema.Entity, err)
	}

	r.mu.Lock()
	r.schemas[schema.Entity] = schema
	r.mu.Unlock()
	return nil
}

// LoadFS registers every declaration found in fsys. Files may add entities or
// replace built-in ones.
func (r *Registry) LoadFS(fsys fs.FS) error {
	decls, err := LoadFS(fsys)
	if err != nil {
		return err
	}
	for _, decl := range decls {
		if err := r.Register(decl); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns a copy of the schema registered for entity.
func (r *Registry) Lookup(entity string) (model.EntitySchema, error) {
	r.mu.RLock()
	schema, ok := r.schemas[entity]
	r.mu.RUnlock()
	if !ok {
		return model.EntitySchema{}, fmt.Errorf("%w %q", ErrUnknownEntity, entity)
	}
	return model.CloneSchema(schema), nil
}

// Entities lists the registered entity names in sorted order.
func (r *Registry) Entities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
