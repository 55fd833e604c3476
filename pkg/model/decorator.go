package model

// Decorator adjusts a schema after it has been built, for example to mark
// extra rich-text fields or point an entity at a different resource path.
type Decorator interface {
	Decorate(*EntitySchema) error
}

// DecoratorFunc adapts a function into a Decorator.
type DecoratorFunc func(*EntitySchema) error

// Decorate calls the underlying function.
func (fn DecoratorFunc) Decorate(schema *EntitySchema) error {
	return fn(schema)
}
