package model

import (
	"fmt"
	"strings"
)

// Builder turns entity declarations (hand-written catalog entries, YAML files,
// OpenAPI imports) into normalised, validated schemas.
type Builder struct {
	opts Options
}

// New creates a Builder with the supplied options.
func New(options Options) *Builder {
	opts := defaultOptions()
	if options.Labeler != nil {
		opts.Labeler = options.Labeler
	}
	return &Builder{opts: opts}
}

// Build fills defaults on a copy of decl and validates the result. The input
// is never mutated.
func (b *Builder) Build(decl EntitySchema) (EntitySchema, error) {
	schema := CloneSchema(decl)
	schema.Entity = strings.TrimSpace(schema.Entity)
	schema.Resource = strings.Trim(strings.TrimSpace(schema.Resource), "/")
	if schema.Resource == "" {
		schema.Resource = schema.Entity
	}
	schema.Endpoints = defaultEndpoints(schema.Resource, schema.Endpoints)

	for i := range schema.Fields {
		b.normalizeField(&schema.Fields[i])
	}

	if err := Validate(schema); err != nil {
		return EntitySchema{}, fmt.Errorf("model builder: %w", err)
	}
	return schema, nil
}

// MustBuild is Build for static declarations; it panics on invalid input.
func (b *Builder) MustBuild(decl EntitySchema) EntitySchema {
	schema, err := b.Build(decl)
	if err != nil {
		panic(err)
	}
	return schema
}

func (b *Builder) normalizeField(field *Field) {
	field.Name = strings.TrimSpace(field.Name)
	field.WireName = strings.TrimSpace(field.WireName)
	if field.Kind == "" {
		field.Kind = KindText
	}
	if field.Label == "" {
		field.Label = b.opts.Labeler(field.Name)
	}

	switch field.Kind {
	case KindRelation:
		if field.Encoding == "" {
			field.Encoding = EncodingJSON
		}
		normalizeRelationship(field)
	case KindReference:
		field.Encoding = ""
		normalizeRelationship(field)
	case KindFile:
		if field.Removal == nil {
			field.Removal = &Removal{Mode: RemovalOmit}
		} else if field.Removal.Mode == "" {
			field.Removal.Mode = RemovalOmit
		}
	case KindSubrecords:
		b.normalizeSubrecords(field)
	default:
		normalizeRelationship(field)
	}
}

func (b *Builder) normalizeSubrecords(field *Field) {
	sub := field.Subrecords
	if sub == nil {
		return
	}
	for i := range sub.Fields {
		nested := &sub.Fields[i]
		nested.Name = strings.TrimSpace(nested.Name)
		if nested.Kind == "" {
			nested.Kind = KindText
		}
		if nested.Label == "" {
			nested.Label = b.opts.Labeler(nested.Name)
		}
	}
	switch sub.Policy {
	case PolicyTrackDeletions, PolicyResendExisting:
		if sub.DeletedField == "" {
			sub.DeletedField = "deleted_" + field.Wire()
		}
		if sub.Policy == PolicyResendExisting && sub.ExistingField == "" {
			sub.ExistingField = "existing_" + field.Wire()
		}
	}
}

func defaultEndpoints(resource string, eps Endpoints) Endpoints {
	base := "/" + resource + "/"
	if eps.List == "" {
		eps.List = base
	}
	if eps.Detail == "" {
		eps.Detail = base + "{slug}/"
	}
	if eps.Create == "" {
		eps.Create = base + "create/"
	}
	if eps.Update == "" {
		eps.Update = base + "{slug}/update/"
	}
	if eps.Delete == "" {
		eps.Delete = base + "{slug}/delete/"
	}
	return eps
}

// CloneSchema returns a deep copy of schema.
func CloneSchema(schema EntitySchema) EntitySchema {
	out := schema
	out.Metadata = cloneStrings(schema.Metadata)
	if schema.Fields != nil {
		out.Fields = make([]Field, len(schema.Fields))
		for i, field := range schema.Fields {
			out.Fields[i] = cloneField(field)
		}
	}
	return out
}

func cloneField(field Field) Field {
	out := field
	out.Relationship = cloneRelationship(field.Relationship)
	out.Metadata = cloneStrings(field.Metadata)
	if field.Enum != nil {
		out.Enum = append([]string(nil), field.Enum...)
	}
	if field.Removal != nil {
		removal := *field.Removal
		out.Removal = &removal
	}
	if field.Subrecords != nil {
		sub := *field.Subrecords
		if field.Subrecords.Fields != nil {
			sub.Fields = make([]Field, len(field.Subrecords.Fields))
			for i, nested := range field.Subrecords.Fields {
				sub.Fields[i] = cloneField(nested)
			}
		}
		out.Subrecords = &sub
	}
	return out
}

func cloneStrings(src map[string]string) map[string]string {
	if src == nil {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
