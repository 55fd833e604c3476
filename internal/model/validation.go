package model

import (
	"errors"
	"fmt"
)

var (
	errEntityMissing   = errors.New("model: entity name is required")
	errResourceMissing = errors.New("model: resource path is required")
	errFieldNameEmpty  = errors.New("model: field name is required")
)

// Validate checks a schema for declarations the generic engine cannot honour.
// Builders call it after normalisation; hand-written schemas should too.
func Validate(schema EntitySchema) error {
	if schema.Entity == "" {
		return errEntityMissing
	}
	if schema.Resource == "" {
		return errResourceMissing
	}

	names := make(map[string]struct{}, len(schema.Fields))
	wires := make(map[string]string, len(schema.Fields))
	claimWire := func(wire, owner string) error {
		if prev, exists := wires[wire]; exists {
			return fmt.Errorf("model: %s: wire key %q used by both %q and %q", schema.Entity, wire, prev, owner)
		}
		wires[wire] = owner
		return nil
	}

	for _, field := range schema.Fields {
		if field.Name == "" {
			return fmt.Errorf("%w (entity %s)", errFieldNameEmpty, schema.Entity)
		}
		if _, exists := names[field.Name]; exists {
			return fmt.Errorf("model: %s: duplicate field %q", schema.Entity, field.Name)
		}
		names[field.Name] = struct{}{}

		if err := validateField(schema.Entity, field); err != nil {
			return err
		}
		if err := claimWire(field.Wire(), field.Name); err != nil {
			return err
		}
		if sub := field.Subrecords; sub != nil {
			if sub.DeletedField != "" {
				if err := claimWire(sub.DeletedField, field.Name); err != nil {
					return err
				}
			}
			if sub.ExistingField != "" {
				if err := claimWire(sub.ExistingField, field.Name); err != nil {
					return err
				}
			}
		}
	}

	if schema.SlugSource != "" {
		if _, ok := names[schema.SlugSource]; !ok {
			return fmt.Errorf("model: %s: slug source %q is not a field", schema.Entity, schema.SlugSource)
		}
		if _, ok := names["slug"]; !ok {
			return fmt.Errorf("model: %s: slug source declared without a slug field", schema.Entity)
		}
	}
	return nil
}

func validateField(entity string, field Field) error {
	switch field.Kind {
	case KindText, KindInteger, KindNumber, KindBoolean, KindDate:
		return nil
	case KindFile:
		if field.Removal != nil {
			switch field.Removal.Mode {
			case RemovalOmit, RemovalSentinel:
			default:
				return fmt.Errorf("model: %s.%s: unknown removal mode %q", entity, field.Name, field.Removal.Mode)
			}
		}
		return nil
	case KindRelation:
		switch field.Encoding {
		case EncodingJSON, EncodingRepeated:
		default:
			return fmt.Errorf("model: %s.%s: unknown list encoding %q", entity, field.Name, field.Encoding)
		}
		return validateRelationship(entity, field)
	case KindReference:
		return validateRelationship(entity, field)
	case KindSubrecords:
		return validateSubrecords(entity, field)
	default:
		return fmt.Errorf("model: %s.%s: unknown field kind %q", entity, field.Name, field.Kind)
	}
}

func validateRelationship(entity string, field Field) error {
	rel := field.Relationship
	if rel == nil {
		return fmt.Errorf("model: %s.%s: relationship is required", entity, field.Name)
	}
	switch rel.Key {
	case KeyID, KeySlug:
		return nil
	default:
		return fmt.Errorf("model: %s.%s: unknown relation key %q", entity, field.Name, rel.Key)
	}
}

func validateSubrecords(entity string, field Field) error {
	sub := field.Subrecords
	if sub == nil {
		return fmt.Errorf("model: %s.%s: sub-record configuration is required", entity, field.Name)
	}
	switch sub.Policy {
	case PolicyTrackDeletions, PolicyResendExisting:
		if sub.FileField == "" {
			return fmt.Errorf("model: %s.%s: policy %s requires a file field", entity, field.Name, sub.Policy)
		}
		if sub.DeletedField == "" {
			return fmt.Errorf("model: %s.%s: policy %s requires a deletion field", entity, field.Name, sub.Policy)
		}
		if sub.Policy == PolicyResendExisting && sub.ExistingField == "" {
			return fmt.Errorf("model: %s.%s: policy %s requires an existing-ids field", entity, field.Name, sub.Policy)
		}
	case PolicyJSONList:
	default:
		return fmt.Errorf("model: %s.%s: unknown sub-record policy %q", entity, field.Name, sub.Policy)
	}

	seen := make(map[string]struct{}, len(sub.Fields))
	for _, nested := range sub.Fields {
		if nested.Name == "" {
			return fmt.Errorf("model: %s.%s: sub-record field name is required", entity, field.Name)
		}
		if nested.Name == "id" {
			return fmt.Errorf("model: %s.%s: sub-record field %q is reserved", entity, field.Name, nested.Name)
		}
		if _, exists := seen[nested.Name]; exists {
			return fmt.Errorf("model: %s.%s: duplicate sub-record field %q", entity, field.Name, nested.Name)
		}
		seen[nested.Name] = struct{}{}
		switch nested.Kind {
		case KindText, KindInteger, KindNumber, KindBoolean, KindDate:
		default:
			return fmt.Errorf("model: %s.%s.%s: sub-record fields must be scalar, got %q", entity, field.Name, nested.Name, nested.Kind)
		}
	}
	return nil
}
