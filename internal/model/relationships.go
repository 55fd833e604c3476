package model

import (
	"strings"
)

// normalizeRelationship fills derived attributes of a declared relationship.
// Relation fields always point at many targets and reference fields at one,
// regardless of what the declaration says; the kind wins over a conflicting
// cardinality.
func normalizeRelationship(field *Field) {
	if field == nil {
		return
	}
	switch field.Kind {
	case KindRelation, KindReference:
	default:
		field.Relationship = nil
		return
	}

	rel := cloneRelationship(field.Relationship)
	if rel == nil {
		rel = &Relationship{}
	}

	if kind, ok := normalizeRelationshipKind(string(rel.Kind)); ok {
		rel.Kind = kind
	}
	if field.Kind == KindRelation {
		rel.Kind = RelationshipHasMany
	} else {
		rel.Kind = RelationshipBelongsTo
	}

	rel.Cardinality = deriveCardinality(rel.Kind)
	rel.Key = RelationKey(strings.ToLower(strings.TrimSpace(string(rel.Key))))
	if rel.Key == "" {
		rel.Key = KeyID
	}
	rel.Target = strings.TrimSpace(rel.Target)
	if rel.Target == "" {
		rel.Target = field.Name
	}
	field.Relationship = rel
}

func normalizeRelationshipKind(raw string) (RelationshipKind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "belongsto", "hasone":
		return RelationshipBelongsTo, true
	case "hasmany", "manytomany":
		return RelationshipHasMany, true
	default:
		return "", false
	}
}

func deriveCardinality(kind RelationshipKind) string {
	switch kind {
	case RelationshipHasMany:
		return "many"
	case RelationshipBelongsTo:
		return "one"
	default:
		return ""
	}
}

func cloneRelationship(rel *Relationship) *Relationship {
	if rel == nil {
		return nil
	}
	cloned := *rel
	return &cloned
}
