package model

import internalmodel "github.com/goliatone/go-formsync/internal/model"

// FieldKind re-exports the internal FieldKind enumeration.
type FieldKind = internalmodel.FieldKind

const (
	KindText       = internalmodel.KindText
	KindInteger    = internalmodel.KindInteger
	KindNumber     = internalmodel.KindNumber
	KindBoolean    = internalmodel.KindBoolean
	KindDate       = internalmodel.KindDate
	KindFile       = internalmodel.KindFile
	KindRelation   = internalmodel.KindRelation
	KindReference  = internalmodel.KindReference
	KindSubrecords = internalmodel.KindSubrecords
)

type RelationKey = internalmodel.RelationKey

const (
	KeyID   = internalmodel.KeyID
	KeySlug = internalmodel.KeySlug
)

type ListEncoding = internalmodel.ListEncoding

const (
	EncodingJSON     = internalmodel.EncodingJSON
	EncodingRepeated = internalmodel.EncodingRepeated
)

type RemovalMode = internalmodel.RemovalMode

const (
	RemovalOmit     = internalmodel.RemovalOmit
	RemovalSentinel = internalmodel.RemovalSentinel
)

type SubrecordPolicy = internalmodel.SubrecordPolicy

const (
	PolicyTrackDeletions = internalmodel.PolicyTrackDeletions
	PolicyResendExisting = internalmodel.PolicyResendExisting
	PolicyJSONList       = internalmodel.PolicyJSONList
)

type RelationshipKind = internalmodel.RelationshipKind

const (
	RelationshipBelongsTo = internalmodel.RelationshipBelongsTo
	RelationshipHasMany   = internalmodel.RelationshipHasMany
)

type Removal = internalmodel.Removal
type Relationship = internalmodel.Relationship
type Subrecords = internalmodel.Subrecords
type Field = internalmodel.Field
type Endpoints = internalmodel.Endpoints
type EntitySchema = internalmodel.EntitySchema

// Validate reports declarations the generic engine cannot honour.
func Validate(schema EntitySchema) error {
	return internalmodel.Validate(schema)
}

// Slugify derives a URL slug from a display name.
func Slugify(name string) string {
	return internalmodel.Slugify(name)
}

// CloneSchema returns a deep copy of schema.
func CloneSchema(schema EntitySchema) EntitySchema {
	return internalmodel.CloneSchema(schema)
}
