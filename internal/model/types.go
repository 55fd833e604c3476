package model

// FieldKind is the simplified enum for the editable shapes an entity field can
// take inside a form session.
type FieldKind string

const (
	KindText       FieldKind = "text"
	KindInteger    FieldKind = "integer"
	KindNumber     FieldKind = "number"
	KindBoolean    FieldKind = "boolean"
	KindDate       FieldKind = "date"
	KindFile       FieldKind = "file"
	KindRelation   FieldKind = "relation"
	KindReference  FieldKind = "reference"
	KindSubrecords FieldKind = "subrecords"
)

// RelationKey names the attribute a related entity is addressed by on the
// update endpoint. Some backend relations are keyed by numeric id, others by
// slug.
type RelationKey string

const (
	KeyID   RelationKey = "id"
	KeySlug RelationKey = "slug"
)

// ListEncoding controls how a relation list travels inside a multipart body.
type ListEncoding string

const (
	// EncodingJSON sends the whole list as one JSON string value.
	EncodingJSON ListEncoding = "json"
	// EncodingRepeated sends one multipart entry per element under the same
	// key.
	EncodingRepeated ListEncoding = "repeated"
)

// RemovalMode controls what a file field emits when its value was explicitly
// cleared.
type RemovalMode string

const (
	RemovalOmit     RemovalMode = "omit"
	RemovalSentinel RemovalMode = "sentinel"
)

// Removal describes the explicit-removal contract of a file field.
type Removal struct {
	Mode     RemovalMode `json:"mode" yaml:"mode"`
	Sentinel string      `json:"sentinel,omitempty" yaml:"sentinel,omitempty"`
}

// SubrecordPolicy selects how an embedded list is sent back to the server.
type SubrecordPolicy string

const (
	// PolicyTrackDeletions uploads binaries of new entries and reports removed
	// persisted entries through the deletion field. Persisted entries are not
	// resent.
	PolicyTrackDeletions SubrecordPolicy = "track-deletions"
	// PolicyResendExisting behaves like PolicyTrackDeletions and additionally
	// resends the ids of the persisted entries that remain.
	PolicyResendExisting SubrecordPolicy = "resend-existing"
	// PolicyJSONList sends the complete list as a JSON array of objects; the
	// server replaces its copy wholesale.
	PolicyJSONList SubrecordPolicy = "json-list"
)

// RelationshipKind mirrors the relationship vocabulary used by the schema
// declarations.
type RelationshipKind string

const (
	RelationshipBelongsTo RelationshipKind = "belongsTo"
	RelationshipHasMany   RelationshipKind = "hasMany"
)

// Relationship captures how a relation or reference field points at another
// entity.
type Relationship struct {
	Kind        RelationshipKind `json:"kind" yaml:"kind"`
	Target      string           `json:"target" yaml:"target"`
	Key         RelationKey      `json:"key" yaml:"key"`
	Cardinality string           `json:"cardinality,omitempty" yaml:"cardinality,omitempty"`
}

// Subrecords configures an embedded list (gallery images, branches).
type Subrecords struct {
	Fields        []Field         `json:"fields,omitempty" yaml:"fields,omitempty"`
	FileField     string          `json:"fileField,omitempty" yaml:"fileField,omitempty"`
	Policy        SubrecordPolicy `json:"policy" yaml:"policy"`
	DeletedField  string          `json:"deletedField,omitempty" yaml:"deletedField,omitempty"`
	ExistingField string          `json:"existingField,omitempty" yaml:"existingField,omitempty"`
}

// Field models an individual input of an entity form.
type Field struct {
	Name         string            `json:"name" yaml:"name"`
	WireName     string            `json:"wireName,omitempty" yaml:"wireName,omitempty"`
	Kind         FieldKind         `json:"kind" yaml:"kind"`
	Label        string            `json:"label,omitempty" yaml:"label,omitempty"`
	Required     bool              `json:"required,omitempty" yaml:"required,omitempty"`
	RichText     bool              `json:"richText,omitempty" yaml:"richText,omitempty"`
	SourcePath   string            `json:"sourcePath,omitempty" yaml:"sourcePath,omitempty"`
	Default      any               `json:"default,omitempty" yaml:"default,omitempty"`
	Enum         []string          `json:"enum,omitempty" yaml:"enum,omitempty"`
	Relationship *Relationship     `json:"relationship,omitempty" yaml:"relationship,omitempty"`
	Encoding     ListEncoding      `json:"encoding,omitempty" yaml:"encoding,omitempty"`
	Removal      *Removal          `json:"removal,omitempty" yaml:"removal,omitempty"`
	Subrecords   *Subrecords       `json:"subrecords,omitempty" yaml:"subrecords,omitempty"`
	// Resend marks a field the server replaces wholesale on every update, so
	// a partial update that carries any change must carry it too.
	Resend       bool              `json:"resend,omitempty" yaml:"resend,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Wire returns the multipart key the field is sent under.
func (f Field) Wire() string {
	if f.WireName != "" {
		return f.WireName
	}
	return f.Name
}

// RelationKeyOrDefault returns the addressing key of a relation or reference
// field, defaulting to numeric ids.
func (f Field) RelationKeyOrDefault() RelationKey {
	if f.Relationship != nil && f.Relationship.Key != "" {
		return f.Relationship.Key
	}
	return KeyID
}

// Endpoints lists the URL templates of a resource family. Paths are relative
// to the API base URL; "{slug}" is substituted at request time.
type Endpoints struct {
	List   string `json:"list" yaml:"list"`
	Detail string `json:"detail" yaml:"detail"`
	Create string `json:"create" yaml:"create"`
	Update string `json:"update" yaml:"update"`
	Delete string `json:"delete" yaml:"delete"`
}

// EntitySchema is the top-level declaration every generic component consumes.
type EntitySchema struct {
	Entity     string            `json:"entity" yaml:"entity"`
	Resource   string            `json:"resource" yaml:"resource"`
	Endpoints  Endpoints         `json:"endpoints" yaml:"endpoints"`
	SlugSource string            `json:"slugSource,omitempty" yaml:"slugSource,omitempty"`
	Fields     []Field           `json:"fields" yaml:"fields"`
	Metadata   map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Field looks up a field by name.
func (s *EntitySchema) Field(name string) (Field, bool) {
	if s == nil {
		return Field{}, false
	}
	for _, field := range s.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

// Has reports whether name is a field of the schema.
func (s *EntitySchema) Has(name string) bool {
	_, ok := s.Field(name)
	return ok
}

// FieldNames returns the field names in declaration order.
func (s *EntitySchema) FieldNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Fields))
	for _, field := range s.Fields {
		names = append(names, field.Name)
	}
	return names
}
