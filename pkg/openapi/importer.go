package openapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formsync/pkg/model"
)

const (
	extensionNamespace = "x-formsync"
	entityExtensionKey = "x-formsync-entity"
	slugExtensionKey   = "x-formsync-slug-source"
	multipartMediaType = "multipart/form-data"
)

// ErrNoMultipartBody is returned when an update operation does not accept
// multipart/form-data.
var ErrNoMultipartBody = errors.New("openapi: operation has no multipart/form-data body")

// Options tunes Import.
type Options struct {
	// Validate runs kin-openapi document validation before importing.
	Validate bool
}

// Import parses an OpenAPI document (JSON or YAML) and returns one
// declaration per tagged PATCH operation, sorted by entity name. The
// declarations still need to go through a model.Builder.
func Import(ctx context.Context, data []byte, opts Options) ([]model.EntitySchema, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("openapi: document payload is empty")
	}

	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("openapi: load document: %w", err)
	}
	if opts.Validate {
		if err := doc.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
			return nil, fmt.Errorf("openapi: validate: %w", err)
		}
	}
	if doc.Paths == nil {
		return nil, nil
	}

	var decls []model.EntitySchema
	for path, item := range doc.Paths.Map() {
		if item == nil || item.Patch == nil {
			continue
		}
		entity, _ := item.Patch.Extensions[entityExtensionKey].(string)
		if strings.TrimSpace(entity) == "" {
			continue
		}
		decl, err := SchemaFromOperation(entity, path, item.Patch)
		if err != nil {
			return nil, err
		}
		decls = append(decls, decl)
	}

	sort.Slice(decls, func(i, j int) bool { return decls[i].Entity < decls[j].Entity })
	return decls, nil
}

// SchemaFromOperation derives an entity declaration from the multipart body
// of an update operation. The resource is the path prefix before the
// "{slug}" segment.
func SchemaFromOperation(entity, path string, op *openapi3.Operation) (model.EntitySchema, error) {
	entity = strings.TrimSpace(entity)
	if op == nil || op.RequestBody == nil || op.RequestBody.Value == nil {
		return model.EntitySchema{}, fmt.Errorf("%w (entity %s)", ErrNoMultipartBody, entity)
	}
	media := op.RequestBody.Value.Content.Get(multipartMediaType)
	if media == nil || media.Schema == nil || media.Schema.Value == nil {
		return model.EntitySchema{}, fmt.Errorf("%w (entity %s)", ErrNoMultipartBody, entity)
	}
	body := media.Schema.Value

	decl := model.EntitySchema{
		Entity:    entity,
		Resource:  resourceFromPath(path),
		Endpoints: model.Endpoints{Update: path},
	}
	if source, ok := op.Extensions[slugExtensionKey].(string); ok {
		decl.SlugSource = source
	}

	required := make(map[string]struct{}, len(body.Required))
	for _, name := range body.Required {
		required[name] = struct{}{}
	}

	names := make([]string, 0, len(body.Properties))
	for name := range body.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, wire := range names {
		prop := body.Properties[wire]
		if prop == nil || prop.Value == nil {
			continue
		}
		field, skip := fieldFromProperty(wire, prop.Value)
		if skip {
			continue
		}
		_, field.Required = required[wire]
		decl.Fields = append(decl.Fields, field)
	}
	return decl, nil
}

func fieldFromProperty(wire string, prop *openapi3.Schema) (model.Field, bool) {
	ext := extension(prop.Extensions)
	if flag(ext, "ignore") {
		return model.Field{}, true
	}

	field := model.Field{
		Name:     wire,
		Label:    prop.Title,
		RichText: flag(ext, "richText"),
	}
	if name := str(ext, "name"); name != "" && name != wire {
		field.Name = name
		field.WireName = wire
	}
	for _, value := range prop.Enum {
		if s, ok := value.(string); ok {
			field.Enum = append(field.Enum, s)
		}
	}

	kind := model.FieldKind(str(ext, "kind"))
	if kind == "" {
		kind = inferKind(prop)
	}
	field.Kind = kind

	switch kind {
	case model.KindFile:
		if str(ext, "removal") == string(model.RemovalSentinel) {
			field.Removal = &model.Removal{Mode: model.RemovalSentinel, Sentinel: str(ext, "sentinel")}
		}
	case model.KindRelation, model.KindReference:
		field.Relationship = &model.Relationship{
			Target: str(ext, "target"),
			Key:    model.RelationKey(str(ext, "key")),
		}
		if kind == model.KindRelation {
			field.Encoding = model.ListEncoding(str(ext, "encoding"))
		}
	case model.KindSubrecords:
		field.Subrecords = &model.Subrecords{
			Policy:        model.SubrecordPolicy(str(ext, "policy")),
			FileField:     str(ext, "fileField"),
			DeletedField:  str(ext, "deletedField"),
			ExistingField: str(ext, "existingField"),
		}
		if prop.Items != nil && prop.Items.Value != nil {
			field.Subrecords.Fields = nestedFields(prop.Items.Value)
		}
	}
	return field, false
}

func nestedFields(item *openapi3.Schema) []model.Field {
	names := make([]string, 0, len(item.Properties))
	for name := range item.Properties {
		if name == "id" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]model.Field, 0, len(names))
	for _, name := range names {
		prop := item.Properties[name]
		if prop == nil || prop.Value == nil {
			continue
		}
		fields = append(fields, model.Field{Name: name, Kind: inferKind(prop.Value)})
	}
	return fields
}

func inferKind(prop *openapi3.Schema) model.FieldKind {
	switch {
	case prop.Type == nil:
		return model.KindText
	case prop.Type.Is(openapi3.TypeBoolean):
		return model.KindBoolean
	case prop.Type.Is(openapi3.TypeInteger):
		return model.KindInteger
	case prop.Type.Is(openapi3.TypeNumber):
		return model.KindNumber
	case prop.Type.Is(openapi3.TypeArray):
		return model.KindRelation
	case prop.Type.Is(openapi3.TypeString):
		switch prop.Format {
		case "binary":
			return model.KindFile
		case "date", "date-time":
			return model.KindDate
		}
	}
	return model.KindText
}

func resourceFromPath(path string) string {
	trimmed := strings.Trim(path, "/")
	if idx := strings.Index(trimmed, "{"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.Trim(trimmed, "/")
}

func extension(raw map[string]any) map[string]any {
	mapped, ok := raw[extensionNamespace].(map[string]any)
	if !ok {
		return nil
	}
	return mapped
}

func str(ext map[string]any, key string) string {
	value, _ := ext[key].(string)
	return strings.TrimSpace(value)
}

func flag(ext map[string]any, key string) bool {
	value, _ := ext[key].(bool)
	return value
}
