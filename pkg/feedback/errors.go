package feedback

import (
	"strconv"
	"strings"

	"github.com/goliatone/go-formsync/pkg/model"
)

// ErrorMapping splits a validation payload into field-level and form-level
// messages. Field keys are dotted paths over the schema: "email",
// "branches.location".
type ErrorMapping struct {
	Fields map[string][]string
	Form   []string
}

// MergeFormErrors concatenates form-level messages, trimming whitespace and
// dropping duplicates while preserving order.
func MergeFormErrors(existing []string, extras ...string) []string {
	combined := make([]string, 0, len(existing)+len(extras))
	combined = append(combined, existing...)
	combined = append(combined, extras...)
	return normalizeMessages(combined)
}

// MapErrorPayload assigns server messages to schema fields. Keys may use the
// wire name of a field (category_id) or index into a sub-record list
// (branches.1.location). Unknown keys become form-level messages so nothing
// is lost.
func MapErrorPayload(schema model.EntitySchema, payload map[string][]string) ErrorMapping {
	mapping := ErrorMapping{
		Fields: make(map[string][]string),
	}
	if len(payload) == 0 {
		mapping.Fields = nil
		return mapping
	}

	paths := fieldPaths(schema)
	for rawPath, messages := range payload {
		normalized := normalizeMessages(messages)
		if len(normalized) == 0 {
			continue
		}

		mapped, formLevel := mapErrorPath(rawPath, paths)
		if formLevel {
			mapping.Form = append(mapping.Form, normalized...)
			continue
		}
		mapping.Fields[mapped] = append(mapping.Fields[mapped], normalized...)
	}

	if len(mapping.Fields) == 0 {
		mapping.Fields = nil
	}
	mapping.Form = normalizeMessages(mapping.Form)
	return mapping
}

func normalizeMessages(messages []string) []string {
	if len(messages) == 0 {
		return nil
	}
	out := make([]string, 0, len(messages))
	seen := make(map[string]struct{}, len(messages))
	for _, message := range messages {
		trimmed := strings.TrimSpace(message)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// fieldPaths maps every accepted key to its canonical dotted path.
func fieldPaths(schema model.EntitySchema) map[string]string {
	paths := make(map[string]string)
	for _, field := range schema.Fields {
		paths[field.Name] = field.Name
		paths[field.Wire()] = field.Name
		sub := field.Subrecords
		if sub == nil {
			continue
		}
		for _, nested := range sub.Fields {
			paths[field.Name+"."+nested.Name] = field.Name + "." + nested.Name
		}
		if sub.FileField != "" {
			paths[field.Name+"."+sub.FileField] = field.Name
		}
		if sub.DeletedField != "" {
			paths[sub.DeletedField] = field.Name
		}
		if sub.ExistingField != "" {
			paths[sub.ExistingField] = field.Name
		}
	}
	return paths
}

func mapErrorPath(raw string, paths map[string]string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if isFormLevelKey(trimmed) {
		return "", true
	}
	segments := strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == '.' || r == '/' || r == '[' || r == ']'
	})
	segments = stripNumericSegments(segments)
	for end := len(segments); end > 0; end-- {
		if path, ok := paths[strings.Join(segments[:end], ".")]; ok {
			return path, false
		}
	}
	return "", true
}

func stripNumericSegments(segments []string) []string {
	out := make([]string, 0, len(segments))
	for _, segment := range segments {
		if _, err := strconv.Atoi(segment); err == nil {
			continue
		}
		out = append(out, segment)
	}
	return out
}

func isFormLevelKey(key string) bool {
	switch strings.ToLower(key) {
	case "", "__all__", "non_field_errors", "non-field-errors", "detail", "error", "message":
		return true
	default:
		return false
	}
}
