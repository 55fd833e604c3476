// Package normalize turns a server entity payload into flat form values. It
// never fails on malformed optional data: anything it cannot interpret falls
// back to the field's empty value.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formsync/pkg/form"
	"github.com/goliatone/go-formsync/pkg/model"
)

// Decode parses a JSON object keeping numbers as json.Number so ids do not
// lose precision.
func Decode(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("normalize: decode entity: %w", err)
	}
	return payload, nil
}

// Entity projects payload onto schema.
func Entity(schema model.EntitySchema, payload map[string]any) form.Values {
	values := make(form.Values, len(schema.Fields))
	for _, field := range schema.Fields {
		raw, _ := lookup(payload, field)
		values[field.Name] = Field(field, raw)
	}
	return values
}

// Present is Entity restricted to the fields payload actually carries. It is
// what a submission merges back, so fields a response omits keep the values
// that were submitted.
func Present(schema model.EntitySchema, payload map[string]any) form.Values {
	values := make(form.Values)
	for _, field := range schema.Fields {
		if raw, ok := lookup(payload, field); ok {
			values[field.Name] = Field(field, raw)
		}
	}
	return values
}

// Field normalises one raw value for field.
func Field(field model.Field, raw any) any {
	switch field.Kind {
	case model.KindText, model.KindDate:
		return text(raw)
	case model.KindInteger:
		if n, ok := integer(raw); ok {
			return n
		}
		return ""
	case model.KindNumber:
		if f, ok := number(raw); ok {
			return f
		}
		return ""
	case model.KindBoolean:
		b, _ := raw.(bool)
		return b
	case model.KindFile:
		if url, ok := raw.(string); ok && url != "" {
			return url
		}
		return nil
	case model.KindRelation:
		return relation(field, raw)
	case model.KindReference:
		return reference(field, raw)
	case model.KindSubrecords:
		return subrecords(field, raw)
	default:
		return nil
	}
}

func lookup(payload map[string]any, field model.Field) (any, bool) {
	path := field.SourcePath
	if path == "" {
		path = field.Name
	}
	var current any = payload
	for _, segment := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func text(raw any) string {
	switch typed := raw.(type) {
	case string:
		return typed
	case json.Number:
		return typed.String()
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	default:
		return ""
	}
}

func integer(raw any) (int64, bool) {
	switch typed := raw.(type) {
	case json.Number:
		if n, err := typed.Int64(); err == nil {
			return n, true
		}
	case float64:
		if typed == float64(int64(typed)) {
			return int64(typed), true
		}
	case int:
		return int64(typed), true
	case int64:
		return typed, true
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

func number(raw any) (float64, bool) {
	switch typed := raw.(type) {
	case json.Number:
		if f, err := typed.Float64(); err == nil {
			return f, true
		}
	case float64:
		return typed, true
	case int64:
		return float64(typed), true
	case int:
		return float64(typed), true
	case string:
		// Decimal fields (price, exam_fee) arrive as strings.
		if f, err := strconv.ParseFloat(strings.TrimSpace(typed), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// key extracts the addressing key from a related item: the item itself when
// it is already a scalar, item[key] when it is an object.
func key(field model.Field, item any) (any, bool) {
	if obj, ok := item.(map[string]any); ok {
		item = obj[string(field.RelationKeyOrDefault())]
	}
	if field.RelationKeyOrDefault() == model.KeySlug {
		s, ok := item.(string)
		return s, ok && s != ""
	}
	if n, ok := integer(item); ok {
		return n, true
	}
	if s, ok := item.(string); ok && s != "" {
		return s, true
	}
	return nil, false
}

// relation keeps one entry per related item. An item without a usable key
// stays as "" so the list length matches the server's; encoding such a list
// fails instead of silently dropping the relation.
func relation(field model.Field, raw any) []any {
	items, _ := raw.([]any)
	out := make([]any, 0, len(items))
	for _, item := range items {
		k, ok := key(field, item)
		if !ok {
			k = ""
		}
		out = append(out, k)
	}
	return out
}

func reference(field model.Field, raw any) any {
	if raw == nil {
		return ""
	}
	if k, ok := key(field, raw); ok {
		return k
	}
	return ""
}

func subrecords(field model.Field, raw any) []form.Subrecord {
	items, _ := raw.([]any)
	sub := field.Subrecords
	out := make([]form.Subrecord, 0, len(items))
	for _, item := range items {
		entry, ok := subrecord(sub, item)
		if ok {
			out = append(out, entry)
		}
	}
	return out
}

func subrecord(sub *model.Subrecords, item any) (form.Subrecord, bool) {
	if url, ok := item.(string); ok && url != "" && sub != nil && sub.FileField != "" {
		// Some gallery serializers return bare URLs; the URL doubles as id.
		return form.Subrecord{ID: url, File: url}, true
	}
	obj, ok := item.(map[string]any)
	if !ok {
		return form.Subrecord{}, false
	}
	id := text(obj["id"])
	if id == "" {
		return form.Subrecord{}, false
	}

	entry := form.Subrecord{ID: id}
	if sub == nil {
		return entry, true
	}
	if len(sub.Fields) > 0 {
		entry.Fields = make(map[string]any, len(sub.Fields))
		for _, nested := range sub.Fields {
			entry.Fields[nested.Name] = Field(nested, obj[nested.Name])
		}
	}
	if sub.FileField != "" {
		if url, ok := obj[sub.FileField].(string); ok && url != "" {
			entry.File = url
		}
	}
	return entry, true
}
