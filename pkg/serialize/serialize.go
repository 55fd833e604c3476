// Package serialize turns a form snapshot into a multipart payload following
// the wire contract declared on each schema field.
package serialize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formsync/pkg/form"
	"github.com/goliatone/go-formsync/pkg/model"
	"github.com/goliatone/go-formsync/pkg/upload"
)

// Mode selects which fields are encoded.
type Mode int

const (
	// Partial encodes touched fields plus non-empty deletion markers. It is
	// used for updates so untouched server fields are never overwritten.
	// Fields marked Resend are added whenever anything else is sent, since
	// the server resets them when they are missing from an update.
	Partial Mode = iota
	// Full encodes every field. It is used for creation.
	Full
)

func (m Mode) String() string {
	if m == Full {
		return "full"
	}
	return "partial"
}

// ErrInvalidValue is returned when a value cannot be encoded under its
// field's contract, for example a non-numeric id in an id-keyed relation.
var ErrInvalidValue = errors.New("serialize: invalid value")

// Encode builds the payload for snapshot. Fields are emitted in schema order.
func Encode(schema model.EntitySchema, snapshot form.Snapshot, mode Mode) (Payload, error) {
	var payload Payload
	changed := mode == Full || hasChange(schema, snapshot)
	for _, field := range schema.Fields {
		included := mode == Full || snapshot.IsTouched(field.Name) || (field.Resend && changed)
		value := snapshot.Values[field.Name]

		if field.Kind == model.KindSubrecords {
			if err := encodeSubrecords(&payload, schema.Entity, field, value, snapshot.Deleted[field.Name], included); err != nil {
				return Payload{}, err
			}
			continue
		}
		if !included {
			continue
		}
		if err := encodeField(&payload, schema.Entity, field, value); err != nil {
			return Payload{}, err
		}
	}
	return payload, nil
}

// hasChange reports whether a partial payload would carry anything besides
// the fields that are resent on every update.
func hasChange(schema model.EntitySchema, snapshot form.Snapshot) bool {
	for _, field := range schema.Fields {
		if snapshot.IsTouched(field.Name) || len(snapshot.Deleted[field.Name]) > 0 {
			return true
		}
	}
	return false
}

func encodeField(payload *Payload, entity string, field model.Field, value any) error {
	wire := field.Wire()
	switch field.Kind {
	case model.KindText, model.KindDate, model.KindInteger, model.KindNumber, model.KindReference:
		payload.add(wire, scalar(value))
	case model.KindBoolean:
		b, _ := value.(bool)
		payload.add(wire, strconv.FormatBool(b))
	case model.KindFile:
		encodeFile(payload, field, value)
	case model.KindRelation:
		return encodeRelation(payload, entity, field, value)
	default:
		return fmt.Errorf("serialize: %s.%s: unsupported kind %q", entity, field.Name, field.Kind)
	}
	return nil
}

// encodeFile uploads pending binaries only. A stored URL is never resent; an
// explicit removal sends the sentinel when the field declares one.
func encodeFile(payload *Payload, field model.Field, value any) {
	switch typed := value.(type) {
	case *upload.Pending:
		if typed != nil {
			payload.addFile(field.Wire(), typed)
		}
	case nil:
		if field.Removal != nil && field.Removal.Mode == model.RemovalSentinel {
			payload.add(field.Wire(), field.Removal.Sentinel)
		}
	}
}

func encodeRelation(payload *Payload, entity string, field model.Field, value any) error {
	items, _ := value.([]any)
	keys := make([]any, 0, len(items))
	for _, item := range items {
		key, err := relationKey(field, item)
		if err != nil {
			return fmt.Errorf("%w: %s.%s: %v", ErrInvalidValue, entity, field.Name, err)
		}
		keys = append(keys, key)
	}

	switch field.Encoding {
	case model.EncodingRepeated:
		for _, key := range keys {
			payload.add(field.Wire(), scalar(key))
		}
	default:
		encoded, err := json.Marshal(keys)
		if err != nil {
			return fmt.Errorf("serialize: %s.%s: %w", entity, field.Name, err)
		}
		payload.add(field.Wire(), string(encoded))
	}
	return nil
}

func relationKey(field model.Field, item any) (any, error) {
	if field.RelationKeyOrDefault() == model.KeySlug {
		s := scalar(item)
		if s == "" {
			return nil, errors.New("empty slug")
		}
		return s, nil
	}
	switch typed := item.(type) {
	case int64:
		return typed, nil
	case int:
		return int64(typed), nil
	case float64:
		if typed == float64(int64(typed)) {
			return int64(typed), nil
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64); err == nil {
			return n, nil
		}
	}
	return nil, fmt.Errorf("id %v is not an integer", item)
}

func encodeSubrecords(payload *Payload, entity string, field model.Field, value any, deleted []string, included bool) error {
	sub := field.Subrecords
	if sub == nil {
		return fmt.Errorf("serialize: %s.%s: missing sub-record configuration", entity, field.Name)
	}
	entries, _ := value.([]form.Subrecord)

	switch sub.Policy {
	case model.PolicyTrackDeletions, model.PolicyResendExisting:
		if included {
			for _, entry := range entries {
				if p := entry.Pending(); entry.IsNew && p != nil {
					payload.addFile(field.Wire(), p)
				}
			}
			if sub.Policy == model.PolicyResendExisting {
				existing := make([]any, 0, len(entries))
				for _, entry := range entries {
					if !entry.IsNew {
						existing = append(existing, idValue(entry.ID))
					}
				}
				if err := addJSON(payload, sub.ExistingField, existing); err != nil {
					return err
				}
			}
		}
		if len(deleted) > 0 {
			ids := make([]any, 0, len(deleted))
			for _, id := range deleted {
				ids = append(ids, idValue(id))
			}
			if err := addJSON(payload, sub.DeletedField, ids); err != nil {
				return err
			}
		}
	case model.PolicyJSONList:
		if !included {
			return nil
		}
		list := make([]map[string]any, 0, len(entries))
		for _, entry := range entries {
			obj := make(map[string]any, len(sub.Fields)+1)
			for _, nested := range sub.Fields {
				obj[nested.Name] = entry.Fields[nested.Name]
			}
			if !entry.IsNew {
				obj["id"] = idValue(entry.ID)
			}
			list = append(list, obj)
		}
		if err := addJSON(payload, field.Wire(), list); err != nil {
			return err
		}
	default:
		return fmt.Errorf("serialize: %s.%s: unknown sub-record policy %q", entity, field.Name, sub.Policy)
	}
	return nil
}

func addJSON(payload *Payload, name string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("serialize: encode %s: %w", name, err)
	}
	payload.add(name, string(encoded))
	return nil
}

// idValue sends numeric ids as JSON numbers.
func idValue(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

func scalar(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case int64:
		return strconv.FormatInt(typed, 10)
	case int:
		return strconv.Itoa(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	default:
		return fmt.Sprint(typed)
	}
}
