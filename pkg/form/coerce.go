package form

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goliatone/go-formsync/pkg/model"
)

// coerceScalar converts value into the canonical shape of a scalar or
// reference field.
func coerceScalar(field model.Field, value any) (any, error) {
	switch field.Kind {
	case model.KindText, model.KindDate:
		if s, ok := value.(string); ok {
			return s, nil
		}
		if value == nil {
			return "", nil
		}
	case model.KindInteger:
		if n, ok := toInt64(value); ok {
			return n, nil
		}
		if s, ok := value.(string); ok {
			s = strings.TrimSpace(s)
			if s == "" {
				return "", nil
			}
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return n, nil
			}
		}
	case model.KindNumber:
		switch typed := value.(type) {
		case float64:
			return typed, nil
		case float32:
			return float64(typed), nil
		case string:
			s := strings.TrimSpace(typed)
			if s == "" {
				return "", nil
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, nil
			}
		default:
			if n, ok := toInt64(value); ok {
				return float64(n), nil
			}
		}
	case model.KindBoolean:
		if b, ok := value.(bool); ok {
			return b, nil
		}
	case model.KindReference:
		if n, ok := toInt64(value); ok {
			return n, nil
		}
		if s, ok := value.(string); ok {
			return strings.TrimSpace(s), nil
		}
		if value == nil {
			return "", nil
		}
	default:
		return nil, fmt.Errorf("%w: %s is a %s field", ErrFieldKind, field.Name, field.Kind)
	}
	return nil, fmt.Errorf("%w: %s expects %s, got %T", ErrFieldKind, field.Name, field.Kind, value)
}

// coerceListItem accepts ids (any integer shape) and slugs.
func coerceListItem(field model.Field, value any) (any, error) {
	if n, ok := toInt64(value); ok {
		return n, nil
	}
	if f, ok := value.(float64); ok && f == math.Trunc(f) {
		return int64(f), nil
	}
	if s, ok := value.(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s), nil
	}
	return nil, fmt.Errorf("%w: %s items must be ids or slugs, got %T", ErrFieldKind, field.Name, value)
}

func toInt64(value any) (int64, bool) {
	switch typed := value.(type) {
	case int:
		return int64(typed), true
	case int32:
		return int64(typed), true
	case int64:
		return typed, true
	case uint:
		return int64(typed), true
	case uint32:
		return int64(typed), true
	default:
		return 0, false
	}
}
