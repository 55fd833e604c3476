package form

import (
	"github.com/goliatone/go-formsync/pkg/upload"
)

// Values is the editable projection of an entity keyed by schema field name.
//
// Value shapes by field kind:
//
//	text, date      string ("" for absent)
//	integer         int64 or ""
//	number          float64 or ""
//	boolean         bool
//	file            nil (removed or absent), string (stored URL), *upload.Pending
//	relation        []any of int64 ids or string slugs
//	reference       int64 id, string slug, or ""
//	subrecords      []Subrecord
type Values map[string]any

// Subrecord is one entry of an embedded list such as a gallery image or a
// branch. IsNew is true iff ID was generated locally and the entry has never
// been persisted.
type Subrecord struct {
	ID     string
	Fields map[string]any
	File   any
	IsNew  bool
}

// Pending returns the pending upload of the entry, if any.
func (s Subrecord) Pending() *upload.Pending {
	p, _ := s.File.(*upload.Pending)
	return p
}

func (s Subrecord) clone() Subrecord {
	out := s
	if s.Fields != nil {
		out.Fields = make(map[string]any, len(s.Fields))
		for k, v := range s.Fields {
			out.Fields[k] = deepCopy(v)
		}
	}
	return out
}

// Clone returns a deep copy. Pending uploads are shared; their content is
// immutable.
func (v Values) Clone() Values {
	if v == nil {
		return nil
	}
	out := make(Values, len(v))
	for k, value := range v {
		out[k] = deepCopy(value)
	}
	return out
}

func deepCopy(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		clone := make(map[string]any, len(typed))
		for k, v := range typed {
			clone[k] = deepCopy(v)
		}
		return clone
	case []any:
		clone := make([]any, len(typed))
		for i, v := range typed {
			clone[i] = deepCopy(v)
		}
		return clone
	case []string:
		return append([]string(nil), typed...)
	case []int64:
		return append([]int64(nil), typed...)
	case []Subrecord:
		clone := make([]Subrecord, len(typed))
		for i, entry := range typed {
			clone[i] = entry.clone()
		}
		return clone
	default:
		return typed
	}
}

// pendingUploads lists every pending upload referenced by values, including
// those held by sub-record entries.
func pendingUploads(values Values) []*upload.Pending {
	var out []*upload.Pending
	for _, value := range values {
		switch typed := value.(type) {
		case *upload.Pending:
			out = append(out, typed)
		case []Subrecord:
			for _, entry := range typed {
				if p := entry.Pending(); p != nil {
					out = append(out, p)
				}
			}
		}
	}
	return out
}
