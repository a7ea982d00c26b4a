package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// =============================================================================
// Record
// =============================================================================

// Record is one artifact document. Its schema is defined by the upstream
// system, so fields are accessed by name.
type Record map[string]any

// Text returns the field as a string. Non-string scalars are formatted;
// missing fields return "".
func (r Record) Text(field string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// TextOr returns the field as a string, or def when it is missing or empty.
func (r Record) TextOr(field, def string) string {
	if s := r.Text(field); s != "" {
		return s
	}
	return def
}

// StringList returns a list field as strings. A scalar string is returned as a
// one-element slice.
func (r Record) StringList(field string) []string {
	switch v := r[field].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item == nil {
				continue
			}
			if s, ok := item.(string); ok {
				out = append(out, s)
				continue
			}
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

// Record returns a nested document field, or nil.
func (r Record) Record(field string) Record {
	return asRecord(r[field])
}

// Records returns a list-of-documents field, skipping non-document items.
func (r Record) Records(field string) []Record {
	items, ok := r[field].([]any)
	if !ok {
		if recs, ok := r[field].([]Record); ok {
			return recs
		}
		return nil
	}
	out := make([]Record, 0, len(items))
	for _, item := range items {
		if rec := asRecord(item); rec != nil {
			out = append(out, rec)
		}
	}
	return out
}

func asRecord(v any) Record {
	switch m := v.(type) {
	case Record:
		return m
	case map[string]any:
		return Record(m)
	default:
		return nil
	}
}

// =============================================================================
// Collection
// =============================================================================

// Set holds the ordered records of a single artifact type.
type Set struct {
	Type    string   `json:"type" yaml:"type"`
	Records []Record `json:"records" yaml:"records"`
}

// Collection maps artifact types to their records. Type order is significant:
// chunking, prompts, and rendering all follow it.
type Collection []Set

// Get returns the records for a type, or nil.
func (c Collection) Get(typ string) []Record {
	for _, s := range c {
		if s.Type == typ {
			return s.Records
		}
	}
	return nil
}

// Has reports whether the type is present (possibly with zero records).
func (c Collection) Has(typ string) bool {
	for _, s := range c {
		if s.Type == typ {
			return true
		}
	}
	return false
}

// Types returns the artifact types in order.
func (c Collection) Types() []string {
	types := make([]string, len(c))
	for i, s := range c {
		types[i] = s.Type
	}
	return types
}

// Len returns the total number of records across all types.
func (c Collection) Len() int {
	n := 0
	for _, s := range c {
		n += len(s.Records)
	}
	return n
}

// With returns a copy of the collection with typ set to records. An existing
// type keeps its position; a new type is appended.
func (c Collection) With(typ string, records []Record) Collection {
	out := make(Collection, len(c), len(c)+1)
	copy(out, c)
	for i := range out {
		if out[i].Type == typ {
			out[i].Records = records
			return out
		}
	}
	return append(out, Set{Type: typ, Records: records})
}

// MarshalJSON encodes the collection as a JSON object keyed by type, in order.
func (c Collection) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(s.Type)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		records := s.Records
		if records == nil {
			records = []Record{}
		}
		val, err := json.Marshal(records)
		if err != nil {
			return nil, fmt.Errorf("marshal %s records: %w", s.Type, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keyed by type, keeping key order.
func (c *Collection) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*c = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("artifact collection: expected object, got %v", tok)
	}

	var out Collection
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		typ, ok := tok.(string)
		if !ok {
			return fmt.Errorf("artifact collection: expected type key, got %v", tok)
		}
		var records []Record
		if err := dec.Decode(&records); err != nil {
			return fmt.Errorf("artifact collection %s: %w", typ, err)
		}
		out = append(out, Set{Type: typ, Records: records})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*c = out
	return nil
}
