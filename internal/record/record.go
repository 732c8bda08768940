package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// UpdatedKey is the JSON key carrying the update flag next to the measurements.
const UpdatedKey = "updated_data"

// Record is one source's extracted measurements plus the update flag.
// Values are immutable; use WithUpdated to derive a flagged copy.
type Record struct {
	fields  map[string]int64
	updated bool
}

// New builds a Record from a copy of fields.
func New(fields map[string]int64) Record {
	copied := make(map[string]int64, len(fields))
	for name, value := range fields {
		copied[name] = value
	}
	return Record{fields: copied}
}

// Get returns the value of a field.
func (r Record) Get(name string) (int64, bool) {
	value, ok := r.fields[name]
	return value, ok
}

// Fields returns the field names in sorted order.
func (r Record) Fields() []string {
	names := make([]string, 0, len(r.fields))
	for name := range r.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Values returns a copy of the measurements.
func (r Record) Values() map[string]int64 {
	copied := make(map[string]int64, len(r.fields))
	for name, value := range r.fields {
		copied[name] = value
	}
	return copied
}

// Len returns the number of measurements.
func (r Record) Len() int {
	return len(r.fields)
}

// Updated reports whether the record differed from its predecessor when committed.
func (r Record) Updated() bool {
	return r.updated
}

// WithUpdated returns a copy of r carrying the given flag.
func (r Record) WithUpdated(updated bool) Record {
	copied := New(r.fields)
	copied.updated = updated
	return copied
}

// Equal reports whether both records carry the same measurements and flag.
func (r Record) Equal(other Record) bool {
	if r.updated != other.updated || len(r.fields) != len(other.fields) {
		return false
	}
	for name, value := range r.fields {
		if otherValue, ok := other.fields[name]; !ok || otherValue != value {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the record as a flat object with the update flag inline.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for _, name := range r.Fields() {
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		fmt.Fprintf(&buf, ":%d,", r.fields[name])
	}
	fmt.Fprintf(&buf, "%q:%t}", UpdatedKey, r.updated)
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the flat object form written by MarshalJSON.
// Null values are rejected so a corrupt snapshot never loads as zeros.
func (r *Record) UnmarshalJSON(data []byte) error {
	if isNull(data) {
		return errors.New("record is null")
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	decoded := Record{fields: make(map[string]int64, len(raw))}
	for key, value := range raw {
		if isNull(value) {
			return fmt.Errorf("decode field %q: value is null", key)
		}
		if key == UpdatedKey {
			if err := json.Unmarshal(value, &decoded.updated); err != nil {
				return fmt.Errorf("decode %s: %w", UpdatedKey, err)
			}
			continue
		}
		var number int64
		if err := json.Unmarshal(value, &number); err != nil {
			return fmt.Errorf("decode field %q: %w", key, err)
		}
		decoded.fields[key] = number
	}

	*r = decoded
	return nil
}

func isNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}
