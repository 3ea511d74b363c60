package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is one named record value. Value is a string or a number.
type Field struct {
	Name  string
	Value any
}

// Record is an ordered set of fields serialized as one JSON object.
type Record struct {
	fields []Field
}

func NewRecord() *Record {
	return &Record{}
}

func (r *Record) Str(name, value string) *Record {
	r.fields = append(r.fields, Field{Name: name, Value: value})
	return r
}

func (r *Record) Int(name string, value int) *Record {
	r.fields = append(r.fields, Field{Name: name, Value: value})
	return r
}

func (r *Record) Float(name string, value float64) *Record {
	r.fields = append(r.fields, Field{Name: name, Value: value})
	return r
}

func (r *Record) Len() int {
	return len(r.fields)
}

func (r *Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// MarshalJSON writes the fields in insertion order. Duplicate names are
// written as given.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, fmt.Errorf("telemetry: field %q: %w", f.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Event is the /event record. Zero fields are sent as "" and 0.
type Event struct {
	Category string
	Action   string
	Label    string
	Value    int
}

func (e Event) Record() *Record {
	return NewRecord().
		Str("Category", e.Category).
		Str("Action", e.Action).
		Str("Label", e.Label).
		Int("Value", e.Value)
}

// LogLine is the /log record. File is sent as its final path segment.
type LogLine struct {
	Level   Severity
	Message string
	File    string
	Line    int
}

func (l LogLine) Record() *Record {
	return NewRecord().
		Str("level", l.Level.String()).
		Str("message", l.Message).
		Str("line", SourceFile(l.File)).
		Int("lineNum", l.Line)
}
