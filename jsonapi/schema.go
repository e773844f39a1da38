package jsonapi

import (
	"errors"
	"fmt"
	"time"
)

// SchemaError reports a resource rejected at the ingestion boundary.
type SchemaError struct {
	Type      string
	ID        string
	Attribute string
	Reason    string
}

func (e *SchemaError) Error() string {
	if e.Attribute != "" {
		return fmt.Sprintf("jsonapi: %s/%s: attribute %q: %s", e.Type, e.ID, e.Attribute, e.Reason)
	}
	return fmt.Sprintf("jsonapi: %s/%s: %s", e.Type, e.ID, e.Reason)
}

// Schema describes the attributes of one resource class.
//
// Fields maps attribute name to its expected kind; KindDate fields arrive as
// "YYYY-MM-DD" strings and are parsed during Normalize. Null is accepted for
// every declared field. Attributes not listed in Fields are kept as decoded
// unless Strict is set.
type Schema struct {
	Type   string
	Fields map[string]Kind
	Strict bool
}

// Normalize validates an incoming resource and returns a copy with declared
// date fields parsed in loc. The input is never modified.
func (s Schema) Normalize(r Resource, loc *time.Location) (Resource, error) {
	if s.Type != "" && r.Type != s.Type {
		return Resource{}, &SchemaError{Type: r.Type, ID: r.ID, Reason: fmt.Sprintf("want type %q", s.Type)}
	}
	if r.ID == "" {
		return Resource{}, &SchemaError{Type: r.Type, Reason: "missing id"}
	}
	for name, rel := range r.Relationships {
		if rel.Data != nil && (rel.Data.Type == "" || rel.Data.ID == "") {
			return Resource{}, &SchemaError{Type: r.Type, ID: r.ID, Reason: fmt.Sprintf("relationship %q: incomplete identifier", name)}
		}
	}
	out := r
	if len(r.Attributes) == 0 {
		return out, nil
	}
	out.Attributes = make(map[string]Value, len(r.Attributes))
	for name, v := range r.Attributes {
		nv, err := s.coerce(name, v, loc)
		if err != nil {
			return Resource{}, &SchemaError{Type: r.Type, ID: r.ID, Attribute: name, Reason: err.Error()}
		}
		out.Attributes[name] = nv
	}
	return out, nil
}

// Validate checks outgoing attributes against the declared kinds. Date fields
// may be given either as KindDate or as a well-formed date string.
func (s Schema) Validate(attrs map[string]Value) error {
	for name, v := range attrs {
		if _, err := s.coerce(name, v, time.UTC); err != nil {
			return &SchemaError{Type: s.Type, Attribute: name, Reason: err.Error()}
		}
	}
	return nil
}

func (s Schema) coerce(name string, v Value, loc *time.Location) (Value, error) {
	want, declared := s.Fields[name]
	if !declared {
		if s.Strict {
			return Value{}, errors.New("not declared")
		}
		return v, nil
	}
	if v.IsNull() || v.Kind() == want {
		return v, nil
	}
	if want == KindDate {
		if str, ok := v.Str(); ok {
			d, err := ParseDate(str, loc)
			if err != nil {
				return Value{}, err
			}
			return Date(d), nil
		}
	}
	return Value{}, fmt.Errorf("want %s, got %s", want, v.Kind())
}
