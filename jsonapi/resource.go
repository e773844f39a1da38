// Package jsonapi holds the resource envelope exchanged with the dashboard
// backend, the tagged attribute Value, and the per-class Schema that validates
// payloads at the ingestion boundary.
package jsonapi

// Identifier points at a resource of another (or the same) class.
// It is a reference only; resolving it needs a separate lookup.
type Identifier struct {
	Type string `json:"type" msgpack:"type"`
	ID   string `json:"id" msgpack:"id"`
}

// Relationship is a to-one relationship object. Data is nil for an explicit
// null link.
type Relationship struct {
	Data *Identifier `json:"data" msgpack:"data"`
}

// Resource is a JSON:API resource object.
//
// Resources held by a cache are shared between snapshots and must be treated
// as immutable: build a new Resource instead of editing the maps in place.
type Resource struct {
	Type          string                  `json:"type" msgpack:"type"`
	ID            string                  `json:"id" msgpack:"id"`
	Attributes    map[string]Value        `json:"attributes,omitempty" msgpack:"attributes,omitempty"`
	Relationships map[string]Relationship `json:"relationships,omitempty" msgpack:"relationships,omitempty"`
}

// Ref returns the identifier of r.
func (r Resource) Ref() Identifier { return Identifier{Type: r.Type, ID: r.ID} }

// Attr returns the named attribute; missing attributes report ok=false.
func (r Resource) Attr(name string) (Value, bool) {
	v, ok := r.Attributes[name]
	return v, ok
}

// Related returns the target of a to-one relationship.
// Missing and null relationships both report ok=false.
func (r Resource) Related(name string) (Identifier, bool) {
	rel, ok := r.Relationships[name]
	if !ok || rel.Data == nil || rel.Data.ID == "" {
		return Identifier{}, false
	}
	return *rel.Data, true
}

// Document is a single-resource top-level document. Data is nil when the
// server answered with `"data": null`.
type Document struct {
	Data *Resource `json:"data" msgpack:"data"`
}

// CollectionDocument is a top-level document carrying a list of resources.
type CollectionDocument struct {
	Data []Resource `json:"data" msgpack:"data"`
}

// Links builds a relationships map out of name -> target id pairs, all of
// type typ. Empty ids are skipped and nil is returned when nothing is left,
// so an absent link never turns into a null placeholder on the wire.
func Links(typ string, ids map[string]string) map[string]Relationship {
	var out map[string]Relationship
	for name, id := range ids {
		if id == "" {
			continue
		}
		if out == nil {
			out = make(map[string]Relationship, len(ids))
		}
		out[name] = Relationship{Data: &Identifier{Type: typ, ID: id}}
	}
	return out
}

// Relate converts name -> identifier pairs into relationship objects with the
// same pruning rules as Links.
func Relate(targets map[string]Identifier) map[string]Relationship {
	var out map[string]Relationship
	for name, id := range targets {
		if id.ID == "" {
			continue
		}
		if out == nil {
			out = make(map[string]Relationship, len(targets))
		}
		target := id
		out[name] = Relationship{Data: &target}
	}
	return out
}
