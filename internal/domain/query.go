package domain

import (
	"encoding/json"
	"maps"
	"time"
)

// Structured payload fields that carry a peer's network address. They are
// shown only to callers allowed to see server addresses.
const (
	FieldHostIP   = "hostip"
	FieldHostPort = "hostport"
)

// AddressFields lists the fields removed by WithoutAddress.
var AddressFields = []string{FieldHostIP, FieldHostPort}

// Payload is the cached result of a status query.
//
// It is either a single scalar value (a latency, a player count) or a
// structured mapping of named fields (a full MOTD record).
type Payload struct {
	value  any
	fields map[string]any
}

// Scalar wraps a single value.
func Scalar(v any) Payload {
	return Payload{value: v}
}

// Structured wraps a mapping of named fields. The map is copied.
func Structured(fields map[string]any) Payload {
	cp := make(map[string]any, len(fields))
	maps.Copy(cp, fields)
	return Payload{fields: cp}
}

// IsStructured reports whether p was built with Structured.
func (p Payload) IsStructured() bool {
	return p.fields != nil
}

// Value returns the scalar value, or nil for structured payloads.
func (p Payload) Value() any {
	return p.value
}

// Fields returns a copy of the structured fields, or nil for scalars.
func (p Payload) Fields() map[string]any {
	if p.fields == nil {
		return nil
	}
	cp := make(map[string]any, len(p.fields))
	maps.Copy(cp, p.fields)
	return cp
}

// Field returns a single structured field.
func (p Payload) Field(name string) (any, bool) {
	v, ok := p.fields[name]
	return v, ok
}

// Without returns a copy of p lacking the named structured fields. Scalars are
// returned unchanged.
func (p Payload) Without(names ...string) Payload {
	if !p.IsStructured() {
		return p
	}
	fields := p.Fields()
	for _, name := range names {
		delete(fields, name)
	}
	return Payload{fields: fields}
}

// WithoutAddress strips the AddressFields from e's payload.
func (e QueryEntry) WithoutAddress() QueryEntry {
	e.Payload = e.Payload.Without(AddressFields...)
	return e
}

func (p Payload) MarshalJSON() ([]byte, error) {
	if p.IsStructured() {
		return json.Marshal(p.fields)
	}
	return json.Marshal(map[string]any{"value": p.value})
}

// QueryEntry is one cached status result for a (server id, tag) pair.
type QueryEntry struct {
	Payload    Payload   `json:"payload"`
	CapturedAt time.Time `json:"captured_at"`
}
