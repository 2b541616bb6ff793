// Package entities defines ParsedEntities, the ordered string-valued
// entity map produced by the path parser and consumed everywhere else
// (spec.md §3).
package entities

import "github.com/agentic-research/bidx/internal/schema"

// ParsedEntities is an ordered mapping EntityName -> string value. Key
// order reflects position in the source path: directory keys first, then
// basename keys left-to-right, then suffix, then extension.
type ParsedEntities struct {
	keys   []schema.EntityName
	values map[schema.EntityName]string
}

// New returns an empty ParsedEntities.
func New() ParsedEntities {
	return ParsedEntities{}
}

// Set appends name=value if name is not already present, otherwise
// overwrites its value in place (position unchanged).
func (p *ParsedEntities) Set(name schema.EntityName, value string) {
	if p.values == nil {
		p.values = make(map[schema.EntityName]string)
	}
	if _, ok := p.values[name]; !ok {
		p.keys = append(p.keys, name)
	}
	p.values[name] = value
}

// Get returns the value for name and whether it was present.
func (p ParsedEntities) Get(name schema.EntityName) (string, bool) {
	v, ok := p.values[name]
	return v, ok
}

// Has reports whether name is present.
func (p ParsedEntities) Has(name schema.EntityName) bool {
	_, ok := p.values[name]
	return ok
}

// Keys returns entity names in discovery order.
func (p ParsedEntities) Keys() []schema.EntityName {
	out := make([]schema.EntityName, len(p.keys))
	copy(out, p.keys)
	return out
}

// Len returns the number of entities.
func (p ParsedEntities) Len() int {
	return len(p.keys)
}

// Empty reports whether no entities were recorded.
func (p ParsedEntities) Empty() bool {
	return len(p.keys) == 0
}

// Map returns a plain map copy, for callers that don't need ordering
// (e.g. the legacy facade, JSON serialization).
func (p ParsedEntities) Map() map[string]string {
	out := make(map[string]string, len(p.keys))
	for _, k := range p.keys {
		out[string(k)] = p.values[k]
	}
	return out
}

// Equal reports whether p and other have the same key/value pairs,
// ignoring order (used by cache round-trip tests, spec.md §8 property 7).
func (p ParsedEntities) Equal(other ParsedEntities) bool {
	if p.Len() != other.Len() {
		return false
	}
	for _, k := range p.keys {
		v1 := p.values[k]
		v2, ok := other.values[k]
		if !ok || v1 != v2 {
			return false
		}
	}
	return true
}

// WithoutExtension returns a copy of p with the `extension` entity
// removed, used by the metadata inheritance rule (spec.md §4.6 step 3).
func (p ParsedEntities) WithoutExtension() ParsedEntities {
	out := New()
	for _, k := range p.keys {
		if k == schema.Extension {
			continue
		}
		out.Set(k, p.values[k])
	}
	return out
}

// IsSubsetOf reports whether every (name, value) pair in p also appears
// in other — the BIDS sidecar-applicability rule.
func (p ParsedEntities) IsSubsetOf(other ParsedEntities) bool {
	for _, k := range p.keys {
		v, ok := other.values[k]
		if !ok || v != p.values[k] {
			return false
		}
	}
	return true
}

// SharesKeyWith reports whether p and other have at least one entity
// name in common (with the same value), the second half of the BIDS
// inheritance rule.
func (p ParsedEntities) SharesKeyWith(other ParsedEntities) bool {
	for _, k := range p.keys {
		if v, ok := other.values[k]; ok && v == p.values[k] {
			return true
		}
	}
	return false
}
