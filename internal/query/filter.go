// Package query implements the filter-value and scope tagged variants of
// spec.md §4.5 / §9, plus the bitmap composition algorithm that applies
// one entity filter to a dataset's inverted index. Grounded on
// internal/lattice/context.go's bitmap set algebra (union/intersect over
// *roaring.Bitmap columns) and on original_source/rsbids's Query enum /
// _normalize_filters.
package query

import (
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/bidx/internal/schema"
)

// ErrUnknownEntity is returned (and its empty-result behavior applied)
// when a filter names an entity absent from every dataset in scope.
var ErrUnknownEntity = errors.New("unknown entity")

// UnknownEntityError carries the offending entity name for programmatic
// inspection (spec.md §7).
type UnknownEntityError struct {
	Entity schema.EntityName
}

func (e *UnknownEntityError) Error() string {
	return fmt.Sprintf("unknown entity: %s", e.Entity)
}

func (e *UnknownEntityError) Unwrap() error { return ErrUnknownEntity }

// ErrMetadataNotIndexed is returned when a filter names an entity that is
// not a filename entity anywhere in scope, and metadata hasn't been
// indexed for at least one in-scope dataset, so it cannot be ruled out
// as a metadata-only key (spec.md §4.5, §7).
var ErrMetadataNotIndexed = errors.New("metadata not indexed")

// MetadataNotIndexedError carries the offending entity name.
type MetadataNotIndexedError struct {
	Entity schema.EntityName
}

func (e *MetadataNotIndexedError) Error() string {
	return fmt.Sprintf("filter on %q requires index_metadata: metadata not indexed", e.Entity)
}

func (e *MetadataNotIndexedError) Unwrap() error { return ErrMetadataNotIndexed }

// FilterKind tags the variant of a FilterValue (spec.md §9 "Model the
// filter value as a tagged variant").
type FilterKind int

const (
	Unconstrained FilterKind = iota // no constraint (OPTIONAL / absent)
	Equal                           // must equal exactly one value
	OneOf                           // must equal one of a set of values
	Present                         // must be present with any value (ANY / REQUIRED)
	Absent                          // must not be present (NONE)
)

// FilterValue is the tagged variant applied to one entity.
type FilterValue struct {
	Kind   FilterKind
	Values []string // populated for Equal (len 1) and OneOf (len >= 1)
}

// Eq constrains the entity to equal exactly s.
func Eq(s string) FilterValue { return FilterValue{Kind: Equal, Values: []string{s}} }

// In constrains the entity to equal one of vals.
func In(vals []string) FilterValue { return FilterValue{Kind: OneOf, Values: vals} }

// Any constrains the entity to be present with any value.
func Any() FilterValue { return FilterValue{Kind: Present} }

// None constrains the entity to be absent.
func None() FilterValue { return FilterValue{Kind: Absent} }

// Unfiltered applies no constraint.
func Unfiltered() FilterValue { return FilterValue{Kind: Unconstrained} }

// EntitySource is the minimal read surface Apply needs from a dataset's
// inverted index (internal/index.Inverted satisfies this).
type EntitySource interface {
	HasEntity(name schema.EntityName) bool
	Equal(name schema.EntityName, value string) *roaring.Bitmap
	Present(name schema.EntityName) *roaring.Bitmap
}

// Apply narrows `current` (a dataset-scoped bitmap) by one entity filter,
// following spec.md §4.5's algorithm. universe is every file-id in the
// dataset, needed to compute the Absent complement.
func Apply(src EntitySource, universe, current *roaring.Bitmap, name schema.EntityName, fv FilterValue) (*roaring.Bitmap, error) {
	if fv.Kind == Unconstrained {
		return current, nil
	}
	if !src.HasEntity(name) {
		return roaring.New(), &UnknownEntityError{Entity: name}
	}

	var matched *roaring.Bitmap
	switch fv.Kind {
	case Equal:
		matched = src.Equal(name, fv.Values[0])
	case OneOf:
		matched = roaring.New()
		for _, v := range fv.Values {
			matched.Or(src.Equal(name, v))
		}
	case Present:
		matched = src.Present(name)
	case Absent:
		matched = roaring.AndNot(universe, src.Present(name))
	default:
		matched = roaring.New()
	}

	return roaring.And(current, matched), nil
}

// ScopeKind tags the variant of a Scope.
type ScopeKind int

const (
	All ScopeKind = iota
	Raw
	Derivatives
	Self
	Pipeline
)

// Scope names one element of a (possibly list-valued) scope parameter.
type Scope struct {
	Kind ScopeKind
	Name string // populated for Pipeline
}

// ParseScope resolves a scope token (spec.md §4.5) to a Scope value.
func ParseScope(token string) Scope {
	switch token {
	case "", "all":
		return Scope{Kind: All}
	case "raw":
		return Scope{Kind: Raw}
	case "derivatives":
		return Scope{Kind: Derivatives}
	case "self":
		return Scope{Kind: Self}
	default:
		return Scope{Kind: Pipeline, Name: token}
	}
}
