// Package index implements the per-entity inverted index and file vector
// described in spec.md §3-4.3: a bitmap of file-ids per (entity, value)
// pair, grounded on the teacher's roaring-bitmap-backed incidence tables
// (internal/graph/graph.go's fileToNodes, internal/lattice/context.go's
// FormalContext columns).
package index

import (
	"sort"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/bidx/internal/entities"
	"github.com/agentic-research/bidx/internal/schema"
)

// Classification tags how a file was categorized at index time.
type Classification int

const (
	Other Classification = iota
	RawData
	SidecarJSON
	DatasetDescription
)

// File is one indexed record (spec.md §3 IndexedFile).
type File struct {
	ID       uint32
	Path     string
	Entities entities.ParsedEntities
	Class    Classification
}

// Inverted is an EntityName -> value -> bitmap(file-id) index.
type Inverted struct {
	byEntity map[schema.EntityName]map[string]*roaring.Bitmap
	present  map[schema.EntityName]*roaring.Bitmap // ids for which the entity is present at all
}

// NewInverted returns an empty inverted index.
func NewInverted() *Inverted {
	return &Inverted{
		byEntity: make(map[schema.EntityName]map[string]*roaring.Bitmap),
		present:  make(map[schema.EntityName]*roaring.Bitmap),
	}
}

// Add records every (name, value) pair of f's entities against f.ID,
// maintaining spec.md §3's invariant: "For every file with a non-empty
// ParsedEntities, every (name, value) pair appears in the inverted
// index."
func (idx *Inverted) Add(f *File) {
	for _, name := range f.Entities.Keys() {
		value, _ := f.Entities.Get(name)
		byValue, ok := idx.byEntity[name]
		if !ok {
			byValue = make(map[string]*roaring.Bitmap)
			idx.byEntity[name] = byValue
		}
		bm, ok := byValue[value]
		if !ok {
			bm = roaring.New()
			byValue[value] = bm
		}
		bm.Add(f.ID)

		pres, ok := idx.present[name]
		if !ok {
			pres = roaring.New()
			idx.present[name] = pres
		}
		pres.Add(f.ID)
	}
}

// HasEntity reports whether name appears anywhere in this index.
func (idx *Inverted) HasEntity(name schema.EntityName) bool {
	_, ok := idx.byEntity[name]
	return ok
}

// Equal returns the bitmap of file-ids whose entity `name` equals value.
// Returns an empty bitmap (never nil) if no file matches.
func (idx *Inverted) Equal(name schema.EntityName, value string) *roaring.Bitmap {
	if byValue, ok := idx.byEntity[name]; ok {
		if bm, ok := byValue[value]; ok {
			return bm.Clone()
		}
	}
	return roaring.New()
}

// Present returns the bitmap of file-ids for which `name` has any value.
func (idx *Inverted) Present(name schema.EntityName) *roaring.Bitmap {
	if bm, ok := idx.present[name]; ok {
		return bm.Clone()
	}
	return roaring.New()
}

// Values returns the sorted, unique set of values recorded for name.
func (idx *Inverted) Values(name schema.EntityName) []string {
	byValue, ok := idx.byEntity[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(byValue))
	for v := range byValue {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// EntityNames returns every entity name recorded in this index, sorted by
// schema canonical order (unknown entities sort last, alphabetically
// among themselves).
func (idx *Inverted) EntityNames() []schema.EntityName {
	out := make([]schema.EntityName, 0, len(idx.byEntity))
	for name := range idx.byEntity {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool {
		oi, oj := schema.Order(out[i]), schema.Order(out[j])
		if oi != oj {
			return oi < oj
		}
		return out[i] < out[j]
	})
	return out
}
