package layout

import (
	"fmt"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/bidx/internal/index"
	"github.com/agentic-research/bidx/internal/query"
	"github.com/agentic-research/bidx/internal/schema"
)

// Layout is the user-facing aggregate of spec.md §3-4.4.
type Layout struct {
	primary     *Dataset   // nil if constructed derivative-only
	derivatives []*Dataset // ordered; New does not check pipeline names for uniqueness

	roots           []string // provenance: ordered roots used to construct this layout
	metadataIndexed bool

	view map[*Dataset]*roaring.Bitmap // composed view per dataset
}

// New builds a Layout over primary (may be nil) and derivatives, with
// the composed view defaulting to every file in every dataset.
func New(primary *Dataset, derivatives []*Dataset, roots []string) *Layout {
	l := &Layout{primary: primary, derivatives: derivatives, roots: roots}
	l.view = make(map[*Dataset]*roaring.Bitmap)
	for _, d := range l.allDatasets() {
		l.view[d] = d.Universe()
		if d.MetadataIndexed() {
			l.metadataIndexed = true
		}
	}
	return l
}

func (l *Layout) allDatasets() []*Dataset {
	out := make([]*Dataset, 0, 1+len(l.derivatives))
	if l.primary != nil {
		out = append(out, l.primary)
	}
	out = append(out, l.derivatives...)
	return out
}

// Primary returns the primary dataset, or nil if this Layout is
// derivative-only.
func (l *Layout) Primary() *Dataset { return l.primary }

// Derivatives returns the ordered list of derivative datasets.
func (l *Layout) Derivatives() []*Dataset { return l.derivatives }

// Roots returns the ordered list of dataset roots used to construct this
// Layout.
func (l *Layout) Roots() []string { return l.roots }

// MetadataIndexed reports whether index_metadata has run for at least
// one dataset in this Layout.
func (l *Layout) MetadataIndexed() bool { return l.metadataIndexed }

// Description returns the primary dataset's parsed description, or an
// empty map.
func (l *Layout) Description() map[string]any {
	if l.primary == nil || l.primary.Description == nil {
		return map[string]any{}
	}
	return l.primary.Description
}

// datasetsInScope resolves a (possibly multi-token) scope to the set of
// datasets it selects (spec.md §4.5).
func (l *Layout) datasetsInScope(scopes []query.Scope) []*Dataset {
	if len(scopes) == 0 {
		return l.allDatasets()
	}
	seen := make(map[*Dataset]bool)
	var out []*Dataset
	add := func(d *Dataset) {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	for _, s := range scopes {
		switch s.Kind {
		case query.All:
			for _, d := range l.allDatasets() {
				add(d)
			}
		case query.Raw:
			if l.primary != nil {
				add(l.primary)
			}
		case query.Derivatives:
			for _, d := range l.derivatives {
				add(d)
			}
		case query.Self:
			if l.primary != nil {
				add(l.primary)
			} else {
				for _, d := range l.derivatives {
					add(d)
				}
			}
		case query.Pipeline:
			for _, d := range l.derivatives {
				if d.PipelineKey() == s.Name {
					add(d)
				}
			}
		}
	}
	return out
}

// Filter narrows the composed view by scope and entity filters,
// returning a new Layout. The source Layout is unchanged (spec.md §4.5).
// An entity is unknown only if no dataset in scope has it in its inverted
// index (§4.5, §7, §8.3's scope-union semantics); a single in-scope
// dataset lacking the entity just yields no matches from that dataset,
// not an error. When none of them have it, the filter fails with
// *query.UnknownEntityError, unless metadata hasn't been indexed for some
// in-scope dataset, in which case the name might still resolve to a
// metadata-only key once indexed, and the filter fails with the more
// specific *query.MetadataNotIndexedError instead (spec.md §4.5 edge
// case, §7).
func (l *Layout) Filter(scopes []query.Scope, filters map[schema.EntityName]query.FilterValue) (*Layout, error) {
	out := &Layout{primary: l.primary, derivatives: l.derivatives, roots: l.roots, metadataIndexed: l.metadataIndexed}
	out.view = make(map[*Dataset]*roaring.Bitmap)

	scoped := l.datasetsInScope(scopes)
	inScope := make(map[*Dataset]bool, len(scoped))
	for _, d := range scoped {
		inScope[d] = true
	}

	var firstErr error
	knownInScope := make(map[schema.EntityName]bool, len(filters))
	for name, fv := range filters {
		if fv.Kind == query.Unconstrained {
			continue
		}
		known, metadataPending := false, false
		for _, d := range scoped {
			if d.Inverted.HasEntity(name) {
				known = true
				break
			}
			if !d.MetadataIndexed() {
				metadataPending = true
			}
		}
		knownInScope[name] = known
		if !known && firstErr == nil {
			if metadataPending {
				firstErr = &query.MetadataNotIndexedError{Entity: name}
			} else {
				firstErr = &query.UnknownEntityError{Entity: name}
			}
		}
	}

	for _, d := range l.allDatasets() {
		if !inScope[d] {
			out.view[d] = roaring.New()
			continue
		}
		current := l.view[d].Clone()
		universe := d.Universe()
		for name, fv := range filters {
			if fv.Kind == query.Unconstrained {
				continue
			}
			if !knownInScope[name] || !d.Inverted.HasEntity(name) {
				current = roaring.New()
				continue
			}
			next, err := query.Apply(d.Inverted, universe, current, name, fv)
			if err != nil && firstErr == nil {
				firstErr = err
			}
			current = next
		}
		out.view[d] = current
	}
	return out, firstErr
}

// Get is shorthand for Filter(...).Materialize().
func (l *Layout) Get(scopes []query.Scope, filters map[schema.EntityName]query.FilterValue) ([]VisibleFile, error) {
	narrowed, err := l.Filter(scopes, filters)
	if err != nil {
		return narrowed.Materialize(), err
	}
	return narrowed.Materialize(), nil
}

// VisibleFile pairs an indexed file with the Dataset it belongs to, so
// callers can resolve metadata or report dataset_root without a second
// lookup (spec.md §4.4 "iterate() yields each visible file...carrying
// its ParsedEntities and its dataset root").
type VisibleFile struct {
	*index.File
	Dataset *Dataset
}

// Metadata resolves this file's inheritance-merged sidecar metadata
// (spec.md §4.6).
func (v VisibleFile) Metadata() map[string]any {
	return v.Dataset.ResolveMetadata(v.File)
}

// Materialize returns every visible file across the composed view, in
// lexicographic path order (spec.md §5).
func (l *Layout) Materialize() []VisibleFile {
	var out []VisibleFile
	for _, d := range l.allDatasets() {
		bm, ok := l.view[d]
		if !ok {
			continue
		}
		for _, id := range d.SortedPaths(bm) {
			f, _ := d.File(id)
			out = append(out, VisibleFile{File: f, Dataset: d})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Iterate is an alias for Materialize, matching spec.md §4.4's naming.
func (l *Layout) Iterate() []VisibleFile { return l.Materialize() }

// Entities returns EntityName -> sorted unique value list, computed from
// the current composed view (spec.md §4.4).
func (l *Layout) Entities() map[string][]string {
	result := make(map[string][]string)
	for _, d := range l.allDatasets() {
		bm, ok := l.view[d]
		if !ok || bm.IsEmpty() {
			continue
		}
		for _, name := range d.Inverted.EntityNames() {
			for _, v := range d.Inverted.Values(name) {
				if !d.Inverted.Equal(name, v).Intersects(bm) {
					continue
				}
				result[string(name)] = appendUnique(result[string(name)], v)
			}
		}
	}
	for k := range result {
		sort.Strings(result[k])
	}
	return result
}

// Metadata returns EntityName -> sorted unique value list for keys that
// appear only in sidecar JSON, never in any filename (spec.md §4.4).
func (l *Layout) Metadata() map[string][]string {
	result := make(map[string][]string)
	filenameKnown := make(map[string]bool)
	for _, d := range l.allDatasets() {
		for _, name := range d.Inverted.EntityNames() {
			filenameKnown[string(name)] = true
		}
	}
	for _, d := range l.allDatasets() {
		bm, ok := l.view[d]
		if !ok || bm.IsEmpty() {
			continue
		}
		it := bm.Iterator()
		for it.HasNext() {
			id := it.Next()
			content, ok := d.MetadataFor(id)
			if !ok {
				continue
			}
			for k, v := range content {
				if filenameKnown[k] {
					continue
				}
				s, ok := v.(string)
				if !ok {
					s = fmt.Sprint(v)
				}
				result[k] = appendUnique(result[k], s)
			}
		}
	}
	for k := range result {
		sort.Strings(result[k])
	}
	return result
}

// KnownEntity reports whether name appears in any dataset's inverted
// index anywhere in this Layout, regardless of the current scope (used by
// the legacy façade's get_<entity> lookup; Filter's unknown-entity check
// looks only at the datasets in scope).
func (l *Layout) KnownEntity(name schema.EntityName) bool {
	for _, d := range l.allDatasets() {
		if d.Inverted.HasEntity(name) {
			return true
		}
	}
	return false
}

// AddDerivatives returns a new Layout whose derivative list is extended
// with newDatasets; the receiver is unchanged (spec.md §4.4).
func (l *Layout) AddDerivatives(newDatasets ...*Dataset) *Layout {
	derivs := make([]*Dataset, 0, len(l.derivatives)+len(newDatasets))
	derivs = append(derivs, l.derivatives...)
	derivs = append(derivs, newDatasets...)
	roots := make([]string, len(l.roots))
	copy(roots, l.roots)
	for _, d := range newDatasets {
		roots = append(roots, d.Root)
	}
	return New(l.primary, derivs, roots)
}

// Repr returns a short human-readable summary: root, file count, entity
// histogram (spec.md §4.4).
func (l *Layout) Repr() string {
	root := ""
	if l.primary != nil {
		root = l.primary.Root
	}
	n := len(l.Materialize())

	ents := l.Entities()
	names := make([]string, 0, len(ents))
	for name := range ents {
		names = append(names, name)
	}
	sort.Strings(names)
	hist := make([]string, len(names))
	for i, name := range names {
		hist[i] = fmt.Sprintf("%s=%d", name, len(ents[name]))
	}

	return fmt.Sprintf("Layout(root=%s, files=%d, derivatives=%d, entities={%s})",
		root, n, len(l.derivatives), strings.Join(hist, ", "))
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
