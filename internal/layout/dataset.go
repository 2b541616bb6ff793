// Package layout implements the root aggregate of spec.md §3-4.4: Dataset
// (one indexed tree) and Layout (the user-facing view over a primary
// dataset plus zero or more derivatives). Grounded on
// internal/graph/graph.go's MemoryStore ("own the authoritative
// collection, expose read-only derived views") and on
// original_source/rsbids/pybids/layout/layout.py's BIDSLayout operation
// list.
package layout

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/RoaringBitmap/roaring"

	"github.com/agentic-research/bidx/internal/index"
	"github.com/agentic-research/bidx/internal/metadata"
	"github.com/agentic-research/bidx/internal/schema"
)

// Dataset is one indexed tree (spec.md §3).
type Dataset struct {
	Root         string
	Description  map[string]any
	PipelineName string // "" for a raw (non-derivative) dataset
	IsDerivative bool

	files       []*index.File // position == file ID within this dataset
	Inverted    *index.Inverted
	Valid       *roaring.Bitmap // valid set; empty when validate=false
	Diagnostics []string        // non-fatal I/O warnings collected during the walk

	metadataIndexed bool
	metadata        map[uint32]map[string]any // file ID -> parsed sidecar content
}

// NewDataset returns an empty dataset rooted at root.
func NewDataset(root string) *Dataset {
	return &Dataset{
		Root:     root,
		Inverted: index.NewInverted(),
		Valid:    roaring.New(),
		metadata: make(map[uint32]map[string]any),
	}
}

// AddFile appends f to the dataset's file vector and updates the
// inverted index. Callers must assign f.ID == len(files) before calling
// (spec.md §3 "a stable integer id used as the primary key").
func (d *Dataset) AddFile(f *index.File) {
	d.files = append(d.files, f)
	if !f.Entities.Empty() {
		d.Inverted.Add(f)
	}
}

// Files returns the dataset's full file vector.
func (d *Dataset) Files() []*index.File {
	return d.files
}

// File returns the file with the given ID.
func (d *Dataset) File(id uint32) (*index.File, bool) {
	if int(id) >= len(d.files) {
		return nil, false
	}
	return d.files[id], true
}

// Universe returns a bitmap of every file ID in the dataset.
func (d *Dataset) Universe() *roaring.Bitmap {
	bm := roaring.New()
	for i := range d.files {
		bm.Add(uint32(i))
	}
	return bm
}

// SetMetadata records the parsed sidecar content for file id (called by
// the indexer when index_metadata is enabled, spec.md §4.3 step 4).
func (d *Dataset) SetMetadata(id uint32, content map[string]any) {
	d.metadata[id] = content
	d.metadataIndexed = true
}

// MetadataIndexed reports whether index_metadata has materialized
// sidecar content for this dataset.
func (d *Dataset) MetadataIndexed() bool {
	return d.metadataIndexed
}

// MetadataFor returns the pre-materialized sidecar content for a file
// id, if any.
func (d *Dataset) MetadataFor(id uint32) (map[string]any, bool) {
	m, ok := d.metadata[id]
	return m, ok
}

// MarkMetadataIndexed flips the indexed flag without adding content
// (used when a dataset has zero sidecars but index_metadata still ran).
func (d *Dataset) MarkMetadataIndexed() {
	d.metadataIndexed = true
}

// PipelineKey returns the dataset's scope-matching name: its pipeline
// name for derivatives, or "" for the raw dataset.
func (d *Dataset) PipelineKey() string {
	return d.PipelineName
}

// SortedPaths returns file IDs from ids, ordered by lexicographic path
// (spec.md §5 "observable iteration order is the lexicographic path
// order").
func (d *Dataset) SortedPaths(ids *roaring.Bitmap) []uint32 {
	out := ids.ToArray()
	sort.Slice(out, func(i, j int) bool {
		return d.files[out[i]].Path < d.files[out[j]].Path
	})
	return out
}

// Repr returns a short human-readable summary (spec.md §4.4 "Repr").
func (d *Dataset) Repr() string {
	name := d.PipelineName
	if name == "" {
		name = "raw"
	}
	return fmt.Sprintf("Dataset(root=%s, pipeline=%s, files=%d)", d.Root, name, len(d.files))
}

// entityNamesKnown reports whether name is recorded anywhere in this
// dataset's inverted index.
func (d *Dataset) entityNamesKnown(name schema.EntityName) bool {
	return d.Inverted.HasEntity(name)
}

// sidecarCandidates returns every JSON-sidecar file in the dataset as a
// metadata.Candidate, pulling pre-materialized content when
// index_metadata ran and falling back to a lazy disk read otherwise
// (spec.md §4.6 "The walk uses the directory listing at resolution time
// only if sidecar contents were not pre-materialized").
func (d *Dataset) sidecarCandidates() []metadata.Candidate {
	out := make([]metadata.Candidate, 0)
	for _, f := range d.files {
		if f.Class != index.SidecarJSON {
			continue
		}
		var content map[string]any
		if m, ok := d.MetadataFor(f.ID); ok {
			content = m
		} else {
			content, _ = metadata.ReadSidecar(f.Path)
		}
		out = append(out, metadata.Candidate{
			Path:     f.Path,
			Dir:      filepath.Dir(f.Path),
			Entities: f.Entities,
			Content:  content,
		})
	}
	return out
}

// ResolveMetadata resolves the inheritance-merged metadata for file f,
// which must belong to this dataset (spec.md §4.6).
func (d *Dataset) ResolveMetadata(f *index.File) map[string]any {
	return metadata.Resolve(filepath.Dir(f.Path), d.Root, f.Entities, d.sidecarCandidates())
}
