// Package indexer implements the tree walker of spec.md §4.3: it scans
// one or more dataset roots, applies the path parser, and builds the
// Dataset/Layout aggregates. Grounded on internal/ingest/engine.go's
// Engine.Ingest walk (filepath.Walk, hidden-directory and build-artifact
// skipping) and its parallel worker-pool commentary, replacing the
// teacher's hand-rolled channel/WaitGroup plumbing with
// golang.org/x/sync/errgroup (spec.md §4.3/§5).
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/agentic-research/bidx/internal/bidsparse"
	"github.com/agentic-research/bidx/internal/index"
	"github.com/agentic-research/bidx/internal/layout"
	"github.com/agentic-research/bidx/internal/metadata"
	"github.com/agentic-research/bidx/internal/schema"
)

// Error sentinels from spec.md §7.
var (
	ErrNotADataset        = errors.New("not a dataset: root is not a directory")
	ErrMissingDescription = errors.New("dataset_description.json is required under validate=true")
	ErrCancelled          = errors.New("indexing cancelled")
)

// DerivativesMode selects how the `derivatives` option is interpreted
// (spec.md §4.3).
type DerivativesMode int

const (
	DerivativesNone DerivativesMode = iota
	DerivativesAuto
	DerivativesExplicit
	DerivativesNamed
)

// Derivatives configures derivative-dataset discovery.
type Derivatives struct {
	Mode  DerivativesMode
	Paths []string          // for DerivativesExplicit
	Named map[string]string // pipeline name -> root, for DerivativesNamed
}

// Options configures one Walk call (spec.md §4.3 table).
type Options struct {
	Validate      bool
	Derivatives   Derivatives
	IndexMetadata bool
	IsDerivative  bool // index roots[0] itself as a derivative dataset

	// Cancel is a cooperative cancellation token (spec.md §5). When it
	// fires, Walk discards the partial index and returns ErrCancelled.
	Cancel context.Context
}

// Walk indexes roots into a new Layout (spec.md §4.3/§4.4 construct).
func Walk(roots []string, opts Options) (*layout.Layout, error) {
	ctx := opts.Cancel
	if ctx == nil {
		ctx = context.Background()
	}

	var primary *layout.Dataset
	if len(roots) > 0 {
		ds, err := walkOneDataset(ctx, roots[0], opts.IsDerivative, opts)
		if err != nil {
			return nil, err
		}
		primary = ds
	}

	derivRoots, named, err := resolveDerivativeRoots(roots, opts.Derivatives)
	if err != nil {
		return nil, err
	}

	var derivs []*layout.Dataset
	for _, r := range derivRoots {
		ds, err := walkOneDataset(ctx, r, true, opts)
		if err != nil {
			return nil, err
		}
		if name, ok := named[r]; ok {
			ds.PipelineName = name
		}
		derivs = append(derivs, ds)
	}

	return layout.New(primary, derivs, roots), nil
}

// resolveDerivativeRoots expands the Derivatives option into a concrete
// list of derivative dataset roots, plus any name overrides.
func resolveDerivativeRoots(roots []string, d Derivatives) ([]string, map[string]string, error) {
	named := make(map[string]string)
	switch d.Mode {
	case DerivativesNone:
		return nil, named, nil
	case DerivativesExplicit:
		return d.Paths, named, nil
	case DerivativesNamed:
		var out []string
		for name, path := range d.Named {
			out = append(out, path)
			named[path] = name
		}
		sort.Strings(out)
		return out, named, nil
	case DerivativesAuto:
		if len(roots) == 0 {
			return nil, named, nil
		}
		base := filepath.Join(roots[0], "derivatives")
		entries, err := os.ReadDir(base)
		if err != nil {
			return nil, named, nil // no derivatives/ subtree is not an error
		}
		var out []string
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			candidate := filepath.Join(base, e.Name())
			if _, err := os.Stat(filepath.Join(candidate, "dataset_description.json")); err == nil {
				out = append(out, candidate)
			}
		}
		sort.Strings(out)
		return out, named, nil
	default:
		return nil, named, nil
	}
}

// walkOneDataset indexes a single dataset root (spec.md §4.3 steps 1-4).
func walkOneDataset(ctx context.Context, root string, isDerivative bool, opts Options) (*layout.Dataset, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotADataset, root)
	}

	ds := layout.NewDataset(root)
	ds.IsDerivative = isDerivative

	descPath := filepath.Join(root, "dataset_description.json")
	if content, ok := metadata.ReadSidecar(descPath); ok {
		ds.Description = content
		ds.PipelineName = pipelineName(content)
	} else if opts.Validate && isDerivative {
		return nil, fmt.Errorf("%w: %s", ErrMissingDescription, root)
	}

	paths, err := collectPaths(root)
	if err != nil {
		return nil, err
	}

	parsed, err := parseAll(ctx, paths)
	if err != nil {
		return nil, err
	}

	for i, path := range paths {
		r := parsed[i]
		class := classify(root, path, r)
		f := &index.File{ID: uint32(i), Path: path, Entities: r.Entities, Class: class}
		ds.AddFile(f)
		if opts.Validate && isValid(class, r) {
			ds.Valid.Add(f.ID)
		}
	}

	if opts.IndexMetadata {
		ds.MarkMetadataIndexed()
		for _, f := range ds.Files() {
			if f.Class != index.SidecarJSON {
				continue
			}
			if content, ok := metadata.ReadSidecar(f.Path); ok {
				ds.SetMetadata(f.ID, content)
			} else {
				ds.Diagnostics = append(ds.Diagnostics, "unparseable sidecar: "+f.Path)
				ds.SetMetadata(f.ID, map[string]any{})
			}
		}
	}

	return ds, nil
}

// pipelineName extracts a derivative dataset's pipeline name from its
// description, preferring Name then GeneratedBy[0].Name (spec.md §6).
func pipelineName(desc map[string]any) string {
	if name, ok := desc["Name"].(string); ok && name != "" {
		return name
	}
	if gb, ok := desc["GeneratedBy"].([]any); ok && len(gb) > 0 {
		if first, ok := gb[0].(map[string]any); ok {
			if name, ok := first["Name"].(string); ok {
				return name
			}
		}
	}
	return ""
}

// collectPaths recursively enumerates files under root, skipping every
// hidden file or directory below root and every directory named
// derivatives below root (spec.md §4.3 step 2), mirroring internal/ingest/engine.go's hidden-dir and build-artifact
// skip logic.
func collectPaths(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			log.Printf("indexer: skipping unreadable %s: %v", p, err)
			return nil // unreadable directory: logged and skipped, not fatal (spec.md §4.3)
		}
		if d.IsDir() {
			base := d.Name()
			if p != root && strings.HasPrefix(base, ".") {
				return filepath.SkipDir
			}
			if p != root && base == "derivatives" {
				return filepath.SkipDir
			}
			return nil
		}
		base := filepath.Base(p)
		if strings.HasPrefix(base, ".") {
			return nil
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// parseAll runs the pure parser over every path using a bounded worker
// pool (spec.md §4.3 "file parsing is embarrassingly parallel"); results
// are written into a pre-sized slice indexed by position so the final
// file-id ordering is path-sorted regardless of worker count (spec.md
// §4.3 "merged deterministically...by sorted-path order").
func parseAll(ctx context.Context, paths []string) ([]bidsparse.Result, error) {
	results := make([]bidsparse.Result, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, runtime.GOMAXPROCS(0)))

	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return ErrCancelled
			default:
			}
			results[i] = bidsparse.Parse(p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// classify tags a file's role (spec.md §3 IndexedFile classification).
func classify(root, path string, r bidsparse.Result) index.Classification {
	if path == filepath.Join(root, "dataset_description.json") {
		return index.DatasetDescription
	}
	ext, _ := r.Entities.Get(schema.Extension)
	if ext == ".json" {
		return index.SidecarJSON
	}
	if !r.Entities.Empty() {
		return index.RawData
	}
	return index.Other
}

// isValid applies a conservative validate=true heuristic: the parse must
// have yielded entities, and the file must either be the dataset
// description or carry a recognized datatype (spec.md §4.3 "whose path
// conforms to the layout rules for its datatype").
func isValid(class index.Classification, r bidsparse.Result) bool {
	if class == index.DatasetDescription {
		return true
	}
	if r.Entities.Empty() {
		return false
	}
	_, hasDatatype := r.Entities.Get(schema.Datatype)
	return hasDatatype
}
