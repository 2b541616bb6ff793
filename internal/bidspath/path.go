// Package bidspath implements the path-like wrapper of spec.md §6/§9
// ("Path-like polymorphism"): a value that behaves like a filesystem path
// while carrying the entities and dataset root it was parsed with.
// Grounded on original_source/rsbids/bidspath.py's BidsPath (a
// pathlib.Path subclass that threads _entities/_dataset_root through
// every transformation) and original_source/rsbids/userpath.py.
package bidspath

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agentic-research/bidx/internal/entities"
	"github.com/agentic-research/bidx/internal/metadata"
	"github.com/agentic-research/bidx/internal/schema"
)

// ErrEmptyEntityValue is returned by New when an entity value is the
// empty string (spec.md §9 Open Question 3: rejected at construction
// rather than silently accepted).
var ErrEmptyEntityValue = errors.New("bidspath: empty entity value")

// Path is a filesystem path annotated with the entities and dataset root
// it was resolved against. Every transformation method returns a new
// Path carrying the same Entities/DatasetRoot, mirroring BidsPath's
// "subclass of Path that survives pathlib operations" design.
type Path struct {
	raw         string
	Entities    map[string]string
	DatasetRoot string
}

// New constructs a Path. entities may be nil (treated as empty).
func New(raw string, entities map[string]string, datasetRoot string) (Path, error) {
	for k, v := range entities {
		if v == "" {
			return Path{}, fmt.Errorf("%w: %s", ErrEmptyEntityValue, k)
		}
	}
	cp := make(map[string]string, len(entities))
	for k, v := range entities {
		cp[k] = v
	}
	return Path{raw: raw, Entities: cp, DatasetRoot: datasetRoot}, nil
}

func (p Path) with(raw string) Path {
	return Path{raw: raw, Entities: p.Entities, DatasetRoot: p.DatasetRoot}
}

// String returns the underlying path string.
func (p Path) String() string { return p.raw }

// Abs returns an absolute-path version of p.
func (p Path) Abs() (Path, error) {
	abs, err := filepath.Abs(p.raw)
	if err != nil {
		return Path{}, err
	}
	return p.with(abs), nil
}

// Resolve resolves symlinks in p, the way pathlib's resolve() does.
func (p Path) Resolve() (Path, error) {
	resolved, err := filepath.EvalSymlinks(p.raw)
	if err != nil {
		return Path{}, err
	}
	return p.with(resolved), nil
}

// Expanduser expands a leading "~" to the user's home directory.
func (p Path) Expanduser() (Path, error) {
	if !strings.HasPrefix(p.raw, "~") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return Path{}, err
	}
	return p.with(filepath.Join(home, strings.TrimPrefix(p.raw, "~"))), nil
}

// RelativeTo returns p expressed relative to other.
func (p Path) RelativeTo(other string) (Path, error) {
	rel, err := filepath.Rel(other, p.raw)
	if err != nil {
		return Path{}, err
	}
	return p.with(rel), nil
}

// Join appends path elements, the way Path.joinpath does.
func (p Path) Join(elem ...string) Path {
	parts := append([]string{p.raw}, elem...)
	return p.with(filepath.Join(parts...))
}

// Parent returns the immediate parent directory.
func (p Path) Parent() Path {
	return p.with(filepath.Dir(p.raw))
}

// Parents returns every ancestor directory, closest first, matching
// pathlib's Path.parents ordering.
func (p Path) Parents() []Path {
	var out []Path
	cur := filepath.Dir(p.raw)
	for {
		out = append(out, p.with(cur))
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}
	return out
}

// Name returns the final path component.
func (p Path) Name() string { return filepath.Base(p.raw) }

// Suffix returns the extension of the final component, including every
// trailing dot-segment (so "sub-01_T1w.nii.gz" yields ".nii.gz"),
// matching bidsparse's own extension splitting rule.
func (p Path) Suffix() string {
	base := filepath.Base(p.raw)
	i := strings.IndexByte(base, '.')
	if i < 0 {
		return ""
	}
	return base[i:]
}

// Stem returns the final component with Suffix() removed.
func (p Path) Stem() string {
	base := filepath.Base(p.raw)
	i := strings.IndexByte(base, '.')
	if i < 0 {
		return base
	}
	return base[:i]
}

// WithName returns a Path with the final component replaced.
func (p Path) WithName(name string) Path {
	return p.with(filepath.Join(filepath.Dir(p.raw), name))
}

// WithStem returns a Path with the stem replaced, keeping the suffix.
func (p Path) WithStem(stem string) Path {
	return p.WithName(stem + p.Suffix())
}

// WithSuffix returns a Path with the suffix replaced, keeping the stem.
func (p Path) WithSuffix(suffix string) Path {
	return p.WithName(p.Stem() + suffix)
}

// Iterdir lists the immediate children of p, which must be a directory.
func (p Path) Iterdir() ([]Path, error) {
	entries, err := os.ReadDir(p.raw)
	if err != nil {
		return nil, err
	}
	out := make([]Path, 0, len(entries))
	for _, e := range entries {
		out = append(out, p.with(filepath.Join(p.raw, e.Name())))
	}
	return out, nil
}

// Glob returns every descendant of p matching an unrooted glob pattern
// (no recursive "**", matching filepath.Glob's semantics).
func (p Path) Glob(pattern string) ([]Path, error) {
	matches, err := filepath.Glob(filepath.Join(p.raw, pattern))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	out := make([]Path, 0, len(matches))
	for _, m := range matches {
		out = append(out, p.with(m))
	}
	return out, nil
}

// Rglob is Glob, but recurses into every subdirectory first (pathlib's
// rglob, since filepath.Glob alone has no recursive wildcard).
func (p Path) Rglob(pattern string) ([]Path, error) {
	var out []Path
	err := filepath.WalkDir(p.raw, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		ok, err := filepath.Match(pattern, filepath.Base(path))
		if err != nil {
			return err
		}
		if ok {
			out = append(out, p.with(path))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].raw < out[j].raw })
	return out, nil
}

// ReadJSON reads and parses p as a JSON sidecar, using the same parser as
// the rest of the index (spec.md §4.6).
func (p Path) ReadJSON() (map[string]any, error) {
	raw, err := os.ReadFile(p.raw)
	if err != nil {
		return nil, err
	}
	return metadata.ParseSidecar(raw)
}

// Metadata resolves p's inheritance-merged sidecar metadata using its own
// entity tags and dataset root, without needing a Layout in scope
// (spec.md §6 "Path-like polymorphism" — metadata travels with the path).
func (p Path) Metadata(candidates []metadata.Candidate) map[string]any {
	return metadata.Resolve(filepath.Dir(p.raw), p.DatasetRoot, entitiesFromMap(p.Entities), candidates)
}

// entitiesFromMap builds a ParsedEntities from an unordered map; key
// order does not affect Resolve's subset/shares-a-key comparison.
func entitiesFromMap(m map[string]string) entities.ParsedEntities {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	e := entities.New()
	for _, k := range keys {
		e.Set(schema.EntityName(k), m[k])
	}
	return e
}
