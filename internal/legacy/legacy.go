// Package legacy implements the compatibility façade of spec.md §6:
// callers written against the pre-rewrite API (REQUIRED/OPTIONAL/ANY/NONE
// query values, get_<entity>() dynamic accessors) get a thin explicit
// adapter over Layout instead of the dynamic-dispatch Python original.
// Grounded on original_source/rsbids/pybids/layout/layout.py's BIDSLayout
// facade (_normalize_filters, __getattr__'s get_<entity> dispatch,
// get_file/get_metadata/get_dataset_description, and the still-stubbed
// get_nearest/get_bvec/get_bval/get_fieldmap/get_tr/build_path/
// copy_files/write_to_file/to_df compatibility holes).
package legacy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agentic-research/bidx/internal/layout"
	"github.com/agentic-research/bidx/internal/query"
	"github.com/agentic-research/bidx/internal/schema"
)

// ErrCompatibility marks a method that pybids never fully ported to
// rsbids and that this façade likewise declines to implement (spec.md §6).
var ErrCompatibility = errors.New("legacy: not implemented in this compatibility layer")

// QueryValue is the legacy four-state filter value
// (REQUIRED/ANY/OPTIONAL/NONE), translated to query.FilterValue by
// Translate (spec.md §4.0 "_normalize_filters").
type QueryValue int

const (
	Required QueryValue = iota
	Any
	Optional
	None
)

// Facade wraps a Layout with the legacy calling convention.
type Facade struct {
	L *layout.Layout
}

// New wraps l in a Facade.
func New(l *layout.Layout) *Facade { return &Facade{L: l} }

// Translate maps a legacy filter value, or a raw string/bool, to a
// query.FilterValue (spec.md §4.0's _normalize_filters remap).
func Translate(v any) query.FilterValue {
	switch val := v.(type) {
	case QueryValue:
		switch val {
		case Required, Any:
			return query.Any()
		case None:
			return query.None()
		default:
			return query.Unfiltered()
		}
	case bool:
		if val {
			return query.Any()
		}
		return query.None()
	case string:
		return query.Eq(val)
	case []string:
		return query.In(val)
	case nil:
		return query.Unfiltered()
	default:
		return query.Unfiltered()
	}
}

func translateFilters(raw map[string]any) map[schema.EntityName]query.FilterValue {
	out := make(map[schema.EntityName]query.FilterValue, len(raw))
	for k, v := range raw {
		out[schema.EntityName(k)] = Translate(v)
	}
	return out
}

func parseScopes(scope []string) []query.Scope {
	out := make([]query.Scope, 0, len(scope))
	for _, s := range scope {
		out = append(out, query.ParseScope(s))
	}
	return out
}

// Get mirrors BIDSLayout.get(scope=..., **filters): narrow then
// materialize (spec.md §6).
func (f *Facade) Get(scope []string, filters map[string]any) ([]layout.VisibleFile, error) {
	return f.L.Get(parseScopes(scope), translateFilters(filters))
}

// GetFile mirrors BIDSLayout.get_file: resolve a single file by its
// basename or full path within scope.
func (f *Facade) GetFile(target string, scope []string) (*layout.VisibleFile, error) {
	files, err := f.L.Get(parseScopes(scope), nil)
	if err != nil {
		return nil, err
	}
	for i := range files {
		if files[i].Path == target || files[i].Path[strings.LastIndex(files[i].Path, "/")+1:] == target {
			return &files[i], nil
		}
	}
	return nil, fmt.Errorf("legacy: no file matching %q in scope", target)
}

// GetMetadata mirrors BIDSLayout.get_metadata: a file's entities merged
// with its resolved sidecar metadata, metadata values taking precedence.
func (f *Facade) GetMetadata(target string, scope []string) (map[string]any, error) {
	vf, err := f.GetFile(target, scope)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, vf.Entities.Len())
	for k, v := range vf.Entities.Map() {
		out[k] = v
	}
	for k, v := range vf.Metadata() {
		out[k] = v
	}
	return out, nil
}

// GetDatasetDescription mirrors BIDSLayout.get_dataset_description.
func (f *Facade) GetDatasetDescription() map[string]any {
	return f.L.Description()
}

// GetByEntity implements the get_<entity>() dynamic accessor as an
// explicit call, with the same naive pluralization pybids' __getattr__
// attempted (drop a trailing "s", "es", or "ies" -> "y") before giving up
// (spec.md §6 "get_<entity> dynamic dispatch replaced by an explicit
// lookup table"; Go has no attribute-interception to imitate the
// original's __getattr__ directly).
func (f *Facade) GetByEntity(name string, scope []string) ([]string, error) {
	candidates := []string{name, strings.TrimSuffix(name, "s")}
	if strings.HasSuffix(name, "es") {
		candidates = append(candidates, strings.TrimSuffix(name, "es"))
	}
	if strings.HasSuffix(name, "ies") {
		candidates = append(candidates, strings.TrimSuffix(name, "ies")+"y")
	}

	for _, c := range candidates {
		if f.L.KnownEntity(schema.EntityName(c)) {
			narrowed, err := f.L.Filter(parseScopes(scope), nil)
			if err != nil {
				return nil, err
			}
			return narrowed.Entities()[c], nil
		}
	}
	return nil, fmt.Errorf("legacy: get_%s can't be called because %q isn't a recognized entity name", name, name)
}

// The following methods exist only so callers written against the
// original API compile; none were ever fully ported (spec.md §6).

func (f *Facade) GetNearest(string, ...any) (string, error)  { return "", ErrCompatibility }
func (f *Facade) GetBvec(string) (string, error)             { return "", ErrCompatibility }
func (f *Facade) GetBval(string) (string, error)             { return "", ErrCompatibility }
func (f *Facade) GetFieldmap(string, bool) (any, error)      { return nil, ErrCompatibility }
func (f *Facade) GetTR(bool, map[string]any) (float64, error) { return 0, ErrCompatibility }
func (f *Facade) BuildPath(map[string]any) (string, error)   { return "", ErrCompatibility }
func (f *Facade) CopyFiles(map[string]any) error             { return ErrCompatibility }
func (f *Facade) WriteToFile(map[string]any) error           { return ErrCompatibility }
func (f *Facade) ToDataFrame(map[string]any) (any, error)    { return nil, ErrCompatibility }
