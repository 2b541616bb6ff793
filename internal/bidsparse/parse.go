// Package bidsparse implements the pure filename-entity parser described
// in spec.md §4.2. Parse never fails: malformed or unrecognized paths
// simply yield empty ParsedEntities.
package bidsparse

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/agentic-research/bidx/internal/entities"
	"github.com/agentic-research/bidx/internal/schema"
)

var tokenRe = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// Result is the outcome of parsing one path.
type Result struct {
	Entities         entities.ParsedEntities
	DatasetRootGuess string
}

// Parse maps an absolute or relative path to its entity tags, following
// spec.md §4.2 steps 1-6.
func Parse(path string) Result {
	clean := filepath.ToSlash(filepath.Clean(path))
	segments := strings.Split(clean, "/")
	if len(segments) == 0 {
		return Result{}
	}
	basename := segments[len(segments)-1]
	dirSegments := segments[:len(segments)-1]

	e := entities.New()

	datatypeIdx, datatype := innermostDatatype(dirSegments)
	sub, ses := subjectSession(dirSegments, datatypeIdx)
	if sub != "" {
		e.Set(schema.Subject, sub)
	}
	if ses != "" {
		e.Set(schema.Session, ses)
	}
	if datatype != "" {
		e.Set(schema.Datatype, datatype)
	}

	stem, extension := splitBasename(basename)
	if stem == "" && extension == "" {
		return Result{Entities: e, DatasetRootGuess: rootGuess(clean, dirSegments)}
	}
	if extension == "" {
		// A basename without an extension is outside the filename grammar:
		// the path is unrecognized and yields no entities.
		return Result{DatasetRootGuess: rootGuess(clean, dirSegments)}
	}

	tokens := strings.Split(stem, "_")
	var suffix string
	bodyTokens := tokens
	if len(tokens) > 0 {
		last := tokens[len(tokens)-1]
		if !strings.Contains(last, "-") {
			suffix = last
			bodyTokens = tokens[:len(tokens)-1]
		}
	}

	for _, tok := range bodyTokens {
		if tok == "" {
			// Empty run of underscores: malformed, whole parse is void
			// per spec.md §4.2 step 3.
			return Result{DatasetRootGuess: rootGuess(clean, dirSegments)}
		}
		idx := strings.Index(tok, "-")
		if idx <= 0 || idx == len(tok)-1 {
			return Result{DatasetRootGuess: rootGuess(clean, dirSegments)}
		}
		key, value := tok[:idx], tok[idx+1:]
		if !tokenRe.MatchString(value) {
			return Result{DatasetRootGuess: rootGuess(clean, dirSegments)}
		}
		e.Set(schema.ShortToLong(key), value)
	}

	if suffix != "" {
		e.Set(schema.Suffix, suffix)
	}
	if extension != "" {
		e.Set(schema.Extension, extension)
	}

	return Result{Entities: e, DatasetRootGuess: rootGuess(clean, dirSegments)}
}

// splitBasename splits on the first '.' so that "foo.nii.gz" yields
// ("foo", ".nii.gz") — the extension includes every trailing dot.
func splitBasename(basename string) (stem, extension string) {
	i := strings.IndexByte(basename, '.')
	if i < 0 {
		return basename, ""
	}
	return basename[:i], basename[i:]
}

// innermostDatatype finds the datatype directory segment closest to the
// file (spec.md §4.2 step 1: "only the innermost such segment counts").
func innermostDatatype(dirSegments []string) (idx int, datatype string) {
	for i := len(dirSegments) - 1; i >= 0; i-- {
		if schema.IsDatatype(dirSegments[i]) {
			return i, dirSegments[i]
		}
	}
	return -1, ""
}

var subSesRe = regexp.MustCompile(`^(sub|ses)-([A-Za-z0-9]+)$`)

// subjectSession extracts sub-<token>/ses-<token> directory segments
// above the datatype directory (or anywhere above the file, if there is
// no datatype directory).
func subjectSession(dirSegments []string, datatypeIdx int) (sub, ses string) {
	limit := len(dirSegments)
	if datatypeIdx >= 0 {
		limit = datatypeIdx
	}
	for i := 0; i < limit; i++ {
		m := subSesRe.FindStringSubmatch(dirSegments[i])
		if m == nil {
			continue
		}
		switch m[1] {
		case "sub":
			sub = m[2]
		case "ses":
			ses = m[2]
		}
	}
	return sub, ses
}

// rootGuess returns the highest ancestor hinted by the path: the parent
// of the sub-* directory, since Parse has no filesystem access to check
// for dataset_description.json. The Indexer overrides this with the
// true, walked root (spec.md §4.2 step 6).
func rootGuess(clean string, dirSegments []string) string {
	for i, seg := range dirSegments {
		if strings.HasPrefix(seg, "sub-") && subSesRe.MatchString(seg) {
			return strings.Join(dirSegments[:i], "/")
		}
	}
	if len(dirSegments) == 0 {
		return ""
	}
	return strings.Join(dirSegments, "/")
}
