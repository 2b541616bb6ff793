// Package schema holds the static, process-wide table of recognized BIDS
// entities: their long and short spellings, filename position, and (for
// datatype) the closed enumeration of valid values.
package schema

// EntityName is a symbolic identifier drawn from the fixed schema below.
type EntityName string

// Structural entities, parsed specially rather than via the key-value
// basename grammar (spec.md §3).
const (
	Datatype  EntityName = "datatype"
	Suffix    EntityName = "suffix"
	Extension EntityName = "extension"
	Subject   EntityName = "subject"
	Session   EntityName = "session"
)

// Entity describes one row of the schema table.
type Entity struct {
	Long       EntityName
	Short      string
	Positional bool // appears as a directory segment rather than a basename key-value
	// pattern is a best-effort, experimental regex heuristic for this
	// entity's values. Surfaced only via Pattern(), never used internally.
	pattern string
}

// table is the canonical, ordered entity list. Order here is the
// canonical ordering used when comparing/emitting filename tokens.
var table = []Entity{
	{Long: Subject, Short: "sub", Positional: true, pattern: `[A-Za-z0-9]+`},
	{Long: Session, Short: "ses", Positional: true, pattern: `[A-Za-z0-9]+`},
	{Long: "task", Short: "task", pattern: `[A-Za-z0-9]+`},
	{Long: "acquisition", Short: "acq", pattern: `[A-Za-z0-9]+`},
	{Long: "ceagent", Short: "ce", pattern: `[A-Za-z0-9]+`},
	{Long: "tracer", Short: "trc", pattern: `[A-Za-z0-9]+`},
	{Long: "reconstruction", Short: "rec", pattern: `[A-Za-z0-9]+`},
	{Long: "direction", Short: "dir", pattern: `[A-Za-z0-9]+`},
	{Long: "run", Short: "run", pattern: `[0-9]+`},
	{Long: "modality", Short: "mod", pattern: `[A-Za-z0-9]+`},
	{Long: "echo", Short: "echo", pattern: `[0-9]+`},
	{Long: "flip", Short: "flip", pattern: `[0-9]+`},
	{Long: "inversion", Short: "inv", pattern: `[0-9]+`},
	{Long: "mtransfer", Short: "mt", pattern: `(on|off)`},
	{Long: "part", Short: "part", pattern: `(mag|phase|real|imag)`},
	{Long: "processing", Short: "proc", pattern: `[A-Za-z0-9]+`},
	{Long: "hemisphere", Short: "hemi", pattern: `(L|R)`},
	{Long: "space", Short: "space", pattern: `[A-Za-z0-9]+`},
	{Long: "split", Short: "split", pattern: `[0-9]+`},
	{Long: "recording", Short: "recording", pattern: `[A-Za-z0-9]+`},
	{Long: "chunk", Short: "chunk", pattern: `[0-9]+`},
	{Long: "atlas", Short: "atlas", pattern: `[A-Za-z0-9]+`},
	{Long: "resolution", Short: "res", pattern: `[A-Za-z0-9]+`},
	{Long: "density", Short: "den", pattern: `[A-Za-z0-9]+`},
	{Long: "label", Short: "label", pattern: `[A-Za-z0-9]+`},
	{Long: "description", Short: "desc", pattern: `[A-Za-z0-9]+`},
	{Long: Datatype, Short: "datatype", Positional: true},
	{Long: Suffix, Short: "suffix"},
	{Long: Extension, Short: "extension"},
}

// Datatypes is the closed set of recognized directory segments for the
// structural `datatype` entity (spec.md §3).
var Datatypes = map[string]bool{
	"anat": true, "beh": true, "dwi": true, "eeg": true, "fmap": true,
	"func": true, "ieeg": true, "meg": true, "motion": true, "micr": true,
	"nirs": true, "perf": true, "pet": true,
}

var (
	longToShort = make(map[EntityName]string, len(table))
	shortToLong = make(map[string]EntityName, len(table))
	byLong      = make(map[EntityName]Entity, len(table))
	order       = make(map[EntityName]int, len(table))
)

func init() {
	for i, e := range table {
		longToShort[e.Long] = e.Short
		shortToLong[e.Short] = e.Long
		byLong[e.Long] = e
		order[e.Long] = i
	}
}

// LongToShort is total: an unknown long name maps to itself.
func LongToShort(long EntityName) string {
	if s, ok := longToShort[long]; ok {
		return s
	}
	return string(long)
}

// ShortToLong is total: an unknown short tag maps to itself (as a long
// name) and is flagged user-defined by IsKnown returning false.
func ShortToLong(short string) EntityName {
	if l, ok := shortToLong[short]; ok {
		return l
	}
	return EntityName(short)
}

// IsKnown reports whether name appears in the static schema table.
func IsKnown(name EntityName) bool {
	_, ok := byLong[name]
	return ok
}

// Order returns the canonical table position of name, or len(table) for
// unknown (user-defined) names, so they sort after all known entities.
func Order(name EntityName) int {
	if i, ok := order[name]; ok {
		return i
	}
	return len(table)
}

// Pattern returns the experimental best-effort value regex for an entity,
// and whether one is defined. Callers must opt in explicitly — this is
// never consulted during parsing or filtering (spec.md §9 Open Questions).
func Pattern(name EntityName) (string, bool) {
	e, ok := byLong[name]
	if !ok || e.pattern == "" {
		return "", false
	}
	return e.pattern, true
}

// IsDatatype reports whether segment is a recognized datatype directory.
func IsDatatype(segment string) bool {
	return Datatypes[segment]
}
