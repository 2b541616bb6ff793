package metadata

import (
	"os"

	"github.com/ohler55/ojg/oj"
)

// ParseSidecar parses a JSON sidecar body with ojg/oj into a plain Go map
// (the body's key order is not kept), grounded on internal/ingest/json_walker.go's use of the ojg family for
// JSON handling instead of encoding/json.
func ParseSidecar(raw []byte) (map[string]any, error) {
	v, err := oj.Parse(raw)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}, nil
	}
	return m, nil
}

// ReadSidecar reads and parses a sidecar JSON file from disk. A read or
// parse failure yields an empty body rather than an error, matching
// spec.md §4.3's "An unparseable JSON sidecar is recorded with an empty
// metadata body and flagged; it does not abort indexing."
func ReadSidecar(path string) (map[string]any, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return map[string]any{}, false
	}
	m, err := ParseSidecar(raw)
	if err != nil {
		return map[string]any{}, false
	}
	return m, true
}
