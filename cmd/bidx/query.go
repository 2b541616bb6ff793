package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-research/bidx/internal/query"
	"github.com/agentic-research/bidx/internal/schema"
)

var (
	queryFlags   sharedFlags
	queryScope   []string
	queryFilters []string // "entity=value" or "entity=" for presence
)

var queryCmd = &cobra.Command{
	Use:   "query ROOT [ROOT...]",
	Short: "List files matching a scope and a set of entity filters",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		queryFlags.roots = args
		l, err := loadLayout(&queryFlags)
		if err != nil {
			return classify(err)
		}

		scopes := make([]query.Scope, 0, len(queryScope))
		for _, s := range queryScope {
			scopes = append(scopes, query.ParseScope(s))
		}

		filters, err := parseFilterFlags(queryFilters)
		if err != nil {
			return classify(err)
		}

		files, err := l.Get(scopes, filters)
		if err != nil {
			return classify(err)
		}

		paths := make([]string, len(files))
		for i, f := range files {
			paths[i] = f.Path
		}
		out, _ := json.MarshalIndent(paths, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	f := queryCmd.Flags()
	f.StringSliceVar(&queryFlags.derivatives, "derivatives", nil, `"auto" to discover derivatives/*, or explicit paths`)
	f.BoolVar(&queryFlags.validate, "validate", false, "flag files that don't conform to layout rules")
	f.BoolVar(&queryFlags.indexMetadata, "index-metadata", false, "pre-parse and merge all JSON sidecars")
	f.StringVar(&queryFlags.cacheDir, "cache-dir", "", "reuse the index at this directory if present")
	f.BoolVar(&queryFlags.resetCache, "reset-cache", false, "discard any existing cache before indexing")
	f.StringSliceVar(&queryScope, "scope", nil, "all|raw|derivatives|self|<pipeline name>, repeatable")
	f.StringArrayVar(&queryFilters, "filter", nil, `entity=value, entity=a,b (any of), entity= (present), entity=! (absent); repeatable`)
}

// parseFilterFlags turns "--filter entity=value" flags into the query
// package's tagged FilterValue, following spec.md §4.5's ANY/NONE/OPTIONAL
// shorthand: a bare "entity=" means present (ANY), "entity=!" means absent
// (NONE), and a comma-separated value list means OneOf.
func parseFilterFlags(raw []string) (map[schema.EntityName]query.FilterValue, error) {
	out := make(map[schema.EntityName]query.FilterValue, len(raw))
	for _, r := range raw {
		name, value, err := splitFilter(r)
		if err != nil {
			return nil, err
		}
		switch {
		case value == "!":
			out[name] = query.None()
		case value == "":
			out[name] = query.Any()
		default:
			vals := splitCSV(value)
			if len(vals) == 1 {
				out[name] = query.Eq(vals[0])
			} else {
				out[name] = query.In(vals)
			}
		}
	}
	return out, nil
}

func splitFilter(r string) (schema.EntityName, string, error) {
	for i := 0; i < len(r); i++ {
		if r[i] == '=' {
			return schema.EntityName(r[:i]), r[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("malformed --filter %q: expected entity=value", r)
}
