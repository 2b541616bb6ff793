// Command bidx indexes BIDS neuroimaging datasets and serves queries
// against them, on the command line or over MCP. Grounded on
// cmd/mount.go's Cobra wiring (rootCmd, RunE, explicit exit codes) and
// cmd/build.go's single-purpose subcommand shape.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/bidx/internal/cache"
	"github.com/agentic-research/bidx/internal/query"
)

// exitError carries the process exit code spec.md §6 assigns to a
// failure class: 2 for an invalid/unknown-entity query, 3 for index/cache
// I/O failure, 1 for anything else (including a metadata-only key
// queried without index_metadata, which is a query-construction mistake
// distinct from an unknown-entity query).
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func classify(err error) *exitError {
	if err == nil {
		return nil
	}
	var ue *query.UnknownEntityError
	if errors.As(err, &ue) {
		return &exitError{code: 2, err: err}
	}
	var cc *cache.CorruptError
	if errors.As(err, &cc) {
		return &exitError{code: 3, err: err}
	}
	if errors.Is(err, os.ErrNotExist) || isIOFailure(err) {
		return &exitError{code: 3, err: err}
	}
	return &exitError{code: 1, err: err}
}

var rootCmd = &cobra.Command{
	Use:           "bidx",
	Short:         "Index and query BIDS neuroimaging datasets",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(entitiesCmd)
	rootCmd.AddCommand(metadataCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(mcpServeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var ee *exitError
		if !errors.As(err, &ee) {
			ee = classify(err)
		}
		fmt.Fprintln(os.Stderr, ee.err)
		os.Exit(ee.code)
	}
}
