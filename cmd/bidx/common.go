package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/agentic-research/bidx/internal/cache"
	"github.com/agentic-research/bidx/internal/indexer"
	"github.com/agentic-research/bidx/internal/layout"
)

// isIOFailure reports whether err stems from filesystem or database access
// rather than from query or program logic (spec.md §6 exit code 3).
func isIOFailure(err error) bool {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return true
	}
	return errors.Is(err, sql.ErrConnDone) || errors.Is(err, indexer.ErrNotADataset) ||
		errors.Is(err, indexer.ErrMissingDescription)
}

// sharedFlags holds the index-construction options common to every
// subcommand that needs a Layout.
type sharedFlags struct {
	roots         []string
	derivatives   []string
	validate      bool
	indexMetadata bool
	cacheDir      string
	resetCache    bool
}

// loadLayout builds or reloads a Layout per spec.md §4.3/§4.7: a cache
// directory is reused unless resetCache is set, otherwise the tree is
// walked fresh and the result is persisted back to the cache.
func loadLayout(f *sharedFlags) (*layout.Layout, error) {
	if f.cacheDir != "" {
		if f.resetCache {
			if err := cache.Reset(f.cacheDir); err != nil {
				return nil, fmt.Errorf("reset cache: %w", err)
			}
		} else if cache.Exists(f.cacheDir) {
			l, err := cache.Load(f.cacheDir)
			if err != nil {
				return nil, fmt.Errorf("load cache: %w", err)
			}
			return l, nil
		}
	}

	opts := indexer.Options{
		Validate:      f.validate,
		IndexMetadata: f.indexMetadata,
	}
	switch {
	case len(f.derivatives) == 0:
		opts.Derivatives = indexer.Derivatives{Mode: indexer.DerivativesNone}
	case len(f.derivatives) == 1 && f.derivatives[0] == "auto":
		opts.Derivatives = indexer.Derivatives{Mode: indexer.DerivativesAuto}
	default:
		opts.Derivatives = indexer.Derivatives{Mode: indexer.DerivativesExplicit, Paths: f.derivatives}
	}

	l, err := indexer.Walk(f.roots, opts)
	if err != nil {
		return nil, err
	}

	if f.cacheDir != "" {
		if err := cache.Save(l, f.cacheDir); err != nil {
			log.Printf("bidx: cache save to %s failed: %v", f.cacheDir, err)
		}
	}
	return l, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
