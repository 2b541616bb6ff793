// Package metadata implements the BIDS sidecar-inheritance resolver of
// spec.md §4.6, grounded directly on
// original_source/rsbids/bidspath.py's `metadata` property and
// `_subset_paths` (the "sidecar's entities must be a subset of, and
// share at least one key with, the target's entities" rule, merged
// root-first so the closest sidecar wins).
package metadata

import (
	"sort"
	"strings"

	"github.com/agentic-research/bidx/internal/entities"
)

// Candidate is one sidecar JSON file eligible for consideration when
// resolving metadata for some target file.
type Candidate struct {
	Path     string
	Dir      string
	Entities entities.ParsedEntities // Resolve ignores its `extension` entry
	Content  map[string]any
}

// Resolve walks the ancestor chain from datasetRoot down to the
// directory containing targetPath (inclusive), retains sidecars whose
// entities are a subset of (and share a key with) targetEntities, and
// merges their content with closer-wins precedence (spec.md §4.6).
func Resolve(targetDir, datasetRoot string, targetEntities entities.ParsedEntities, candidates []Candidate) map[string]any {
	chain := ancestorChain(datasetRoot, targetDir)
	chainIndex := make(map[string]int, len(chain))
	for i, dir := range chain {
		chainIndex[dir] = i
	}
	target := targetEntities.WithoutExtension()

	var applicable []Candidate
	for _, c := range candidates {
		pos, ok := chainIndex[c.Dir]
		if !ok {
			continue
		}
		ce := c.Entities.WithoutExtension()
		if !ce.IsSubsetOf(target) || !ce.SharesKeyWith(target) {
			continue
		}
		applicable = append(applicable, c)
		_ = pos
	}

	sort.SliceStable(applicable, func(i, j int) bool {
		return chainIndex[applicable[i].Dir] < chainIndex[applicable[j].Dir]
	})

	result := make(map[string]any)
	for _, c := range applicable {
		for k, v := range c.Content {
			result[k] = v
		}
	}
	return result
}

// ancestorChain returns every directory from root down to leaf
// (inclusive of both), root first, closest last.
func ancestorChain(root, leaf string) []string {
	root = strings.TrimRight(root, "/")
	leaf = strings.TrimRight(leaf, "/")
	if leaf == root {
		return []string{root}
	}
	if !strings.HasPrefix(leaf, root+"/") {
		return []string{leaf}
	}
	rel := strings.TrimPrefix(leaf, root+"/")
	parts := strings.Split(rel, "/")
	chain := make([]string, 0, len(parts)+1)
	cur := root
	chain = append(chain, cur)
	for _, p := range parts {
		cur = cur + "/" + p
		chain = append(chain, cur)
	}
	return chain
}
