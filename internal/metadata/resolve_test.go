package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentic-research/bidx/internal/entities"
	"github.com/agentic-research/bidx/internal/schema"
)

func ents(pairs ...string) entities.ParsedEntities {
	e := entities.New()
	for i := 0; i+1 < len(pairs); i += 2 {
		e.Set(schema.EntityName(pairs[i]), pairs[i+1])
	}
	return e
}

func TestResolve_CloserSidecarWins(t *testing.T) {
	target := ents("subject", "01", "task", "rest", "suffix", "bold", "extension", ".nii.gz")
	candidates := []Candidate{
		{
			Dir:      "/ds",
			Entities: ents("task", "rest", "suffix", "bold"),
			Content:  map[string]any{"RepetitionTime": 2.0, "TaskName": "rest"},
		},
		{
			Dir:      "/ds/sub-01/func",
			Entities: ents("subject", "01", "task", "rest", "suffix", "bold"),
			Content:  map[string]any{"RepetitionTime": 2.5},
		},
	}
	result := Resolve("/ds/sub-01/func", "/ds", target, candidates)
	assert.Equal(t, 2.5, result["RepetitionTime"])
	assert.Equal(t, "rest", result["TaskName"])
}

func TestResolve_ExcludesSidecarsOutsideAncestorChain(t *testing.T) {
	target := ents("subject", "01", "suffix", "bold", "extension", ".nii.gz")
	candidates := []Candidate{
		{
			Dir:      "/ds/sub-02/func",
			Entities: ents("subject", "02", "suffix", "bold"),
			Content:  map[string]any{"RepetitionTime": 9.9},
		},
	}
	result := Resolve("/ds/sub-01/func", "/ds", target, candidates)
	assert.Empty(t, result)
}

func TestResolve_RequiresSharedKey(t *testing.T) {
	target := ents("subject", "01", "suffix", "bold", "extension", ".nii.gz")
	candidates := []Candidate{
		{
			Dir:      "/ds",
			Entities: ents("task", "rest"), // no key in common with target
			Content:  map[string]any{"TaskName": "rest"},
		},
	}
	result := Resolve("/ds/sub-01/func", "/ds", target, candidates)
	assert.Empty(t, result)
}

func TestResolve_SidecarEntitiesMustBeSubset(t *testing.T) {
	target := ents("subject", "01", "suffix", "bold", "extension", ".nii.gz")
	candidates := []Candidate{
		{
			Dir:      "/ds",
			Entities: ents("subject", "02"), // conflicting value, not a subset
			Content:  map[string]any{"RepetitionTime": 1.0},
		},
	}
	result := Resolve("/ds/sub-01/func", "/ds", target, candidates)
	assert.Empty(t, result)
}
