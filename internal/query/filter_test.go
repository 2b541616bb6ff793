package query

import (
	"errors"
	"testing"

	"github.com/RoaringBitmap/roaring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/bidx/internal/schema"
)

type fakeSource struct {
	entities map[schema.EntityName]map[string]*roaring.Bitmap
	present  map[schema.EntityName]*roaring.Bitmap
}

func (f fakeSource) HasEntity(name schema.EntityName) bool {
	_, ok := f.entities[name]
	return ok
}

func (f fakeSource) Equal(name schema.EntityName, value string) *roaring.Bitmap {
	if byVal, ok := f.entities[name]; ok {
		if bm, ok := byVal[value]; ok {
			return bm.Clone()
		}
	}
	return roaring.New()
}

func (f fakeSource) Present(name schema.EntityName) *roaring.Bitmap {
	if bm, ok := f.present[name]; ok {
		return bm.Clone()
	}
	return roaring.New()
}

func bm(ids ...uint32) *roaring.Bitmap {
	b := roaring.New()
	b.AddMany(ids)
	return b
}

func newFixture() fakeSource {
	return fakeSource{
		entities: map[schema.EntityName]map[string]*roaring.Bitmap{
			schema.Subject: {"01": bm(0, 1), "02": bm(2, 3)},
		},
		present: map[schema.EntityName]*roaring.Bitmap{
			schema.Subject: bm(0, 1, 2, 3),
		},
	}
}

func TestApply_Equal(t *testing.T) {
	src := newFixture()
	universe := bm(0, 1, 2, 3)
	result, err := Apply(src, universe, universe.Clone(), schema.Subject, Eq("01"))
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1}, result.ToArray())
}

func TestApply_OneOf(t *testing.T) {
	src := newFixture()
	universe := bm(0, 1, 2, 3)
	result, err := Apply(src, universe, universe.Clone(), schema.Subject, In([]string{"01", "02"}))
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2, 3}, result.ToArray())
}

func TestApply_Absent(t *testing.T) {
	src := newFixture()
	universe := bm(0, 1, 2, 3, 4)
	result, err := Apply(src, universe, universe.Clone(), schema.Subject, None())
	require.NoError(t, err)
	assert.Equal(t, []uint32{4}, result.ToArray())
}

func TestApply_UnknownEntity(t *testing.T) {
	src := newFixture()
	universe := bm(0, 1, 2, 3)
	result, err := Apply(src, universe, universe.Clone(), "nonexistent", Any())
	require.Error(t, err)
	assert.True(t, result.IsEmpty())

	var ue *UnknownEntityError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, schema.EntityName("nonexistent"), ue.Entity)
	assert.True(t, errors.Is(err, ErrUnknownEntity))
}

func TestApply_Unconstrained_PassesThrough(t *testing.T) {
	src := newFixture()
	universe := bm(0, 1, 2, 3)
	current := bm(1, 2)
	result, err := Apply(src, universe, current, schema.Subject, Unfiltered())
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2}, result.ToArray())
}

func TestParseScope(t *testing.T) {
	assert.Equal(t, Scope{Kind: All}, ParseScope(""))
	assert.Equal(t, Scope{Kind: All}, ParseScope("all"))
	assert.Equal(t, Scope{Kind: Raw}, ParseScope("raw"))
	assert.Equal(t, Scope{Kind: Derivatives}, ParseScope("derivatives"))
	assert.Equal(t, Scope{Kind: Self}, ParseScope("self"))
	assert.Equal(t, Scope{Kind: Pipeline, Name: "fmriprep"}, ParseScope("fmriprep"))
}
