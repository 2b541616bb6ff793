package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/bidx/internal/entities"
	"github.com/agentic-research/bidx/internal/schema"
)

func mkFile(id uint32, path string, kv map[schema.EntityName]string) *File {
	e := entities.New()
	for _, k := range []schema.EntityName{schema.Subject, schema.Session, "task", schema.Datatype, schema.Suffix, schema.Extension} {
		if v, ok := kv[k]; ok {
			e.Set(k, v)
		}
	}
	return &File{ID: id, Path: path, Entities: e}
}

func TestInverted_EqualAndPresent(t *testing.T) {
	idx := NewInverted()
	f0 := mkFile(0, "sub-01_T1w.nii.gz", map[schema.EntityName]string{schema.Subject: "01", schema.Suffix: "T1w"})
	f1 := mkFile(1, "sub-02_T1w.nii.gz", map[schema.EntityName]string{schema.Subject: "02", schema.Suffix: "T1w"})
	idx.Add(f0)
	idx.Add(f1)

	assert.True(t, idx.HasEntity(schema.Subject))
	assert.False(t, idx.HasEntity("nonexistent"))

	bm := idx.Equal(schema.Subject, "01")
	assert.Equal(t, []uint32{0}, bm.ToArray())

	present := idx.Present(schema.Suffix)
	assert.Equal(t, []uint32{0, 1}, present.ToArray())

	assert.Equal(t, []string{"01", "02"}, idx.Values(schema.Subject))
}

func TestInverted_EqualNeverNil(t *testing.T) {
	idx := NewInverted()
	bm := idx.Equal(schema.Subject, "missing")
	require.NotNil(t, bm)
	assert.True(t, bm.IsEmpty())
}

func TestInverted_EntityNamesCanonicalOrder(t *testing.T) {
	idx := NewInverted()
	f := mkFile(0, "sub-01_task-rest_bold.nii.gz", map[schema.EntityName]string{
		schema.Subject: "01", "task": "rest", schema.Suffix: "bold",
	})
	idx.Add(f)
	names := idx.EntityNames()
	// subject sorts before task in the canonical schema table.
	require.Len(t, names, 3)
	assert.Equal(t, schema.Subject, names[0])
}
