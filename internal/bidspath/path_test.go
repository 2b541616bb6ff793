package bidspath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RejectsEmptyEntityValue(t *testing.T) {
	_, err := New("/ds/sub-01/anat/sub-01_T1w.nii.gz", map[string]string{"subject": ""}, "/ds")
	require.ErrorIs(t, err, ErrEmptyEntityValue)
}

func TestSuffixStem_DoubleExtension(t *testing.T) {
	p, err := New("/ds/sub-01/anat/sub-01_T1w.nii.gz", map[string]string{"subject": "01"}, "/ds")
	require.NoError(t, err)
	assert.Equal(t, ".nii.gz", p.Suffix())
	assert.Equal(t, "sub-01_T1w", p.Stem())
}

func TestWithSuffix_PreservesEntities(t *testing.T) {
	p, err := New("/ds/sub-01/anat/sub-01_T1w.nii.gz", map[string]string{"subject": "01"}, "/ds")
	require.NoError(t, err)
	j := p.WithSuffix(".json")
	assert.Equal(t, "/ds/sub-01/anat/sub-01_T1w.json", j.String())
	assert.Equal(t, p.Entities, j.Entities)
	assert.Equal(t, p.DatasetRoot, j.DatasetRoot)
}

func TestParents_ClosestFirst(t *testing.T) {
	p, err := New("/ds/sub-01/anat/sub-01_T1w.nii.gz", nil, "/ds")
	require.NoError(t, err)
	parents := p.Parents()
	require.NotEmpty(t, parents)
	assert.Equal(t, "/ds/sub-01/anat", parents[0].String())
}

func TestJoin_PreservesEntities(t *testing.T) {
	p, err := New("/ds", map[string]string{"subject": "01"}, "/ds")
	require.NoError(t, err)
	joined := p.Join("anat", "sub-01_T1w.nii.gz")
	assert.Equal(t, "/ds/anat/sub-01_T1w.nii.gz", joined.String())
	assert.Equal(t, p.Entities, joined.Entities)
}
