package bidsparse

import (
	"testing"

	"github.com/agentic-research/bidx/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_S1(t *testing.T) {
	r := Parse("/data/ds/sub-01/anat/sub-01_T1w.nii.gz")
	require.False(t, r.Entities.Empty())

	sub, ok := r.Entities.Get(schema.Subject)
	require.True(t, ok)
	assert.Equal(t, "01", sub)

	dt, ok := r.Entities.Get(schema.Datatype)
	require.True(t, ok)
	assert.Equal(t, "anat", dt)

	suf, ok := r.Entities.Get(schema.Suffix)
	require.True(t, ok)
	assert.Equal(t, "T1w", suf)

	ext, ok := r.Entities.Get(schema.Extension)
	require.True(t, ok)
	assert.Equal(t, ".nii.gz", ext)
}

func TestParse_S3_SessionAndRun(t *testing.T) {
	r := Parse("/data/ds/sub-003/ses-1/anat/sub-003_ses-1_T1w.nii.gz")
	sub, _ := r.Entities.Get(schema.Subject)
	ses, _ := r.Entities.Get(schema.Session)
	assert.Equal(t, "003", sub)
	assert.Equal(t, "1", ses)
}

func TestParse_OrderIsDirectoryThenBasenameThenSuffixThenExtension(t *testing.T) {
	r := Parse("/data/ds/sub-01/ses-1/func/sub-01_ses-1_task-rest_bold.json")
	keys := r.Entities.Keys()
	require.Len(t, keys, 6)
	assert.Equal(t, schema.Subject, keys[0])
	assert.Equal(t, schema.Session, keys[1])
	assert.Equal(t, schema.Datatype, keys[2])
	assert.Equal(t, schema.EntityName("task"), keys[3])
	assert.Equal(t, schema.Suffix, keys[4])
	assert.Equal(t, schema.Extension, keys[5])
}

func TestParse_MalformedTokenYieldsEmptyEntities(t *testing.T) {
	r := Parse("/data/ds/sub-01/anat/sub-01_bad token_T1w.nii.gz")
	assert.True(t, r.Entities.Empty())
}

func TestParse_NoSuffixWhenLastTokenHasDash(t *testing.T) {
	r := Parse("/data/ds/sub-01/anat/sub-01_acq-highres.nii.gz")
	_, ok := r.Entities.Get(schema.Suffix)
	assert.False(t, ok)
	acq, ok := r.Entities.Get("acquisition")
	require.True(t, ok)
	assert.Equal(t, "highres", acq)
}

func TestParse_InnermostDatatypeWins(t *testing.T) {
	r := Parse("/data/ds/derivatives/x/func/sub-01/anat/sub-01_T1w.nii.gz")
	dt, ok := r.Entities.Get(schema.Datatype)
	require.True(t, ok)
	assert.Equal(t, "anat", dt)
}

func TestParse_UnrecognizedPathYieldsEmptyEntitiesNoError(t *testing.T) {
	r := Parse("/data/ds/README")
	assert.True(t, r.Entities.Empty())
}

func TestParse_DatasetDescription(t *testing.T) {
	r := Parse("/data/ds/dataset_description.json")
	assert.True(t, r.Entities.Empty())
}

func TestParse_DoubleExtension(t *testing.T) {
	r := Parse("/data/ds/sub-01/dwi/sub-01_dwi.bvec.gz")
	ext, ok := r.Entities.Get(schema.Extension)
	require.True(t, ok)
	assert.Equal(t, ".bvec.gz", ext)
}
