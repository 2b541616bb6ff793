package indexer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/bidx/internal/query"
	"github.com/agentic-research/bidx/internal/schema"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func makeDataset(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "dataset_description.json"), `{"Name":"demo","BIDSVersion":"1.8.0"}`)
	writeFile(t, filepath.Join(root, "sub-01", "anat", "sub-01_T1w.nii.gz"), "x")
	writeFile(t, filepath.Join(root, "sub-01", "anat", "sub-01_T1w.json"), `{"RepetitionTime":2.5}`)
	writeFile(t, filepath.Join(root, "sub-01", "ses-1", "func", "sub-01_ses-1_task-rest_run-1_bold.nii.gz"), "x")
	writeFile(t, filepath.Join(root, "task-rest_bold.json"), `{"RepetitionTime":2.0,"TaskName":"rest"}`)
	writeFile(t, filepath.Join(root, ".hidden", "ignored.txt"), "x")
	return root
}

func TestWalk_BasicDataset(t *testing.T) {
	root := makeDataset(t)
	l, err := Walk([]string{root}, Options{})
	require.NoError(t, err)
	require.NotNil(t, l.Primary())

	files := l.Materialize()
	for _, f := range files {
		assert.NotContains(t, f.Path, ".hidden")
	}
	assert.Equal(t, "demo", l.Description()["Name"])
}

func TestWalk_IndexMetadataPopulatesSidecars(t *testing.T) {
	root := makeDataset(t)
	l, err := Walk([]string{root}, Options{IndexMetadata: true})
	require.NoError(t, err)
	assert.True(t, l.MetadataIndexed())

	var found bool
	for _, f := range l.Materialize() {
		if filepath.Base(f.Path) == "sub-01_T1w.nii.gz" {
			found = true
			md := f.Metadata()
			assert.Equal(t, 2.5, md["RepetitionTime"])
		}
	}
	assert.True(t, found)
}

func TestWalk_DerivativesAuto(t *testing.T) {
	root := makeDataset(t)
	derivRoot := filepath.Join(root, "derivatives", "fmriprep")
	writeFile(t, filepath.Join(derivRoot, "dataset_description.json"), `{"Name":"fmriprep","GeneratedBy":[{"Name":"fMRIPrep"}]}`)
	writeFile(t, filepath.Join(derivRoot, "sub-01", "anat", "sub-01_desc-preproc_T1w.nii.gz"), "x")

	l, err := Walk([]string{root}, Options{Derivatives: Derivatives{Mode: DerivativesAuto}})
	require.NoError(t, err)
	require.Len(t, l.Derivatives(), 1)
	assert.Equal(t, "fmriprep", l.Derivatives()[0].PipelineName)

	// The primary walk skips the derivatives/ subtree; those files belong
	// only to the derivative dataset.
	for _, f := range l.Primary().Files() {
		assert.NotContains(t, f.Path, "derivatives")
	}
}

func TestWalk_NotADataset(t *testing.T) {
	_, err := Walk([]string{filepath.Join(t.TempDir(), "missing")}, Options{})
	require.Error(t, err)
}

func TestWalk_ValidateMarksPlausibleFilesValid(t *testing.T) {
	root := makeDataset(t)
	l, err := Walk([]string{root}, Options{Validate: true})
	require.NoError(t, err)
	require.NotNil(t, l.Primary())
	assert.False(t, l.Primary().Valid.IsEmpty())
}

func TestWalk_MultiSubjectQueryIsPathSorted(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "dataset_description.json"), `{"Name":"demo"}`)
	for _, sub := range []string{"001", "002", "003", "004", "005"} {
		writeFile(t, filepath.Join(root, "sub-"+sub, "ses-1", "anat", "sub-"+sub+"_ses-1_T1w.nii.gz"), "x")
	}

	l, err := Walk([]string{root}, Options{})
	require.NoError(t, err)

	narrowed, err := l.Filter(nil, map[schema.EntityName]query.FilterValue{
		schema.Subject: query.In([]string{"001", "002", "003", "004", "005"}),
		schema.Suffix:  query.Eq("T1w"),
		schema.Session: query.Eq("1"),
	})
	require.NoError(t, err)

	files := narrowed.Materialize()
	require.Len(t, files, 5)
	for i := 1; i < len(files); i++ {
		assert.Less(t, files[i-1].Path, files[i].Path)
	}
}
