package legacy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/bidx/internal/indexer"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func makeFacade(t *testing.T) *Facade {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "dataset_description.json"), `{"Name":"demo"}`)
	writeFile(t, filepath.Join(root, "sub-01", "anat", "sub-01_T1w.nii.gz"), "x")
	writeFile(t, filepath.Join(root, "sub-01", "anat", "sub-01_T1w.json"), `{"RepetitionTime":2.5}`)
	writeFile(t, filepath.Join(root, "sub-02", "anat", "sub-02_T1w.nii.gz"), "x")

	l, err := indexer.Walk([]string{root}, indexer.Options{IndexMetadata: true})
	require.NoError(t, err)
	return New(l)
}

func TestFacade_GetByEntity_Pluralized(t *testing.T) {
	f := makeFacade(t)
	subjects, err := f.GetByEntity("subjects", nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"01", "02"}, subjects)
}

func TestFacade_GetByEntity_UnknownEntity(t *testing.T) {
	f := makeFacade(t)
	_, err := f.GetByEntity("wobbles", nil)
	require.Error(t, err)
}

func TestFacade_GetMetadata_MergesEntitiesAndSidecar(t *testing.T) {
	f := makeFacade(t)
	md, err := f.GetMetadata("sub-01_T1w.nii.gz", nil)
	require.NoError(t, err)
	assert.Equal(t, "01", md["subject"])
	assert.Equal(t, 2.5, md["RepetitionTime"])
}

func TestFacade_Compatibility_Stubs(t *testing.T) {
	f := makeFacade(t)
	_, err := f.GetNearest("x")
	assert.ErrorIs(t, err, ErrCompatibility)
	err = f.CopyFiles(nil)
	assert.ErrorIs(t, err, ErrCompatibility)
}
