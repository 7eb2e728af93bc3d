package fileutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crawlzilla/crawlzilla/pkg/fileutil"
)

func TestEnsureDir_CreatesNestedPath(t *testing.T) {
	dir := t.TempDir()

	require.Nil(t, fileutil.EnsureDir(dir, "a", "b", "c"))

	info, err := os.Stat(filepath.Join(dir, "a", "b", "c"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWriteFileAtomic_ReplacesContentWithoutLeftovers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.txt")

	require.Nil(t, fileutil.WriteFileAtomic(path, []byte("first")))
	require.Nil(t, fileutil.WriteFileAtomic(path, []byte("second")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
