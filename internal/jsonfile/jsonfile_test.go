package jsonfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMissing(t *testing.T) {
	var v map[string]int
	found, err := Read(filepath.Join(t.TempDir(), "nope.json"), &v)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestWriteThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.json")
	in := map[string]string{"title": "Économie & <société>"}

	require.NoError(t, Write(path, in))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Économie & <société>", "non-ASCII and HTML characters are written verbatim")
	assert.Contains(t, string(raw), "\n  \"title\"", "document is indented")

	var out map[string]string
	found, err := Read(path, &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}

func TestReadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("[{"), 0o644))

	var v []any
	found, err := Read(path, &v)
	assert.True(t, found)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestSetAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("[{"), 0o644))

	backup, err := SetAside(path, time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, path+".corrupt-20240309T140500Z", backup)

	raw, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "[{", string(raw))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	_, err = SetAside(filepath.Join(dir, "missing.json"), time.Now())
	assert.Error(t, err)
}

func TestWriteFailureKeepsPreviousDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	require.NoError(t, Write(path, []int{1, 2}))

	// A target that is a directory cannot be replaced by rename.
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.Mkdir(blocked, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(blocked, "x"), []byte("x"), 0o644))
	assert.Error(t, Write(blocked, []int{3}))

	var v []int
	_, err := Read(path, &v)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, v)
}
