package uploads

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", DirName)

	store, err := NewStore(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, store.Dir())

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSavePreservesExtension(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	path, err := store.Save("photo.png", []byte("payload"))
	require.NoError(t, err)

	assert.Equal(t, ".png", filepath.Ext(path))

	base := filepath.Base(path)
	_, err = uuid.Parse(base[:len(base)-len(".png")])
	assert.NoError(t, err, "filename should be a UUID")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestSaveWithoutExtension(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	path, err := store.Save("unnamed", []byte("x"))
	require.NoError(t, err)

	_, err = uuid.Parse(filepath.Base(path))
	assert.NoError(t, err, "extensionless upload gets a bare UUID name")
}

func TestSaveGeneratesDistinctNames(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	first, err := store.Save("a.jpg", []byte("1"))
	require.NoError(t, err)
	second, err := store.Save("a.jpg", []byte("2"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestSaveCreateFailure(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	_, err = store.Save("a.png", []byte("x"))
	require.Error(t, err)
	assert.IsType(t, &CreateError{}, err)
}

func TestDefaultDir(t *testing.T) {
	assert.Equal(t, filepath.Join(os.TempDir(), "macocr_uploads"), DefaultDir())
}
