package fsutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	require.NoError(t, m.WriteFile("a/b.txt", []byte("hello"), 0644))

	data, err := m.ReadFile("a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	assert.True(t, m.Exists("a/b.txt"))
	assert.False(t, m.Exists("a/missing.txt"))

	_, err = m.ReadFile("a/missing.txt")
	assert.Error(t, err)
}

func TestMemoryMkdirAll(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	require.NoError(t, m.MkdirAll("x/y/z", 0755))
	assert.True(t, m.Exists("x/y/z"))
	assert.True(t, m.Exists("x/y"))
	assert.True(t, m.Exists("x"))
}

func TestOSRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var osfs OS

	path := filepath.Join(dir, "sub", "file.bin")
	require.NoError(t, osfs.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, osfs.WriteFile(path, []byte{1, 2, 3}, 0644))

	data, err := osfs.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
	assert.True(t, osfs.Exists(path))
}
