package phenopacket

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDocNamed(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestCache_LoadReturnsSharedRecord(t *testing.T) {
	dir := t.TempDir()
	path := writeDocNamed(t, dir, "a.json", probandDoc)

	cache, err := NewCache(8)
	require.NoError(t, err)

	first, err := cache.Load(path)
	require.NoError(t, err)
	second, err := cache.Load(path)
	require.NoError(t, err)

	assert.Same(t, first, second, "second load must hit the cache")
	assert.Equal(t, 1, cache.Len())
}

func TestCache_FailuresAreNotCached(t *testing.T) {
	dir := t.TempDir()
	path := writeDocNamed(t, dir, "a.json", "{broken")

	cache, err := NewCache(8)
	require.NoError(t, err)

	_, err = cache.Load(path)
	require.ErrorIs(t, err, ErrParse)
	assert.Zero(t, cache.Len())

	require.NoError(t, os.WriteFile(path, []byte(probandDoc), 0644))
	rec, err := cache.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.CountPhenotypes())
}

func TestCache_EvictsOldest(t *testing.T) {
	dir := t.TempDir()
	a := writeDocNamed(t, dir, "a.json", probandDoc)
	b := writeDocNamed(t, dir, "b.json", probandDoc)

	cache, err := NewCache(1)
	require.NoError(t, err)

	_, err = cache.Load(a)
	require.NoError(t, err)
	_, err = cache.Load(b)
	require.NoError(t, err)

	assert.Equal(t, 1, cache.Len())
}

func TestNewCache_InvalidSize(t *testing.T) {
	_, err := NewCache(0)
	assert.Error(t, err)
}
