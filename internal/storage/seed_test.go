package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategorySeed(t *testing.T) {
	cats, err := ParseCategorySeed([]byte("categories:\n  - name: pets\n  - name: gym\n    label: Gym\n"))
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "pets", cats[0].Label, "label defaults to name")
	assert.Equal(t, "Gym", cats[1].Label)

	_, err = ParseCategorySeed([]byte("categories:\n  - name: two words\n"))
	assert.Error(t, err)

	_, err = ParseCategorySeed([]byte("categories: [\n"))
	assert.Error(t, err)
}

func TestLoadCategorySeed_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cats.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories:\n  - name: books\n    label: Books\n"), 0o644))

	cats, err := LoadCategorySeed(path)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, "books", cats[0].Name)

	_, err = LoadCategorySeed(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestMigrations_VersionAndRollback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	require.NoError(t, RunMigrations(path))

	v, dirty, err := MigrationVersion(path)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(4), v)

	require.NoError(t, RollbackMigrations(path, 1))
	v, _, err = MigrationVersion(path)
	require.NoError(t, err)
	assert.Equal(t, uint(3), v)

	require.NoError(t, RunMigrations(path))
	assert.Error(t, RollbackMigrations(path, 0))
}
