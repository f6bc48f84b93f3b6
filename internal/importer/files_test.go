package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan(t *testing.T) {
	inbox := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "march.csv"), []byte("a,b\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "APRIL.CSV"), []byte("a,b\n1,2\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(inbox, "processed"), 0o755))

	files, err := Scan(inbox)
	require.NoError(t, err)
	require.Len(t, files, 2)

	names := []string{files[0].Name, files[1].Name}
	assert.ElementsMatch(t, []string{"march.csv", "APRIL.CSV"}, names)
	for _, f := range files {
		assert.Equal(t, filepath.Join(inbox, f.Name), f.Path)
		assert.Positive(t, f.Size)
	}
}

func TestScan_MissingDir(t *testing.T) {
	files, err := Scan(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Nil(t, files)
}

func TestMarkProcessed(t *testing.T) {
	inbox := t.TempDir()
	src := filepath.Join(inbox, "march.csv")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	dst, err := MarkProcessed(inbox, "march.csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(inbox, "processed", "march.csv"), dst)

	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(dst)
	assert.NoError(t, err)
}

func TestMarkFailed_DoesNotOverwrite(t *testing.T) {
	inbox := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(inbox, "failed"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "failed", "march.csv"), []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "march.csv"), []byte("new"), 0o644))

	dst, err := MarkFailed(inbox, "march.csv")
	require.NoError(t, err)
	assert.NotEqual(t, filepath.Join(inbox, "failed", "march.csv"), dst)

	old, err := os.ReadFile(filepath.Join(inbox, "failed", "march.csv"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(old))

	moved, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new", string(moved))
}
