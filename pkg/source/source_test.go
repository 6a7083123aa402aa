package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644))
	}
}

func TestSupported(t *testing.T) {
	for name, want := range map[string]bool{
		"report.html":     true,
		"REPORT.HTM":      true,
		"rows.csv":        true,
		"rows.xlsx":       true,
		"legacy.xls":      true,
		"notes.txt":       false,
		"archive.html.gz": false,
		"noext":           false,
	} {
		assert.Equal(t, want, Supported(name), name)
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "b.html", "a.htm", "notes.txt")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.html"), 0o755))
	writeFiles(t, filepath.Join(dir, "nested.html"), "deep.html")

	files, err := NewLoader(log.Default()).Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(dir, "a.htm"), files[0].Name)
	assert.Equal(t, "a.htm", string(files[0].Data))
	assert.Equal(t, filepath.Join(dir, "b.html"), files[1].Name)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "export.txt")

	files, err := NewLoader(log.Default()).Load(context.Background(), filepath.Join(dir, "export.txt"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "export.txt", string(files[0].Data))
}

func TestLoadGlob(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "march-1.html", "march-2.html", "april-1.html", "march.txt")

	files, err := NewLoader(log.Default()).Load(context.Background(), filepath.Join(dir, "march*"))
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "march-1.html", string(files[0].Data))
	assert.Equal(t, "march-2.html", string(files[1].Data))
}

func TestLoadErrors(t *testing.T) {
	loader := NewLoader(log.Default())
	ctx := context.Background()

	_, err := loader.Load(ctx, filepath.Join(t.TempDir(), "missing.html"))
	assert.Error(t, err)

	_, err = loader.Load(ctx, t.TempDir())
	assert.True(t, errors.Is(err, ErrNoFiles))

	_, err = loader.Load(ctx, filepath.Join(t.TempDir(), "*.html"))
	assert.True(t, errors.Is(err, ErrNoFiles))

	_, err = loader.Load(ctx, "gs://")
	assert.ErrorContains(t, err, "missing bucket")
}

func TestSplitBucket(t *testing.T) {
	bucket, prefix := splitBucket("cafe-exports/2024/03/")
	assert.Equal(t, "cafe-exports", bucket)
	assert.Equal(t, "2024/03/", prefix)

	bucket, prefix = splitBucket("cafe-exports")
	assert.Equal(t, "cafe-exports", bucket)
	assert.Empty(t, prefix)
}
