package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/linkarchiver/pkg/types"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestDiscoverFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.md"), "")
	writeFile(t, filepath.Join(root, "notes", "b.MD"), "")
	writeFile(t, filepath.Join(root, "notes", "c.txt"), "")
	writeFile(t, filepath.Join(root, "page.html"), "")
	writeFile(t, filepath.Join(root, ".obsidian", "d.md"), "")
	explicit := filepath.Join(t.TempDir(), "explicit.txt")
	writeFile(t, explicit, "")

	files, err := DiscoverFiles([]string{root, explicit}, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "a.md"),
		filepath.Join(root, "notes", "b.MD"),
		explicit,
	}, files)

	files, err = DiscoverFiles([]string{root}, []string{".html"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "page.html")}, files)

	_, err = DiscoverFiles([]string{filepath.Join(root, "missing")}, nil)
	assert.Error(t, err)
}

func TestArchiveFiles(t *testing.T) {
	h := newHarness(t, nil)
	dir := t.TempDir()

	first := filepath.Join(dir, "first.md")
	second := filepath.Join(dir, "second.html")
	missing := filepath.Join(dir, "missing.md")
	writeFile(t, first, "# Reading\n[a](https://example.com/a) [home](http://192.168.0.1/)\n")
	writeFile(t, second, `<ul><li><a href="https://example.com/b">b</a></li><li><a href="https://example.com/a">a</a></li></ul>`)

	stats, err := h.p.ArchiveFiles(context.Background(), []string{first, missing, second}, FileOptions{Workers: 2, Force: true})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.FilesRead)
	assert.Equal(t, 1, stats.FilesFailed)
	assert.Len(t, stats.Errors, 1)
	assert.Equal(t, 4, stats.Extracted)
	assert.Equal(t, 2, stats.Accepted)
	assert.Equal(t, 1, stats.Rejected[types.ReasonPrivateAddress])
	assert.Equal(t, 1, stats.Rejected[types.ReasonDuplicate])
	assert.Equal(t, 2, stats.Flushes)
	assert.Equal(t, 2, stats.Submitted)
	assert.Equal(t, 0, stats.Pending)

	// The first file flushes at once; the second is sent by the final flush
	assert.Equal(t, [][]string{{"https://example.com/a"}, {"https://example.com/b"}}, h.srv.Batches())
}

func TestArchiveFilesWithoutForceLeavesPending(t *testing.T) {
	h := newHarness(t, nil)
	dir := t.TempDir()
	a := filepath.Join(dir, "a.md")
	b := filepath.Join(dir, "b.md")
	writeFile(t, a, "[a](https://example.com/a)")
	writeFile(t, b, "[b](https://example.com/b)")

	stats, err := h.p.ArchiveFiles(context.Background(), []string{a, b}, FileOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Flushes)
	assert.Equal(t, 1, stats.Pending)
}
