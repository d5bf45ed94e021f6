package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/dshills/linkarchiver/internal/config"
	"github.com/dshills/linkarchiver/internal/extractor"
	"github.com/dshills/linkarchiver/pkg/types"
)

type call struct {
	text   string
	format extractor.Format
	force  bool
}

type recordingArchiver struct {
	mu    sync.Mutex
	calls []call
}

func (r *recordingArchiver) ArchiveDocument(_ context.Context, text string, format extractor.Format, force bool) (*types.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{text: text, format: format, force: force})
	return types.NewResult(), nil
}

func (r *recordingArchiver) Calls() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

func watchConfig(autoSubmit bool) *config.Config {
	cfg := config.Default()
	cfg.Watch.AutoSubmit = autoSubmit
	cfg.Watch.Extensions = []string{".md", ".html"}
	cfg.Watch.Debounce = 30 * time.Millisecond
	return cfg
}

// startWatcher runs a watcher over dir until stop is called
func startWatcher(t *testing.T, dir string, cfg *config.Config) (archiver *recordingArchiver, stop func()) {
	t.Helper()
	archiver = &recordingArchiver{}
	w, err := New(dir, archiver, config.NewStatic(cfg), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	return archiver, func() {
		cancel()
		assert.NoError(t, <-done)
		assert.NoError(t, w.Close())
	}
}

func TestNewValidation(t *testing.T) {
	defer goleak.VerifyNone(t)

	provider := config.NewStatic(watchConfig(true))
	_, err := New(t.TempDir(), nil, provider, nil)
	assert.Error(t, err)

	_, err = New(filepath.Join(t.TempDir(), "missing"), &recordingArchiver{}, provider, nil)
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "note.md")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	_, err = New(file, &recordingArchiver{}, provider, nil)
	assert.Error(t, err)
}

func TestArchivesModifiedDocument(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	archiver, stop := startWatcher(t, dir, watchConfig(true))
	defer stop()

	path := filepath.Join(dir, "note.md")
	require.NoError(t, os.WriteFile(path, []byte("[a](https://example.com/a)"), 0o600))

	require.Eventually(t, func() bool { return len(archiver.Calls()) == 1 }, 2*time.Second, 10*time.Millisecond)
	got := archiver.Calls()[0]
	assert.Equal(t, "[a](https://example.com/a)", got.text)
	assert.Equal(t, extractor.FormatMarkdown, got.format)
	assert.False(t, got.force, "modifications wait for the batch interval")
}

func TestDebouncesBursts(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	cfg := watchConfig(true)
	cfg.Watch.Debounce = 150 * time.Millisecond
	archiver, stop := startWatcher(t, dir, cfg)
	defer stop()

	path := filepath.Join(dir, "note.md")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("[a](https://example.com/a) edit"), 0o600))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return len(archiver.Calls()) >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Len(t, archiver.Calls(), 1)
}

func TestIgnoresUnwatchedFiles(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	archiver, stop := startWatcher(t, dir, watchConfig(true))
	defer stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte("[a](https://example.com/a)"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.html"), []byte(`<a href="https://example.com/p">p</a>`), 0o600))

	require.Eventually(t, func() bool { return len(archiver.Calls()) == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	calls := archiver.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, extractor.FormatHTML, calls[0].format)
}

func TestAutoSubmitOff(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	archiver, stop := startWatcher(t, dir, watchConfig(false))
	defer stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "note.md"), []byte("[a](https://example.com/a)"), 0o600))
	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, archiver.Calls())
}

func TestWatchesNewSubdirectories(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".obsidian"), 0o755))
	archiver, stop := startWatcher(t, dir, watchConfig(true))
	defer stop()

	sub := filepath.Join(dir, "journal")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Give the watcher a moment to register the new directory
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "day.md"), []byte("[a](https://example.com/a)"), 0o600))
	require.Eventually(t, func() bool { return len(archiver.Calls()) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".obsidian", "workspace.md"), []byte("[b](https://example.com/b)"), 0o600))
	time.Sleep(150 * time.Millisecond)
	assert.Len(t, archiver.Calls(), 1)
}

func TestRescheduleAfterTimerFired(t *testing.T) {
	defer goleak.VerifyNone(t)

	w, err := New(t.TempDir(), &recordingArchiver{}, config.NewStatic(watchConfig(true)), nil)
	require.NoError(t, err)
	defer func() { assert.NoError(t, w.Close()) }()

	path := "note.md"
	w.schedule(path, time.Millisecond)

	// Hold the lock so the fired callback blocks, then schedule again
	w.mu.Lock()
	time.Sleep(50 * time.Millisecond)
	w.scheduleLocked(path, 20*time.Millisecond)
	w.mu.Unlock()

	require.Eventually(t, func() bool { return len(w.ready) == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, w.ready, 1, "one change queued once")

	w.mu.Lock()
	assert.Empty(t, w.timers)
	w.mu.Unlock()
}
