package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/linkarchiver/internal/extractor"
	"github.com/dshills/linkarchiver/pkg/types"
)

// FileOptions controls ArchiveFiles
type FileOptions struct {
	Workers    int      // Concurrent readers (default: runtime.NumCPU())
	Extensions []string // Extensions picked up when walking directories (default: .md)
	Force      bool     // Flush whatever is pending after the last file
}

// FileStatistics summarises an ArchiveFiles run
type FileStatistics struct {
	FilesRead   int
	FilesFailed int
	Extracted   int
	Accepted    int
	Rejected    map[types.RejectReason]int
	Flushes     int
	Submitted   int
	TimedOut    int
	Pending     int
	Errors      []string
}

// document is a file converted to Markdown
type document struct {
	path     string
	markdown string
	err      error
}

// DiscoverFiles expands paths into document files. Directories are walked,
// skipping hidden ones; only files with a matching extension are kept.
// Explicit file arguments are always kept.
func DiscoverFiles(paths []string, extensions []string) ([]string, error) {
	if len(extensions) == 0 {
		extensions = []string{".md"}
	}
	matches := func(path string) bool {
		ext := strings.ToLower(filepath.Ext(path))
		for _, e := range extensions {
			if strings.EqualFold(e, ext) {
				return true
			}
		}
		return false
	}

	var files []string
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, root)
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if matches(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

// ArchiveFiles reads and converts files concurrently, then archives them one
// at a time in the given order. A file that cannot be read is counted and
// skipped; a pipeline error stops the run.
func (p *Pipeline) ArchiveFiles(ctx context.Context, paths []string, opts FileOptions) (*FileStatistics, error) {
	if p.isClosed() {
		return nil, ErrClosed
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	docs := make([]document, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			docs[i] = readDocument(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := &FileStatistics{Rejected: make(map[types.RejectReason]int)}
	for _, doc := range docs {
		if doc.err != nil {
			stats.FilesFailed++
			stats.Errors = append(stats.Errors, doc.err.Error())
			p.logger.Warn("skipping unreadable document", zap.String("path", doc.path), zap.Error(doc.err))
			continue
		}
		stats.FilesRead++

		res, err := p.ArchiveText(ctx, doc.markdown, false)
		if res != nil {
			stats.add(res)
		}
		if err != nil {
			return stats, fmt.Errorf("failed to archive %s: %w", doc.path, err)
		}
	}

	if opts.Force {
		res, err := p.Flush(ctx)
		if res != nil {
			stats.add(res)
		}
		if err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func (s *FileStatistics) add(res *types.Result) {
	s.Extracted += res.Extracted
	s.Accepted += res.Accepted
	for reason, n := range res.Rejected {
		s.Rejected[reason] += n
	}
	if res.Flushed {
		s.Flushes++
		s.Submitted += res.Submitted
	}
	if res.TimedOut {
		s.TimedOut++
	}
	s.Pending = res.Pending
}

// readDocument loads path and converts it to Markdown based on its extension
func readDocument(path string) document {
	data, err := os.ReadFile(path)
	if err != nil {
		return document{path: path, err: fmt.Errorf("read %s: %w", path, err)}
	}
	markdown, err := extractor.ToMarkdown(string(data), extractor.FormatForExtension(filepath.Ext(path)))
	if err != nil {
		return document{path: path, err: fmt.Errorf("convert %s: %w", path, err)}
	}
	return document{path: path, markdown: markdown}
}
