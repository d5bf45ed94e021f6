package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/linkarchiver/internal/extractor"
	"github.com/dshills/linkarchiver/internal/pipeline"
	"github.com/dshills/linkarchiver/pkg/types"
)

func archiveCMD(opts *rootOptions) *cobra.Command {
	var (
		extensions []string
		workers    int
		noFlush    bool
		html       bool
	)

	archive := &cobra.Command{
		Use:   "archive [paths...]",
		Short: "Archive the links in files, directories or stdin",
		Long: `Extract the inline links of Markdown (and HTML) documents and submit them.

Directories are walked recursively, skipping hidden ones. With no paths the
document is read from stdin. The pending batch is flushed at the end unless
--no-flush is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			a, err := setup(ctx, opts)
			if err != nil {
				cancel()
				return err
			}
			defer func() {
				cancel()
				a.close(context.Background())
			}()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				return archiveStdin(ctx, a.pipeline, cmd.InOrStdin(), out, html, !noFlush)
			}

			files, err := pipeline.DiscoverFiles(args, extensions)
			if err != nil {
				return err
			}
			stats, err := a.pipeline.ArchiveFiles(ctx, files, pipeline.FileOptions{
				Workers:    workers,
				Extensions: extensions,
				Force:      !noFlush,
			})
			if stats != nil {
				printFileStats(out, stats)
			}
			return err
		},
	}

	archive.Flags().StringSliceVar(&extensions, "ext", []string{".md"}, "file extensions picked up in directories")
	archive.Flags().IntVar(&workers, "workers", 0, "concurrent file readers (default: number of CPUs)")
	archive.Flags().BoolVar(&noFlush, "no-flush", false, "leave accepted links pending instead of submitting now")
	archive.Flags().BoolVar(&html, "html", false, "treat stdin as HTML")
	return archive
}

func archiveStdin(ctx context.Context, p *pipeline.Pipeline, in io.Reader, out io.Writer, html, force bool) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}
	format := extractor.FormatMarkdown
	if html {
		format = extractor.FormatHTML
	}

	res, err := p.ArchiveDocument(ctx, string(data), format, force)
	if res != nil {
		printResult(out, res)
	}
	return err
}

func printResult(out io.Writer, res *types.Result) {
	fmt.Fprintf(out, "Links found:    %d\n", res.Extracted)
	fmt.Fprintf(out, "Accepted:       %d\n", res.Accepted)
	printRejected(out, res.Rejected)
	if res.Flushed {
		fmt.Fprintf(out, "Submitted:      %d", res.Submitted)
		if res.TimedOut {
			fmt.Fprint(out, " (timed out, assumed sent)")
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "Pending:        %d\n", res.Pending)
}

func printFileStats(out io.Writer, stats *pipeline.FileStatistics) {
	fmt.Fprintf(out, "Files read:     %d\n", stats.FilesRead)
	if stats.FilesFailed > 0 {
		fmt.Fprintf(out, "Files failed:   %d\n", stats.FilesFailed)
		for _, msg := range stats.Errors {
			fmt.Fprintf(out, "  %s\n", msg)
		}
	}
	fmt.Fprintf(out, "Links found:    %d\n", stats.Extracted)
	fmt.Fprintf(out, "Accepted:       %d\n", stats.Accepted)
	printRejected(out, stats.Rejected)
	fmt.Fprintf(out, "Submitted:      %d in %d batch(es)\n", stats.Submitted, stats.Flushes)
	if stats.TimedOut > 0 {
		fmt.Fprintf(out, "Timed out:      %d batch(es), assumed sent\n", stats.TimedOut)
	}
	fmt.Fprintf(out, "Pending:        %d\n", stats.Pending)
}

func printRejected(out io.Writer, rejected map[types.RejectReason]int) {
	if len(rejected) == 0 {
		return
	}
	reasons := make([]string, 0, len(rejected))
	for reason, n := range rejected {
		reasons = append(reasons, fmt.Sprintf("%s=%d", reason, n))
	}
	sort.Strings(reasons)
	fmt.Fprintf(out, "Rejected:       %s\n", strings.Join(reasons, " "))
}
