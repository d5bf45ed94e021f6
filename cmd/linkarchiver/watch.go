package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/linkarchiver/internal/watcher"
)

func watchCMD(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [dir]",
		Short: "Archive links as notes under a directory change",
		Long: `Watch a directory tree and archive the links of every modified note.

Changes are only archived while watch.auto_submit is on. The setting is
re-read from the config file, so it can be toggled without a restart.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

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

			w, err := watcher.New(dir, a.pipeline, a.provider, a.logger.Named("watcher"))
			if err != nil {
				return err
			}
			defer func() { _ = w.Close() }()

			if !a.provider.Current().Watch.AutoSubmit {
				a.logger.Warn("watch.auto_submit is off; changes are ignored until it is enabled")
			}
			if err := a.pipeline.Start(ctx); err != nil {
				return err
			}

			a.logger.Info("watching for changes", zap.String("dir", dir))
			return w.Run(ctx)
		},
	}
}
