// Command linkarchiver submits the links found in Markdown notes to an
// ArchiveBox instance.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/linkarchiver/internal/observability"
	"github.com/dshills/linkarchiver/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// rootOptions are the persistent flags shared by every subcommand
type rootOptions struct {
	configPath  string
	logLevel    string
	metricsAddr string
}

func main() {
	if err := newRootCMD().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCMD() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "linkarchiver",
		Short:        "Archive the links in your notes with ArchiveBox",
		SilenceUsage: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			observability.Sync()
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default ./linkarchiver.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logger.level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(
		archiveCMD(opts),
		watchCMD(opts),
		serveCMD(opts),
		configCMD(opts),
		versionCMD(),
	)
	return root
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			observability.GetLogger().Info("received signal, shutting down gracefully", zap.Stringer("signal", sig))
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func versionCMD() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "linkarchiver %s\n", version)
			fmt.Fprintf(out, "Build Time: %s\n", buildTime)
			fmt.Fprintf(out, "Build Mode: %s\n", storage.BuildMode)
			fmt.Fprintf(out, "SQLite Driver: %s\n", storage.DriverName)
			return nil
		},
	}
}
