package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/linkarchiver/internal/mcp"
)

func serveCMD(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Args:  cobra.NoArgs,
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

			server, err := mcp.NewServer(a.pipeline, a.status, a.logger.Named("mcp"))
			if err != nil {
				return err
			}
			if err := a.pipeline.Start(ctx); err != nil {
				return err
			}

			// stdout is reserved for the protocol
			return server.Serve(ctx, os.Stdin, os.Stdout)
		},
	}
}
