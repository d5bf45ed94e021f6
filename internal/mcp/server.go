package mcp

import (
	"context"
	"errors"
	"io"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/linkarchiver/internal/pipeline"
	"github.com/dshills/linkarchiver/internal/status"
)

const (
	// ServerName is the MCP server name
	ServerName = "linkarchiver"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	pipeline *pipeline.Pipeline
	status   *status.Holder
	logger   *zap.Logger
}

// NewServer creates an MCP server backed by p. The status holder must be the
// one p reports to; get_status reads the latest message from it.
func NewServer(p *pipeline.Pipeline, holder *status.Holder, logger *zap.Logger) (*Server, error) {
	if p == nil {
		return nil, errors.New("mcp: pipeline is required")
	}
	if holder == nil {
		holder = status.NewHolder(logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		pipeline: p,
		status:   holder,
		logger:   logger,
	}
	s.registerTools()
	return s, nil
}

// Serve speaks MCP over in and out until ctx is cancelled or in is closed
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger))

	s.logger.Info("serving MCP on stdio", zap.String("version", ServerVersion))
	err := stdio.Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(archiveDocumentTool(), s.handleArchiveDocument)
	s.mcp.AddTool(flushPendingTool(), s.handleFlushPending)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
