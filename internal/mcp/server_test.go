package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/linkarchiver/internal/archivebox"
	"github.com/dshills/linkarchiver/internal/archivebox/archiveboxtest"
	"github.com/dshills/linkarchiver/internal/config"
	"github.com/dshills/linkarchiver/internal/pipeline"
	"github.com/dshills/linkarchiver/internal/status"
	"github.com/dshills/linkarchiver/internal/storage"
)

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) (*Server, *archiveboxtest.Server) {
	t.Helper()
	srv := archiveboxtest.NewServer()
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.ArchiveBox.URI = srv.URL
	cfg.ArchiveBox.Username = archiveboxtest.Username
	cfg.ArchiveBox.Password = archiveboxtest.Password
	if mutate != nil {
		mutate(cfg)
	}

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	holder := status.NewHolder(nil)
	p, err := pipeline.New(pipeline.Options{
		Config:  config.NewStatic(cfg),
		Remote:  archivebox.NewClient(nil),
		Storage: store,
		Status:  holder,
	})
	require.NoError(t, err)

	s, err := NewServer(p, holder, nil)
	require.NoError(t, err)
	return s, srv
}

func callTool(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// decodeResult unmarshals the JSON text content of a tool result
func decodeResult(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func requireMCPError(t *testing.T, err error, code int) *MCPError {
	t.Helper()
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr), "expected MCPError, got %v", err)
	assert.Equal(t, code, mcpErr.Code)
	return mcpErr
}

func TestNewServer(t *testing.T) {
	_, err := NewServer(nil, nil, nil)
	assert.Error(t, err)

	s, _ := newTestServer(t, nil)
	assert.NotNil(t, s.mcp)
	assert.NotNil(t, s.pipeline)
	assert.NotNil(t, s.status)
}

func TestToolSchemas(t *testing.T) {
	tools := []mcp.Tool{archiveDocumentTool(), flushPendingTool(), getStatusTool()}
	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
		assert.Equal(t, "object", tool.InputSchema.Type)
		assert.NotEmpty(t, tool.Description)
	}
	assert.Equal(t, []string{"archive_document", "flush_pending", "get_status"}, names)
	assert.Equal(t, []string{"text"}, archiveDocumentTool().InputSchema.Required)
}

func TestArchiveDocument(t *testing.T) {
	s, srv := newTestServer(t, nil)
	ctx := context.Background()

	t.Run("markdown is flushed by default", func(t *testing.T) {
		result, err := s.handleArchiveDocument(ctx, callTool("archive_document", map[string]interface{}{
			"text": "[a](https://example.com/x) [b](https://192.168.1.5/y)",
		}))
		require.NoError(t, err)

		out := decodeResult(t, result)
		assert.Equal(t, float64(2), out["extracted"])
		assert.Equal(t, float64(1), out["accepted"])
		assert.Equal(t, true, out["flushed"])
		assert.Equal(t, float64(1), out["submitted"])
		assert.NotEmpty(t, out["submission_id"])
		assert.Equal(t, map[string]interface{}{"private_address": float64(1)}, out["rejected"])
		assert.Equal(t, [][]string{{"https://example.com/x"}}, srv.Batches())
	})

	t.Run("html without force stays pending", func(t *testing.T) {
		result, err := s.handleArchiveDocument(ctx, callTool("archive_document", map[string]interface{}{
			"text":   `<a href="https://example.com/html">link</a>`,
			"format": "html",
			"force":  false,
		}))
		require.NoError(t, err)

		out := decodeResult(t, result)
		assert.Equal(t, false, out["flushed"])
		assert.Equal(t, float64(1), out["pending"])
		assert.Len(t, srv.Batches(), 1)
	})

	t.Run("flush_pending sends the batch", func(t *testing.T) {
		result, err := s.handleFlushPending(ctx, callTool("flush_pending", map[string]interface{}{}))
		require.NoError(t, err)

		out := decodeResult(t, result)
		assert.Equal(t, true, out["flushed"])
		assert.Equal(t, []string{"https://example.com/html"}, srv.Batches()[1])
	})
}

func TestArchiveDocumentInvalidParams(t *testing.T) {
	s, _ := newTestServer(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		args interface{}
	}{
		{"arguments not an object", "text"},
		{"missing text", map[string]interface{}{}},
		{"text not a string", map[string]interface{}{"text": 42}},
		{"unknown format", map[string]interface{}{"text": "x", "format": "pdf"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.handleArchiveDocument(ctx, mcp.CallToolRequest{
				Params: mcp.CallToolParams{Name: "archive_document", Arguments: tt.args},
			})
			requireMCPError(t, err, ErrorCodeInvalidParams)
		})
	}
}

func TestArchiveDocumentErrorCodes(t *testing.T) {
	ctx := context.Background()
	args := map[string]interface{}{"text": "[a](https://example.com/x)"}

	t.Run("config invalid", func(t *testing.T) {
		s, _ := newTestServer(t, func(cfg *config.Config) { cfg.ArchiveBox.Password = "" })
		_, err := s.handleArchiveDocument(ctx, callTool("archive_document", args))
		requireMCPError(t, err, ErrorCodeConfigInvalid)

		message, _ := s.status.Current()
		assert.Equal(t, "Missing ArchiveBox password.", message)
	})

	t.Run("login failed keeps links pending", func(t *testing.T) {
		s, srv := newTestServer(t, nil)
		srv.Configure(func(s *archiveboxtest.Server) { s.OmitCSRF = true })

		_, err := s.handleArchiveDocument(ctx, callTool("archive_document", args))
		mcpErr := requireMCPError(t, err, ErrorCodeLoginFailed)

		data, ok := mcpErr.Data.(map[string]interface{})
		require.True(t, ok)
		result, ok := data["result"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, 1, result["pending"])
	})

	t.Run("submission failed", func(t *testing.T) {
		s, srv := newTestServer(t, nil)
		srv.Configure(func(s *archiveboxtest.Server) { s.AddStatus = http.StatusBadGateway })

		_, err := s.handleArchiveDocument(ctx, callTool("archive_document", args))
		requireMCPError(t, err, ErrorCodeSubmissionFailed)
	})
}

func TestGetStatus(t *testing.T) {
	s, _ := newTestServer(t, nil)
	ctx := context.Background()

	result, err := s.handleGetStatus(ctx, callTool("get_status", nil))
	require.NoError(t, err)
	out := decodeResult(t, result)
	assert.Equal(t, false, out["authenticated"])
	assert.Equal(t, float64(0), out["pending_count"])
	assert.Equal(t, "", out["last_flush"])
	assert.Empty(t, out["history"])

	_, err = s.handleArchiveDocument(ctx, callTool("archive_document", map[string]interface{}{
		"text": "[a](https://example.com/a) [b](https://example.com/b)",
	}))
	require.NoError(t, err)

	result, err = s.handleGetStatus(ctx, callTool("get_status", map[string]interface{}{"history": float64(1)}))
	require.NoError(t, err)
	out = decodeResult(t, result)
	assert.Equal(t, true, out["authenticated"])
	assert.Equal(t, float64(2), out["dedup_size"])
	assert.NotEmpty(t, out["last_flush"])

	stats, ok := out["statistics"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(2), stats["fingerprints"])
	assert.Equal(t, map[string]interface{}{"submitted": float64(1)}, stats["submissions"])

	history, ok := out["history"].([]interface{})
	require.True(t, ok)
	require.Len(t, history, 1)
	entry := history[0].(map[string]interface{})
	assert.Equal(t, "submitted", entry["outcome"])
	assert.Equal(t, float64(2), entry["url_count"])

	_, err = s.handleGetStatus(ctx, callTool("get_status", map[string]interface{}{"history": float64(500)}))
	requireMCPError(t, err, ErrorCodeInvalidParams)
}
