package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/dshills/linkarchiver/internal/extractor"
	"github.com/dshills/linkarchiver/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams    = -32602 // Invalid method parameters
	ErrorCodeInternalError    = -32603 // Internal JSON-RPC error
	ErrorCodeConfigInvalid    = -32001 // Settings are incomplete; fix them before retrying
	ErrorCodeLoginFailed      = -32002 // ArchiveBox rejected the login handshake
	ErrorCodeSubmissionFailed = -32003 // ArchiveBox rejected the batch
)

// handleArchiveDocument handles the archive_document tool invocation
func (s *Server) handleArchiveDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	text, ok := args["text"].(string)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "text parameter is required", map[string]interface{}{
			"param":  "text",
			"reason": "missing or not a string",
		})
	}

	format, err := extractor.ParseFormat(getStringDefault(args, "format", ""))
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid format", map[string]interface{}{
			"param":   "format",
			"value":   args["format"],
			"allowed": []string{string(extractor.FormatMarkdown), string(extractor.FormatHTML)},
		})
	}

	// An explicit request flushes unless the caller opts out
	force := getBoolDefault(args, "force", true)

	res, err := s.pipeline.ArchiveDocument(ctx, text, format, force)
	if err != nil {
		return nil, s.pipelineError("archive failed", err, res)
	}
	return mcp.NewToolResultText(formatJSON(resultResponse(res))), nil
}

// handleFlushPending handles the flush_pending tool invocation
func (s *Server) handleFlushPending(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.pipeline.Flush(ctx)
	if err != nil {
		return nil, s.pipelineError("flush failed", err, res)
	}
	return mcp.NewToolResultText(formatJSON(resultResponse(res))), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	limit := getIntDefault(args, "history", 5)
	if limit < 0 || limit > 50 {
		return nil, newMCPError(ErrorCodeInvalidParams, "history must be between 0 and 50", map[string]interface{}{
			"param": "history",
			"value": limit,
		})
	}

	snap, err := s.pipeline.Status(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	message, at := s.status.Current()
	response := map[string]interface{}{
		"pending_urls":  snap.PendingURLs,
		"pending_count": len(snap.PendingURLs),
		"dedup_size":    snap.DedupSize,
		"authenticated": snap.Authenticated,
		"last_flush":    formatTime(snap.LastFlush),
		"status": map[string]interface{}{
			"message":    message,
			"updated_at": formatTime(at),
		},
	}

	if snap.Stats != nil {
		response["statistics"] = map[string]interface{}{
			"fingerprints":       snap.Stats.Fingerprints,
			"submissions":        snap.Stats.Submissions,
			"last_submission_at": formatTime(snap.Stats.LastSubmissionAt),
			"schema_version":     snap.Stats.SchemaVersion,
			"build_mode":         snap.Stats.BuildMode,
		}
	}

	if limit > 0 {
		subs, err := s.pipeline.History(ctx, limit)
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to list submissions", map[string]interface{}{
				"error": err.Error(),
			})
		}
		history := make([]map[string]interface{}, 0, len(subs))
		for _, sub := range subs {
			entry := map[string]interface{}{
				"id":         sub.ID,
				"outcome":    sub.Outcome,
				"url_count":  len(sub.URLs),
				"created_at": formatTime(sub.CreatedAt),
			}
			if sub.Error != nil {
				entry["error"] = *sub.Error
			}
			history = append(history, entry)
		}
		response["history"] = history
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// pipelineError maps a pipeline error to an MCP error code. A partial result
// is attached so the caller still sees how many links were queued.
func (s *Server) pipelineError(message string, err error, res *types.Result) error {
	code := ErrorCodeInternalError
	switch {
	case errors.Is(err, types.ErrConfigInvalid):
		code = ErrorCodeConfigInvalid
	case errors.Is(err, types.ErrLoginFailed):
		code = ErrorCodeLoginFailed
	case errors.Is(err, types.ErrSubmissionFailed), errors.Is(err, types.ErrSessionExpired):
		code = ErrorCodeSubmissionFailed
	}

	s.logger.Warn(message, zap.Int("code", code), zap.Error(err))

	data := map[string]interface{}{"error": err.Error()}
	if res != nil {
		data["result"] = resultResponse(res)
	}
	return newMCPError(code, message, data)
}

// resultResponse renders a pipeline result
func resultResponse(res *types.Result) map[string]interface{} {
	rejected := make(map[string]int, len(res.Rejected))
	for reason, n := range res.Rejected {
		rejected[string(reason)] = n
	}
	response := map[string]interface{}{
		"extracted": res.Extracted,
		"accepted":  res.Accepted,
		"rejected":  rejected,
		"pending":   res.Pending,
		"flushed":   res.Flushed,
	}
	if res.Flushed {
		response["submitted"] = res.Submitted
		response["timed_out"] = res.TimedOut
		response["submission_id"] = res.SubmissionID
	}
	return response
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// formatTime renders t as RFC 3339, or "" for the zero time
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
