package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// archiveDocumentTool returns the tool definition for archive_document
func archiveDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "archive_document",
		Description: "Extract the inline links of a Markdown or HTML document and submit them to ArchiveBox",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Document text containing [label](url) links",
				},
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, submit the pending batch now instead of waiting for the batch interval",
					"default":     true,
				},
				"format": map[string]interface{}{
					"type":        "string",
					"description": "Document format; HTML is converted to Markdown first",
					"enum":        []string{"markdown", "html"},
					"default":     "markdown",
				},
			},
			Required: []string{"text"},
		},
	}
}

// flushPendingTool returns the tool definition for flush_pending
func flushPendingTool() mcp.Tool {
	return mcp.Tool{
		Name:        "flush_pending",
		Description: "Submit every link waiting in the pending batch",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Show the pending batch, session state, last status message and submission statistics",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"history": map[string]interface{}{
					"type":        "integer",
					"description": "Number of recent submissions to include (0-50)",
					"default":     5,
					"minimum":     0,
					"maximum":     50,
				},
			},
		},
	}
}
