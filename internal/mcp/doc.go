// Package mcp implements the Model Context Protocol (MCP) server for the link
// archiver.
//
// The MCP server exposes three tools to AI assistants and editors:
//   - archive_document: Extract links from a document and submit them
//   - flush_pending: Submit the pending batch immediately
//   - get_status: Inspect the batch, session and submission history
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Logs go to stderr; stdout carries protocol messages only.
//
// # Basic Usage
//
// The MCP server is typically started via the serve command:
//
//	linkarchiver serve --config linkarchiver.yaml
//
// # Tool: archive_document
//
// Archive every inline link of a document:
//
//	Request:
//	{
//	  "name": "archive_document",
//	  "arguments": {
//	    "text": "See [the docs](https://go.dev/doc/) and [my NAS](http://192.168.1.2/)",
//	    "format": "markdown",
//	    "force": true
//	  }
//	}
//
//	Response:
//	{
//	  "extracted": 2,
//	  "accepted": 1,
//	  "rejected": {"private_address": 1},
//	  "pending": 0,
//	  "flushed": true,
//	  "submitted": 1,
//	  "timed_out": false,
//	  "submission_id": "5f0c…"
//	}
//
// force defaults to true: a tool call is an explicit request, so the batch is
// sent without waiting for the batch interval. With force false the links
// join the pending batch and go out with the next due flush.
//
// HTML documents ("format": "html") are converted to Markdown first.
//
// # Tool: flush_pending
//
// Submit whatever is pending. An empty batch is not sent and no login happens.
//
// # Tool: get_status
//
//	Response:
//	{
//	  "pending_urls": ["https://example.com/a"],
//	  "pending_count": 1,
//	  "dedup_size": 42,
//	  "authenticated": true,
//	  "last_flush": "2024-06-01T09:00:00Z",
//	  "status": {"message": "", "updated_at": "2024-06-01T09:00:00Z"},
//	  "statistics": {"fingerprints": 42, "submissions": {"submitted": 7}, ...},
//	  "history": [{"id": "…", "outcome": "submitted", "url_count": 3, ...}]
//	}
//
// # Error Handling
//
// Errors use JSON-RPC codes:
//   - -32602: Invalid parameters
//   - -32603: Internal error
//   - -32001: Settings incomplete (missing URI, username, password)
//   - -32002: Login failed
//   - -32003: Submission failed
//
// A timed out submission is not an error; the response has timed_out set.
package mcp
