// Package mcp exposes the ingestion, query, and maintenance surface as a
// Model Context Protocol tool server over stdio, grounded on
// custodia-labs/sercha-cli's adapters/driving/mcp package.
package mcp

import "errors"

// Port validation errors, returned by NewServer when Ports is incomplete.
var (
	ErrMissingIngestPort = errors.New("mcp: ingest port is required")
	ErrMissingQueryPort  = errors.New("mcp: query port is required")
	ErrMissingBulkPort   = errors.New("mcp: bulk port is required")
)

// errorResponse is the taxonomy every tool's output embeds on failure:
// status/kind/message/retryable, per the error handling design. Every
// tool output struct embeds this so a failure never crosses the MCP
// protocol boundary as a bare error — it comes back as a normal tool
// result with status == "error".
type errorResponse struct {
	Status    string `json:"status"`
	Kind      string `json:"kind,omitempty"`
	Message   string `json:"message,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func ok() errorResponse {
	return errorResponse{Status: "success"}
}
