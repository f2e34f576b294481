package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerVersioningTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_version_history",
		Description: "List a document's stored versions, newest first; deprecated versions are included only when include_deprecated is true.",
	}, s.handleGetVersionHistory)
}

// GetVersionHistoryInput is get_version_history's input schema.
type GetVersionHistoryInput struct {
	DocID             string `json:"doc_id"`
	ContentType       string `json:"content_type,omitempty" jsonschema:"docs or code (default docs)"`
	IncludeDeprecated bool   `json:"include_deprecated,omitempty"`
}

// VersionEntry is a single version in the history response.
type VersionEntry struct {
	PointRef    string `json:"point_ref"`
	Status      string `json:"status"`
	HashContent string `json:"hash_content"`
	UpdatedAt   string `json:"updated_at"`
}

// GetVersionHistoryOutput is get_version_history's output schema.
type GetVersionHistoryOutput struct {
	errorResponse
	Versions []VersionEntry `json:"versions"`
}

func (s *Server) handleGetVersionHistory(
	ctx context.Context, _ *mcp.CallToolRequest, input GetVersionHistoryInput,
) (*mcp.CallToolResult, GetVersionHistoryOutput, error) {
	if input.DocID == "" {
		return nil, GetVersionHistoryOutput{errorResponse: errorResponse{Status: "error", Kind: "InvalidInput", Message: "doc_id is required"}}, nil
	}
	collection := "documents"
	if input.ContentType == "code" {
		collection = "code"
	}

	records, err := s.ports.Query.VersionHistory(ctx, collection, input.DocID)
	if err != nil {
		return nil, GetVersionHistoryOutput{errorResponse: mapErr(err)}, nil
	}

	out := GetVersionHistoryOutput{errorResponse: ok()}
	for _, rec := range records {
		if !input.IncludeDeprecated && string(rec.Envelope.Status()) != "active" {
			continue
		}
		out.Versions = append(out.Versions, VersionEntry{
			PointRef:    string(rec.Point),
			Status:      string(rec.Envelope.Status()),
			HashContent: rec.Envelope.HashContent(),
			UpdatedAt:   rec.Envelope.UpdatedAt().Format(time.RFC3339Nano),
		})
	}
	return nil, out, nil
}
