package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kailas-cloud/ingestcore/internal/domain/search/filterexpr"
)

func (s *Server) registerMutationTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "update_document",
		Description: "Replace a document's content, re-running the ingestion classifier and deprecating the prior version.",
	}, s.handleUpdateDocument)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "update_metadata",
		Description: "Patch metadata fields on a single record by point reference, without touching its content.",
	}, s.handleUpdateMetadata)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_document",
		Description: "Hard-delete a single record by point reference.",
	}, s.handleDeleteDocument)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "delete_by_filter",
		Description: "Hard-delete every record in a collection matching a metadata filter.",
	}, s.handleDeleteByFilter)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "bulk_update_metadata",
		Description: "Patch metadata fields on every record in a collection matching a filter.",
	}, s.handleBulkUpdateMetadata)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "clear_all",
		Description: "Hard-delete every record in a collection. Requires confirm=true.",
	}, s.handleClearAll)
}

// UpdateDocumentInput is update_document's input schema.
type UpdateDocumentInput struct {
	PointReference  string        `json:"point_reference" jsonschema:"the doc_id of the record to replace"`
	Content         string        `json:"content" jsonschema:"the replacement content"`
	ContentType     string        `json:"content_type,omitempty" jsonschema:"docs or code (default docs)"`
	MetadataUpdates metadataInput `json:"metadata_updates,omitempty"`
}

func (s *Server) handleUpdateDocument(
	ctx context.Context, _ *mcp.CallToolRequest, input UpdateDocumentInput,
) (*mcp.CallToolResult, ingestOutput, error) {
	if input.PointReference == "" || input.Content == "" {
		return nil, ingestOutput{errorResponse: errorResponse{Status: "error", Kind: "InvalidInput", Message: "point_reference and content are required"}}, nil
	}
	collection := "documents"
	if input.ContentType == "code" {
		collection = "code"
	}

	// Ingest decides skip/update/warn/store from the new content's hash
	// against existing candidates for this doc_id; a genuine content
	// replacement lands on the update path, deprecating the prior version.
	req := input.MetadataUpdates.toRequest(collection, input.PointReference, input.Content, chunkingInput{})
	report, err := s.ports.Ingest.Ingest(ctx, req)
	if err != nil {
		return nil, ingestOutput{errorResponse: mapErr(err), DocID: input.PointReference}, nil
	}
	return nil, reportToOutput(input.PointReference, report), nil
}

// UpdateMetadataInput is update_metadata's input schema.
type UpdateMetadataInput struct {
	PointReference  string         `json:"point_reference" jsonschema:"the doc_id of the record to patch"`
	ContentType     string         `json:"content_type,omitempty" jsonschema:"docs or code (default docs)"`
	MetadataUpdates map[string]any `json:"metadata_updates" jsonschema:"fields to patch; hash_content/doc_id/chunk identity fields are rejected"`
}

// MatchedOutput is the response shape common to every filtered mutation.
type MatchedOutput struct {
	errorResponse
	Matched int `json:"matched"`
}

func (s *Server) handleUpdateMetadata(
	ctx context.Context, _ *mcp.CallToolRequest, input UpdateMetadataInput,
) (*mcp.CallToolResult, MatchedOutput, error) {
	if input.PointReference == "" {
		return nil, MatchedOutput{errorResponse: errorResponse{Status: "error", Kind: "InvalidInput", Message: "point_reference is required"}}, nil
	}
	collection := "documents"
	if input.ContentType == "code" {
		collection = "code"
	}
	eq, err := filterexpr.Eq("doc_id", input.PointReference)
	if err != nil {
		return nil, MatchedOutput{errorResponse: errorResponse{Status: "error", Kind: "InvalidInput", Message: err.Error()}}, nil
	}

	matched, err := s.ports.Bulk.BulkUpdateMetadata(ctx, collection, &eq, input.MetadataUpdates)
	if err != nil {
		return nil, MatchedOutput{errorResponse: mapErr(err)}, nil
	}
	return nil, MatchedOutput{errorResponse: ok(), Matched: matched}, nil
}

// DeleteDocumentInput is delete_document's input schema.
type DeleteDocumentInput struct {
	PointReference string `json:"point_reference" jsonschema:"the doc_id of the record to delete"`
	ContentType    string `json:"content_type,omitempty" jsonschema:"docs or code (default docs)"`
}

func (s *Server) handleDeleteDocument(
	ctx context.Context, _ *mcp.CallToolRequest, input DeleteDocumentInput,
) (*mcp.CallToolResult, MatchedOutput, error) {
	if input.PointReference == "" {
		return nil, MatchedOutput{errorResponse: errorResponse{Status: "error", Kind: "InvalidInput", Message: "point_reference is required"}}, nil
	}
	collection := "documents"
	if input.ContentType == "code" {
		collection = "code"
	}
	eq, err := filterexpr.Eq("doc_id", input.PointReference)
	if err != nil {
		return nil, MatchedOutput{errorResponse: errorResponse{Status: "error", Kind: "InvalidInput", Message: err.Error()}}, nil
	}
	deleted, err := s.ports.Bulk.DeleteByFilter(ctx, collection, &eq)
	if err != nil {
		return nil, MatchedOutput{errorResponse: mapErr(err)}, nil
	}
	return nil, MatchedOutput{errorResponse: ok(), Matched: deleted}, nil
}

// DeleteByFilterInput is delete_by_filter's input schema.
type DeleteByFilterInput struct {
	ContentType string       `json:"content_type,omitempty" jsonschema:"docs or code (default docs)"`
	Filter      *filterInput `json:"filter"`
}

func (s *Server) handleDeleteByFilter(
	ctx context.Context, _ *mcp.CallToolRequest, input DeleteByFilterInput,
) (*mcp.CallToolResult, MatchedOutput, error) {
	collection := "documents"
	if input.ContentType == "code" {
		collection = "code"
	}
	filter, err := buildFilter(input.Filter)
	if err != nil {
		return nil, MatchedOutput{errorResponse: errorResponse{Status: "error", Kind: "InvalidInput", Message: err.Error()}}, nil
	}
	deleted, err := s.ports.Bulk.DeleteByFilter(ctx, collection, filter)
	if err != nil {
		return nil, MatchedOutput{errorResponse: mapErr(err)}, nil
	}
	return nil, MatchedOutput{errorResponse: ok(), Matched: deleted}, nil
}

// BulkUpdateMetadataInput is bulk_update_metadata's input schema.
type BulkUpdateMetadataInput struct {
	ContentType string         `json:"content_type,omitempty" jsonschema:"docs or code (default docs)"`
	Filter      *filterInput   `json:"filter"`
	Patch       map[string]any `json:"patch" jsonschema:"fields to patch; hash_content/doc_id/chunk identity fields are rejected"`
}

func (s *Server) handleBulkUpdateMetadata(
	ctx context.Context, _ *mcp.CallToolRequest, input BulkUpdateMetadataInput,
) (*mcp.CallToolResult, MatchedOutput, error) {
	collection := "documents"
	if input.ContentType == "code" {
		collection = "code"
	}
	filter, err := buildFilter(input.Filter)
	if err != nil {
		return nil, MatchedOutput{errorResponse: errorResponse{Status: "error", Kind: "InvalidInput", Message: err.Error()}}, nil
	}
	matched, err := s.ports.Bulk.BulkUpdateMetadata(ctx, collection, filter, input.Patch)
	if err != nil {
		return nil, MatchedOutput{errorResponse: mapErr(err)}, nil
	}
	return nil, MatchedOutput{errorResponse: ok(), Matched: matched}, nil
}

// ClearAllInput is clear_all's input schema.
type ClearAllInput struct {
	ContentType string `json:"content_type,omitempty" jsonschema:"docs or code (default docs)"`
	Confirm     bool   `json:"confirm" jsonschema:"must be true to perform the wipe"`
}

func (s *Server) handleClearAll(
	ctx context.Context, _ *mcp.CallToolRequest, input ClearAllInput,
) (*mcp.CallToolResult, MatchedOutput, error) {
	collection := "documents"
	if input.ContentType == "code" {
		collection = "code"
	}
	deleted, err := s.ports.Bulk.ClearAll(ctx, collection, input.Confirm)
	if err != nil {
		return nil, MatchedOutput{errorResponse: mapErr(err)}, nil
	}
	return nil, MatchedOutput{errorResponse: ok(), Matched: deleted}, nil
}
