package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kailas-cloud/ingestcore/internal/domain/search/mode"
	"github.com/kailas-cloud/ingestcore/internal/domain/search/request"
)

// SearchDocumentsInput is search_documents' input schema.
type SearchDocumentsInput struct {
	Query          string       `json:"query" jsonschema:"the search query text"`
	TopK           int          `json:"top_k,omitempty" jsonschema:"number of results, 1-50 (default 10)"`
	Mode           string       `json:"mode,omitempty" jsonschema:"semantic, keyword, or hybrid (default hybrid)"`
	ContentType    string       `json:"content_type,omitempty" jsonschema:"all, docs, or code (default all)"`
	MetadataFilter *filterInput `json:"metadata_filters,omitempty"`
	IncludeVectors bool         `json:"include_vectors,omitempty"`
	MinScore       float64      `json:"min_score,omitempty"`
}

// SearchResultOutput is one search hit in the response.
type SearchResultOutput struct {
	DocID    string             `json:"doc_id"`
	Score    float64            `json:"score"`
	Content  string             `json:"content"`
	Tags     map[string]string  `json:"tags,omitempty"`
	Numerics map[string]float64 `json:"numerics,omitempty"`
	Vector   []float32          `json:"vector,omitempty"`
}

// SearchDocumentsOutput is search_documents' output schema.
type SearchDocumentsOutput struct {
	errorResponse
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// collectionsFor maps the content_type facet onto the collections to
// query: "docs"/"code" select one, "all" (or empty) fans out to both.
func collectionsFor(contentType string) []string {
	switch contentType {
	case "docs":
		return []string{"documents"}
	case "code":
		return []string{"code"}
	default:
		return []string{"documents", "code"}
	}
}

func (s *Server) registerQueryTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_documents",
		Description: "Search indexed content by semantic similarity, keyword match, or both.",
	}, s.handleSearchDocuments)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_document_by_path",
		Description: "Look up the active record stored under a given file path.",
	}, s.handleGetDocumentByPath)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_metadata_stats",
		Description: "Summarize category, status, and source distributions for a collection.",
	}, s.handleGetMetadataStats)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_stats",
		Description: "Report the record count per known collection.",
	}, s.handleGetStats)
}

func (s *Server) handleSearchDocuments(
	ctx context.Context, _ *mcp.CallToolRequest, input SearchDocumentsInput,
) (*mcp.CallToolResult, SearchDocumentsOutput, error) {
	filter, err := buildFilter(input.MetadataFilter)
	if err != nil {
		return nil, SearchDocumentsOutput{errorResponse: errorResponse{Status: "error", Kind: "InvalidInput", Message: err.Error()}}, nil
	}

	// top_k above 50 is clamped to 50.
	topK := input.TopK
	if topK > 50 {
		topK = 50
	}
	req, err := request.New(
		input.Query, mode.Mode(input.Mode), filter,
		topK, topK, input.MinScore, input.IncludeVectors,
	)
	if err != nil {
		return nil, SearchDocumentsOutput{errorResponse: errorResponse{Status: "error", Kind: "InvalidInput", Message: err.Error()}}, nil
	}

	var out SearchDocumentsOutput
	for _, collection := range collectionsFor(input.ContentType) {
		results, err := s.ports.Query.Search(ctx, collection, req)
		if err != nil {
			return nil, SearchDocumentsOutput{errorResponse: mapErr(err)}, nil
		}
		for _, r := range results {
			out.Results = append(out.Results, SearchResultOutput{
				DocID: r.ID(), Score: r.Score(), Content: r.Content(),
				Tags: r.Tags(), Numerics: r.Numerics(), Vector: r.Vector(),
			})
		}
	}
	out.errorResponse = ok()
	out.Count = len(out.Results)
	return nil, out, nil
}

// GetDocumentByPathInput is get_document_by_path's input schema.
type GetDocumentByPathInput struct {
	FilePath    string `json:"file_path"`
	ContentType string `json:"content_type,omitempty" jsonschema:"docs or code (default docs)"`
}

// GetDocumentByPathOutput is get_document_by_path's output schema.
type GetDocumentByPathOutput struct {
	errorResponse
	Found   bool   `json:"found"`
	DocID   string `json:"doc_id,omitempty"`
	Content string `json:"content,omitempty"`
}

func (s *Server) handleGetDocumentByPath(
	ctx context.Context, _ *mcp.CallToolRequest, input GetDocumentByPathInput,
) (*mcp.CallToolResult, GetDocumentByPathOutput, error) {
	collection := "documents"
	if input.ContentType == "code" {
		collection = "code"
	}
	rec, found, err := s.ports.Query.GetByPath(ctx, collection, input.FilePath)
	if err != nil {
		return nil, GetDocumentByPathOutput{errorResponse: mapErr(err)}, nil
	}
	if !found {
		return nil, GetDocumentByPathOutput{errorResponse: ok(), Found: false}, nil
	}
	return nil, GetDocumentByPathOutput{errorResponse: ok(), Found: true, DocID: rec.Envelope.DocID(), Content: rec.Content}, nil
}

// GetMetadataStatsInput is get_metadata_stats' input schema.
type GetMetadataStatsInput struct {
	ContentType string `json:"content_type,omitempty" jsonschema:"docs or code (default docs)"`
}

// GetMetadataStatsOutput is get_metadata_stats' output schema.
type GetMetadataStatsOutput struct {
	errorResponse
	Total      int            `json:"total"`
	Truncated  bool           `json:"truncated"`
	ByCategory map[string]int `json:"by_category"`
	ByStatus   map[string]int `json:"by_status"`
	BySource   map[string]int `json:"by_source"`
}

func (s *Server) handleGetMetadataStats(
	ctx context.Context, _ *mcp.CallToolRequest, input GetMetadataStatsInput,
) (*mcp.CallToolResult, GetMetadataStatsOutput, error) {
	collection := "documents"
	if input.ContentType == "code" {
		collection = "code"
	}
	stats, err := s.ports.Query.MetadataStats(ctx, collection)
	if err != nil {
		return nil, GetMetadataStatsOutput{errorResponse: mapErr(err)}, nil
	}
	return nil, GetMetadataStatsOutput{
		errorResponse: ok(), Total: stats.Total, Truncated: stats.Truncated,
		ByCategory: stats.ByCategory, ByStatus: stats.ByStatus, BySource: stats.BySource,
	}, nil
}

// GetStatsInput is get_stats' input schema (no parameters).
type GetStatsInput struct{}

// GetStatsOutput is get_stats' output schema.
type GetStatsOutput struct {
	errorResponse
	Counts map[string]int `json:"counts"`
}

func (s *Server) handleGetStats(
	ctx context.Context, _ *mcp.CallToolRequest, _ GetStatsInput,
) (*mcp.CallToolResult, GetStatsOutput, error) {
	counts, err := s.ports.Query.Stats(ctx)
	if err != nil {
		return nil, GetStatsOutput{errorResponse: mapErr(err)}, nil
	}
	return nil, GetStatsOutput{errorResponse: ok(), Counts: counts}, nil
}
