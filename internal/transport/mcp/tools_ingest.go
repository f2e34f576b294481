package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kailas-cloud/ingestcore/internal/domain/envelope"
	"github.com/kailas-cloud/ingestcore/internal/domain/fingerprint"
	"github.com/kailas-cloud/ingestcore/internal/usecase/ingest"
)

// metadataInput is the partial envelope every ingestion tool accepts,
// mirroring the original service's free-form metadata object down to its
// field names.
type metadataInput struct {
	DocID    string   `json:"doc_id,omitempty" jsonschema:"stable document identifier; derived from content if omitted"`
	Category string   `json:"category,omitempty" jsonschema:"design_doc, debug_summary, test_pattern, user_rule, project_rule, project_command, or other"`
	Source   string   `json:"source,omitempty" jsonschema:"manual, generated, or imported"`
	FilePath string   `json:"file_path,omitempty"`
	FileHash string   `json:"file_hash,omitempty"`
	Repo     string   `json:"repo,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// chunkingInput is the optional chunking control shared by add_document
// and add_code.
type chunkingInput struct {
	EnableChunking bool `json:"enable_chunking,omitempty"`
	ChunkSize      int  `json:"chunk_size,omitempty" jsonschema:"words per chunk, 128-2048 (when omitted, the server's configured default chunk size is used)"`
	ChunkOverlap   int  `json:"chunk_overlap,omitempty" jsonschema:"overlap words between chunks, 0-256 (when omitted, 0: no overlap)"`
}

// ingestOutput is the response shape common to every ingestion tool.
type ingestOutput struct {
	errorResponse
	DocID          string `json:"doc_id,omitempty"`
	PointRef       string `json:"point_ref,omitempty"`
	Action         string `json:"action,omitempty"`
	DuplicateLevel int    `json:"duplicate_level,omitempty"`
	Deprecated     bool   `json:"deprecated,omitempty"`
	TotalChunks    int    `json:"total_chunks,omitempty"`
	Unchanged      int    `json:"unchanged,omitempty"`
	Changed        int    `json:"changed,omitempty"`
	Added          int    `json:"added,omitempty"`
	Removed        int    `json:"removed,omitempty"`
}

func reportToOutput(docID string, report ingest.Report) ingestOutput {
	out := ingestOutput{
		errorResponse:  ok(),
		DocID:          docID,
		PointRef:       string(report.RecordRef),
		Action:         string(report.Action),
		DuplicateLevel: int(report.DuplicateLevel),
		Deprecated:     report.Deprecated,
	}
	if report.ChunkCounts != nil {
		out.TotalChunks = report.ChunkCounts.Unchanged + report.ChunkCounts.Changed + report.ChunkCounts.Added
		out.Unchanged = report.ChunkCounts.Unchanged
		out.Changed = report.ChunkCounts.Changed
		out.Added = report.ChunkCounts.Added
		out.Removed = report.ChunkCounts.Removed
	}
	return out
}

// deriveDocID falls back to a content-derived identifier when the caller
// doesn't supply one, the same "doc_" + truncated hash scheme the
// original service used.
func deriveDocID(docID, content string) string {
	if docID != "" {
		return docID
	}
	hash := fingerprint.HashContent(content)
	if len(hash) > 16 {
		hash = hash[:16]
	}
	return "doc_" + hash
}

func (m metadataInput) toRequest(collection, docID, content string, chunk chunkingInput) ingest.IngestRequest {
	category := envelope.Category(m.Category)
	if category == "" {
		category = envelope.CategoryOther
	}
	source := envelope.Source(m.Source)
	if source == "" {
		source = envelope.SourceManual
	}
	return ingest.IngestRequest{
		Collection:     collection,
		DocID:          docID,
		Content:        content,
		FilePath:       m.FilePath,
		FileHash:       m.FileHash,
		Category:       category,
		Source:         source,
		Repo:           m.Repo,
		Tags:           m.Tags,
		EnableChunking: chunk.EnableChunking,
		ChunkSize:      chunk.ChunkSize,
		ChunkOverlap:   chunk.ChunkOverlap,
	}
}

// AddDocumentInput is add_document's input schema.
type AddDocumentInput struct {
	Content  string        `json:"content" jsonschema:"the document body to index"`
	Metadata metadataInput `json:"metadata,omitempty"`
	Chunking chunkingInput `json:"chunking,omitempty"`
}

// AddFileInput is add_file's input schema: content is read from disk at
// file_path rather than supplied inline.
type AddFileInput struct {
	FilePath string        `json:"file_path" jsonschema:"path to the file to read and index"`
	Metadata metadataInput `json:"metadata,omitempty"`
}

// AddCodeInput is add_code's input schema.
type AddCodeInput struct {
	FilePath string        `json:"file_path" jsonschema:"path to the code file to read and index"`
	Language string        `json:"language,omitempty" jsonschema:"source language; detected from extension if omitted"`
	Metadata metadataInput `json:"metadata,omitempty"`
	Chunking chunkingInput `json:"chunking,omitempty"`
}

// AddCodeDirectoryInput is add_code_directory's input schema.
type AddCodeDirectoryInput struct {
	DirectoryPath   string        `json:"directory_path" jsonschema:"directory to walk recursively"`
	Extensions      []string      `json:"extensions,omitempty" jsonschema:"file extensions to include, e.g. .go,.py (defaults to a broad code-extension set)"`
	ExcludePatterns []string      `json:"exclude_patterns,omitempty" jsonschema:"substrings that exclude a path when present, e.g. node_modules"`
	Metadata        metadataInput `json:"metadata,omitempty"`
}

// AddCodeDirectoryOutput reports per-file outcomes for add_code_directory.
type AddCodeDirectoryOutput struct {
	errorResponse
	FilesFound   int      `json:"files_found"`
	Indexed      int      `json:"indexed"`
	Failed       int      `json:"failed"`
	FailedFiles  []string `json:"failed_files,omitempty"`
	IndexedFiles []string `json:"indexed_files,omitempty"`
}

var defaultCodeExtensions = []string{
	".py", ".js", ".ts", ".jsx", ".tsx", ".java", ".cpp", ".c", ".h", ".hpp",
	".go", ".rs", ".rb", ".php", ".swift", ".kt", ".scala", ".sql",
	".sh", ".bash", ".yaml", ".yml", ".json",
}

var defaultExcludePatterns = []string{
	"__pycache__", "node_modules", ".git", ".venv", "venv", "env",
	"dist", "build", ".pytest_cache", ".mypy_cache",
}

func (s *Server) registerIngestionTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "add_document",
		Description: "Index a document's content with its metadata, applying duplicate detection and optional chunking.",
	}, s.handleAddDocument)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "add_file",
		Description: "Read a file from disk and index its content as a document.",
	}, s.handleAddFile)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "add_code",
		Description: "Read a source file from disk and index it in the code collection.",
	}, s.handleAddCode)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "add_code_directory",
		Description: "Recursively walk a directory and index every matching source file into the code collection.",
	}, s.handleAddCodeDirectory)
}

func (s *Server) handleAddDocument(
	ctx context.Context, _ *mcp.CallToolRequest, input AddDocumentInput,
) (*mcp.CallToolResult, ingestOutput, error) {
	if input.Content == "" {
		return nil, ingestOutput{errorResponse: errorResponse{Status: "error", Kind: "InvalidInput", Message: "content is required"}}, nil
	}
	docID := deriveDocID(input.Metadata.DocID, input.Content)
	req := input.Metadata.toRequest("documents", docID, input.Content, input.Chunking)

	report, err := s.ports.Ingest.Ingest(ctx, req)
	if err != nil {
		return nil, ingestOutput{errorResponse: mapErr(err), DocID: docID}, nil
	}
	return nil, reportToOutput(docID, report), nil
}

func (s *Server) handleAddFile(
	ctx context.Context, _ *mcp.CallToolRequest, input AddFileInput,
) (*mcp.CallToolResult, ingestOutput, error) {
	if input.FilePath == "" {
		return nil, ingestOutput{errorResponse: errorResponse{Status: "error", Kind: "InvalidInput", Message: "file_path is required"}}, nil
	}
	content, err := os.ReadFile(filepath.Clean(input.FilePath))
	if err != nil {
		return nil, ingestOutput{errorResponse: errorResponse{Status: "error", Kind: "NotFound", Message: fmt.Sprintf("file not found: %s", input.FilePath)}}, nil
	}

	meta := input.Metadata
	if meta.FilePath == "" {
		meta.FilePath = input.FilePath
	}
	docID := deriveDocID(meta.DocID, string(content))
	req := meta.toRequest("documents", docID, string(content), chunkingInput{})

	report, err := s.ports.Ingest.Ingest(ctx, req)
	if err != nil {
		return nil, ingestOutput{errorResponse: mapErr(err), DocID: docID}, nil
	}
	return nil, reportToOutput(docID, report), nil
}

func (s *Server) handleAddCode(
	ctx context.Context, _ *mcp.CallToolRequest, input AddCodeInput,
) (*mcp.CallToolResult, ingestOutput, error) {
	if input.FilePath == "" {
		return nil, ingestOutput{errorResponse: errorResponse{Status: "error", Kind: "InvalidInput", Message: "file_path is required"}}, nil
	}
	content, err := os.ReadFile(filepath.Clean(input.FilePath))
	if err != nil {
		return nil, ingestOutput{errorResponse: errorResponse{Status: "error", Kind: "NotFound", Message: fmt.Sprintf("file not found: %s", input.FilePath)}}, nil
	}

	meta := input.Metadata
	if meta.FilePath == "" {
		meta.FilePath = input.FilePath
	}
	if meta.Category == "" {
		meta.Category = string(envelope.CategoryOther)
	}
	docID := deriveDocID(meta.DocID, string(content))
	req := meta.toRequest("code", docID, string(content), input.Chunking)

	report, err := s.ports.Ingest.Ingest(ctx, req)
	if err != nil {
		return nil, ingestOutput{errorResponse: mapErr(err), DocID: docID}, nil
	}
	return nil, reportToOutput(docID, report), nil
}

func (s *Server) handleAddCodeDirectory(
	ctx context.Context, _ *mcp.CallToolRequest, input AddCodeDirectoryInput,
) (*mcp.CallToolResult, AddCodeDirectoryOutput, error) {
	if input.DirectoryPath == "" {
		return nil, AddCodeDirectoryOutput{errorResponse: errorResponse{Status: "error", Kind: "InvalidInput", Message: "directory_path is required"}}, nil
	}
	info, err := os.Stat(input.DirectoryPath)
	if err != nil || !info.IsDir() {
		return nil, AddCodeDirectoryOutput{errorResponse: errorResponse{Status: "error", Kind: "NotFound", Message: fmt.Sprintf("directory not found: %s", input.DirectoryPath)}}, nil
	}

	extensions := input.Extensions
	if len(extensions) == 0 {
		extensions = defaultCodeExtensions
	}
	excludes := input.ExcludePatterns
	if len(excludes) == 0 {
		excludes = defaultExcludePatterns
	}

	var files []string
	walkErr := filepath.WalkDir(input.DirectoryPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !hasAnyExt(path, extensions) {
			return nil
		}
		if containsAny(path, excludes) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if walkErr != nil {
		return nil, AddCodeDirectoryOutput{errorResponse: errorResponse{Status: "error", Kind: "Internal", Message: walkErr.Error()}}, nil
	}

	out := AddCodeDirectoryOutput{errorResponse: ok(), FilesFound: len(files)}
	for _, path := range files {
		content, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			out.Failed++
			out.FailedFiles = append(out.FailedFiles, path)
			continue
		}

		meta := input.Metadata
		meta.FilePath = path
		if meta.Category == "" {
			meta.Category = string(envelope.CategoryOther)
		}
		docID := deriveDocID("", string(content))
		req := meta.toRequest("code", docID, string(content), chunkingInput{})

		if _, err := s.ports.Ingest.Ingest(ctx, req); err != nil {
			out.Failed++
			out.FailedFiles = append(out.FailedFiles, path)
			continue
		}
		out.Indexed++
		out.IndexedFiles = append(out.IndexedFiles, path)
	}

	return nil, out, nil
}

func hasAnyExt(path string, extensions []string) bool {
	ext := filepath.Ext(path)
	for _, e := range extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

func containsAny(path string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(path, p) {
			return true
		}
	}
	return false
}
