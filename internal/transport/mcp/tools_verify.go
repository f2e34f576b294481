package mcp

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kailas-cloud/ingestcore/internal/domain/fingerprint"
	"github.com/kailas-cloud/ingestcore/internal/domain/ingesterr"
	"github.com/kailas-cloud/ingestcore/internal/usecase/query"
)

func (s *Server) registerVerificationTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "verify_document",
		Description: "Recompute a document's quality vector (content, length, placeholders, required fields, hash, status) and report its score against the pass threshold.",
	}, s.handleVerifyDocument)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "verify_category",
		Description: "Run the quality vector check across every record in a collection.",
	}, s.handleVerifyCategory)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "audit_storage_integrity",
		Description: "Compare a source directory's file contents against stored records by file_path, reporting missing/mismatched/extra/passed counts.",
	}, s.handleAuditStorageIntegrity)
}

func verificationOutput(v query.Verification) VerifyDocumentOutput {
	return VerifyDocumentOutput{
		errorResponse: ok(), Found: v.Found, DocID: v.DocID,
		ContentHashMatch: v.ContentHashMatch, MetadataHashMatch: v.MetadataHashMatch,
		HasContent: v.Quality.HasContent, MinLength: v.Quality.MinLength,
		NoPlaceholder: v.Quality.NoPlaceholder, HasRequiredFields: v.Quality.HasRequiredFields,
		HashValid: v.Quality.HashValid, HasStatus: v.Quality.HasStatus,
		QualityScore: v.QualityScore, QualityThreshold: v.QualityThreshold, Passed: v.Passed,
	}
}

// VerifyDocumentInput is verify_document's input schema.
type VerifyDocumentInput struct {
	DocID       string `json:"doc_id"`
	ContentType string `json:"content_type,omitempty" jsonschema:"docs or code (default docs)"`
}

// VerifyDocumentOutput is verify_document's output schema.
type VerifyDocumentOutput struct {
	errorResponse
	Found             bool    `json:"found"`
	DocID             string  `json:"doc_id,omitempty"`
	ContentHashMatch  bool    `json:"content_hash_match"`
	MetadataHashMatch bool    `json:"metadata_hash_match"`
	HasContent        bool    `json:"has_content"`
	MinLength         bool    `json:"min_length"`
	NoPlaceholder     bool    `json:"no_placeholder"`
	HasRequiredFields bool    `json:"has_required_fields"`
	HashValid         bool    `json:"hash_valid"`
	HasStatus         bool    `json:"has_status"`
	QualityScore      float64 `json:"quality_score"`
	QualityThreshold  float64 `json:"quality_threshold"`
	Passed            bool    `json:"passed"`
}

func (s *Server) handleVerifyDocument(
	ctx context.Context, _ *mcp.CallToolRequest, input VerifyDocumentInput,
) (*mcp.CallToolResult, VerifyDocumentOutput, error) {
	if input.DocID == "" {
		return nil, VerifyDocumentOutput{errorResponse: errorResponse{Status: "error", Kind: "InvalidInput", Message: "doc_id is required"}}, nil
	}
	collection := "documents"
	if input.ContentType == "code" {
		collection = "code"
	}
	v, err := s.ports.Query.VerifyDocument(ctx, collection, input.DocID)
	if err != nil {
		return nil, VerifyDocumentOutput{errorResponse: mapErr(err)}, nil
	}
	return nil, verificationOutput(v), nil
}

// VerifyCategoryInput is verify_category's input schema.
type VerifyCategoryInput struct {
	ContentType string `json:"content_type,omitempty" jsonschema:"docs or code (default docs)"`
}

// VerifyCategoryOutput is verify_category's output schema.
type VerifyCategoryOutput struct {
	errorResponse
	Checked    int                    `json:"checked"`
	Truncated  bool                   `json:"truncated"`
	Mismatched []VerifyDocumentOutput `json:"mismatched,omitempty"`
}

func (s *Server) handleVerifyCategory(
	ctx context.Context, _ *mcp.CallToolRequest, input VerifyCategoryInput,
) (*mcp.CallToolResult, VerifyCategoryOutput, error) {
	collection := "documents"
	if input.ContentType == "code" {
		collection = "code"
	}
	report, err := s.ports.Query.VerifyCategory(ctx, collection)
	if err != nil {
		return nil, VerifyCategoryOutput{errorResponse: mapErr(err)}, nil
	}

	out := VerifyCategoryOutput{errorResponse: ok(), Checked: report.Checked, Truncated: report.Truncated}
	for _, m := range report.Mismatched {
		out.Mismatched = append(out.Mismatched, verificationOutput(m))
	}
	return nil, out, nil
}

// AuditStorageIntegrityInput is audit_storage_integrity's input schema.
type AuditStorageIntegrityInput struct {
	SourceDirectory string   `json:"source_directory"`
	Recursive       bool     `json:"recursive,omitempty"`
	FileExtensions  []string `json:"file_extensions,omitempty" jsonschema:"limit the walk to these extensions; empty means every file"`
}

// AuditStorageIntegrityOutput is audit_storage_integrity's output schema.
type AuditStorageIntegrityOutput struct {
	errorResponse
	Missing        []string `json:"missing,omitempty"`
	Mismatch       []string `json:"mismatch,omitempty"`
	Extra          []string `json:"extra,omitempty"`
	Passed         int      `json:"passed"`
	IntegrityScore float64  `json:"integrity_score"`
}

// handleAuditStorageIntegrity walks source_directory, comparing each
// file's recomputed hash_content against the stored record indexed under
// its file_path in both known collections: missing (on disk, not stored),
// mismatch (stored hash disagrees with the file's current content), extra
// (stored under a file_path with no file on disk), passed (agrees).
func (s *Server) handleAuditStorageIntegrity(
	ctx context.Context, _ *mcp.CallToolRequest, input AuditStorageIntegrityInput,
) (*mcp.CallToolResult, AuditStorageIntegrityOutput, error) {
	if input.SourceDirectory == "" {
		return nil, AuditStorageIntegrityOutput{errorResponse: errorResponse{Status: "error", Kind: "InvalidInput", Message: "source_directory is required"}}, nil
	}
	info, err := os.Stat(input.SourceDirectory)
	if err != nil || !info.IsDir() {
		return nil, AuditStorageIntegrityOutput{errorResponse: errorResponse{Status: "error", Kind: "NotFound", Message: "directory not found: " + input.SourceDirectory}}, nil
	}

	onDisk := map[string]string{} // file_path -> recomputed hash_content
	walkErr := filepath.WalkDir(input.SourceDirectory, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !input.Recursive && path != input.SourceDirectory {
				return filepath.SkipDir
			}
			return nil
		}
		if len(input.FileExtensions) > 0 && !hasAnyExt(path, input.FileExtensions) {
			return nil
		}
		content, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil
		}
		onDisk[path] = fingerprint.HashContent(string(content))
		return nil
	})
	if walkErr != nil {
		return nil, AuditStorageIntegrityOutput{errorResponse: mapErr(ingesterr.Internal(walkErr))}, nil
	}

	stored := map[string]string{} // file_path -> stored hash_content
	for _, collection := range []string{"documents", "code"} {
		index, err := s.ports.Query.FilePathIndex(ctx, collection)
		if err != nil {
			return nil, AuditStorageIntegrityOutput{errorResponse: mapErr(err)}, nil
		}
		for path, rec := range index {
			stored[path] = rec.Envelope.HashContent()
		}
	}

	out := AuditStorageIntegrityOutput{errorResponse: ok()}
	for path, hash := range onDisk {
		storedHash, found := stored[path]
		switch {
		case !found:
			out.Missing = append(out.Missing, path)
		case storedHash != hash:
			out.Mismatch = append(out.Mismatch, path)
		default:
			out.Passed++
		}
	}
	for path := range stored {
		if _, onDiskFound := onDisk[path]; !onDiskFound {
			out.Extra = append(out.Extra, path)
		}
	}

	total := len(onDisk)
	if total == 0 {
		out.IntegrityScore = 1
	} else {
		out.IntegrityScore = float64(out.Passed) / float64(total)
	}

	sort.Strings(out.Missing)
	sort.Strings(out.Mismatch)
	sort.Strings(out.Extra)
	return nil, out, nil
}
