package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kailas-cloud/ingestcore/internal/repository/backupstore"
	"github.com/kailas-cloud/ingestcore/internal/usecase/bulk"
)

func (s *Server) registerBackupTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "export_documents",
		Description: "Export every record in a collection as portable document DTOs.",
	}, s.handleExportDocuments)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "import_documents",
		Description: "Import a list of document DTOs into a collection under a conflict policy.",
	}, s.handleImportDocuments)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "create_backup",
		Description: "Snapshot a collection to the filesystem backup store.",
	}, s.handleCreateBackup)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "restore_backup",
		Description: "Import a previously-created backup into a collection under a conflict policy.",
	}, s.handleRestoreBackup)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_backups",
		Description: "List every backup on the filesystem, newest first.",
	}, s.handleListBackups)
}

// DocumentDTOInput mirrors backupstore.DocumentDTO for the tool wire format.
type DocumentDTOInput struct {
	Point   string            `json:"point"`
	Content string            `json:"content"`
	Vector  []float32         `json:"vector,omitempty"`
	Fields  map[string]string `json:"fields"`
}

func (d DocumentDTOInput) toDTO() backupstore.DocumentDTO {
	return backupstore.DocumentDTO{Point: d.Point, Content: d.Content, Vector: d.Vector, Fields: d.Fields}
}

func fromDTO(d backupstore.DocumentDTO) DocumentDTOInput {
	return DocumentDTOInput{Point: d.Point, Content: d.Content, Vector: d.Vector, Fields: d.Fields}
}

// ExportDocumentsInput is export_documents' input schema.
type ExportDocumentsInput struct {
	ContentType       string `json:"content_type,omitempty" jsonschema:"docs or code (default docs)"`
	IncludeEmbeddings bool   `json:"include_embeddings,omitempty"`
}

// ExportDocumentsOutput is export_documents' output schema.
type ExportDocumentsOutput struct {
	errorResponse
	Documents []DocumentDTOInput `json:"documents"`
	Count     int                `json:"count"`
}

func (s *Server) handleExportDocuments(
	ctx context.Context, _ *mcp.CallToolRequest, input ExportDocumentsInput,
) (*mcp.CallToolResult, ExportDocumentsOutput, error) {
	collection := "documents"
	if input.ContentType == "code" {
		collection = "code"
	}
	docs, err := s.ports.Bulk.Export(ctx, collection, input.IncludeEmbeddings)
	if err != nil {
		return nil, ExportDocumentsOutput{errorResponse: mapErr(err)}, nil
	}
	out := ExportDocumentsOutput{errorResponse: ok(), Count: len(docs)}
	for _, d := range docs {
		out.Documents = append(out.Documents, fromDTO(d))
	}
	return nil, out, nil
}

// ImportDocumentsInput is import_documents' input schema.
type ImportDocumentsInput struct {
	ContentType string             `json:"content_type,omitempty" jsonschema:"docs or code (default docs)"`
	Documents   []DocumentDTOInput `json:"documents"`
	Policy      string             `json:"policy,omitempty" jsonschema:"skip, update, or error (default skip)"`
}

// ImportReportOutput mirrors bulk.ImportReport for the tool wire format.
type ImportReportOutput struct {
	errorResponse
	Imported int      `json:"imported"`
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

func reportOutput(r bulk.ImportReport) ImportReportOutput {
	return ImportReportOutput{
		errorResponse: ok(), Imported: r.Imported, Updated: r.Updated,
		Skipped: r.Skipped, Failed: r.Failed, Errors: r.Errors,
	}
}

func resolvePolicy(policy string) bulk.ImportPolicy {
	switch policy {
	case "update":
		return bulk.ImportUpdate
	case "error":
		return bulk.ImportError
	default:
		return bulk.ImportSkip
	}
}

func (s *Server) handleImportDocuments(
	ctx context.Context, _ *mcp.CallToolRequest, input ImportDocumentsInput,
) (*mcp.CallToolResult, ImportReportOutput, error) {
	collection := "documents"
	if input.ContentType == "code" {
		collection = "code"
	}
	docs := make([]backupstore.DocumentDTO, len(input.Documents))
	for i, d := range input.Documents {
		docs[i] = d.toDTO()
	}

	report, err := s.ports.Bulk.Import(ctx, collection, docs, resolvePolicy(input.Policy))
	if err != nil {
		return nil, ImportReportOutput{errorResponse: mapErr(err)}, nil
	}
	return nil, reportOutput(report), nil
}

// CreateBackupInput is create_backup's input schema.
type CreateBackupInput struct {
	ContentType       string `json:"content_type,omitempty" jsonschema:"docs or code (default docs)"`
	IncludeEmbeddings bool   `json:"include_embeddings,omitempty"`
}

// CreateBackupOutput is create_backup's output schema.
type CreateBackupOutput struct {
	errorResponse
	BackupID string `json:"backup_id"`
}

func (s *Server) handleCreateBackup(
	ctx context.Context, _ *mcp.CallToolRequest, input CreateBackupInput,
) (*mcp.CallToolResult, CreateBackupOutput, error) {
	collection := "documents"
	if input.ContentType == "code" {
		collection = "code"
	}
	manifest, err := s.ports.Bulk.CreateBackup(ctx, collection, input.IncludeEmbeddings)
	if err != nil {
		return nil, CreateBackupOutput{errorResponse: mapErr(err)}, nil
	}
	return nil, CreateBackupOutput{errorResponse: ok(), BackupID: manifest.BackupID}, nil
}

// RestoreBackupInput is restore_backup's input schema.
type RestoreBackupInput struct {
	BackupID    string `json:"backup_id"`
	ContentType string `json:"content_type,omitempty" jsonschema:"docs or code (default docs)"`
	Policy      string `json:"policy,omitempty" jsonschema:"skip, update, or error (default skip)"`
}

func (s *Server) handleRestoreBackup(
	ctx context.Context, _ *mcp.CallToolRequest, input RestoreBackupInput,
) (*mcp.CallToolResult, ImportReportOutput, error) {
	if input.BackupID == "" {
		return nil, ImportReportOutput{errorResponse: errorResponse{Status: "error", Kind: "InvalidInput", Message: "backup_id is required"}}, nil
	}
	collection := "documents"
	if input.ContentType == "code" {
		collection = "code"
	}
	report, err := s.ports.Bulk.RestoreBackup(ctx, collection, input.BackupID, resolvePolicy(input.Policy))
	if err != nil {
		return nil, ImportReportOutput{errorResponse: mapErr(err)}, nil
	}
	return nil, reportOutput(report), nil
}

// ListBackupsInput is list_backups' input schema (no parameters).
type ListBackupsInput struct{}

// BackupInfo is a single backup's metadata in the response.
type BackupInfo struct {
	BackupID          string `json:"backup_id"`
	Collection        string `json:"collection"`
	Timestamp         string `json:"timestamp"`
	DocumentCount     int    `json:"document_count"`
	IncludeEmbeddings bool   `json:"include_embeddings"`
}

// ListBackupsOutput is list_backups' output schema.
type ListBackupsOutput struct {
	errorResponse
	Backups []BackupInfo `json:"backups"`
}

func (s *Server) handleListBackups(
	ctx context.Context, _ *mcp.CallToolRequest, _ ListBackupsInput,
) (*mcp.CallToolResult, ListBackupsOutput, error) {
	metas, err := s.ports.Bulk.ListBackups(ctx)
	if err != nil {
		return nil, ListBackupsOutput{errorResponse: mapErr(err)}, nil
	}
	out := ListBackupsOutput{errorResponse: ok()}
	for _, m := range metas {
		out.Backups = append(out.Backups, BackupInfo{
			BackupID: m.BackupID, Collection: m.Collection,
			Timestamp: m.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			DocumentCount: m.DocumentCount, IncludeEmbeddings: m.IncludeEmbeddings,
		})
	}
	return nil, out, nil
}
