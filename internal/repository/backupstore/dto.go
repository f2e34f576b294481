// Package backupstore implements the local filesystem backup/restore
// layer: a timestamped directory per backup holding documents.parquet,
// metadata.json, and manifest.json, grounded on backup_restore_service.py's
// create_backup/restore_backup shape.
package backupstore

import "time"

// DocumentDTO is a single backed-up record: its point reference, raw
// content, optional vector, and the full flat field set envelope.ToPayload
// produces (so restore can reconstruct the envelope without re-deriving
// anything). The parquet tags give it a columnar on-disk form — backups
// hold many thousands of near-identical rows, the case parquet is for.
type DocumentDTO struct {
	Point   string            `json:"point" parquet:"point"`
	Content string            `json:"content" parquet:"content"`
	Vector  []float32         `json:"vector,omitempty" parquet:"vector,optional,list"`
	Fields  map[string]string `json:"fields" parquet:"fields"`
}

// Metadata describes a single backup.
type Metadata struct {
	BackupID          string    `json:"backup_id"`
	Collection        string    `json:"collection_name"`
	Timestamp         time.Time `json:"timestamp"`
	DocumentCount     int       `json:"document_count"`
	IncludeEmbeddings bool      `json:"include_embeddings"`
	BackupVersion     string    `json:"backup_version"`
}

// ManifestFile records one backup file's checksum and size.
type ManifestFile struct {
	Filename string `json:"filename"`
	Checksum string `json:"checksum"`
	Size     int64  `json:"size"`
}

// Manifest lists every file a backup wrote, for integrity verification
// before restore.
type Manifest struct {
	BackupID  string         `json:"backup_id"`
	Files     []ManifestFile `json:"files"`
	CreatedAt time.Time      `json:"created_at"`
}

const backupVersion = "1.0"

const (
	documentsFilename = "documents.parquet"
	metadataFilename  = "metadata.json"
	manifestFilename  = "manifest.json"
)
