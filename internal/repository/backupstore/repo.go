package backupstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"
)

// Store writes and reads backups under a root Directory, one
// subdirectory per backup.
type Store struct {
	Directory string
}

// New creates a backup store rooted at directory.
func New(directory string) *Store {
	return &Store{Directory: directory}
}

// CreateBackup writes docs to a new timestamped backup directory for
// collection and returns its manifest.
func (s *Store) CreateBackup(collection string, docs []DocumentDTO, includeEmbeddings bool) (Manifest, error) {
	now := time.Now().UTC()
	backupID := fmt.Sprintf("backup_%s_%s", collection, now.Format("20060102_150405"))
	dir := filepath.Join(s.Directory, backupID)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Manifest{}, fmt.Errorf("backupstore: mkdir %s: %w", dir, err)
	}

	if !includeEmbeddings {
		docs = stripVectors(docs)
	}

	docsPath := filepath.Join(dir, documentsFilename)
	docsChecksum, docsSize, err := writeParquet(docsPath, docs)
	if err != nil {
		return Manifest{}, err
	}

	meta := Metadata{
		BackupID:          backupID,
		Collection:        collection,
		Timestamp:         now,
		DocumentCount:     len(docs),
		IncludeEmbeddings: includeEmbeddings,
		BackupVersion:     backupVersion,
	}
	metaPath := filepath.Join(dir, metadataFilename)
	metaChecksum, metaSize, err := writeJSON(metaPath, meta)
	if err != nil {
		return Manifest{}, err
	}

	manifest := Manifest{
		BackupID: backupID,
		Files: []ManifestFile{
			{Filename: documentsFilename, Checksum: docsChecksum, Size: docsSize},
			{Filename: metadataFilename, Checksum: metaChecksum, Size: metaSize},
		},
		CreatedAt: now,
	}
	if _, _, err := writeJSON(filepath.Join(dir, manifestFilename), manifest); err != nil {
		return Manifest{}, err
	}

	return manifest, nil
}

// RestoreBackup reads and integrity-checks a backup directory, returning
// its documents and metadata. Integrity checking recomputes each listed
// file's checksum and fails closed if any file was tampered with or is
// missing, before a single document is returned to the caller.
func (s *Store) RestoreBackup(backupID string) ([]DocumentDTO, Metadata, error) {
	dir := filepath.Join(s.Directory, backupID)

	var manifest Manifest
	if err := readJSON(filepath.Join(dir, manifestFilename), &manifest); err != nil {
		return nil, Metadata{}, fmt.Errorf("backupstore: read manifest: %w", err)
	}

	for _, f := range manifest.Files {
		path := filepath.Join(dir, f.Filename)
		checksum, size, err := fileChecksum(path)
		if err != nil {
			return nil, Metadata{}, fmt.Errorf("backupstore: checksum %s: %w", f.Filename, err)
		}
		if checksum != f.Checksum || size != f.Size {
			return nil, Metadata{}, fmt.Errorf("backupstore: %s failed integrity check", f.Filename)
		}
	}

	docs, err := readParquet(filepath.Join(dir, documentsFilename))
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("backupstore: read documents: %w", err)
	}

	var meta Metadata
	if err := readJSON(filepath.Join(dir, metadataFilename), &meta); err != nil {
		return nil, Metadata{}, fmt.Errorf("backupstore: read metadata: %w", err)
	}

	return docs, meta, nil
}

// ListBackups returns the metadata of every backup under Directory,
// newest first.
func (s *Store) ListBackups() ([]Metadata, error) {
	entries, err := os.ReadDir(s.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("backupstore: read dir %s: %w", s.Directory, err)
	}

	var metas []Metadata
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		var meta Metadata
		path := filepath.Join(s.Directory, e.Name(), metadataFilename)
		if err := readJSON(path, &meta); err != nil {
			continue // not a backup directory (or corrupt); skip rather than fail the whole list
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool { return metas[i].Timestamp.After(metas[j].Timestamp) })
	return metas, nil
}

func stripVectors(docs []DocumentDTO) []DocumentDTO {
	out := make([]DocumentDTO, len(docs))
	for i, d := range docs {
		d.Vector = nil
		out[i] = d
	}
	return out
}

func writeJSON(path string, v any) (checksum string, size int64, err error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", 0, fmt.Errorf("backupstore: marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", 0, fmt.Errorf("backupstore: write %s: %w", path, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), int64(len(data)), nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// writeParquet writes docs as a columnar parquet file and returns its
// checksum and size, the same contract as writeJSON so CreateBackup can
// treat every backup artifact uniformly for the manifest.
func writeParquet(path string, docs []DocumentDTO) (checksum string, size int64, err error) {
	if err := parquet.WriteFile(path, docs); err != nil {
		return "", 0, fmt.Errorf("backupstore: write parquet %s: %w", filepath.Base(path), err)
	}
	return fileChecksum(path)
}

func readParquet(path string) ([]DocumentDTO, error) {
	docs, err := parquet.ReadFile[DocumentDTO](path)
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func fileChecksum(path string) (checksum string, size int64, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), int64(len(data)), nil
}
