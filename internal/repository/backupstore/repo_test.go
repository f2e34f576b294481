package backupstore

import (
	"os"
	"testing"
)

func TestCreateBackup_StripsVectorsWhenNotIncluded(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	docs := []DocumentDTO{
		{Point: "p1", Content: "hello", Vector: []float32{1, 2, 3}, Fields: map[string]string{"doc_id": "doc1"}},
	}
	manifest, err := s.CreateBackup("documents", docs, false)
	if err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}
	if len(manifest.Files) != 2 {
		t.Fatalf("len(manifest.Files) = %d, want 2", len(manifest.Files))
	}

	restored, meta, err := s.RestoreBackup(manifest.BackupID)
	if err != nil {
		t.Fatalf("RestoreBackup: %v", err)
	}
	if meta.DocumentCount != 1 {
		t.Errorf("meta.DocumentCount = %d, want 1", meta.DocumentCount)
	}
	if restored[0].Vector != nil {
		t.Error("restored document should have no vector when includeEmbeddings was false")
	}
}

func TestCreateBackup_IncludesVectorsWhenRequested(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	docs := []DocumentDTO{{Point: "p1", Content: "hello", Vector: []float32{1, 2, 3}, Fields: map[string]string{}}}
	manifest, err := s.CreateBackup("documents", docs, true)
	if err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}

	restored, _, err := s.RestoreBackup(manifest.BackupID)
	if err != nil {
		t.Fatalf("RestoreBackup: %v", err)
	}
	if len(restored[0].Vector) != 3 {
		t.Errorf("len(restored[0].Vector) = %d, want 3", len(restored[0].Vector))
	}
}

func TestRestoreBackup_FailsClosedOnTamperedFile(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	docs := []DocumentDTO{{Point: "p1", Content: "hello", Fields: map[string]string{}}}
	manifest, err := s.CreateBackup("documents", docs, false)
	if err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}

	docsPath := dir + "/" + manifest.BackupID + "/" + documentsFilename
	if err := os.WriteFile(docsPath, []byte(`[{"point":"tampered"}]`), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, _, err := s.RestoreBackup(manifest.BackupID); err == nil {
		t.Error("RestoreBackup() error = nil, want integrity-check failure for tampered documents file")
	}
}

func TestRestoreBackup_MissingBackup(t *testing.T) {
	s := New(t.TempDir())
	if _, _, err := s.RestoreBackup("does_not_exist"); err == nil {
		t.Error("RestoreBackup() error = nil, want error for missing backup")
	}
}

func TestListBackups_NewestFirst(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	first, err := s.CreateBackup("documents", []DocumentDTO{{Point: "p1", Fields: map[string]string{}}}, false)
	if err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}
	second, err := s.CreateBackup("code", []DocumentDTO{{Point: "p2", Fields: map[string]string{}}}, false)
	if err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}

	metas, err := s.ListBackups()
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("len(metas) = %d, want 2", len(metas))
	}
	if metas[0].BackupID != second.BackupID {
		t.Errorf("metas[0] = %s, want newest %s (listing %+v)", metas[0].BackupID, second.BackupID, metas)
	}
	if metas[1].BackupID != first.BackupID {
		t.Errorf("metas[1] = %s, want oldest %s (listing %+v)", metas[1].BackupID, first.BackupID, metas)
	}
}

func TestListBackups_EmptyDirectory(t *testing.T) {
	s := New(t.TempDir() + "/does_not_exist")
	metas, err := s.ListBackups()
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(metas) != 0 {
		t.Errorf("len(metas) = %d, want 0", len(metas))
	}
}
