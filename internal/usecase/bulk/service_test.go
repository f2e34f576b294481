package bulk

import (
	"context"
	"testing"

	"github.com/kailas-cloud/ingestcore/internal/domain/envelope"
	"github.com/kailas-cloud/ingestcore/internal/domain/record"
	"github.com/kailas-cloud/ingestcore/internal/domain/search/filterexpr"
	"github.com/kailas-cloud/ingestcore/internal/repository/backupstore"
	"github.com/kailas-cloud/ingestcore/internal/usecase/ingest"
)

type fakeRepo struct {
	records        map[record.PointRef]record.Record
	mutateCalls    int
	deleteCalls    int
	patchCalls     map[record.PointRef]map[string]string
	mutateByFilter func(filter *filterexpr.Node, patch map[string]any) (int, error)
	deleteByFilter func(filter *filterexpr.Node) (int, error)
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: map[record.PointRef]record.Record{}, patchCalls: map[record.PointRef]map[string]string{}}
}

func (f *fakeRepo) StatusByHashContent(ctx context.Context, hashContent string) (string, bool, error) {
	return "", false, nil
}

func (f *fakeRepo) MutateByHashContent(ctx context.Context, hashContent string, patch map[string]any) (int, error) {
	return 0, nil
}

func (f *fakeRepo) FindByFilter(ctx context.Context, collection string, filter *filterexpr.Node, offset, limit int) ([]record.Record, int, error) {
	var out []record.Record
	for _, r := range f.records {
		out = append(out, r)
	}
	return out, len(out), nil
}

func (f *fakeRepo) Get(ctx context.Context, collection string, point record.PointRef) (record.Record, bool, error) {
	r, ok := f.records[point]
	return r, ok, nil
}

func (f *fakeRepo) MutateByFilter(ctx context.Context, collection string, filter *filterexpr.Node, patch map[string]any) (int, error) {
	f.mutateCalls++
	if f.mutateByFilter != nil {
		return f.mutateByFilter(filter, patch)
	}
	return len(f.records), nil
}

func (f *fakeRepo) DeleteByFilter(ctx context.Context, collection string, filter *filterexpr.Node) (int, error) {
	f.deleteCalls++
	if f.deleteByFilter != nil {
		return f.deleteByFilter(filter)
	}
	n := len(f.records)
	f.records = map[record.PointRef]record.Record{}
	return n, nil
}

func (f *fakeRepo) PatchPoint(ctx context.Context, collection string, point record.PointRef, patch map[string]string) error {
	f.patchCalls[point] = patch
	return nil
}

type fakeBackups struct {
	created  backupstore.Manifest
	restored []backupstore.DocumentDTO
	listed   []backupstore.Metadata
}

func (f *fakeBackups) CreateBackup(collection string, docs []backupstore.DocumentDTO, includeEmbeddings bool) (backupstore.Manifest, error) {
	return f.created, nil
}

func (f *fakeBackups) RestoreBackup(backupID string) ([]backupstore.DocumentDTO, backupstore.Metadata, error) {
	return f.restored, backupstore.Metadata{BackupID: backupID}, nil
}

func (f *fakeBackups) ListBackups() ([]backupstore.Metadata, error) {
	return f.listed, nil
}

type fakeIngester struct {
	calls int
	err   error
}

func (f *fakeIngester) Ingest(ctx context.Context, req ingest.IngestRequest) (ingest.Report, error) {
	f.calls++
	if f.err != nil {
		return ingest.Report{}, f.err
	}
	return ingest.Report{RecordRef: record.PointRef(req.DocID)}, nil
}

func testRecord(point, docID string, hashContent, metadataHash string) record.Record {
	env, _ := envelope.New(envelope.BuildParams{
		DocID: docID, Category: envelope.CategoryOther, HashContent: hashContent,
	})
	if metadataHash == "" {
		env = envelope.Reconstruct(
			env.DocID(), env.Version(), env.Category(), env.Status(),
			env.HashContent(), "", env.CreatedAt(), env.UpdatedAt(),
			env.FilePath(), env.FileHash(), env.Source(), env.Repo(), env.Tags(),
			env.IsChunk(), env.ChunkID(), env.ChunkIndex(), env.ParentDocID(), env.TotalChunks(),
		)
	}
	return record.NewDocument(record.PointRef(point), env, "some content", nil)
}

func TestBulkUpdateMetadata_RejectsEmptyPatch(t *testing.T) {
	s := New(newFakeRepo(), &fakeBackups{}, &fakeIngester{})
	if _, err := s.BulkUpdateMetadata(context.Background(), "documents", nil, nil); err == nil {
		t.Error("BulkUpdateMetadata() error = nil, want error for empty patch")
	}
}

func TestBulkUpdateMetadata_StampsUpdatedAt(t *testing.T) {
	repo := newFakeRepo()
	var gotPatch map[string]any
	repo.mutateByFilter = func(filter *filterexpr.Node, patch map[string]any) (int, error) {
		gotPatch = patch
		return 3, nil
	}
	s := New(repo, &fakeBackups{}, &fakeIngester{})

	n, err := s.BulkUpdateMetadata(context.Background(), "documents", nil, map[string]any{"category": "design_doc"})
	if err != nil {
		t.Fatalf("BulkUpdateMetadata: %v", err)
	}
	if n != 3 {
		t.Errorf("n = %d, want 3", n)
	}
	if gotPatch["updated_at"] == "" {
		t.Error("patch missing updated_at stamp")
	}
}

func TestDeleteByFilter_RequiresFilter(t *testing.T) {
	s := New(newFakeRepo(), &fakeBackups{}, &fakeIngester{})
	if _, err := s.DeleteByFilter(context.Background(), "documents", nil); err == nil {
		t.Error("DeleteByFilter() error = nil, want error for nil filter")
	}
}

func TestDeleteByFilter_DelegatesToRepo(t *testing.T) {
	repo := newFakeRepo()
	repo.records["p1"] = testRecord("p1", "doc1", "h1", "m1")
	filter, _ := filterexpr.Eq("category", "other")
	s := New(repo, &fakeBackups{}, &fakeIngester{})

	n, err := s.DeleteByFilter(context.Background(), "documents", &filter)
	if err != nil {
		t.Fatalf("DeleteByFilter: %v", err)
	}
	if n != 1 {
		t.Errorf("n = %d, want 1", n)
	}
	if repo.deleteCalls != 1 {
		t.Errorf("deleteCalls = %d, want 1", repo.deleteCalls)
	}
}

func TestClearAll_RequiresConfirm(t *testing.T) {
	s := New(newFakeRepo(), &fakeBackups{}, &fakeIngester{})
	if _, err := s.ClearAll(context.Background(), "documents", false); err == nil {
		t.Error("ClearAll() error = nil, want error without confirm")
	}
}

func TestClearAll_Confirmed(t *testing.T) {
	repo := newFakeRepo()
	repo.records["p1"] = testRecord("p1", "doc1", "h1", "m1")
	repo.records["p2"] = testRecord("p2", "doc2", "h2", "m2")
	s := New(repo, &fakeBackups{}, &fakeIngester{})

	n, err := s.ClearAll(context.Background(), "documents", true)
	if err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if n != 2 {
		t.Errorf("n = %d, want 2", n)
	}
}

func TestExport_MapsRecordsToDTOs(t *testing.T) {
	repo := newFakeRepo()
	repo.records["p1"] = testRecord("p1", "doc1", "h1", "m1")
	s := New(repo, &fakeBackups{}, &fakeIngester{})

	docs, err := s.Export(context.Background(), "documents", false)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("len(docs) = %d, want 1", len(docs))
	}
	if docs[0].Point != "p1" {
		t.Errorf("docs[0].Point = %q, want p1", docs[0].Point)
	}
	if docs[0].Vector != nil {
		t.Error("docs[0].Vector should be nil when includeEmbeddings is false")
	}
	if docs[0].Fields["doc_id"] != "doc1" {
		t.Errorf("docs[0].Fields[doc_id] = %q, want doc1", docs[0].Fields["doc_id"])
	}
}

func TestImport_NewDocumentIngestsAndCounts(t *testing.T) {
	repo := newFakeRepo()
	ingester := &fakeIngester{}
	s := New(repo, &fakeBackups{}, ingester)

	doc := backupstore.DocumentDTO{Point: "p1", Content: "hello", Fields: map[string]string{"doc_id": "doc1", "category": "other"}}
	report, err := s.Import(context.Background(), "documents", []backupstore.DocumentDTO{doc}, ImportSkip)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if report.Imported != 1 || report.Skipped != 0 || report.Failed != 0 {
		t.Errorf("report = %+v, want Imported=1", report)
	}
	if ingester.calls != 1 {
		t.Errorf("ingester.calls = %d, want 1", ingester.calls)
	}
}

func TestImport_ExistingSkipPolicy(t *testing.T) {
	repo := newFakeRepo()
	repo.records["p1"] = testRecord("p1", "doc1", "h1", "m1")
	ingester := &fakeIngester{}
	s := New(repo, &fakeBackups{}, ingester)

	doc := backupstore.DocumentDTO{Point: "p1", Content: "hello", Fields: map[string]string{"doc_id": "doc1"}}
	report, err := s.Import(context.Background(), "documents", []backupstore.DocumentDTO{doc}, ImportSkip)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if report.Skipped != 1 || ingester.calls != 0 {
		t.Errorf("report = %+v, ingester.calls = %d, want Skipped=1 and no ingest call", report, ingester.calls)
	}
}

func TestImport_ExistingErrorPolicy(t *testing.T) {
	repo := newFakeRepo()
	repo.records["p1"] = testRecord("p1", "doc1", "h1", "m1")
	s := New(repo, &fakeBackups{}, &fakeIngester{})

	doc := backupstore.DocumentDTO{Point: "p1", Content: "hello", Fields: map[string]string{"doc_id": "doc1"}}
	report, err := s.Import(context.Background(), "documents", []backupstore.DocumentDTO{doc}, ImportError)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if report.Failed != 1 {
		t.Errorf("report = %+v, want Failed=1", report)
	}
}

func TestImport_ExistingUpdatePolicyReingests(t *testing.T) {
	repo := newFakeRepo()
	repo.records["p1"] = testRecord("p1", "doc1", "h1", "m1")
	ingester := &fakeIngester{}
	s := New(repo, &fakeBackups{}, ingester)

	doc := backupstore.DocumentDTO{Point: "p1", Content: "hello updated", Fields: map[string]string{"doc_id": "doc1"}}
	report, err := s.Import(context.Background(), "documents", []backupstore.DocumentDTO{doc}, ImportUpdate)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if report.Updated != 1 || ingester.calls != 1 {
		t.Errorf("report = %+v, ingester.calls = %d, want Updated=1 and one ingest call", report, ingester.calls)
	}
}

func TestCreateBackup_DelegatesAfterExport(t *testing.T) {
	repo := newFakeRepo()
	repo.records["p1"] = testRecord("p1", "doc1", "h1", "m1")
	backups := &fakeBackups{created: backupstore.Manifest{BackupID: "backup_documents_1"}}
	s := New(repo, backups, &fakeIngester{})

	manifest, err := s.CreateBackup(context.Background(), "documents", true)
	if err != nil {
		t.Fatalf("CreateBackup: %v", err)
	}
	if manifest.BackupID != "backup_documents_1" {
		t.Errorf("manifest.BackupID = %q", manifest.BackupID)
	}
}

func TestRestoreBackup_ImportsRestoredDocs(t *testing.T) {
	backups := &fakeBackups{restored: []backupstore.DocumentDTO{
		{Point: "p1", Content: "hello", Fields: map[string]string{"doc_id": "doc1"}},
	}}
	ingester := &fakeIngester{}
	s := New(newFakeRepo(), backups, ingester)

	report, err := s.RestoreBackup(context.Background(), "documents", "backup_documents_1", ImportSkip)
	if err != nil {
		t.Fatalf("RestoreBackup: %v", err)
	}
	if report.Imported != 1 || ingester.calls != 1 {
		t.Errorf("report = %+v, want Imported=1", report)
	}
}

func TestListBackups_Delegates(t *testing.T) {
	backups := &fakeBackups{listed: []backupstore.Metadata{{BackupID: "b1"}, {BackupID: "b2"}}}
	s := New(newFakeRepo(), backups, &fakeIngester{})

	metas, err := s.ListBackups(context.Background())
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(metas) != 2 {
		t.Errorf("len(metas) = %d, want 2", len(metas))
	}
}

func TestBackfillMetadataHash_SkipsAlreadyMigrated(t *testing.T) {
	repo := newFakeRepo()
	repo.records["p1"] = testRecord("p1", "doc1", "h1", "m1")
	s := New(repo, &fakeBackups{}, &fakeIngester{})

	report, err := s.BackfillMetadataHash(context.Background(), "documents", false)
	if err != nil {
		t.Fatalf("BackfillMetadataHash: %v", err)
	}
	if report.Backfilled != 0 {
		t.Errorf("Backfilled = %d, want 0 for a fully-migrated record", report.Backfilled)
	}
}

func TestBackfillMetadataHash_BackfillsMissingMetadataHash(t *testing.T) {
	repo := newFakeRepo()
	repo.records["p1"] = testRecord("p1", "doc1", "h1", "")
	s := New(repo, &fakeBackups{}, &fakeIngester{})

	report, err := s.BackfillMetadataHash(context.Background(), "documents", false)
	if err != nil {
		t.Fatalf("BackfillMetadataHash: %v", err)
	}
	if report.Backfilled != 1 {
		t.Errorf("Backfilled = %d, want 1", report.Backfilled)
	}
	patch, ok := repo.patchCalls["p1"]
	if !ok {
		t.Fatal("PatchPoint was not called for p1")
	}
	if patch["metadata_hash"] == "" {
		t.Error("patch missing metadata_hash")
	}
}

func TestBackfillMetadataHash_DryRunDoesNotPatch(t *testing.T) {
	repo := newFakeRepo()
	repo.records["p1"] = testRecord("p1", "doc1", "h1", "")
	s := New(repo, &fakeBackups{}, &fakeIngester{})

	report, err := s.BackfillMetadataHash(context.Background(), "documents", true)
	if err != nil {
		t.Fatalf("BackfillMetadataHash: %v", err)
	}
	if report.Backfilled != 1 {
		t.Errorf("Backfilled = %d, want 1", report.Backfilled)
	}
	if len(repo.patchCalls) != 0 {
		t.Error("dry run should not call PatchPoint")
	}
}
