package record

import (
	"context"
	"strings"
	"testing"

	"github.com/kailas-cloud/ingestcore/internal/db"
	"github.com/kailas-cloud/ingestcore/internal/domain/envelope"
	domrecord "github.com/kailas-cloud/ingestcore/internal/domain/record"
	"github.com/kailas-cloud/ingestcore/internal/domain/search/filterexpr"
)

// memStore is a minimal in-memory stand-in for db.Store's hash/search
// surface, just enough to exercise Repo's key construction and the
// filterexpr.Node predicates it builds.
type memStore struct {
	hashes map[string]map[string]string
}

func newMemStore() *memStore {
	return &memStore{hashes: map[string]map[string]string{}}
}

func (m *memStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	existing, ok := m.hashes[key]
	if !ok {
		existing = map[string]string{}
		m.hashes[key] = existing
	}
	for k, v := range fields {
		existing[k] = v
	}
	return nil
}

func (m *memStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return m.hashes[key], nil
}

func (m *memStore) Del(ctx context.Context, key string) error {
	delete(m.hashes, key)
	return nil
}

func (m *memStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.hashes[key]
	return ok, nil
}

// SearchFilter evaluates filter against every stored hash under the
// index's collection key prefix, standing in for the backend's FT.SEARCH
// translation.
func (m *memStore) SearchFilter(ctx context.Context, index string, filter *filterexpr.Node, offset, limit int, fields []string) (*db.SearchResult, error) {
	prefix := strings.TrimSuffix(index, "idx")
	var entries []db.SearchEntry
	for key, hash := range m.hashes {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if filter != nil && !matches(*filter, hash) {
			continue
		}
		entries = append(entries, db.SearchEntry{Key: key, Fields: hash})
	}
	total := len(entries)
	if offset < len(entries) {
		entries = entries[offset:]
	} else {
		entries = nil
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	} else if limit == 0 {
		entries = nil
	}
	return &db.SearchResult{Total: total, Entries: entries}, nil
}

func matches(n filterexpr.Node, hash map[string]string) bool {
	switch {
	case n.IsLeaf():
		leaf := n.AsLeaf()
		v, _ := leaf.Value.(string)
		switch leaf.Op {
		case filterexpr.OpEq:
			return hash[leaf.Field] == v
		case filterexpr.OpNe:
			return hash[leaf.Field] != v
		default:
			return false
		}
	case n.IsAnd():
		for _, c := range n.Children() {
			if !matches(c, hash) {
				return false
			}
		}
		return true
	case n.IsOr():
		for _, c := range n.Children() {
			if matches(c, hash) {
				return true
			}
		}
		return false
	case n.IsNot():
		return !matches(n.Children()[0], hash)
	}
	return false
}

func testDoc(docID, hashContent string, status envelope.Status, filePath string) domrecord.Record {
	env, err := envelope.New(envelope.BuildParams{
		DocID: docID, Category: envelope.CategoryOther, Status: status,
		HashContent: hashContent, FilePath: filePath,
	})
	if err != nil {
		panic(err)
	}
	return domrecord.NewDocument(domrecord.PointRef(docID), env, "content for "+docID, nil)
}

func TestStore_AndGet_RoundTrip(t *testing.T) {
	repo := New(newMemStore())
	rec := testDoc("doc1", "h1", envelope.StatusActive, "/a/b.md")

	point, err := repo.Store(context.Background(), "documents", rec)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if point != "doc1:h1" {
		t.Errorf("point = %q, want doc1:h1", point)
	}

	got, found, err := repo.Get(context.Background(), "documents", point)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found {
		t.Fatal("Get() found = false, want true")
	}
	if got.Envelope.DocID() != "doc1" || got.Content != "content for doc1" {
		t.Errorf("Get() = %+v", got)
	}
}

func TestStore_RejectsEmptyPoint(t *testing.T) {
	repo := New(newMemStore())
	env, _ := envelope.New(envelope.BuildParams{DocID: "d", Category: envelope.CategoryOther, HashContent: "h"})
	rec := domrecord.NewChunk("", env, "c", nil)
	rec.Envelope = envelope.Reconstruct(
		"", env.Version(), env.Category(), env.Status(), env.HashContent(), env.MetadataHash(),
		env.CreatedAt(), env.UpdatedAt(), "", "", "", "", nil, true, "", 0, "", 1,
	)

	if _, err := repo.Store(context.Background(), "documents", rec); err == nil {
		t.Error("Store() error = nil, want error for empty point identifier")
	}
}

func TestGetByPath_FindsMatchingRecord(t *testing.T) {
	repo := New(newMemStore())
	rec := testDoc("doc1", "h1", envelope.StatusActive, "/a/b.md")
	if _, err := repo.Store(context.Background(), "documents", rec); err != nil {
		t.Fatalf("Store: %v", err)
	}

	got, found, err := repo.GetByPath(context.Background(), "documents", "/a/b.md")
	if err != nil {
		t.Fatalf("GetByPath: %v", err)
	}
	if !found || got.Envelope.DocID() != "doc1" {
		t.Errorf("GetByPath() = %+v, %v", got, found)
	}
}

func TestGetByPath_NotFound(t *testing.T) {
	repo := New(newMemStore())
	_, found, err := repo.GetByPath(context.Background(), "documents", "/missing.md")
	if err != nil {
		t.Fatalf("GetByPath: %v", err)
	}
	if found {
		t.Error("GetByPath() found = true, want false")
	}
}

func TestDelete_RemovesRecord(t *testing.T) {
	repo := New(newMemStore())
	rec := testDoc("doc1", "h1", envelope.StatusActive, "")
	point, err := repo.Store(context.Background(), "documents", rec)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	if err := repo.Delete(context.Background(), "documents", point); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, found, err := repo.Get(context.Background(), "documents", point)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if found {
		t.Error("Get() found = true after Delete, want false")
	}
}

func TestFindCandidates_MatchesByDocIDOrMetadataHash(t *testing.T) {
	repo := New(newMemStore())
	docA := testDoc("docA", "hA", envelope.StatusActive, "")
	if _, err := repo.Store(context.Background(), "documents", docA); err != nil {
		t.Fatalf("Store: %v", err)
	}

	candidates, err := repo.FindCandidates(context.Background(), "documents", "docA", "nonexistent-metadata-hash")
	if err != nil {
		t.Fatalf("FindCandidates: %v", err)
	}
	if len(candidates) != 1 || candidates[0].Fingerprint.DocID != "docA" {
		t.Errorf("FindCandidates() = %+v", candidates)
	}
}

func TestMutateByHashContent_UpdatesStatus(t *testing.T) {
	repo := New(newMemStore())
	rec := testDoc("doc1", "h1", envelope.StatusActive, "")
	if _, err := repo.Store(context.Background(), "documents", rec); err != nil {
		t.Fatalf("Store: %v", err)
	}

	matched, err := repo.MutateByHashContent(context.Background(), "h1", map[string]any{"status": "deprecated"})
	if err != nil {
		t.Fatalf("MutateByHashContent: %v", err)
	}
	if matched != 1 {
		t.Errorf("matched = %d, want 1", matched)
	}

	status, found, err := repo.StatusByHashContent(context.Background(), "h1")
	if err != nil {
		t.Fatalf("StatusByHashContent: %v", err)
	}
	if !found || status != "deprecated" {
		t.Errorf("StatusByHashContent() = %q, %v, want deprecated, true", status, found)
	}
}

func TestDeleteByFilter_DeletesMatches(t *testing.T) {
	repo := New(newMemStore())
	if _, err := repo.Store(context.Background(), "documents", testDoc("doc1", "h1", envelope.StatusActive, "")); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, err := repo.Store(context.Background(), "documents", testDoc("doc2", "h2", envelope.StatusDeprecated, "")); err != nil {
		t.Fatalf("Store: %v", err)
	}

	eq, _ := filterexpr.Eq("status", "active")
	deleted, err := repo.DeleteByFilter(context.Background(), "documents", &eq)
	if err != nil {
		t.Fatalf("DeleteByFilter: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	_, found, _ := repo.Get(context.Background(), "documents", "doc2:h2")
	if !found {
		t.Error("deprecated record should not have been deleted")
	}
}

func TestPatchPoint_WritesRawFields(t *testing.T) {
	repo := New(newMemStore())
	point, err := repo.Store(context.Background(), "documents", testDoc("doc1", "h1", envelope.StatusActive, ""))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	if err := repo.PatchPoint(context.Background(), "documents", point, map[string]string{"metadata_hash": "new-hash"}); err != nil {
		t.Fatalf("PatchPoint: %v", err)
	}

	got, _, err := repo.Get(context.Background(), "documents", point)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Envelope.MetadataHash() != "new-hash" {
		t.Errorf("MetadataHash() = %q, want new-hash", got.Envelope.MetadataHash())
	}
}

func TestStore_TwoVersionsSameDocIDBothSurvive(t *testing.T) {
	repo := New(newMemStore())
	ctx := context.Background()

	v1 := testDoc("docA", "h1", envelope.StatusActive, "")
	if _, err := repo.Store(ctx, "documents", v1); err != nil {
		t.Fatalf("Store v1: %v", err)
	}
	if err := versioningDeprecate(ctx, repo, "h1"); err != nil {
		t.Fatalf("deprecate v1: %v", err)
	}

	v2 := testDoc("docA", "h2", envelope.StatusActive, "")
	if _, err := repo.Store(ctx, "documents", v2); err != nil {
		t.Fatalf("Store v2: %v", err)
	}

	eq, _ := filterexpr.And(mustEq("doc_id", "docA"), mustEq("status", "deprecated"))
	deprecatedRecs, total, err := repo.FindByFilter(ctx, "documents", &eq, 0, 10)
	if err != nil {
		t.Fatalf("FindByFilter deprecated: %v", err)
	}
	if total != 1 || len(deprecatedRecs) != 1 || deprecatedRecs[0].Envelope.HashContent() != "h1" {
		t.Fatalf("FindByFilter(status=deprecated) = %+v, want the v1 record alone", deprecatedRecs)
	}

	activeFilter, _ := filterexpr.And(mustEq("doc_id", "docA"), mustEq("status", "active"))
	activeRecs, total, err := repo.FindByFilter(ctx, "documents", &activeFilter, 0, 10)
	if err != nil {
		t.Fatalf("FindByFilter active: %v", err)
	}
	if total != 1 || len(activeRecs) != 1 || activeRecs[0].Envelope.HashContent() != "h2" {
		t.Fatalf("FindByFilter(status=active) = %+v, want the v2 record alone", activeRecs)
	}
}

// versioningDeprecate mirrors versioning.Deprecate's two calls directly
// against repo, avoiding an import cycle with the usecase package the real
// caller lives in.
func versioningDeprecate(ctx context.Context, repo *Repo, hashContent string) error {
	status, found, err := repo.StatusByHashContent(ctx, hashContent)
	if err != nil || !found || status != "active" {
		return err
	}
	_, err = repo.MutateByHashContent(ctx, hashContent, map[string]any{"status": "deprecated"})
	return err
}

func TestActiveByDocCategory_OnlyReturnsActive(t *testing.T) {
	repo := New(newMemStore())
	if _, err := repo.Store(context.Background(), "documents", testDoc("doc1", "h1", envelope.StatusActive, "")); err != nil {
		t.Fatalf("Store: %v", err)
	}

	// A second point sharing the same doc_id but deprecated status must
	// not be picked up by the active-only predicate.
	env, err := envelope.New(envelope.BuildParams{DocID: "doc1", Category: envelope.CategoryOther, Status: envelope.StatusDeprecated, HashContent: "h0"})
	if err != nil {
		t.Fatalf("envelope.New: %v", err)
	}
	deprecated := domrecord.NewDocument("doc1-old", env, "old content", nil)
	if _, err := repo.Store(context.Background(), "documents", deprecated); err != nil {
		t.Fatalf("Store: %v", err)
	}

	actives, err := repo.ActiveByDocCategory(context.Background(), "documents", "doc1", "other")
	if err != nil {
		t.Fatalf("ActiveByDocCategory: %v", err)
	}
	if len(actives) != 1 {
		t.Fatalf("len(actives) = %d, want 1", len(actives))
	}
	if actives[0].HashContent != "h1" {
		t.Errorf("actives[0].HashContent = %q, want h1", actives[0].HashContent)
	}
}
