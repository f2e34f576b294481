package request

import (
	"strings"
	"testing"

	"github.com/kailas-cloud/ingestcore/internal/domain/search/mode"
)

func TestNew_RequiresQuery(t *testing.T) {
	if _, err := New("", mode.Hybrid, nil, 0, 0, 0, false); err == nil {
		t.Error("New() error = nil, want error for empty query")
	}
}

func TestNew_RejectsOverlongQuery(t *testing.T) {
	long := strings.Repeat("a", MaxQueryLength+1)
	if _, err := New(long, mode.Hybrid, nil, 0, 0, 0, false); err == nil {
		t.Error("New() error = nil, want error for overlong query")
	}
}

func TestNew_DefaultsMode(t *testing.T) {
	req, err := New("hello", "", nil, 0, 0, 0, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if req.Mode() != mode.Hybrid {
		t.Errorf("Mode() = %v, want hybrid", req.Mode())
	}
}

func TestNew_RejectsInvalidMode(t *testing.T) {
	if _, err := New("hello", mode.Mode("bogus"), nil, 0, 0, 0, false); err == nil {
		t.Error("New() error = nil, want error for invalid mode")
	}
}

func TestNew_DefaultsTopKAndLimit(t *testing.T) {
	req, err := New("hello", mode.Semantic, nil, 0, 0, 0, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if req.TopK() != DefaultTopK {
		t.Errorf("TopK() = %d, want %d", req.TopK(), DefaultTopK)
	}
	if req.Limit() != DefaultTopK {
		t.Errorf("Limit() = %d, want %d (DefaultLimit clamped to topK)", req.Limit(), DefaultTopK)
	}
}

func TestNew_ClampsTopKAndLimitToMax(t *testing.T) {
	req, err := New("hello", mode.Semantic, nil, MaxTopK+100, MaxLimit+100, 0, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if req.TopK() != MaxTopK {
		t.Errorf("TopK() = %d, want %d", req.TopK(), MaxTopK)
	}
	if req.Limit() != MaxLimit {
		t.Errorf("Limit() = %d, want %d (clamped to MaxLimit)", req.Limit(), MaxLimit)
	}
}

func TestNew_LimitClampedToTopK(t *testing.T) {
	req, err := New("hello", mode.Semantic, nil, 5, 20, 0, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if req.Limit() != 5 {
		t.Errorf("Limit() = %d, want 5 (clamped to topK)", req.Limit())
	}
}

func TestNew_RejectsOutOfRangeMinScore(t *testing.T) {
	cases := []float64{-0.1, 1.1}
	for _, minScore := range cases {
		if _, err := New("hello", mode.Semantic, nil, 10, 10, minScore, false); err == nil {
			t.Errorf("New() error = nil for min_score = %v, want error", minScore)
		}
	}
}

func TestNew_AcceptsBoundaryMinScore(t *testing.T) {
	for _, minScore := range []float64{0, 1} {
		req, err := New("hello", mode.Semantic, nil, 10, 10, minScore, false)
		if err != nil {
			t.Fatalf("New(min_score=%v): %v", minScore, err)
		}
		if req.MinScore() != minScore {
			t.Errorf("MinScore() = %v, want %v", req.MinScore(), minScore)
		}
	}
}

func TestNew_CarriesIncludeVectorsAndFilter(t *testing.T) {
	req, err := New("hello", mode.Keyword, nil, 10, 10, 0, true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !req.IncludeVectors() {
		t.Error("IncludeVectors() = false, want true")
	}
	if req.Filter() != nil {
		t.Error("Filter() should be nil when not supplied")
	}
	if req.Query() != "hello" {
		t.Errorf("Query() = %q, want hello", req.Query())
	}
}
