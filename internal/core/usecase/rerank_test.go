package usecase

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/zapcontext/retrieval-engine/internal/core/domain"
)

type fakeScorer struct {
	mu      sync.Mutex
	calls   int
	scoreFn func(passage string) (float64, error)
}

func (f *fakeScorer) ScoreRelevance(_ context.Context, _ string, passage string) (float64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.scoreFn != nil {
		return f.scoreFn(passage)
	}
	return 0.5, nil
}

func rerankTestDocs(n int) []domain.Document {
	docs := make([]domain.Document, n)
	for i := range docs {
		docs[i] = domain.Document{ID: "doc-" + strconv.Itoa(i), Content: "passage " + strconv.Itoa(i)}
	}
	return docs
}

func TestRerankScoresAlignedByInputIndex(t *testing.T) {
	scorer := &fakeScorer{scoreFn: func(passage string) (float64, error) {
		idx, _ := strconv.Atoi(strings.TrimPrefix(passage, "passage "))
		return float64(idx) / 10, nil
	}}
	docs := rerankTestDocs(5)

	scores := rerankScores(context.Background(), scorer, "q", docs, 5, time.Second, nil)
	if len(scores) != 5 {
		t.Fatalf("expected 5 scores, got %d", len(scores))
	}
	for i, score := range scores {
		want := float64(i) / 10
		if score != want {
			t.Fatalf("expected score %f at index %d, got %f", want, i, score)
		}
	}
}

func TestRerankScoresOnlyTopN(t *testing.T) {
	scorer := &fakeScorer{scoreFn: func(string) (float64, error) { return 0.9, nil }}
	docs := rerankTestDocs(6)

	scores := rerankScores(context.Background(), scorer, "q", docs, 3, time.Second, nil)
	if scorer.calls != 3 {
		t.Fatalf("expected 3 scorer calls, got %d", scorer.calls)
	}
	for i := 3; i < 6; i++ {
		if scores[i] != 0 {
			t.Fatalf("expected zero score past top-n at %d, got %f", i, scores[i])
		}
	}
}

func TestRerankScoresFailedCandidateScoresZero(t *testing.T) {
	scorer := &fakeScorer{scoreFn: func(passage string) (float64, error) {
		if passage == "passage 1" {
			return 0, errors.New("scorer timeout")
		}
		return 0.7, nil
	}}
	docs := rerankTestDocs(3)

	scores := rerankScores(context.Background(), scorer, "q", docs, 3, time.Second, nil)
	if scores[1] != 0 {
		t.Fatalf("expected failed candidate to score zero, got %f", scores[1])
	}
	if scores[0] != 0.7 || scores[2] != 0.7 {
		t.Fatalf("expected surviving candidates unaffected, got %v", scores)
	}
}

func TestRerankScoresClamped(t *testing.T) {
	scorer := &fakeScorer{scoreFn: func(string) (float64, error) { return 3.2, nil }}
	docs := rerankTestDocs(1)

	scores := rerankScores(context.Background(), scorer, "q", docs, 1, time.Second, nil)
	if scores[0] != 1 {
		t.Fatalf("expected out-of-range score clamped to 1, got %f", scores[0])
	}
}

func TestRerankScoresNilScorer(t *testing.T) {
	docs := rerankTestDocs(2)
	scores := rerankScores(context.Background(), nil, "q", docs, 2, time.Second, nil)
	if len(scores) != 2 || scores[0] != 0 || scores[1] != 0 {
		t.Fatalf("expected zero scores without a scorer, got %v", scores)
	}
}
