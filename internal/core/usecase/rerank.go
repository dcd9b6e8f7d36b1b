package usecase

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zapcontext/retrieval-engine/internal/core/domain"
	"github.com/zapcontext/retrieval-engine/internal/core/ports"
)

const (
	defaultRerankTopN    = 20
	rerankMaxConcurrency = 8
)

// rerankScores fans the top-N candidates out to the cross-encoder and
// realigns the scores by input index, so completion order never matters.
// Candidates past the slice keep score zero, and a failed scoring call only
// zeroes its own candidate. Always returns len(documents) scores.
func rerankScores(
	ctx context.Context,
	scorer ports.RelevanceScorer,
	query string,
	documents []domain.Document,
	topN int,
	callTimeout time.Duration,
	logger *slog.Logger,
) []float64 {
	scores := make([]float64, len(documents))
	if scorer == nil || len(documents) == 0 {
		return scores
	}
	if topN <= 0 {
		topN = defaultRerankTopN
	}
	if topN > len(documents) {
		topN = len(documents)
	}
	if logger == nil {
		logger = slog.Default()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rerankMaxConcurrency)
	for i := 0; i < topN; i++ {
		i := i
		g.Go(func() error {
			callCtx := gctx
			if callTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(gctx, callTimeout)
				defer cancel()
			}

			score, err := scorer.ScoreRelevance(callCtx, query, documents[i].Content)
			if err != nil {
				logger.Debug("rerank_candidate_degraded",
					"document_id", documents[i].ID,
					"error", err,
				)
				return nil
			}
			scores[i] = clamp01(score)
			return nil
		})
	}
	_ = g.Wait()
	return scores
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
