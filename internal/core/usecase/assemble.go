package usecase

import (
	"sort"

	"github.com/zapcontext/retrieval-engine/internal/core/domain"
)

// defaultRecencyDivisor reproduces the historical tie-break bonus
// ageDeltaSeconds/1e9. The magnitude is almost certainly too small to matter
// for realistic timestamps; it stays configurable instead of being silently
// corrected.
const defaultRecencyDivisor = 1e9

// assembleResult turns the ranked candidates and expanded entities into the
// externally visible result: optional recency tie-break, truncation to
// maxResults, mean-score confidence, and the distinct source list. An empty
// input produces a valid empty result with confidence zero, never an error.
func assembleResult(
	ranked []domain.Document,
	entities []domain.Entity,
	maxResults int,
	prioritizeRecent bool,
	recencyDivisor float64,
) domain.RetrievalResult {
	docs := make([]domain.Document, len(ranked))
	copy(docs, ranked)

	if prioritizeRecent {
		applyRecencyBonus(docs, recencyDivisor)
	}

	if maxResults > 0 && len(docs) > maxResults {
		docs = docs[:maxResults]
	}

	confidence := 0.0
	if len(docs) > 0 {
		total := 0.0
		for _, doc := range docs {
			total += doc.Score
		}
		confidence = clamp01(total / float64(len(docs)))
	}

	sources := make([]string, 0, len(docs))
	seen := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		source := doc.Metadata.Source
		if source == "" {
			source = string(doc.SourceKind)
		}
		if _, ok := seen[source]; ok {
			continue
		}
		seen[source] = struct{}{}
		sources = append(sources, source)
	}

	return domain.RetrievalResult{
		Documents:  docs,
		Entities:   entities,
		Confidence: confidence,
		Sources:    sources,
	}
}

// applyRecencyBonus adds ageDeltaSeconds/divisor relative to the oldest
// timestamped document, then re-sorts. The bonus is a tie-breaker, not a
// ranking signal; documents without a timestamp are left untouched.
func applyRecencyBonus(docs []domain.Document, divisor float64) {
	if divisor <= 0 {
		divisor = defaultRecencyDivisor
	}

	var oldest *domain.Document
	timestamped := 0
	for i := range docs {
		if docs[i].Metadata.CreatedAt.IsZero() {
			continue
		}
		timestamped++
		if oldest == nil || docs[i].Metadata.CreatedAt.Before(oldest.Metadata.CreatedAt) {
			oldest = &docs[i]
		}
	}
	if timestamped < 2 {
		return
	}

	base := oldest.Metadata.CreatedAt
	for i := range docs {
		created := docs[i].Metadata.CreatedAt
		if created.IsZero() {
			continue
		}
		bonus := created.Sub(base).Seconds() / divisor
		docs[i].Score = clamp01(docs[i].Score + bonus)
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Score > docs[j].Score
	})
}
