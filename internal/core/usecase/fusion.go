package usecase

import (
	"sort"

	"github.com/zapcontext/retrieval-engine/internal/core/domain"
)

// FusionWeights controls the linear combination of the three relevance
// signals. The defaults are heuristic, not tuned against a labeled set, which
// is exactly why they are configuration rather than literals.
type FusionWeights struct {
	Vector  float64
	Lexical float64
	Rerank  float64
}

func DefaultFusionWeights() FusionWeights {
	return FusionWeights{Vector: 0.4, Lexical: 0.3, Rerank: 0.3}
}

// normalized scales the weights to sum to one, keeping fused scores inside
// [0,1] for any operator-supplied values.
func (w FusionWeights) normalized() FusionWeights {
	sum := w.Vector + w.Lexical + w.Rerank
	if sum <= 0 {
		return DefaultFusionWeights()
	}
	return FusionWeights{
		Vector:  w.Vector / sum,
		Lexical: w.Lexical / sum,
		Rerank:  w.Rerank / sum,
	}
}

type fusedDocument struct {
	doc   domain.Document
	index int
}

// fuseHybrid combines per-document vector similarity (already on the
// document), lexical score, and reranker score into one ordering. Lexical
// scores are max-normalized onto [0,1] before weighting; reranker scores
// outside the scored slice arrive as zero and are deliberately not rescaled,
// so reranking acts as a confidence boost for the head of the list.
// Duplicate ids keep their highest-scoring instance. Sorting is stable with
// ties broken by original candidate order.
func fuseHybrid(
	documents []domain.Document,
	lexicalScores []float64,
	rerankScores []float64,
	weights FusionWeights,
) []domain.Document {
	if len(documents) == 0 {
		return nil
	}
	w := weights.normalized()

	maxLexical := 0.0
	for _, s := range lexicalScores {
		if s > maxLexical {
			maxLexical = s
		}
	}

	best := make(map[string]fusedDocument, len(documents))
	for i, doc := range documents {
		lexical := 0.0
		if i < len(lexicalScores) && maxLexical > 0 {
			lexical = lexicalScores[i] / maxLexical
		}
		rerank := 0.0
		if i < len(rerankScores) {
			rerank = rerankScores[i]
		}

		fused := w.Vector*clamp01(doc.Score) + w.Lexical*lexical + w.Rerank*rerank
		doc.Score = clamp01(fused)

		current, seen := best[doc.ID]
		if !seen {
			best[doc.ID] = fusedDocument{doc: doc, index: i}
			continue
		}
		merged := current
		if doc.Score > merged.doc.Score {
			merged.doc = doc
			merged.index = current.index
		}
		if current.doc.SourceKind != doc.SourceKind {
			// Same document reached through more than one retrieval path.
			merged.doc.SourceKind = domain.SourceHybrid
		}
		best[doc.ID] = merged
	}

	out := make([]fusedDocument, 0, len(best))
	for _, fd := range best {
		out = append(out, fd)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].doc.Score != out[j].doc.Score {
			return out[i].doc.Score > out[j].doc.Score
		}
		return out[i].index < out[j].index
	})

	ranked := make([]domain.Document, len(out))
	for i, fd := range out {
		ranked[i] = fd.doc
	}
	return ranked
}
