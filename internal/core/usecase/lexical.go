package usecase

import "math"

// BM25 defaults. Tunable through config; these match the usual Okapi values.
const (
	defaultBM25K1 = 1.2
	defaultBM25B  = 0.75
)

// scoreLexical returns one BM25 score per input document, same order.
// Document frequency and average length come from the candidate set itself
// rather than a corpus-wide scan; that keeps the scorer tenant-scoped and
// self-contained, which is enough for relative reranking of a short list.
// Pure function, deterministic for identical inputs.
func scoreLexical(documents []docTokens, queryTerms []string, avgLen, k1, b float64) []float64 {
	scores := make([]float64, len(documents))
	if len(documents) == 0 || len(queryTerms) == 0 {
		return scores
	}
	if k1 <= 0 {
		k1 = defaultBM25K1
	}
	if b < 0 || b > 1 {
		b = defaultBM25B
	}
	if avgLen <= 0 {
		avgLen = 1
	}

	n := float64(len(documents))
	for _, term := range queryTerms {
		df := 0.0
		for i := range documents {
			if documents[i].freq[term] > 0 {
				df++
			}
		}
		if df == 0 {
			continue
		}
		idf := math.Log((n + 1) / (df + 1))

		for i := range documents {
			tf := float64(documents[i].freq[term])
			if tf == 0 {
				continue
			}
			docLen := float64(documents[i].length)
			denom := tf + k1*(1-b+b*(docLen/avgLen))
			scores[i] += idf * tf * (k1 + 1) / denom
		}
	}
	return scores
}

// docTokens is the per-document term index the lexical scorer works on.
type docTokens struct {
	freq   map[string]int
	length int
}

func indexDocuments(contents []string) []docTokens {
	out := make([]docTokens, len(contents))
	for i, content := range contents {
		tokens := tokenizeLower(content)
		freq := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freq[tok]++
		}
		out[i] = docTokens{freq: freq, length: len(tokens)}
	}
	return out
}

func averageLength(documents []docTokens) float64 {
	if len(documents) == 0 {
		return 0
	}
	total := 0
	for i := range documents {
		total += documents[i].length
	}
	return float64(total) / float64(len(documents))
}
