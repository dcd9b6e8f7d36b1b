package qdrant

import "testing"

func TestEncodeSparseQueryDeterministic(t *testing.T) {
	first := encodeSparseQuery("postgres replication lag")
	second := encodeSparseQuery("postgres replication lag")
	if len(first.Indices) != len(second.Indices) {
		t.Fatalf("expected identical encodings, got %d vs %d indices", len(first.Indices), len(second.Indices))
	}
	for i := range first.Indices {
		if first.Indices[i] != second.Indices[i] || first.Values[i] != second.Values[i] {
			t.Fatalf("encoding mismatch at %d", i)
		}
	}
}

func TestEncodeSparseQueryRepeatedTermSaturates(t *testing.T) {
	single := encodeSparseQuery("cache")
	repeated := encodeSparseQuery("cache cache cache cache")
	if len(single.Indices) != 1 || len(repeated.Indices) != 1 {
		t.Fatalf("expected one term per encoding")
	}
	if repeated.Values[0] <= single.Values[0] {
		t.Fatalf("expected repeated term weighted higher: %f <= %f", repeated.Values[0], single.Values[0])
	}
	if repeated.Values[0] >= float32(queryBM25K+1) {
		t.Fatalf("expected weight below the saturation asymptote, got %f", repeated.Values[0])
	}
}

func TestEncodeSparseQueryIndicesSortedAndNonZero(t *testing.T) {
	sparse := encodeSparseQuery("alpha beta gamma delta")
	for i, idx := range sparse.Indices {
		if idx == 0 {
			t.Fatalf("index 0 is reserved, got it at position %d", i)
		}
		if i > 0 && sparse.Indices[i-1] >= idx {
			t.Fatalf("expected strictly increasing indices, got %v", sparse.Indices)
		}
	}
}

func TestEncodeSparseQueryEmpty(t *testing.T) {
	if sparse := encodeSparseQuery("  ...  "); len(sparse.Indices) != 0 {
		t.Fatalf("expected empty encoding, got %v", sparse.Indices)
	}
}
