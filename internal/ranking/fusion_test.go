package ranking

import (
	"math"
	"testing"
)

func TestFuseLexicalSemantic(t *testing.T) {
	lexical := []Ranked{{"faq-1", 10}, {"faq-2", 8}, {"faq-3", 5}}
	semantic := []Ranked{{"faq-2", 0.9}, {"faq-4", 0.85}, {"faq-1", 0.7}}

	results := FuseLexicalSemantic(lexical, semantic, 10)

	if len(results) != 4 {
		t.Fatalf("FuseLexicalSemantic() returned %d results, want 4", len(results))
	}
	// faq-2 ranks high in both lists
	if results[0].ID != "faq-2" {
		t.Errorf("top result = %s, want faq-2", results[0].ID)
	}
	if results[1].ID != "faq-1" {
		t.Errorf("second result = %s, want faq-1", results[1].ID)
	}
	if results[0].Ranks[0] != 2 || results[0].Ranks[1] != 1 {
		t.Errorf("faq-2 ranks = %v, want [2 1]", results[0].Ranks)
	}
	if results[0].BestScore() != 8 {
		t.Errorf("faq-2 best score = %v, want 8", results[0].BestScore())
	}
}

func TestFuseRRF_SingleList(t *testing.T) {
	results := FuseRRF([][]Ranked{{{"a", 3}, {"b", 2}}}, nil, 10)

	if len(results) != 2 || results[0].ID != "a" {
		t.Fatalf("unexpected results %+v", results)
	}
	want := 1.0 / float64(RRFConstant+1)
	if math.Abs(results[0].RRFScore-want) > 1e-12 {
		t.Errorf("RRFScore = %v, want %v", results[0].RRFScore, want)
	}
}

func TestFuseRRF_TopNAndDuplicates(t *testing.T) {
	list := []Ranked{{"a", 1}, {"a", 0.5}, {"b", 0.4}, {"c", 0.3}}
	results := FuseRRF([][]Ranked{list}, []float64{1}, 2)

	if len(results) != 2 {
		t.Fatalf("expected topN=2, got %d", len(results))
	}
	if results[0].ID != "a" || results[0].Ranks[0] != 1 {
		t.Errorf("duplicate should keep first rank, got %+v", results[0])
	}
}

func TestFuseRRF_TieBreak(t *testing.T) {
	// x and y get identical RRF scores; ordering must be deterministic
	results := FuseRRF([][]Ranked{{{"y", 1}}, {{"x", 1}}}, []float64{1, 1}, 0)

	if results[0].ID != "x" || results[1].ID != "y" {
		t.Errorf("tie should fall back to ID order, got %s, %s", results[0].ID, results[1].ID)
	}
}

func TestFuseRRF_Empty(t *testing.T) {
	if got := FuseLexicalSemantic(nil, nil, 3); len(got) != 0 {
		t.Errorf("expected no results, got %v", got)
	}
}
