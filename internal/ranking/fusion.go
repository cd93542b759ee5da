package ranking

import "sort"

const (
	// RRFConstant is k in the RRF formula 1 / (k + rank).
	RRFConstant = 60

	// DefaultLexicalWeight is the weight of the lexical list in two-way fusion.
	DefaultLexicalWeight = 0.4

	// DefaultSemanticWeight is the weight of the embedding list in two-way fusion.
	DefaultSemanticWeight = 0.6
)

// Ranked is one entry of a ranked list, best first.
type Ranked struct {
	ID    string
	Score float64 // source score, carried through for display
}

// Fused is an RRF-combined result.
type Fused struct {
	ID       string
	RRFScore float64
	Ranks    []int     // 1-indexed rank per source list, 0 if absent
	Scores   []float64 // source score per list, 0 if absent
}

// BestScore returns the highest source score.
func (f Fused) BestScore() float64 {
	best := 0.0
	for _, s := range f.Scores {
		if s > best {
			best = s
		}
	}
	return best
}

// FuseRRF combines ranked lists with Reciprocal Rank Fusion:
//
//	score(d) = Σ w_i / (k + rank_i(d))
//
// weights[i] applies to lists[i]; missing weights default to 1. Results are
// sorted by RRF score (descending), then by best rank, then ID, and capped
// at topN when topN > 0. Duplicate IDs within one list keep their first rank.
func FuseRRF(lists [][]Ranked, weights []float64, topN int) []Fused {
	byID := make(map[string]*Fused)
	order := make([]string, 0)

	for li, list := range lists {
		w := 1.0
		if li < len(weights) {
			w = max(weights[li], 0)
		}
		for i, r := range list {
			f, ok := byID[r.ID]
			if !ok {
				f = &Fused{
					ID:     r.ID,
					Ranks:  make([]int, len(lists)),
					Scores: make([]float64, len(lists)),
				}
				byID[r.ID] = f
				order = append(order, r.ID)
			}
			if f.Ranks[li] != 0 {
				continue
			}
			rank := i + 1
			f.Ranks[li] = rank
			f.Scores[li] = r.Score
			f.RRFScore += w / float64(RRFConstant+rank)
		}
	}

	results := make([]Fused, 0, len(order))
	for _, id := range order {
		results = append(results, *byID[id])
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].RRFScore != results[j].RRFScore {
			return results[i].RRFScore > results[j].RRFScore
		}
		bi, bj := bestRank(results[i].Ranks), bestRank(results[j].Ranks)
		if bi != bj {
			return bi < bj
		}
		return results[i].ID < results[j].ID
	})

	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}
	return results
}

// FuseLexicalSemantic fuses a lexical and a semantic list with the default weights.
func FuseLexicalSemantic(lexical, semantic []Ranked, topN int) []Fused {
	return FuseRRF([][]Ranked{lexical, semantic}, []float64{DefaultLexicalWeight, DefaultSemanticWeight}, topN)
}

func bestRank(ranks []int) int {
	best := 0
	for _, r := range ranks {
		if r > 0 && (best == 0 || r < best) {
			best = r
		}
	}
	if best == 0 {
		return int(^uint(0) >> 1)
	}
	return best
}
