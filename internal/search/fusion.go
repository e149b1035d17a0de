package search

import "sort"

// semanticEpsilon floors the semantic score range so equal scores do not divide by zero.
const semanticEpsilon = 1e-6

// NormalizeLexical divides every score by the maximum. A non-positive maximum leaves scores unchanged.
func NormalizeLexical(results []Scored) []Scored {
	out := make([]Scored, len(results))
	copy(out, results)
	maxScore := 0.0
	for _, r := range out {
		if r.Score > maxScore {
			maxScore = r.Score
		}
	}
	if maxScore <= 0 {
		return out
	}
	for i := range out {
		out[i].Score /= maxScore
	}
	return out
}

// NormalizeSemantic min-max scales scores to [0,1] using (s-min)/max(max-min, 1e-6).
func NormalizeSemantic(results []Scored) []Scored {
	out := make([]Scored, len(results))
	copy(out, results)
	if len(out) == 0 {
		return out
	}
	lo, hi := out[0].Score, out[0].Score
	for _, r := range out {
		lo = min(lo, r.Score)
		hi = max(hi, r.Score)
	}
	rng := max(hi-lo, semanticEpsilon)
	for i := range out {
		out[i].Score = (out[i].Score - lo) / rng
	}
	return out
}

// FusedResult holds a clause position and its fused and per-signal scores.
type FusedResult struct {
	Index         int
	Score         float64
	LexicalScore  float64
	SemanticScore float64
}

// Fuse combines normalized lexical and semantic scores per clause as
// alpha*semantic + (1-alpha)*lexical. Only clauses present in at least one input
// appear; a clause missing from one signal gets zero for it. Results are sorted by
// fused score, best first, with ties in index order.
func Fuse(lexical, semantic []Scored, alpha float64) []FusedResult {
	byIndex := make(map[int]*FusedResult, len(lexical)+len(semantic))
	get := func(i int) *FusedResult {
		r, ok := byIndex[i]
		if !ok {
			r = &FusedResult{Index: i}
			byIndex[i] = r
		}
		return r
	}
	for _, s := range semantic {
		get(s.Index).SemanticScore = s.Score
	}
	for _, l := range lexical {
		get(l.Index).LexicalScore = l.Score
	}

	results := make([]FusedResult, 0, len(byIndex))
	for _, r := range byIndex {
		r.Score = alpha*r.SemanticScore + (1-alpha)*r.LexicalScore
		results = append(results, *r)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Index < results[j].Index })
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results
}
