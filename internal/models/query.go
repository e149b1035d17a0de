package models

import (
	"fmt"
	"math"
)

// Method selects which relevance signals a search uses.
type Method string

const (
	// MethodLexical ranks by term overlap only.
	MethodLexical Method = "lexical"
	// MethodSemantic ranks by embedding cosine similarity only.
	MethodSemantic Method = "semantic"
	// MethodHybrid fuses normalized lexical and semantic scores.
	MethodHybrid Method = "hybrid"
)

// ParseMethod returns the Method named by s. The empty string selects MethodLexical.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case "", MethodLexical:
		return MethodLexical, nil
	case MethodSemantic:
		return MethodSemantic, nil
	case MethodHybrid:
		return MethodHybrid, nil
	default:
		return "", fmt.Errorf("unknown method %q (supported: lexical, semantic, hybrid)", s)
	}
}

// Bounds for query parameters accepted at the HTTP boundary.
const (
	MinTopK = 1
	MaxTopK = 100
)

// SearchQuery is a ranked clause search request.
type SearchQuery struct {
	Query  string  `json:"query"`
	TopK   int     `json:"top_k"`
	Method Method  `json:"method"`
	Alpha  float64 `json:"alpha"`
}

// Validate checks parameter ranges. An empty query text is valid and yields zero matches.
func (q *SearchQuery) Validate() error {
	if q.TopK < MinTopK || q.TopK > MaxTopK {
		return fmt.Errorf("top_k must be between %d and %d, got %d", MinTopK, MaxTopK, q.TopK)
	}
	if math.IsNaN(q.Alpha) || q.Alpha < 0 || q.Alpha > 1 {
		return fmt.Errorf("alpha must be between 0.0 and 1.0, got %v", q.Alpha)
	}
	if _, err := ParseMethod(string(q.Method)); err != nil {
		return err
	}
	if q.Method == "" {
		q.Method = MethodLexical
	}
	return nil
}
