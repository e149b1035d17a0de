package models

import "math"

// SearchResult is a single ranked clause. Clause fields are inlined in JSON.
type SearchResult struct {
	Clause
	Score float64 `json:"score"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Query        string          `json:"query"`
	TotalMatches int             `json:"total_matches"`
	Returned     int             `json:"returned"`
	Results      []*SearchResult `json:"results"`
}

// RoundScore rounds a score to three decimals for the wire.
func RoundScore(s float64) float64 {
	return math.Round(s*1000) / 1000
}
