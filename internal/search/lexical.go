package search

import (
	"sort"
	"strings"

	"github.com/hyperjump/regclause/internal/models"
	"github.com/hyperjump/regclause/pkg/utils"
)

// Lexical score components.
const (
	PhraseBonus    = 3.0
	ReferenceBonus = 1.5
)

// Scored is a clause position in the index with its score.
type Scored struct {
	Index int
	Score float64
}

// LexicalQuery is a query prepared for lexical scoring.
type LexicalQuery struct {
	// Tokens are the query's lowercase alphanumeric runs, in order, duplicates kept.
	Tokens []string
	// Phrase is the lowercased, trimmed query.
	Phrase string
	// distinct holds each token once, for the reference bonus.
	distinct []string
}

// NewLexicalQuery tokenizes query.
func NewLexicalQuery(query string) LexicalQuery {
	tokens := utils.Tokens(query)
	seen := make(map[string]bool, len(tokens))
	var distinct []string
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			distinct = append(distinct, t)
		}
	}
	return LexicalQuery{
		Tokens:   tokens,
		Phrase:   strings.ToLower(strings.TrimSpace(query)),
		distinct: distinct,
	}
}

// ScoreClause returns the lexical relevance of c: the summed occurrence counts of the
// query tokens in the clause text, plus PhraseBonus when the whole phrase occurs in
// the text, plus ReferenceBonus for each distinct token found in the reference.
func ScoreClause(c *models.Clause, q LexicalQuery) float64 {
	if len(q.Tokens) == 0 && q.Phrase == "" {
		return 0
	}
	tf := make(map[string]int)
	for _, t := range utils.Tokens(c.Text) {
		tf[t]++
	}
	var score float64
	for _, t := range q.Tokens {
		score += float64(tf[t])
	}
	if q.Phrase != "" && strings.Contains(strings.ToLower(c.Text), q.Phrase) {
		score += PhraseBonus
	}
	ref := strings.ToLower(c.Reference)
	for _, t := range q.distinct {
		if strings.Contains(ref, t) {
			score += ReferenceBonus
		}
	}
	return score
}

// ScoreLexical scores every clause and returns those with a positive score, best
// first. Equal scores keep index order.
func ScoreLexical(clauses []models.Clause, query string) []Scored {
	q := NewLexicalQuery(query)
	if q.Phrase == "" {
		return nil
	}
	var scored []Scored
	for i := range clauses {
		if s := ScoreClause(&clauses[i], q); s > 0 {
			scored = append(scored, Scored{Index: i, Score: s})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored
}
