// Package models defines core data structures for clauses, queries, and search results.
package models

import (
	"fmt"
	"strings"
)

// Clause is one segmented, citation-labelled unit of regulatory text.
// All five fields are always present; Validate rejects partial records.
type Clause struct {
	Source    string `json:"source"`
	Filename  string `json:"filename"`
	Page      int    `json:"page"`
	Reference string `json:"reference"`
	Text      string `json:"text"`
}

// Validate reports whether the clause is a complete record.
func (c *Clause) Validate() error {
	switch {
	case strings.TrimSpace(c.Source) == "":
		return fmt.Errorf("clause source is empty")
	case strings.TrimSpace(c.Filename) == "":
		return fmt.Errorf("clause filename is empty")
	case c.Page < 1:
		return fmt.Errorf("clause page must be >= 1, got %d", c.Page)
	case strings.TrimSpace(c.Reference) == "":
		return fmt.Errorf("clause reference is empty")
	case strings.TrimSpace(c.Text) == "":
		return fmt.Errorf("clause text is empty")
	}
	return nil
}

// Header returns the "source | reference | p.N" line used when embedding a clause.
func (c *Clause) Header() string {
	return fmt.Sprintf("%s | %s | p.%d", c.Source, c.Reference, c.Page)
}
