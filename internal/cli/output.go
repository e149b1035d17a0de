// Package cli renders command-line output for regclause.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/regclause/internal/models"
	"github.com/hyperjump/regclause/pkg/utils"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputCompact prints one line per result.
	OutputCompact SearchOutputFormat = "compact"
	// OutputJSON is the HTTP response body, indented.
	OutputJSON SearchOutputFormat = "json"
)

// ParseOutputFormat returns the format named by s; empty selects OutputText.
func ParseOutputFormat(s string) (SearchOutputFormat, error) {
	switch SearchOutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputCompact:
		return OutputCompact, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q (supported: text, compact, json)", s)
}

// previewRunes bounds the clause text printed in text mode.
const previewRunes = 300

// WriteSearchResults writes the response to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	case OutputCompact:
		for i, r := range response.Results {
			if _, err := fmt.Fprintf(w, "%d\t%.3f\t%s\t%s\tp.%d\n", i+1, r.Score, r.Source, r.Reference, r.Page); err != nil {
				return err
			}
		}
		return nil
	default:
		return writeText(w, response)
	}
}

func writeText(w io.Writer, response *models.SearchResponse) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%d matches for %q, showing %d\n\n", response.TotalMatches, response.Query, response.Returned)
	for i, r := range response.Results {
		b.WriteString("─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(&b, "%d. %s | %s | p.%d   score %.3f\n", i+1, r.Source, r.Reference, r.Page, r.Score)
		fmt.Fprintf(&b, "   %s\n\n", utils.Truncate(r.Text, previewRunes))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
