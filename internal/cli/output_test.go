package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/regclause/internal/models"
)

func sampleResponse() *models.SearchResponse {
	return &models.SearchResponse{
		Query:        "personal data",
		TotalMatches: 3,
		Returned:     2,
		Results: []*models.SearchResult{
			{Clause: models.Clause{Source: "PDPL", Filename: "PDPL.pdf", Page: 4, Reference: "Article 1: Scope", Text: "This regulation applies to personal data."}, Score: 7.5},
			{Clause: models.Clause{Source: "ECC", Filename: "ecc.pdf", Page: 9, Reference: "2-1-3", Text: strings.Repeat("control ", 100)}, Score: 1},
		},
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded["total_matches"] != float64(3) || decoded["returned"] != float64(2) {
		t.Errorf("unexpected counts: %v", decoded)
	}
	first := decoded["results"].([]interface{})[0].(map[string]interface{})
	// Clause fields are inlined next to the score.
	if first["reference"] != "Article 1: Scope" || first["score"] != 7.5 {
		t.Errorf("unexpected first result: %v", first)
	}
}

func TestWriteSearchResults_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{`3 matches for "personal data", showing 2`, "1. PDPL | Article 1: Scope | p.4", "2. ECC | 2-1-3 | p.9", "..."} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteSearchResults_Compact(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputCompact); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0] != "1\t7.500\tPDPL\tArticle 1: Scope\tp.4" {
		t.Errorf("line 0 = %q", lines[0])
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    SearchOutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{"compact", OutputCompact, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}
