package indexer

import (
	"strings"
	"testing"
)

// textOfLen returns space-separated words exactly n characters long.
func textOfLen(n int) string {
	s := strings.Repeat("word ", n/5+2)
	s = s[:n]
	if strings.HasSuffix(s, " ") {
		s = s[:n-1] + "x"
	}
	return s
}

func TestSegmentPage_noiseFloor(t *testing.T) {
	if got := SegmentText(textOfLen(49)); len(got) != 0 {
		t.Errorf("49 chars: expected no clauses, got %q", got)
	}
	if got := SegmentText(textOfLen(50)); len(got) != 0 {
		t.Errorf("50 chars: expected no clauses, got %q", got)
	}
	got := SegmentText(textOfLen(51))
	if len(got) != 1 || len(got[0]) != 51 {
		t.Errorf("51 chars: expected one clause, got %q", got)
	}
}

func TestSegmentPage_splitsAtLineStartAnchors(t *testing.T) {
	page := "Preamble text that introduces the regulation and its purposes in detail.\n" +
		"Article 2: Definitions\nFor the purposes of this regulation the following terms apply.\n" +
		"1-2-3 Access Control\nOrganizations shall restrict access to critical systems based on need-to-know."
	var segs []Segment
	for s := range SegmentPage(page) {
		segs = append(segs, s)
	}
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments, got %d: %+v", len(segs), segs)
	}
	wantKinds := []AnchorKind{AnchorNone, AnchorArticle, AnchorCode}
	for i, s := range segs {
		if s.Anchor != wantKinds[i] {
			t.Errorf("segment %d anchor = %v, want %v", i, s.Anchor, wantKinds[i])
		}
	}
	if !strings.HasPrefix(segs[1].Raw, "Article 2: Definitions\n") {
		t.Errorf("anchor text should start the segment, got %q", segs[1].Raw)
	}
	if segs[1].Text != "Article 2: Definitions For the purposes of this regulation the following terms apply." {
		t.Errorf("unexpected normalized text %q", segs[1].Text)
	}
}

func TestSegmentPage_midLineAnchorDoesNotSplit(t *testing.T) {
	page := "The controller shall comply with Article 3 and with control 2-1-3-4 when processing data."
	got := SegmentText(page)
	if len(got) != 1 {
		t.Fatalf("expected 1 clause, got %q", got)
	}
}

func TestSegmentPage_paragraphSplitAndNormalization(t *testing.T) {
	page := "First paragraph of a clause that is long enough to survive the floor.\r\n\r\n\r\n\r\n" +
		"Second  paragraph\tof the clause that is also long enough to be kept."
	got := SegmentText(page)
	if len(got) != 2 {
		t.Fatalf("expected 2 clauses, got %q", got)
	}
	if got[1] != "Second paragraph of the clause that is also long enough to be kept." {
		t.Errorf("unexpected normalization %q", got[1])
	}
}

func TestSegmentPage_headingAnchor(t *testing.T) {
	page := "Cybersecurity Governance 1-1\nA cybersecurity strategy must be defined, documented and approved.\n" +
		"Cybersecurity Management 1-2\nA dedicated cybersecurity function must be established independently."
	var kinds []AnchorKind
	for s := range SegmentPage(page) {
		kinds = append(kinds, s.Anchor)
	}
	if len(kinds) != 2 || kinds[0] != AnchorHeading || kinds[1] != AnchorHeading {
		t.Errorf("expected two heading-anchored segments, got %v", kinds)
	}
}

func TestAnchorAt_precedence(t *testing.T) {
	tests := []struct {
		line string
		want AnchorKind
	}{
		{"Article 1-2 overlaps the heading pattern", AnchorArticle},
		{"Article 12: Retention", AnchorArticle},
		{"2-1-3-4 Identity management", AnchorCode},
		{"Asset Management 2-1", AnchorHeading},
		{"article 5 lowercase is not an anchor", AnchorNone},
		{"Short 1-1", AnchorNone},
		{"plain body text", AnchorNone},
	}
	for _, tt := range tests {
		if got := anchorAt(tt.line); got != tt.want {
			t.Errorf("anchorAt(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestSegmentPage_noiseOnly(t *testing.T) {
	if got := SegmentText("Page 3 of 40\n\nConfidential"); len(got) != 0 {
		t.Errorf("expected no clauses, got %q", got)
	}
}

func TestSegmentPage_stopsEarly(t *testing.T) {
	page := textOfLen(60) + "\n\n" + textOfLen(70) + "\n\n" + textOfLen(80)
	n := 0
	for range SegmentPage(page) {
		n++
		break
	}
	if n != 1 {
		t.Errorf("expected iteration to stop after 1, got %d", n)
	}
}

func TestAnchorKind_String(t *testing.T) {
	if AnchorArticle.String() != "article" || AnchorNone.String() != "none" {
		t.Error("unexpected AnchorKind strings")
	}
}

func TestNormalizeSpace(t *testing.T) {
	tests := map[string]string{
		"  a \n\t b  ":          "a b",
		"":                      "",
		"one\u00a0two\r\nthree": "one two three",
	}
	for in, want := range tests {
		if got := NormalizeSpace(in); got != want {
			t.Errorf("NormalizeSpace(%q) = %q, want %q", in, got, want)
		}
	}
}
