package indexer

import (
	"iter"
	"regexp"
	"strings"

	"github.com/hyperjump/regclause/pkg/utils"
)

// MinClauseLength is the noise floor: normalized pieces of this many characters or
// fewer are dropped as headers and page furniture.
const MinClauseLength = 50

// AnchorKind identifies which structural pattern started a segment.
type AnchorKind int

const (
	// AnchorNone marks text before the first anchor on a page.
	AnchorNone AnchorKind = iota
	// AnchorArticle is an "Article N" heading.
	AnchorArticle
	// AnchorCode is a hyphenated control code such as 2-1-3-4.
	AnchorCode
	// AnchorHeading is a capitalized heading phrase followed by a digit-digit code.
	AnchorHeading
)

func (k AnchorKind) String() string {
	switch k {
	case AnchorArticle:
		return "article"
	case AnchorCode:
		return "code"
	case AnchorHeading:
		return "heading"
	default:
		return "none"
	}
}

// Anchors are tried in this order at every line start; the first match wins.
var anchors = []struct {
	kind AnchorKind
	re   *regexp.Regexp
}{
	{AnchorArticle, regexp.MustCompile(`^Article\s+\d+`)},
	{AnchorCode, regexp.MustCompile(`^\d-\d-(?:\d|-){1,6}\b`)},
	{AnchorHeading, regexp.MustCompile(`^[A-Z][A-Za-z \-/()]{5,}\s+\d-\d\b`)},
}

var (
	excessBlankLines = regexp.MustCompile(`\n{3,}`)
	paragraphBreak   = regexp.MustCompile(`\n{2,}`)
)

// Segment is one clause-sized piece of a page.
type Segment struct {
	// Raw keeps the piece's original line structure, trimmed.
	Raw string
	// Text is Raw with whitespace runs collapsed to single spaces.
	Text string
	// Anchor is the pattern that opened the enclosing anchor segment.
	Anchor AnchorKind
}

// SegmentPage splits one page of raw text into clause segments. The page is cut right
// before every line that starts with an anchor, each anchor segment is cut again on
// blank lines, and pieces whose normalized text is MinClauseLength characters or
// shorter are dropped.
func SegmentPage(page string) iter.Seq[Segment] {
	return func(yield func(Segment) bool) {
		t := strings.ReplaceAll(page, "\r", "")
		t = excessBlankLines.ReplaceAllString(t, "\n\n")

		for _, as := range splitAtAnchors(t) {
			seg := strings.TrimSpace(as.text)
			if seg == "" {
				continue
			}
			for _, p := range paragraphBreak.Split(seg, -1) {
				text := NormalizeSpace(p)
				if utils.RuneLen(text) <= MinClauseLength {
					continue
				}
				if !yield(Segment{Raw: strings.TrimSpace(p), Text: text, Anchor: as.kind}) {
					return
				}
			}
		}
	}
}

// NormalizeSpace trims s and collapses every run of Unicode whitespace to one space.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// SegmentText returns the normalized clause texts of a page.
func SegmentText(page string) []string {
	var out []string
	for s := range SegmentPage(page) {
		out = append(out, s.Text)
	}
	return out
}

type anchorSegment struct {
	text string
	kind AnchorKind
}

// splitAtAnchors cuts t at the start of every anchored line without consuming the
// anchor. Text before the first anchor forms its own segment.
func splitAtAnchors(t string) []anchorSegment {
	var segs []anchorSegment
	start, kind := 0, AnchorNone
	for pos := 0; pos < len(t); {
		if k := anchorAt(t[pos:]); k != AnchorNone && pos > start {
			segs = append(segs, anchorSegment{text: t[start:pos], kind: kind})
			start, kind = pos, k
		} else if k != AnchorNone {
			kind = k
		}
		nl := strings.IndexByte(t[pos:], '\n')
		if nl < 0 {
			break
		}
		pos += nl + 1
	}
	return append(segs, anchorSegment{text: t[start:], kind: kind})
}

func anchorAt(line string) AnchorKind {
	for _, a := range anchors {
		if a.re.MatchString(line) {
			return a.kind
		}
	}
	return AnchorNone
}
