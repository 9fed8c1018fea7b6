package position

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/apparentlymart/go-textseg/v13/textseg"
)

// StringRange delimits the content of a string literal, quotes excluded.
type StringRange struct {
	Start int
	End   int
}

func (r StringRange) Contains(offset int) bool {
	return offset >= r.Start && offset <= r.End
}

func (r StringRange) Len() int {
	return r.End - r.Start
}

// TokenRange is a whitespace-delimited token with absolute byte offsets.
type TokenRange struct {
	Start int
	End   int
	Text  string
}

// MatchedPosition is a token the generator confirmed as a valid utility class.
type MatchedPosition struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// Key returns the identity used for deduplication
func (p MatchedPosition) Key() string {
	return fmt.Sprintf("%d:%d:%s", p.Start, p.End, p.Text)
}

func (p MatchedPosition) String() string {
	return fmt.Sprintf("%s@%d", p.Text, p.Start)
}

type MatchedPositionArray []MatchedPosition

func (me MatchedPositionArray) ToStrings() []string {
	var texts []string
	for _, pos := range me {
		texts = append(texts, pos.String())
	}
	return texts
}

// SpaceClass is the body of a regexp character class for whitespace as
// JavaScript's \s defines it: ASCII spaces, every Unicode separator (Zs, Zl,
// Zp) and the byte order mark. Go's \s only covers ASCII.
const SpaceClass = `\t\n\v\f\r\p{Z}\x{FEFF}`

var tokenRE = regexp.MustCompile(`[^` + SpaceClass + `]+`)

// IsSpace reports whether r separates class tokens. It is the rune form of
// SpaceClass.
func IsSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', '\uFEFF':
		return true
	}
	return unicode.In(r, unicode.Z)
}

// Tokenize splits the content of r into whitespace-delimited tokens.
func Tokenize(text string, r StringRange) []TokenRange {
	if r.Start < 0 || r.End > len(text) || r.Start >= r.End {
		return nil
	}

	content := text[r.Start:r.End]
	var tokens []TokenRange
	for _, loc := range tokenRE.FindAllStringIndex(content, -1) {
		tokens = append(tokens, TokenRange{
			Start: r.Start + loc[0],
			End:   r.Start + loc[1],
			Text:  content[loc[0]:loc[1]],
		})
	}
	return tokens
}

// Merge combines base with extra. When extra is empty base is returned as-is;
// otherwise the union is deduplicated by Key and ordered by start offset.
func Merge(base, extra []MatchedPosition) []MatchedPosition {
	if len(extra) == 0 {
		return base
	}

	seen := NewSeenSet()
	merged := make([]MatchedPosition, 0, len(base)+len(extra))
	for _, group := range [][]MatchedPosition{base, extra} {
		for _, pos := range group {
			if seen.Add(pos) {
				merged = append(merged, pos)
			}
		}
	}

	Sort(merged)
	return merged
}

// Sort orders positions by start offset. Ties are broken by end and then text
// so the result does not depend on input order.
func Sort(positions []MatchedPosition) {
	sort.SliceStable(positions, func(i, j int) bool {
		a, b := positions[i], positions[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End < b.End
		}
		return a.Text < b.Text
	})
}

type Place struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

type Range struct {
	Start Place `json:"start"`
	End   Place `json:"end"`
}

// PlaceAt converts a byte offset into a zero-based line and a column counted
// in grapheme clusters.
func PlaceAt(text string, offset int) Place {
	if offset > len(text) {
		offset = len(text)
	}
	if offset <= 0 {
		return Place{}
	}

	before := text[:offset]
	line := strings.Count(before, "\n")
	lineStart := strings.LastIndexByte(before, '\n') + 1

	col, err := textseg.TokenCount([]byte(before[lineStart:]), textseg.ScanGraphemeClusters)
	if err != nil {
		col = offset - lineStart
	}

	return Place{Line: line, Character: col}
}

func (p MatchedPosition) GetRange(text string) Range {
	return Range{
		Start: PlaceAt(text, p.Start),
		End:   PlaceAt(text, p.End),
	}
}
