// Package lexer classifies source text into code, comments and string
// literals. It is language-agnostic and only knows about // and
// /* */ comments, the three JavaScript quote characters and backslash escapes.
package lexer

import (
	"github.com/walteh/unoclass/pkg/position"
)

type State int

const (
	Code State = iota
	LineComment
	BlockComment
	String
)

func (s State) String() string {
	switch s {
	case Code:
		return "code"
	case LineComment:
		return "line-comment"
	case BlockComment:
		return "block-comment"
	case String:
		return "string"
	}
	return "unknown"
}

func isQuote(c byte) bool {
	return c == '"' || c == '\'' || c == '`'
}

// IsEscaped reports whether the byte at index is preceded by an odd number of
// backslashes.
func IsEscaped(text string, index int) bool {
	slashes := 0
	for i := index - 1; i >= 0 && text[i] == '\\'; i-- {
		slashes++
	}
	return slashes%2 == 1
}

// Event describes what a single Step did.
type Event int

const (
	None Event = iota
	StringOpened
	StringClosed
	OpenParen
	CloseParen
)

// Scanner walks text one byte at a time. The zero value is not usable, use New.
type Scanner struct {
	text        string
	pos         int
	state       State
	quote       byte
	stringStart int
}

// New returns a scanner positioned at from, in the Code state.
func New(text string, from int) *Scanner {
	if from < 0 {
		from = 0
	}
	return &Scanner{
		text:        text,
		pos:         from,
		state:       Code,
		stringStart: -1,
	}
}

func (s *Scanner) State() State {
	return s.state
}

// Pos is the index of the next byte Step will look at.
func (s *Scanner) Pos() int {
	return s.pos
}

// StringStart is the index of the opening quote of the current (or just
// closed) string, or -1.
func (s *Scanner) StringStart() int {
	return s.stringStart
}

func (s *Scanner) Done() bool {
	return s.pos >= len(s.text)
}

// Step consumes one byte (two for comment delimiters) and returns the event
// it produced along with the index of the byte that produced it.
func (s *Scanner) Step() (Event, int) {
	i := s.pos
	cur := s.text[i]
	var next byte
	if i+1 < len(s.text) {
		next = s.text[i+1]
	}
	s.pos++

	switch s.state {
	case LineComment:
		if cur == '\n' {
			s.state = Code
		}
		return None, i

	case BlockComment:
		if cur == '*' && next == '/' {
			s.state = Code
			s.pos++
		}
		return None, i

	case String:
		if cur == s.quote && !IsEscaped(s.text, i) {
			s.state = Code
			s.quote = 0
			return StringClosed, i
		}
		return None, i
	}

	if cur == '/' && next == '/' {
		s.state = LineComment
		s.pos++
		return None, i
	}

	if cur == '/' && next == '*' {
		s.state = BlockComment
		s.pos++
		return None, i
	}

	if isQuote(cur) && !IsEscaped(s.text, i) {
		s.state = String
		s.quote = cur
		s.stringStart = i
		return StringOpened, i
	}

	switch cur {
	case '(':
		return OpenParen, i
	case ')':
		return CloseParen, i
	}

	return None, i
}

// FindStringRangeAtOffset returns the content range of the string literal
// containing offset. A string still open at the end of text is treated as
// running to the end, since that is what a user typing a new string looks like.
func FindStringRangeAtOffset(text string, offset int) (position.StringRange, bool) {
	s := New(text, 0)
	for !s.Done() {
		ev, i := s.Step()
		if ev != StringClosed {
			continue
		}
		start := s.StringStart()
		if offset > start && offset <= i {
			return position.StringRange{Start: start + 1, End: i}, true
		}
	}

	if s.State() == String {
		start := s.StringStart()
		if start >= 0 && offset > start && offset <= len(text) {
			return position.StringRange{Start: start + 1, End: len(text)}, true
		}
	}

	return position.StringRange{}, false
}

// IsInsideFunctionCall reports whether the call opened at openParen is still
// open at target. Parens inside strings and comments are ignored.
func IsInsideFunctionCall(text string, openParen, target int) bool {
	if target > len(text) {
		target = len(text)
	}

	depth := 1
	s := New(text, openParen+1)
	for s.Pos() < target {
		ev, _ := s.Step()
		switch ev {
		case OpenParen:
			depth++
		case CloseParen:
			depth--
			if depth == 0 {
				return false
			}
		}
	}
	return depth > 0
}

// StringRangesInCall returns every closed string literal between openParen and
// the paren that balances it. If the call never closes the scan stops at the
// end of text; a trailing unterminated string is not reported.
func StringRangesInCall(text string, openParen int) []position.StringRange {
	var ranges []position.StringRange

	depth := 1
	s := New(text, openParen+1)
	for !s.Done() {
		ev, i := s.Step()
		switch ev {
		case StringClosed:
			ranges = append(ranges, position.StringRange{Start: s.StringStart() + 1, End: i})
		case OpenParen:
			depth++
		case CloseParen:
			depth--
			if depth == 0 {
				return ranges
			}
		}
	}
	return ranges
}
