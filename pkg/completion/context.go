package completion

import (
	"context"
	"unicode/utf8"

	"github.com/walteh/unoclass/pkg/callsite"
	"github.com/walteh/unoclass/pkg/lexer"
	"github.com/walteh/unoclass/pkg/position"
)

// FunctionStringContext is the token under the cursor inside a string argument
// of a class-list function. Query is only the part left of the cursor.
type FunctionStringContext struct {
	Start int
	End   int
	Query string
}

// expand grows [start, end) over the runes around it for which stop is false,
// without leaving [lo, hi).
func expand(text string, start, end, lo, hi int, stop func(rune) bool) (int, int) {
	for start > lo {
		r, size := utf8.DecodeLastRuneInString(text[lo:start])
		if stop(r) {
			break
		}
		start -= size
	}
	for end < hi {
		r, size := utf8.DecodeRuneInString(text[end:hi])
		if stop(r) {
			break
		}
		end += size
	}
	return start, end
}

// FunctionStringContextAtOffset finds the token at offset when offset is inside
// a string literal passed to one of functionNames. It returns false whenever
// the cursor is simply not in such a place.
func FunctionStringContextAtOffset(ctx context.Context, text string, offset int, functionNames []string) (*FunctionStringContext, bool) {
	names := callsite.ValidFunctionNames(ctx, functionNames)
	if len(names) == 0 {
		return nil, false
	}

	rng, ok := lexer.FindStringRangeAtOffset(text, offset)
	if !ok {
		return nil, false
	}

	quote := rng.Start - 1
	paren := callsite.LastOpenParenBefore(text, quote, names)
	if paren < 0 || !lexer.IsInsideFunctionCall(text, paren, quote) {
		return nil, false
	}

	cursor := min(max(offset, rng.Start), rng.End)
	start, end := expand(text, cursor, cursor, rng.Start, rng.End, position.IsSpace)

	return &FunctionStringContext{
		Start: start,
		End:   end,
		Query: text[start:cursor],
	}, true
}
