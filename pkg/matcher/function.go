// Package matcher finds the utility classes used in a document.
package matcher

import (
	"context"
	"sort"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/unoclass/pkg/callsite"
	"github.com/walteh/unoclass/pkg/lexer"
	"github.com/walteh/unoclass/pkg/oracle"
	"github.com/walteh/unoclass/pkg/position"
)

// FunctionTokens returns every whitespace-delimited token found in closed
// string literals passed to one of functionNames.
func FunctionTokens(ctx context.Context, text string, functionNames []string) []position.TokenRange {
	names := callsite.ValidFunctionNames(ctx, functionNames)
	if len(names) == 0 {
		return nil
	}

	var tokens []position.TokenRange
	for _, paren := range callsite.OpenParens(text, names) {
		for _, r := range lexer.StringRangesInCall(text, paren) {
			tokens = append(tokens, position.Tokenize(text, r)...)
		}
	}
	return tokens
}

// FunctionMatchedPositions returns the tokens inside class-function string
// arguments that gen accepts, deduplicated and ordered by start. gen is asked
// exactly once, and not at all when there is nothing to ask about.
func FunctionMatchedPositions(ctx context.Context, gen oracle.Generator, text string, functionNames []string) ([]position.MatchedPosition, error) {
	tokens := FunctionTokens(ctx, text, functionNames)
	if len(tokens) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{}, len(tokens))
	var unique []string
	for _, tok := range tokens {
		if _, ok := seen[tok.Text]; ok {
			continue
		}
		seen[tok.Text] = struct{}{}
		unique = append(unique, tok.Text)
	}
	sort.Strings(unique)

	res, err := gen.Generate(ctx, unique, oracle.ProbeOptions)
	if err != nil {
		return nil, errors.Errorf("probing %d class function tokens: %w", len(unique), err)
	}

	var out []position.MatchedPosition
	for _, tok := range tokens {
		if !res.Has(tok.Text) {
			continue
		}
		out = append(out, position.MatchedPosition{Start: tok.Start, End: tok.End, Text: tok.Text})
	}
	out = position.Dedup(out)
	position.Sort(out)

	zerolog.Ctx(ctx).Trace().Int("tokens", len(tokens)).Int("matched", len(out)).Msg("matched class function tokens")

	return out, nil
}
