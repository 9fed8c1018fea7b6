package oracle

import (
	"context"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
	"gitlab.com/tozd/go/errors"
)

type autocomplete struct {
	candidates []string
	matchType  MatchType
}

// NewAutocomplete builds an Autocompleter over the utilities gen can
// enumerate. An empty match type means prefix matching.
func NewAutocomplete(gen Generator, matchType MatchType) (Autocompleter, error) {
	enum, ok := gen.(Enumerator)
	if !ok {
		return nil, errors.Errorf("generator %T cannot enumerate its utilities", gen)
	}

	switch matchType {
	case "":
		matchType = MatchPrefix
	case MatchPrefix, MatchFuzzy:
	default:
		return nil, errors.Errorf("unknown autocomplete match type %q", matchType)
	}

	return &autocomplete{
		candidates: enum.Candidates(),
		matchType:  matchType,
	}, nil
}

func (me *autocomplete) Suggest(ctx context.Context, query string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Errorf("suggesting %q: %w", query, err)
	}

	if query == "" {
		return append([]string{}, me.candidates...), nil
	}

	if me.matchType == MatchFuzzy {
		matches := fuzzy.Find(query, me.candidates)
		out := make([]string, 0, len(matches))
		for _, m := range matches {
			out = append(out, m.Str)
		}
		return out, nil
	}

	var out []string
	for _, c := range me.candidates {
		if strings.HasPrefix(c, query) {
			out = append(out, c)
		}
	}
	// shorter names first so "m-1" comes before "m-10"
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i]) < len(out[j])
	})
	return out, nil
}
