// Package oracle describes the utility-class generation engine that the rest of
// the module treats as a black box, plus a small rule-based implementation.
package oracle

import (
	"context"
)

// Options mirror the generation flags of the engine.
type Options struct {
	Preflights bool
	Safelist   bool
	Minify     bool
}

// ProbeOptions is what every validity check uses: no preflight or safelist
// output, minified CSS.
var ProbeOptions = Options{Preflights: false, Safelist: false, Minify: true}

type Result struct {
	CSS     string
	Matched map[string]struct{}
}

func (r *Result) Has(token string) bool {
	if r == nil {
		return false
	}
	_, ok := r.Matched[token]
	return ok
}

// Generator turns candidate tokens into CSS and reports which of them are
// utilities it recognises.
type Generator interface {
	Generate(ctx context.Context, tokens []string, opts Options) (*Result, error)
}

// Autocompleter suggests utilities for a partially typed token.
type Autocompleter interface {
	Suggest(ctx context.Context, query string) ([]string, error)
}

// Enumerator is implemented by generators that can list the utilities they
// know about.
type Enumerator interface {
	Candidates() []string
}

type MatchType string

const (
	MatchPrefix MatchType = "prefix"
	MatchFuzzy  MatchType = "fuzzy"
)

// Context binds a generator to the identifier the caches are keyed by.
type Context struct {
	ID        string
	Generator Generator
}
