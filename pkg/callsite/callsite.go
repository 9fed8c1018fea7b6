// Package callsite finds calls to class-list helper functions such as clsx or
// cn in arbitrary source text.
package callsite

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/walteh/unoclass/pkg/position"
)

var functionNameRE = regexp.MustCompile(`^[$A-Z_a-z][$\w]*$`)

// compiled call patterns, keyed by function name
var callPatterns sync.Map // map[string]*regexp.Regexp

// ValidFunctionNames trims names and drops the ones that are not plain
// identifiers. Order is kept and duplicates removed.
func ValidFunctionNames(ctx context.Context, names []string) []string {
	var valid []string
	seen := make(map[string]struct{}, len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if !functionNameRE.MatchString(name) {
			zerolog.Ctx(ctx).Debug().Str("name", raw).Msg("ignoring class function name that is not an identifier")
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		valid = append(valid, name)
	}
	return valid
}

func callPattern(name string) *regexp.Regexp {
	if re, ok := callPatterns.Load(name); ok {
		return re.(*regexp.Regexp)
	}
	// \b never matches before a leading $ that follows a space
	prefix := `\b`
	if strings.HasPrefix(name, "$") {
		prefix = `(?:^|[^$\w])`
	}
	re := regexp.MustCompile(prefix + regexp.QuoteMeta(name) + `[` + position.SpaceClass + `]*\(`)
	actual, _ := callPatterns.LoadOrStore(name, re)
	return actual.(*regexp.Regexp)
}

// openParensFor returns the open paren index of every call to name.
// name must already be validated.
func openParensFor(text, name string) []int {
	var out []int
	for _, loc := range callPattern(name).FindAllStringIndex(text, -1) {
		// the match always ends with the paren
		out = append(out, loc[1]-1)
	}
	return out
}

// LastOpenParenBefore returns the offset of the last call paren that sits
// before the given index, or -1. names must already be validated.
func LastOpenParenBefore(text string, before int, names []string) int {
	last := -1
	for _, name := range names {
		for _, paren := range openParensFor(text, name) {
			if paren >= before {
				break
			}
			if paren > last {
				last = paren
			}
		}
	}
	return last
}

// OpenParens returns the open paren of every call to any of names, ascending
// and without duplicates. names must already be validated.
func OpenParens(text string, names []string) []int {
	seen := make(map[int]struct{})
	var out []int
	for _, name := range names {
		for _, paren := range openParensFor(text, name) {
			if _, ok := seen[paren]; ok {
				continue
			}
			seen[paren] = struct{}{}
			out = append(out, paren)
		}
	}
	sort.Ints(out)
	return out
}
