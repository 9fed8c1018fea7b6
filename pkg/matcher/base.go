package matcher

import (
	"context"
	"regexp"
	"sort"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/unoclass/pkg/oracle"
	"github.com/walteh/unoclass/pkg/position"
)

// BaseScanner finds matched positions anywhere in a document, independent of
// class functions.
type BaseScanner interface {
	MatchedPositions(ctx context.Context, gen oracle.Generator, text, id string, strict bool) ([]position.MatchedPosition, error)
}

var (
	candidateRE = regexp.MustCompile("[^" + position.SpaceClass + "'\"`;{}<>=,]+")

	// DefaultInclude are the spans strict matching looks at.
	DefaultInclude = []*regexp.Regexp{
		regexp.MustCompile(`"[^"]*"`),
		regexp.MustCompile(`'[^']*'`),
		regexp.MustCompile("`[^`]*`"),
		regexp.MustCompile(`@apply[^;]*;`),
	}

	// DefaultExclude are spans strict matching ignores even inside an include.
	DefaultExclude = []*regexp.Regexp{
		regexp.MustCompile(`(?s)/\*.*?\*/`),
		regexp.MustCompile(`(?s)<!--.*?-->`),
	}
)

// RegexpScanner splits the whole document into candidates and keeps the ones
// the generator accepts. In strict mode a candidate must lie inside an Include
// span and must not touch an Exclude span.
type RegexpScanner struct {
	Include []*regexp.Regexp
	Exclude []*regexp.Regexp
}

var _ BaseScanner = (*RegexpScanner)(nil)

func NewDefaultScanner() *RegexpScanner {
	return &RegexpScanner{Include: DefaultInclude, Exclude: DefaultExclude}
}

type span struct{ start, end int }

func spans(text string, res []*regexp.Regexp) []span {
	var out []span
	for _, re := range res {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			out = append(out, span{loc[0], loc[1]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

func within(s span, set []span) bool {
	for _, o := range set {
		if o.start > s.start {
			break
		}
		if s.end <= o.end {
			return true
		}
	}
	return false
}

func overlaps(s span, set []span) bool {
	for _, o := range set {
		if o.start >= s.end {
			break
		}
		if o.end > s.start {
			return true
		}
	}
	return false
}

func (me *RegexpScanner) MatchedPositions(ctx context.Context, gen oracle.Generator, text, id string, strict bool) ([]position.MatchedPosition, error) {
	var include, exclude []span
	if strict {
		include = spans(text, me.Include)
		exclude = spans(text, me.Exclude)
	}

	var candidates []position.TokenRange
	seen := make(map[string]struct{})
	var unique []string
	for _, loc := range candidateRE.FindAllStringIndex(text, -1) {
		s := span{loc[0], loc[1]}
		if strict && (!within(s, include) || overlaps(s, exclude)) {
			continue
		}
		tok := text[s.start:s.end]
		candidates = append(candidates, position.TokenRange{Start: s.start, End: s.end, Text: tok})
		if _, ok := seen[tok]; !ok {
			seen[tok] = struct{}{}
			unique = append(unique, tok)
		}
	}
	if len(unique) == 0 {
		return nil, nil
	}
	sort.Strings(unique)

	res, err := gen.Generate(ctx, unique, oracle.ProbeOptions)
	if err != nil {
		return nil, errors.Errorf("probing candidates of %s: %w", id, err)
	}

	var out []position.MatchedPosition
	for _, c := range candidates {
		if res.Has(c.Text) {
			out = append(out, position.MatchedPosition{Start: c.Start, End: c.End, Text: c.Text})
		}
	}
	return out, nil
}
