package oracle

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// RuleSet is a small utility engine described in YAML:
//
//	preflight: "*,::before,::after{box-sizing:border-box}"
//	safelist: [flex]
//	static:
//	  flex: display:flex
//	rules:
//	  - match: '^m-(\d+)$'
//	    css: 'margin:calc(${1} * 0.25rem)'
//	    autocomplete: [m-1, m-2, m-4]
type RuleSet struct {
	Preflight string            `yaml:"preflight"`
	Safelist  []string          `yaml:"safelist"`
	Static    map[string]string `yaml:"static"`
	Rules     []*Rule           `yaml:"rules"`
}

type Rule struct {
	Match        string   `yaml:"match"`
	CSS          string   `yaml:"css"`
	Autocomplete []string `yaml:"autocomplete"`

	re *regexp.Regexp
}

var _ Generator = (*RuleSet)(nil)
var _ Enumerator = (*RuleSet)(nil)

func ParseRuleSet(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, errors.Errorf("decoding rules: %w", err)
	}
	if err := rs.compile(); err != nil {
		return nil, err
	}
	return &rs, nil
}

func LoadRuleSet(fs afero.Fs, path string) (*RuleSet, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Errorf("reading rules file %s: %w", path, err)
	}
	rs, err := ParseRuleSet(data)
	if err != nil {
		return nil, errors.Errorf("loading rules file %s: %w", path, err)
	}
	return rs, nil
}

func (me *RuleSet) compile() error {
	var result *multierror.Error
	for i, rule := range me.Rules {
		if rule == nil {
			result = multierror.Append(result, errors.Errorf("rule %d is empty", i))
			continue
		}
		re, err := regexp.Compile(rule.Match)
		if err != nil {
			result = multierror.Append(result, errors.Errorf("rule %d (%q): %w", i, rule.Match, err))
			continue
		}
		rule.re = re
	}
	return result.ErrorOrNil()
}

// declarations returns the CSS body for token, or false when no rule knows it.
func (me *RuleSet) declarations(token string) (string, bool) {
	if decl, ok := me.Static[token]; ok {
		return decl, true
	}
	for _, rule := range me.Rules {
		if rule == nil || rule.re == nil {
			continue
		}
		m := rule.re.FindStringSubmatchIndex(token)
		if m == nil {
			continue
		}
		return string(rule.re.ExpandString(nil, rule.CSS, token, m)), true
	}
	return "", false
}

func (me *RuleSet) Generate(ctx context.Context, tokens []string, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Errorf("generating css: %w", err)
	}

	res := &Result{Matched: make(map[string]struct{})}

	all := tokens
	if opts.Safelist {
		all = append(append([]string{}, tokens...), me.Safelist...)
	}

	var blocks []string
	for _, token := range sortedUnique(all) {
		decl, ok := me.declarations(token)
		if !ok {
			continue
		}
		res.Matched[token] = struct{}{}
		blocks = append(blocks, formatBlock(token, decl, opts.Minify))
	}

	if opts.Preflights && me.Preflight != "" {
		blocks = append([]string{me.Preflight}, blocks...)
	}

	sep := "\n"
	if opts.Minify {
		sep = ""
	}
	res.CSS = strings.Join(blocks, sep)

	return res, nil
}

func (me *RuleSet) Candidates() []string {
	var out []string
	for name := range me.Static {
		out = append(out, name)
	}
	for _, rule := range me.Rules {
		if rule == nil {
			continue
		}
		out = append(out, rule.Autocomplete...)
	}
	return sortedUnique(out)
}

func formatBlock(token, decl string, minify bool) string {
	selector := "." + escapeSelector(token)

	var props []string
	for _, p := range strings.Split(decl, ";") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !minify {
			if k, v, ok := strings.Cut(p, ":"); ok {
				p = strings.TrimSpace(k) + ": " + strings.TrimSpace(v)
			}
		}
		props = append(props, p+";")
	}

	if minify {
		return selector + "{" + strings.Join(props, "") + "}"
	}
	return selector + " {\n  " + strings.Join(props, "\n  ") + "\n}"
}

func escapeSelector(token string) string {
	var b strings.Builder
	for i, r := range token {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == '-':
			b.WriteRune(r)
		case r >= '0' && r <= '9' && i > 0:
			b.WriteRune(r)
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}

func sortedUnique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
