package completion

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/unoclass/pkg/cache"
	"github.com/walteh/unoclass/pkg/config"
	"github.com/walteh/unoclass/pkg/events"
	"github.com/walteh/unoclass/pkg/oracle"
	"github.com/walteh/unoclass/pkg/position"
)

type Kind string

const (
	KindEnumMember Kind = "enumMember"
	KindColor      Kind = "color"
)

// Item is a single suggestion. Generator is kept so Resolve can render the
// item later without looking the engine context up again.
type Item struct {
	Label         string           `json:"label"`
	Kind          Kind             `json:"kind"`
	Value         string           `json:"value"`
	InsertText    string           `json:"insertText"`
	Start         int              `json:"start"`
	End           int              `json:"end"`
	SortText      string           `json:"sortText,omitempty"`
	Detail        string           `json:"detail,omitempty"`
	Documentation string           `json:"documentation,omitempty"`
	Generator     oracle.Generator `json:"-"`
}

type List struct {
	Items        []Item `json:"items"`
	IsIncomplete bool   `json:"isIncomplete"`
}

type Request struct {
	Engine oracle.Context
	ID     string
	Code   string
	Offset int
}

// Provider answers completion requests. Autocompleters are built once per
// engine context and dropped when that context reloads or unloads.
type Provider struct {
	settings      func() config.Settings
	autocompletes *cache.Cache[oracle.Autocompleter]
}

func NewProvider(settings func() config.Settings) *Provider {
	return &Provider{
		settings:      settings,
		autocompletes: cache.New[oracle.Autocompleter]("autocomplete"),
	}
}

// Register hooks the provider's cache up to the lifecycle bus.
func (p *Provider) Register(bus *events.Bus) []events.Subscription {
	drop := func(ctx context.Context, ev events.Event) error {
		p.autocompletes.Invalidate(ev.Key)
		return nil
	}
	return []events.Subscription{
		bus.Subscribe(events.ContextReload, drop),
		bus.Subscribe(events.ContextUnload, drop),
		bus.Subscribe(events.Unload, func(ctx context.Context, ev events.Event) error {
			p.Reset()
			return nil
		}),
	}
}

// WatchSettings flushes every autocompleter when a setting that shapes
// suggestions changes.
func (p *Provider) WatchSettings(w *config.Watcher) {
	w.WatchChanged([]string{
		config.KeyAutocompleteMatchType,
		config.KeyAutocompleteStrict,
		config.KeyAutocompleteClassFunctions,
		config.KeyAutocompleteMaxItems,
	}, func(ctx context.Context, s config.Settings) {
		p.Reset()
	})
}

func (p *Provider) Reset() {
	p.autocompletes.Flush()
}

func (p *Provider) autocomplete(ctx context.Context, engine oracle.Context) (oracle.Autocompleter, error) {
	matchType := p.settings().AutocompleteMatchType
	return p.autocompletes.GetOrCompute(ctx, engine.ID, func(ctx context.Context) (oracle.Autocompleter, error) {
		return oracle.NewAutocomplete(engine.Generator, matchType)
	})
}

type replacement struct {
	start int
	end   int
	query string
}

// Complete returns suggestions for the cursor in req. Failures of the
// generator are logged and produce an empty list.
func (p *Provider) Complete(ctx context.Context, req Request) (*List, error) {
	logger := zerolog.Ctx(ctx).With().Str("id", req.ID).Int("offset", req.Offset).Logger()

	if req.Code == "" || req.Engine.Generator == nil {
		return &List{}, nil
	}

	settings := p.settings()

	fsc, inFunction := FunctionStringContextAtOffset(ctx, req.Code, req.Offset, settings.AutocompleteClassFunctions)
	if !inFunction && settings.AutocompleteStrict {
		logger.Trace().Msg("cursor not in a class function string, strict mode")
		return &List{}, nil
	}

	if inFunction {
		items, err := p.suggest(ctx, req.Engine, replacement{start: fsc.Start, end: fsc.End, query: fsc.Query}, settings.AutocompleteMaxItems)
		if err != nil {
			logger.Warn().Err(err).Msg("error getting autocompletion items")
			return &List{}, nil
		}
		if len(items) > 0 || settings.AutocompleteStrict {
			return &List{Items: items, IsIncomplete: true}, nil
		}
		logger.Trace().Str("query", fsc.Query).Msg("no suggestions for class function token, trying the word at the cursor")
	}

	items, err := p.suggest(ctx, req.Engine, wordAt(req.Code, req.Offset), settings.AutocompleteMaxItems)
	if err != nil {
		logger.Warn().Err(err).Msg("error getting autocompletion items")
		return &List{}, nil
	}

	return &List{Items: items, IsIncomplete: true}, nil
}

func (p *Provider) suggest(ctx context.Context, engine oracle.Context, repl replacement, maxItems int) ([]Item, error) {
	ac, err := p.autocomplete(ctx, engine)
	if err != nil {
		return nil, errors.Errorf("building autocomplete for %s: %w", engine.ID, err)
	}

	suggestions, err := ac.Suggest(ctx, repl.query)
	if err != nil {
		return nil, errors.Errorf("suggesting %q: %w", repl.query, err)
	}
	if maxItems > 0 && len(suggestions) > maxItems {
		suggestions = suggestions[:maxItems]
	}

	items := make([]Item, 0, len(suggestions))
	for _, value := range suggestions {
		res, err := engine.Generator.Generate(ctx, []string{value}, oracle.ProbeOptions)
		if err != nil {
			return nil, errors.Errorf("generating css for %q: %w", value, err)
		}

		item := Item{
			Label:      value,
			Kind:       KindEnumMember,
			Value:      value,
			InsertText: value,
			Start:      repl.start,
			End:        repl.end,
			Generator:  engine.Generator,
		}
		if color, ok := ColorString(res.CSS); ok {
			item.Kind = KindColor
			item.Documentation = color
			item.SortText = "2"
			if numberedRE.MatchString(value) {
				item.SortText = "1"
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// Resolve fills in the generated CSS for an item.
func (p *Provider) Resolve(ctx context.Context, item Item) (Item, error) {
	if item.Generator == nil {
		return item, nil
	}

	res, err := item.Generator.Generate(ctx, []string{item.Value}, oracle.Options{Minify: false})
	if err != nil {
		return item, errors.Errorf("resolving %q: %w", item.Value, err)
	}

	if item.Kind == KindColor {
		item.Detail = res.CSS
	} else {
		item.Documentation = fmt.Sprintf("```css\n%s\n```", res.CSS)
	}
	return item, nil
}

var (
	numberedRE = regexp.MustCompile(`-\d$`)
	colorRE    = regexp.MustCompile(`#[0-9a-fA-F]{3,8}\b|(?:rgba?|hsla?)\([^)]*\)`)
)

// ColorString returns the first colour literal in css.
func ColorString(css string) (string, bool) {
	m := colorRE.FindString(css)
	return m, m != ""
}

func isWordBoundary(r rune) bool {
	return position.IsSpace(r) || strings.ContainsRune(`"'`+"`"+`<>=(){},;`, r)
}

// wordAt is used outside class functions and when the class function token
// suggests nothing: the run of non-delimiters around offset, with the query
// being the part left of it.
func wordAt(text string, offset int) replacement {
	offset = min(max(offset, 0), len(text))
	start, end := expand(text, offset, offset, 0, len(text), isWordBoundary)
	return replacement{start: start, end: end, query: text[start:offset]}
}
