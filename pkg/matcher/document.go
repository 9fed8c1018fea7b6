package matcher

import (
	"context"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/walteh/unoclass/pkg/cache"
	"github.com/walteh/unoclass/pkg/config"
	"github.com/walteh/unoclass/pkg/events"
	"github.com/walteh/unoclass/pkg/oracle"
	"github.com/walteh/unoclass/pkg/position"
)

// Document is the text of a file at one point in time. ID is stable across
// edits (a path or URI), never a content hash.
type Document struct {
	ID       string `json:"id"`
	Text     string `json:"-"`
	Language string `json:"language,omitempty"`
}

// DocumentMatcher caches matched positions per document.
type DocumentMatcher struct {
	settings func() config.Settings
	base     BaseScanner
	cache    *cache.Cache[[]position.MatchedPosition]
}

func NewDocumentMatcher(settings func() config.Settings, base BaseScanner) *DocumentMatcher {
	if base == nil {
		base = NewDefaultScanner()
	}
	return &DocumentMatcher{
		settings: settings,
		base:     base,
		cache:    cache.New[[]position.MatchedPosition]("matched-positions"),
	}
}

// Register drops a document's entry when it changes, and everything when an
// engine context reloads or the host unloads.
func (m *DocumentMatcher) Register(bus *events.Bus) []events.Subscription {
	flush := func(ctx context.Context, ev events.Event) error {
		m.cache.Flush()
		return nil
	}
	return []events.Subscription{
		bus.Subscribe(events.DocumentChanged, func(ctx context.Context, ev events.Event) error {
			m.Invalidate(ev.Key)
			return nil
		}),
		bus.Subscribe(events.ContextReload, flush),
		bus.Subscribe(events.Unload, flush),
	}
}

func (m *DocumentMatcher) WatchSettings(w *config.Watcher) {
	w.WatchChanged([]string{
		config.KeyStrictAnnotationMatch,
		config.KeyAutocompleteClassFunctions,
	}, func(ctx context.Context, s config.Settings) {
		m.cache.Flush()
	})
}

func (m *DocumentMatcher) Invalidate(id string) {
	m.cache.Invalidate(id)
}

// MatchedPositions returns the cached positions for doc, computing them when
// missing or when force is set.
func (m *DocumentMatcher) MatchedPositions(ctx context.Context, gen oracle.Generator, doc Document, force bool) ([]position.MatchedPosition, error) {
	if force {
		m.cache.Invalidate(doc.ID)
	}

	settings := m.settings()
	return m.cache.GetOrCompute(ctx, doc.ID, func(ctx context.Context) ([]position.MatchedPosition, error) {
		return m.compute(ctx, gen, doc, settings)
	})
}

func (m *DocumentMatcher) compute(ctx context.Context, gen oracle.Generator, doc Document, settings config.Settings) ([]position.MatchedPosition, error) {
	var base, extra []position.MatchedPosition

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		var err error
		base, err = m.base.MatchedPositions(gctx, gen, doc.Text, doc.ID, settings.StrictAnnotationMatch)
		return err
	})
	grp.Go(func() error {
		var err error
		extra, err = FunctionMatchedPositions(gctx, gen, doc.Text, settings.AutocompleteClassFunctions)
		return err
	})
	if err := grp.Wait(); err != nil {
		return nil, errors.Errorf("matching %s: %w", doc.ID, err)
	}

	merged := position.Merge(base, extra)

	zerolog.Ctx(ctx).Debug().
		Str("id", doc.ID).
		Int("base", len(base)).
		Int("functions", len(extra)).
		Int("merged", len(merged)).
		Msg("computed matched positions")

	return merged, nil
}
