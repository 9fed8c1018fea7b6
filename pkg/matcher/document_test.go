package matcher_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/unoclass/pkg/config"
	"github.com/walteh/unoclass/pkg/events"
	"github.com/walteh/unoclass/pkg/matcher"
	"github.com/walteh/unoclass/pkg/oracle"
	"github.com/walteh/unoclass/pkg/oracle/oracletest"
	"github.com/walteh/unoclass/pkg/position"
)

func TestRegexpScanner(t *testing.T) {
	text := "<div class=\"flex p-4\">flex</div>\n/* \"m-2\" */ const s = 'm-2'"
	gen := oracletest.NewStaticGenerator("flex", "p-4", "m-2")
	scanner := matcher.NewDefaultScanner()

	t.Run("loose", func(t *testing.T) {
		got, err := scanner.MatchedPositions(testContext(t), gen, text, "a.html", false)
		require.NoError(t, err)
		assert.Equal(t, []string{"flex@12", "p-4@17", "flex@22", "m-2@37", "m-2@56"}, strs(got))
	})

	t.Run("strict", func(t *testing.T) {
		got, err := scanner.MatchedPositions(testContext(t), gen, text, "a.html", true)
		require.NoError(t, err)
		assert.Equal(t, []string{"flex@12", "p-4@17", "m-2@56"}, strs(got))
	})

	t.Run("unicode separators", func(t *testing.T) {
		got, err := scanner.MatchedPositions(testContext(t), gen, "<div class=\"flex\u00a0p-4\u2003m-2\">", "a.html", false)
		require.NoError(t, err)
		assert.Equal(t, []string{"flex@12", "p-4@18", "m-2@24"}, strs(got))
	})

	t.Run("nothing to probe", func(t *testing.T) {
		mg := &oracletest.MockGenerator{}
		got, err := scanner.MatchedPositions(testContext(t), mg, "  \n", "a.html", false)
		require.NoError(t, err)
		assert.Empty(t, got)
		mg.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
	})
}

type fakeBase struct {
	positions []position.MatchedPosition
	err       error
	calls     int
}

func (f *fakeBase) MatchedPositions(ctx context.Context, gen oracle.Generator, text, id string, strict bool) ([]position.MatchedPosition, error) {
	f.calls++
	return f.positions, f.err
}

func newDocumentMatcher(base matcher.BaseScanner, names ...string) *matcher.DocumentMatcher {
	s := config.Defaults()
	s.AutocompleteClassFunctions = names
	return matcher.NewDocumentMatcher(func() config.Settings { return s }, base)
}

func TestDocumentMatcherMerges(t *testing.T) {
	ctx := testContext(t)
	base := &fakeBase{positions: []position.MatchedPosition{
		{Start: 0, End: 4, Text: "flex"},
		{Start: 13, End: 16, Text: "p-4"},
	}}
	m := newDocumentMatcher(base, "cn")
	gen := oracletest.NewStaticGenerator("p-4", "m-2")

	doc := matcher.Document{ID: "/a.tsx", Text: `flex cn("m-2 p-4")`}
	got, err := m.MatchedPositions(ctx, gen, doc, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"flex@0", "m-2@9", "p-4@13"}, strs(got))
}

func TestDocumentMatcherWithoutFunctionsKeepsBase(t *testing.T) {
	ctx := testContext(t)
	unsorted := []position.MatchedPosition{
		{Start: 5, End: 6, Text: "b"},
		{Start: 1, End: 2, Text: "a"},
	}
	m := newDocumentMatcher(&fakeBase{positions: unsorted})

	got, err := m.MatchedPositions(ctx, oracletest.NewStaticGenerator(), matcher.Document{ID: "x", Text: "a b"}, false)
	require.NoError(t, err)
	assert.Equal(t, unsorted, got)
}

func TestDocumentMatcherCaching(t *testing.T) {
	ctx := testContext(t)
	base := &fakeBase{}
	m := newDocumentMatcher(base, "cn")
	gen := oracletest.NewStaticGenerator("flex")
	bus := events.NewBus()
	m.Register(bus)

	doc := matcher.Document{ID: "/a.tsx", Text: `cn("flex")`}

	first, err := m.MatchedPositions(ctx, gen, doc, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"flex@4"}, strs(first))

	// cached by id, even if the caller hands over different text
	changed := matcher.Document{ID: "/a.tsx", Text: `x cn("flex")`}
	again, err := m.MatchedPositions(ctx, gen, changed, false)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 1, base.calls)

	require.NoError(t, bus.Emit(ctx, events.Event{Kind: events.DocumentChanged, Key: "/a.tsx"}))
	fresh, err := m.MatchedPositions(ctx, gen, changed, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"flex@6"}, strs(fresh))
	assert.Equal(t, 2, base.calls)

	forced, err := m.MatchedPositions(ctx, gen, changed, true)
	require.NoError(t, err)
	assert.Equal(t, fresh, forced)
	assert.Equal(t, 3, base.calls)

	require.NoError(t, bus.Emit(ctx, events.Event{Kind: events.DocumentChanged, Key: "/other.tsx"}))
	_, err = m.MatchedPositions(ctx, gen, changed, false)
	require.NoError(t, err)
	assert.Equal(t, 3, base.calls)

	require.NoError(t, bus.Emit(ctx, events.Event{Kind: events.ContextReload, Key: "root"}))
	_, err = m.MatchedPositions(ctx, gen, changed, false)
	require.NoError(t, err)
	assert.Equal(t, 4, base.calls)
}

func TestDocumentMatcherErrors(t *testing.T) {
	ctx := testContext(t)
	base := &fakeBase{err: errors.New("scanner broke")}
	m := newDocumentMatcher(base, "cn")

	_, err := m.MatchedPositions(ctx, oracletest.NewStaticGenerator(), matcher.Document{ID: "x", Text: "a"}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scanner broke")

	// errors are not cached
	base.err = nil
	_, err = m.MatchedPositions(ctx, oracletest.NewStaticGenerator(), matcher.Document{ID: "x", Text: "a"}, false)
	require.NoError(t, err)
}

func TestDocumentMatcherWatchSettings(t *testing.T) {
	ctx := testContext(t)

	v, err := config.NewViper(nil, "")
	require.NoError(t, err)
	w, err := config.NewWatcher(v)
	require.NoError(t, err)

	base := &fakeBase{}
	m := matcher.NewDocumentMatcher(w.Settings, base)
	m.WatchSettings(w)

	doc := matcher.Document{ID: "x", Text: "a"}
	_, err = m.MatchedPositions(ctx, oracletest.NewStaticGenerator(), doc, false)
	require.NoError(t, err)

	next := w.Settings()
	next.StrictAnnotationMatch = true
	w.Apply(ctx, next)

	_, err = m.MatchedPositions(ctx, oracletest.NewStaticGenerator(), doc, false)
	require.NoError(t, err)
	assert.Equal(t, 2, base.calls)
}
