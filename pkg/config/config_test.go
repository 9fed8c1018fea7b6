package config_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/unoclass/pkg/config"
	"github.com/walteh/unoclass/pkg/oracle"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	return zerolog.New(zerolog.TestWriter{T: t}).With().Str("test", t.Name()).Logger().WithContext(context.Background())
}

func writeConfig(t *testing.T, fs afero.Fs, path, body string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, path, []byte(body), 0o644))
}

func TestLoadDefaults(t *testing.T) {
	s, err := config.Load(afero.NewMemMapFs(), "")
	require.NoError(t, err)
	assert.Equal(t, config.Defaults(), s)
}

func TestLoadFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeConfig(t, fs, "/project/unoclass.yaml", `
autocompleteClassFunctions: [tw, "bad name"]
strictAnnotationMatch: true
autocompleteMatchType: fuzzy
autocompleteMaxItems: 20
`)

	s, err := config.Load(fs, "/project/unoclass.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"tw", "bad name"}, s.AutocompleteClassFunctions)
	assert.True(t, s.StrictAnnotationMatch)
	assert.Equal(t, oracle.MatchFuzzy, s.AutocompleteMatchType)
	assert.Equal(t, 20, s.AutocompleteMaxItems)
	assert.Equal(t, config.Defaults().Include, s.Include)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("UNOCLASS_AUTOCOMPLETESTRICT", "true")

	s, err := config.Load(afero.NewMemMapFs(), "")
	require.NoError(t, err)
	assert.True(t, s.AutocompleteStrict)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(afero.NewMemMapFs(), "/nope.yaml")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	s := config.Defaults()
	require.NoError(t, s.Validate())

	s.AutocompleteMatchType = "regex"
	s.AutocompleteMaxItems = -1
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "autocompleteMatchType")
	assert.Contains(t, err.Error(), "autocompleteMaxItems")
}

func TestChangedKeys(t *testing.T) {
	a := config.Defaults()
	b := a
	b.AutocompleteClassFunctions = []string{"tw"}
	b.StrictAnnotationMatch = true

	assert.Empty(t, config.ChangedKeys(a, a))
	assert.Equal(t, []string{config.KeyAutocompleteClassFunctions, config.KeyStrictAnnotationMatch}, config.ChangedKeys(a, b))
}

func TestWatcherApply(t *testing.T) {
	ctx := testContext(t)

	v, err := config.NewViper(afero.NewMemMapFs(), "")
	require.NoError(t, err)
	w, err := config.NewWatcher(v)
	require.NoError(t, err)

	var autocompleteCalls, matchCalls int
	w.WatchChanged([]string{config.KeyAutocompleteClassFunctions, config.KeyAutocompleteMatchType}, func(ctx context.Context, s config.Settings) {
		autocompleteCalls++
	})
	w.WatchChanged([]string{config.KeyStrictAnnotationMatch}, func(ctx context.Context, s config.Settings) {
		matchCalls++
	})

	next := w.Settings()
	next.AutocompleteClassFunctions = []string{"tw"}
	w.Apply(ctx, next)

	assert.Equal(t, 1, autocompleteCalls)
	assert.Equal(t, 0, matchCalls)
	assert.Equal(t, []string{"tw"}, w.Settings().AutocompleteClassFunctions)

	// no change, no notification
	w.Apply(ctx, next)
	assert.Equal(t, 1, autocompleteCalls)
}

func TestWatcherReload(t *testing.T) {
	ctx := testContext(t)
	fs := afero.NewMemMapFs()
	writeConfig(t, fs, "/unoclass.yaml", "strictAnnotationMatch: false\n")

	v, err := config.NewViper(fs, "/unoclass.yaml")
	require.NoError(t, err)
	w, err := config.NewWatcher(v)
	require.NoError(t, err)

	got := false
	w.WatchChanged([]string{config.KeyStrictAnnotationMatch}, func(ctx context.Context, s config.Settings) {
		got = s.StrictAnnotationMatch
	})

	writeConfig(t, fs, "/unoclass.yaml", "strictAnnotationMatch: true\n")
	require.NoError(t, v.ReadInConfig())
	require.NoError(t, w.Reload(ctx))
	assert.True(t, got)
}

func TestShippedConfigMatchesDefaults(t *testing.T) {
	s, err := config.Load(afero.NewOsFs(), "../../unoclass.yaml")
	require.NoError(t, err)
	assert.Equal(t, config.Defaults(), s)
}
