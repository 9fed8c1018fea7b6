// Package session wires settings, the rule engine, the lifecycle bus and the
// completion and matching services together for one workspace.
package session

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/unoclass/pkg/completion"
	"github.com/walteh/unoclass/pkg/config"
	"github.com/walteh/unoclass/pkg/events"
	"github.com/walteh/unoclass/pkg/matcher"
	"github.com/walteh/unoclass/pkg/oracle"
	"github.com/walteh/unoclass/pkg/position"
	"github.com/walteh/unoclass/pkg/workspace"
)

type Options struct {
	// ConfigPath is optional; defaults and UNOCLASS_ variables apply without it.
	ConfigPath string
	// RulesPath overrides the rules setting when non-empty.
	RulesPath string
}

type Session struct {
	fs      afero.Fs
	opts    Options
	watcher *config.Watcher

	Bus      *events.Bus
	Provider *completion.Provider
	Matcher  *matcher.DocumentMatcher

	mu     sync.RWMutex
	engine oracle.Context
}

func Open(ctx context.Context, fs afero.Fs, opts Options) (*Session, error) {
	v, err := config.NewViper(fs, opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	w, err := config.NewWatcher(v)
	if err != nil {
		return nil, err
	}

	me := &Session{
		fs:       fs,
		opts:     opts,
		watcher:  w,
		Bus:      events.NewBus(),
		Provider: completion.NewProvider(w.Settings),
		Matcher:  matcher.NewDocumentMatcher(w.Settings, nil),
	}

	me.Provider.Register(me.Bus)
	me.Provider.WatchSettings(w)
	me.Matcher.Register(me.Bus)
	me.Matcher.WatchSettings(w)

	w.WatchChanged([]string{config.KeyRules}, func(ctx context.Context, s config.Settings) {
		if err := me.ReloadRules(ctx); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("keeping previous rules")
		}
	})

	if err := me.ReloadRules(ctx); err != nil {
		return nil, err
	}

	return me, nil
}

func (me *Session) Settings() config.Settings {
	return me.watcher.Settings()
}

func (me *Session) Watcher() *config.Watcher {
	return me.watcher
}

// RulesPath is the rules file in effect. A relative rules setting is taken
// relative to the config file.
func (me *Session) RulesPath() string {
	if me.opts.RulesPath != "" {
		return me.opts.RulesPath
	}
	p := me.Settings().Rules
	if me.opts.ConfigPath != "" && !filepath.IsAbs(p) {
		p = filepath.Join(filepath.Dir(me.opts.ConfigPath), p)
	}
	return p
}

func (me *Session) Engine() oracle.Context {
	me.mu.RLock()
	defer me.mu.RUnlock()
	return me.engine
}

// ReloadRules reads the rules file again and announces the new engine
// context on the bus.
func (me *Session) ReloadRules(ctx context.Context) error {
	path := me.RulesPath()
	rs, err := oracle.LoadRuleSet(me.fs, path)
	if err != nil {
		return err
	}

	me.mu.Lock()
	me.engine = oracle.Context{ID: path, Generator: rs}
	me.mu.Unlock()

	zerolog.Ctx(ctx).Debug().Str("rules", path).Int("rules_count", len(rs.Rules)).Msg("loaded rules")

	return me.Bus.Emit(ctx, events.Event{Kind: events.ContextReload, Key: path})
}

func (me *Session) Filter() workspace.Filter {
	s := me.Settings()
	return workspace.Filter{Include: s.Include, Exclude: s.Exclude}
}

// Complete answers a completion request for the file at path.
func (me *Session) Complete(ctx context.Context, path string, offset int) (*completion.List, error) {
	data, err := afero.ReadFile(me.fs, path)
	if err != nil {
		return nil, errors.Errorf("reading %s: %w", path, err)
	}
	if offset < 0 || offset > len(data) {
		return nil, errors.Errorf("offset %d outside of %s (%d bytes)", offset, path, len(data))
	}

	list, err := me.Provider.Complete(ctx, completion.Request{
		Engine: me.Engine(),
		ID:     path,
		Code:   string(data),
		Offset: offset,
	})
	if err != nil {
		return nil, err
	}

	for i, item := range list.Items {
		resolved, err := me.Provider.Resolve(ctx, item)
		if err != nil {
			return nil, err
		}
		list.Items[i] = resolved
	}
	return list, nil
}

type Match struct {
	position.MatchedPosition
	Range position.Range `json:"range"`
}

type FileMatches struct {
	ID       string  `json:"id"`
	Language string  `json:"language,omitempty"`
	Matches  []Match `json:"matches"`
}

// Match collects the documents under paths and reports the matched utilities
// in each. force recomputes documents already in the cache.
func (me *Session) Match(ctx context.Context, paths []string, force bool) ([]FileMatches, error) {
	docs, err := workspace.Collect(ctx, me.fs, me.Filter(), paths)
	if err != nil {
		return nil, err
	}

	engine := me.Engine()
	out := make([]FileMatches, 0, len(docs))
	for _, doc := range docs {
		positions, err := me.Matcher.MatchedPositions(ctx, engine.Generator, doc, force)
		if err != nil {
			return nil, err
		}
		fm := FileMatches{ID: doc.ID, Language: doc.Language, Matches: make([]Match, 0, len(positions))}
		for _, p := range positions {
			fm.Matches = append(fm.Matches, Match{MatchedPosition: p, Range: p.GetRange(doc.Text)})
		}
		out = append(out, fm)
	}
	return out, nil
}

// DocumentChanged drops the cached result for id. id is cleaned the same way
// Collect cleans document paths.
func (me *Session) DocumentChanged(ctx context.Context, id string) error {
	return me.Bus.Emit(ctx, events.Event{Kind: events.DocumentChanged, Key: filepath.Clean(id)})
}

// Close tells every subscriber the session is going away.
func (me *Session) Close(ctx context.Context) error {
	return me.Bus.Emit(ctx, events.Event{Kind: events.Unload})
}
