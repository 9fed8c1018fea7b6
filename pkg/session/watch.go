package session

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/unoclass/pkg/config"
)

// DebounceDelay coalesces bursts of file events into one re-run.
var DebounceDelay = 100 * time.Millisecond

type ReportFunc func(ctx context.Context, results []FileMatches) error

// HandleFileEvent applies one file system event to the session and reports
// whether matches need to be recomputed.
func (me *Session) HandleFileEvent(ctx context.Context, ev fsnotify.Event) (bool, error) {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false, nil
	}

	name := filepath.Clean(ev.Name)
	if name == filepath.Clean(me.RulesPath()) {
		if err := me.ReloadRules(ctx); err != nil {
			return false, errors.Errorf("reloading rules after %s: %w", ev.Op, err)
		}
		return true, nil
	}
	if me.opts.ConfigPath != "" && name == filepath.Clean(me.opts.ConfigPath) {
		// the config watcher reloads settings itself
		return false, nil
	}

	if err := me.DocumentChanged(ctx, name); err != nil {
		return false, err
	}
	return true, nil
}

func (me *Session) watchPaths(fw *fsnotify.Watcher, paths []string) error {
	for _, root := range paths {
		info, err := me.fs.Stat(root)
		if err != nil {
			return errors.Errorf("stat %s: %w", root, err)
		}
		if !info.IsDir() {
			if err := fw.Add(root); err != nil {
				return errors.Errorf("watching %s: %w", root, err)
			}
			continue
		}
		filter := me.Filter()
		err = afero.Walk(me.fs, root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			if filter.SkipDir(rel) {
				return filepath.SkipDir
			}
			if err := fw.Add(path); err != nil {
				return errors.Errorf("watching %s: %w", path, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Watch reports matches for paths, then again after every relevant change to
// the documents, the rules file or the settings, until ctx is done.
func (me *Session) Watch(ctx context.Context, paths []string, report ReportFunc) error {
	logger := zerolog.Ctx(ctx)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Errorf("creating file watcher: %w", err)
	}
	defer fw.Close()

	if err := me.watchPaths(fw, paths); err != nil {
		return err
	}
	if err := fw.Add(filepath.Dir(me.RulesPath())); err != nil {
		logger.Warn().Err(err).Str("rules", me.RulesPath()).Msg("not watching rules file")
	}

	settingsChanged := make(chan struct{}, 1)
	me.watcher.WatchChanged([]string{
		config.KeyInclude,
		config.KeyExclude,
		config.KeyStrictAnnotationMatch,
		config.KeyAutocompleteClassFunctions,
	}, func(ctx context.Context, s config.Settings) {
		select {
		case settingsChanged <- struct{}{}:
		default:
		}
	})
	me.watcher.Start(ctx)

	run := func() error {
		results, err := me.Match(ctx, paths, false)
		if err != nil {
			logger.Error().Err(err).Msg("matching failed")
			return nil
		}
		return report(ctx, results)
	}

	if err := run(); err != nil {
		return err
	}

	debounce := time.NewTimer(DebounceDelay)
	debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			rerun, err := me.HandleFileEvent(ctx, ev)
			if err != nil {
				logger.Warn().Err(err).Str("file", ev.Name).Msg("handling file event")
				continue
			}
			if rerun {
				debounce.Reset(DebounceDelay)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("file watcher error")
		case <-settingsChanged:
			debounce.Reset(DebounceDelay)
		case <-debounce.C:
			if err := run(); err != nil {
				return err
			}
		}
	}
}
