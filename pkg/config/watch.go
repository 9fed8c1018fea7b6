package config

import (
	"context"
	"reflect"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gitlab.com/tozd/go/errors"
)

// ChangeFunc receives the settings after a change.
type ChangeFunc func(ctx context.Context, s Settings)

type watch struct {
	keys []string
	fn   ChangeFunc
}

// Watcher keeps the current Settings and tells subscribers when the keys they
// care about change.
type Watcher struct {
	v *viper.Viper

	mu      sync.RWMutex
	current Settings
	watches []watch
}

func NewWatcher(v *viper.Viper) (*Watcher, error) {
	s, err := Decode(v)
	if err != nil {
		return nil, err
	}
	return &Watcher{v: v, current: s}, nil
}

func (w *Watcher) Settings() Settings {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// WatchChanged registers fn to run whenever one of keys changes. Keys are the
// mapstructure names of Settings fields.
func (w *Watcher) WatchChanged(keys []string, fn ChangeFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watches = append(w.watches, watch{keys: keys, fn: fn})
}

// Start watches the config file on disk. It is a no-op when the viper
// instance has no config file.
func (w *Watcher) Start(ctx context.Context) {
	if w.v.ConfigFileUsed() == "" {
		return
	}
	w.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		if err := w.Reload(ctx); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("file", e.Name).Msg("keeping previous settings")
		}
	})
	w.v.WatchConfig()
}

// Reload decodes the viper state again and applies it.
func (w *Watcher) Reload(ctx context.Context) error {
	s, err := Decode(w.v)
	if err != nil {
		return errors.Errorf("reloading settings: %w", err)
	}
	w.Apply(ctx, s)
	return nil
}

// Apply replaces the current settings and notifies the watches whose keys
// differ between the old and new value.
func (w *Watcher) Apply(ctx context.Context, next Settings) {
	w.mu.Lock()
	prev := w.current
	w.current = next
	watches := append([]watch(nil), w.watches...)
	w.mu.Unlock()

	changed := ChangedKeys(prev, next)
	if len(changed) == 0 {
		return
	}
	zerolog.Ctx(ctx).Debug().Strs("keys", changed).Msg("settings changed")

	set := make(map[string]struct{}, len(changed))
	for _, k := range changed {
		set[k] = struct{}{}
	}
	for _, wt := range watches {
		for _, k := range wt.keys {
			if _, ok := set[k]; ok {
				wt.fn(ctx, next)
				break
			}
		}
	}
}

// ChangedKeys lists the setting keys whose values differ.
func ChangedKeys(prev, next Settings) []string {
	var out []string
	pv := reflect.ValueOf(prev)
	nv := reflect.ValueOf(next)
	t := pv.Type()
	for i := 0; i < t.NumField(); i++ {
		if !reflect.DeepEqual(pv.Field(i).Interface(), nv.Field(i).Interface()) {
			out = append(out, t.Field(i).Tag.Get("mapstructure"))
		}
	}
	return out
}
