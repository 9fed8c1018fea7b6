package events

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

type Kind string

const (
	// ContextReload fires when an engine context reloads its configuration.
	ContextReload Kind = "contextReload"
	// ContextUnload fires when an engine context is dropped.
	ContextUnload Kind = "contextUnload"
	// Unload fires when everything is torn down. Key is empty.
	Unload Kind = "unload"
	// DocumentChanged fires on any text change. Key is the document id.
	DocumentChanged Kind = "documentChanged"
)

type Event struct {
	Kind Kind
	Key  string
}

type Handler func(ctx context.Context, ev Event) error

type Subscription struct {
	ID   string
	Kind Kind
}

type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind]map[string]Handler
	order    map[Kind][]string
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Kind]map[string]Handler),
		order:    make(map[Kind][]string),
	}
}

func (b *Bus) Subscribe(kind Kind, h Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	if b.handlers[kind] == nil {
		b.handlers[kind] = make(map[string]Handler)
	}
	b.handlers[kind][id] = h
	b.order[kind] = append(b.order[kind], id)

	return Subscription{ID: id, Kind: kind}
}

func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.handlers[sub.Kind], sub.ID)
	ids := b.order[sub.Kind]
	for i, id := range ids {
		if id == sub.ID {
			b.order[sub.Kind] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
}

// Emit calls every handler subscribed to ev.Kind in subscription order. All
// handlers run even if some fail; their errors are returned together.
func (b *Bus) Emit(ctx context.Context, ev Event) error {
	b.mu.RLock()
	ids := append([]string(nil), b.order[ev.Kind]...)
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, b.handlers[ev.Kind][id])
	}
	b.mu.RUnlock()

	zerolog.Ctx(ctx).Debug().Str("event", string(ev.Kind)).Str("key", ev.Key).Int("handlers", len(handlers)).Msg("emitting event")

	var result *multierror.Error
	for _, h := range handlers {
		if err := h(ctx, ev); err != nil {
			result = multierror.Append(result, errors.Errorf("handling %s event: %w", ev.Kind, err))
		}
	}
	return result.ErrorOrNil()
}
