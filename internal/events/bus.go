package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// HandlerFunc is a function that handles an event.
type HandlerFunc func(ctx context.Context, event Event) error

// Bus is an asynchronous publish-subscribe hub connecting sessions to the
// process-wide integrations (presence, admin stream, result store).
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]handlerEntry
	wildcard []handlerEntry
	stopCh   chan struct{}
	stopped  bool
	wg       sync.WaitGroup
}

type handlerEntry struct {
	name    string
	handler HandlerFunc
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]handlerEntry),
		stopCh:   make(chan struct{}),
	}
}

// Subscribe registers a handler for one event type. The name is used for
// logging and Unsubscribe.
func (b *Bus) Subscribe(eventType EventType, name string, handler HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handlerEntry{name: name, handler: handler})

	log.Debug().
		Str("event", string(eventType)).
		Str("handler", name).
		Msg("subscribed to event")
}

// SubscribeAll registers a handler that receives every event.
func (b *Bus) SubscribeAll(name string, handler HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.wildcard = append(b.wildcard, handlerEntry{name: name, handler: handler})
	log.Debug().Str("handler", name).Msg("subscribed to all events")
}

// Unsubscribe removes a named handler from an event type, or from the
// wildcard list when eventType is empty.
func (b *Bus) Unsubscribe(eventType EventType, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if eventType == "" {
		b.wildcard = without(b.wildcard, name)
		return
	}
	if handlers, ok := b.handlers[eventType]; ok {
		b.handlers[eventType] = without(handlers, name)
	}
}

func without(entries []handlerEntry, name string) []handlerEntry {
	out := make([]handlerEntry, 0, len(entries))
	for _, h := range entries {
		if h.name != name {
			out = append(out, h)
		}
	}
	return out
}

// targets copies the handlers for t under the read lock.
func (b *Bus) targets(t EventType) []handlerEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.stopped {
		return nil
	}
	out := make([]handlerEntry, 0, len(b.handlers[t])+len(b.wildcard))
	out = append(out, b.handlers[t]...)
	out = append(out, b.wildcard...)
	return out
}

// Emit publishes an event to every subscriber, each on its own goroutine.
func (b *Bus) Emit(ctx context.Context, event Event) {
	handlers := b.targets(event.Type)
	if len(handlers) == 0 {
		return
	}

	log.Trace().
		Str("event", string(event.Type)).
		Str("source", event.Source).
		Int("handlers", len(handlers)).
		Msg("emitting event")

	b.wg.Add(len(handlers))
	for _, h := range handlers {
		h := h
		go func() {
			defer b.wg.Done()
			b.dispatch(ctx, h, event)
		}()
	}
}

// EmitSync publishes an event and waits for all handlers. It returns the
// first handler error.
func (b *Bus) EmitSync(ctx context.Context, event Event) error {
	handlers := b.targets(event.Type)

	var (
		firstErr error
		errOnce  sync.Once
		wg       sync.WaitGroup
	)
	wg.Add(len(handlers))
	for _, h := range handlers {
		h := h
		go func() {
			defer wg.Done()
			if err := b.dispatch(ctx, h, event); err != nil {
				errOnce.Do(func() { firstErr = err })
			}
		}()
	}
	wg.Wait()
	return firstErr
}

func (b *Bus) dispatch(ctx context.Context, h handlerEntry, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("event", string(event.Type)).
				Str("handler", h.name).
				Interface("panic", r).
				Msg("handler panicked")
		}
	}()

	if err = h.handler(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("event", string(event.Type)).
			Str("handler", h.name).
			Msg("handler returned error")
	}
	return err
}

// Stop rejects further events and waits for in-flight handlers.
func (b *Bus) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	close(b.stopCh)
	b.mu.Unlock()

	b.wg.Wait()
	log.Info().Msg("event bus stopped")
}

// StopCh returns a channel that is closed when the bus is stopped.
func (b *Bus) StopCh() <-chan struct{} {
	return b.stopCh
}

// HandlerCount returns the number of handlers registered for an event
// type, or the number of wildcard handlers when eventType is empty.
func (b *Bus) HandlerCount(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if eventType == "" {
		return len(b.wildcard)
	}
	return len(b.handlers[eventType])
}
