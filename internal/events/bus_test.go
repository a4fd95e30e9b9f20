package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestEmitReachesTypedAndWildcard(t *testing.T) {
	bus := NewBus()
	defer bus.Stop()

	var typed, all atomic.Int32
	var wg sync.WaitGroup
	wg.Add(2)

	bus.Subscribe(EventGameChanged, "typed", func(ctx context.Context, e Event) error {
		typed.Add(1)
		wg.Done()
		return nil
	})
	bus.SubscribeAll("all", func(ctx context.Context, e Event) error {
		all.Add(1)
		wg.Done()
		return nil
	})

	bus.Emit(context.Background(), New(EventGameChanged, "test", GamePayload{GameKey: "bedwars"}))
	wg.Wait()

	if typed.Load() != 1 || all.Load() != 1 {
		t.Errorf("typed=%d all=%d, want 1 and 1", typed.Load(), all.Load())
	}
}

func TestEmitSyncReturnsFirstError(t *testing.T) {
	bus := NewBus()
	defer bus.Stop()

	boom := errors.New("boom")
	bus.Subscribe(EventGameResult, "fails", func(ctx context.Context, e Event) error { return boom })
	bus.Subscribe(EventGameResult, "panics", func(ctx context.Context, e Event) error { panic("x") })

	err := bus.EmitSync(context.Background(), New(EventGameResult, "test", nil))
	if !errors.Is(err, boom) {
		t.Errorf("EmitSync err = %v, want %v", err, boom)
	}
}

func TestUnsubscribeAndStop(t *testing.T) {
	bus := NewBus()

	bus.Subscribe(EventTabAlert, "a", func(ctx context.Context, e Event) error { return nil })
	bus.Subscribe(EventTabAlert, "b", func(ctx context.Context, e Event) error { return nil })
	bus.Unsubscribe(EventTabAlert, "a")

	if n := bus.HandlerCount(EventTabAlert); n != 1 {
		t.Errorf("HandlerCount = %d, want 1", n)
	}

	bus.Stop()
	bus.Stop()

	select {
	case <-bus.StopCh():
	default:
		t.Errorf("StopCh not closed")
	}

	called := false
	bus.Subscribe(EventTabAlert, "late", func(ctx context.Context, e Event) error { called = true; return nil })
	if err := bus.EmitSync(context.Background(), New(EventTabAlert, "test", nil)); err != nil {
		t.Errorf("EmitSync after stop: %v", err)
	}
	if called {
		t.Errorf("handler ran after stop")
	}
}
