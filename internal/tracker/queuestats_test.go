package tracker

import (
	"reflect"
	"testing"
)

type rosterCall struct {
	names []string
	key   string
}

func newQueueFixture(t *testing.T) (*fakeHost, *GameState, *QueueStats, *[]rosterCall) {
	t.Helper()
	h := newFakeHost(t)
	state := &GameState{CurrentGameKey: "bedwars"}
	var calls []rosterCall
	q := NewQueueStats(state, h, func(names []string, key string) {
		calls = append(calls, rosterCall{names: names, key: key})
	}, nopLogger)
	return h, state, q, &calls
}

func TestQueueStatsNoQueryBeforeTeleport(t *testing.T) {
	h, state, q, _ := newQueueFixture(t)

	q.OnChat("Protect your bed and destroy the enemy beds.")
	if q.Phase() != PhaseAwaitingTeleport || !state.HasTriggered {
		t.Fatalf("phase = %v, triggered = %v", q.Phase(), state.HasTriggered)
	}
	h.fire()
	if len(h.upstream) != 0 {
		t.Fatalf("/who sent before a teleport")
	}

	q.OnPosition()
	if q.Phase() != PhaseQueryPending {
		t.Fatalf("phase = %v, want query_pending", q.Phase())
	}
	if len(h.upstream) != 0 {
		t.Fatalf("/who sent before settling")
	}
	if h.timers[0].d != teleportSettle {
		t.Errorf("settle delay = %v", h.timers[0].d)
	}
}

func TestQueueStatsCapturesRoster(t *testing.T) {
	h, state, q, calls := newQueueFixture(t)

	q.OnChat("Protect your bed and destroy the enemy beds.")
	q.OnPosition()
	h.fireNext()

	if got := h.upstreamChat(t); !reflect.DeepEqual(got, []string{"/who"}) {
		t.Fatalf("upstream chat = %v, want [/who]", got)
	}
	if q.Phase() != PhaseCapturing {
		t.Fatalf("phase = %v, want capturing", q.Phase())
	}

	state.CurrentGameKey = "skywars"
	if !q.OnChat("ONLINE: Alice, Bob.") {
		t.Fatal("roster line not consumed")
	}

	want := []rosterCall{{names: []string{"Alice", "Bob"}, key: "skywars"}}
	if !reflect.DeepEqual(*calls, want) {
		t.Errorf("roster = %+v, want %+v", *calls, want)
	}
	if q.Phase() != PhaseIdle {
		t.Errorf("phase = %v, want idle", q.Phase())
	}
	if q.OnChat("ONLINE: Carol.") {
		t.Error("line consumed after the capture ended")
	}
}

func TestQueueStatsOneQueryPerArm(t *testing.T) {
	h, _, q, _ := newQueueFixture(t)

	q.OnChat("Protect your bed and destroy the enemy beds.")
	q.OnPosition()
	q.OnPosition()
	h.fireNext()
	q.OnChat("ONLINE: Alice.")

	q.OnChat("Protect your bed and destroy the enemy beds.")
	q.OnPosition()
	h.fire()

	if got := len(h.upstreamChat(t)); got != 1 {
		t.Errorf("sent /who %d times, want 1", got)
	}
}

func TestQueueStatsTimeout(t *testing.T) {
	h, _, q, calls := newQueueFixture(t)

	q.OnChat("Protect your bed and destroy the enemy beds.")
	q.OnPosition()
	h.fireNext()
	q.OnChat("Team #1: Alice, Bob")
	h.fireNext()

	if q.Phase() != PhaseIdle {
		t.Fatalf("phase = %v after timeout", q.Phase())
	}
	if len(*calls) != 1 || !reflect.DeepEqual((*calls)[0].names, []string{"Alice", "Bob"}) {
		t.Errorf("roster = %+v", *calls)
	}
}

func TestQueueStatsDisabledMode(t *testing.T) {
	h, state, q, _ := newQueueFixture(t)
	state.CurrentGameKey = "pit"

	q.OnChat("Eliminate your opponents!")
	q.OnPosition()
	h.fire()
	if len(h.upstream) != 0 || state.HasTriggered {
		t.Errorf("queue stats armed for a disabled mode")
	}
}
