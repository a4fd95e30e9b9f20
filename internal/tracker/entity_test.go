package tracker

import (
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/energizer-project/jagprox/internal/protocol"
)

func namedEntity(tab *TabList, id int32, name string, pos protocol.Vec3) protocol.SpawnPlayer {
	u := uuid.New()
	tab.Apply(protocol.PlayerListItem{
		Action:  protocol.ListAddPlayer,
		Entries: []protocol.PlayerListEntry{{UUID: u, Name: name}},
	})
	return protocol.SpawnPlayer{EntityID: id, UUID: u, Pos: pos}
}

func TestEntityTeleportThenMoves(t *testing.T) {
	tab := NewTabList()
	et := NewEntityTracker(tab)
	et.OnSpawn(namedEntity(tab, 7, "Alice", protocol.Vec3{}))

	et.OnTeleport(protocol.EntityTeleport{EntityID: 7, Pos: protocol.Vec3{X: 10, Y: 64, Z: -3}})
	moves := []protocol.Vec3{{X: 1}, {Y: -0.5}, {X: 0.25, Z: 2}}
	for _, d := range moves {
		et.OnMove(protocol.EntityMove{EntityID: 7, Delta: d})
	}

	e, ok := et.Get(7)
	if !ok {
		t.Fatal("entity 7 not tracked")
	}
	want := protocol.Vec3{X: 11.25, Y: 63.5, Z: -1}
	if e.Pos != want {
		t.Errorf("position = %+v, want %+v", e.Pos, want)
	}
}

func TestEntityUnknownIDsIgnored(t *testing.T) {
	tab := NewTabList()
	et := NewEntityTracker(tab)
	et.OnSpawn(namedEntity(tab, 1, "Alice", protocol.Vec3{}))

	et.OnMove(protocol.EntityMove{EntityID: 99, Delta: protocol.Vec3{X: 1}})
	et.OnTeleport(protocol.EntityTeleport{EntityID: 99})
	et.OnDestroy([]int32{99})

	if et.Len() != 1 {
		t.Errorf("Len = %d, want 1", et.Len())
	}
	if _, ok := et.Get(99); ok {
		t.Error("unknown id became tracked")
	}

	et.OnDestroy([]int32{1, 99})
	if et.Len() != 0 {
		t.Errorf("Len after destroy = %d, want 0", et.Len())
	}
}

func TestNearbyPlayersBoundary(t *testing.T) {
	tab := NewTabList()
	et := NewEntityTracker(tab)
	et.OnPosition(protocol.PlayerPosition{Pos: protocol.Vec3{X: 100, Y: 64, Z: 100}})

	et.OnSpawn(namedEntity(tab, 1, "Edge", protocol.Vec3{X: 250, Y: 64, Z: 100}))
	et.OnSpawn(namedEntity(tab, 2, "Close", protocol.Vec3{X: 100, Y: 70, Z: 100}))
	et.OnSpawn(namedEntity(tab, 3, "Bob", protocol.Vec3{X: 0, Y: 64, Z: 100}))
	et.OnSpawn(protocol.SpawnPlayer{EntityID: 4, UUID: uuid.New(), Pos: protocol.Vec3{X: 100, Y: 64, Z: 100}})

	tests := []struct {
		radius float64
		want   []string
	}{
		{radius: 150, want: []string{"Bob", "Close"}},
		{radius: 150.01, want: []string{"Bob", "Close", "Edge"}},
		{radius: 6, want: nil},
		{radius: 6.5, want: []string{"Close"}},
	}
	for _, tt := range tests {
		if got := et.NearbyPlayers(tt.radius); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("NearbyPlayers(%v) = %v, want %v", tt.radius, got, tt.want)
		}
	}
}

func TestEntityResolvedByLaterTabEntry(t *testing.T) {
	tab := NewTabList()
	et := NewEntityTracker(tab)
	u := uuid.New()
	et.OnSpawn(protocol.SpawnPlayer{EntityID: 5, UUID: u})

	if got := et.NearbyPlayers(10); len(got) != 0 {
		t.Fatalf("unnamed entity listed: %v", got)
	}
	et.Resolve(u, "Late")
	if got := et.NearbyPlayers(10); !reflect.DeepEqual(got, []string{"Late"}) {
		t.Errorf("NearbyPlayers = %v, want [Late]", got)
	}
}
