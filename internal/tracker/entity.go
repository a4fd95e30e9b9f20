package tracker

import (
	"sort"

	"github.com/google/uuid"

	"github.com/energizer-project/jagprox/internal/protocol"
)

// DefaultNearbyRadius is the radius used by /nearby without an argument.
const DefaultNearbyRadius = 150

// Entity is a tracked player entity. Name is empty until resolved.
type Entity struct {
	ID   int32
	UUID uuid.UUID
	Name string
	Pos  protocol.Vec3
}

// EntityTracker follows player entities and the local player's position.
type EntityTracker struct {
	tab      *TabList
	entities map[int32]*Entity
	self     protocol.Vec3
}

// NewEntityTracker creates a tracker resolving names through tab.
func NewEntityTracker(tab *TabList) *EntityTracker {
	return &EntityTracker{tab: tab, entities: make(map[int32]*Entity)}
}

// OnSpawn starts tracking a spawned player.
func (t *EntityTracker) OnSpawn(s protocol.SpawnPlayer) {
	t.entities[s.EntityID] = &Entity{
		ID:   s.EntityID,
		UUID: s.UUID,
		Name: t.tab.Name(s.UUID),
		Pos:  s.Pos,
	}
}

// OnTeleport sets an entity's absolute position.
func (t *EntityTracker) OnTeleport(tp protocol.EntityTeleport) {
	if e, ok := t.entities[tp.EntityID]; ok {
		e.Pos = tp.Pos
	}
}

// OnMove adds a relative delta.
func (t *EntityTracker) OnMove(m protocol.EntityMove) {
	if e, ok := t.entities[m.EntityID]; ok {
		e.Pos = e.Pos.Add(m.Delta)
	}
}

// OnDestroy forgets the listed ids. Unknown ids are ignored.
func (t *EntityTracker) OnDestroy(ids []int32) {
	for _, id := range ids {
		delete(t.entities, id)
	}
}

// OnPosition updates the local player's position.
func (t *EntityTracker) OnPosition(p protocol.PlayerPosition) {
	t.self = p.Apply(t.self)
}

// Resolve names entities spawned before their tab-list entry arrived.
func (t *EntityTracker) Resolve(id uuid.UUID, name string) {
	if name == "" {
		return
	}
	for _, e := range t.entities {
		if e.UUID == id && e.Name == "" {
			e.Name = name
		}
	}
}

// Self returns the local player's last known position.
func (t *EntityTracker) Self() protocol.Vec3 {
	return t.self
}

// Get returns a copy of a tracked entity.
func (t *EntityTracker) Get(id int32) (Entity, bool) {
	e, ok := t.entities[id]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

// Len returns the number of tracked entities, named or not.
func (t *EntityTracker) Len() int {
	return len(t.entities)
}

// NearbyPlayers returns the sorted names of named entities strictly closer
// than radius to the local player.
func (t *EntityTracker) NearbyPlayers(radius float64) []string {
	limit := radius * radius
	var names []string
	for _, e := range t.entities {
		if e.Name == "" {
			continue
		}
		if e.Pos.DistSq(t.self) < limit {
			names = append(names, e.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Reset forgets every entity and the local position.
func (t *EntityTracker) Reset() {
	clear(t.entities)
	t.self = protocol.Vec3{}
}
