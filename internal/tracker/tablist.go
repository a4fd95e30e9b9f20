package tracker

import (
	"github.com/google/uuid"

	"github.com/energizer-project/jagprox/internal/protocol"
)

// TabListEntry is one player-list row.
type TabListEntry struct {
	UUID        uuid.UUID
	RawName     string
	DisplayName string // raw component JSON, empty when unset
	DisplayText string // uncoloured display text, or the raw name
}

// TabList mirrors the client's player list keyed by uuid.
type TabList struct {
	entries map[uuid.UUID]*TabListEntry
}

// NewTabList creates an empty list.
func NewTabList() *TabList {
	return &TabList{entries: make(map[uuid.UUID]*TabListEntry)}
}

// Apply folds a player list frame into the list. It returns the entries
// that were added or had their display name changed, and the uuids that
// were removed.
func (l *TabList) Apply(item protocol.PlayerListItem) (changed []TabListEntry, removed []uuid.UUID) {
	switch item.Action {
	case protocol.ListAddPlayer:
		for _, e := range item.Entries {
			entry := &TabListEntry{UUID: e.UUID, RawName: e.Name}
			entry.setDisplay(e.DisplayName)
			l.entries[e.UUID] = entry
			changed = append(changed, *entry)
		}

	case protocol.ListUpdateDisplay:
		for _, e := range item.Entries {
			entry, ok := l.entries[e.UUID]
			if !ok {
				continue
			}
			entry.setDisplay(e.DisplayName)
			changed = append(changed, *entry)
		}

	case protocol.ListRemovePlayer:
		for _, e := range item.Entries {
			delete(l.entries, e.UUID)
			removed = append(removed, e.UUID)
		}
	}
	return changed, removed
}

func (e *TabListEntry) setDisplay(raw *string) {
	if raw == nil {
		e.DisplayName = ""
		e.DisplayText = e.RawName
		return
	}
	e.DisplayName = *raw
	e.DisplayText = protocol.CleanText(*raw)
}

// Name returns the raw name for a uuid, or "" when unknown.
func (l *TabList) Name(id uuid.UUID) string {
	if e, ok := l.entries[id]; ok {
		return e.RawName
	}
	return ""
}

// Entry returns a copy of the entry for a uuid.
func (l *TabList) Entry(id uuid.UUID) (TabListEntry, bool) {
	e, ok := l.entries[id]
	if !ok {
		return TabListEntry{}, false
	}
	return *e, true
}

// Len returns the number of entries.
func (l *TabList) Len() int {
	return len(l.entries)
}

// Reset empties the list.
func (l *TabList) Reset() {
	clear(l.entries)
}
