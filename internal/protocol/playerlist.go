package protocol

import (
	"bytes"
	"fmt"

	pk "github.com/Tnze/go-mc/net/packet"
	"github.com/google/uuid"
)

// Player list actions.
const (
	ListAddPlayer     int32 = 0
	ListUpdateMode    int32 = 1
	ListUpdateLatency int32 = 2
	ListUpdateDisplay int32 = 3
	ListRemovePlayer  int32 = 4
)

// Property is a signed profile property such as textures.
type Property struct {
	Name      string
	Value     string
	Signature *string
}

// PlayerListEntry is one row of a player list frame. Which fields are
// meaningful depends on the frame's action.
type PlayerListEntry struct {
	UUID        uuid.UUID
	Name        string
	Properties  []Property
	GameMode    int32
	Ping        int32
	DisplayName *string
}

// PlayerListItem is the clientbound player list frame.
type PlayerListItem struct {
	Action  int32
	Entries []PlayerListEntry
}

// DecodePlayerListItem reads every entry of a player list frame.
func DecodePlayerListItem(p pk.Packet) (PlayerListItem, error) {
	r := bytes.NewReader(p.Data)
	var action, count pk.VarInt
	if err := readAll(r, &action, &count); err != nil {
		return PlayerListItem{}, fmt.Errorf("decode player list header: %w", err)
	}
	if count < 0 || int(count) > r.Len() {
		return PlayerListItem{}, fmt.Errorf("decode player list: bad count %d", count)
	}

	item := PlayerListItem{Action: int32(action), Entries: make([]PlayerListEntry, 0, count)}
	for i := 0; i < int(count); i++ {
		var id pk.UUID
		if _, err := id.ReadFrom(r); err != nil {
			return PlayerListItem{}, fmt.Errorf("decode player list uuid: %w", err)
		}
		e := PlayerListEntry{UUID: uuid.UUID(id)}

		var err error
		switch item.Action {
		case ListAddPlayer:
			err = decodeAddEntry(r, &e)
		case ListUpdateMode:
			var mode pk.VarInt
			_, err = mode.ReadFrom(r)
			e.GameMode = int32(mode)
		case ListUpdateLatency:
			var ping pk.VarInt
			_, err = ping.ReadFrom(r)
			e.Ping = int32(ping)
		case ListUpdateDisplay:
			e.DisplayName, err = readOptionalString(r)
		case ListRemovePlayer:
		default:
			return PlayerListItem{}, fmt.Errorf("decode player list: unknown action %d", item.Action)
		}
		if err != nil {
			return PlayerListItem{}, fmt.Errorf("decode player list entry: %w", err)
		}
		item.Entries = append(item.Entries, e)
	}
	return item, nil
}

func decodeAddEntry(r *bytes.Reader, e *PlayerListEntry) error {
	var (
		name  pk.String
		props pk.VarInt
	)
	if err := readAll(r, &name, &props); err != nil {
		return err
	}
	e.Name = string(name)
	if props < 0 || int(props) > r.Len() {
		return fmt.Errorf("bad property count %d", props)
	}
	for i := 0; i < int(props); i++ {
		var pname, pvalue pk.String
		if err := readAll(r, &pname, &pvalue); err != nil {
			return err
		}
		sig, err := readOptionalString(r)
		if err != nil {
			return err
		}
		e.Properties = append(e.Properties, Property{Name: string(pname), Value: string(pvalue), Signature: sig})
	}

	var mode, ping pk.VarInt
	if err := readAll(r, &mode, &ping); err != nil {
		return err
	}
	e.GameMode, e.Ping = int32(mode), int32(ping)

	display, err := readOptionalString(r)
	e.DisplayName = display
	return err
}

// Encode rebuilds the frame. Used after a display-name rewrite.
func (l PlayerListItem) Encode() pk.Packet {
	var buf bytes.Buffer
	writeAll(&buf, pk.VarInt(l.Action), pk.VarInt(len(l.Entries)))
	for _, e := range l.Entries {
		writeAll(&buf, pk.UUID(e.UUID))
		switch l.Action {
		case ListAddPlayer:
			writeAll(&buf, pk.String(e.Name), pk.VarInt(len(e.Properties)))
			for _, prop := range e.Properties {
				writeAll(&buf, pk.String(prop.Name), pk.String(prop.Value))
				writeOptionalString(&buf, prop.Signature)
			}
			writeAll(&buf, pk.VarInt(e.GameMode), pk.VarInt(e.Ping))
			writeOptionalString(&buf, e.DisplayName)
		case ListUpdateMode:
			writeAll(&buf, pk.VarInt(e.GameMode))
		case ListUpdateLatency:
			writeAll(&buf, pk.VarInt(e.Ping))
		case ListUpdateDisplay:
			writeOptionalString(&buf, e.DisplayName)
		}
	}
	return pk.Packet{ID: ClientPlayerListItem, Data: buf.Bytes()}
}

func readOptionalString(r *bytes.Reader) (*string, error) {
	var has pk.Boolean
	if _, err := has.ReadFrom(r); err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}
	var s pk.String
	if _, err := s.ReadFrom(r); err != nil {
		return nil, err
	}
	v := string(s)
	return &v, nil
}

func writeOptionalString(buf *bytes.Buffer, s *string) {
	if s == nil {
		writeAll(buf, pk.Boolean(false))
		return
	}
	writeAll(buf, pk.Boolean(true), pk.String(*s))
}
