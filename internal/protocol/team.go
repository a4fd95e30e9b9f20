package protocol

import (
	"bytes"
	"fmt"

	pk "github.com/Tnze/go-mc/net/packet"
)

// Team frame modes.
const (
	TeamCreate        int8 = 0
	TeamRemove        int8 = 1
	TeamUpdate        int8 = 2
	TeamAddPlayers    int8 = 3
	TeamRemovePlayers int8 = 4
)

// Team is the clientbound teams frame.
type Team struct {
	Name         string
	Mode         int8
	DisplayName  string
	Prefix       string
	Suffix       string
	FriendlyFire int8
	Visibility   string
	Color        int8
	Players      []string
}

// Encode builds the frame, writing only the fields the mode carries.
func (t Team) Encode() pk.Packet {
	var buf bytes.Buffer
	writeAll(&buf, pk.String(t.Name), pk.Byte(t.Mode))

	if t.Mode == TeamCreate || t.Mode == TeamUpdate {
		writeAll(&buf,
			pk.String(t.DisplayName),
			pk.String(t.Prefix),
			pk.String(t.Suffix),
			pk.Byte(t.FriendlyFire),
			pk.String(t.Visibility),
			pk.Byte(t.Color),
		)
	}
	if t.Mode == TeamCreate || t.Mode == TeamAddPlayers || t.Mode == TeamRemovePlayers {
		writeAll(&buf, pk.VarInt(len(t.Players)))
		for _, p := range t.Players {
			writeAll(&buf, pk.String(p))
		}
	}
	return pk.Packet{ID: ClientTeams, Data: buf.Bytes()}
}

// DecodeTeam reads a teams frame.
func DecodeTeam(p pk.Packet) (Team, error) {
	r := bytes.NewReader(p.Data)
	var (
		name pk.String
		mode pk.Byte
	)
	if err := readAll(r, &name, &mode); err != nil {
		return Team{}, fmt.Errorf("decode team: %w", err)
	}
	t := Team{Name: string(name), Mode: int8(mode)}

	if t.Mode == TeamCreate || t.Mode == TeamUpdate {
		var (
			display, prefix, suffix, vis pk.String
			ff, color                    pk.Byte
		)
		if err := readAll(r, &display, &prefix, &suffix, &ff, &vis, &color); err != nil {
			return Team{}, fmt.Errorf("decode team info: %w", err)
		}
		t.DisplayName, t.Prefix, t.Suffix = string(display), string(prefix), string(suffix)
		t.FriendlyFire, t.Visibility, t.Color = int8(ff), string(vis), int8(color)
	}
	if t.Mode == TeamCreate || t.Mode == TeamAddPlayers || t.Mode == TeamRemovePlayers {
		var count pk.VarInt
		if _, err := count.ReadFrom(r); err != nil {
			return Team{}, fmt.Errorf("decode team players: %w", err)
		}
		if count < 0 || int(count) > r.Len() {
			return Team{}, fmt.Errorf("decode team: bad player count %d", count)
		}
		for i := 0; i < int(count); i++ {
			var s pk.String
			if _, err := s.ReadFrom(r); err != nil {
				return Team{}, fmt.Errorf("decode team player: %w", err)
			}
			t.Players = append(t.Players, string(s))
		}
	}
	return t, nil
}
