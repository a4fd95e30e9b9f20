package protocol

import (
	"bytes"
	"fmt"
	"io"
	"math"

	pk "github.com/Tnze/go-mc/net/packet"
	"github.com/google/uuid"
)

// Vec3 is a position in block coordinates.
type Vec3 struct {
	X, Y, Z float64
}

// Add returns v+o.
func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// DistSq returns the squared distance between v and o.
func (v Vec3) DistSq(o Vec3) float64 {
	dx, dy, dz := v.X-o.X, v.Y-o.Y, v.Z-o.Z
	return dx*dx + dy*dy + dz*dz
}

// Profile is a player identity.
type Profile struct {
	UUID uuid.UUID
	Name string
}

// fixed converts a 1.8 fixed-point coordinate (1/32 block) to blocks.
func fixed[T ~int8 | ~int32](v T) float64 {
	return float64(v) / 32
}

// Chat is a clientbound chat message.
type Chat struct {
	JSON     string
	Position int8
}

// DecodeChat reads a clientbound chat frame.
func DecodeChat(p pk.Packet) (Chat, error) {
	var (
		msg pk.String
		pos pk.Byte
	)
	if err := p.Scan(&msg, &pos); err != nil {
		return Chat{}, fmt.Errorf("decode chat: %w", err)
	}
	return Chat{JSON: string(msg), Position: int8(pos)}, nil
}

// Encode builds the clientbound chat frame.
func (c Chat) Encode() pk.Packet {
	return pk.Marshal(ClientChat, pk.String(c.JSON), pk.Byte(c.Position))
}

// DecodeServerboundChat reads the text of a serverbound chat frame.
func DecodeServerboundChat(p pk.Packet) (string, error) {
	var msg pk.String
	if err := p.Scan(&msg); err != nil {
		return "", fmt.Errorf("decode serverbound chat: %w", err)
	}
	return string(msg), nil
}

// ServerboundChat builds a serverbound chat frame.
func ServerboundChat(text string) pk.Packet {
	return pk.Marshal(ServerChat, pk.String(text))
}

// Title actions that carry a chat component.
const (
	TitleSet      int32 = 0
	TitleSubtitle int32 = 1
)

// Title is a clientbound title frame. JSON is set for the set-title and
// subtitle actions only.
type Title struct {
	Action int32
	JSON   string
}

// DecodeTitle reads a title frame.
func DecodeTitle(p pk.Packet) (Title, error) {
	r := bytes.NewReader(p.Data)
	var action pk.VarInt
	if _, err := action.ReadFrom(r); err != nil {
		return Title{}, fmt.Errorf("decode title action: %w", err)
	}
	t := Title{Action: int32(action)}
	if t.Action == TitleSet || t.Action == TitleSubtitle {
		var text pk.String
		if _, err := text.ReadFrom(r); err != nil {
			return Title{}, fmt.Errorf("decode title text: %w", err)
		}
		t.JSON = string(text)
	}
	return t, nil
}

// Scoreboard objective modes.
const (
	ObjectiveCreate int8 = 0
	ObjectiveRemove int8 = 1
	ObjectiveUpdate int8 = 2
)

// ScoreboardObjective is a clientbound objective frame.
type ScoreboardObjective struct {
	Name  string
	Mode  int8
	Value string
	Type  string
}

// DecodeScoreboardObjective reads an objective frame.
func DecodeScoreboardObjective(p pk.Packet) (ScoreboardObjective, error) {
	r := bytes.NewReader(p.Data)
	var (
		name pk.String
		mode pk.Byte
	)
	if err := readAll(r, &name, &mode); err != nil {
		return ScoreboardObjective{}, fmt.Errorf("decode objective: %w", err)
	}
	o := ScoreboardObjective{Name: string(name), Mode: int8(mode)}
	if o.Mode == ObjectiveCreate || o.Mode == ObjectiveUpdate {
		var value, typ pk.String
		if err := readAll(r, &value, &typ); err != nil {
			return ScoreboardObjective{}, fmt.Errorf("decode objective value: %w", err)
		}
		o.Value, o.Type = string(value), string(typ)
	}
	return o, nil
}

// SpawnPlayer is the head of a clientbound spawn-player frame.
type SpawnPlayer struct {
	EntityID int32
	UUID     uuid.UUID
	Pos      Vec3
}

// DecodeSpawnPlayer reads the entity id, uuid and position of a spawn.
func DecodeSpawnPlayer(p pk.Packet) (SpawnPlayer, error) {
	var (
		eid     pk.VarInt
		id      pk.UUID
		x, y, z pk.Int
	)
	if err := p.Scan(&eid, &id, &x, &y, &z); err != nil {
		return SpawnPlayer{}, fmt.Errorf("decode spawn player: %w", err)
	}
	return SpawnPlayer{
		EntityID: int32(eid),
		UUID:     uuid.UUID(id),
		Pos:      Vec3{fixed(x), fixed(y), fixed(z)},
	}, nil
}

// EntityTeleport is an absolute entity position update.
type EntityTeleport struct {
	EntityID int32
	Pos      Vec3
}

// DecodeEntityTeleport reads a teleport frame.
func DecodeEntityTeleport(p pk.Packet) (EntityTeleport, error) {
	var (
		eid     pk.VarInt
		x, y, z pk.Int
	)
	if err := p.Scan(&eid, &x, &y, &z); err != nil {
		return EntityTeleport{}, fmt.Errorf("decode entity teleport: %w", err)
	}
	return EntityTeleport{EntityID: int32(eid), Pos: Vec3{fixed(x), fixed(y), fixed(z)}}, nil
}

// EntityMove is a relative entity move, shared by the move and
// move-and-look frames.
type EntityMove struct {
	EntityID int32
	Delta    Vec3
}

// DecodeEntityMove reads the delta of a relative move frame.
func DecodeEntityMove(p pk.Packet) (EntityMove, error) {
	var (
		eid        pk.VarInt
		dx, dy, dz pk.Byte
	)
	if err := p.Scan(&eid, &dx, &dy, &dz); err != nil {
		return EntityMove{}, fmt.Errorf("decode entity move: %w", err)
	}
	return EntityMove{EntityID: int32(eid), Delta: Vec3{fixed(dx), fixed(dy), fixed(dz)}}, nil
}

// DecodeDestroyEntities reads the id list of a destroy frame.
func DecodeDestroyEntities(p pk.Packet) ([]int32, error) {
	r := bytes.NewReader(p.Data)
	var count pk.VarInt
	if _, err := count.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("decode destroy count: %w", err)
	}
	if count < 0 || int(count) > r.Len() {
		return nil, fmt.Errorf("decode destroy: bad count %d", count)
	}
	ids := make([]int32, 0, count)
	for i := 0; i < int(count); i++ {
		var id pk.VarInt
		if _, err := id.ReadFrom(r); err != nil {
			return nil, fmt.Errorf("decode destroy id: %w", err)
		}
		ids = append(ids, int32(id))
	}
	return ids, nil
}

// Position flags marking relative axes.
const (
	PosRelX int8 = 0x01
	PosRelY int8 = 0x02
	PosRelZ int8 = 0x04
)

// PlayerPosition is the clientbound position-and-look frame.
type PlayerPosition struct {
	Pos        Vec3
	Yaw, Pitch float32
	Flags      int8
}

// DecodePlayerPosition reads a position frame.
func DecodePlayerPosition(p pk.Packet) (PlayerPosition, error) {
	var (
		x, y, z    pk.Double
		yaw, pitch pk.Float
		flags      pk.Byte
	)
	if err := p.Scan(&x, &y, &z, &yaw, &pitch, &flags); err != nil {
		return PlayerPosition{}, fmt.Errorf("decode player position: %w", err)
	}
	return PlayerPosition{
		Pos:   Vec3{float64(x), float64(y), float64(z)},
		Yaw:   float32(yaw),
		Pitch: float32(pitch),
		Flags: int8(flags),
	}, nil
}

// Apply resolves the frame against the previous position, honouring the
// relative flags.
func (pp PlayerPosition) Apply(prev Vec3) Vec3 {
	out := pp.Pos
	if pp.Flags&PosRelX != 0 {
		out.X += prev.X
	}
	if pp.Flags&PosRelY != 0 {
		out.Y += prev.Y
	}
	if pp.Flags&PosRelZ != 0 {
		out.Z += prev.Z
	}
	return out
}

// PluginMessage is a custom payload frame. In protocol 47 the payload runs
// to the end of the frame.
type PluginMessage struct {
	Channel string
	Data    []byte
}

// DecodePluginMessage reads a plugin message in either direction.
func DecodePluginMessage(p pk.Packet) (PluginMessage, error) {
	r := bytes.NewReader(p.Data)
	var ch pk.String
	if _, err := ch.ReadFrom(r); err != nil {
		return PluginMessage{}, fmt.Errorf("decode plugin channel: %w", err)
	}
	data, _ := io.ReadAll(r)
	return PluginMessage{Channel: string(ch), Data: data}, nil
}

// Encode builds the frame with the given id.
func (m PluginMessage) Encode(id int32) pk.Packet {
	p := pk.Marshal(id, pk.String(m.Channel))
	p.Data = append(p.Data, m.Data...)
	return p
}

// RewriteBrand replaces the payload of a brand plugin message with the
// sentinel brand. It reports false for other frames, which stay untouched.
func RewriteBrand(p pk.Packet) (pk.Packet, bool) {
	msg, err := DecodePluginMessage(p)
	if err != nil || msg.Channel != BrandChannel {
		return p, false
	}
	var buf bytes.Buffer
	_, _ = pk.String(SentinelBrand).WriteTo(&buf)
	msg.Data = buf.Bytes()
	return msg.Encode(p.ID), true
}

// NamedSound is a clientbound named sound effect.
type NamedSound struct {
	Name   string
	Pos    Vec3
	Volume float32
	Pitch  uint8
}

// Encode builds the sound frame. Positions are sent multiplied by 8.
func (s NamedSound) Encode() pk.Packet {
	return pk.Marshal(ClientNamedSound,
		pk.String(s.Name),
		pk.Int(int32(math.Round(s.Pos.X*8))),
		pk.Int(int32(math.Round(s.Pos.Y*8))),
		pk.Int(int32(math.Round(s.Pos.Z*8))),
		pk.Float(s.Volume),
		pk.UnsignedByte(s.Pitch),
	)
}

// DecodeDisconnect reads the reason of a play or login disconnect.
func DecodeDisconnect(p pk.Packet) (string, error) {
	var reason pk.String
	if err := p.Scan(&reason); err != nil {
		return "", fmt.Errorf("decode disconnect: %w", err)
	}
	return string(reason), nil
}

// Disconnect builds a disconnect frame with the given id and reason text.
func Disconnect(id int32, reason string) pk.Packet {
	return pk.Marshal(id, pk.String(TextComponent(reason)))
}

// DecodeSetCompression reads a set-compression threshold.
func DecodeSetCompression(p pk.Packet) (int, error) {
	var threshold pk.VarInt
	if err := p.Scan(&threshold); err != nil {
		return 0, fmt.Errorf("decode set compression: %w", err)
	}
	return int(threshold), nil
}

func readAll(r io.Reader, fields ...pk.FieldDecoder) error {
	for _, f := range fields {
		if _, err := f.ReadFrom(r); err != nil {
			return err
		}
	}
	return nil
}

func writeAll(w io.Writer, fields ...pk.FieldEncoder) {
	for _, f := range fields {
		_, _ = f.WriteTo(w)
	}
}
