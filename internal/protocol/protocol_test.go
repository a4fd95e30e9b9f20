package protocol

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	pk "github.com/Tnze/go-mc/net/packet"
	"github.com/google/uuid"
)

func TestParseComponentShapes(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		plain string
		kind  ComponentKind
	}{
		{"bare string", `"hello"`, "hello", KindText},
		{"object", `{"text":"a","extra":[{"text":"b"},"c"]}`, "abc", KindObject},
		{"list", `[{"text":"x"},"y"]`, "xy", KindList},
		{"translate only", `{"translate":"chat.type.text","with":["a"]}`, "", KindObject},
		{"number", `42`, "", KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseComponent(tt.in)
			if err != nil {
				t.Fatalf("ParseComponent: %v", err)
			}
			if c.Kind != tt.kind {
				t.Errorf("kind = %d, want %d", c.Kind, tt.kind)
			}
			if got := c.PlainText(); got != tt.plain {
				t.Errorf("PlainText = %q, want %q", got, tt.plain)
			}
		})
	}
}

func TestComponentPreservesUnknownKeys(t *testing.T) {
	in := `{"color":"gold","text":"hi","clickEvent":{"action":"run_command","value":"/p"},"extra":[{"bold":true,"text":"!"}]}`
	c, err := ParseComponent(in)
	if err != nil {
		t.Fatal(err)
	}
	out := c.String()
	for _, want := range []string{`"color":"gold"`, `"clickEvent":{"action":"run_command","value":"/p"}`, `"bold":true`, `"text":"!"`} {
		if !strings.Contains(out, want) {
			t.Errorf("re-encoded %s is missing %s", out, want)
		}
	}

	again, err := ParseComponent(out)
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if again.PlainText() != "hi!" {
		t.Errorf("re-parsed plain = %q", again.PlainText())
	}
}

func TestParseComponentRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"unclosed object", `{"text":"Alice"`},
		{"trailing bytes", `{"text":"Alice"}garbage`},
		{"second value", `{"text":"a"}{"text":"b"}`},
		{"unclosed extra", `{"text":"","extra":[{"text":"Alice"}`},
		{"trailing after string", `"hi" x`},
		{"empty", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if c, err := ParseComponent(tt.in); err == nil {
				t.Errorf("ParseComponent(%q) = %s, want an error", tt.in, c.String())
			}
		})
	}

	if _, err := ParseComponent(" {\"text\":\"ok\"} \n"); err != nil {
		t.Errorf("surrounding whitespace rejected: %v", err)
	}
}

func TestParseComponentDepthLimit(t *testing.T) {
	deep := strings.Repeat(`{"text":"x","extra":[`, MaxComponentDepth+2) + `"end"` + strings.Repeat(`]}`, MaxComponentDepth+2)
	if _, err := ParseComponent(deep); !errors.Is(err, ErrTooDeep) {
		t.Errorf("err = %v, want ErrTooDeep", err)
	}

	ok := strings.Repeat(`{"text":"x","extra":[`, 4) + `"end"` + strings.Repeat(`]}`, 4)
	if _, err := ParseComponent(ok); err != nil {
		t.Errorf("shallow component rejected: %v", err)
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"text":"§a§lVICTORY!"}`, "VICTORY!"},
		{`"§cYou died!"`, "You died!"},
		{`§eONLINE: Alice`, "ONLINE: Alice"},
		{`{"text":`, "{\"text\":"},
	}
	for _, tt := range tests {
		if got := CleanText(tt.in); got != tt.want {
			t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPlayerListRoundTrip(t *testing.T) {
	sig := "sig"
	display := `{"text":"§aAlice"}`
	item := PlayerListItem{
		Action: ListAddPlayer,
		Entries: []PlayerListEntry{{
			UUID:        uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5"),
			Name:        "Alice",
			Properties:  []Property{{Name: "textures", Value: "e30=", Signature: &sig}},
			GameMode:    1,
			Ping:        42,
			DisplayName: &display,
		}},
	}

	got, err := DecodePlayerListItem(item.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	e := got.Entries[0]
	if e.Name != "Alice" || e.Ping != 42 || e.GameMode != 1 {
		t.Errorf("entry = %+v", e)
	}
	if e.DisplayName == nil || *e.DisplayName != display {
		t.Errorf("display name lost")
	}
	if len(e.Properties) != 1 || e.Properties[0].Signature == nil {
		t.Errorf("properties = %+v", e.Properties)
	}
}

func TestDecodeDestroyEntities(t *testing.T) {
	var buf bytes.Buffer
	writeAll(&buf, pk.VarInt(3), pk.VarInt(1), pk.VarInt(300), pk.VarInt(-1))
	ids, err := DecodeDestroyEntities(pk.Packet{ID: ClientDestroyEntities, Data: buf.Bytes()})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 || ids[1] != 300 || ids[2] != -1 {
		t.Errorf("ids = %v", ids)
	}

	if _, err := DecodeDestroyEntities(pk.Packet{Data: []byte{0x05, 0x01}}); err == nil {
		t.Errorf("truncated frame accepted")
	}
}

func TestTeamEncodeModes(t *testing.T) {
	create := Team{Name: "jp1", Mode: TeamCreate, DisplayName: "jp1", Suffix: " §7[5✫]", Visibility: "always", Color: 7}
	got, err := DecodeTeam(create.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if got.Suffix != create.Suffix || got.Visibility != "always" || got.Color != 7 || len(got.Players) != 0 {
		t.Errorf("create = %+v", got)
	}

	join := Team{Name: "jp1", Mode: TeamAddPlayers, Players: []string{"Alice"}}
	got, err = DecodeTeam(join.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if got.Suffix != "" || len(got.Players) != 1 || got.Players[0] != "Alice" {
		t.Errorf("join = %+v", got)
	}
}

func TestRewriteBrand(t *testing.T) {
	var payload bytes.Buffer
	writeAll(&payload, pk.String("lunarclient:v2"))
	frame := PluginMessage{Channel: BrandChannel, Data: payload.Bytes()}.Encode(ServerPluginMessage)

	out, ok := RewriteBrand(frame)
	if !ok {
		t.Fatal("brand frame not rewritten")
	}
	msg, err := DecodePluginMessage(out)
	if err != nil {
		t.Fatal(err)
	}
	var brand pk.String
	if _, err := brand.ReadFrom(bytes.NewReader(msg.Data)); err != nil {
		t.Fatal(err)
	}
	if brand != SentinelBrand || out.ID != ServerPluginMessage {
		t.Errorf("brand = %q id = %#x", brand, out.ID)
	}

	other := PluginMessage{Channel: "REGISTER", Data: []byte("x")}.Encode(ClientPluginMessage)
	if _, ok := RewriteBrand(other); ok {
		t.Errorf("non-brand channel rewritten")
	}
}

func TestPlayerPositionRelative(t *testing.T) {
	prev := Vec3{10, 64, -5}
	pp := PlayerPosition{Pos: Vec3{1, 70, 2}, Flags: PosRelX | PosRelZ}
	if got := pp.Apply(prev); got != (Vec3{11, 70, -3}) {
		t.Errorf("Apply = %+v", got)
	}
}

func TestEntityMoveFixedPoint(t *testing.T) {
	p := pk.Marshal(ClientEntityRelativeMove, pk.VarInt(7), pk.Byte(32), pk.Byte(-16), pk.Byte(1))
	m, err := DecodeEntityMove(p)
	if err != nil {
		t.Fatal(err)
	}
	if m.EntityID != 7 || m.Delta != (Vec3{1, -0.5, 1.0 / 32}) {
		t.Errorf("move = %+v", m)
	}
}
