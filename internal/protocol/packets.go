// Package protocol decodes and encodes the Minecraft 1.8 (protocol 47)
// frames the relay inspects or synthesizes. Framing, compression and
// encryption are handled by go-mc; this package only deals with the typed
// fields inside a frame body.
package protocol

// Version is the only protocol version the relay speaks.
const Version = 47

// Handshake next-state values.
const (
	NextStateStatus = 1
	NextStateLogin  = 2
)

// Handshaking and status IDs.
const (
	Handshake      int32 = 0x00
	StatusRequest  int32 = 0x00
	StatusResponse int32 = 0x00
	StatusPing     int32 = 0x01
	StatusPong     int32 = 0x01
)

// Login IDs.
const (
	LoginDisconnect         int32 = 0x00
	LoginStart              int32 = 0x00
	LoginEncryptionRequest  int32 = 0x01
	LoginEncryptionResponse int32 = 0x01
	LoginSuccess            int32 = 0x02
	LoginSetCompression     int32 = 0x03
)

// Clientbound play IDs.
const (
	ClientJoinGame           int32 = 0x01
	ClientChat               int32 = 0x02
	ClientRespawn            int32 = 0x07
	ClientPlayerPosition     int32 = 0x08
	ClientSpawnPlayer        int32 = 0x0C
	ClientDestroyEntities    int32 = 0x13
	ClientEntityRelativeMove int32 = 0x15
	ClientEntityMoveLook     int32 = 0x17
	ClientEntityTeleport     int32 = 0x18
	ClientNamedSound         int32 = 0x29
	ClientPlayerListItem     int32 = 0x38
	ClientScoreboardObj      int32 = 0x3B
	ClientTeams              int32 = 0x3E
	ClientPluginMessage      int32 = 0x3F
	ClientDisconnect         int32 = 0x40
	ClientTitle              int32 = 0x45
	ClientSetCompression     int32 = 0x46
)

// Serverbound play IDs.
const (
	ServerChat          int32 = 0x01
	ServerPluginMessage int32 = 0x17
)

// Chat positions.
const (
	ChatBox    int8 = 0
	ChatSystem int8 = 1
	ChatHotbar int8 = 2
)

// BrandChannel carries the client and server brand strings.
const BrandChannel = "MC|Brand"

// SentinelBrand replaces every brand payload crossing the relay.
const SentinelBrand = "vanilla"

// MaxChatLength is the longest serverbound chat message the server accepts.
const MaxChatLength = 100
