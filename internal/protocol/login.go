package protocol

import (
	"fmt"

	pk "github.com/Tnze/go-mc/net/packet"
)

// HandshakeFrame is the first frame of every connection.
type HandshakeFrame struct {
	Protocol  int32
	Address   string
	Port      uint16
	NextState int32
}

// DecodeHandshake reads a handshake frame.
func DecodeHandshake(p pk.Packet) (HandshakeFrame, error) {
	if p.ID != Handshake {
		return HandshakeFrame{}, fmt.Errorf("expected handshake, got 0x%02X", p.ID)
	}
	var (
		proto, next pk.VarInt
		addr        pk.String
		port        pk.UnsignedShort
	)
	if err := p.Scan(&proto, &addr, &port, &next); err != nil {
		return HandshakeFrame{}, fmt.Errorf("decode handshake: %w", err)
	}
	return HandshakeFrame{Protocol: int32(proto), Address: string(addr), Port: uint16(port), NextState: int32(next)}, nil
}

// Encode builds the handshake frame.
func (h HandshakeFrame) Encode() pk.Packet {
	return pk.Marshal(Handshake,
		pk.VarInt(h.Protocol),
		pk.String(h.Address),
		pk.UnsignedShort(h.Port),
		pk.VarInt(h.NextState),
	)
}

// DecodeLoginStart reads the player name of a login start frame.
func DecodeLoginStart(p pk.Packet) (string, error) {
	if p.ID != LoginStart {
		return "", fmt.Errorf("expected login start, got 0x%02X", p.ID)
	}
	var name pk.String
	if err := p.Scan(&name); err != nil {
		return "", fmt.Errorf("decode login start: %w", err)
	}
	return string(name), nil
}

// LoginStartFrame builds a login start frame.
func LoginStartFrame(name string) pk.Packet {
	return pk.Marshal(LoginStart, pk.String(name))
}

// EncryptionRequest is sent by an online-mode server during login.
type EncryptionRequest struct {
	ServerID    string
	PublicKey   []byte
	VerifyToken []byte
}

// DecodeEncryptionRequest reads an encryption request.
func DecodeEncryptionRequest(p pk.Packet) (EncryptionRequest, error) {
	var (
		serverID   pk.String
		key, token pk.ByteArray
	)
	if err := p.Scan(&serverID, &key, &token); err != nil {
		return EncryptionRequest{}, fmt.Errorf("decode encryption request: %w", err)
	}
	return EncryptionRequest{ServerID: string(serverID), PublicKey: key, VerifyToken: token}, nil
}

// Encode builds the encryption request frame.
func (e EncryptionRequest) Encode() pk.Packet {
	return pk.Marshal(LoginEncryptionRequest, pk.String(e.ServerID), pk.ByteArray(e.PublicKey), pk.ByteArray(e.VerifyToken))
}

// EncryptionResponse builds the client's encrypted secret and token reply.
func EncryptionResponse(secret, token []byte) pk.Packet {
	return pk.Marshal(LoginEncryptionResponse, pk.ByteArray(secret), pk.ByteArray(token))
}

// LoginSuccessFrame carries the dashed uuid string and the name.
type LoginSuccessFrame struct {
	UUID string
	Name string
}

// DecodeLoginSuccess reads a login success frame.
func DecodeLoginSuccess(p pk.Packet) (LoginSuccessFrame, error) {
	var id, name pk.String
	if err := p.Scan(&id, &name); err != nil {
		return LoginSuccessFrame{}, fmt.Errorf("decode login success: %w", err)
	}
	return LoginSuccessFrame{UUID: string(id), Name: string(name)}, nil
}

// Encode builds the login success frame.
func (l LoginSuccessFrame) Encode() pk.Packet {
	return pk.Marshal(LoginSuccess, pk.String(l.UUID), pk.String(l.Name))
}
