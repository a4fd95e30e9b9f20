package network

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrSessionRejected is returned when the session server refuses a join.
var ErrSessionRejected = errors.New("session server rejected join")

// AuthDigest computes the server hash sent to the session server: SHA-1
// over the server id, shared secret and public key, printed as a signed
// two's-complement hex number.
func AuthDigest(serverID string, secret, publicKey []byte) string {
	h := sha1.New()
	h.Write([]byte(serverID))
	h.Write(secret)
	h.Write(publicKey)
	n := new(big.Int).SetBytes(h.Sum(nil))
	if n.Bit(159) == 1 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), 160))
	}
	return n.Text(16)
}

// SessionJoiner announces an upstream login to the session server.
type SessionJoiner struct {
	baseURL string
	client  *http.Client
}

// NewSessionJoiner creates a joiner for the given session server.
func NewSessionJoiner(baseURL string) *SessionJoiner {
	return &SessionJoiner{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type joinRequest struct {
	AccessToken     string `json:"accessToken"`
	SelectedProfile string `json:"selectedProfile"`
	ServerID        string `json:"serverId"`
}

// Join posts the access token, undashed profile id and server hash.
func (j *SessionJoiner) Join(ctx context.Context, accessToken string, profile uuid.UUID, serverHash string) error {
	body, err := json.Marshal(joinRequest{
		AccessToken:     accessToken,
		SelectedProfile: strings.ReplaceAll(profile.String(), "-", ""),
		ServerID:        serverHash,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.baseURL+"/session/minecraft/join", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return fmt.Errorf("session join: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrSessionRejected, resp.StatusCode)
	}
	return nil
}
