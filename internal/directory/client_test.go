package directory

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/energizer-project/jagprox/internal/config"
)

const aliceID = "0f4e2c9a1b3d4e5f8a7b6c5d4e3f2a1b"

type memStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memStore) Get(_ context.Context, id string, _ time.Duration) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[id]
	return v, ok, nil
}

func (m *memStore) Put(_ context.Context, id, body string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[id] = body
	return nil
}

type fakeAPI struct {
	playerHits atomic.Int32
	sessionOn  bool
	keySeen    atomic.Value
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/profiles/minecraft/", func(w http.ResponseWriter, r *http.Request) {
		switch strings.TrimPrefix(r.URL.Path, "/users/profiles/minecraft/") {
		case "alice", "Alice":
			w.Write([]byte(`{"id":"` + aliceID + `","name":"Alice"}`))
		case "spam":
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	mux.HandleFunc("/v2/player", func(w http.ResponseWriter, r *http.Request) {
		f.playerHits.Add(1)
		f.keySeen.Store(r.Header.Get("API-Key"))
		w.Write([]byte(`{"success":true,"player":{"displayname":"Alice","newPackageRank":"VIP",
			"lastLogin":200,"lastLogout":100,
			"achievements":{"bedwars_level":120},
			"stats":{"Bedwars":{"final_kills_bedwars":300,"final_deaths_bedwars":100}}}}`))
	})
	mux.HandleFunc("/v2/status", func(w http.ResponseWriter, r *http.Request) {
		if f.sessionOn {
			w.Write([]byte(`{"success":true,"session":{"online":true,"gameType":"BEDWARS","mode":"EIGHT_ONE","map":"Aquarium"}}`))
			return
		}
		w.Write([]byte(`{"success":true,"session":{"online":false}}`))
	})
	mux.HandleFunc("/v2/guild", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"guild":{"name":"Jaguars"}}`))
	})
	mux.HandleFunc("/avatars/", func(w http.ResponseWriter, r *http.Request) {
		img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
		img.Set(0, 0, color.NRGBA{R: 255, A: 255})
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			t.Errorf("encode avatar: %v", err)
		}
		w.Write(buf.Bytes())
	})
	mux.HandleFunc("/link/status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"linked":true}`))
	})
	return mux
}

func newTestClient(t *testing.T, api *fakeAPI, store StatStore) *Client {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	cfg := config.DirectoryConfig{
		MojangURL:         srv.URL,
		HypixelURL:        srv.URL + "/v2",
		AvatarURL:         srv.URL + "/avatars",
		LinkURL:           srv.URL + "/link",
		TimeoutSec:        5,
		RequestsPerSecond: 1000,
		CacheTTLMinutes:   5,
	}
	return NewClient(cfg, "secret", "test", store)
}

func TestResolveIdentity(t *testing.T) {
	c := newTestClient(t, &fakeAPI{}, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		wantErr error
	}{
		{"alice", nil},
		{"nobody", ErrNotFound},
		{"spam", ErrRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := c.ResolveIdentity(ctx, tt.name)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && (id.Name != "Alice" || id.UUID != uuid.MustParse(aliceID)) {
				t.Errorf("identity = %+v", id)
			}
		})
	}
}

func TestFetchStatsUsesStore(t *testing.T) {
	api := &fakeAPI{}
	store := &memStore{data: map[string]string{}}
	c := newTestClient(t, api, store)
	ctx := context.Background()
	id := uuid.MustParse(aliceID)

	for i := 0; i < 3; i++ {
		p, err := c.FetchStats(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if p.Name() != "Alice" {
			t.Errorf("name = %q", p.Name())
		}
	}
	if n := api.playerHits.Load(); n != 1 {
		t.Errorf("player endpoint hit %d times, want 1", n)
	}
	if key, _ := api.keySeen.Load().(string); key != "secret" {
		t.Errorf("API-Key header = %q", key)
	}
}

func TestFetchStatus(t *testing.T) {
	ctx := context.Background()
	id := uuid.MustParse(aliceID)

	online := newTestClient(t, &fakeAPI{sessionOn: true}, nil)
	st, err := online.FetchStatus(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Online || st.Hidden || st.Map != "Aquarium" || st.Rank != "VIP" {
		t.Errorf("online status = %+v", st)
	}

	// session says offline but lastLogin > lastLogout
	hidden := newTestClient(t, &fakeAPI{}, nil)
	st, err = hidden.FetchStatus(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Online || !st.Hidden {
		t.Errorf("hidden status = %+v", st)
	}
}

func TestFetchTabSuffixAndExtras(t *testing.T) {
	c := newTestClient(t, &fakeAPI{}, nil)
	ctx := context.Background()

	suffix, err := c.FetchTabSuffix(ctx, "Alice", "bedwars")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(suffix, "120✫") {
		t.Errorf("suffix = %q", suffix)
	}

	suffix, err = c.FetchTabSuffix(ctx, "nobody", "bedwars")
	if err != nil || suffix != "" {
		t.Errorf("unknown player suffix = %q, %v", suffix, err)
	}

	id := uuid.MustParse(aliceID)
	guild, err := c.FetchGuild(ctx, id)
	if err != nil || guild != "Jaguars" {
		t.Errorf("guild = %q, %v", guild, err)
	}

	img, err := c.FetchAvatar(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 8 {
		t.Errorf("avatar width = %d", img.Bounds().Dx())
	}

	linked, err := c.LinkStatus(ctx, id)
	if err != nil || !linked {
		t.Errorf("LinkStatus = %v, %v", linked, err)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrNotFound, "§cPlayer 'x' not found."},
		{ErrRateLimited, "§cMojang API rate limit reached."},
		{errors.New("boom"), "§cDirectory unavailable."},
	}
	for _, tt := range tests {
		if got := Describe(tt.err, "x"); got != tt.want {
			t.Errorf("Describe(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
