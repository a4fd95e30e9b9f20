package directory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/energizer-project/jagprox/internal/config"
	"github.com/energizer-project/jagprox/internal/stats"
	"github.com/energizer-project/jagprox/internal/util"
)

const (
	userAgent    = "JagProx/%s"
	maxBodyBytes = 4 << 20
)

// StatStore caches raw player objects between lookups.
type StatStore interface {
	Get(ctx context.Context, playerUUID string, maxAge time.Duration) (string, bool, error)
	Put(ctx context.Context, playerUUID, body string, at time.Time) error
}

type cachedIdentity struct {
	identity Identity
	expires  time.Time
}

// Client is the HTTP implementation of PlayerDirectory against the Mojang
// and Hypixel APIs.
type Client struct {
	cfg     config.DirectoryConfig
	apiKey  string
	version string
	client  *http.Client
	limiter *rate.Limiter
	store   StatStore
	group   singleflight.Group
	logger  zerolog.Logger

	mu         sync.RWMutex
	identities map[string]cachedIdentity
}

// NewClient creates a directory client. store may be nil.
func NewClient(cfg config.DirectoryConfig, apiKey, version string, store StatStore) *Client {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}

	return &Client{
		cfg:     cfg,
		apiKey:  apiKey,
		version: version,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		store:      store,
		logger:     util.ComponentLogger("directory"),
		identities: make(map[string]cachedIdentity),
	}
}

// HasAPIKey reports whether Hypixel lookups can be made.
func (c *Client) HasAPIKey() bool {
	return c.apiKey != ""
}

func (c *Client) ttl() time.Duration {
	if c.cfg.CacheTTLMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.cfg.CacheTTLMinutes) * time.Minute
}

// get performs a GET and returns the body for 2xx answers. Status codes
// are mapped onto the package errors.
func (c *Client) get(ctx context.Context, rawURL string, hypixel bool) ([]byte, error) {
	if hypixel {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("User-Agent", fmt.Sprintf(userAgent, c.version))
	if hypixel && c.apiKey != "" {
		req.Header.Set("API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusNoContent:
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		c.logger.Debug().Int("status", resp.StatusCode).Str("url", req.URL.Path).Msg("unexpected directory response")
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return body, nil
}

// ResolveIdentity maps a username to its uuid and canonical spelling.
func (c *Client) ResolveIdentity(ctx context.Context, name string) (Identity, error) {
	key := strings.ToLower(name)

	c.mu.RLock()
	cached, ok := c.identities[key]
	c.mu.RUnlock()
	if ok && time.Now().Before(cached.expires) {
		return cached.identity, nil
	}

	v, err, _ := c.group.Do("id:"+key, func() (any, error) {
		body, err := c.get(ctx, c.cfg.MojangURL+"/users/profiles/minecraft/"+url.PathEscape(name), false)
		if err != nil {
			return Identity{}, err
		}
		res := gjson.ParseBytes(body)
		id, err := uuid.Parse(res.Get("id").String())
		if err != nil {
			return Identity{}, ErrNotFound
		}
		return Identity{UUID: id, Name: res.Get("name").String()}, nil
	})
	if err != nil {
		return Identity{}, err
	}

	identity := v.(Identity)
	c.mu.Lock()
	c.identities[key] = cachedIdentity{identity: identity, expires: time.Now().Add(c.ttl())}
	c.mu.Unlock()
	return identity, nil
}

// FetchStats returns the player's Hypixel record, served from the stat
// store while fresh.
func (c *Client) FetchStats(ctx context.Context, id uuid.UUID) (*stats.Player, error) {
	if c.store != nil {
		body, ok, err := c.store.Get(ctx, id.String(), c.ttl())
		if err != nil {
			c.logger.Warn().Err(err).Msg("stat cache read failed")
		} else if ok {
			if p, err := stats.ParsePlayer([]byte(body)); err == nil {
				return p, nil
			}
		}
	}

	v, err, _ := c.group.Do("player:"+id.String(), func() (any, error) {
		body, err := c.get(ctx, c.cfg.HypixelURL+"/player?uuid="+url.QueryEscape(id.String()), true)
		if err != nil {
			return nil, err
		}
		if !gjson.GetBytes(body, "success").Bool() {
			return nil, fmt.Errorf("%w: %s", ErrUnavailable, gjson.GetBytes(body, "cause").String())
		}
		p, err := stats.ParsePlayer(body)
		if errors.Is(err, stats.ErrNoPlayer) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if c.store != nil {
			if err := c.store.Put(ctx, id.String(), p.JSON(), time.Now()); err != nil {
				c.logger.Warn().Err(err).Msg("stat cache write failed")
			}
		}
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*stats.Player), nil
}

// FetchStatus combines the session endpoint with the player record, which
// distinguishes hidden sessions from offline players.
func (c *Client) FetchStatus(ctx context.Context, id uuid.UUID) (*Status, error) {
	var (
		session gjson.Result
		player  *stats.Player
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		body, err := c.get(gctx, c.cfg.HypixelURL+"/status?uuid="+url.QueryEscape(id.String()), true)
		if err != nil {
			return err
		}
		session = gjson.GetBytes(body, "session")
		return nil
	})
	g.Go(func() error {
		p, err := c.FetchStats(gctx, id)
		player = p
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	st := &Status{Rank: player.Rank()}
	switch {
	case session.Get("online").Bool():
		st.Online = true
		st.GameType = session.Get("gameType").String()
		st.Mode = session.Get("mode").String()
		st.Map = session.Get("map").String()
	case player.OnlineHidden():
		st.Online = true
		st.Hidden = true
	}
	return st, nil
}

// FetchGuild returns the player's guild name, or "" when guildless.
func (c *Client) FetchGuild(ctx context.Context, id uuid.UUID) (string, error) {
	body, err := c.get(ctx, c.cfg.HypixelURL+"/guild?player="+url.QueryEscape(id.String()), true)
	if err != nil {
		return "", err
	}
	return gjson.GetBytes(body, "guild.name").String(), nil
}

// FetchAvatar downloads the 8x8 face with the hat overlay.
func (c *Client) FetchAvatar(ctx context.Context, id uuid.UUID) (image.Image, error) {
	target := fmt.Sprintf("%s/%s?size=%d&overlay=true", c.cfg.AvatarURL, id.String(), stats.AvatarSize)
	body, err := c.get(ctx, target, false)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: decode avatar: %v", ErrUnavailable, err)
	}
	return img, nil
}

// FetchTabSuffix renders the tab overlay for a name. Unknown players and
// players without stats yield an empty suffix.
func (c *Client) FetchTabSuffix(ctx context.Context, name, gameKey string) (string, error) {
	identity, err := c.ResolveIdentity(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	p, err := c.FetchStats(ctx, identity.UUID)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return stats.TabSuffix(p, gameKey), nil
}

// LinkStatus asks the account-link service whether a profile is linked.
func (c *Client) LinkStatus(ctx context.Context, id uuid.UUID) (bool, error) {
	if c.cfg.LinkURL == "" {
		return false, ErrUnavailable
	}
	body, err := c.get(ctx, c.cfg.LinkURL+"/status?uuid="+url.QueryEscape(id.String()), false)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return gjson.GetBytes(body, "linked").Bool(), nil
}

// LinkURL is the page a player visits to link their account.
func (c *Client) LinkURL(id uuid.UUID) string {
	return c.cfg.LinkURL + "?uuid=" + url.QueryEscape(id.String())
}
