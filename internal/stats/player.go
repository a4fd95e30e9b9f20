package stats

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"
)

// ErrNoPlayer is returned when a response carries no player object.
var ErrNoPlayer = errors.New("response has no player")

// Player is a read-only view over a Hypixel player object.
type Player struct {
	raw gjson.Result
}

// ParsePlayer reads a player object. It accepts either the bare object or
// the full /v2/player response.
func ParsePlayer(body []byte) (*Player, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid player JSON")
	}
	root := gjson.ParseBytes(body)
	if p := root.Get("player"); p.Exists() || root.Get("success").Exists() {
		if !p.IsObject() {
			return nil, ErrNoPlayer
		}
		root = p
	}
	if !root.IsObject() {
		return nil, ErrNoPlayer
	}
	return &Player{raw: root}, nil
}

// JSON returns the underlying player object.
func (p *Player) JSON() string {
	return p.raw.Raw
}

// Name is the player's display name as Hypixel knows it.
func (p *Player) Name() string {
	return p.raw.Get("displayname").String()
}

// Rank resolves the package rank, treating SUPERSTAR as MVP++.
func (p *Player) Rank() string {
	if p.raw.Get("monthlyPackageRank").String() == "SUPERSTAR" {
		return "MVP_PLUS_PLUS"
	}
	if r := p.raw.Get("newPackageRank").String(); r != "" {
		return r
	}
	return "NONE"
}

// Float reads a numeric path, defaulting to 0.
func (p *Player) Float(path string) float64 {
	return p.raw.Get(path).Float()
}

// Int reads a numeric path, defaulting to 0.
func (p *Player) Int(path string) int64 {
	return p.raw.Get(path).Int()
}

// HasStats reports whether the player has a stats section for apiName.
func (p *Player) HasStats(apiName string) bool {
	return p.raw.Get("stats." + gjson.Escape(apiName)).IsObject()
}

// OnlineHidden reports whether the last login is newer than the last
// logout, which means the player is online with status hidden.
func (p *Player) OnlineHidden() bool {
	return p.Int("lastLogin") > p.Int("lastLogout")
}

// NetworkLevel converts networkExp to the Hypixel network level.
func (p *Player) NetworkLevel() float64 {
	exp := p.Float("networkExp")
	if exp <= 0 {
		return 1
	}
	return math.Sqrt(2*exp+30625)/50 - 2.5
}

// orOne returns v, or 1 when v is zero, so ratios never divide by zero.
func orOne(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

// Ratio divides two stat paths with a denominator floor of 1.
func (p *Player) Ratio(num, den string) float64 {
	return p.Float(num) / orOne(p.Float(den))
}

// StatAlias is one trackable stat for goals.
type StatAlias struct {
	Paths    []string // one path, or numerator and denominator
	Name     string
	Fixed    int // decimals kept for ratios
	IsString bool
}

// StatAliases are the stats /goal can track, per game key.
var StatAliases = map[string]map[string]StatAlias{
	"bedwars": {
		"level":   {Paths: []string{"achievements.bedwars_level"}, Name: "Level"},
		"wins":    {Paths: []string{"stats.Bedwars.wins_bedwars"}, Name: "Wins"},
		"wlr":     {Paths: []string{"stats.Bedwars.wins_bedwars", "stats.Bedwars.losses_bedwars"}, Name: "WLR", Fixed: 2},
		"fkills":  {Paths: []string{"stats.Bedwars.final_kills_bedwars"}, Name: "Final Kills"},
		"fdeaths": {Paths: []string{"stats.Bedwars.final_deaths_bedwars"}, Name: "Final Deaths"},
		"fkdr":    {Paths: []string{"stats.Bedwars.final_kills_bedwars", "stats.Bedwars.final_deaths_bedwars"}, Name: "FKDR", Fixed: 2},
		"beds":    {Paths: []string{"stats.Bedwars.beds_broken_bedwars"}, Name: "Beds Broken"},
		"bblr":    {Paths: []string{"stats.Bedwars.beds_broken_bedwars", "stats.Bedwars.beds_lost_bedwars"}, Name: "BBLR", Fixed: 2},
	},
	"skywars": {
		"level":  {Paths: []string{"stats.SkyWars.levelFormatted"}, Name: "Level", IsString: true},
		"wins":   {Paths: []string{"stats.SkyWars.wins"}, Name: "Wins"},
		"wlr":    {Paths: []string{"stats.SkyWars.wins", "stats.SkyWars.losses"}, Name: "WLR", Fixed: 2},
		"kills":  {Paths: []string{"stats.SkyWars.kills"}, Name: "Kills"},
		"deaths": {Paths: []string{"stats.SkyWars.deaths"}, Name: "Deaths"},
		"kdr":    {Paths: []string{"stats.SkyWars.kills", "stats.SkyWars.deaths"}, Name: "KDR", Fixed: 2},
	},
	"duels": {
		"wins":   {Paths: []string{"stats.Duels.wins"}, Name: "Wins"},
		"wlr":    {Paths: []string{"stats.Duels.wins", "stats.Duels.losses"}, Name: "WLR", Fixed: 2},
		"kills":  {Paths: []string{"stats.Duels.kills"}, Name: "Kills"},
		"deaths": {Paths: []string{"stats.Duels.deaths"}, Name: "Deaths"},
		"kdr":    {Paths: []string{"stats.Duels.kills", "stats.Duels.deaths"}, Name: "KDR", Fixed: 2},
	},
	"megawalls": {
		"wins":   {Paths: []string{"stats.Walls3.wins"}, Name: "Wins"},
		"fkills": {Paths: []string{"stats.Walls3.final_kills"}, Name: "Final Kills"},
		"fkdr":   {Paths: []string{"stats.Walls3.final_kills", "stats.Walls3.final_deaths"}, Name: "FKDR", Fixed: 2},
	},
	"blitz": {
		"wins":  {Paths: []string{"stats.HungerGames.wins"}, Name: "Wins"},
		"kills": {Paths: []string{"stats.HungerGames.kills"}, Name: "Kills"},
	},
	"uhc": {
		"wins":  {Paths: []string{"stats.UHC.wins"}, Name: "Wins"},
		"kills": {Paths: []string{"stats.UHC.kills"}, Name: "Kills"},
		"score": {Paths: []string{"stats.UHC.score"}, Name: "Score"},
	},
}

// StatNames lists the goal stats available for a game, sorted.
func StatNames(game string) []string {
	aliases := StatAliases[game]
	names := make([]string, 0, len(aliases))
	for k := range aliases {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Value resolves a goal stat for the player.
func (p *Player) Value(s StatAlias) float64 {
	if len(s.Paths) == 2 {
		v := p.Ratio(s.Paths[0], s.Paths[1])
		if s.Fixed > 0 {
			scale := math.Pow10(s.Fixed)
			v = math.Round(v*scale) / scale
		}
		return v
	}

	r := p.raw.Get(s.Paths[0])
	if s.IsString && r.Type == gjson.String {
		digits := strings.Map(func(c rune) rune {
			if unicode.IsDigit(c) {
				return c
			}
			return -1
		}, r.String())
		n, err := strconv.Atoi(digits)
		if err != nil {
			return 0
		}
		return float64(n)
	}
	return r.Float()
}
