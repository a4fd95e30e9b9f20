// Package stats holds the Hypixel game-mode tables and renders player
// statistics into legacy-formatted chat lines.
package stats

import (
	"sort"
	"strings"
)

// GameMode describes one statcheck target.
type GameMode struct {
	Key         string   // canonical key, used in config and game tracking
	Aliases     []string // extra names accepted by commands
	APIName     string   // key under player.stats in the Hypixel API
	DisplayName string   // scoreboard title, case-insensitive
	Prefix      string   // per-mode duels stat prefix
}

// GameModes lists every mode the relay understands.
var GameModes = []GameMode{
	{Key: "arcade", APIName: "Arcade", DisplayName: "Arcade"},
	{Key: "arena", APIName: "Arena", DisplayName: "Arena Brawl"},
	{Key: "bedwars", Aliases: []string{"bw"}, APIName: "Bedwars", DisplayName: "Bed Wars"},
	{Key: "blitz", Aliases: []string{"sg"}, APIName: "HungerGames", DisplayName: "Blitz SG"},
	{Key: "buildbattle", Aliases: []string{"bb"}, APIName: "BuildBattle", DisplayName: "Build Battle"},
	{Key: "cvc", APIName: "MCGO", DisplayName: "Cops and Crims"},
	{Key: "crazywalls", Aliases: []string{"cw"}, APIName: "TrueCombat", DisplayName: "Crazy Walls"},
	{Key: "duels", APIName: "Duels", DisplayName: "Duels"},
	{Key: "classic", Aliases: []string{"classicduels"}, APIName: "Duels", DisplayName: "Classic Duels", Prefix: "classic_duel"},
	{Key: "bridge", Aliases: []string{"bridgeduels"}, APIName: "Duels", DisplayName: "Bridge Duels", Prefix: "bridge_duel"},
	{Key: "uhc", Aliases: []string{"uhcduels"}, APIName: "Duels", DisplayName: "UHC Duels", Prefix: "uhc_duel"},
	{Key: "skywarsduels", APIName: "Duels", DisplayName: "SkyWars Duels", Prefix: "sw_duel"},
	{Key: "sumo", Aliases: []string{"sumoduels"}, APIName: "Duels", DisplayName: "Sumo Duels", Prefix: "sumo_duel"},
	{Key: "bow", Aliases: []string{"bowduels"}, APIName: "Duels", DisplayName: "Bow Duels", Prefix: "bow_duel"},
	{Key: "combo", Aliases: []string{"comboduels"}, APIName: "Duels", DisplayName: "Combo Duels", Prefix: "combo_duel"},
	{Key: "op", Aliases: []string{"opduels"}, APIName: "Duels", DisplayName: "OP Duels", Prefix: "op_duel"},
	{Key: "megawalls", Aliases: []string{"mw"}, APIName: "Walls3", DisplayName: "Mega Walls"},
	{Key: "murder", Aliases: []string{"mm"}, APIName: "MurderMystery", DisplayName: "Murder Mystery"},
	{Key: "paintball", APIName: "Paintball", DisplayName: "Paintball"},
	{Key: "pit", APIName: "Pit", DisplayName: "The Pit"},
	{Key: "quake", Aliases: []string{"quakecraft"}, APIName: "Quake", DisplayName: "Quake"},
	{Key: "skyclash", APIName: "SkyClash", DisplayName: "SkyClash"},
	{Key: "skywars", Aliases: []string{"sw"}, APIName: "SkyWars", DisplayName: "SkyWars"},
	{Key: "smash", APIName: "SuperSmash", DisplayName: "Smash Heroes"},
	{Key: "speeduhc", APIName: "SpeedUHC", DisplayName: "Speed UHC"},
	{Key: "tnt", APIName: "TNTGames", DisplayName: "TNT Games"},
	{Key: "tkr", Aliases: []string{"turbokartracers"}, APIName: "GingerBread", DisplayName: "Turbo Kart Racers"},
	{Key: "uhcchampions", APIName: "UHC", DisplayName: "UHC Champions"},
	{Key: "vampirez", APIName: "VampireZ", DisplayName: "VampireZ"},
	{Key: "walls", APIName: "Walls", DisplayName: "Walls"},
	{Key: "warlords", APIName: "Battleground", DisplayName: "Warlords"},
	{Key: "wool", Aliases: []string{"woolwars"}, APIName: "WoolGames", DisplayName: "Wool Wars"},
}

var (
	byName  = map[string]*GameMode{}
	byTitle = map[string]string{}
)

func init() {
	for i := range GameModes {
		m := &GameModes[i]
		byName[m.Key] = m
		for _, a := range m.Aliases {
			byName[a] = m
		}
		byTitle[strings.ToUpper(m.DisplayName)] = m.Key
	}
}

// Lookup finds a mode by canonical key or alias, case-insensitively.
func Lookup(name string) (GameMode, bool) {
	m, ok := byName[strings.ToLower(name)]
	if !ok {
		return GameMode{}, false
	}
	return *m, true
}

// KeyForTitle maps a cleaned scoreboard title to a canonical key.
func KeyForTitle(title string) (string, bool) {
	key, ok := byTitle[strings.ToUpper(strings.TrimSpace(title))]
	return key, ok
}

// ModesByDisplayName groups accepted names under each display name, sorted
// by display name.
func ModesByDisplayName() []ModeGroup {
	groups := make([]ModeGroup, 0, len(GameModes))
	for _, m := range GameModes {
		groups = append(groups, ModeGroup{
			DisplayName: m.DisplayName,
			Names:       append([]string{m.Key}, m.Aliases...),
		})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].DisplayName < groups[j].DisplayName })
	return groups
}

// ModeGroup is one row of the statcheck mode listing.
type ModeGroup struct {
	DisplayName string
	Names       []string
}

// QuickQueue is a /q shortcut.
type QuickQueue struct {
	Name    string
	Command string
}

// QuickQueues maps /q arguments to queue commands.
var QuickQueues = map[string]QuickQueue{
	"bw":       {"Bed Wars Solos", "/play bedwars_eight_one"},
	"bwd":      {"Bed Wars Doubles", "/play bedwars_eight_two"},
	"sw":       {"SkyWars Solos", "/play skywars_solo_normal"},
	"swd":      {"SkyWars Doubles", "/play skywars_teams_normal"},
	"mw":       {"Mega Walls", "/play mega_walls"},
	"quake":    {"Quakecraft Solo", "/play quake_solo"},
	"blitz":    {"Blitz SG Solo", "/play blitz_solo_no_kit"},
	"sg":       {"Blitz SG Solo", "/play blitz_solo_no_kit"},
	"uhc":      {"UHC Champions", "/play uhc_solo"},
	"speeduhc": {"Speed UHC", "/play speed_uhc_solo_normal"},
	"mm":       {"Murder Mystery", "/play murder_mystery_classic"},
	"bb":       {"Build Battle Solo", "/play build_battle_solo"},
	"duels":    {"Duels Lobby", "/lobby duels"},
	"wool":     {"Wool Wars", "/play wool_wars_two_four"},
	"pit":      {"The Pit", "/play pit"},
	"cvc":      {"Cops and Crims", "/play mcgo"},
	"tnt":      {"TNT Games", "/lobby tntgames"},
}

// BuiltinAliases are the /play shortcuts checked after the configured
// aliases. Keys are lower case.
var BuiltinAliases = map[string]string{
	"/play solobw":           "/play bedwars_eight_one",
	"/play doublesbw":        "/play bedwars_eight_two",
	"/play 3sbw":             "/play bedwars_four_three",
	"/play 4sbw":             "/play bedwars_four_four",
	"/play 4v4bw":            "/play bedwars_two_four",
	"/play castlebw":         "/play bedwars_castle",
	"/play solosw":           "/play skywars_solo_normal",
	"/play doublesinsanesw":  "/play skywars_teams_insane",
	"/play doublesnormalsw":  "/play skywars_teams_normal",
	"/play classicduels":     "/play duels_classic_duel",
	"/play bridgeduels":      "/play duels_bridge_duel",
	"/play uhcduels":         "/play duels_uhc_duel",
	"/play skywarsduels":     "/play duels_sw_duel",
	"/play sumoduels":        "/play duels_sumo_duel",
	"/play bowduels":         "/play duels_bow_duel",
	"/play comboduels":       "/play duels_combo_duel",
	"/play opduels":          "/play duels_op_duel",
}
