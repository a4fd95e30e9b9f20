package stats

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Separator is the struck-through rule framing stat output.
const Separator = "§7§m----------------------------------------"

var printer = message.NewPrinter(language.English)

// FormatNumber renders v with thousands separators. Whole numbers have no
// decimals; others keep two.
func FormatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return printer.Sprintf("%d", int64(v))
	}
	return printer.Sprintf("%.2f", v)
}

// FormatRank renders a package rank as its coloured bracket tag.
func FormatRank(rank string) string {
	switch rank {
	case "MVP_PLUS_PLUS":
		return "§6[MVP§c++§6]"
	case "MVP_PLUS":
		return "§b[MVP§a+§b]"
	case "MVP":
		return "§b[MVP]"
	case "VIP_PLUS":
		return "§a[VIP§6+§a]"
	case "VIP":
		return "§a[VIP]"
	default:
		return "§7"
	}
}

func ratio(num, den float64) string {
	return fmt.Sprintf("%.2f", num/orOne(den))
}

// StatLines renders the statcheck body for a mode: a header line with rank,
// name, level and guild, followed by per-game lines.
func StatLines(p *Player, mode GameMode, username, guild string) []string {
	rank := FormatRank(p.Rank())
	guildTag := ""
	if guild != "" {
		guildTag = fmt.Sprintf(" §e[%s]", guild)
	}

	switch mode.APIName {
	case "Bedwars":
		s := func(k string) float64 { return p.Float("stats.Bedwars." + k) }
		wins, losses := s("wins_bedwars"), orOne(s("losses_bedwars"))
		fk, fd := s("final_kills_bedwars"), orOne(s("final_deaths_bedwars"))
		return []string{
			fmt.Sprintf("%s %s §7[§f%s✫§7]%s", rank, username, FormatNumber(p.Float("achievements.bedwars_level")), guildTag),
			fmt.Sprintf("§fWins: §a%s §8| §fLosses: §c%s", FormatNumber(wins), FormatNumber(losses)),
			fmt.Sprintf("§fFinal Kills: §a%s §8| §fFinal Deaths: §c%s", FormatNumber(fk), FormatNumber(fd)),
			fmt.Sprintf("§fFKDR: §6%s §8| §fBBLR: §6%s §8| §fWLR: §6%s",
				ratio(fk, fd), ratio(s("beds_broken_bedwars"), s("beds_lost_bedwars")), ratio(wins, losses)),
		}

	case "Duels":
		key := func(stat string) string {
			if mode.Prefix == "" {
				return "stats.Duels." + stat
			}
			return "stats.Duels." + mode.Prefix + "_" + stat
		}
		wins, losses := p.Float(key("wins")), orOne(p.Float(key("losses")))
		kills, deaths := p.Float(key("kills")), orOne(p.Float(key("deaths")))
		return []string{
			fmt.Sprintf("§f[%s] %s %s §7[§f%s Wins§7]%s", mode.DisplayName, rank, username, FormatNumber(wins), guildTag),
			fmt.Sprintf("§fWins: §a%s §8| §fLosses: §c%s", FormatNumber(wins), FormatNumber(losses)),
			fmt.Sprintf("§fKills: §a%s §8| §fDeaths: §c%s", FormatNumber(kills), FormatNumber(deaths)),
			fmt.Sprintf("§fWLR: §6%s §8| §fKDR: §6%s", ratio(wins, losses), ratio(kills, deaths)),
		}

	case "SkyWars":
		wins, losses := p.Float("stats.SkyWars.wins"), orOne(p.Float("stats.SkyWars.losses"))
		return []string{
			fmt.Sprintf("%s %s §7[§f%s✫§7]%s", rank, username, FormatNumber(p.Float("achievements.skywars_you_re_a_star")), guildTag),
			fmt.Sprintf("§fWins: §a%s §8| §fLosses: §c%s", FormatNumber(wins), FormatNumber(losses)),
			fmt.Sprintf("§fWLR: §6%s", ratio(wins, losses)),
		}
	}

	wins := "N/A"
	if r := p.raw.Get("stats." + mode.APIName + ".wins"); r.Exists() && r.Float() != 0 {
		wins = FormatNumber(r.Float())
	}
	return []string{
		fmt.Sprintf("%s %s%s", rank, username, guildTag),
		fmt.Sprintf("§cStat display for %s is not implemented yet.", mode.DisplayName),
		fmt.Sprintf("§eWins: §a%s", wins),
	}
}

// ratioColor grades a ratio from grey to purple.
func ratioColor(v float64) string {
	switch {
	case v < 1:
		return "§7"
	case v < 2:
		return "§f"
	case v < 5:
		return "§6"
	case v < 10:
		return "§c"
	default:
		return "§5"
	}
}

// SummaryLine is the one-line stat digest used for rosters and party checks.
func SummaryLine(p *Player, gameKey, username string) string {
	rank := FormatRank(p.Rank())
	mode, ok := Lookup(gameKey)
	if !ok {
		return fmt.Sprintf("%s %s §7Lv%d", rank, username, int(p.NetworkLevel()))
	}

	switch mode.APIName {
	case "Bedwars":
		fkdr := p.Ratio("stats.Bedwars.final_kills_bedwars", "stats.Bedwars.final_deaths_bedwars")
		wlr := p.Ratio("stats.Bedwars.wins_bedwars", "stats.Bedwars.losses_bedwars")
		return fmt.Sprintf("%s %s §7[%d✫] §fFKDR: %s%.2f §fWLR: %s%.2f",
			rank, username, p.Int("achievements.bedwars_level"), ratioColor(fkdr), fkdr, ratioColor(wlr), wlr)
	case "SkyWars":
		kdr := p.Ratio("stats.SkyWars.kills", "stats.SkyWars.deaths")
		wlr := p.Ratio("stats.SkyWars.wins", "stats.SkyWars.losses")
		return fmt.Sprintf("%s %s §7[%d✫] §fKDR: %s%.2f §fWLR: %s%.2f",
			rank, username, p.Int("achievements.skywars_you_re_a_star"), ratioColor(kdr), kdr, ratioColor(wlr), wlr)
	case "Duels":
		prefix := "stats.Duels."
		if mode.Prefix != "" {
			prefix += mode.Prefix + "_"
		}
		wins := p.Float(prefix + "wins")
		wlr := wins / orOne(p.Float(prefix+"losses"))
		return fmt.Sprintf("%s %s §7[%s Wins] §fWLR: %s%.2f",
			rank, username, FormatNumber(wins), ratioColor(wlr), wlr)
	}
	return fmt.Sprintf("%s %s §7Lv%d §f%s Wins: §a%s",
		rank, username, int(p.NetworkLevel()), mode.DisplayName, FormatNumber(p.Float("stats."+mode.APIName+".wins")))
}

// TabSuffix renders the short tab-list overlay for a player in a game.
func TabSuffix(p *Player, gameKey string) string {
	mode, ok := Lookup(gameKey)
	if !ok {
		return fmt.Sprintf(" §7Lv%d", int(p.NetworkLevel()))
	}
	switch mode.APIName {
	case "Bedwars":
		fkdr := p.Ratio("stats.Bedwars.final_kills_bedwars", "stats.Bedwars.final_deaths_bedwars")
		return fmt.Sprintf(" §7%d✫ %s%.1f", p.Int("achievements.bedwars_level"), ratioColor(fkdr), fkdr)
	case "SkyWars":
		kdr := p.Ratio("stats.SkyWars.kills", "stats.SkyWars.deaths")
		return fmt.Sprintf(" §7%d✫ %s%.1f", p.Int("achievements.skywars_you_re_a_star"), ratioColor(kdr), kdr)
	case "Duels":
		wins := p.Int("stats.Duels.wins")
		wlr := p.Ratio("stats.Duels.wins", "stats.Duels.losses")
		return fmt.Sprintf(" §7%dW %s%.1f", wins, ratioColor(wlr), wlr)
	}
	return fmt.Sprintf(" §7Lv%d", int(p.NetworkLevel()))
}

// ProgressBar renders a 20-cell bar for a percentage in [0,100].
func ProgressBar(percent float64) string {
	const cells = 20
	filled := int(math.Round(cells * percent / 100))
	filled = max(0, min(cells, filled))
	return "§a" + strings.Repeat("█", filled) + "§7" + strings.Repeat("█", cells-filled)
}
