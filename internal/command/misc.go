package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/energizer-project/jagprox/internal/config"
	"github.com/energizer-project/jagprox/internal/events"
	"github.com/energizer-project/jagprox/internal/protocol"
	"github.com/energizer-project/jagprox/internal/stats"
	"github.com/energizer-project/jagprox/internal/tracker"
)

const recentResults = 10

func (i *Interceptor) quickQueue(args []string) {
	if len(args) == 0 {
		i.listQueues()
		return
	}
	q, ok := stats.QuickQueues[strings.ToLower(args[0])]
	if !ok {
		i.host.Chat("§cUnknown queue '" + args[0] + "'.")
		i.listQueues()
		return
	}
	i.rememberPlay(q.Command)
	i.host.Chat("§eQueuing: §f" + q.Name)
	i.host.SendUpstream(protocol.ServerboundChat(q.Command))
}

func (i *Interceptor) listQueues() {
	i.host.Chat("§aQuick queues:")
	for _, key := range sortedKeys(stats.QuickQueues) {
		i.host.Chat("§8- §e" + key + " §7" + stats.QuickQueues[key].Name)
	}
}

func (i *Interceptor) discord(args []string) {
	enabled := !i.host.Config().GetPresence().Enabled
	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "on", "enable":
			enabled = true
		case "off", "disable":
			enabled = false
		default:
			i.host.Chat("§cUsage: " + i.commandName("discord") + " [on|off]")
			return
		}
	}

	if !i.update("presence", func(s *config.Settings) { s.Presence.Enabled = enabled }) {
		return
	}
	i.emit(events.EventPresenceToggle, events.PresenceTogglePayload{Enabled: enabled})
	if enabled {
		i.host.Chat("§aRich presence enabled.")
	} else {
		i.host.Chat("§eRich presence disabled.")
	}
}

func (i *Interceptor) link() {
	links := i.deps.Links
	if links == nil {
		i.host.Chat("§cAccount linking is unavailable.")
		return
	}
	id := i.host.Profile().UUID
	i.host.Chat("§eChecking link status...")

	i.lookup(func(ctx context.Context) []string {
		linked, err := links.LinkStatus(ctx, id)
		if err != nil {
			i.logger.Debug().Err(err).Msg("link status lookup failed")
			return []string{"§cCould not check your link status."}
		}
		if linked {
			return []string{"§aYour account is linked."}
		}
		return []string{"§eYour account is not linked. Visit §b" + links.LinkURL(id) + " §eto link it."}
	})
}

func (i *Interceptor) nearby(args []string) {
	radius := float64(tracker.DefaultNearbyRadius)
	if len(args) > 0 {
		r, err := strconv.ParseFloat(args[0], 64)
		if err != nil || r <= 0 {
			i.host.Chat("§cUsage: " + i.commandName("nearby") + " [radius]")
			return
		}
		radius = r
	}

	names := i.trackers.NearbyPlayers(radius)
	dist := strconv.FormatFloat(radius, 'f', -1, 64)
	if len(names) == 0 {
		i.host.Chat("§eNo players within " + dist + " blocks.")
		return
	}
	i.host.Chat(fmt.Sprintf("§aPlayers within %s blocks §7(%d)§a:", dist, len(names)))
	for _, name := range names {
		i.host.Chat("§8- §f" + name)
	}
}

func (i *Interceptor) gametrack(args []string) {
	results := i.deps.Results
	if results == nil {
		i.host.Chat("§cGame tracking storage is unavailable.")
		return
	}

	if len(args) > 0 && strings.EqualFold(args[0], "recent") {
		i.lookup(func(ctx context.Context) []string {
			recent, err := results.Recent(ctx, recentResults)
			if err != nil {
				i.logger.Error().Err(err).Msg("failed to read game results")
				return []string{"§cCould not read your game results."}
			}
			if len(recent) == 0 {
				return []string{"§eNo games recorded yet."}
			}
			lines := []string{"§a[GameTrack] §7Last " + strconv.Itoa(len(recent)) + " games:"}
			for _, r := range recent {
				lines = append(lines, fmt.Sprintf("§8- §7%s §f%s %s",
					r.RecordedAt.Local().Format("Jan 2 15:04"), displayName(r.GameKey), outcomeTag(r.Outcome)))
			}
			return lines
		})
		return
	}

	now := i.now()
	since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	i.lookup(func(ctx context.Context) []string {
		tallies, err := results.Summary(ctx, since)
		if err != nil {
			i.logger.Error().Err(err).Msg("failed to summarise game results")
			return []string{"§cCould not read your game results."}
		}
		if len(tallies) == 0 {
			return []string{"§eNo games recorded today."}
		}
		lines := []string{"§a[GameTrack] §7Today's results:"}
		for _, t := range tallies {
			lines = append(lines, fmt.Sprintf("§8- §f%s§7: §a%dW §c%dL §7(WLR %s)",
				displayName(t.GameKey), t.Wins, t.Losses, ratio(t.Wins, t.Losses)))
		}
		return lines
	})
}

func displayName(key string) string {
	if mode, ok := stats.Lookup(key); ok {
		return mode.DisplayName
	}
	return key
}

func outcomeTag(outcome string) string {
	if outcome == string(events.OutcomeWin) {
		return "§aWIN"
	}
	return "§cLOSS"
}

func ratio(wins, losses int) string {
	return strconv.FormatFloat(float64(wins)/float64(max(1, losses)), 'f', 2, 64)
}
