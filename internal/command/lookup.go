package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/energizer-project/jagprox/internal/directory"
	"github.com/energizer-project/jagprox/internal/stats"
)

func (i *Interceptor) needDirectory() (directory.PlayerDirectory, bool) {
	dir := i.host.Directory()
	if dir == nil {
		i.host.Chat(directory.Describe(directory.ErrUnavailable, ""))
		return nil, false
	}
	return dir, true
}

func (i *Interceptor) statcheck(args []string) {
	name := i.commandName("statcheck")
	if len(args) > 0 && args[0] == "?" {
		i.showModes()
		return
	}
	if len(args) < 2 {
		i.host.Chat("§cUsage: " + name + " <gamemode> <username>")
		i.host.Chat("§eUse " + name + " ? to see all available gamemodes.")
		return
	}
	mode, ok := stats.Lookup(args[0])
	if !ok {
		i.host.Chat("§cUnknown game mode. Use " + name + " ? for a list.")
		return
	}
	dir, ok := i.needDirectory()
	if !ok {
		return
	}

	username := i.resolveNickname(strings.Join(args[1:], " "))
	i.host.Chat(fmt.Sprintf("§eChecking %s stats for %s...", mode.DisplayName, username))

	i.host.Go(func(ctx context.Context) {
		id, err := dir.ResolveIdentity(ctx, username)
		if err != nil {
			i.reply(directory.Describe(err, username))
			return
		}
		p, err := dir.FetchStats(ctx, id.UUID)
		if err != nil && !errors.Is(err, directory.ErrNotFound) {
			i.reply(directory.Describe(err, id.Name))
			return
		}
		if err != nil || !p.HasStats(mode.APIName) {
			i.reply(fmt.Sprintf("§cNo %s stats found for '%s'.", mode.DisplayName, id.Name))
			return
		}

		guild, err := dir.FetchGuild(ctx, id.UUID)
		if err != nil {
			i.logger.Debug().Err(err).Str("player", id.Name).Msg("guild lookup failed")
		}
		var avatar []string
		if img, err := dir.FetchAvatar(ctx, id.UUID); err == nil {
			avatar = stats.AvatarLines(img)
		} else {
			i.logger.Debug().Err(err).Str("player", id.Name).Msg("avatar lookup failed")
		}
		body := stats.StatLines(p, mode, id.Name, guild)

		i.host.Post(func() {
			i.host.Chat(stats.Separator)
			for _, line := range avatar {
				i.host.RawChat(line)
			}
			i.host.Chat(" ")
			for _, line := range body {
				i.host.Chat(line)
			}
			i.host.Chat(stats.Separator)
		})
	})
}

func (i *Interceptor) showModes() {
	i.host.Chat(headerRule)
	i.host.Chat("§r  §d§lAvailable Statcheck Gamemodes")
	i.host.Chat(" ")
	for _, g := range stats.ModesByDisplayName() {
		i.host.Chat("§r  §e" + g.DisplayName + ": §b" + strings.Join(g.Names, ", "))
	}
	i.host.Chat(headerRule)
}

func (i *Interceptor) status(args []string) {
	if len(args) == 0 {
		i.host.Chat("§cUsage: " + i.commandName("status") + " <username>")
		return
	}
	dir, ok := i.needDirectory()
	if !ok {
		return
	}
	username := i.resolveNickname(args[0])
	i.host.Chat("§eChecking status for " + username + "...")

	i.lookup(func(ctx context.Context) []string {
		id, err := dir.ResolveIdentity(ctx, username)
		if err != nil {
			return []string{directory.Describe(err, username)}
		}
		st, err := dir.FetchStatus(ctx, id.UUID)
		if err != nil {
			if errors.Is(err, directory.ErrNotFound) {
				return []string{"§cCould not retrieve status for '" + id.Name + "'."}
			}
			return []string{directory.Describe(err, id.Name)}
		}
		return statusLines(id.Name, st)
	})
}

func statusLines(name string, st *directory.Status) []string {
	rank := stats.FormatRank(st.Rank)
	lines := []string{stats.Separator}
	switch {
	case !st.Online:
		lines = append(lines, rank+" "+name+" §cis Offline.")
	case st.Hidden:
		lines = append(lines, rank+" "+name+" §ais Online.", "§7(Status is hidden, game info unavailable)")
	default:
		lines = append(lines, rank+" "+name+" §ais Online.", "§fGame: §b"+st.GameType)
		if st.Mode != "" {
			lines = append(lines, "§fMode: §e"+st.Mode)
		}
		if st.Map != "" {
			lines = append(lines, "§fMap: §e"+st.Map)
		}
	}
	return append(lines, stats.Separator)
}

func (i *Interceptor) partyStatCheck() {
	if i.host.Directory() == nil {
		i.host.Chat(directory.Describe(directory.ErrUnavailable, ""))
		return
	}
	started := i.trackers.Party.Start(func(names []string) {
		if len(names) == 0 {
			i.host.Chat("§cYou are not in a party.")
			return
		}
		i.host.Chat(fmt.Sprintf("§eChecking stats for %d party members...", len(names)))
		i.trackers.PrintRoster(names, i.trackers.CurrentGame())
	})
	if !started {
		i.host.Chat("§cA party check is already running.")
	}
}

// reply shows one line from a worker goroutine.
func (i *Interceptor) reply(line string) {
	i.host.Post(func() { i.host.Chat(line) })
}
