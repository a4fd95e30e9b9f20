package command

import (
	"context"
	"slices"
	"sort"
	"strings"

	"github.com/energizer-project/jagprox/internal/config"
	"github.com/energizer-project/jagprox/internal/directory"
	"github.com/energizer-project/jagprox/internal/events"
)

// update persists a settings edit and announces it. It reports false after
// telling the player the save failed.
func (i *Interceptor) update(section string, mutate func(*config.Settings)) bool {
	if err := i.host.Config().Update(mutate); err != nil {
		i.logger.Error().Err(err).Str("section", section).Msg("failed to save configuration")
		i.host.Chat("§cError saving configuration to file.")
		return false
	}
	i.emit(events.EventConfigChanged, events.ConfigChangedPayload{Section: section, Origin: "chat"})
	return true
}

func (i *Interceptor) alert(args []string) {
	usage := "§cUsage: " + i.commandName("alert") + " <add|remove|list> [username]"
	if len(args) == 0 {
		i.host.Chat(usage)
		return
	}
	action := strings.ToLower(args[0])

	if action == "list" {
		list := i.host.Config().GetTabAlerts()
		if len(list) == 0 {
			i.host.Chat("§eYour alert list is empty.")
			return
		}
		i.host.Chat("§aPlayers on your alert list:")
		for _, name := range list {
			i.host.Chat("§8- §f" + name)
		}
		return
	}
	if len(args) < 2 {
		i.host.Chat(usage)
		return
	}
	username := args[1]

	switch action {
	case "add":
		var exists bool
		ok := i.update("tab_alerts", func(s *config.Settings) {
			if exists = indexFold(s.TabAlerts, username) >= 0; !exists {
				s.TabAlerts = append(s.TabAlerts, username)
			}
		})
		switch {
		case !ok:
		case exists:
			i.host.Chat("§cPlayer '" + username + "' is already on the alert list.")
		default:
			i.host.Chat("§aAdded '" + username + "' to the alert list.")
		}

	case "remove", "rem":
		var removed string
		ok := i.update("tab_alerts", func(s *config.Settings) {
			if idx := indexFold(s.TabAlerts, username); idx >= 0 {
				removed = s.TabAlerts[idx]
				s.TabAlerts = slices.Delete(s.TabAlerts, idx, idx+1)
			}
		})
		switch {
		case !ok:
		case removed == "":
			i.host.Chat("§cPlayer '" + username + "' is not on the alert list.")
		default:
			i.host.Chat("§aRemoved '" + removed + "' from the alert list.")
		}

	default:
		i.host.Chat("§cInvalid action. Use 'add', 'remove', or 'list'.")
	}
}

func indexFold(list []string, name string) int {
	return slices.IndexFunc(list, func(s string) bool { return strings.EqualFold(s, name) })
}

func (i *Interceptor) nickname(args []string) {
	name := i.commandName("nickname")
	if len(args) == 0 {
		i.host.Chat("§cUsage: " + name + " <add|remove|list>")
		i.host.Chat("§cAdd: " + name + " add <real_name> <nickname>")
		i.host.Chat("§cRemove: " + name + " remove <real_name_or_nickname>")
		return
	}

	switch strings.ToLower(args[0]) {
	case "add":
		if len(args) < 3 {
			i.host.Chat("§cUsage: " + name + " add <real_name> <nickname>")
			return
		}
		realName, nick := args[1], strings.Join(args[2:], " ")
		if i.update("nicknames", func(s *config.Settings) {
			if s.Nicknames == nil {
				s.Nicknames = map[string]string{}
			}
			s.Nicknames[realName] = nick
		}) {
			i.host.Chat("§aSet nickname for '" + realName + "' to '" + nick + "'.")
		}

	case "remove", "rem":
		if len(args) < 2 {
			i.host.Chat("§cUsage: " + name + " remove <real_name_or_nickname>")
			return
		}
		target := strings.Join(args[1:], " ")
		var removed string
		ok := i.update("nicknames", func(s *config.Settings) {
			for realName, nick := range s.Nicknames {
				if strings.EqualFold(realName, target) || strings.EqualFold(nick, target) {
					removed = realName
					delete(s.Nicknames, realName)
					return
				}
			}
		})
		switch {
		case !ok:
		case removed == "":
			i.host.Chat("§cNickname or player '" + target + "' not found.")
		default:
			i.host.Chat("§aRemoved nickname for '" + removed + "'.")
		}

	case "list":
		nicks := i.host.Config().GetNicknames()
		if len(nicks) == 0 {
			i.host.Chat("§eYou have no nicknames set.")
			return
		}
		i.host.Chat("§aYour nicknames:")
		for _, realName := range sortedKeys(nicks) {
			i.host.Chat("§8- §f" + realName + " §7-> §e" + nicks[realName])
		}

	default:
		i.host.Chat("§cInvalid action. Use 'add', 'remove', or 'list'.")
	}
}

func (i *Interceptor) superFriend(args []string) {
	usage := "§cUsage: " + i.commandName("superf") + " <add|remove|list> <username> [gamemodes...]"
	if len(args) == 0 {
		i.host.Chat(usage)
		return
	}
	action := strings.ToLower(args[0])

	if action == "list" {
		friends := i.host.Config().GetSuperFriends()
		if len(friends) == 0 {
			i.host.Chat("§eYou have no super friends set.")
			return
		}
		i.host.Chat("§aYour super friends:")
		for _, name := range sortedKeys(friends) {
			i.host.Chat("§8- §f" + name + " §7(" + strings.Join(friends[name], ", ") + ")")
		}
		return
	}
	if len(args) < 2 {
		i.host.Chat(usage)
		return
	}
	username := args[1]

	switch action {
	case "add":
		modes := args[2:]
		if len(modes) == 0 {
			i.host.Chat("§cYou must specify at least one gamemode (e.g., bedwars).")
			return
		}
		dir, ok := i.needDirectory()
		if !ok {
			return
		}
		i.host.Go(func(ctx context.Context) {
			id, err := dir.ResolveIdentity(ctx, username)
			i.host.Post(func() {
				if err != nil {
					i.host.Chat(directory.Describe(err, username))
					return
				}
				if i.update("super_friends", func(s *config.Settings) {
					if s.SuperFriends == nil {
						s.SuperFriends = map[string][]string{}
					}
					s.SuperFriends[id.Name] = modes
				}) {
					i.host.Chat("§aNow tracking " + id.Name + " for: §e" + strings.Join(modes, ", ") + "§a.")
				}
			})
		})

	case "remove", "rem":
		var removed string
		ok := i.update("super_friends", func(s *config.Settings) {
			for name := range s.SuperFriends {
				if strings.EqualFold(name, username) {
					removed = name
					delete(s.SuperFriends, name)
					return
				}
			}
		})
		switch {
		case !ok:
		case removed == "":
			i.host.Chat("§cPlayer '" + username + "' is not currently being tracked.")
		default:
			i.host.Chat("§aRemoved " + removed + " from tracked friends.")
		}

	default:
		i.host.Chat("§cInvalid action. Use 'add', 'remove', or 'list'.")
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
