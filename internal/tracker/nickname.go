package tracker

import (
	"sort"
	"strings"

	"github.com/energizer-project/jagprox/internal/protocol"
)

// RewriteComponent replaces every real name in aliases with its nickname
// throughout a chat component. When nothing matches, raw is returned as is
// with false.
func RewriteComponent(raw string, aliases map[string]string) (string, bool) {
	if len(aliases) == 0 || !mentionsAny(raw, aliases) {
		return raw, false
	}
	c, err := protocol.ParseComponent(raw)
	if err != nil {
		return raw, false
	}

	names := sortedNames(aliases)
	changed := false
	c.Walk(func(n *protocol.Component) bool {
		if n.Kind != protocol.KindText && n.Kind != protocol.KindObject {
			return true
		}
		if out := replaceNames(n.Text, names, aliases); out != n.Text {
			n.Text = out
			changed = true
		}
		return true
	})
	if !changed {
		return raw, false
	}

	out, err := c.MarshalJSON()
	if err != nil {
		return raw, false
	}
	return string(out), true
}

// RewritePlayerList applies RewriteComponent to every display name of a
// player list frame.
func RewritePlayerList(item protocol.PlayerListItem, aliases map[string]string) (protocol.PlayerListItem, bool) {
	if item.Action != protocol.ListAddPlayer && item.Action != protocol.ListUpdateDisplay {
		return item, false
	}
	var entries []protocol.PlayerListEntry
	for i, e := range item.Entries {
		if e.DisplayName == nil {
			continue
		}
		out, ok := RewriteComponent(*e.DisplayName, aliases)
		if !ok {
			continue
		}
		if entries == nil {
			entries = append([]protocol.PlayerListEntry(nil), item.Entries...)
		}
		entries[i].DisplayName = &out
	}
	if entries == nil {
		return item, false
	}
	item.Entries = entries
	return item, true
}

func mentionsAny(raw string, aliases map[string]string) bool {
	for name := range aliases {
		if name != "" && strings.Contains(raw, name) {
			return true
		}
	}
	return false
}

// sortedNames orders names longest first so "Alice2" wins over "Alice".
func sortedNames(aliases map[string]string) []string {
	names := make([]string, 0, len(aliases))
	for name := range aliases {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}

// replaceNames substitutes in one left-to-right pass. Inserted nicknames
// are not rescanned.
func replaceNames(s string, names []string, aliases map[string]string) string {
	var (
		sb      strings.Builder
		changed bool
	)
	for i := 0; i < len(s); {
		matched := false
		for _, name := range names {
			if strings.HasPrefix(s[i:], name) {
				if !changed {
					sb.Grow(len(s))
					sb.WriteString(s[:i])
					changed = true
				}
				sb.WriteString(aliases[name])
				i += len(name)
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		if changed {
			sb.WriteByte(s[i])
		}
		i++
	}
	if !changed {
		return s
	}
	return sb.String()
}
