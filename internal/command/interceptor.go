// Package command implements the chat command interceptor: configured and
// built-in aliases, the operator rename table and the local subcommands.
// Handlers run on the session loop; lookups go through Host.Go and report
// back with Host.Post.
package command

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/energizer-project/jagprox/internal/db"
	"github.com/energizer-project/jagprox/internal/events"
	"github.com/energizer-project/jagprox/internal/protocol"
	"github.com/energizer-project/jagprox/internal/stats"
	"github.com/energizer-project/jagprox/internal/tracker"
)

const headerRule = "§d§m----------------------------------------------------"

// Host is the session surface the interceptor needs on top of the tracker
// host.
type Host interface {
	tracker.Host
	// RawChat shows a system line without the tag prefix.
	RawChat(text string)
}

// GoalStore persists one stat goal per player.
type GoalStore interface {
	Set(ctx context.Context, goal db.Goal) error
	Get(ctx context.Context, playerUUID string) (db.Goal, error)
	Cancel(ctx context.Context, playerUUID string) error
}

// ResultStore reads recorded game results.
type ResultStore interface {
	Recent(ctx context.Context, limit int) ([]db.GameResult, error)
	Summary(ctx context.Context, since time.Time) ([]db.GameTally, error)
}

// LinkChecker reports whether an account is linked to the companion site.
type LinkChecker interface {
	LinkStatus(ctx context.Context, id uuid.UUID) (bool, error)
	LinkURL(id uuid.UUID) string
}

// Deps are the optional collaborators. Nil fields disable the commands
// that need them.
type Deps struct {
	Goals   GoalStore
	Results ResultStore
	Links   LinkChecker
	Bus     *events.Bus
}

// Interceptor decides whether a client chat line is handled locally.
type Interceptor struct {
	host     Host
	trackers *tracker.Set
	deps     Deps
	logger   zerolog.Logger
	now      func() time.Time

	lastPlay string
}

// New creates an interceptor for one session.
func New(host Host, trackers *tracker.Set, deps Deps, logger zerolog.Logger) *Interceptor {
	return &Interceptor{
		host:     host,
		trackers: trackers,
		deps:     deps,
		logger:   logger,
		now:      time.Now,
	}
}

// LastPlayCommand returns the remembered /play command, or "".
func (i *Interceptor) LastPlayCommand() string {
	return i.lastPlay
}

// Handle processes a client chat line. It returns true when the line was
// consumed and must not reach the server.
func (i *Interceptor) Handle(text string) bool {
	cfg := i.host.Config()

	if aliased, ok := i.alias(text); ok {
		i.rememberPlay(aliased)
		i.host.Chat("§eAlias executing: §f" + aliased)
		i.host.SendUpstream(protocol.ServerboundChat(aliased))
		i.logger.Debug().Str("alias", text).Str("command", aliased).Msg("alias expanded")
		return true
	}

	prefix := cfg.GetProxy().CommandPrefix
	if prefix == "" || !strings.HasPrefix(text, prefix) {
		return false
	}
	fields := strings.Fields(strings.TrimPrefix(text, prefix))
	if len(fields) == 0 {
		return false
	}
	name := strings.ToLower(fields[0])
	args := fields[1:]

	switch cfg.CanonicalCommand(name) {
	case "statcheck":
		i.statcheck(args)
	case "status":
		i.status(args)
	case "q":
		i.quickQueue(args)
	case "goal":
		i.goal(args)
	case "psc":
		i.partyStatCheck()
	case "alert":
		i.alert(args)
	case "nickname":
		i.nickname(args)
	case "superf":
		i.superFriend(args)
	case "rq":
		i.requeue()
	case "discord":
		i.discord(args)
	case "link":
		i.link()
	case "jagprox":
		i.help()
	case "nearby":
		i.nearby(args)
	case "gametrack":
		i.gametrack(args)
	default:
		if name == "play" {
			i.rememberPlay(text)
		}
		return false
	}
	return true
}

// alias checks the configured aliases first, then the built-in /play
// shortcuts.
func (i *Interceptor) alias(text string) (string, bool) {
	if aliased, ok := i.host.Config().Alias(text); ok && aliased != "" {
		return aliased, true
	}
	aliased, ok := stats.BuiltinAliases[strings.ToLower(text)]
	return aliased, ok
}

func (i *Interceptor) rememberPlay(cmd string) {
	if strings.HasPrefix(strings.ToLower(cmd), "/play ") {
		i.lastPlay = cmd
		i.logger.Debug().Str("command", cmd).Msg("captured last play command")
	}
}

// resolveNickname maps a nickname back to the real name it stands for.
func (i *Interceptor) resolveNickname(name string) string {
	for realName, nick := range i.host.Config().GetNicknames() {
		if strings.EqualFold(nick, name) {
			return realName
		}
	}
	return name
}

// lookup runs work off the loop and shows the returned lines in order.
func (i *Interceptor) lookup(work func(ctx context.Context) []string) {
	i.host.Go(func(ctx context.Context) {
		lines := work(ctx)
		if len(lines) == 0 {
			return
		}
		i.host.Post(func() {
			for _, line := range lines {
				i.host.Chat(line)
			}
		})
	})
}

func (i *Interceptor) emit(t events.EventType, payload any) {
	if i.deps.Bus == nil {
		return
	}
	i.deps.Bus.Emit(context.Background(), events.New(t, "command", payload))
}

func (i *Interceptor) commandName(canonical string) string {
	cfg := i.host.Config()
	return cfg.GetProxy().CommandPrefix + cfg.CommandName(canonical)
}

func (i *Interceptor) requeue() {
	if i.lastPlay == "" {
		i.host.Chat("§cNo last game found to re-queue for.")
		return
	}
	i.host.Chat("§eRe-queuing: §f" + i.lastPlay)
	i.host.SendUpstream(protocol.ServerboundChat(i.lastPlay))
}

type helpEntry struct {
	syntax string
	desc   string
}

func (i *Interceptor) help() {
	entries := []helpEntry{
		{i.commandName("statcheck") + " <game> <player>", "Checks Hypixel stats for a player."},
		{i.commandName("status") + " <player>", "Shows a player's online status."},
		{i.commandName("q") + " <queue>", "Joins a queue by short name."},
		{i.commandName("goal") + " <set|view|cancel> [args]", "Manages your personal stat goals."},
		{i.commandName("psc"), "Runs a stat check for all party members."},
		{i.commandName("rq"), "Re-queues your last played game."},
		{i.commandName("alert") + " <add|remove|list> [player]", "Manages in-game alerts for players."},
		{i.commandName("nickname") + " <add|remove|list> [args]", "Sets local nicknames for players."},
		{i.commandName("superf") + " <add|remove|list> [args]", "Tracks friends' game activity."},
		{i.commandName("nearby") + " [radius]", "Lists players close to you."},
		{i.commandName("gametrack") + " [recent]", "Shows your recorded game results."},
		{i.commandName("discord") + " [on|off]", "Toggles presence publishing."},
		{i.commandName("link"), "Shows your account link status."},
		{i.commandName("jagprox"), "Displays this help message."},
	}

	i.host.Chat(headerRule)
	i.host.Chat("§r  §d§lJagProx §8- §7Available Commands")
	i.host.Chat(" ")
	for n, e := range entries {
		cmd, args, _ := strings.Cut(e.syntax, " ")
		i.host.Chat("§r  §d" + cmd + " §e" + args)
		i.host.Chat("§r    §8- §7" + e.desc)
		if n < len(entries)-1 {
			i.host.Chat(" ")
		}
	}
	i.host.Chat(headerRule)
}
