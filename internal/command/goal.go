package command

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/energizer-project/jagprox/internal/db"
	"github.com/energizer-project/jagprox/internal/stats"
)

func (i *Interceptor) goal(args []string) {
	if i.deps.Goals == nil {
		i.host.Chat("§cGoal storage is unavailable.")
		return
	}
	action := ""
	if len(args) > 0 {
		action = strings.ToLower(args[0])
		args = args[1:]
	}

	switch action {
	case "set":
		i.goalSet(args)
	case "view":
		i.goalView()
	case "cancel":
		i.goalCancel()
	default:
		i.host.Chat("§cInvalid subcommand. Use " + i.commandName("goal") + " <set|view|cancel>.")
	}
}

func (i *Interceptor) goalSet(args []string) {
	usage := func() {
		i.host.Chat("§cUsage: " + i.commandName("goal") + " set <game> <stat> <target>")
		i.host.Chat("§eExample: " + i.commandName("goal") + " set bedwars fkdr 5")
	}
	if len(args) < 3 {
		usage()
		return
	}
	target, err := strconv.ParseFloat(args[2], 64)
	if err != nil || math.IsNaN(target) || math.IsInf(target, 0) {
		usage()
		return
	}

	game := strings.ToLower(args[0])
	if mode, ok := stats.Lookup(game); ok {
		game = mode.Key
	}
	aliases, ok := stats.StatAliases[game]
	if !ok {
		i.host.Chat("§cGoals are not available for " + args[0] + ". Try: §e" + strings.Join(goalGames(), ", "))
		return
	}
	statKey := strings.ToLower(args[1])
	alias, ok := aliases[statKey]
	if !ok {
		i.host.Chat(fmt.Sprintf("§cInvalid stat. Available for %s: §e%s", game, strings.Join(stats.StatNames(game), ", ")))
		return
	}

	dir, ok := i.needDirectory()
	if !ok {
		return
	}
	self := i.host.Profile()
	if self.UUID == uuid.Nil {
		i.host.Chat("§cCould not identify your UUID. Please relog.")
		return
	}
	i.host.Chat("§eFetching your current stats to set the goal...")

	goals := i.deps.Goals
	i.lookup(func(ctx context.Context) []string {
		p, err := dir.FetchStats(ctx, self.UUID)
		if err != nil {
			i.logger.Debug().Err(err).Msg("goal stats lookup failed")
			return []string{"§cCould not fetch your Hypixel stats."}
		}
		current := p.Value(alias)
		if target <= current {
			return []string{fmt.Sprintf("§cYour target of %s is not higher than your current %s of %s!",
				stats.FormatNumber(target), alias.Name, stats.FormatNumber(current))}
		}

		g := db.Goal{
			PlayerUUID: self.UUID.String(),
			Game:       game,
			Stat:       statKey,
			Name:       alias.Name,
			Target:     target,
			Initial:    current,
			SetAt:      i.now(),
		}
		if err := goals.Set(ctx, g); err != nil {
			i.logger.Error().Err(err).Msg("failed to store goal")
			return []string{"§cCould not save your goal."}
		}
		return []string{fmt.Sprintf("§aGoal set! Track your progress for §e%s in %s§a to reach §6%s§a.",
			alias.Name, game, stats.FormatNumber(target))}
	})
}

func (i *Interceptor) goalView() {
	dir, ok := i.needDirectory()
	if !ok {
		return
	}
	self := i.host.Profile()
	goals := i.deps.Goals

	i.lookup(func(ctx context.Context) []string {
		g, err := goals.Get(ctx, self.UUID.String())
		if errors.Is(err, db.ErrNoGoal) {
			return []string{"§eYou do not have an active goal. Use " + i.commandName("goal") + " set <game> <stat> <target>."}
		}
		if err != nil {
			i.logger.Error().Err(err).Msg("failed to read goal")
			return []string{"§cCould not read your goal."}
		}
		alias, ok := stats.StatAliases[g.Game][g.Stat]
		if !ok {
			return []string{"§cYour goal tracks a stat that no longer exists. Set a new one."}
		}
		p, err := dir.FetchStats(ctx, self.UUID)
		if err != nil {
			return []string{"§cCould not fetch your Hypixel stats."}
		}
		return goalLines(g, p.Value(alias))
	})
}

// goalLines renders the progress view for a goal at the current value.
func goalLines(g db.Goal, current float64) []string {
	percent := 100.0
	if needed := g.Target - g.Initial; needed > 0 {
		percent = max(0, min(100, (current-g.Initial)/needed*100))
	}
	remaining := max(0, g.Target-current)

	return []string{
		headerRule,
		fmt.Sprintf("  §d§lGoal: %s in %s", g.Name, g.Game),
		fmt.Sprintf("  §7%s §f-> §6%s", stats.FormatNumber(g.Initial), stats.FormatNumber(g.Target)),
		" ",
		fmt.Sprintf("  §fProgress: %s §e%.2f%%", stats.ProgressBar(percent), percent),
		fmt.Sprintf("  §aCurrent: %s §c(Remaining: %s)", stats.FormatNumber(current), stats.FormatNumber(remaining)),
		headerRule,
	}
}

func (i *Interceptor) goalCancel() {
	self := i.host.Profile()
	goals := i.deps.Goals
	i.lookup(func(ctx context.Context) []string {
		err := goals.Cancel(ctx, self.UUID.String())
		switch {
		case errors.Is(err, db.ErrNoGoal):
			return []string{"§eYou do not have an active goal to cancel."}
		case err != nil:
			i.logger.Error().Err(err).Msg("failed to cancel goal")
			return []string{"§cCould not cancel your goal."}
		}
		return []string{"§aYour active goal has been cancelled."}
	})
}

func goalGames() []string {
	games := make([]string, 0, len(stats.StatAliases))
	for g := range stats.StatAliases {
		games = append(games, g)
	}
	sort.Strings(games)
	return games
}
