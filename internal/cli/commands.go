// Package cli implements the operator console: session status, the alias
// and alert lists, recent games, config reload, kick and quit.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"

	"github.com/energizer-project/jagprox/internal/config"
	"github.com/energizer-project/jagprox/internal/db"
	"github.com/energizer-project/jagprox/internal/events"
	"github.com/energizer-project/jagprox/internal/relay"
	"github.com/energizer-project/jagprox/internal/util"
)

const defaultGames = 10

// Sessions is the relay view the console needs.
type Sessions interface {
	Active() (relay.Snapshot, bool)
	Kick(reason string) bool
}

// Results reads recorded game outcomes.
type Results interface {
	Recent(ctx context.Context, limit int) ([]db.GameResult, error)
	Summary(ctx context.Context, since time.Time) ([]db.GameTally, error)
}

var (
	heading = color.New(color.FgMagenta, color.Bold)
	good    = color.New(color.FgGreen)
	bad     = color.New(color.FgRed)
	muted   = color.New(color.FgHiBlack)
)

// CLI provides an interactive command-line interface.
type CLI struct {
	cfg      *config.Config
	bus      *events.Bus
	sessions Sessions
	results  Results

	in     io.Reader
	out    io.Writer
	logger zerolog.Logger
}

// NewCLI creates a console on stdin and stdout. results may be nil.
func NewCLI(cfg *config.Config, bus *events.Bus, sessions Sessions, results Results) *CLI {
	return &CLI{
		cfg:      cfg,
		bus:      bus,
		sessions: sessions,
		results:  results,
		in:       os.Stdin,
		out:      os.Stdout,
		logger:   util.ComponentLogger("cli"),
	}
}

// Start reads commands until ctx is cancelled or input ends.
func (c *CLI) Start(ctx context.Context) {
	fmt.Fprintln(c.out, "\nJagProx console ready. Type 'help' for available commands.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(c.out, "jagprox> ")
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			parts := strings.Fields(line)
			if len(parts) == 0 {
				continue
			}
			if err := c.execute(ctx, strings.ToLower(parts[0]), parts[1:]); err != nil {
				bad.Fprintf(c.out, "Error: %v\n", err)
			}
		}
	}
}

// execute runs a single console command.
func (c *CLI) execute(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help", "h", "?":
		c.printHelp()
	case "status", "s":
		c.printStatus()
	case "aliases":
		c.printAliases()
	case "alerts":
		c.printAlerts()
	case "games", "g":
		return c.printGames(ctx, args)
	case "reload":
		return c.cmdReload(ctx)
	case "kick":
		return c.cmdKick(args)
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Shutting down JagProx...")
		c.bus.Emit(ctx, events.New(events.EventShutdown, "cli", nil))
	default:
		fmt.Fprintf(c.out, "Unknown command: '%s'. Type 'help' for available commands.\n", cmd)
	}
	return nil
}

func (c *CLI) printHelp() {
	heading.Fprintln(c.out, "\nCommands")
	rows := [][2]string{
		{"status", "Show the active session"},
		{"aliases", "List chat aliases"},
		{"alerts", "List tab alerts and super friends"},
		{"games [n]", "Show the last n games and today's tally"},
		{"reload", "Re-read config.yml"},
		{"kick [reason]", "Disconnect the connected player"},
		{"quit", "Shut down the proxy"},
	}
	for _, r := range rows {
		fmt.Fprintf(c.out, "  %-14s %s\n", r[0], muted.Sprint(r[1]))
	}
	fmt.Fprintln(c.out)
}

func (c *CLI) printStatus() {
	proxy := c.cfg.GetProxy()
	fmt.Fprintf(c.out, "\n  Listen:   %s\n", proxy.Listen)
	fmt.Fprintf(c.out, "  Upstream: %s\n", proxy.Upstream)

	snap, ok := c.sessions.Active()
	if !ok {
		muted.Fprintln(c.out, "  No player connected.")
		fmt.Fprintln(c.out)
		return
	}
	game := snap.GameKey
	if game == "" {
		game = "-"
	}
	fmt.Fprintf(c.out, "  Player:   %s\n", good.Sprint(snap.Player))
	fmt.Fprintf(c.out, "  Game:     %s\n", game)
	fmt.Fprintf(c.out, "  Online:   %s\n", time.Since(snap.StartedAt).Truncate(time.Second))
	fmt.Fprintf(c.out, "  Frames:   %d up, %d down, %d dropped\n\n", snap.FramesUp, snap.FramesDown, snap.Dropped)
}

func (c *CLI) printAliases() {
	aliases := c.cfg.Snapshot().Aliases
	if len(aliases) == 0 {
		muted.Fprintln(c.out, "No aliases configured.")
		return
	}

	tw := c.table([]string{"Alias", "Runs"})
	for _, key := range sortedKeys(aliases) {
		tw.Append([]string{key, aliases[key]})
	}
	tw.Render()
}

func (c *CLI) printAlerts() {
	alerts := c.cfg.GetTabAlerts()
	heading.Fprintf(c.out, "Tab alerts (%d)\n", len(alerts))
	for _, name := range alerts {
		fmt.Fprintf(c.out, "  %s\n", name)
	}

	friends := c.cfg.GetSuperFriends()
	heading.Fprintf(c.out, "Super friends (%d)\n", len(friends))
	if len(friends) == 0 {
		return
	}
	tw := c.table([]string{"Player", "Games"})
	for _, name := range sortedKeys(friends) {
		tw.Append([]string{name, strings.Join(friends[name], ", ")})
	}
	tw.Render()
}

func (c *CLI) printGames(ctx context.Context, args []string) error {
	if c.results == nil {
		return fmt.Errorf("game history is unavailable")
	}
	limit := defaultGames
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid count: %s", args[0])
		}
		limit = n
	}

	recent, err := c.results.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(recent) == 0 {
		muted.Fprintln(c.out, "No games recorded yet.")
		return nil
	}

	tw := c.table([]string{"When", "Player", "Game", "Result"})
	for _, r := range recent {
		outcome := good.Sprint(r.Outcome)
		if r.Outcome == string(events.OutcomeLoss) {
			outcome = bad.Sprint(r.Outcome)
		}
		tw.Append([]string{r.RecordedAt.Format("Jan 02 15:04"), r.PlayerName, r.GameKey, outcome})
	}
	tw.Render()

	tally, err := c.results.Summary(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		return err
	}
	for _, t := range tally {
		fmt.Fprintf(c.out, "  %-10s %d played, %s / %s\n", t.GameKey, t.Games,
			good.Sprintf("%d W", t.Wins), bad.Sprintf("%d L", t.Losses))
	}
	return nil
}

func (c *CLI) cmdReload(ctx context.Context) error {
	if err := c.cfg.Reload(); err != nil {
		return fmt.Errorf("reload failed: %w", err)
	}
	result := config.ValidateSettings(c.cfg.Snapshot())
	for _, w := range result.Warnings {
		muted.Fprintf(c.out, "  warning: %s: %s\n", w.Field, w.Message)
	}
	for _, e := range result.Errors {
		bad.Fprintf(c.out, "  error: %s: %s\n", e.Field, e.Message)
	}

	c.bus.Emit(ctx, events.New(events.EventConfigChanged, "cli",
		events.ConfigChangedPayload{Section: "all", Origin: "cli"}))
	good.Fprintln(c.out, "Configuration reloaded.")
	return nil
}

func (c *CLI) cmdKick(args []string) error {
	reason := strings.Join(args, " ")
	if reason == "" {
		reason = "Disconnected by the proxy operator."
	}
	if !c.sessions.Kick(reason) {
		return fmt.Errorf("no active session")
	}
	c.logger.Info().Str("reason", reason).Msg("session kicked from console")
	fmt.Fprintln(c.out, "Session kicked.")
	return nil
}

func (c *CLI) table(header []string) *tablewriter.Table {
	tw := tablewriter.NewWriter(c.out)
	tw.SetHeader(header)
	tw.SetBorder(true)
	tw.SetAutoWrapText(false)
	return tw
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
