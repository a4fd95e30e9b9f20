package tracker

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/energizer-project/jagprox/internal/protocol"
)

const (
	partyListCommand = "/pl"
	partyTimeout     = 3 * time.Second
)

var partyRolePrefixes = []string{"Party Leader:", "Party Moderators:", "Party Members:"}

// PartyCapture runs /pl and collects the member names from the reply. At
// most one capture is active per session.
type PartyCapture struct {
	host   Host
	logger zerolog.Logger

	active   bool
	rules    int
	names    []string
	done     func(names []string)
	deadline Timer
}

// NewPartyCapture creates an idle capture.
func NewPartyCapture(host Host, logger zerolog.Logger) *PartyCapture {
	return &PartyCapture{host: host, logger: logger}
}

// Active reports whether a capture is running.
func (c *PartyCapture) Active() bool {
	return c.active
}

// Start sends /pl and calls done with the members once the reply ends or
// the timeout passes. It reports false when a capture is already running.
func (c *PartyCapture) Start(done func(names []string)) bool {
	if c.active {
		return false
	}
	c.active = true
	c.rules = 0
	c.names = nil
	c.done = done

	c.host.SendUpstream(protocol.ServerboundChat(partyListCommand))
	c.deadline = c.host.AfterFunc(partyTimeout, func() {
		c.deadline = nil
		if c.active {
			c.logger.Debug().Int("captured", len(c.names)).Msg("party capture timed out")
			c.finish()
		}
	})
	return true
}

// OnChat consumes lines of the /pl reply while a capture is active.
func (c *PartyCapture) OnChat(clean string) bool {
	if !c.active {
		return false
	}
	line := strings.TrimSpace(clean)

	switch {
	case strings.HasPrefix(line, "-----"):
		c.rules++
		if c.rules >= 2 {
			c.finish()
		}
		return true

	case line == "", strings.HasPrefix(line, "Party Members ("):
		return true

	case strings.Contains(line, "not in a party"), strings.Contains(line, "not currently in a party"):
		c.names = nil
		c.finish()
		return true
	}

	for _, prefix := range partyRolePrefixes {
		if rest, ok := strings.CutPrefix(line, prefix); ok {
			c.names = append(c.names, parsePartyNames(rest)...)
			return true
		}
	}
	return false
}

// parsePartyNames splits "[MVP+] Alice ● Bob ●" into bare names.
func parsePartyNames(s string) []string {
	var names []string
	for _, part := range strings.Split(s, "●") {
		fields := strings.Fields(part)
		if len(fields) == 0 {
			continue
		}
		names = append(names, fields[len(fields)-1])
	}
	return names
}

func (c *PartyCapture) finish() {
	if c.deadline != nil {
		c.deadline.Stop()
		c.deadline = nil
	}
	names, done := c.names, c.done
	c.active = false
	c.names = nil
	c.done = nil
	if done != nil {
		done(names)
	}
}

// Reset drops an active capture without calling its callback.
func (c *PartyCapture) Reset() {
	if c.deadline != nil {
		c.deadline.Stop()
		c.deadline = nil
	}
	c.active = false
	c.names = nil
	c.done = nil
}
