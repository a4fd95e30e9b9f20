package tracker

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/energizer-project/jagprox/internal/protocol"
)

const (
	alertRepeats  = 4
	alertInterval = 200 * time.Millisecond
	alertPitch    = 63
)

// AlertSink is told about each alert, for the event bus.
type AlertSink func(name string, id uuid.UUID)

// TabAlert plays a sound and prints a line the first time a watched name
// shows up in the player list during a session.
type TabAlert struct {
	host     Host
	entities *EntityTracker
	sink     AlertSink
	logger   zerolog.Logger

	alerted map[string]struct{}
}

// NewTabAlert creates the detector. The sound plays at the position
// entities reports for the local player. sink may be nil.
func NewTabAlert(host Host, entities *EntityTracker, sink AlertSink, logger zerolog.Logger) *TabAlert {
	return &TabAlert{
		host:     host,
		entities: entities,
		sink:     sink,
		logger:   logger,
		alerted:  make(map[string]struct{}),
	}
}

// Check tests an added or updated entry against the watch list.
func (a *TabAlert) Check(entry TabListEntry) {
	watch := a.host.Config().GetTabAlerts()
	if len(watch) == 0 {
		return
	}

	name := protocol.StripCodes(entry.DisplayText)
	key := name + "@" + entry.UUID.String()
	if _, done := a.alerted[key]; done {
		return
	}

	lower := strings.ToLower(name)
	for _, target := range watch {
		if target != "" && strings.Contains(lower, strings.ToLower(target)) {
			a.trigger(name, key, entry.UUID)
			return
		}
	}
}

// Forget drops alert keys for a player who left the list.
func (a *TabAlert) Forget(id uuid.UUID) {
	suffix := "@" + id.String()
	for key := range a.alerted {
		if strings.HasSuffix(key, suffix) {
			delete(a.alerted, key)
		}
	}
}

func (a *TabAlert) trigger(name, key string, id uuid.UUID) {
	a.alerted[key] = struct{}{}
	a.logger.Info().Str("player", name).Msg("tab alert")
	a.host.Chat("§aFound player §e" + name + "§a!")

	sound := a.host.Config().GetAlerts().Sound
	play := func() {
		a.host.SendClient(protocol.NamedSound{
			Name:   sound,
			Pos:    a.entities.Self(),
			Volume: 1,
			Pitch:  alertPitch,
		}.Encode())
	}
	play()
	for i := 1; i < alertRepeats; i++ {
		a.host.AfterFunc(time.Duration(i)*alertInterval, play)
	}

	if a.sink != nil {
		a.sink(name, id)
	}
}

// Reset clears the alerted set.
func (a *TabAlert) Reset() {
	clear(a.alerted)
}
