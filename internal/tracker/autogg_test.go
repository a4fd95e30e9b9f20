package tracker

import (
	"reflect"
	"testing"

	"github.com/energizer-project/jagprox/internal/config"
	"github.com/energizer-project/jagprox/internal/protocol"
)

func titleFrame(text string) protocol.Title {
	return protocol.Title{Action: protocol.TitleSet, JSON: protocol.TextComponent(text)}
}

func enableAutoGG(h *fakeHost, delay int) {
	h.cfg.Override(func(s *config.Settings) {
		s.AutoGG.Enabled = true
		s.AutoGG.Message = "gg"
		s.AutoGG.Delay = delay
	})
}

func TestAutoGGOncePerGame(t *testing.T) {
	h := newFakeHost(t)
	enableAutoGG(h, 0)
	g := NewAutoGG(h, nopLogger)

	g.OnTitle(titleFrame("§6§lGAME OVER"))
	g.OnTitle(titleFrame("§6§lGAME OVER"))
	h.fire()

	if got, want := h.upstreamChat(t), []string{"/ac gg"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("upstream chat = %v, want %v", got, want)
	}

	g.Rearm()
	g.OnTitle(titleFrame("VICTORY!"))
	h.fire()
	if got := len(h.upstreamChat(t)); got != 2 {
		t.Errorf("after rearm sent %d, want 2", got)
	}
}

func TestAutoGGIgnores(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		title   protocol.Title
	}{
		{name: "disabled", enabled: false, title: titleFrame("GAME OVER")},
		{name: "subtitle", enabled: true, title: protocol.Title{Action: protocol.TitleSubtitle, JSON: protocol.TextComponent("GAME OVER")}},
		{name: "other title", enabled: true, title: titleFrame("Bed Destroyed")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newFakeHost(t)
			if tt.enabled {
				enableAutoGG(h, 0)
			}
			g := NewAutoGG(h, nopLogger)
			g.OnTitle(tt.title)
			h.fire()
			if len(h.upstream) != 0 || g.Sent() {
				t.Errorf("sent %d frames", len(h.upstream))
			}
		})
	}
}

func TestAutoGGDelayAndReset(t *testing.T) {
	h := newFakeHost(t)
	enableAutoGG(h, -1)
	g := NewAutoGG(h, nopLogger)

	g.OnTitle(titleFrame("you win!"))
	if len(h.timers) != 1 || h.timers[0].d != defaultGGDelay {
		t.Fatalf("timers = %+v, want one at %v", h.timers, defaultGGDelay)
	}
	g.Reset()
	h.fire()
	if len(h.upstream) != 0 {
		t.Errorf("cancelled farewell was sent")
	}
}
