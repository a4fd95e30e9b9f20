package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/energizer-project/jagprox/internal/protocol"
)

const (
	suffixPacing  = 50 * time.Millisecond
	maxSuffixLen  = 16
	minNameLength = 3
)

// SuffixSynthesizer overlays directory-computed suffixes on players' tab
// and name tags using synthetic teams.
type SuffixSynthesizer struct {
	host    Host
	limiter *rate.Limiter
	logger  zerolog.Logger

	next int
}

// NewSuffixSynthesizer creates a synthesizer.
func NewSuffixSynthesizer(host Host, logger zerolog.Logger) *SuffixSynthesizer {
	return &SuffixSynthesizer{
		host:    host,
		limiter: rate.NewLimiter(rate.Every(suffixPacing), 1),
		logger:  logger,
	}
}

// Apply looks up suffixes for names one at a time off the loop and emits
// team frames for each non-empty result.
func (s *SuffixSynthesizer) Apply(names []string, gameKey string) {
	dir := s.host.Directory()
	if dir == nil || len(names) == 0 {
		return
	}
	names = append([]string(nil), names...)

	s.host.Go(func(ctx context.Context) {
		for _, name := range names {
			name := name
			if len(name) < minNameLength {
				continue
			}
			if err := s.limiter.Wait(ctx); err != nil {
				return
			}
			suffix, err := dir.FetchTabSuffix(ctx, name, gameKey)
			if err != nil {
				s.logger.Debug().Err(err).Str("player", name).Msg("tab suffix lookup failed")
				continue
			}
			if suffix == "" {
				continue
			}
			if !s.host.Post(func() { s.Emit(name, suffix) }) {
				return
			}
		}
	})
}

// Emit writes a create frame for a fresh team followed by a join frame for
// name. Empty suffixes emit nothing.
func (s *SuffixSynthesizer) Emit(name, suffix string) {
	if suffix == "" {
		return
	}
	id := fmt.Sprintf("jp%d", s.next)
	s.next++

	s.host.SendClient(protocol.Team{
		Name:         id,
		Mode:         protocol.TeamCreate,
		DisplayName:  id,
		Prefix:       "",
		Suffix:       TruncateSuffix(suffix),
		FriendlyFire: 0,
		Visibility:   "always",
		Color:        7,
	}.Encode())
	s.host.SendClient(protocol.Team{
		Name:    id,
		Mode:    protocol.TeamAddPlayers,
		Players: []string{name},
	}.Encode())
}

// Issued returns how many team ids have been minted.
func (s *SuffixSynthesizer) Issued() int {
	return s.next
}

// TruncateSuffix cuts s to the 16 characters a team suffix allows without
// leaving a dangling § code marker.
func TruncateSuffix(s string) string {
	runes := []rune(s)
	if len(runes) <= maxSuffixLen {
		return s
	}
	runes = runes[:maxSuffixLen]
	if runes[len(runes)-1] == '§' {
		runes = runes[:len(runes)-1]
	}
	return string(runes)
}
