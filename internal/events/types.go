// Package events defines the event types passed between relay sessions and
// process-wide integrations.
package events

import "time"

// EventType represents the type of event emitted through the Bus.
type EventType string

const (
	// Session lifecycle
	EventSessionStarted EventType = "session_started"
	EventSessionEnded   EventType = "session_ended"

	// Game tracking
	EventGameChanged EventType = "game_changed"
	EventGameEnded   EventType = "game_ended"
	EventGameResult  EventType = "game_result"

	// Notifications
	EventTabAlert       EventType = "tab_alert"
	EventPresenceToggle EventType = "presence_toggle"

	// System
	EventConfigChanged EventType = "config_changed"
	EventShutdown      EventType = "shutdown"
)

// Event represents a single event in the system.
type Event struct {
	Type    EventType `json:"type"`
	Source  string    `json:"source"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload,omitempty"`
}

// New stamps an event with the current time.
func New(t EventType, source string, payload any) Event {
	return Event{Type: t, Source: source, Time: time.Now(), Payload: payload}
}

// SessionPayload identifies the player behind a session event.
type SessionPayload struct {
	SessionID  string `json:"session_id"`
	PlayerName string `json:"player_name"`
	PlayerUUID string `json:"player_uuid"`
	Reason     string `json:"reason,omitempty"`
}

// GamePayload carries a game-mode key change or end.
type GamePayload struct {
	SessionID string `json:"session_id"`
	GameKey   string `json:"game_key"`
	Previous  string `json:"previous,omitempty"`
}

// Outcome of a finished game.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
)

// GameResultPayload is a classified game result.
type GameResultPayload struct {
	SessionID  string    `json:"session_id"`
	PlayerName string    `json:"player_name"`
	GameKey    string    `json:"game_key"`
	Outcome    Outcome   `json:"outcome"`
	At         time.Time `json:"at"`
}

// TabAlertPayload is emitted when a watched player shows up in the tab list.
type TabAlertPayload struct {
	SessionID  string `json:"session_id"`
	PlayerName string `json:"player_name"`
	GameKey    string `json:"game_key,omitempty"`
}

// PresenceTogglePayload flips presence publishing from a chat command.
type PresenceTogglePayload struct {
	Enabled bool `json:"enabled"`
}

// ConfigChangedPayload is emitted when a configuration section is edited.
type ConfigChangedPayload struct {
	Section string `json:"section"`
	Origin  string `json:"origin"`
}
