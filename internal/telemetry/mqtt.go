// Package telemetry publishes the local player's presence and game results
// to an MQTT broker.
package telemetry

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/energizer-project/jagprox/internal/config"
	"github.com/energizer-project/jagprox/internal/events"
	"github.com/energizer-project/jagprox/internal/tracker"
	"github.com/energizer-project/jagprox/internal/util"
)

// Topic suffixes, appended to the configured prefix.
const (
	TopicPresence  = "presence"
	TopicHeartbeat = "heartbeat"
	TopicResults   = "results"
	TopicAdmin     = "admin"
)

// broker is the subset of mqtt.Client the publisher uses.
type broker interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// PresencePublisher implements tracker.Presence over MQTT. Activity is
// published retained, so a late subscriber sees the current state.
type PresencePublisher struct {
	mu sync.Mutex

	cfg    *config.Config
	bus    *events.Bus
	client broker
	logger zerolog.Logger

	current  tracker.Activity
	metadata map[string]interface{}
}

// PresenceMessage is the payload of the presence topic.
type PresenceMessage struct {
	Active  bool      `json:"active"`
	Player  string    `json:"player,omitempty"`
	GameKey string    `json:"game_key,omitempty"`
	Since   time.Time `json:"since,omitempty"`
}

// NewPresencePublisher creates the publisher. It does not connect until
// Start.
func NewPresencePublisher(cfg *config.Config, bus *events.Bus) *PresencePublisher {
	pc := cfg.GetPresence()

	sysInfo := util.GetSystemInfo()
	p := &PresencePublisher{
		cfg:    cfg,
		bus:    bus,
		logger: util.ComponentLogger("presence"),
		metadata: map[string]interface{}{
			"hostname":  sysInfo.Hostname,
			"os":        sysInfo.OS,
			"cpu_cores": sysInfo.CPUCores,
			"memory_mb": sysInfo.TotalMemory,
		},
	}

	opts := mqtt.NewClientOptions()
	scheme := "tcp"
	if pc.UseTLS {
		scheme = "ssl"
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, pc.BrokerURL, pc.Port))

	if pc.ClientID != "" {
		opts.SetClientID(pc.ClientID)
	} else {
		opts.SetClientID(fmt.Sprintf("jagprox-%s", sysInfo.Hostname))
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetWill(p.topic(TopicPresence), `{"active":false}`, 1, true)

	opts.SetOnConnectHandler(func(mqtt.Client) {
		p.logger.Info().Msg("MQTT connected")
		p.republish()
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		p.logger.Warn().Err(err).Msg("MQTT connection lost")
	})

	p.client = mqtt.NewClient(opts)
	return p
}

// Run starts the publisher once presence is enabled, at startup or by a
// later toggle, and returns when ctx is cancelled.
func (p *PresencePublisher) Run(ctx context.Context) error {
	if !p.cfg.GetPresence().Enabled && p.bus != nil {
		enabled := make(chan struct{})
		var once sync.Once
		p.bus.Subscribe(events.EventPresenceToggle, "presence.wait", func(_ context.Context, event events.Event) error {
			if t, ok := event.Payload.(events.PresenceTogglePayload); ok && t.Enabled {
				once.Do(func() { close(enabled) })
			}
			return nil
		})
		p.logger.Debug().Msg("presence disabled, waiting for toggle")

		select {
		case <-ctx.Done():
		case <-enabled:
		}
		p.bus.Unsubscribe(events.EventPresenceToggle, "presence.wait")
		if ctx.Err() != nil {
			return nil
		}
	}
	return p.Start(ctx)
}

// Start connects to the broker and subscribes to bus events. It blocks
// until ctx is cancelled, then clears the retained presence and disconnects.
func (p *PresencePublisher) Start(ctx context.Context) error {
	pc := p.cfg.GetPresence()
	p.logger.Info().Str("broker", pc.BrokerURL).Int("port", pc.Port).Msg("connecting to MQTT broker")

	token := p.client.Connect()
	if token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return fmt.Errorf("MQTT connect failed: %w", token.Error())
	}

	p.subscribeEvents()
	defer p.unsubscribeEvents()

	<-ctx.Done()

	p.publishPresence(PresenceMessage{})
	p.client.Disconnect(1000)
	p.logger.Info().Msg("MQTT disconnected")
	return nil
}

func (p *PresencePublisher) subscribeEvents() {
	if p.bus == nil {
		return
	}
	p.bus.Subscribe(events.EventPresenceToggle, "presence.toggle", p.onToggle)
	p.bus.Subscribe(events.EventGameResult, "presence.result", p.onGameResult)
	p.bus.Subscribe(events.EventShutdown, "presence.shutdown", p.onShutdown)
}

func (p *PresencePublisher) unsubscribeEvents() {
	if p.bus == nil {
		return
	}
	p.bus.Unsubscribe(events.EventPresenceToggle, "presence.toggle")
	p.bus.Unsubscribe(events.EventGameResult, "presence.result")
	p.bus.Unsubscribe(events.EventShutdown, "presence.shutdown")
}

// SetActivity records the activity and publishes it if presence is enabled.
// It never blocks on the broker.
func (p *PresencePublisher) SetActivity(a tracker.Activity) {
	p.mu.Lock()
	p.current = a
	p.mu.Unlock()
	p.republish()
}

// Current returns the last recorded activity.
func (p *PresencePublisher) Current() tracker.Activity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// republish sends the current activity, or an inactive message when
// presence is disabled.
func (p *PresencePublisher) republish() {
	if !p.cfg.GetPresence().Enabled {
		p.publishPresence(PresenceMessage{})
		return
	}
	a := p.Current()
	p.publishPresence(PresenceMessage{
		Active:  a.Player != "",
		Player:  a.Player,
		GameKey: a.GameKey,
		Since:   a.Since,
	})
}

// Heartbeat publishes process usage alongside the current activity.
func (p *PresencePublisher) Heartbeat() {
	if !p.cfg.GetPresence().Enabled {
		return
	}
	a := p.Current()
	p.publish(p.topic(TopicHeartbeat), map[string]interface{}{
		"player":  a.Player,
		"game":    a.GameKey,
		"process": util.GetProcessUsage(),
	}, false)
}

func (p *PresencePublisher) onToggle(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.PresenceTogglePayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	p.logger.Info().Bool("enabled", payload.Enabled).Msg("presence toggled")
	p.republish()
	return nil
}

func (p *PresencePublisher) onGameResult(_ context.Context, event events.Event) error {
	if !p.cfg.GetPresence().Enabled {
		return nil
	}
	p.publish(p.topic(TopicResults), event.Payload, false)
	return nil
}

func (p *PresencePublisher) onShutdown(_ context.Context, _ events.Event) error {
	p.publish(p.topic(TopicAdmin), map[string]interface{}{"event": "shutdown"}, false)
	return nil
}

func (p *PresencePublisher) topic(suffix string) string {
	return p.cfg.GetPresence().TopicPrefix + "/" + suffix
}

func (p *PresencePublisher) publishPresence(msg PresenceMessage) {
	p.publish(p.topic(TopicPresence), msg, true)
}

// publish sends a JSON message wrapped with host metadata.
func (p *PresencePublisher) publish(topic string, payload interface{}, retained bool) {
	if !p.client.IsConnected() {
		return
	}

	data, err := json.Marshal(p.buildMessage(payload))
	if err != nil {
		p.logger.Warn().Err(err).Str("topic", topic).Msg("failed to marshal MQTT message")
		return
	}

	token := p.client.Publish(topic, 1, retained, data)
	go func() {
		token.Wait()
		if token.Error() != nil {
			p.logger.Warn().Err(token.Error()).Str("topic", topic).Msg("MQTT publish failed")
		}
	}()
}

func (p *PresencePublisher) buildMessage(payload interface{}) map[string]interface{} {
	msg := make(map[string]interface{}, len(p.metadata)+2)
	for k, v := range p.metadata {
		msg[k] = v
	}
	msg["payload"] = payload
	msg["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	return msg
}
