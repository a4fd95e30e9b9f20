// Package config handles configuration loading, validation, and persistence
// for the JagProx relay.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigDir  = "config"
	DefaultConfigFile = "config.yml"
	DefaultListenPort = 2107
	DefaultAdminPort  = 2108
	DefaultUpstream   = "mc.hypixel.net:25565"
	ProtocolVersion   = 47
)

// Config is the root configuration store. All reads go through accessors
// holding the read lock; writes go through Update, which re-reads the file
// before writing so edits made outside the process are kept.
type Config struct {
	mu        sync.RWMutex
	path      string
	created   bool
	overrides []func(*Settings)

	Settings
}

// Settings is the on-disk shape of config.yml.
type Settings struct {
	Proxy        ProxyConfig         `yaml:"proxy" json:"proxy"`
	Commands     map[string]string   `yaml:"commands" json:"commands"`
	Aliases      map[string]string   `yaml:"aliases" json:"aliases"`
	QueueStats   map[string]bool     `yaml:"queue_stats" json:"queue_stats"`
	Nicknames    map[string]string   `yaml:"nicknames" json:"nicknames"`
	TabAlerts    []string            `yaml:"tab_alerts" json:"tab_alerts"`
	SuperFriends map[string][]string `yaml:"super_friends" json:"super_friends"`
	AutoGG       AutoGGConfig        `yaml:"auto_gg" json:"auto_gg"`
	Alerts       AlertConfig         `yaml:"alerts" json:"alerts"`
	Directory    DirectoryConfig     `yaml:"directory" json:"directory"`
	Presence     PresenceConfig      `yaml:"presence" json:"presence"`
	Admin        AdminConfig         `yaml:"admin" json:"admin"`
	Storage      StorageConfig       `yaml:"storage" json:"storage"`
	Logging      LoggingConfig       `yaml:"logging" json:"logging"`
}

// ProxyConfig holds the listener and upstream settings.
type ProxyConfig struct {
	Listen          string `yaml:"listen" json:"listen"`
	Upstream        string `yaml:"upstream" json:"upstream"`
	ProtocolVersion int    `yaml:"protocol_version" json:"protocol_version"`
	CommandPrefix   string `yaml:"command_prefix" json:"command_prefix"`
	TagPrefix       string `yaml:"tag_prefix" json:"tag_prefix"`
	MOTD            string `yaml:"motd" json:"motd"`
}

// AutoGGConfig controls the automatic end-of-game message.
type AutoGGConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Message string `yaml:"message" json:"message"`
	Delay   int    `yaml:"delay" json:"delay"` // milliseconds
}

// AlertConfig controls the tab-list watch alert.
type AlertConfig struct {
	Sound string `yaml:"sound" json:"sound"`
}

// DirectoryConfig holds the player directory HTTP settings.
type DirectoryConfig struct {
	MojangURL         string  `yaml:"mojang_url" json:"mojang_url"`
	HypixelURL        string  `yaml:"hypixel_url" json:"hypixel_url"`
	AvatarURL         string  `yaml:"avatar_url" json:"avatar_url"`
	SessionURL        string  `yaml:"session_url" json:"session_url"`
	LinkURL           string  `yaml:"link_url" json:"link_url"`
	TimeoutSec        int     `yaml:"timeout_sec" json:"timeout_sec"`
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	CacheTTLMinutes   int     `yaml:"cache_ttl_minutes" json:"cache_ttl_minutes"`
}

// PresenceConfig holds the MQTT presence publisher settings.
type PresenceConfig struct {
	Enabled      bool   `yaml:"enabled" json:"enabled"`
	BrokerURL    string `yaml:"broker_url" json:"broker_url"`
	Port         int    `yaml:"port" json:"port"`
	UseTLS       bool   `yaml:"use_tls" json:"use_tls"`
	ClientID     string `yaml:"client_id" json:"client_id"`
	TopicPrefix  string `yaml:"topic_prefix" json:"topic_prefix"`
	HeartbeatSec int    `yaml:"heartbeat_sec" json:"heartbeat_sec"`
}

// AdminConfig holds the local admin API settings.
type AdminConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	Listen         string   `yaml:"listen" json:"listen"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	RateLimitRPS   int      `yaml:"rate_limit_rps" json:"rate_limit_rps"`
}

// StorageConfig holds the sqlite database location and retention.
type StorageConfig struct {
	DatabasePath        string `yaml:"database_path" json:"database_path"`
	ResultRetentionDays int    `yaml:"result_retention_days" json:"result_retention_days"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	Directory  string `yaml:"directory" json:"directory"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
}

// DefaultSettings returns the settings written on first run.
func DefaultSettings() Settings {
	return Settings{
		Proxy: ProxyConfig{
			Listen:          fmt.Sprintf("127.0.0.1:%d", DefaultListenPort),
			Upstream:        DefaultUpstream,
			ProtocolVersion: ProtocolVersion,
			CommandPrefix:   "/",
			TagPrefix:       "§8[§dJagProx§8] §r",
			MOTD:            "JagProx",
		},
		Commands: map[string]string{
			"statcheck": "sc",
			"status":    "status",
		},
		Aliases: map[string]string{},
		QueueStats: map[string]bool{
			"bedwars": true,
			"skywars": true,
			"duels":   true,
		},
		Nicknames:    map[string]string{},
		TabAlerts:    []string{},
		SuperFriends: map[string][]string{},
		AutoGG: AutoGGConfig{
			Enabled: false,
			Message: "gg",
			Delay:   1500,
		},
		Alerts: AlertConfig{
			Sound: "random.orb",
		},
		Directory: DirectoryConfig{
			MojangURL:         "https://api.mojang.com",
			HypixelURL:        "https://api.hypixel.net/v2",
			AvatarURL:         "https://crafatar.com/avatars",
			SessionURL:        "https://sessionserver.mojang.com",
			LinkURL:           "https://jagprox.jaghack.com/link",
			TimeoutSec:        10,
			RequestsPerSecond: 2,
			CacheTTLMinutes:   5,
		},
		Presence: PresenceConfig{
			Enabled:      false,
			BrokerURL:    "localhost",
			Port:         1883,
			TopicPrefix:  "jagprox",
			HeartbeatSec: 60,
		},
		Admin: AdminConfig{
			Enabled:      true,
			Listen:       fmt.Sprintf("127.0.0.1:%d", DefaultAdminPort),
			RateLimitRPS: 20,
		},
		Storage: StorageConfig{
			DatabasePath:        filepath.Join(DefaultConfigDir, "jagprox.db"),
			ResultRetentionDays: 90,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Directory:  "logs",
			MaxBackups: 7,
		},
	}
}

// DefaultConfig returns a store holding the default settings.
func DefaultConfig() *Config {
	return &Config{Settings: DefaultSettings()}
}

// Load reads configuration from config.yml in configDir, creating it with
// defaults when missing.
func Load(configDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.path = filepath.Join(configDir, DefaultConfigFile)

	settings, err := readSettings(cfg.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Info().Str("path", cfg.path).Msg("config file not found, creating default")
			cfg.created = true
			if saveErr := cfg.Save(); saveErr != nil {
				return nil, fmt.Errorf("failed to save default config: %w", saveErr)
			}
			return cfg, nil
		}
		return nil, err
	}
	cfg.Settings = settings

	log.Info().Str("path", cfg.path).Msg("configuration loaded")

	// Re-save so the file always lists every option.
	if saveErr := cfg.Save(); saveErr != nil {
		log.Warn().Err(saveErr).Msg("failed to re-save config with updated defaults")
	}

	return cfg, nil
}

// readSettings parses path on top of the defaults.
func readSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	settings := DefaultSettings()
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	settings.normalize()
	return settings, nil
}

// normalize replaces nil collections so mutators never hit a nil map.
func (s *Settings) normalize() {
	if s.Commands == nil {
		s.Commands = map[string]string{}
	}
	if s.Aliases == nil {
		s.Aliases = map[string]string{}
	}
	if s.QueueStats == nil {
		s.QueueStats = map[string]bool{}
	}
	if s.Nicknames == nil {
		s.Nicknames = map[string]string{}
	}
	if s.TabAlerts == nil {
		s.TabAlerts = []string{}
	}
	if s.SuperFriends == nil {
		s.SuperFriends = map[string][]string{}
	}
}

// Save writes the current settings to disk.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.writeLocked(c.Settings)
}

func (c *Config) writeLocked(s Settings) error {
	if c.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(&s)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Debug().Str("path", c.path).Msg("configuration saved")
	return nil
}

// Update applies mutate to the settings currently on disk, writes them back
// and swaps them in. Edits made to the file by hand since the last load are
// preserved.
func (c *Config) Update(mutate func(*Settings)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fresh, err := readSettings(c.path)
	if err != nil {
		if c.path != "" && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		fresh = c.Settings.Clone()
	}

	mutate(&fresh)
	fresh.normalize()

	if err := c.writeLocked(fresh); err != nil {
		return err
	}

	for _, o := range c.overrides {
		o(&fresh)
	}
	c.Settings = fresh
	return nil
}

// Reload re-reads the file, keeping runtime overrides.
func (c *Config) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fresh, err := readSettings(c.path)
	if err != nil {
		return err
	}
	for _, o := range c.overrides {
		o(&fresh)
	}
	c.Settings = fresh
	log.Info().Str("path", c.path).Msg("configuration reloaded")
	return nil
}

// Override applies fn now and after every reload or update without
// persisting it. Used for command-line flags.
func (c *Config) Override(fn func(*Settings)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overrides = append(c.overrides, fn)
	fn(&c.Settings)
}

// Path returns the config file path.
func (c *Config) Path() string {
	return c.path
}

// IsFirstRun reports whether Load had to create the file.
func (c *Config) IsFirstRun() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.created
}

// Snapshot returns a deep copy of the current settings.
func (c *Config) Snapshot() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Settings.Clone()
}

// Clone deep-copies the settings.
func (s Settings) Clone() Settings {
	out := s
	out.Commands = cloneMap(s.Commands)
	out.Aliases = cloneMap(s.Aliases)
	out.QueueStats = cloneMap(s.QueueStats)
	out.Nicknames = cloneMap(s.Nicknames)
	out.TabAlerts = slices.Clone(s.TabAlerts)
	out.SuperFriends = make(map[string][]string, len(s.SuperFriends))
	for k, v := range s.SuperFriends {
		out.SuperFriends[k] = slices.Clone(v)
	}
	out.Admin.AllowedOrigins = slices.Clone(s.Admin.AllowedOrigins)
	return out
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// GetProxy returns a copy of the proxy section.
func (c *Config) GetProxy() ProxyConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Proxy
}

// GetAutoGG returns a copy of the auto_gg section.
func (c *Config) GetAutoGG() AutoGGConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.AutoGG
}

// GetAlerts returns a copy of the alerts section.
func (c *Config) GetAlerts() AlertConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Alerts
}

// GetDirectory returns a copy of the directory section.
func (c *Config) GetDirectory() DirectoryConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Directory
}

// GetPresence returns a copy of the presence section.
func (c *Config) GetPresence() PresenceConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Presence
}

// GetAdmin returns a copy of the admin section.
func (c *Config) GetAdmin() AdminConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a := c.Admin
	a.AllowedOrigins = slices.Clone(a.AllowedOrigins)
	return a
}

// GetStorage returns a copy of the storage section.
func (c *Config) GetStorage() StorageConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Storage
}

// GetLogging returns a copy of the logging section.
func (c *Config) GetLogging() LoggingConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Logging
}

// Alias returns the configured expansion for text, matching keys
// case-insensitively.
func (c *Config) Alias(text string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if v, ok := c.Aliases[text]; ok {
		return v, true
	}
	for k, v := range c.Aliases {
		if strings.EqualFold(k, text) {
			return v, true
		}
	}
	return "", false
}

// CanonicalCommand maps an operator-chosen command name back to the
// built-in name it renames. Unrenamed names come back unchanged.
func (c *Config) CanonicalCommand(name string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for canonical, alias := range c.Commands {
		if alias == name {
			return canonical
		}
	}
	return name
}

// CommandName returns the name a built-in command is invoked by.
func (c *Config) CommandName(canonical string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if alias := c.Commands[canonical]; alias != "" {
		return alias
	}
	return canonical
}

// QueueStatsEnabled reports whether roster stats run for a game key.
func (c *Config) QueueStatsEnabled(gameKey string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.QueueStats[gameKey]
}

// GetNicknames returns a copy of the real-name to nickname map.
func (c *Config) GetNicknames() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneMap(c.Nicknames)
}

// GetTabAlerts returns a copy of the watch list.
func (c *Config) GetTabAlerts() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.TabAlerts)
}

// GetSuperFriends returns a copy of the tracked-friends map.
func (c *Config) GetSuperFriends() map[string][]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string][]string, len(c.SuperFriends))
	for k, v := range c.SuperFriends {
		out[k] = slices.Clone(v)
	}
	return out
}
