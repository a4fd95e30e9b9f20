package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/energizer-project/jagprox/internal/protocol"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s]: %s", e.Field, e.Message)
}

// ValidationResult holds the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// IsValid returns true if there are no validation errors.
func (r *ValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// AddError adds a validation error.
func (r *ValidationResult) AddError(field, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message})
}

// AddWarning adds a validation warning.
func (r *ValidationResult) AddWarning(field, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Message: message})
}

// Validate checks the settings and the environment-provided secrets.
func Validate(cfg *Config, secrets Secrets) *ValidationResult {
	result := ValidateSettings(cfg.Snapshot())
	validateSecrets(secrets, result)
	return result
}

// ValidateSettings checks a settings value without touching the
// environment. Admin edits are checked with it before they are saved.
func ValidateSettings(s Settings) *ValidationResult {
	result := &ValidationResult{}

	validateProxy(&s.Proxy, result)
	validateCommands(s.Commands, result)
	validateAliases(s.Aliases, result)
	validateAutoGG(&s.AutoGG, result)
	validateDirectory(&s.Directory, result)
	validatePresence(&s.Presence, result)
	validateAdmin(&s.Admin, s.Proxy.Listen, result)

	if strings.TrimSpace(s.Storage.DatabasePath) == "" {
		result.AddError("storage.database_path", "database path is required")
	}
	if s.Storage.ResultRetentionDays < 0 {
		result.AddError("storage.result_retention_days", "retention must not be negative")
	}

	return result
}

func validateProxy(p *ProxyConfig, result *ValidationResult) {
	validateHostPort(p.Listen, "proxy.listen", true, result)
	validateHostPort(p.Upstream, "proxy.upstream", false, result)

	if p.ProtocolVersion != ProtocolVersion {
		result.AddWarning("proxy.protocol_version",
			fmt.Sprintf("protocol %d is not supported, frames are decoded as protocol %d", p.ProtocolVersion, ProtocolVersion))
	}

	if utf8.RuneCountInString(p.CommandPrefix) != 1 {
		result.AddError("proxy.command_prefix", "command prefix must be a single character")
	}

	if strings.TrimSpace(p.TagPrefix) == "" {
		result.AddWarning("proxy.tag_prefix", "empty tag prefix, local lines will be indistinguishable from server chat")
	}
}

func validateCommands(commands map[string]string, result *ValidationResult) {
	seen := make(map[string]string, len(commands))
	for canonical, alias := range commands {
		field := "commands." + canonical
		alias = strings.ToLower(strings.TrimSpace(alias))
		if alias == "" {
			result.AddError(field, "command alias cannot be empty")
			continue
		}
		if strings.ContainsAny(alias, " \t") {
			result.AddError(field, "command alias cannot contain whitespace")
		}
		if other, ok := seen[alias]; ok {
			result.AddError(field, fmt.Sprintf("alias %q is also used by %s", alias, other))
		}
		seen[alias] = canonical
	}
}

func validateAliases(aliases map[string]string, result *ValidationResult) {
	for key, value := range aliases {
		field := "aliases." + key
		if strings.TrimSpace(value) == "" {
			result.AddError(field, "alias expansion cannot be empty")
		}
		if len(value) > protocol.MaxChatLength {
			result.AddError(field, fmt.Sprintf("alias expansion exceeds %d characters", protocol.MaxChatLength))
		}
	}
}

func validateAutoGG(a *AutoGGConfig, result *ValidationResult) {
	if a.Delay < 0 {
		result.AddError("auto_gg.delay", "delay cannot be negative")
	}
	if a.Delay > 30000 {
		result.AddWarning("auto_gg.delay", "delay over 30s, the lobby may already have closed")
	}
	if a.Enabled && strings.TrimSpace(a.Message) == "" {
		result.AddError("auto_gg.message", "message is required when auto_gg is enabled")
	}
	if len("/ac ")+len(a.Message) > protocol.MaxChatLength {
		result.AddError("auto_gg.message", fmt.Sprintf("message exceeds %d characters", protocol.MaxChatLength-len("/ac ")))
	}
}

func validateDirectory(d *DirectoryConfig, result *ValidationResult) {
	if d.TimeoutSec < 1 {
		result.AddError("directory.timeout_sec", "timeout must be at least 1 second")
	}
	if d.RequestsPerSecond <= 0 {
		result.AddError("directory.requests_per_second", "request rate must be positive")
	}
	if d.CacheTTLMinutes < 0 {
		result.AddError("directory.cache_ttl_minutes", "cache TTL cannot be negative")
	}
	for field, url := range map[string]string{
		"directory.mojang_url":  d.MojangURL,
		"directory.hypixel_url": d.HypixelURL,
		"directory.session_url": d.SessionURL,
	} {
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			result.AddError(field, fmt.Sprintf("invalid URL: %q", url))
		}
	}
}

func validatePresence(p *PresenceConfig, result *ValidationResult) {
	if !p.Enabled {
		return
	}
	if strings.TrimSpace(p.BrokerURL) == "" {
		result.AddError("presence.broker_url", "MQTT broker URL is required when enabled")
	}
	if p.Port < 1 || p.Port > 65535 {
		result.AddError("presence.port", "invalid MQTT port")
	}
	if p.HeartbeatSec < 10 {
		result.AddWarning("presence.heartbeat_sec", "heartbeat interval less than 10s may cause excessive traffic")
	}
}

func validateAdmin(a *AdminConfig, proxyListen string, result *ValidationResult) {
	if !a.Enabled {
		return
	}
	validateHostPort(a.Listen, "admin.listen", true, result)
	if a.Listen == proxyListen {
		result.AddError("admin.listen", "admin API cannot share the proxy listen address")
	}
	if a.RateLimitRPS < 1 {
		result.AddWarning("admin.rate_limit_rps",
			"rate limit is disabled (0 RPS), this may expose the API to abuse")
	}
}

func validateSecrets(s Secrets, result *ValidationResult) {
	if s.HypixelAPIKey == "" {
		result.AddWarning("env.HYPIXEL_API_KEY", "no Hypixel API key, stat lookups will fail")
	}
	if s.AccessToken == "" {
		result.AddWarning("env.JAGPROX_ACCESS_TOKEN", "no access token, the upstream must run in offline mode")
	}
}

func validateHostPort(addr, field string, allowEmptyHost bool, result *ValidationResult) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		result.AddError(field, fmt.Sprintf("invalid address %q: %v", addr, err))
		return
	}
	if host == "" && !allowEmptyHost {
		result.AddError(field, "host is required")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		result.AddError(field, fmt.Sprintf("invalid port %q", portStr))
		return
	}
	validatePort(port, field, result)
}

func validatePort(port int, field string, result *ValidationResult) {
	if port < 1 || port > 65535 {
		result.AddError(field, fmt.Sprintf("invalid port number: %d (must be 1-65535)", port))
		return
	}
	if port < 1024 {
		result.AddWarning(field,
			fmt.Sprintf("port %d is a privileged port, may require elevated permissions", port))
	}
}

// IsPortAvailable checks if a TCP address can be bound.
func IsPortAvailable(addr string) bool {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	ln.Close()
	return true
}
