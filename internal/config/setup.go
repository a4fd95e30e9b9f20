package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// RunSetupWizard guides the user through first-time configuration.
func RunSetupWizard(cfg *Config, secrets Secrets) error {
	return runSetupWizard(cfg, secrets, bufio.NewReader(os.Stdin), os.Stdout)
}

func runSetupWizard(cfg *Config, secrets Secrets, reader *bufio.Reader, out io.Writer) error {
	fmt.Fprintln(out, "╔══════════════════════════════════════════════╗")
	fmt.Fprintln(out, "║          JagProx - First Run Setup           ║")
	fmt.Fprintln(out, "╚══════════════════════════════════════════════╝")
	fmt.Fprintln(out)

	s := cfg.Snapshot()

	fmt.Fprintln(out, "── Relay ──")
	s.Proxy.Listen = promptString(reader, out, "Listen address (point your client here)", s.Proxy.Listen)
	s.Proxy.Upstream = promptString(reader, out, "Upstream server", s.Proxy.Upstream)
	s.Proxy.TagPrefix = promptString(reader, out, "Chat tag prefix", s.Proxy.TagPrefix)

	fmt.Fprintln(out)
	fmt.Fprintln(out, "── Features ──")
	s.AutoGG.Enabled = promptBool(reader, out, "Send gg automatically after games", s.AutoGG.Enabled)
	if s.AutoGG.Enabled {
		s.AutoGG.Message = promptString(reader, out, "gg message", s.AutoGG.Message)
		s.AutoGG.Delay = promptInt(reader, out, "Delay before sending (ms)", s.AutoGG.Delay)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "── MQTT Presence ──")
	s.Presence.Enabled = promptBool(reader, out, "Publish presence over MQTT", s.Presence.Enabled)
	if s.Presence.Enabled {
		s.Presence.BrokerURL = promptString(reader, out, "Broker host", s.Presence.BrokerURL)
		s.Presence.Port = promptInt(reader, out, "Broker port", s.Presence.Port)
	}

	if err := cfg.Update(func(dst *Settings) { *dst = s }); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	result := Validate(cfg, secrets)
	if !result.IsValid() {
		fmt.Fprintln(out, "\n⚠ Configuration has errors:")
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  - [%s] %s\n", e.Field, e.Message)
		}
		retry := promptString(reader, out, "Would you like to try again? (yes/no)", "yes")
		if strings.ToLower(retry) == "yes" {
			return runSetupWizard(cfg, secrets, reader, out)
		}
		return fmt.Errorf("configuration validation failed")
	}

	for _, w := range result.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "✓ Configuration saved to", cfg.Path())
	fmt.Fprintln(out)
	return nil
}

func promptString(reader *bufio.Reader, out io.Writer, prompt string, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "  %s [%s]: ", prompt, defaultVal)
	} else {
		fmt.Fprintf(out, "  %s: ", prompt)
	}

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func promptInt(reader *bufio.Reader, out io.Writer, prompt string, defaultVal int) int {
	fmt.Fprintf(out, "  %s [%d]: ", prompt, defaultVal)

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}

	val, err := strconv.Atoi(input)
	if err != nil {
		fmt.Fprintf(out, "    Invalid number, using default: %d\n", defaultVal)
		return defaultVal
	}
	return val
}

func promptBool(reader *bufio.Reader, out io.Writer, prompt string, defaultVal bool) bool {
	defaultStr := "no"
	if defaultVal {
		defaultStr = "yes"
	}

	fmt.Fprintf(out, "  %s [%s]: ", prompt, defaultStr)

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(strings.ToLower(input))

	if input == "" {
		return defaultVal
	}

	return input == "yes" || input == "y" || input == "true" || input == "1"
}
