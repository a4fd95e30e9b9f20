package config

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/energizer-project/jagprox/internal/protocol"
)

func TestLoadCreatesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.IsFirstRun() {
		t.Errorf("IsFirstRun = false, want true")
	}
	if _, err := os.Stat(filepath.Join(dir, DefaultConfigFile)); err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if got := cfg.GetProxy().Upstream; got != DefaultUpstream {
		t.Errorf("upstream = %q, want %q", got, DefaultUpstream)
	}

	again, err := Load(dir)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if again.IsFirstRun() {
		t.Errorf("second Load reported first run")
	}
}

func TestLoadOverlaysPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFile)
	partial := "auto_gg:\n  enabled: true\n  message: gf\n"
	if err := os.WriteFile(path, []byte(partial), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	gg := cfg.GetAutoGG()
	if !gg.Enabled || gg.Message != "gf" {
		t.Errorf("auto_gg = %+v", gg)
	}
	if gg.Delay != 1500 {
		t.Errorf("delay = %d, want default 1500", gg.Delay)
	}
	if cfg.CommandName("statcheck") != "sc" {
		t.Errorf("default commands lost")
	}
}

func TestUpdateRereadsBeforeWrite(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Simulate an edit from the admin panel or by hand.
	var onDisk Settings
	data, err := os.ReadFile(cfg.Path())
	if err != nil {
		t.Fatal(err)
	}
	if err := yaml.Unmarshal(data, &onDisk); err != nil {
		t.Fatal(err)
	}
	onDisk.Aliases = map[string]string{"/gg": "/achat gg"}
	data, err = yaml.Marshal(&onDisk)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.Path(), data, 0644); err != nil {
		t.Fatal(err)
	}

	err = cfg.Update(func(s *Settings) {
		s.TabAlerts = append(s.TabAlerts, "Technoblade")
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if v, ok := cfg.Alias("/gg"); !ok || v != "/achat gg" {
		t.Errorf("external alias lost: %q %v", v, ok)
	}
	if got := cfg.GetTabAlerts(); len(got) != 1 || got[0] != "Technoblade" {
		t.Errorf("tab alerts = %v", got)
	}

	reloaded, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := reloaded.Alias("/gg"); !ok {
		t.Errorf("alias not persisted")
	}
}

func TestOverrideSurvivesUpdate(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	cfg.Override(func(s *Settings) { s.Proxy.Upstream = "localhost:25566" })

	if err := cfg.Update(func(s *Settings) { s.AutoGG.Enabled = true }); err != nil {
		t.Fatal(err)
	}
	if got := cfg.GetProxy().Upstream; got != "localhost:25566" {
		t.Errorf("override lost: %q", got)
	}

	data, err := os.ReadFile(cfg.Path())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "localhost:25566") {
		t.Errorf("override was persisted")
	}
}

func TestAliasCaseInsensitive(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Aliases["/BW"] = "/play bedwars_eight_one"

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"/BW", "/play bedwars_eight_one", true},
		{"/bw", "/play bedwars_eight_one", true},
		{"/Bw", "/play bedwars_eight_one", true},
		{"/bw2", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := cfg.Alias(tt.in)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Alias(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestCommandRenameTable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Commands["goal"] = "target"

	if got := cfg.CanonicalCommand("sc"); got != "statcheck" {
		t.Errorf("CanonicalCommand(sc) = %q", got)
	}
	if got := cfg.CanonicalCommand("target"); got != "goal" {
		t.Errorf("CanonicalCommand(target) = %q", got)
	}
	if got := cfg.CanonicalCommand("rq"); got != "rq" {
		t.Errorf("CanonicalCommand(rq) = %q", got)
	}
	if got := cfg.CommandName("nearby"); got != "nearby" {
		t.Errorf("CommandName(nearby) = %q", got)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SuperFriends["Alice"] = []string{"bedwars"}

	snap := cfg.Snapshot()
	snap.SuperFriends["Alice"][0] = "duels"
	snap.Aliases["/x"] = "/y"

	if cfg.GetSuperFriends()["Alice"][0] != "bedwars" {
		t.Errorf("snapshot shares slice with store")
	}
	if _, ok := cfg.Alias("/x"); ok {
		t.Errorf("snapshot shares map with store")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Settings)
		wantField string
	}{
		{"bad listen", func(s *Settings) { s.Proxy.Listen = "nope" }, "proxy.listen"},
		{"missing upstream host", func(s *Settings) { s.Proxy.Upstream = ":25565" }, "proxy.upstream"},
		{"long prefix", func(s *Settings) { s.Proxy.CommandPrefix = "//" }, "proxy.command_prefix"},
		{"negative delay", func(s *Settings) { s.AutoGG.Delay = -1 }, "auto_gg.delay"},
		{"empty gg", func(s *Settings) { s.AutoGG.Enabled = true; s.AutoGG.Message = " " }, "auto_gg.message"},
		{"duplicate command", func(s *Settings) { s.Commands["status"] = "sc" }, "commands."},
		{"zero rps", func(s *Settings) { s.Directory.RequestsPerSecond = 0 }, "directory.requests_per_second"},
		{"shared listen", func(s *Settings) { s.Admin.Listen = s.Proxy.Listen }, "admin.listen"},
		{"presence no broker", func(s *Settings) { s.Presence.Enabled = true; s.Presence.BrokerURL = "" }, "presence.broker_url"},
		{"long alias", func(s *Settings) { s.Aliases["/x"] = "/" + strings.Repeat("a", protocol.MaxChatLength) }, "aliases./x"},
		{"long gg", func(s *Settings) { s.AutoGG.Message = strings.Repeat("g", protocol.MaxChatLength-len("/ac ")+1) }, "auto_gg.message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg.Settings)

			result := Validate(cfg, Secrets{HypixelAPIKey: "k", AccessToken: "t"})
			if result.IsValid() {
				t.Fatalf("expected errors")
			}
			found := false
			for _, e := range result.Errors {
				if strings.HasPrefix(e.Field, tt.wantField) {
					found = true
				}
			}
			if !found {
				t.Errorf("no error for %s in %v", tt.wantField, result.Errors)
			}
		})
	}

	t.Run("chat limit boundary", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Aliases["/x"] = "/" + strings.Repeat("a", protocol.MaxChatLength-1)
		cfg.AutoGG.Message = strings.Repeat("g", protocol.MaxChatLength-len("/ac "))
		if result := ValidateSettings(cfg.Snapshot()); !result.IsValid() {
			t.Errorf("messages at the chat limit rejected: %v", result.Errors)
		}
	})

	t.Run("defaults valid", func(t *testing.T) {
		result := Validate(DefaultConfig(), Secrets{})
		if !result.IsValid() {
			t.Errorf("default config invalid: %v", result.Errors)
		}
		if len(result.Warnings) == 0 {
			t.Errorf("expected warnings for missing secrets")
		}
	})
}

func TestSetupWizardAcceptsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	// listen, upstream, tag, auto gg, presence
	input := "\nlocalhost:25566\n\n\n\n"
	if err := runSetupWizard(cfg, Secrets{}, bufio.NewReader(strings.NewReader(input)), io.Discard); err != nil {
		t.Fatalf("wizard: %v", err)
	}
	if got := cfg.GetProxy().Upstream; got != "localhost:25566" {
		t.Errorf("upstream = %q", got)
	}
}

func TestLoadSecrets(t *testing.T) {
	t.Setenv("HYPIXEL_API_KEY", "abc")
	t.Setenv("JAGPROX_PROFILE_UUID", "069a79f4-44e9-4726-a5be-fca90e38aaf5")
	t.Setenv("JAGPROX_ACCESS_TOKEN", "token")

	s, err := LoadSecrets()
	if err != nil {
		t.Fatalf("LoadSecrets: %v", err)
	}
	if s.HypixelAPIKey != "abc" || !s.OnlineMode() {
		t.Errorf("secrets = %+v", s)
	}

	t.Setenv("JAGPROX_PROFILE_UUID", "not-a-uuid")
	if _, err := LoadSecrets(); err == nil {
		t.Errorf("expected error for malformed uuid")
	}
}
