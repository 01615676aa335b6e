package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"p2pchat/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Node.Port != 9000 {
		t.Errorf("Node.Port = %d, want %d", cfg.Node.Port, 9000)
	}
	if cfg.Node.SendTimeout.Duration != 3*time.Second {
		t.Errorf("Node.SendTimeout = %s, want 3s", cfg.Node.SendTimeout)
	}
	if cfg.Maintenance.Interval.Duration != 10*time.Second {
		t.Errorf("Maintenance.Interval = %s, want 10s", cfg.Maintenance.Interval)
	}
	if cfg.Maintenance.ProbeTimeout.Duration != 2*time.Second {
		t.Errorf("Maintenance.ProbeTimeout = %s, want 2s", cfg.Maintenance.ProbeTimeout)
	}
	if cfg.Wire.Framing != "legacy" {
		t.Errorf("Wire.Framing = %q, want legacy", cfg.Wire.Framing)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadFrom_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadFrom_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[node]
name = "alice"
port = 9100
send_timeout = "500ms"

[maintenance]
interval = "1m"

[wire]
framing = "length-prefixed"

[ui]
mode = "tui"
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Node.Name != "alice" || cfg.Node.Port != 9100 {
		t.Errorf("node = %+v", cfg.Node)
	}
	if cfg.Node.SendTimeout.Duration != 500*time.Millisecond {
		t.Errorf("send_timeout = %s", cfg.Node.SendTimeout)
	}
	if cfg.Node.ReadTimeout.Duration != 10*time.Second {
		t.Errorf("read_timeout lost its default: %s", cfg.Node.ReadTimeout)
	}
	if cfg.Maintenance.Interval.Duration != time.Minute {
		t.Errorf("interval = %s", cfg.Maintenance.Interval)
	}
	if cfg.Wire.Framing != "length-prefixed" || cfg.UI.Mode != ModeTUI {
		t.Errorf("wire/ui = %+v %+v", cfg.Wire, cfg.UI)
	}
}

func TestLoadFrom_BadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[node]\nsend_timeout = \"soon\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("expected a parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	want := DefaultConfig()
	want.Node.Name = "bob"
	want.Maintenance.Interval = Duration{30 * time.Second}

	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		is     error
	}{
		{"empty name", func(c *Config) { c.Node.Name = "" }, domain.ErrInvalidName},
		{"two word name", func(c *Config) { c.Node.Name = "a b" }, domain.ErrInvalidName},
		{"port too large", func(c *Config) { c.Node.Port = 70000 }, domain.ErrBadPort},
		{"negative port", func(c *Config) { c.Node.Port = -1 }, domain.ErrBadPort},
		{"zero interval", func(c *Config) { c.Maintenance.Interval = Duration{} }, nil},
		{"zero parallel", func(c *Config) { c.Maintenance.MaxParallelProbes = 0 }, nil},
		{"unknown framing", func(c *Config) { c.Wire.Framing = "json" }, nil},
		{"unknown mode", func(c *Config) { c.UI.Mode = "gui" }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if tt.is != nil && !errors.Is(err, tt.is) {
				t.Errorf("Validate() = %v, want %v", err, tt.is)
			}
		})
	}
}

func TestValidate_EphemeralPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Node.Port = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("port 0 rejected: %v", err)
	}
}

func TestHomeAndLogFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("P2PCHAT_HOME", dir)

	if Home() != dir {
		t.Errorf("Home() = %q, want %q", Home(), dir)
	}
	if Path() != filepath.Join(dir, "config.toml") {
		t.Errorf("Path() = %q", Path())
	}

	cfg := DefaultConfig()
	if cfg.LogFile() != "" {
		t.Errorf("menu mode LogFile = %q, want stderr", cfg.LogFile())
	}
	cfg.UI.Mode = ModeTUI
	if cfg.LogFile() != filepath.Join(dir, "p2pchat.log") {
		t.Errorf("tui mode LogFile = %q", cfg.LogFile())
	}
	cfg.Logging.File = "/tmp/x.log"
	if cfg.LogFile() != "/tmp/x.log" {
		t.Errorf("explicit LogFile = %q", cfg.LogFile())
	}
}
