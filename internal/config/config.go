// Package config loads and saves the node configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"p2pchat/internal/domain"
	"p2pchat/internal/wire"
)

// Config holds all node configuration.
type Config struct {
	Node        NodeConfig        `toml:"node"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
	Wire        WireConfig        `toml:"wire"`
	API         APIConfig         `toml:"api"`
	UI          UIConfig          `toml:"ui"`
	Logging     LoggingConfig     `toml:"logging"`
}

// NodeConfig identifies this node and bounds its network calls.
type NodeConfig struct {
	Name        string   `toml:"name"`
	Host        string   `toml:"host"` // empty = detect
	Port        int      `toml:"port"`
	SendTimeout Duration `toml:"send_timeout"`
	ReadTimeout Duration `toml:"read_timeout"`
}

// MaintenanceConfig controls the liveness loop.
type MaintenanceConfig struct {
	Interval          Duration `toml:"interval"`
	ProbeTimeout      Duration `toml:"probe_timeout"`
	MaxParallelProbes int      `toml:"max_parallel_probes"`
}

// WireConfig selects the framing. Both ends must agree.
type WireConfig struct {
	Framing string `toml:"framing"`
}

// APIConfig controls the HTTP control surface.
type APIConfig struct {
	Enabled bool   `toml:"enabled"`
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Metrics bool   `toml:"metrics"`
}

// UIConfig selects the interactive surface.
type UIConfig struct {
	Mode        string `toml:"mode"`
	NotifySound string `toml:"notify_sound"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	File  string `toml:"file"`
	Debug bool   `toml:"debug"`
}

const (
	ModeMenu = "menu"
	ModeTUI  = "tui"
)

// Duration is a time.Duration written as "10s" in TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// DefaultConfig returns the reference configuration.
func DefaultConfig() Config {
	return Config{
		Node: NodeConfig{
			Name:        "anonymous",
			Port:        9000,
			SendTimeout: Duration{3 * time.Second},
			ReadTimeout: Duration{10 * time.Second},
		},
		Maintenance: MaintenanceConfig{
			Interval:          Duration{10 * time.Second},
			ProbeTimeout:      Duration{2 * time.Second},
			MaxParallelProbes: 16,
		},
		Wire: WireConfig{
			Framing: wire.FramingLegacy,
		},
		API: APIConfig{
			Host:    "127.0.0.1",
			Port:    9180,
			Metrics: true,
		},
		UI: UIConfig{
			Mode: ModeMenu,
		},
	}
}

// Load reads config from $P2PCHAT_HOME/config.toml, falling back to defaults.
func Load() (Config, error) {
	return LoadFrom(Path())
}

// LoadFrom reads config from path. A missing file yields the defaults.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating the directory if needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// Validate reports the first setting the node cannot run with.
func (c Config) Validate() error {
	if err := domain.ValidateName(c.Node.Name); err != nil {
		return fmt.Errorf("node.name: %w", err)
	}
	if c.Node.Port < 0 || c.Node.Port > 65535 {
		return fmt.Errorf("node.port %d: %w", c.Node.Port, domain.ErrBadPort)
	}
	durations := []struct {
		key string
		d   Duration
	}{
		{"node.send_timeout", c.Node.SendTimeout},
		{"node.read_timeout", c.Node.ReadTimeout},
		{"maintenance.interval", c.Maintenance.Interval},
		{"maintenance.probe_timeout", c.Maintenance.ProbeTimeout},
	}
	for _, d := range durations {
		if d.d.Duration <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.key, d.d)
		}
	}
	if c.Maintenance.MaxParallelProbes < 1 {
		return fmt.Errorf("maintenance.max_parallel_probes must be at least 1")
	}
	if _, err := wire.NewFramer(c.Wire.Framing); err != nil {
		return fmt.Errorf("wire.framing: %w", err)
	}
	if c.API.Enabled && (c.API.Port < 0 || c.API.Port > 65535) {
		return fmt.Errorf("api.port %d: %w", c.API.Port, domain.ErrBadPort)
	}
	switch c.UI.Mode {
	case ModeMenu, ModeTUI:
	default:
		return fmt.Errorf("ui.mode %q: want %q or %q", c.UI.Mode, ModeMenu, ModeTUI)
	}
	return nil
}

// LogFile returns where logs go: the configured file, the data directory in
// TUI mode, or "" for stderr.
func (c Config) LogFile() string {
	if c.Logging.File != "" {
		return c.Logging.File
	}
	if c.UI.Mode == ModeTUI {
		return filepath.Join(Home(), "p2pchat.log")
	}
	return ""
}

// Path returns the default config file location.
func Path() string {
	return filepath.Join(Home(), "config.toml")
}

// Home returns the p2pchat data directory.
func Home() string {
	if env := os.Getenv("P2PCHAT_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".p2pchat")
}
