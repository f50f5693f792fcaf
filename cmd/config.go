package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/quantum-chronometer/qchrono/sim/peer"
	"github.com/quantum-chronometer/qchrono/sim/session"
	"github.com/quantum-chronometer/qchrono/sim/slots"
	"github.com/quantum-chronometer/qchrono/sim/trace"
)

// RunConfig represents the full qchrono.yaml structure.
// All sections must be listed to satisfy KnownFields(true) strict parsing.
type RunConfig struct {
	Seed     int64       `yaml:"seed"` // 0 = derive from wall clock
	LogLevel string      `yaml:"log_level"`
	Tick     TickConfig  `yaml:"tick"`
	Peer     PeerConfig  `yaml:"peer"`
	Feed     FeedConfig  `yaml:"feed"`
	Slots    SlotsConfig `yaml:"slots"`
	Trace    TraceConfig `yaml:"trace"`
}

// TickConfig controls the session cadence.
type TickConfig struct {
	Interval      time.Duration `yaml:"interval"`
	DT            float64       `yaml:"dt"`
	ObserveWindow time.Duration `yaml:"observe_window"`
	Observe       bool          `yaml:"observe"` // start with continuous observation on
}

// PeerConfig controls UDP distortion sharing.
type PeerConfig struct {
	Enabled          bool    `yaml:"enabled"`
	Port             int     `yaml:"port"`
	ListenAddress    string  `yaml:"listen_address"`
	BroadcastAddress string  `yaml:"broadcast_address"`
	Threshold        float64 `yaml:"threshold"`
	SendQueueSize    int     `yaml:"send_queue_size"`
}

// FeedConfig controls the websocket/HTTP board feed.
type FeedConfig struct {
	Listen string `yaml:"listen"` // "" disables the feed
}

// SlotsConfig controls the save slot database.
type SlotsConfig struct {
	Path     string `yaml:"path"`
	Restore  string `yaml:"restore"`
	Autosave string `yaml:"autosave"`
}

// TraceConfig controls the in-memory session trace.
type TraceConfig struct {
	Level    string `yaml:"level"`    // none, commands or ticks
	Capacity int    `yaml:"capacity"` // records kept per kind; 0 = default
}

// DefaultRunConfig returns the settings used when no config file is given.
func DefaultRunConfig() RunConfig {
	sc := session.DefaultConfig()
	pc := peer.DefaultConfig()
	return RunConfig{
		LogLevel: "info",
		Tick: TickConfig{
			Interval:      sc.Interval,
			DT:            sc.DT,
			ObserveWindow: sc.ObserveWindow,
		},
		Peer: PeerConfig{
			Enabled:          true,
			Port:             pc.Port,
			ListenAddress:    pc.ListenAddress,
			BroadcastAddress: pc.BroadcastAddress,
			Threshold:        pc.Threshold,
			SendQueueSize:    pc.SendQueueSize,
		},
		Feed:  FeedConfig{Listen: "127.0.0.1:8055"},
		Slots: SlotsConfig{Path: slots.DefaultPath},
		Trace: TraceConfig{Level: string(trace.TraceLevelNone)},
	}
}

// LoadRunConfig overlays the YAML file at path onto base. Keys absent from
// the file keep their base values; unknown keys are errors.
func LoadRunConfig(path string, base RunConfig) (RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := base
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return base, nil
		}
		return base, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every section.
func (c RunConfig) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if err := c.SessionConfig().Validate(); err != nil {
		return err
	}
	if c.Peer.Enabled {
		if err := c.PeerServiceConfig().Validate(); err != nil {
			return err
		}
	}
	if err := c.SessionTraceConfig().Validate(); err != nil {
		return err
	}
	if c.Slots.Path == "" && (c.Slots.Restore != "" || c.Slots.Autosave != "") {
		return fmt.Errorf("slots path must be set to restore or autosave")
	}
	return nil
}

// SessionConfig converts the tick section.
func (c RunConfig) SessionConfig() session.Config {
	return session.Config{
		Interval:      c.Tick.Interval,
		DT:            c.Tick.DT,
		ObserveWindow: c.Tick.ObserveWindow,
	}
}

// PeerServiceConfig converts the peer section.
func (c RunConfig) PeerServiceConfig() *peer.Config {
	pc := peer.DefaultConfig()
	pc.Port = c.Peer.Port
	pc.ListenAddress = c.Peer.ListenAddress
	pc.BroadcastAddress = c.Peer.BroadcastAddress
	pc.Threshold = c.Peer.Threshold
	pc.SendQueueSize = c.Peer.SendQueueSize
	return pc
}

// SessionTraceConfig converts the trace section.
func (c RunConfig) SessionTraceConfig() trace.TraceConfig {
	return trace.TraceConfig{Level: trace.TraceLevel(c.Trace.Level), Capacity: c.Trace.Capacity}
}

// usesSlots reports whether the run needs the slot database.
func (c RunConfig) usesSlots() bool {
	return c.Slots.Restore != "" || c.Slots.Autosave != ""
}
