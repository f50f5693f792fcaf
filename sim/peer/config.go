package peer

import (
	"fmt"
	"math"
	"time"
)

// DefaultPort is the UDP port instances broadcast on.
const DefaultPort = 50055

// DefaultThreshold is the minimum change in aggregate distortion that
// triggers a new broadcast.
const DefaultThreshold = 0.0001

// Config holds peer sync configuration
type Config struct {
	// Port to bind and, unless TargetPort is set, to broadcast to
	Port int

	// TargetPort overrides the destination port (0 = Port)
	TargetPort int

	// ListenAddress is the local interface to bind ("" = all)
	ListenAddress string

	// BroadcastAddress is the destination host
	BroadcastAddress string

	// Threshold gates BroadcastIfChanged
	Threshold float64

	// Buffer sizes
	SendQueueSize  int
	ReadBufferSize int

	// WriteTimeout bounds a single datagram send
	WriteTimeout time.Duration
}

// DefaultConfig returns LAN broadcast defaults
func DefaultConfig() *Config {
	return &Config{
		Port:             DefaultPort,
		ListenAddress:    "",
		BroadcastAddress: "255.255.255.255",
		Threshold:        DefaultThreshold,
		SendQueueSize:    16,
		ReadBufferSize:   1024,
		WriteTimeout:     100 * time.Millisecond,
	}
}

// LoopbackConfig returns a config bound to 127.0.0.1 for local testing
func LoopbackConfig(port, targetPort int) *Config {
	cfg := DefaultConfig()
	cfg.Port = port
	cfg.TargetPort = targetPort
	cfg.ListenAddress = "127.0.0.1"
	cfg.BroadcastAddress = "127.0.0.1"
	return cfg
}

// Validate checks ranges.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("peer port must be in [0, 65535], got %d", c.Port)
	}
	if c.TargetPort < 0 || c.TargetPort > 65535 {
		return fmt.Errorf("peer target port must be in [0, 65535], got %d", c.TargetPort)
	}
	if c.BroadcastAddress == "" {
		return fmt.Errorf("peer broadcast address must not be empty")
	}
	if math.IsNaN(c.Threshold) || math.IsInf(c.Threshold, 0) || c.Threshold < 0 {
		return fmt.Errorf("peer threshold must be a finite non-negative number, got %f", c.Threshold)
	}
	if c.SendQueueSize <= 0 {
		return fmt.Errorf("peer send queue size must be positive, got %d", c.SendQueueSize)
	}
	if c.ReadBufferSize <= 0 {
		return fmt.Errorf("peer read buffer size must be positive, got %d", c.ReadBufferSize)
	}
	return nil
}

func (c *Config) targetPort() int {
	if c.TargetPort != 0 {
		return c.TargetPort
	}
	return c.Port
}
