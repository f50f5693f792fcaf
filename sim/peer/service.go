package peer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrNetworkUnavailable wraps bind and resolve failures. The service stays
// usable in offline mode: broadcasts are dropped and the receiver never fires.
var ErrNetworkUnavailable = errors.New("peer network unavailable")

// Stats counts datagram traffic.
type Stats struct {
	Sent       uint64 // datagrams written
	SendErrors uint64 // write failures
	Dropped    uint64 // broadcasts dropped (queue full or offline)
	Received   uint64 // peer values delivered to the callback
	Discarded  uint64 // malformed or unrecognized datagrams
	Self       uint64 // own broadcasts looped back
}

// Service shares the local aggregate distortion with other instances over
// UDP and reports theirs through a callback.
type Service struct {
	config       *Config
	origin       string
	onDistortion func(float64)

	mu     sync.Mutex // serializes Start/Stop
	conn   net.PacketConn
	target *net.UDPAddr
	stopCh chan struct{}
	wg     sync.WaitGroup

	running  atomic.Bool
	sendCh   chan float64 // bounded outbound queue, lives as long as the Service
	lastSent atomic.Uint64

	sent, sendErrors, dropped   atomic.Uint64
	received, discarded, selfRx atomic.Uint64
}

// NewService creates a stopped service. onDistortion is invoked from the
// receiver goroutine for every accepted peer value; it may be nil. Unset
// buffer sizes take their DefaultConfig values; cfg itself is not modified.
func NewService(cfg *Config, onDistortion func(float64)) *Service {
	defaults := DefaultConfig()
	if cfg == nil {
		cfg = defaults
	}
	c := *cfg
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = defaults.SendQueueSize
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = defaults.ReadBufferSize
	}
	return &Service{
		config:       &c,
		origin:       uuid.NewString(),
		onDistortion: onDistortion,
		sendCh:       make(chan float64, c.SendQueueSize),
	}
}

// Name identifies the service in logs.
func (s *Service) Name() string {
	return "peer"
}

// Origin is the instance tag attached to outgoing messages.
func (s *Service) Origin() string {
	return s.origin
}

// Start binds the socket and launches the receiver and sender goroutines.
// Calling Start on a running service is a no-op. A bind failure leaves the
// service offline and returns an error wrapping ErrNetworkUnavailable.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return nil
	}
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid peer config: %w", err)
	}

	target, err := net.ResolveUDPAddr("udp4",
		net.JoinHostPort(s.config.BroadcastAddress, strconv.Itoa(s.config.targetPort())))
	if err != nil {
		logrus.Warnf("peer: resolving broadcast address: %v; continuing offline", err)
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}

	lc := net.ListenConfig{Control: control}
	addr := net.JoinHostPort(s.config.ListenAddress, strconv.Itoa(s.config.Port))
	conn, err := lc.ListenPacket(context.Background(), "udp4", addr)
	if err != nil {
		logrus.Warnf("peer: failed to bind %s: %v; continuing offline", addr, err)
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}

	s.conn = conn
	s.target = target
	s.stopCh = make(chan struct{})
	s.running.Store(true)

	s.wg.Add(2)
	go s.readLoop(conn, s.stopCh)
	go s.writeLoop(conn, target, s.stopCh)

	logrus.Infof("peer: listening on %s, broadcasting to %s", conn.LocalAddr(), target)
	return nil
}

// Stop closes the socket, which unblocks the receiver, and waits for both
// goroutines. Safe to call repeatedly and from any goroutine.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	close(s.stopCh)
	err := s.conn.Close()
	s.wg.Wait()
	s.conn = nil

	logrus.Info("peer: stopped")
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("closing peer socket: %w", err)
	}
	return nil
}

// IsRunning reports whether the socket is bound.
func (s *Service) IsRunning() bool {
	return s.running.Load()
}

// LocalAddr returns the bound address, or nil when offline.
func (s *Service) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Broadcast queues value for sending without blocking. Returns false if the
// service is offline or the queue is full; the value is then dropped.
func (s *Service) Broadcast(value float64) bool {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		s.dropped.Add(1)
		return false
	}
	if !s.running.Load() {
		s.dropped.Add(1)
		return false
	}
	select {
	case s.sendCh <- value:
		return true
	default:
		s.dropped.Add(1)
		logrus.Debugf("peer: send queue full, dropping %f", value)
		return false
	}
}

// BroadcastIfChanged broadcasts value only when it differs from the last
// queued broadcast (initially 0) by more than the configured threshold.
// Intended for the single tick goroutine.
func (s *Service) BroadcastIfChanged(value float64) bool {
	last := math.Float64frombits(s.lastSent.Load())
	if math.Abs(value-last) <= s.config.Threshold {
		return false
	}
	if !s.Broadcast(value) {
		return false
	}
	s.lastSent.Store(math.Float64bits(value))
	return true
}

// Stats returns a copy of the traffic counters.
func (s *Service) Stats() Stats {
	return Stats{
		Sent:       s.sent.Load(),
		SendErrors: s.sendErrors.Load(),
		Dropped:    s.dropped.Load(),
		Received:   s.received.Load(),
		Discarded:  s.discarded.Load(),
		Self:       s.selfRx.Load(),
	}
}

// readLoop blocks on the socket until Stop closes it.
func (s *Service) readLoop(conn net.PacketConn, stopCh <-chan struct{}) {
	defer s.wg.Done()

	buf := make([]byte, s.config.ReadBufferSize)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-stopCh:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logrus.Warnf("peer: receive error: %v", err)
			continue
		}
		s.handleDatagram(buf[:n], addr)
	}
}

func (s *Service) handleDatagram(data []byte, from net.Addr) {
	msg, err := DecodeMessage(data)
	if err != nil {
		s.discarded.Add(1)
		logrus.Debugf("peer: discarding datagram from %v: %v", from, err)
		return
	}
	if msg.Origin != "" && msg.Origin == s.origin {
		s.selfRx.Add(1)
		return
	}
	s.received.Add(1)
	if s.onDistortion != nil {
		s.onDistortion(msg.Value)
	}
}

// writeLoop drains the outbound queue.
func (s *Service) writeLoop(conn net.PacketConn, target *net.UDPAddr, stopCh <-chan struct{}) {
	defer s.wg.Done()

	for {
		select {
		case <-stopCh:
			return
		case value := <-s.sendCh:
			payload, err := NewDistortionMessage(value, s.origin).Encode()
			if err != nil {
				s.sendErrors.Add(1)
				logrus.Warnf("peer: encoding broadcast: %v", err)
				continue
			}
			if s.config.WriteTimeout > 0 {
				_ = conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
			}
			if _, err := conn.WriteTo(payload, target); err != nil {
				s.sendErrors.Add(1)
				logrus.Warnf("peer: broadcast failed: %v", err)
				continue
			}
			s.sent.Add(1)
		}
	}
}
