// Package feed serves a detached board UI: a websocket stream of snapshots
// that also accepts board commands, plus HTTP endpoints to save and load the
// board document.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/quantum-chronometer/qchrono/sim"
	"github.com/quantum-chronometer/qchrono/sim/session"
	"github.com/quantum-chronometer/qchrono/sim/telemetry"
)

const (
	clientQueueSize = 16
	writeTimeout    = 5 * time.Second
	maxDocumentSize = 4 << 20
)

// Hub fans snapshots out to websocket clients.
type Hub struct {
	session *session.Session
	metrics *telemetry.Metrics

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// enqueue drops the message when the client is behind.
func (c *client) enqueue(msg []byte) {
	select {
	case c.send <- msg:
	default:
	}
}

// NewHub creates a hub serving sess. metrics may be nil.
func NewHub(sess *session.Session, metrics *telemetry.Metrics) *Hub {
	return &Hub{
		session: sess,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  2048,
			WriteBufferSize: 2048,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Publish implements session.Publisher. It never blocks the tick loop.
func (h *Hub) Publish(snap sim.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) == 0 {
		return
	}
	msg, err := envelope(TypeSnapshot, snap)
	if err != nil {
		logrus.Warnf("feed: %v", err)
		return
	}
	for c := range h.clients {
		c.enqueue(msg)
	}
}

// ClientCount returns the number of connected websocket clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.close()
	}
	h.clients = make(map[*client]struct{})
	h.setClientGauge()
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	h.setClientGauge()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	h.setClientGauge()
}

func (h *Hub) setClientGauge() {
	if h.metrics != nil {
		h.metrics.FeedClients.Set(float64(len(h.clients)))
	}
}

// Handler routes /ws, /state, /snapshot, /healthz and, with metrics, /metrics.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.serveWS)
	mux.HandleFunc("/state", h.serveState)
	mux.HandleFunc("/snapshot", h.serveSnapshot)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })
	if h.metrics != nil {
		mux.Handle("/metrics", h.metrics.Handler())
	}
	return mux
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Debugf("feed: upgrade: %v", err)
		return
	}
	c := &client{
		conn: conn,
		send: make(chan []byte, clientQueueSize),
		done: make(chan struct{}),
	}
	h.register(c)
	logrus.Debugf("feed: client connected from %s", r.RemoteAddr)

	if msg, err := envelope(TypeSnapshot, h.session.Chronometer().Snapshot()); err == nil {
		c.enqueue(msg)
	}

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop applies commands until the connection drops.
func (h *Hub) readLoop(c *client) {
	defer func() {
		h.unregister(c)
		c.close()
	}()
	for {
		var cmd Command
		if err := c.conn.ReadJSON(&cmd); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				logrus.Debugf("feed: read: %v", err)
			}
			return
		}
		msg, err := envelope(TypeReply, h.Apply(cmd))
		if err != nil {
			logrus.Warnf("feed: %v", err)
			continue
		}
		c.enqueue(msg)
	}
}

func (h *Hub) writeLoop(c *client) {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		}
	}
}

// serveState saves the board on GET and replaces it on PUT.
func (h *Hub) serveState(w http.ResponseWriter, r *http.Request) {
	chrono := h.session.Chronometer()
	switch r.Method {
	case http.MethodGet:
		data, err := sim.MarshalDocument(chrono.Save())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	case http.MethodPut, http.MethodPost:
		data, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentSize))
		if err != nil {
			http.Error(w, fmt.Sprintf("reading body: %v", err), http.StatusBadRequest)
			return
		}
		if err := chrono.Load(data); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, sim.ErrDecode) {
				status = http.StatusBadRequest
			}
			http.Error(w, err.Error(), status)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", "GET, PUT, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Hub) serveSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	msg, err := envelope(TypeSnapshot, h.session.Chronometer().Snapshot())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(msg)
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (h *Hub) Serve(ctx context.Context, addr string) error {
	// Websocket connections outlive any whole-request timeout.
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("feed: listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("feed server: %w", err)
	case <-ctx.Done():
		h.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("feed shutdown: %w", err)
		}
		return nil
	}
}
