// Package feed streams call lifecycle events to WebSocket clients such as
// an operator dashboard. Clients only receive; anything they send other than
// control frames is discarded.
package feed

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"

	"github.com/whisper/tropo-bridge/internal/metrics"
)

// Config holds tunable parameters for the feed hub.
type Config struct {
	MaxConnections    int           // hard cap on concurrent clients
	WriteTimeout      time.Duration // deadline for each outbound frame
	HeartbeatInterval time.Duration // how often to ping clients
}

// DefaultConfig returns sensible defaults for a small operator audience.
func DefaultConfig() Config {
	return Config{
		MaxConnections:    256,
		WriteTimeout:      10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
	}
}

// Hub is a registry of live feed connections.
type Hub struct {
	config Config

	mu    sync.RWMutex
	conns map[string]*Connection

	done      chan struct{}
	closeOnce sync.Once
}

// NewHub creates an empty hub. Call StartHeartbeat to begin pinging clients.
func NewHub(config Config) *Hub {
	return &Hub{
		config: config,
		conns:  make(map[string]*Connection),
		done:   make(chan struct{}),
	}
}

// ServeHTTP upgrades the request to a WebSocket and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Count() >= h.config.MaxConnections {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		log.Printf("[feed] upgrade failed: %v", err)
		return
	}

	c := &Connection{
		ID:        uuid.New().String(),
		Conn:      conn,
		CreatedAt: time.Now(),
		timeout:   h.config.WriteTimeout,
	}
	h.add(c)
	log.Printf("[feed] client connected id=%s remote=%s", c.ID, conn.RemoteAddr())

	go h.readLoop(c)
}

// readLoop answers client control frames, discards data frames, and removes
// the connection once the client goes away.
func (h *Hub) readLoop(c *Connection) {
	defer h.Remove(c.ID)

	control := c.controlHandler()
	rd := &wsutil.Reader{
		Source:         c.Conn,
		State:          ws.StateServerSide,
		CheckUTF8:      true,
		OnIntermediate: control,
	}
	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			return
		}
		if hdr.OpCode.IsControl() {
			if err := control(hdr, rd); err != nil {
				return
			}
			continue
		}
		if err := rd.Discard(); err != nil {
			return
		}
	}
}

// Broadcast sends a message to every client. Clients that fail the write are
// dropped.
func (h *Hub) Broadcast(msg []byte) {
	for _, c := range h.All() {
		if err := c.WriteMessage(msg); err != nil {
			log.Printf("[feed] write failed id=%s: %v", c.ID, err)
			h.Remove(c.ID)
		}
	}
}

// StartHeartbeat pings every client on the configured interval until Close.
func (h *Hub) StartHeartbeat() {
	if h.config.HeartbeatInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(h.config.HeartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-h.done:
				return
			case <-ticker.C:
				for _, c := range h.All() {
					if err := c.WritePing(); err != nil {
						log.Printf("[feed] heartbeat ping failed id=%s: %v", c.ID, err)
						h.Remove(c.ID)
					}
				}
			}
		}
	}()
}

// Remove unregisters and closes a connection. It reports whether the
// connection was still registered.
func (h *Hub) Remove(id string) bool {
	h.mu.Lock()
	c, ok := h.conns[id]
	if ok {
		delete(h.conns, id)
	}
	h.mu.Unlock()

	if ok {
		c.Close()
		metrics.FeedConnections.Dec()
		log.Printf("[feed] client disconnected id=%s", id)
	}
	return ok
}

// Count returns the current number of clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	n := len(h.conns)
	h.mu.RUnlock()
	return n
}

// All returns a snapshot of all current connections.
func (h *Hub) All() []*Connection {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	return conns
}

// Close stops the heartbeat and disconnects every client.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
	for _, c := range h.All() {
		h.Remove(c.ID)
	}
}

func (h *Hub) add(c *Connection) {
	h.mu.Lock()
	h.conns[c.ID] = c
	h.mu.Unlock()
	metrics.FeedConnections.Inc()
}
