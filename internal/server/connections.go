package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"
)

const (
	outboxSize   = 256
	writeTimeout = 10 * time.Second
)

// frameWriter is the part of *websocket.Conn the connection manager writes through.
type frameWriter interface {
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
	CloseNow() error
}

// client owns one connection's outbox. A single writer goroutine drains it,
// so frames reach the socket in the order Send accepted them.
type client struct {
	id        string
	conn      frameWriter
	outbox    chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

type ConnectionManager struct {
	clients map[string]*client // connectionID → client
	mu      sync.RWMutex
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		clients: make(map[string]*client),
	}
}

func (cm *ConnectionManager) AddConnection(id string, conn frameWriter) {
	c := &client{
		id:     id,
		conn:   conn,
		outbox: make(chan []byte, outboxSize),
		done:   make(chan struct{}),
	}

	cm.mu.Lock()
	cm.clients[id] = c
	cm.mu.Unlock()

	go c.writePump()
}

// RemoveConnection stops the writer and forgets the connection. Undelivered
// frames are dropped.
func (cm *ConnectionManager) RemoveConnection(id string) {
	cm.mu.Lock()
	c, exists := cm.clients[id]
	delete(cm.clients, id)
	cm.mu.Unlock()

	if exists {
		c.stop()
	}
}

// Send queues msg for the connection without blocking. A connection whose
// outbox is full is closed rather than allowed to stall its room.
func (cm *ConnectionManager) Send(id string, msg ServerMessage) {
	cm.mu.RLock()
	c, exists := cm.clients[id]
	cm.mu.RUnlock()

	if !exists {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("conn", id).Str("type", msg.Type).Msg("Failed to marshal message")
		return
	}

	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.outbox <- data:
	default:
		log.Warn().Str("conn", id).Msg("Outbox full, dropping slow connection")
		go c.close(websocket.StatusPolicyViolation, "too slow")
	}
}

// Close shuts a connection down from the server side. The read loop notices
// and runs the normal disconnect path.
func (cm *ConnectionManager) Close(id string, code websocket.StatusCode, reason string) {
	cm.mu.RLock()
	c, exists := cm.clients[id]
	cm.mu.RUnlock()

	if exists {
		go c.close(code, reason)
	}
}

// CloseAll runs the close handshake with every connection. Any still waiting
// on its peer when ctx ends is dropped without a handshake.
func (cm *ConnectionManager) CloseAll(ctx context.Context, code websocket.StatusCode, reason string) error {
	cm.mu.RLock()
	clients := make([]*client, 0, len(cm.clients))
	for _, c := range cm.clients {
		clients = append(clients, c)
	}
	cm.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for _, c := range clients {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.close(code, reason)
			}()
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		for _, c := range clients {
			c.closeNow()
		}
		return ctx.Err()
	}
}

func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.clients)
}

func (c *client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.outbox:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := c.conn.Write(ctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				log.Debug().Err(err).Str("conn", c.id).Msg("Write failed")
				c.close(websocket.StatusInternalError, "write failed")
				return
			}
		}
	}
}

func (c *client) stop() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *client) close(code websocket.StatusCode, reason string) {
	c.stop()
	if err := c.conn.Close(code, reason); err != nil {
		log.Debug().Err(err).Str("conn", c.id).Msg("Close failed")
	}
}

func (c *client) closeNow() {
	c.stop()
	if err := c.conn.CloseNow(); err != nil {
		log.Debug().Err(err).Str("conn", c.id).Msg("CloseNow failed")
	}
}
