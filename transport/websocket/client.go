package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ninelife/gameserver/game/room"
	"github.com/ninelife/gameserver/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024
)

// Client is one websocket connection. It implements room.Sender: outbound
// messages are queued on a buffered channel and a slow consumer is dropped
// rather than allowed to stall the room.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
	log  zerolog.Logger

	// Set once the handshake binds the connection to a room. Written by the
	// read pump and read by the room actor on the slow-consumer path, so
	// access goes through bind/identity.
	mu       sync.Mutex
	playerID string
	room     *room.Room
}

func newClient(conn *websocket.Conn, log zerolog.Logger) *Client {
	return &Client{
		conn: conn,
		send: make(chan []byte, 256),
		done: make(chan struct{}),
		log:  log,
	}
}

// Send queues a message for delivery. Never blocks: if the client's buffer
// is full the connection is torn down instead.
func (c *Client) Send(msg protocol.ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to marshal outbound message")
		return
	}

	select {
	case <-c.done:
	case c.send <- data:
	default:
		playerID, _ := c.identity()
		c.log.Warn().Str("player_id", playerID).Msg("send buffer full, dropping client")
		c.shutdown()
	}
}

// bind attaches the connection to a room after a successful handshake.
func (c *Client) bind(playerID string, r *room.Room) {
	c.mu.Lock()
	c.playerID = playerID
	c.room = r
	c.mu.Unlock()
}

// identity returns the bound player id and room, or zero values before the
// handshake completes.
func (c *Client) identity() (string, *room.Room) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID, c.room
}

// shutdown closes the connection once. The read pump notices and handles
// the room-side cleanup.
func (c *Client) shutdown() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// writePump drains the send queue to the connection and keeps it alive with
// pings. One writer goroutine per connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(data)

			// Flush queued messages into the same frame batch.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
