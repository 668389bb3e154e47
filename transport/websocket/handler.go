// Package websocket carries the realtime client protocol: one connection per
// player, a handshake that binds it to a room, then a stream of intents in
// and ordered broadcasts out.
package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ninelife/gameserver/game/room"
	"github.com/ninelife/gameserver/game/session"
	"github.com/ninelife/gameserver/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		// TODO: Configure this for production
		return true
	},
}

// Handler upgrades HTTP requests and runs the per-connection protocol
// against the room registry.
type Handler struct {
	registry  *session.Manager
	publicURL string
	log       zerolog.Logger
}

// NewHandler creates a websocket handler. publicURL is used to build invite
// links and may be empty.
func NewHandler(registry *session.Manager, publicURL string, log zerolog.Logger) *Handler {
	return &Handler{
		registry:  registry,
		publicURL: publicURL,
		log:       log.With().Str("component", "websocket").Logger(),
	}
}

// ServeWS handles a websocket upgrade request.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := newClient(conn, h.log)
	go client.writePump()
	go h.readPump(client)
}

// readPump consumes inbound messages. The first message must create or join
// a room; everything after is forwarded to that room's intent queue.
func (h *Handler) readPump(c *Client) {
	defer func() {
		// Disconnect counts as leaving the room.
		if playerID, r := c.identity(); r != nil {
			r.Enqueue(playerID, protocol.ClientMessage{Type: protocol.ClientLeaveRoom})
		}
		c.shutdown()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debug().Err(err).Msg("websocket read error")
			}
			return
		}

		var msg protocol.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.Send(protocol.Error(protocol.CodeUnknownMessage, "malformed message"))
			continue
		}

		playerID, bound := c.identity()
		if bound == nil {
			h.handshake(c, msg)
			continue
		}

		if msg.Type == protocol.ClientCreateRoom || msg.Type == protocol.ClientJoinRoom {
			c.Send(protocol.Error(protocol.CodeGameError, "already in a room"))
			continue
		}

		if err := bound.Enqueue(playerID, msg); err != nil {
			c.Send(protocol.Error(protocol.CodeRoomNotFound, "room no longer exists"))
			return
		}

		if msg.Type == protocol.ClientLeaveRoom {
			return
		}
	}
}

// handshake binds a fresh connection to a room.
func (h *Handler) handshake(c *Client, msg protocol.ClientMessage) {
	switch msg.Type {
	case protocol.ClientCreateRoom:
		r, playerID, err := h.registry.CreateRoom(playerName(msg), msg.MapID, c)
		if err != nil {
			c.Send(protocol.Error(protocol.CodeJoinFailed, err.Error()))
			return
		}
		c.bind(playerID, r)
		c.Send(protocol.ServerMessage{
			Type:      protocol.ServerRoomCreated,
			RoomID:    r.ID,
			PlayerID:  playerID,
			InviteURL: h.inviteURL(r.ID),
		})

	case protocol.ClientJoinRoom:
		r, playerID, err := h.registry.JoinRoom(msg.RoomID, playerName(msg), c)
		if err != nil {
			c.Send(protocol.Error(joinErrorCode(err), err.Error()))
			return
		}
		c.bind(playerID, r)
		c.Send(protocol.ServerMessage{
			Type:     protocol.ServerRoomJoined,
			RoomID:   r.ID,
			PlayerID: playerID,
		})

	default:
		c.Send(protocol.Error(protocol.CodeInvalidFirstMessage, "first message must create or join a room"))
	}
}

func (h *Handler) inviteURL(roomID string) string {
	if h.publicURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/room/%s", h.publicURL, roomID)
}

func joinErrorCode(err error) string {
	switch {
	case errors.Is(err, session.ErrRoomNotFound):
		return protocol.CodeRoomNotFound
	case errors.Is(err, room.ErrRoomFull):
		return protocol.CodeRoomFull
	default:
		return protocol.CodeJoinFailed
	}
}

func playerName(msg protocol.ClientMessage) string {
	if msg.PlayerName == "" {
		return "Player"
	}
	return msg.PlayerName
}
