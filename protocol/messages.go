// Package protocol defines the JSON messages exchanged between clients and
// the server. Messages are flat structs discriminated by a "type" field; only
// the fields relevant to a given type are populated.
package protocol

import "github.com/ninelife/gameserver/game/engine"

// Client -> server message types.
const (
	ClientCreateRoom   = "create_room"
	ClientJoinRoom     = "join_room"
	ClientLeaveRoom    = "leave_room"
	ClientStartGame    = "start_game"
	ClientSpinRoulette = "spin_roulette"
	ClientChoosePath   = "choose_path"
	ClientChooseAction = "choose_action"
	ClientChatMessage  = "chat_message"
)

// Server -> client message types.
const (
	ServerRoomCreated    = "room_created"
	ServerRoomJoined     = "room_joined"
	ServerPlayerJoined   = "player_joined"
	ServerPlayerLeft     = "player_left"
	ServerRoomState      = "room_state"
	ServerGameStarted    = "game_started"
	ServerGameSync       = "game_sync"
	ServerRouletteResult = "roulette_result"
	ServerPlayerMoved    = "player_moved"
	ServerChoiceRequired = "choice_required"
	ServerTurnChanged    = "turn_changed"
	ServerGameEnded      = "game_ended"
	ServerChatBroadcast  = "chat_broadcast"
	ServerError          = "error"
)

// Stable error codes carried by error messages. Protocol errors go to the
// offending client only and never affect the rest of the room.
const (
	CodeInvalidFirstMessage = "INVALID_FIRST_MESSAGE"
	CodeUnknownMessage      = "UNKNOWN_MESSAGE"
	CodeJoinFailed          = "JOIN_FAILED"
	CodeRoomNotFound        = "ROOM_NOT_FOUND"
	CodeRoomFull            = "ROOM_FULL"
	CodeGameError           = "GAME_ERROR"
	CodeNotYourTurn         = "NOT_YOUR_TURN"
	CodeWrongPhase          = "WRONG_PHASE"
)

// ClientMessage is one inbound intent from a client.
type ClientMessage struct {
	Type       string `json:"type"`
	PlayerName string `json:"player_name,omitempty"`
	MapID      string `json:"map_id,omitempty"`
	RoomID     string `json:"room_id,omitempty"`
	PathIndex  int    `json:"path_index,omitempty"`
	ActionID   string `json:"action_id,omitempty"`
	Text       string `json:"text,omitempty"`
}

// PlayerInfo is the lobby view of one player.
type PlayerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ServerMessage is one outbound notification. Within a room, messages are
// broadcast in a single total order; game_sync is always safe to apply as a
// full-state overwrite.
type ServerMessage struct {
	Type string `json:"type"`

	RoomID    string `json:"room_id,omitempty"`
	InviteURL string `json:"invite_url,omitempty"`
	PlayerID  string `json:"player_id,omitempty"`

	PlayerName string       `json:"player_name,omitempty"`
	Players    []PlayerInfo `json:"players,omitempty"`
	Status     string       `json:"status,omitempty"`
	HostID     string       `json:"host_id,omitempty"`

	TurnOrder    []string             `json:"turn_order,omitempty"`
	Board        *engine.Board        `json:"board,omitempty"`
	GamePlayers  []engine.PlayerState `json:"game_players,omitempty"`
	Careers      []engine.Career      `json:"careers,omitempty"`
	Houses       []engine.House       `json:"houses,omitempty"`
	CurrentTurn  int                  `json:"current_turn"`
	Phase        engine.TurnPhase     `json:"phase,omitempty"`
	Value        int                  `json:"value,omitempty"`
	TilePosition int                  `json:"position,omitempty"`
	Choices      []engine.Choice      `json:"choices,omitempty"`
	Rankings     []engine.Ranking     `json:"rankings,omitempty"`

	Text    string `json:"text,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Error builds a typed error notification.
func Error(code, message string) ServerMessage {
	return ServerMessage{Type: ServerError, Code: code, Message: message}
}
