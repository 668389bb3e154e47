package room

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ninelife/gameserver/game/engine"
	"github.com/ninelife/gameserver/protocol"
)

var (
	ErrRoomClosed     = errors.New("room closed")
	ErrRoomFull       = errors.New("room is full")
	ErrGameInProgress = errors.New("game already started")
	ErrNotHost        = errors.New("only the host can start the game")
	ErrNotEnough      = errors.New("not enough players to start")
)

// Status is the room lifecycle state.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
)

// Sender is the outbound half of one player's connection. Implementations
// must not block; the websocket client buffers and drops slow consumers.
type Sender interface {
	Send(msg protocol.ServerMessage)
}

// Player is one connected room member.
type Player struct {
	ID     string
	Name   string
	Sender Sender
}

// intent is one queued unit of work for the room actor. Lifecycle intents
// (join) carry a reply channel so the caller learns the outcome.
type intent struct {
	playerID string
	msg      protocol.ClientMessage
	join     *Player
	reply    chan error
}

// Room serializes all access to one game. A single goroutine consumes the
// intent queue, so at most one mutation is in flight at any time; the
// snapshot is replaced wholesale on each transition and never edited in
// place. Intents for different rooms proceed fully in parallel.
type Room struct {
	ID    string
	MapID string

	log     zerolog.Logger
	engine  engine.Engine
	mapData *engine.MapData
	seed    uint64

	intents chan intent
	done    chan struct{}

	// Actor-owned state. Info() reads a copy via the actor's snapshot
	// publication; nothing outside the actor goroutine writes these.
	host       string
	players    []*Player
	status     Status
	state      *engine.GameState
	createdAt  time.Time
	lastActive time.Time

	info chan infoRequest
}

// Info is a read-only copy of the room's lobby state.
type Info struct {
	ID         string                `json:"id"`
	MapID      string                `json:"map_id"`
	HostID     string                `json:"host_id"`
	Players    []protocol.PlayerInfo `json:"players"`
	Status     Status                `json:"status"`
	MaxPlayers int                   `json:"max_players"`
	CreatedAt  time.Time             `json:"created_at"`
	LastActive time.Time             `json:"last_active"`
}

type infoRequest struct {
	reply chan Info
}

// New creates a room with its host already joined and starts the actor
// goroutine. The seed feeds the game's randomness state at start.
func New(id string, host Player, mapID string, mapData *engine.MapData, eng engine.Engine, seed uint64, log zerolog.Logger) *Room {
	r := &Room{
		ID:         id,
		MapID:      mapID,
		log:        log.With().Str("component", "room").Str("room_id", id).Logger(),
		engine:     eng,
		mapData:    mapData,
		seed:       seed,
		intents:    make(chan intent, 64),
		done:       make(chan struct{}),
		info:       make(chan infoRequest),
		host:       host.ID,
		players:    []*Player{&host},
		status:     StatusWaiting,
		createdAt:  time.Now(),
		lastActive: time.Now(),
	}
	go r.run()
	return r
}

// Join adds a player while the room is waiting. Serialized through the actor
// like every other mutation.
func (r *Room) Join(p Player) error {
	reply := make(chan error, 1)
	select {
	case r.intents <- intent{join: &p, reply: reply}:
	case <-r.done:
		return ErrRoomClosed
	}

	// The actor may shut down with this intent still queued, for example
	// when a leave that empties the room was enqueued just before us. The
	// reply channel is buffered, so a join handled right before shutdown is
	// still answered.
	select {
	case err := <-reply:
		return err
	case <-r.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrRoomClosed
		}
	}
}

// Enqueue submits a client intent for serialized processing. Intents are
// processed first-arrived-first-processed.
func (r *Room) Enqueue(playerID string, msg protocol.ClientMessage) error {
	select {
	case r.intents <- intent{playerID: playerID, msg: msg}:
		return nil
	case <-r.done:
		return ErrRoomClosed
	}
}

// Info returns a consistent copy of the room's lobby state. It never
// observes a half-applied mutation.
func (r *Room) Info() Info {
	req := infoRequest{reply: make(chan Info, 1)}
	select {
	case r.info <- req:
		return <-req.reply
	case <-r.done:
		return Info{ID: r.ID, MapID: r.MapID, Status: StatusFinished, MaxPlayers: engine.MaxPlayers}
	}
}

// Close shuts the actor down. Pending intents are discarded; the in-flight
// one completes first, so partial snapshots are never observable.
func (r *Room) Close() {
	select {
	case <-r.done:
	default:
		close(r.done)
	}
}

// Closed reports whether the actor has shut down.
func (r *Room) Closed() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// run is the actor loop: the only goroutine that touches room state.
func (r *Room) run() {
	for {
		select {
		case <-r.done:
			return
		case req := <-r.info:
			req.reply <- r.snapshotInfo()
		case it := <-r.intents:
			r.lastActive = time.Now()
			if it.join != nil {
				it.reply <- r.handleJoin(*it.join)
				continue
			}
			r.handleIntent(it)
			if len(r.players) == 0 {
				r.Close()
				return
			}
		}
	}
}

func (r *Room) snapshotInfo() Info {
	players := make([]protocol.PlayerInfo, len(r.players))
	for i, p := range r.players {
		players[i] = protocol.PlayerInfo{ID: p.ID, Name: p.Name}
	}
	return Info{
		ID:         r.ID,
		MapID:      r.MapID,
		HostID:     r.host,
		Players:    players,
		Status:     r.status,
		MaxPlayers: engine.MaxPlayers,
		CreatedAt:  r.createdAt,
		LastActive: r.lastActive,
	}
}

func (r *Room) handleJoin(p Player) error {
	if r.status != StatusWaiting {
		return ErrGameInProgress
	}
	if len(r.players) >= engine.MaxPlayers {
		return ErrRoomFull
	}

	r.players = append(r.players, &p)
	r.log.Info().Str("player_id", p.ID).Str("name", p.Name).Msg("player joined")

	r.broadcast(protocol.ServerMessage{
		Type:       protocol.ServerPlayerJoined,
		PlayerID:   p.ID,
		PlayerName: p.Name,
	})
	r.broadcast(r.roomStateMessage())
	return nil
}

func (r *Room) handleIntent(it intent) {
	p := r.playerByID(it.playerID)
	if p == nil {
		return
	}

	switch it.msg.Type {
	case protocol.ClientStartGame:
		r.handleStart(p)
	case protocol.ClientSpinRoulette:
		r.handleSpin(p)
	case protocol.ClientChoosePath:
		r.handleChoosePath(p, it.msg.PathIndex)
	case protocol.ClientChooseAction:
		r.handleChooseAction(p, it.msg.ActionID)
	case protocol.ClientChatMessage:
		r.handleChat(p, it.msg.Text)
	case protocol.ClientLeaveRoom:
		r.handleLeave(p)
	default:
		p.Sender.Send(protocol.Error(protocol.CodeUnknownMessage, "unrecognized message type"))
	}
}

func (r *Room) handleStart(p *Player) {
	if p.ID != r.host {
		p.Sender.Send(protocol.Error(protocol.CodeGameError, ErrNotHost.Error()))
		return
	}
	if r.status != StatusWaiting {
		p.Sender.Send(protocol.Error(protocol.CodeGameError, ErrGameInProgress.Error()))
		return
	}
	if len(r.players) < engine.MinPlayers {
		p.Sender.Send(protocol.Error(protocol.CodeGameError, ErrNotEnough.Error()))
		return
	}

	seeds := make([]engine.PlayerSeed, len(r.players))
	for i, pl := range r.players {
		seeds[i] = engine.PlayerSeed{ID: pl.ID, Name: pl.Name}
	}

	state, err := r.engine.Init(seeds, r.mapData, r.seed)
	if err != nil {
		p.Sender.Send(protocol.Error(protocol.CodeGameError, err.Error()))
		return
	}

	r.state = state
	r.status = StatusInProgress
	r.log.Info().Int("players", len(r.players)).Msg("game started")

	turnOrder := make([]string, len(state.Players))
	for i := range state.Players {
		turnOrder[i] = state.Players[i].ID
	}

	r.broadcast(protocol.ServerMessage{
		Type:        protocol.ServerGameStarted,
		TurnOrder:   turnOrder,
		Board:       state.Board,
		GamePlayers: state.Players,
		Careers:     state.Careers,
		Houses:      state.HousesForSale,
	})
	r.broadcast(r.gameSyncMessage())
}

func (r *Room) handleSpin(p *Player) {
	if !r.requireTurn(p, engine.PhaseWaitingForSpin) {
		return
	}

	ns, result, err := r.engine.Spin(r.state)
	if err != nil {
		p.Sender.Send(protocol.Error(protocol.CodeWrongPhase, err.Error()))
		return
	}

	moved, events, err := r.engine.Advance(ns, result.Value)
	if err != nil {
		p.Sender.Send(protocol.Error(protocol.CodeGameError, err.Error()))
		return
	}

	r.state = moved

	r.broadcast(protocol.ServerMessage{
		Type:     protocol.ServerRouletteResult,
		PlayerID: p.ID,
		Value:    result.Value,
	})
	r.broadcast(protocol.ServerMessage{
		Type:         protocol.ServerPlayerMoved,
		PlayerID:     p.ID,
		TilePosition: moved.CurrentPlayer().Position,
	})
	r.broadcastChoices(events)
	r.finishTurnIfOver()
	r.broadcast(r.gameSyncMessage())
}

func (r *Room) handleChoosePath(p *Player, pathIndex int) {
	if !r.requireTurn(p, engine.PhaseChoosingPath) {
		return
	}

	ns, events, err := r.engine.ChoosePath(r.state, pathIndex)
	if err != nil {
		p.Sender.Send(protocol.Error(protocol.CodeGameError, err.Error()))
		return
	}

	r.state = ns
	r.broadcast(protocol.ServerMessage{
		Type:         protocol.ServerPlayerMoved,
		PlayerID:     p.ID,
		TilePosition: ns.CurrentPlayer().Position,
	})
	r.broadcastChoices(events)
	r.finishTurnIfOver()
	r.broadcast(r.gameSyncMessage())
}

func (r *Room) handleChooseAction(p *Player, actionID string) {
	if !r.requireTurn(p, engine.PhaseChoosingAction) {
		return
	}

	action := r.parseAction(actionID)
	ns, events, err := r.engine.ResolveAction(r.state, action)
	if err != nil {
		p.Sender.Send(protocol.Error(protocol.CodeGameError, err.Error()))
		return
	}

	r.state = ns
	r.broadcastChoices(events)
	r.finishTurnIfOver()
	r.broadcast(r.gameSyncMessage())
}

// parseAction decodes a raw action id against the tile the current player
// stands on.
func (r *Room) parseAction(actionID string) engine.PlayerAction {
	if actionID == "repay_debt" {
		return engine.PlayerAction{Kind: engine.ActionRepayDebt}
	}

	tile := r.state.Board.Tile(r.state.CurrentPlayer().Position)
	if tile == nil {
		return engine.PlayerAction{Kind: engine.ActionSkip}
	}

	switch tile.Type {
	case engine.TileHouse:
		if actionID == "skip" {
			return engine.PlayerAction{Kind: engine.ActionSkip}
		}
		return engine.PlayerAction{Kind: engine.ActionBuyHouse, HouseID: actionID}
	case engine.TileInsurance:
		switch actionID {
		case "life":
			return engine.PlayerAction{Kind: engine.ActionBuyInsurance, Insurance: engine.InsuranceLife}
		case "auto":
			return engine.PlayerAction{Kind: engine.ActionBuyInsurance, Insurance: engine.InsuranceAuto}
		}
		return engine.PlayerAction{Kind: engine.ActionSkip}
	case engine.TileLawsuit:
		return engine.PlayerAction{Kind: engine.ActionLawsuitTarget, TargetID: actionID}
	}
	return engine.PlayerAction{Kind: engine.ActionSkip}
}

func (r *Room) handleChat(p *Player, text string) {
	if text == "" {
		return
	}
	r.broadcast(protocol.ServerMessage{
		Type:       protocol.ServerChatBroadcast,
		PlayerID:   p.ID,
		PlayerName: p.Name,
		Text:       text,
	})
}

func (r *Room) handleLeave(p *Player) {
	for i, pl := range r.players {
		if pl.ID == p.ID {
			r.players = append(r.players[:i], r.players[i+1:]...)
			break
		}
	}
	r.log.Info().Str("player_id", p.ID).Msg("player left")

	r.broadcast(protocol.ServerMessage{Type: protocol.ServerPlayerLeft, PlayerID: p.ID})

	// Host transfer: the oldest remaining member inherits the room.
	if p.ID == r.host && len(r.players) > 0 {
		r.host = r.players[0].ID
		r.broadcast(r.roomStateMessage())
	} else if len(r.players) > 0 {
		r.broadcast(r.roomStateMessage())
	}
}

// requireTurn validates actor identity and phase before any engine call, so
// an invalid intent is rejected without touching the snapshot.
func (r *Room) requireTurn(p *Player, phase engine.TurnPhase) bool {
	if r.status != StatusInProgress || r.state == nil {
		p.Sender.Send(protocol.Error(protocol.CodeGameError, "game not started"))
		return false
	}
	if r.state.CurrentPlayer().ID != p.ID {
		p.Sender.Send(protocol.Error(protocol.CodeNotYourTurn, engine.ErrNotYourTurn.Error()))
		return false
	}
	if r.state.Phase != phase {
		p.Sender.Send(protocol.Error(protocol.CodeWrongPhase,
			fmt.Sprintf("expected phase %s, room is in %s", phase, r.state.Phase)))
		return false
	}
	return true
}

// broadcastChoices relays choice_required events to the room.
func (r *Room) broadcastChoices(events []engine.GameEvent) {
	for _, ev := range events {
		if ev.Type == engine.EventChoiceRequired {
			r.broadcast(protocol.ServerMessage{
				Type:     protocol.ServerChoiceRequired,
				PlayerID: ev.PlayerID,
				Choices:  ev.Choices,
			})
		}
	}
}

// finishTurnIfOver ends the turn when the snapshot reached turn_end: either
// the game is over and rankings go out once, or the next player is announced.
func (r *Room) finishTurnIfOver() {
	if r.state.Phase != engine.PhaseTurnEnd {
		return
	}

	if r.engine.IsFinished(r.state) {
		r.status = StatusFinished
		rankings := r.engine.Rankings(r.state)
		r.log.Info().Msg("game finished")
		r.broadcast(protocol.ServerMessage{Type: protocol.ServerGameEnded, Rankings: rankings})
		return
	}

	ns, err := r.engine.EndTurn(r.state)
	if err != nil {
		r.log.Error().Err(err).Msg("end turn failed")
		return
	}
	r.state = ns
	r.broadcast(protocol.ServerMessage{
		Type:        protocol.ServerTurnChanged,
		CurrentTurn: ns.CurrentTurn,
		PlayerID:    ns.CurrentPlayer().ID,
	})
}

func (r *Room) gameSyncMessage() protocol.ServerMessage {
	return protocol.ServerMessage{
		Type:        protocol.ServerGameSync,
		GamePlayers: r.state.Players,
		CurrentTurn: r.state.CurrentTurn,
		Phase:       r.state.Phase,
	}
}

func (r *Room) roomStateMessage() protocol.ServerMessage {
	info := r.snapshotInfo()
	return protocol.ServerMessage{
		Type:    protocol.ServerRoomState,
		RoomID:  r.ID,
		HostID:  info.HostID,
		Players: info.Players,
		Status:  string(info.Status),
	}
}

func (r *Room) playerByID(id string) *Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *Room) broadcast(msg protocol.ServerMessage) {
	for _, p := range r.players {
		p.Sender.Send(msg)
	}
}
