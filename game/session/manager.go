// Package session tracks active rooms and routes intents to them by room id.
package session

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ninelife/gameserver/game/engine"
	"github.com/ninelife/gameserver/game/mapdata"
	"github.com/ninelife/gameserver/game/room"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrTooManyRooms = errors.New("room limit reached")
)

const (
	roomIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	roomIDLength   = 6
)

// Manager is the room registry: it allocates room ids, routes lookups, and
// sweeps rooms that finished or went idle. Lookups take a read lock, so
// traffic for different rooms never serializes here.
type Manager struct {
	mu       sync.RWMutex
	rooms    map[string]*room.Room
	maps     *mapdata.Manager
	maxRooms int
	log      zerolog.Logger

	// baseLog is handed to rooms so they tag their own component field.
	baseLog zerolog.Logger
}

// NewManager creates a registry backed by the given map catalog. maxRooms
// caps concurrent rooms; zero means unlimited.
func NewManager(maps *mapdata.Manager, maxRooms int, log zerolog.Logger) *Manager {
	return &Manager{
		rooms:    make(map[string]*room.Room),
		maps:     maps,
		maxRooms: maxRooms,
		log:      log.With().Str("component", "session").Logger(),
		baseLog:  log,
	}
}

// CreateRoom allocates a fresh room with the caller as host and returns the
// room together with the host's player id.
func (m *Manager) CreateRoom(hostName, mapID string, sender room.Sender) (*room.Room, string, error) {
	if mapID == "" {
		mapID = "classic"
	}
	md, err := m.maps.Load(mapID)
	if err != nil {
		return nil, "", err
	}

	playerID := uuid.New().String()
	host := room.Player{ID: playerID, Name: hostName, Sender: sender}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxRooms > 0 && len(m.rooms) >= m.maxRooms {
		return nil, "", ErrTooManyRooms
	}

	id, err := m.generateRoomID()
	if err != nil {
		return nil, "", err
	}

	r := room.New(id, host, mapID, md, engine.NewEngine(), randomSeed(), m.baseLog)
	m.rooms[id] = r
	m.log.Info().Str("room_id", id).Str("map_id", mapID).Msg("room created")
	return r, playerID, nil
}

// JoinRoom adds a player to an existing room and returns the room plus the
// joiner's player id.
func (m *Manager) JoinRoom(roomID, name string, sender room.Sender) (*room.Room, string, error) {
	r, err := m.Get(roomID)
	if err != nil {
		return nil, "", err
	}

	playerID := uuid.New().String()
	if err := r.Join(room.Player{ID: playerID, Name: name, Sender: sender}); err != nil {
		return nil, "", err
	}
	return r, playerID, nil
}

// Get returns the room for an id. Ids are case-insensitive.
func (m *Manager) Get(roomID string) (*room.Room, error) {
	id := strings.ToUpper(strings.TrimSpace(roomID))

	m.mu.RLock()
	r, ok := m.rooms[id]
	m.mu.RUnlock()

	if !ok || r.Closed() {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	return r, nil
}

// List returns a lobby snapshot of every live room.
func (m *Manager) List() []room.Info {
	m.mu.RLock()
	rooms := make([]*room.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	infos := make([]room.Info, 0, len(rooms))
	for _, r := range rooms {
		if !r.Closed() {
			infos = append(infos, r.Info())
		}
	}
	return infos
}

// Count returns the number of registered rooms.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// CleanupExpired drops rooms that closed themselves and closes rooms idle
// for longer than maxIdle. Returns the number of rooms removed.
func (m *Manager) CleanupExpired(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, r := range m.rooms {
		if r.Closed() {
			delete(m.rooms, id)
			removed++
			continue
		}
		info := r.Info()
		if info.LastActive.Before(cutoff) || (info.Status == room.StatusFinished && len(info.Players) == 0) {
			r.Close()
			delete(m.rooms, id)
			removed++
			m.log.Info().Str("room_id", id).Msg("room expired")
		}
	}
	return removed
}

// CloseAll shuts every room down. Used on server shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.rooms {
		r.Close()
		delete(m.rooms, id)
	}
}

// generateRoomID draws a short shareable code, retrying on the rare
// collision. Caller must hold the write lock.
func (m *Manager) generateRoomID() (string, error) {
	for attempt := 0; attempt < 100; attempt++ {
		buf := make([]byte, roomIDLength)
		if _, err := crand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate room id: %w", err)
		}
		id := make([]byte, roomIDLength)
		for i, b := range buf {
			id[i] = roomIDAlphabet[int(b)%len(roomIDAlphabet)]
		}
		if _, taken := m.rooms[string(id)]; !taken {
			return string(id), nil
		}
	}
	return "", errors.New("failed to allocate a unique room id")
}

func randomSeed() uint64 {
	var buf [8]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return uint64(time.Now().UnixNano())
	}
	seed := binary.LittleEndian.Uint64(buf[:])
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return seed
}
