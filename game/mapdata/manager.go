package mapdata

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ninelife/gameserver/game/engine"
)

//go:embed classic.json
var classicJSON []byte

var (
	ErrMapNotFound = errors.New("map not found")
	ErrInvalidMap  = errors.New("invalid map")
)

// Manager loads and caches static map definitions. The classic map is
// embedded in the binary; additional maps can live as JSON files in a
// directory. Every map is validated once at load time; a map that fails
// validation is never offered to rooms.
type Manager struct {
	mapDir string
	maps   map[string]*engine.MapData
	mu     sync.RWMutex
}

// MapInfo is the catalog entry describing one available map.
type MapInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
	Tiles   int    `json:"tiles"`
}

// NewManager creates a map manager. mapDir may be empty to serve only the
// embedded classic map. The embedded map is parsed and validated here so a
// broken build fails at startup, not mid-game.
func NewManager(mapDir string) (*Manager, error) {
	m := &Manager{
		mapDir: mapDir,
		maps:   make(map[string]*engine.MapData),
	}

	classic, err := parseMap(classicJSON)
	if err != nil {
		return nil, fmt.Errorf("embedded classic map: %w", err)
	}
	m.maps[classic.ID] = classic

	if mapDir != "" {
		if _, err := os.Stat(mapDir); err != nil && os.IsNotExist(err) {
			return nil, fmt.Errorf("map directory does not exist: %s", mapDir)
		}
	}

	return m, nil
}

// Load returns a validated map by id.
func (m *Manager) Load(id string) (*engine.MapData, error) {
	m.mu.RLock()
	if md, ok := m.maps[id]; ok {
		m.mu.RUnlock()
		return md, nil
	}
	m.mu.RUnlock()

	if m.mapDir == "" {
		return nil, fmt.Errorf("%w: %s", ErrMapNotFound, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring the write lock.
	if md, ok := m.maps[id]; ok {
		return md, nil
	}

	path := filepath.Join(m.mapDir, id+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMapNotFound, id)
		}
		return nil, fmt.Errorf("failed to read map file: %w", err)
	}

	md, err := parseMap(data)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", id, err)
	}

	m.maps[id] = md
	return md, nil
}

// List returns catalog entries for every available map.
func (m *Manager) List() []MapInfo {
	m.mu.RLock()
	infos := make([]MapInfo, 0, len(m.maps))
	for _, md := range m.maps {
		infos = append(infos, MapInfo{ID: md.ID, Name: md.Name, Version: md.Version, Tiles: len(md.Tiles)})
	}
	m.mu.RUnlock()

	if m.mapDir == "" {
		return infos
	}

	entries, err := os.ReadDir(m.mapDir)
	if err != nil {
		return infos
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		md, err := m.Load(id)
		if err != nil {
			// Invalid maps are never offered.
			continue
		}
		seen := false
		for _, info := range infos {
			if info.ID == md.ID {
				seen = true
				break
			}
		}
		if !seen {
			infos = append(infos, MapInfo{ID: md.ID, Name: md.Name, Version: md.Version, Tiles: len(md.Tiles)})
		}
	}
	return infos
}

func parseMap(data []byte) (*engine.MapData, error) {
	var md engine.MapData
	if err := json.Unmarshal(data, &md); err != nil {
		return nil, fmt.Errorf("failed to parse map: %w", err)
	}
	if err := Validate(&md); err != nil {
		return nil, err
	}
	return &md, nil
}

// Validate checks a map definition for structural integrity. Rooms only ever
// see maps that passed this check.
func Validate(m *engine.MapData) error {
	if m.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidMap)
	}
	if m.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidMap)
	}
	if len(m.Tiles) == 0 {
		return fmt.Errorf("%w: map has no tiles", ErrInvalidMap)
	}
	if m.StartMoney <= 0 {
		return fmt.Errorf("%w: start_money must be positive", ErrInvalidMap)
	}
	if m.LoanUnit <= 0 {
		return fmt.Errorf("%w: loan_unit must be positive", ErrInvalidMap)
	}
	if m.LoanInterestRate < 1 {
		return fmt.Errorf("%w: loan_interest_rate must be at least 1", ErrInvalidMap)
	}

	byID := make(map[int]*engine.Tile, len(m.Tiles))
	var startID int
	starts, retires := 0, 0
	for i := range m.Tiles {
		t := &m.Tiles[i]
		if _, dup := byID[t.ID]; dup {
			return fmt.Errorf("%w: duplicate tile id %d", ErrInvalidMap, t.ID)
		}
		byID[t.ID] = t

		switch t.Type {
		case engine.TileStart:
			starts++
			startID = t.ID
		case engine.TileRetire:
			retires++
			if len(t.Next) != 0 {
				return fmt.Errorf("%w: retire tile %d must have no successors", ErrInvalidMap, t.ID)
			}
		}
	}
	if starts != 1 {
		return fmt.Errorf("%w: expected exactly one start tile, got %d", ErrInvalidMap, starts)
	}
	if retires == 0 {
		return fmt.Errorf("%w: map has no retire tile", ErrInvalidMap)
	}

	// Graph closure: every successor id must resolve to an existing tile,
	// and branch labels must cover every path.
	for i := range m.Tiles {
		t := &m.Tiles[i]
		for _, next := range t.Next {
			if _, ok := byID[next]; !ok {
				return fmt.Errorf("%w: tile %d references missing successor %d", ErrInvalidMap, t.ID, next)
			}
		}
		if len(t.Next) > 1 && len(t.Labels) > 0 && len(t.Labels) < len(t.Next) {
			return fmt.Errorf("%w: tile %d has %d paths but %d labels", ErrInvalidMap, t.ID, len(t.Next), len(t.Labels))
		}
		if t.Type != engine.TileRetire && len(t.Next) == 0 {
			return fmt.Errorf("%w: tile %d is a dead end", ErrInvalidMap, t.ID)
		}
	}

	// Every tile must be reachable from the start tile, and every tile must
	// be able to reach a retire tile: no player can get stranded.
	reachable := walkFrom(startID, byID)
	if len(reachable) != len(m.Tiles) {
		return fmt.Errorf("%w: %d of %d tiles unreachable from start", ErrInvalidMap, len(m.Tiles)-len(reachable), len(m.Tiles))
	}
	for id := range reachable {
		if !reachesRetire(id, byID) {
			return fmt.Errorf("%w: tile %d cannot reach a retire tile", ErrInvalidMap, id)
		}
	}

	return nil
}

func walkFrom(start int, byID map[int]*engine.Tile) map[int]bool {
	visited := map[int]bool{start: true}
	queue := []int{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range byID[id].Next {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return visited
}

func reachesRetire(from int, byID map[int]*engine.Tile) bool {
	for id := range walkFrom(from, byID) {
		if byID[id].Type == engine.TileRetire {
			return true
		}
	}
	return false
}
