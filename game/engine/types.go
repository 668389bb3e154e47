package engine

// TileType identifies the kind of board tile and therefore which
// resolution rule applies when a player lands on it.
type TileType string

const (
	TileStart     TileType = "start"
	TilePayday    TileType = "payday"
	TileAction    TileType = "action"
	TileCareer    TileType = "career"
	TileHouse     TileType = "house"
	TileMarry     TileType = "marry"
	TileBaby      TileType = "baby"
	TileStock     TileType = "stock"
	TileInsurance TileType = "insurance"
	TileTax       TileType = "tax"
	TileLawsuit   TileType = "lawsuit"
	TileBranch    TileType = "branch"
	TileRetire    TileType = "retire"
)

const (
	// RouletteFaces is the number of faces on the roulette wheel.
	RouletteFaces = 10

	// MinPlayers and MaxPlayers bound the size of a game.
	MinPlayers = 2
	MaxPlayers = 6

	// MaxChildren caps how many baby tiles can take effect per player.
	MaxChildren = 6

	// StockPrice is the flat cost of one stock certificate.
	StockPrice = 10_000

	// GiftAmount is collected from every other active player on marriage
	// and on each birth.
	GiftAmount = 5000

	// LawsuitAward is transferred from the chosen target to the suing player.
	LawsuitAward = 100_000

	// MinimumTax is charged on a tax tile when the player has no salary yet.
	MinimumTax = 5000
)

// Position is the 2D layout position of a tile, used only for client rendering.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TileEventKind discriminates the optional event descriptor attached to a tile.
type TileEventKind string

const (
	TileEventMoney      TileEventKind = "money"
	TileEventDrawCareer TileEventKind = "draw_career"
)

// TileEvent is the optional per-tile event descriptor from the map file.
type TileEvent struct {
	Type   TileEventKind `json:"type"`
	Amount int64         `json:"amount,omitempty"`
	Text   string        `json:"text,omitempty"`
	Pool   string        `json:"pool,omitempty"`
}

// Tile is one node of the board graph. Next holds the successor tile ids;
// more than one successor makes the tile a branch point.
type Tile struct {
	ID       int        `json:"id"`
	Type     TileType   `json:"type"`
	Position Position   `json:"position"`
	Next     []int      `json:"next"`
	Event    *TileEvent `json:"event,omitempty"`
	Labels   []string   `json:"labels,omitempty"`
}

// Career is one entry of the career catalog.
type Career struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Salary int64  `json:"salary"`
	Pool   string `json:"pool"`
}

// House is one entry of the house catalog.
type House struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	SellPrice int64  `json:"sell_price"`
}

// MapData is the parsed, validated static map definition. It is loaded once
// and shared read-only across every room playing it.
type MapData struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Version          string   `json:"version"`
	StartMoney       int64    `json:"start_money"`
	LoanUnit         int64    `json:"loan_unit"`
	LoanInterestRate float64  `json:"loan_interest_rate"`
	Tiles            []Tile   `json:"tiles"`
	Careers          []Career `json:"careers"`
	Houses           []House  `json:"houses"`
}

// Board is the directed tile graph built from a MapData. Boards are shared by
// reference between snapshots and never mutated after construction.
type Board struct {
	Tiles []Tile `json:"tiles"`

	byID map[int]int
}

// NewBoard builds a board from the map's tile list.
func NewBoard(m *MapData) *Board {
	b := &Board{
		Tiles: m.Tiles,
		byID:  make(map[int]int, len(m.Tiles)),
	}
	for i, t := range m.Tiles {
		b.byID[t.ID] = i
	}
	return b
}

// Tile returns the tile with the given id, or nil if it does not exist.
func (b *Board) Tile(id int) *Tile {
	i, ok := b.byID[id]
	if !ok {
		return nil
	}
	return &b.Tiles[i]
}

// StartTile returns the id of the tile players are placed on at game start.
func (b *Board) StartTile() int {
	for _, t := range b.Tiles {
		if t.Type == TileStart {
			return t.ID
		}
	}
	if len(b.Tiles) > 0 {
		return b.Tiles[0].ID
	}
	return 0
}

// Stock is one stock certificate owned by a player.
type Stock struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PromissoryNote is an IOU counted at face value in the final ranking.
type PromissoryNote struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
}

// InsuranceType distinguishes the two independent insurance flags.
type InsuranceType string

const (
	InsuranceLife InsuranceType = "life"
	InsuranceAuto InsuranceType = "auto"
)

// PlayerState is the full per-player state inside a snapshot.
type PlayerState struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Money           int64            `json:"money"`
	Career          *Career          `json:"career,omitempty"`
	Salary          int64            `json:"salary"`
	Married         bool             `json:"married"`
	Children        int              `json:"children"`
	LifeInsurance   bool             `json:"life_insurance"`
	AutoInsurance   bool             `json:"auto_insurance"`
	Stocks          []Stock          `json:"stocks"`
	Houses          []House          `json:"houses"`
	Debt            int64            `json:"debt"`
	PromissoryNotes []PromissoryNote `json:"promissory_notes"`
	Position        int              `json:"position"`
	Retired         bool             `json:"retired"`
}

// NewPlayerState creates a player with starting money and nothing else.
func NewPlayerState(id, name string, startMoney int64) PlayerState {
	return PlayerState{
		ID:    id,
		Name:  name,
		Money: startMoney,
	}
}

// TotalAssets computes the ranking value: cash plus house sale value plus
// promissory notes minus debt with interest.
func (p *PlayerState) TotalAssets(interestRate float64) int64 {
	total := p.Money
	for _, h := range p.Houses {
		total += h.SellPrice
	}
	for _, n := range p.PromissoryNotes {
		total += n.Amount
	}
	total -= int64(float64(p.Debt) * interestRate)
	return total
}

func (p *PlayerState) clone() PlayerState {
	c := *p
	if p.Career != nil {
		career := *p.Career
		c.Career = &career
	}
	c.Stocks = append([]Stock(nil), p.Stocks...)
	c.Houses = append([]House(nil), p.Houses...)
	c.PromissoryNotes = append([]PromissoryNote(nil), p.PromissoryNotes...)
	return c
}

// TurnPhase is the per-turn state machine position of a snapshot.
type TurnPhase string

const (
	PhaseWaitingForSpin TurnPhase = "waiting_for_spin"
	PhaseSpinning       TurnPhase = "spinning"
	PhaseMoving         TurnPhase = "moving"
	PhaseResolvingEvent TurnPhase = "resolving_event"
	PhaseChoosingPath   TurnPhase = "choosing_path"
	PhaseChoosingAction TurnPhase = "choosing_action"
	PhaseTurnEnd        TurnPhase = "turn_end"
)

// GameState is the complete immutable snapshot of one game in progress.
// Engine operations never mutate a snapshot in place; they clone it and
// return the clone. The board, career catalog and house catalog are shared
// read-only between clones.
type GameState struct {
	Players     []PlayerState `json:"players"`
	Board       *Board        `json:"board"`
	CurrentTurn int           `json:"current_turn"`
	Phase       TurnPhase     `json:"phase"`

	// RNGSeed is the randomness state. It lives in the snapshot so that
	// replaying the same call sequence reproduces identical snapshots.
	RNGSeed uint64 `json:"rng_seed"`

	// PendingSteps holds the steps left to walk while suspended at a branch.
	PendingSteps int `json:"pending_steps"`

	LoanUnit         int64    `json:"loan_unit"`
	LoanInterestRate float64  `json:"loan_interest_rate"`
	Careers          []Career `json:"careers"`
	HousesForSale    []House  `json:"houses_for_sale"`
}

// Clone returns a deep copy of the mutable parts of the snapshot. The board
// and the static catalogs are shared by reference.
func (s *GameState) Clone() *GameState {
	c := *s
	c.Players = make([]PlayerState, len(s.Players))
	for i := range s.Players {
		c.Players[i] = s.Players[i].clone()
	}
	return &c
}

// CurrentPlayer returns the player whose turn it is.
func (s *GameState) CurrentPlayer() *PlayerState {
	return &s.Players[s.CurrentTurn]
}

// PlayerByID finds a player by identity, or nil.
func (s *GameState) PlayerByID(id string) *PlayerState {
	for i := range s.Players {
		if s.Players[i].ID == id {
			return &s.Players[i]
		}
	}
	return nil
}

// ActivePlayerCount counts players that have not retired yet.
func (s *GameState) ActivePlayerCount() int {
	n := 0
	for i := range s.Players {
		if !s.Players[i].Retired {
			n++
		}
	}
	return n
}

// NextRandom advances the snapshot's xorshift64 state and returns the value.
func (s *GameState) NextRandom() uint64 {
	x := s.RNGSeed
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	s.RNGSeed = x
	return x
}

// EventType identifies a semantic game event emitted by a transition.
type EventType string

const (
	EventMoneyChanged       EventType = "money_changed"
	EventCareerAssigned     EventType = "career_assigned"
	EventMarried            EventType = "married"
	EventBabyBorn           EventType = "baby_born"
	EventHousePurchased     EventType = "house_purchased"
	EventInsurancePurchased EventType = "insurance_purchased"
	EventStockPurchased     EventType = "stock_purchased"
	EventPlayerRetired      EventType = "player_retired"
	EventChoiceRequired     EventType = "choice_required"
)

// GameEvent describes one state change produced by resolving a tile or an
// action. Only the fields relevant to the Type are set.
type GameEvent struct {
	Type      EventType     `json:"type"`
	PlayerID  string        `json:"player_id,omitempty"`
	Amount    int64         `json:"amount,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Career    *Career       `json:"career,omitempty"`
	House     *House        `json:"house,omitempty"`
	Children  int           `json:"children,omitempty"`
	Insurance InsuranceType `json:"insurance,omitempty"`
	Choices   []Choice      `json:"choices,omitempty"`
}

// Choice is one selectable option presented to the current player.
type Choice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// SpinResult reports the roulette outcome of a spin.
type SpinResult struct {
	PlayerID string `json:"player_id"`
	Value    int    `json:"value"`
}

// Ranking is one row of the final standings.
type Ranking struct {
	PlayerID    string `json:"player_id"`
	PlayerName  string `json:"player_name"`
	TotalAssets int64  `json:"total_assets"`
	Rank        int    `json:"rank"`
}

// ActionKind discriminates a resolved player decision.
type ActionKind string

const (
	ActionBuyHouse      ActionKind = "buy_house"
	ActionBuyInsurance  ActionKind = "buy_insurance"
	ActionSkip          ActionKind = "skip"
	ActionLawsuitTarget ActionKind = "lawsuit_target"
	ActionRepayDebt     ActionKind = "repay_debt"
	ActionBuyStock      ActionKind = "buy_stock"
)

// PlayerAction is a decoded player decision consumed by ResolveAction.
type PlayerAction struct {
	Kind      ActionKind    `json:"kind"`
	HouseID   string        `json:"house_id,omitempty"`
	Insurance InsuranceType `json:"insurance,omitempty"`
	TargetID  string        `json:"target_id,omitempty"`
}

// PlayerSeed is the identity/name pair handed to Init for each player.
type PlayerSeed struct {
	ID   string
	Name string
}
