package engine

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrWrongPhase is returned when an operation targets a phase the
	// snapshot is not currently in. The snapshot is left untouched.
	ErrWrongPhase = errors.New("operation does not match current phase")

	// ErrNotYourTurn is returned when the acting player is not the current
	// player. Raised by callers that validate identity before engine calls.
	ErrNotYourTurn = errors.New("not your turn")

	// ErrPlayerCount is returned by Init for fewer than MinPlayers or more
	// than MaxPlayers.
	ErrPlayerCount = errors.New("player count out of range")

	// ErrInvalidPath is returned by ChoosePath for an out-of-range index.
	ErrInvalidPath = errors.New("invalid path index")
)

// Engine is the turn lifecycle contract. Every operation takes the current
// snapshot and returns a new one; inputs are never mutated, so a failed call
// leaves the caller's snapshot authoritative.
type Engine interface {
	Init(players []PlayerSeed, m *MapData, seed uint64) (*GameState, error)
	Spin(state *GameState) (*GameState, SpinResult, error)
	Advance(state *GameState, steps int) (*GameState, []GameEvent, error)
	ChoosePath(state *GameState, pathIndex int) (*GameState, []GameEvent, error)
	ResolveAction(state *GameState, action PlayerAction) (*GameState, []GameEvent, error)
	EndTurn(state *GameState) (*GameState, error)
	IsFinished(state *GameState) bool
	Rankings(state *GameState) []Ranking
}

// ClassicEngine implements Engine with the reference ruleset. The event
// resolver and roulette are injected so tests can fix their outcomes.
type ClassicEngine struct {
	resolver EventResolver
	roulette Roulette
}

// NewEngine creates an engine with the production resolver and roulette.
func NewEngine() *ClassicEngine {
	return &ClassicEngine{
		resolver: ClassicResolver{},
		roulette: StandardRoulette{},
	}
}

// NewEngineWith creates an engine with the provided components.
func NewEngineWith(resolver EventResolver, roulette Roulette) *ClassicEngine {
	return &ClassicEngine{resolver: resolver, roulette: roulette}
}

// Init creates the initial snapshot: players placed on the start tile in join
// order with starting money, first player waiting for a spin.
func (e *ClassicEngine) Init(players []PlayerSeed, m *MapData, seed uint64) (*GameState, error) {
	if len(players) < MinPlayers || len(players) > MaxPlayers {
		return nil, fmt.Errorf("%w: got %d, want %d-%d", ErrPlayerCount, len(players), MinPlayers, MaxPlayers)
	}

	board := NewBoard(m)
	start := board.StartTile()

	states := make([]PlayerState, len(players))
	for i, p := range players {
		ps := NewPlayerState(p.ID, p.Name, m.StartMoney)
		ps.Position = start
		states[i] = ps
	}

	return &GameState{
		Players:          states,
		Board:            board,
		CurrentTurn:      0,
		Phase:            PhaseWaitingForSpin,
		RNGSeed:          seed,
		LoanUnit:         m.LoanUnit,
		LoanInterestRate: m.LoanInterestRate,
		Careers:          m.Careers,
		HousesForSale:    m.Houses,
	}, nil
}

// Spin draws the next roulette value and moves the snapshot into the moving
// phase. The randomness state is advanced so the next spin differs.
func (e *ClassicEngine) Spin(state *GameState) (*GameState, SpinResult, error) {
	if state.Phase != PhaseWaitingForSpin {
		return nil, SpinResult{}, fmt.Errorf("spin in %s: %w", state.Phase, ErrWrongPhase)
	}

	value := e.roulette.Spin(state)
	ns := state.Clone()
	ns.NextRandom()
	ns.Phase = PhaseMoving

	return ns, SpinResult{PlayerID: ns.CurrentPlayer().ID, Value: value}, nil
}

// Advance walks the current player forward along the board graph. The walk
// suspends at a branch tile reached with steps remaining; otherwise the
// landing tile's event is resolved and the turn heads to its end.
func (e *ClassicEngine) Advance(state *GameState, steps int) (*GameState, []GameEvent, error) {
	if state.Phase != PhaseMoving {
		return nil, nil, fmt.Errorf("advance in %s: %w", state.Phase, ErrWrongPhase)
	}

	ns := state.Clone()
	events := e.walk(ns, steps)
	if ns.Phase == PhaseChoosingPath {
		return ns, events, nil
	}

	ns, landing := e.resolveLanding(ns)
	events = append(events, landing...)

	if ns.Phase == PhaseMoving {
		ns.Phase = PhaseTurnEnd
	}
	return ns, events, nil
}

// ChoosePath consumes a pending branch choice and continues the walk down the
// selected successor for the remaining steps.
func (e *ClassicEngine) ChoosePath(state *GameState, pathIndex int) (*GameState, []GameEvent, error) {
	if state.Phase != PhaseChoosingPath {
		return nil, nil, fmt.Errorf("choose path in %s: %w", state.Phase, ErrWrongPhase)
	}

	tile := state.Board.Tile(state.CurrentPlayer().Position)
	if tile == nil || pathIndex < 0 || pathIndex >= len(tile.Next) {
		return nil, nil, fmt.Errorf("path %d at tile %d: %w", pathIndex, state.CurrentPlayer().Position, ErrInvalidPath)
	}

	ns := state.Clone()
	ns.Phase = PhaseMoving
	remaining := ns.PendingSteps
	ns.PendingSteps = 0

	// Taking the chosen successor is the first of the remaining steps.
	var events []GameEvent
	events = append(events, e.enterTile(ns, tile.Next[pathIndex], remaining > 1)...)
	if remaining > 0 {
		remaining--
	}

	events = append(events, e.walk(ns, remaining)...)
	if ns.Phase == PhaseChoosingPath {
		return ns, events, nil
	}

	ns, landing := e.resolveLanding(ns)
	events = append(events, landing...)

	if ns.Phase == PhaseMoving {
		ns.Phase = PhaseTurnEnd
	}
	return ns, events, nil
}

// ResolveAction consumes a pending player decision and applies its effect.
func (e *ClassicEngine) ResolveAction(state *GameState, action PlayerAction) (*GameState, []GameEvent, error) {
	if state.Phase != PhaseChoosingAction {
		return nil, nil, fmt.Errorf("resolve action in %s: %w", state.Phase, ErrWrongPhase)
	}

	ns := state.Clone()
	var events []GameEvent
	idx := ns.CurrentTurn
	playerID := ns.Players[idx].ID

	switch action.Kind {
	case ActionBuyHouse:
		for _, h := range ns.HousesForSale {
			if h.ID != action.HouseID {
				continue
			}
			if ns.Players[idx].Money >= h.Price {
				house := h
				ns.Players[idx].Money -= house.Price
				ns.Players[idx].Houses = append(ns.Players[idx].Houses, house)
				events = append(events,
					GameEvent{Type: EventMoneyChanged, PlayerID: playerID, Amount: -house.Price, Reason: "bought " + house.Name},
					GameEvent{Type: EventHousePurchased, PlayerID: playerID, House: &house},
				)
			}
			break
		}

	case ActionBuyInsurance:
		switch action.Insurance {
		case InsuranceLife:
			ns.Players[idx].LifeInsurance = true
		case InsuranceAuto:
			ns.Players[idx].AutoInsurance = true
		}
		events = append(events, GameEvent{Type: EventInsurancePurchased, PlayerID: playerID, Insurance: action.Insurance})

	case ActionLawsuitTarget:
		ls, lawsuitEvents := e.resolver.ResolveLawsuit(ns, action.TargetID)
		ns = ls
		events = append(events, lawsuitEvents...)

	case ActionRepayDebt:
		repay := int64(float64(ns.LoanUnit) * ns.LoanInterestRate)
		if ns.Players[idx].Debt >= ns.LoanUnit && ns.Players[idx].Money >= repay {
			ns.Players[idx].Money -= repay
			ns.Players[idx].Debt -= ns.LoanUnit
			events = append(events, GameEvent{Type: EventMoneyChanged, PlayerID: playerID, Amount: -repay, Reason: "loan repayment"})
		}

	case ActionBuyStock:
		if ns.Players[idx].Money >= StockPrice {
			ns.Players[idx].Money -= StockPrice
			ns.Players[idx].Stocks = append(ns.Players[idx].Stocks, Stock{
				ID:   fmt.Sprintf("stock_%d", ns.NextRandom()%100),
				Name: "stock certificate",
			})
			events = append(events, GameEvent{Type: EventStockPurchased, PlayerID: playerID})
		}

	case ActionSkip:
		// Declining is always legal.
	}

	ns.Phase = PhaseTurnEnd
	return ns, events, nil
}

// EndTurn advances to the next non-retired player and resets the phase.
func (e *ClassicEngine) EndTurn(state *GameState) (*GameState, error) {
	if state.Phase != PhaseTurnEnd {
		return nil, fmt.Errorf("end turn in %s: %w", state.Phase, ErrWrongPhase)
	}

	ns := state.Clone()
	count := len(ns.Players)
	next := (ns.CurrentTurn + 1) % count
	start := next
	for ns.Players[next].Retired {
		next = (next + 1) % count
		if next == start {
			// Everyone retired; callers check IsFinished before EndTurn.
			break
		}
	}

	ns.CurrentTurn = next
	ns.Phase = PhaseWaitingForSpin
	return ns, nil
}

// IsFinished reports whether every player has reached the retire tile.
func (e *ClassicEngine) IsFinished(state *GameState) bool {
	for i := range state.Players {
		if !state.Players[i].Retired {
			return false
		}
	}
	return true
}

// Rankings orders players by total assets descending. Ties keep original
// turn-order position, so two calls on the same snapshot agree.
func (e *ClassicEngine) Rankings(state *GameState) []Ranking {
	ranked := make([]Ranking, len(state.Players))
	for i := range state.Players {
		p := &state.Players[i]
		ranked[i] = Ranking{
			PlayerID:    p.ID,
			PlayerName:  p.Name,
			TotalAssets: p.TotalAssets(state.LoanInterestRate),
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalAssets > ranked[j].TotalAssets
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// walk moves the current player up to remaining tiles, mutating ns in place
// (ns is already a private clone). It stops early at the finish tile or when
// the player stands on a branch with steps still to take, in which case the
// snapshot suspends in PhaseChoosingPath with the leftover steps recorded.
func (e *ClassicEngine) walk(ns *GameState, remaining int) []GameEvent {
	idx := ns.CurrentTurn
	var events []GameEvent

	for remaining > 0 {
		tile := ns.Board.Tile(ns.Players[idx].Position)
		if tile == nil || len(tile.Next) == 0 {
			// Finish tile; excess steps are discarded.
			break
		}
		if len(tile.Next) > 1 {
			ns.Phase = PhaseChoosingPath
			ns.PendingSteps = remaining
			events = append(events, GameEvent{
				Type:     EventChoiceRequired,
				PlayerID: ns.Players[idx].ID,
				Choices:  pathChoices(tile),
			})
			return events
		}

		events = append(events, e.enterTile(ns, tile.Next[0], remaining > 1)...)
		remaining--
	}
	return events
}

// enterTile moves the current player onto tileID. When the walk continues
// past it (passing), a payday tile pays out immediately.
func (e *ClassicEngine) enterTile(ns *GameState, tileID int, passing bool) []GameEvent {
	idx := ns.CurrentTurn
	ns.Players[idx].Position = tileID

	if !passing {
		return nil
	}
	tile := ns.Board.Tile(tileID)
	if tile == nil || tile.Type != TilePayday {
		return nil
	}

	*ns = *e.resolver.ResolvePayday(ns, idx)
	return []GameEvent{{
		Type:     EventMoneyChanged,
		PlayerID: ns.Players[idx].ID,
		Amount:   ns.Players[idx].Salary,
		Reason:   "payday (passed)",
	}}
}

// resolveLanding applies the landing tile's event via the resolver.
func (e *ClassicEngine) resolveLanding(ns *GameState) (*GameState, []GameEvent) {
	tile := ns.Board.Tile(ns.CurrentPlayer().Position)
	if tile == nil {
		return ns, nil
	}
	return e.resolver.ResolveTile(ns, tile)
}
