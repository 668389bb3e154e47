package engine

import "fmt"

// EventResolver computes the effect of landing on a tile. It is injected into
// the engine so tests can substitute fixed outcomes.
type EventResolver interface {
	// ResolveTile applies the landing tile's effect and returns the new
	// snapshot plus the semantic events that occurred. Some tiles do not
	// complete in one call; they move the snapshot into PhaseChoosingAction
	// and emit an EventChoiceRequired instead.
	ResolveTile(state *GameState, tile *Tile) (*GameState, []GameEvent)

	// ResolvePayday pays the indexed player's salary. Invoked for every
	// payday tile the player passes through, not just the one landed on.
	ResolvePayday(state *GameState, playerIndex int) *GameState

	// ResolveLawsuit transfers the lawsuit award from the chosen target to
	// the current player.
	ResolveLawsuit(state *GameState, targetID string) (*GameState, []GameEvent)
}

// ClassicResolver implements the reference ruleset.
type ClassicResolver struct{}

// giftFromOthers collects amount from every other active player and hands the
// sum to the recipient. Transfers are peer-to-peer: the per-player deltas sum
// to zero.
func (ClassicResolver) giftFromOthers(state *GameState, recipient int, amount int64, reason string) (*GameState, []GameEvent) {
	ns := state.Clone()
	var events []GameEvent
	givers := 0

	for i := range ns.Players {
		if i == recipient || ns.Players[i].Retired {
			continue
		}
		ns.Players[i].Money -= amount
		ns.Players[recipient].Money += amount
		givers++

		events = append(events, GameEvent{
			Type:     EventMoneyChanged,
			PlayerID: ns.Players[i].ID,
			Amount:   -amount,
			Reason:   reason,
		})
	}

	events = append(events, GameEvent{
		Type:     EventMoneyChanged,
		PlayerID: ns.Players[recipient].ID,
		Amount:   amount * int64(givers),
		Reason:   reason + " (received)",
	})

	return ns, events
}

// ResolveTile dispatches on the tile type and applies its effect.
func (r ClassicResolver) ResolveTile(state *GameState, tile *Tile) (*GameState, []GameEvent) {
	ns := state.Clone()
	var events []GameEvent
	idx := ns.CurrentTurn
	playerID := ns.Players[idx].ID

	switch tile.Type {
	case TilePayday:
		salary := ns.Players[idx].Salary
		ns.Players[idx].Money += salary
		events = append(events, GameEvent{
			Type:     EventMoneyChanged,
			PlayerID: playerID,
			Amount:   salary,
			Reason:   "payday",
		})

	case TileAction:
		if tile.Event != nil && tile.Event.Type == TileEventMoney {
			ns.Players[idx].Money += tile.Event.Amount
			events = append(events, GameEvent{
				Type:     EventMoneyChanged,
				PlayerID: playerID,
				Amount:   tile.Event.Amount,
				Reason:   tile.Event.Text,
			})
		}

	case TileCareer:
		pool := "basic"
		if tile.Event != nil && tile.Event.Type == TileEventDrawCareer && tile.Event.Pool != "" {
			pool = tile.Event.Pool
		}
		var available []Career
		for _, c := range ns.Careers {
			if c.Pool == pool {
				available = append(available, c)
			}
		}
		if len(available) > 0 {
			career := available[ns.NextRandom()%uint64(len(available))]
			ns.Players[idx].Salary = career.Salary
			ns.Players[idx].Career = &career
			events = append(events, GameEvent{
				Type:     EventCareerAssigned,
				PlayerID: playerID,
				Career:   &career,
			})
		}

	case TileHouse:
		choices := make([]Choice, 0, len(ns.HousesForSale)+1)
		for _, h := range ns.HousesForSale {
			choices = append(choices, Choice{
				ID:    h.ID,
				Label: fmt.Sprintf("%s ($%d / sells for $%d)", h.Name, h.Price, h.SellPrice),
			})
		}
		choices = append(choices, Choice{ID: "skip", Label: "Don't buy"})
		ns.Phase = PhaseChoosingAction
		events = append(events, GameEvent{Type: EventChoiceRequired, PlayerID: playerID, Choices: choices})

	case TileMarry:
		if !ns.Players[idx].Married {
			ns.Players[idx].Married = true
			events = append(events, GameEvent{Type: EventMarried, PlayerID: playerID})
			gs, gifts := r.giftFromOthers(ns, idx, GiftAmount, "wedding gift")
			ns = gs
			events = append(events, gifts...)
		}

	case TileBaby:
		if ns.Players[idx].Children < MaxChildren {
			ns.Players[idx].Children++
			events = append(events, GameEvent{
				Type:     EventBabyBorn,
				PlayerID: playerID,
				Children: ns.Players[idx].Children,
			})
			gs, gifts := r.giftFromOthers(ns, idx, GiftAmount, "baby gift")
			ns = gs
			events = append(events, gifts...)
		}

	case TileStock:
		if ns.Players[idx].Money >= StockPrice {
			ns.Players[idx].Money -= StockPrice
			ns.Players[idx].Stocks = append(ns.Players[idx].Stocks, Stock{
				ID:   fmt.Sprintf("stock_%d", ns.NextRandom()%100),
				Name: "stock certificate",
			})
			events = append(events, GameEvent{Type: EventStockPurchased, PlayerID: playerID})
		}

	case TileInsurance:
		var choices []Choice
		if !ns.Players[idx].LifeInsurance {
			choices = append(choices, Choice{ID: "life", Label: "Buy life insurance"})
		}
		if !ns.Players[idx].AutoInsurance {
			choices = append(choices, Choice{ID: "auto", Label: "Buy auto insurance"})
		}
		choices = append(choices, Choice{ID: "skip", Label: "No insurance"})
		ns.Phase = PhaseChoosingAction
		events = append(events, GameEvent{Type: EventChoiceRequired, PlayerID: playerID, Choices: choices})

	case TileTax:
		tax := int64(float64(ns.Players[idx].Salary) * 0.1)
		if tax <= 0 {
			tax = MinimumTax
		}
		ns.Players[idx].Money -= tax
		events = append(events, GameEvent{
			Type:     EventMoneyChanged,
			PlayerID: playerID,
			Amount:   -tax,
			Reason:   "tax",
		})

	case TileLawsuit:
		var choices []Choice
		for i := range ns.Players {
			if i == idx || ns.Players[i].Retired {
				continue
			}
			choices = append(choices, Choice{
				ID:    ns.Players[i].ID,
				Label: fmt.Sprintf("Sue %s", ns.Players[i].Name),
			})
		}
		if len(choices) > 0 {
			ns.Phase = PhaseChoosingAction
			events = append(events, GameEvent{Type: EventChoiceRequired, PlayerID: playerID, Choices: choices})
		}

	case TileBranch:
		ns.Phase = PhaseChoosingPath
		events = append(events, GameEvent{
			Type:     EventChoiceRequired,
			PlayerID: playerID,
			Choices:  pathChoices(tile),
		})

	case TileRetire:
		ns.Players[idx].Retired = true
		events = append(events, GameEvent{Type: EventPlayerRetired, PlayerID: playerID})

	case TileStart:
		// Stopping on the start tile has no effect unless it branches.
		if len(tile.Next) > 1 {
			ns.Phase = PhaseChoosingPath
			events = append(events, GameEvent{
				Type:     EventChoiceRequired,
				PlayerID: playerID,
				Choices:  pathChoices(tile),
			})
		}
	}

	return ns, events
}

// ResolvePayday pays the indexed player's salary without emitting events;
// callers emit the pass-through event themselves.
func (ClassicResolver) ResolvePayday(state *GameState, playerIndex int) *GameState {
	ns := state.Clone()
	ns.Players[playerIndex].Money += ns.Players[playerIndex].Salary
	return ns
}

// ResolveLawsuit moves the lawsuit award from target to the current player.
func (ClassicResolver) ResolveLawsuit(state *GameState, targetID string) (*GameState, []GameEvent) {
	ns := state.Clone()
	var events []GameEvent
	currentID := ns.Players[ns.CurrentTurn].ID

	for i := range ns.Players {
		if ns.Players[i].ID != targetID {
			continue
		}
		ns.Players[i].Money -= LawsuitAward
		ns.Players[ns.CurrentTurn].Money += LawsuitAward

		events = append(events,
			GameEvent{Type: EventMoneyChanged, PlayerID: targetID, Amount: -LawsuitAward, Reason: "lawsuit (paid)"},
			GameEvent{Type: EventMoneyChanged, PlayerID: currentID, Amount: LawsuitAward, Reason: "lawsuit (awarded)"},
		)
		break
	}

	return ns, events
}

// pathChoices builds the branch options for a tile, falling back to numbered
// labels when the map does not name the paths.
func pathChoices(tile *Tile) []Choice {
	choices := make([]Choice, 0, len(tile.Next))
	for i := range tile.Next {
		label := fmt.Sprintf("Path %d", i+1)
		if i < len(tile.Labels) {
			label = tile.Labels[i]
		}
		choices = append(choices, Choice{ID: fmt.Sprintf("%d", i), Label: label})
	}
	return choices
}
