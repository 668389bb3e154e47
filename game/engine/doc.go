// Package engine provides the core rule engine for the board game.
//
// The engine package implements the full turn lifecycle:
//   - Roulette spins and graph-based movement with branch points
//   - Tile event resolution (payday, careers, houses, marriage, lawsuits, ...)
//   - The per-turn phase state machine and its legality checks
//   - Finish detection and final asset rankings
//
// Core Types:
//
// The Engine interface defines the turn lifecycle contract, implemented by
// ClassicEngine. GameState is the immutable snapshot of one game in progress:
// every operation takes a snapshot and returns a new one, never mutating its
// input. MapData is the static board/career/house definition loaded from JSON.
//
// Pluggability:
//
// The EventResolver and Roulette capabilities are injected by construction.
// Production code uses ClassicResolver and StandardRoulette; tests substitute
// FixedRoulette or a stub resolver for deterministic outcomes. Randomness
// state lives inside the snapshot (xorshift64 seed), so replaying the same
// call sequence on the same snapshot reproduces identical results.
//
// Usage:
//
//	eng := engine.NewEngine()
//	state, err := eng.Init(players, mapData, seed)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	state, roll, _ := eng.Spin(state)
//	state, events, _ := eng.Advance(state, roll.Value)
//
// A call that does not match the snapshot's current phase fails with
// ErrWrongPhase and leaves the caller's snapshot authoritative.
package engine
