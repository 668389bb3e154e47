package engine

// Roulette produces the next roll value for a snapshot. Implementations must
// not mutate the snapshot; the engine advances the randomness state itself so
// that spins stay reproducible.
type Roulette interface {
	Spin(state *GameState) int
}

// StandardRoulette derives a value in [1, RouletteFaces] from the snapshot's
// xorshift64 state without advancing it.
type StandardRoulette struct{}

// Spin returns the roll the snapshot's current randomness state produces.
func (StandardRoulette) Spin(state *GameState) int {
	x := state.RNGSeed
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	return int(x%RouletteFaces) + 1
}

// FixedRoulette replays a predefined sequence of rolls. Test implementation.
type FixedRoulette struct {
	Values []int
	next   int
}

// Spin returns the next value of the sequence, cycling when exhausted.
func (r *FixedRoulette) Spin(*GameState) int {
	if len(r.Values) == 0 {
		return 1
	}
	v := r.Values[r.next%len(r.Values)]
	r.next++
	return v
}
