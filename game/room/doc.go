// Package room hosts the per-room orchestrator.
//
// Each room runs a single actor goroutine that owns the game snapshot and
// the member roster. Every mutation - joins, leaves, game intents - is
// queued on the room's intent channel and applied one at a time, so two
// players acting simultaneously can never interleave inside a transition.
// Different rooms share nothing and proceed fully in parallel.
//
// The actor translates client intents into engine calls, replaces the
// snapshot with the engine's result, and broadcasts the outcome to every
// member in a single total order. Turn and phase validation happens before
// the engine is invoked; a rejected intent produces an error message for
// the offending player only and leaves the snapshot untouched.
//
// A turn suspended on a pending choice does not block the room: chat,
// leaves, and lobby reads keep flowing while the mover decides.
package room
