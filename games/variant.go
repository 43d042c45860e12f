/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import (
	"math/rand/v2"
	"time"
)

// MinPlayers is the default start threshold for a room.
const MinPlayers = 2

// Event is a named broadcast produced by a state change. A nil Audience
// addresses every member of the room; otherwise only the listed player IDs.
type Event struct {
	Name     string
	Data     any
	Audience []string
}

// Variant is one game's state machine. It sees players only by public ID
// and is driven exclusively by its owning room.
type Variant interface {
	// AddPlayer and RemovePlayer mirror roster changes into the variant.
	AddPlayer(p Player) error
	RemovePlayer(id string) []Event
	CanStart(players []Player) error
	Start(players []Player) ([]Event, error)
	HandleAction(playerID string, a Action) ([]Event, error)
	// View projects state for one viewer, hiding what they may not see.
	View(playerID string) any
	Phase() string
	Finished() bool
	MaxPlayers() int
}

// Ticker is implemented by variants with timed transitions.
type Ticker interface {
	Tick(now time.Time) []Event
}

// Rand is the randomness variants draw from; *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

// NewRand returns a PCG source, seeded randomly when both seeds are zero.
func NewRand(seed1, seed2 uint64) *rand.Rand {
	if seed1 == 0 && seed2 == 0 {
		seed1, seed2 = rand.Uint64(), rand.Uint64()
	}

	return rand.New(rand.NewPCG(seed1, seed2))
}

// Shuffle is an in-place Fisher-Yates shuffle.
func Shuffle[T any](r Rand, s []T) {
	for i := len(s) - 1; i > 0; i-- {
		j := r.IntN(i + 1)
		s[i], s[j] = s[j], s[i]
	}
}

// Pick returns a uniformly chosen element; s must be non-empty.
func Pick[T any](r Rand, s []T) T {
	return s[r.IntN(len(s))]
}

// Clock supplies the current time to variants with deadlines.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the wall clock.
var SystemClock Clock = systemClock{}

// Env carries the injectable collaborators a variant is built with.
type Env struct {
	Rand  Rand
	Clock Clock
}

// Broadcast builds an event for the whole room.
func Broadcast(name string, data any) Event {
	return Event{Name: name, Data: data}
}

// Private builds an event for the listed players only. An empty list
// reaches nobody.
func Private(name string, data any, ids ...string) Event {
	return Event{Name: name, Data: data, Audience: append([]string{}, ids...)}
}

// CheckMinPlayers is the base start rule.
func CheckMinPlayers(players []Player, minimum int) error {
	if len(players) < minimum {
		return Wrap(ErrNotEnoughPlayers, "need at least %d, have %d", minimum, len(players))
	}

	return nil
}
