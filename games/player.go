/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxNameLength = 24

// Player is a roster entry. Token is the private identity a client
// reconnects with; ID is the public handle other players target.
type Player struct {
	ID        string    `json:"id"`
	Token     string    `json:"-"`
	Name      string    `json:"name"`
	JoinedAt  time.Time `json:"joinedAt"`
	IsHost    bool      `json:"isHost"`
	IsBot     bool      `json:"isBot"`
	Connected bool      `json:"connected"`
}

// NormalizeName trims a display name and checks its length.
func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n == 0 {
		return "", Validationf("player name is required")
	}
	if n > maxNameLength {
		return "", Validationf("player name must be at most %d characters", maxNameLength)
	}

	return name, nil
}

// Roster keeps players in join order and holds the single-host invariant:
// exactly one host while non-empty, none while empty.
type Roster struct {
	players []*Player
	bots    int
	now     func() time.Time
}

func NewRoster(now func() time.Time) *Roster {
	if now == nil {
		now = time.Now
	}

	return &Roster{now: now}
}

func (r *Roster) Add(token, name string) (Player, error) {
	if r.Has(token) {
		return Player{}, ErrAlreadyJoined
	}

	name, err := NormalizeName(name)
	if err != nil {
		return Player{}, err
	}

	p := &Player{
		ID:        uuid.NewString(),
		Token:     token,
		Name:      name,
		JoinedAt:  r.now(),
		IsHost:    len(r.players) == 0,
		Connected: true,
	}
	r.players = append(r.players, p)

	return *p, nil
}

// AddBots appends up to n bots without exceeding limit players in total.
// Bots never become host while a human is present.
func (r *Roster) AddBots(n, limit int) []Player {
	added := make([]Player, 0, n)

	for i := 0; i < n && len(r.players) < limit; i++ {
		r.bots++
		p := &Player{
			ID:       uuid.NewString(),
			Token:    "bot-" + uuid.NewString(),
			Name:     "Bot " + strconv.Itoa(r.bots),
			JoinedAt: r.now(),
			IsHost:   len(r.players) == 0,
			IsBot:    true,
		}
		r.players = append(r.players, p)
		added = append(added, *p)
	}

	return added
}

// Remove deletes a player and, if they were host, promotes the
// earliest-joined remaining player.
func (r *Roster) Remove(token string) (Player, bool) {
	idx := r.index(token)
	if idx < 0 {
		return Player{}, false
	}

	removed := *r.players[idx]
	r.players = append(r.players[:idx], r.players[idx+1:]...)

	if removed.IsHost && len(r.players) > 0 {
		r.promote()
	}

	return removed, true
}

// promote prefers the earliest-joined human and falls back to the
// earliest-joined bot.
func (r *Roster) promote() {
	for _, p := range r.players {
		if !p.IsBot {
			p.IsHost = true
			return
		}
	}
	r.players[0].IsHost = true
}

func (r *Roster) index(token string) int {
	for i, p := range r.players {
		if p.Token == token {
			return i
		}
	}

	return -1
}

func (r *Roster) Has(token string) bool {
	return r.index(token) >= 0
}

func (r *Roster) Count() int {
	return len(r.players)
}

// Players returns a copy of the roster in join order.
func (r *Roster) Players() []Player {
	out := make([]Player, len(r.players))
	for i, p := range r.players {
		out[i] = *p
	}

	return out
}

func (r *Roster) ByToken(token string) (Player, bool) {
	if idx := r.index(token); idx >= 0 {
		return *r.players[idx], true
	}

	return Player{}, false
}

func (r *Roster) ByID(id string) (Player, bool) {
	for _, p := range r.players {
		if p.ID == id {
			return *p, true
		}
	}

	return Player{}, false
}

func (r *Roster) Host() (Player, bool) {
	for _, p := range r.players {
		if p.IsHost {
			return *p, true
		}
	}

	return Player{}, false
}

// SetConnected flips the connection flag for a human player.
func (r *Roster) SetConnected(token string, connected bool) bool {
	idx := r.index(token)
	if idx < 0 || r.players[idx].IsBot {
		return false
	}
	r.players[idx].Connected = connected

	return true
}

// Connected counts humans with a live connection.
func (r *Roster) Connected() int {
	n := 0
	for _, p := range r.players {
		if p.Connected && !p.IsBot {
			n++
		}
	}

	return n
}

// Humans counts non-bot players.
func (r *Roster) Humans() int {
	n := 0
	for _, p := range r.players {
		if !p.IsBot {
			n++
		}
	}

	return n
}
