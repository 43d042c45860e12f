/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package lobby

import (
	"slices"
	"time"

	"github.com/Seednode/partyline/games"
)

// Room pairs a roster with one game variant. Callers address players by
// private token; the room translates to public IDs before the variant
// sees anything.
type Room struct {
	code       string
	gameType   string
	roster     *games.Roster
	variant    games.Variant
	started    bool
	createdAt  time.Time
	lastActive time.Time
	now        func() time.Time
}

// View is the room-level state sent to one connection.
type View struct {
	Code     string         `json:"code"`
	GameType string         `json:"gameType"`
	Started  bool           `json:"started"`
	Phase    string         `json:"phase"`
	Finished bool           `json:"finished"`
	You      string         `json:"you,omitempty"`
	HostID   string         `json:"hostId,omitempty"`
	IsHost   bool           `json:"isHost"`
	Players  []games.Player `json:"players"`
	Game     any            `json:"game"`
}

func newRoom(code, gameType string, variant games.Variant, now func() time.Time) *Room {
	t := now()

	return &Room{
		code:       code,
		gameType:   gameType,
		roster:     games.NewRoster(now),
		variant:    variant,
		createdAt:  t,
		lastActive: t,
		now:        now,
	}
}

func (r *Room) Code() string          { return r.code }
func (r *Room) GameType() string      { return r.gameType }
func (r *Room) Started() bool         { return r.started }
func (r *Room) CreatedAt() time.Time  { return r.createdAt }
func (r *Room) LastActive() time.Time { return r.lastActive }

func (r *Room) Players() []games.Player {
	return r.roster.Players()
}

func (r *Room) touch() {
	r.lastActive = r.now()
}

// Empty reports whether no humans remain. Bots alone never keep a room.
func (r *Room) Empty() bool {
	return r.roster.Humans() == 0
}

func (r *Room) Connected() int {
	return r.roster.Connected()
}

func (r *Room) Has(token string) bool {
	return r.roster.Has(token)
}

func (r *Room) Player(token string) (games.Player, bool) {
	return r.roster.ByToken(token)
}

// AddPlayer seats a human. The roster and variant change together or not
// at all.
func (r *Room) AddPlayer(token, name string) (games.Player, []games.Event, error) {
	if r.started {
		return games.Player{}, nil, games.ErrAlreadyStarted
	}
	if r.roster.Count() >= r.variant.MaxPlayers() {
		return games.Player{}, nil, games.ErrRoomFull
	}

	p, err := r.roster.Add(token, name)
	if err != nil {
		return games.Player{}, nil, err
	}

	if err := r.variant.AddPlayer(p); err != nil {
		r.roster.Remove(token)

		return games.Player{}, nil, err
	}

	r.touch()

	return p, []games.Event{games.Broadcast("player-joined", map[string]any{"player": p})}, nil
}

// RemovePlayer drops a player and reports what the variant did about it.
func (r *Room) RemovePlayer(token string) (games.Player, []games.Event, bool) {
	before, _ := r.roster.Host()

	p, ok := r.roster.Remove(token)
	if !ok {
		return games.Player{}, nil, false
	}

	r.touch()

	events := []games.Event{games.Broadcast("player-left", map[string]any{"player": p})}
	events = append(events, r.variant.RemovePlayer(p.ID)...)

	if host, ok := r.roster.Host(); ok && host.ID != before.ID {
		events = append(events, games.Broadcast("host-changed", map[string]string{"hostId": host.ID}))
	}

	return p, events, true
}

func (r *Room) requireHost(token string) error {
	p, ok := r.roster.ByToken(token)
	if !ok {
		return games.ErrNotInRoom
	}
	if !p.IsHost {
		return games.ErrNotHost
	}

	return nil
}

func (r *Room) Start(token string) ([]games.Event, error) {
	if err := r.requireHost(token); err != nil {
		return nil, err
	}
	if r.started {
		return nil, games.ErrAlreadyStarted
	}

	events, err := r.variant.Start(r.roster.Players())
	if err != nil {
		return nil, err
	}

	r.started = true
	r.touch()

	return events, nil
}

// AddBots fills up to n seats with bots. Only the host may do this, and
// only before the game starts.
func (r *Room) AddBots(token string, n int) ([]games.Event, error) {
	if err := r.requireHost(token); err != nil {
		return nil, err
	}
	if r.started {
		return nil, games.ErrAlreadyStarted
	}
	if n < 1 {
		return nil, games.Validationf("bot count must be at least 1")
	}
	if r.roster.Count() >= r.variant.MaxPlayers() {
		return nil, games.ErrRoomFull
	}

	var events []games.Event
	for _, bot := range r.roster.AddBots(n, r.variant.MaxPlayers()) {
		if err := r.variant.AddPlayer(bot); err != nil {
			r.roster.Remove(bot.Token)

			return events, err
		}
		events = append(events, games.Broadcast("player-joined", map[string]any{"player": bot}))
	}

	r.touch()

	return events, nil
}

// Handle forwards a decoded action to the variant as the player behind token.
func (r *Room) Handle(token string, a games.Action) ([]games.Event, error) {
	p, ok := r.roster.ByToken(token)
	if !ok {
		return nil, games.ErrNotInRoom
	}
	if !r.started {
		return nil, games.ErrNotStarted
	}

	events, err := r.variant.HandleAction(p.ID, a)
	if err != nil {
		return nil, err
	}

	r.touch()

	return events, nil
}

// Tick drives timed transitions for variants that have them.
func (r *Room) Tick(now time.Time) []games.Event {
	if !r.started {
		return nil
	}

	t, ok := r.variant.(games.Ticker)
	if !ok {
		return nil
	}

	events := t.Tick(now)
	if len(events) > 0 {
		r.touch()
	}

	return events
}

func (r *Room) SetConnected(token string, connected bool) (games.Player, bool) {
	if !r.roster.SetConnected(token, connected) {
		return games.Player{}, false
	}
	r.touch()

	p, _ := r.roster.ByToken(token)

	return p, true
}

// Recipients resolves an event's audience to human tokens.
func (r *Room) Recipients(e games.Event) []string {
	var tokens []string
	for _, p := range r.roster.Players() {
		if p.IsBot {
			continue
		}
		if e.Audience == nil || slices.Contains(e.Audience, p.ID) {
			tokens = append(tokens, p.Token)
		}
	}

	return tokens
}

// View is recomputed on every call; token may be empty for a spectator.
func (r *Room) View(token string) View {
	v := View{
		Code:     r.code,
		GameType: r.gameType,
		Started:  r.started,
		Phase:    r.variant.Phase(),
		Finished: r.variant.Finished(),
		Players:  r.roster.Players(),
	}

	if host, ok := r.roster.Host(); ok {
		v.HostID = host.ID
	}

	var id string
	if p, ok := r.roster.ByToken(token); ok {
		id = p.ID
		v.You = p.ID
		v.IsHost = p.IsHost
	}

	v.Game = r.variant.View(id)

	return v
}
