/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package psych implements rock-paper-scissors with public intentions.
// Players announce what they will throw, then throw in secret. Anyone who
// wins while keeping their word eliminates everyone who did not.
package psych

import (
	"maps"
	"slices"
	"time"

	"github.com/Seednode/partyline/games"
)

const (
	PhaseWaiting         = "waiting"
	PhaseLobby           = "lobby"
	PhaseIntentionSelect = "intention-select"
	PhaseReady           = "ready"
	PhaseCountdown       = "countdown"
	PhaseActualChoice    = "actual-choice"
	PhaseRoundResult     = "round-result"
	PhaseGameOver        = "game-over"
)

const (
	MaxPlayers     = 10
	Countdown      = 3 * time.Second
	PsychBonus     = 3
	OutcomeNoOp    = "no-op"
	OutcomeTie     = "everyone-same"
	OutcomeNormal  = "normal"
	OutcomePsyched = "psyched"
)

var throws = []string{games.Rock, games.Paper, games.Scissors}

// beats maps each throw to the throw it defeats.
var beats = map[string]string{
	games.Rock:     games.Scissors,
	games.Scissors: games.Paper,
	games.Paper:    games.Rock,
}

type member struct {
	id        string
	name      string
	bot       bool
	active    bool
	intention string
	choice    string
}

type Result struct {
	Round      int               `json:"round"`
	Outcome    string            `json:"outcome"`
	Winning    string            `json:"winningChoice,omitempty"`
	Intentions map[string]string `json:"intentions"`
	Choices    map[string]string `json:"choices"`
	Psychers   []string          `json:"psychers,omitempty"`
	Eliminated []string          `json:"eliminated,omitempty"`
}

type Game struct {
	rng   games.Rand
	clock games.Clock

	order   []string
	members map[string]*member
	scores  map[string]int

	phase    string
	round    int
	ready    games.Set
	deadline time.Time
	last     *Result
	winner   string
}

func New(env games.Env) *Game {
	g := &Game{
		rng:     env.Rand,
		clock:   env.Clock,
		members: make(map[string]*member),
		scores:  make(map[string]int),
		phase:   PhaseWaiting,
		ready:   games.Set{},
	}

	if g.rng == nil {
		g.rng = games.NewRand(0, 0)
	}
	if g.clock == nil {
		g.clock = games.SystemClock
	}

	return g
}

func (g *Game) Phase() string         { return g.phase }
func (g *Game) Finished() bool        { return g.phase == PhaseGameOver }
func (g *Game) MaxPlayers() int       { return MaxPlayers }
func (g *Game) Round() int            { return g.round }
func (g *Game) Winner() string        { return g.winner }
func (g *Game) Score(id string) int   { return g.scores[id] }
func (g *Game) Deadline() time.Time   { return g.deadline }
func (g *Game) LastResult() *Result   { return g.last }
func (g *Game) Active(id string) bool { return g.members[id] != nil && g.members[id].active }

func (g *Game) Intention(id string) string {
	if m, ok := g.members[id]; ok {
		return m.intention
	}

	return ""
}

func (g *Game) AddPlayer(p games.Player) error {
	if g.phase != PhaseWaiting {
		return games.ErrAlreadyStarted
	}

	g.order = append(g.order, p.ID)
	g.members[p.ID] = &member{id: p.ID, name: p.Name, bot: p.IsBot, active: true}
	g.scores[p.ID] = 0

	return nil
}

func (g *Game) RemovePlayer(id string) []games.Event {
	m, ok := g.members[id]
	if !ok {
		return nil
	}

	delete(g.members, id)
	delete(g.scores, id)
	delete(g.ready, id)
	g.order = slices.DeleteFunc(g.order, func(s string) bool { return s == id })

	if g.phase == PhaseWaiting || g.phase == PhaseGameOver || !m.active {
		return nil
	}

	if len(g.active()) <= 1 {
		return g.finish()
	}

	return g.advance()
}

func (g *Game) CanStart(players []games.Player) error {
	return games.CheckMinPlayers(players, games.MinPlayers)
}

func (g *Game) Start(players []games.Player) ([]games.Event, error) {
	if g.phase != PhaseWaiting {
		return nil, games.ErrAlreadyStarted
	}
	if err := g.CanStart(players); err != nil {
		return nil, err
	}

	events := []games.Event{games.Broadcast("game-started", map[string]int{"players": len(g.order)})}

	return append(events, g.enter(PhaseLobby)...), nil
}

func (g *Game) HandleAction(id string, a games.Action) ([]games.Event, error) {
	m, ok := g.members[id]
	if !ok {
		return nil, games.ErrPlayerNotFound
	}
	if g.phase == PhaseGameOver {
		return nil, games.ErrGameOver
	}
	if g.phase == PhaseWaiting {
		return nil, games.ErrNotStarted
	}
	if !m.active {
		return nil, games.ErrEliminated
	}

	var events []games.Event
	var err error

	switch a := a.(type) {
	case games.PlayerReady:
		events, err = g.markReady(m)
	case games.IntentionSelect:
		events, err = g.selectIntention(m, a.Intention)
	case games.ActualChoice:
		events, err = g.selectChoice(m, a.Choice)
	default:
		return nil, games.Wrap(games.ErrUnknownEvent, "%s is not a psych event", a.EventName())
	}

	if err != nil {
		return nil, err
	}

	return append(events, g.advance()...), nil
}

func (g *Game) requirePhase(phases ...string) error {
	if !slices.Contains(phases, g.phase) {
		return games.Wrap(games.ErrWrongPhase, "current phase is %s", g.phase)
	}

	return nil
}

func (g *Game) markReady(m *member) ([]games.Event, error) {
	if err := g.requirePhase(PhaseLobby, PhaseReady, PhaseRoundResult); err != nil {
		return nil, err
	}

	g.ready.Add(m.id)

	return []games.Event{games.Broadcast("vote-count-updated", g.readiness())}, nil
}

func (g *Game) selectIntention(m *member, intention string) ([]games.Event, error) {
	if err := g.requirePhase(PhaseIntentionSelect); err != nil {
		return nil, err
	}

	m.intention = intention

	return []games.Event{games.Broadcast("intention-selected", map[string]string{
		"playerId":  m.id,
		"intention": intention,
	})}, nil
}

func (g *Game) selectChoice(m *member, choice string) ([]games.Event, error) {
	if err := g.requirePhase(PhaseActualChoice); err != nil {
		return nil, err
	}

	m.choice = choice

	return []games.Event{games.Broadcast("choice-locked", map[string]string{"playerId": m.id})}, nil
}

func (g *Game) active() []*member {
	var out []*member
	for _, id := range g.order {
		if m := g.members[id]; m.active {
			out = append(out, m)
		}
	}

	return out
}

// quorum is the active humans whose readiness gates the ready-style
// phases. Bots never hold the game up.
func (g *Game) quorum() []string {
	var ids []string
	for _, m := range g.active() {
		if !m.bot {
			ids = append(ids, m.id)
		}
	}

	return ids
}

func (g *Game) readiness() map[string]int {
	q := g.quorum()

	return map[string]int{"ready": g.ready.CountOf(q), "required": len(q)}
}

func (g *Game) readyToMove() bool {
	q := g.quorum()

	return len(q) > 0 && g.ready.Covers(q)
}

func (g *Game) allActive(chosen func(*member) bool) bool {
	for _, m := range g.active() {
		if !chosen(m) {
			return false
		}
	}

	return true
}

func (g *Game) enter(phase string) []games.Event {
	g.phase = phase
	clear(g.ready)

	data := map[string]any{"phase": phase, "round": g.round}

	switch phase {
	case PhaseIntentionSelect:
		g.round++
		data["round"] = g.round
		for _, id := range g.order {
			m := g.members[id]
			m.intention = ""
			m.choice = ""
			if m.active && m.bot {
				m.intention = games.Pick(g.rng, throws)
			}
		}
	case PhaseCountdown:
		g.deadline = g.clock.Now().Add(Countdown)
		data["deadline"] = g.deadline
	case PhaseActualChoice:
		for _, m := range g.active() {
			if m.bot {
				m.choice = games.Pick(g.rng, throws)
			}
		}
	}

	return []games.Event{games.Broadcast("phase-advanced", data)}
}

// advance moves through every phase whose completion condition already
// holds. Countdown only ends on Tick.
func (g *Game) advance() []games.Event {
	var events []games.Event

	for {
		switch g.phase {
		case PhaseLobby, PhaseRoundResult:
			if !g.readyToMove() {
				return events
			}
			events = append(events, g.enter(PhaseIntentionSelect)...)
		case PhaseIntentionSelect:
			if !g.allActive(func(m *member) bool { return m.intention != "" }) {
				return events
			}
			events = append(events, g.enter(PhaseReady)...)
		case PhaseReady:
			if !g.readyToMove() {
				return events
			}
			events = append(events, g.enter(PhaseCountdown)...)
		case PhaseActualChoice:
			if !g.allActive(func(m *member) bool { return m.choice != "" }) {
				return events
			}
			events = append(events, g.resolve()...)

			return events
		default:
			return events
		}
	}
}

// Tick ends the countdown at its deadline. With no active humans left to
// ready up, it also steps the game along one phase per call.
func (g *Game) Tick(now time.Time) []games.Event {
	switch g.phase {
	case PhaseCountdown:
		if now.Before(g.deadline) {
			return nil
		}
		events := g.enter(PhaseActualChoice)

		return append(events, g.advance()...)
	case PhaseLobby, PhaseReady, PhaseRoundResult:
		if len(g.quorum()) > 0 {
			return nil
		}
		next := PhaseIntentionSelect
		if g.phase == PhaseReady {
			next = PhaseCountdown
		}
		events := g.enter(next)

		return append(events, g.advance()...)
	}

	return nil
}

// Outcome classifies a set of throws. With exactly two distinct throws it
// also returns the winning one.
func Outcome(choices []string) (string, string) {
	distinct := map[string]bool{}
	for _, c := range choices {
		distinct[c] = true
	}

	switch len(distinct) {
	case 2:
		for c := range distinct {
			if distinct[beats[c]] {
				return OutcomeNormal, c
			}
		}
	case 1:
		return OutcomeTie, ""
	}

	return OutcomeNoOp, ""
}

func (g *Game) resolve() []games.Event {
	active := g.active()

	res := &Result{
		Round:      g.round,
		Intentions: make(map[string]string, len(active)),
		Choices:    make(map[string]string, len(active)),
	}

	var thrown []string
	for _, m := range active {
		res.Intentions[m.id] = m.intention
		res.Choices[m.id] = m.choice
		thrown = append(thrown, m.choice)
	}

	res.Outcome, res.Winning = Outcome(thrown)

	var events []games.Event

	switch res.Outcome {
	case OutcomeTie:
		for _, m := range active {
			g.scores[m.id]++
		}
	case OutcomeNormal:
		for _, m := range active {
			if m.choice == res.Winning && m.intention == res.Winning {
				res.Psychers = append(res.Psychers, m.id)
			}
		}

		if len(res.Psychers) == 0 {
			for _, m := range active {
				if m.choice == res.Winning {
					g.scores[m.id]++
				} else {
					g.scores[m.id]--
				}
			}
			break
		}

		res.Outcome = OutcomePsyched
		for _, m := range active {
			if slices.Contains(res.Psychers, m.id) {
				continue
			}
			m.active = false
			res.Eliminated = append(res.Eliminated, m.id)
			events = append(events, games.Broadcast("player-eliminated", map[string]string{
				"playerId": m.id,
				"cause":    "psyched",
			}))
		}
		for _, id := range res.Psychers {
			g.scores[id] += PsychBonus * len(res.Eliminated)
		}
	}

	g.last = res
	events = append([]games.Event{games.Broadcast("round-result", res)}, events...)

	if len(g.active()) <= 1 {
		return append(events, g.finish()...)
	}

	return append(events, g.enter(PhaseRoundResult)...)
}

func (g *Game) finish() []games.Event {
	g.phase = PhaseGameOver
	clear(g.ready)

	if survivors := g.active(); len(survivors) == 1 {
		g.winner = survivors[0].id
	}

	return []games.Event{games.Broadcast("game-over", map[string]any{
		"winner": g.winner,
		"scores": maps.Clone(g.scores),
	})}
}
