/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package syndicate implements a secret-role elimination game. A hidden
// Syndicate removes one player each night; everyone else investigates,
// accuses, and votes on a defendant until one side wins or the round cap
// is reached.
package syndicate

import (
	"github.com/Seednode/partyline/games"
)

const (
	PhaseWaiting      = "waiting"
	PhaseNight        = "night"
	PhaseMurderReveal = "murder-reveal"
	PhaseTrial        = "trial"
	PhaseAccusation   = "accusation"
	PhaseVerdict      = "verdict"
	PhaseGameOver     = "game-over"
)

const (
	MinPlayers = 4
	MaxPlayers = 16
	RoundCap   = 5
)

const (
	WinnerTown      = "town"
	WinnerSyndicate = "syndicate"
	WinnerNone      = "none"
)

const (
	CauseMurder  = "murder"
	CauseVerdict = "verdict"
	CauseLeft    = "left"
)

type member struct {
	id    string
	name  string
	bot   bool
	role  Role
	alive bool

	accused       int
	guiltyCast    int
	notGuiltyCast int
}

type Murder struct {
	VictimID string `json:"victimId"`
	Story    string `json:"story"`
	Fallback bool   `json:"fallback"`

	assassin string
}

// Clue is what a Detective learns about the player they investigated.
type Clue struct {
	TargetID string `json:"targetId"`
	Label    string `json:"label"`
}

type Rumor struct {
	TargetID string `json:"targetId"`
	Round    int    `json:"round"`
	Accusers int    `json:"accusers"`
}

type Verdict struct {
	DefendantID string `json:"defendantId,omitempty"`
	Guilty      int    `json:"guilty"`
	NotGuilty   int    `json:"notGuilty"`
	Eliminated  bool   `json:"eliminated"`
}

type Elimination struct {
	PlayerID string `json:"playerId"`
	Round    int    `json:"round"`
	Cause    string `json:"cause"`
}

type PhaseChange struct {
	Phase string `json:"phase"`
	Round int    `json:"round"`
}

type GameOver struct {
	Winner string          `json:"winner"`
	Roles  map[string]Role `json:"roles"`
}

type Game struct {
	settings Settings
	rng      games.Rand

	order   []string
	members map[string]*member

	phase  string
	round  int
	winner string

	nightVotes   *games.Tally
	locked       games.Set
	investigated map[string]string
	clues        map[string]Clue
	murder       *Murder

	ready games.Set
	done  games.Set

	accusations *games.Tally
	defendant   string
	verdicts    map[string]string
	verdict     *Verdict

	rumors       []Rumor
	eliminations []Elimination
	notes        map[string]map[string]games.Set
}

func New(settings Settings, env games.Env) *Game {
	rng := env.Rand
	if rng == nil {
		rng = games.NewRand(0, 0)
	}

	return &Game{
		settings:     settings,
		rng:          rng,
		members:      make(map[string]*member),
		phase:        PhaseWaiting,
		nightVotes:   games.NewTally(),
		locked:       games.Set{},
		investigated: make(map[string]string),
		clues:        make(map[string]Clue),
		ready:        games.Set{},
		done:         games.Set{},
		accusations:  games.NewTally(),
		verdicts:     make(map[string]string),
		notes:        make(map[string]map[string]games.Set),
	}
}

func (g *Game) Phase() string     { return g.phase }
func (g *Game) Finished() bool    { return g.phase == PhaseGameOver }
func (g *Game) MaxPlayers() int   { return MaxPlayers }
func (g *Game) Round() int        { return g.round }
func (g *Game) Winner() string    { return g.winner }
func (g *Game) Defendant() string { return g.defendant }

// Role reports a player's assigned role, or "" before the game starts.
func (g *Game) Role(id string) Role {
	if m, ok := g.members[id]; ok {
		return m.role
	}

	return ""
}

func (g *Game) Alive(id string) bool {
	m, ok := g.members[id]

	return ok && m.alive
}

func (g *Game) AddPlayer(games.Player) error {
	if g.phase != PhaseWaiting {
		return games.ErrAlreadyStarted
	}

	return nil
}

func (g *Game) CanStart(players []games.Player) error {
	return games.CheckMinPlayers(players, MinPlayers)
}

func (g *Game) Start(players []games.Player) ([]games.Event, error) {
	if g.phase != PhaseWaiting {
		return nil, games.ErrAlreadyStarted
	}
	if err := g.CanStart(players); err != nil {
		return nil, err
	}

	g.order = make([]string, 0, len(players))
	for _, p := range players {
		g.order = append(g.order, p.ID)
		g.members[p.ID] = &member{id: p.ID, name: p.Name, bot: p.IsBot, alive: true}
	}

	for id, role := range assignRoles(g.order, g.settings, g.rng) {
		g.members[id].role = role
	}

	g.round = 1

	events := []games.Event{games.Broadcast("game-started", PhaseChange{Phase: PhaseNight, Round: 1})}
	for _, id := range g.order {
		events = append(events, games.Private("role-assigned", map[string]Role{"role": g.members[id].role}, id))
	}
	events = append(events, g.enter(PhaseNight)...)

	return append(events, g.advance()...), nil
}

// RemovePlayer treats a departure mid-game as an elimination so quorums
// never wait on a player who is gone.
func (g *Game) RemovePlayer(id string) []games.Event {
	m, ok := g.members[id]
	if !ok || g.phase == PhaseGameOver || !m.alive {
		return nil
	}

	events := g.eliminate(m, CauseLeft)

	for _, voter := range g.nightVotes.VotersFor(id) {
		delete(g.locked, voter)
	}
	delete(g.locked, id)
	g.nightVotes.Remove(id)
	g.nightVotes.RemoveTarget(id)
	g.accusations.Remove(id)
	g.accusations.RemoveTarget(id)
	delete(g.verdicts, id)
	delete(g.investigated, id)
	if g.defendant == id {
		g.defendant = ""
	}

	if winner := g.checkWinner(); winner != "" {
		return append(events, g.finish(winner)...)
	}

	return append(events, g.advance()...)
}

func (g *Game) HandleAction(id string, a games.Action) ([]games.Event, error) {
	switch g.phase {
	case PhaseWaiting:
		return nil, games.ErrNotStarted
	case PhaseGameOver:
		return nil, games.ErrGameOver
	}

	m, ok := g.members[id]
	if !ok {
		return nil, games.ErrPlayerNotFound
	}

	if notes, ok := a.(games.UpdateCaseNotes); ok {
		return g.updateCaseNotes(m, notes)
	}

	if !m.alive {
		return nil, games.ErrEliminated
	}

	switch a := a.(type) {
	case games.NightVote:
		return g.nightVote(m, a.Target)
	case games.NightLock:
		return g.nightLock(m)
	case games.Investigate:
		return g.investigate(m, a.Target)
	case games.PlayerReady:
		return g.markReady(m)
	case games.PlayerDone:
		return g.markDone(m)
	case games.AccusationVote:
		return g.accuse(m, a.Target)
	case games.TrialVote:
		return g.trialVote(m, a.Vote)
	}

	return nil, games.Wrap(games.ErrUnknownEvent, "%s is not a syndicate event", a.EventName())
}

func (g *Game) requirePhase(phase string) error {
	if g.phase != phase {
		return games.Wrap(games.ErrWrongPhase, "current phase is %s", g.phase)
	}

	return nil
}

// livingTarget resolves a vote target that must be alive and not the voter.
func (g *Game) livingTarget(voter *member, target string) (*member, error) {
	t, ok := g.members[target]
	if !ok || !t.alive {
		return nil, games.Validationf("target must be a living player")
	}
	if t.id == voter.id {
		return nil, games.Validationf("you cannot target yourself")
	}

	return t, nil
}

func (g *Game) nightVote(m *member, target string) ([]games.Event, error) {
	if err := g.requirePhase(PhaseNight); err != nil {
		return nil, err
	}
	if m.role != RoleSyndicate {
		return nil, games.ErrNotPermitted
	}
	if g.locked.Has(m.id) {
		return nil, games.Conflictf("your vote is locked")
	}

	t, err := g.livingTarget(m, target)
	if err != nil {
		return nil, err
	}
	if t.role == RoleSyndicate {
		return nil, games.Validationf("you cannot target a syndicate member")
	}

	g.nightVotes.Cast(m.id, t.id)

	return []games.Event{g.nightTallyEvent()}, nil
}

func (g *Game) nightLock(m *member) ([]games.Event, error) {
	if err := g.requirePhase(PhaseNight); err != nil {
		return nil, err
	}
	if m.role != RoleSyndicate {
		return nil, games.ErrNotPermitted
	}
	if g.locked.Has(m.id) {
		return nil, games.Conflictf("your vote is already locked")
	}
	if _, ok := g.nightVotes.Vote(m.id); !ok {
		return nil, games.Validationf("cast a vote before locking it")
	}

	g.locked.Add(m.id)

	return append([]games.Event{g.nightTallyEvent()}, g.advance()...), nil
}

func (g *Game) nightTallyEvent() games.Event {
	syndicate := g.living(func(m *member) bool { return m.role == RoleSyndicate })

	return games.Private("vote-count-updated", g.nightView(), syndicate...)
}

func (g *Game) investigate(m *member, target string) ([]games.Event, error) {
	if err := g.requirePhase(PhaseNight); err != nil {
		return nil, err
	}
	if m.role != RoleDetective {
		return nil, games.ErrNotPermitted
	}
	if g.round < 2 {
		return nil, games.Conflictf("investigations open from round 2")
	}
	if _, done := g.investigated[m.id]; done {
		return nil, games.Conflictf("you already investigated this round")
	}

	t, err := g.livingTarget(m, target)
	if err != nil {
		return nil, err
	}

	g.investigated[m.id] = t.id

	return []games.Event{games.Private("investigation-locked", map[string]string{"targetId": t.id}, m.id)}, nil
}

func (g *Game) markReady(m *member) ([]games.Event, error) {
	if err := g.requirePhase(PhaseMurderReveal); err != nil {
		return nil, err
	}

	g.ready.Add(m.id)
	required := g.livingHumans()

	events := []games.Event{games.Broadcast("ready-count-updated", Progress{
		Count:    g.ready.CountOf(required),
		Required: len(required),
	})}

	return append(events, g.advance()...), nil
}

func (g *Game) markDone(m *member) ([]games.Event, error) {
	if err := g.requirePhase(PhaseTrial); err != nil {
		return nil, err
	}

	g.done.Add(m.id)
	required := g.livingHumans()

	events := []games.Event{games.Broadcast("done-count-updated", Progress{
		Count:    g.done.CountOf(required),
		Required: len(required),
	})}

	return append(events, g.advance()...), nil
}

func (g *Game) accuse(m *member, target string) ([]games.Event, error) {
	if err := g.requirePhase(PhaseAccusation); err != nil {
		return nil, err
	}

	t, err := g.livingTarget(m, target)
	if err != nil {
		return nil, err
	}

	g.accusations.Cast(m.id, t.id)

	events := []games.Event{games.Broadcast("vote-count-updated", g.accusationView(""))}

	return append(events, g.advance()...), nil
}

func (g *Game) trialVote(m *member, vote string) ([]games.Event, error) {
	if err := g.requirePhase(PhaseVerdict); err != nil {
		return nil, err
	}
	if g.defendant == "" {
		return nil, games.Conflictf("there is no defendant")
	}

	g.verdicts[m.id] = vote
	required := g.livingHumans()

	events := []games.Event{games.Broadcast("vote-count-updated", Progress{
		Count:    g.countVerdicts(required),
		Required: len(required),
	})}

	return append(events, g.advance()...), nil
}

func (g *Game) countVerdicts(required []string) int {
	n := 0
	for _, id := range required {
		if _, ok := g.verdicts[id]; ok {
			n++
		}
	}

	return n
}

// advance runs every transition whose condition already holds. Conditions
// count living humans only, so rooms with bots or no remaining humans keep
// moving until the game ends.
func (g *Game) advance() []games.Event {
	var events []games.Event

	for {
		humans := g.livingHumans()

		switch g.phase {
		case PhaseNight:
			syndicate := g.living(func(m *member) bool { return m.role == RoleSyndicate && !m.bot })
			if !g.locked.Covers(syndicate) {
				return events
			}
			events = append(events, g.resolveNight()...)
		case PhaseMurderReveal:
			if !g.ready.Covers(humans) {
				return events
			}
			events = append(events, g.enter(PhaseTrial)...)
		case PhaseTrial:
			if !g.done.Covers(humans) {
				return events
			}
			events = append(events, g.enter(PhaseAccusation)...)
		case PhaseAccusation:
			for _, id := range humans {
				if _, ok := g.accusations.Vote(id); !ok {
					return events
				}
			}
			events = append(events, g.resolveAccusation()...)
		case PhaseVerdict:
			if g.defendant != "" && g.countVerdicts(humans) < len(humans) {
				return events
			}
			events = append(events, g.resolveVerdict()...)
		default:
			return events
		}
	}
}

// enter switches phase and clears the records scoped to it.
func (g *Game) enter(phase string) []games.Event {
	g.phase = phase

	switch phase {
	case PhaseNight:
		g.nightVotes.Reset()
		clear(g.locked)
		clear(g.investigated)
		g.murder = nil
	case PhaseMurderReveal:
		clear(g.ready)
	case PhaseTrial:
		clear(g.done)
		clear(g.clues)
	case PhaseAccusation:
		g.accusations.Reset()
		g.defendant = ""
	case PhaseVerdict:
		clear(g.verdicts)
	}

	return []games.Event{games.Broadcast("phase-advanced", PhaseChange{Phase: phase, Round: g.round})}
}

func (g *Game) resolveNight() []games.Event {
	murder := &Murder{}

	if victim, _, ok := g.nightVotes.Leader(); ok {
		murder.VictimID = victim
		murder.assassin = g.nightVotes.VotersFor(victim)[0]
	} else {
		candidates := g.living(func(m *member) bool { return m.role != RoleSyndicate })
		if len(candidates) > 0 {
			murder.VictimID = games.Pick(g.rng, candidates)
			murder.Fallback = true
		}
		if syndicate := g.living(func(m *member) bool { return m.role == RoleSyndicate }); len(syndicate) > 0 {
			murder.assassin = syndicate[0]
		}
	}

	var events []games.Event

	if victim, ok := g.members[murder.VictimID]; ok {
		murder.Story = murderStory(g.rng, victim.name)
		events = append(events, g.eliminate(victim, CauseMurder)...)
	}

	for detective, target := range g.investigated {
		t := g.members[target]
		g.clues[detective] = Clue{
			TargetID: target,
			Label:    SuspicionLabel(Suspicion(t.accused, t.guiltyCast, t.notGuiltyCast)),
		}
	}

	g.murder = murder
	events = append(events, g.enter(PhaseMurderReveal)...)

	for detective, clue := range g.clues {
		events = append(events, games.Private("investigation-result", clue, detective))
	}

	if g.settings.EyeWitness && murder.assassin != "" {
		witnesses := g.living(func(m *member) bool { return m.role == RoleEyeWitness })
		if len(witnesses) > 0 {
			events = append(events,
				games.Private("eye-witness-reveal", map[string]string{"assassinId": murder.assassin}, witnesses...),
				games.Private("syndicate-warning", map[string]string{"warning": syndicateWarning},
					g.living(func(m *member) bool { return m.role == RoleSyndicate })...),
			)
		}
	}

	return events
}

const syndicateWarning = "Someone may have witnessed the murder."

func (g *Game) resolveAccusation() []games.Event {
	counts := g.accusations.Counts()

	for _, id := range g.order {
		n := counts[id]
		if n == 0 {
			continue
		}
		g.members[id].accused += n
		if n >= 2 {
			g.rumors = append(g.rumors, Rumor{TargetID: id, Round: g.round, Accusers: n})
		}
	}

	if defendant, _, ok := g.accusations.Leader(); ok {
		g.defendant = defendant
	}

	events := []games.Event{games.Broadcast("accusation-resolved", map[string]any{
		"defendantId": g.defendant,
		"counts":      counts,
	})}

	return append(events, g.enter(PhaseVerdict)...)
}

func (g *Game) resolveVerdict() []games.Event {
	result := Verdict{DefendantID: g.defendant}

	for voter, vote := range g.verdicts {
		m := g.members[voter]
		if vote == games.VoteGuilty {
			result.Guilty++
			m.guiltyCast++
		} else {
			result.NotGuilty++
			m.notGuiltyCast++
		}
	}

	var events []games.Event

	if d, ok := g.members[g.defendant]; ok && d.alive && result.Guilty*2 > result.Guilty+result.NotGuilty {
		result.Eliminated = true
		events = append(events, g.eliminate(d, CauseVerdict)...)
	}

	g.verdict = &result
	events = append([]games.Event{games.Broadcast("verdict-resolved", result)}, events...)

	if winner := g.checkWinner(); winner != "" {
		return append(events, g.finish(winner)...)
	}
	if g.round >= RoundCap {
		return append(events, g.finish(WinnerNone)...)
	}

	g.round++

	return append(events, g.enter(PhaseNight)...)
}

func (g *Game) eliminate(m *member, cause string) []games.Event {
	m.alive = false
	e := Elimination{PlayerID: m.id, Round: g.round, Cause: cause}
	g.eliminations = append(g.eliminations, e)

	return []games.Event{games.Broadcast("player-eliminated", e)}
}

func (g *Game) checkWinner() string {
	syndicate, others := 0, 0
	for _, m := range g.members {
		if !m.alive {
			continue
		}
		if m.role == RoleSyndicate {
			syndicate++
		} else {
			others++
		}
	}

	switch {
	case syndicate == 0:
		return WinnerTown
	case syndicate >= others:
		return WinnerSyndicate
	}

	return ""
}

func (g *Game) finish(winner string) []games.Event {
	g.phase = PhaseGameOver
	g.winner = winner

	return []games.Event{games.Broadcast("game-over", GameOver{Winner: winner, Roles: g.roles()})}
}

func (g *Game) roles() map[string]Role {
	roles := make(map[string]Role, len(g.members))
	for id, m := range g.members {
		roles[id] = m.role
	}

	return roles
}

// living returns living member ids in join order that satisfy keep.
func (g *Game) living(keep func(*member) bool) []string {
	var ids []string
	for _, id := range g.order {
		if m := g.members[id]; m.alive && keep(m) {
			ids = append(ids, id)
		}
	}

	return ids
}

func (g *Game) livingHumans() []string {
	return g.living(func(m *member) bool { return !m.bot })
}
