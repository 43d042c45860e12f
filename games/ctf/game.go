/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package ctf implements a two-team capture-the-flag game on a grid.
// Movement is buffered and applied on a fixed server tick so that
// simultaneous moves resolve together.
package ctf

import (
	"maps"
	"slices"
	"time"

	"github.com/Seednode/partyline/games"
)

const (
	PhaseWaiting   = "waiting"
	PhasePlacement = "flag-placement"
	PhaseActive    = "active"
	PhaseFinished  = "finished"
)

const (
	TeamRed  = "red"
	TeamBlue = "blue"
)

const (
	MaxPlayers   = 16
	WinningScore = 3
	TickInterval = 2 * time.Second
)

var teams = []string{TeamRed, TeamBlue}

func enemyOf(team string) string {
	if team == TeamRed {
		return TeamBlue
	}

	return TeamRed
}

type player struct {
	id   string
	name string
	bot  bool
	team string
	pos  Position
}

type Flag struct {
	Team    string   `json:"team"`
	Placed  bool     `json:"placed"`
	House   string   `json:"house,omitempty"`
	Home    Position `json:"home"`
	Pos     Position `json:"position"`
	Carrier string   `json:"carrier,omitempty"`
}

type Game struct {
	world    Map
	rng      games.Rand
	clock    games.Clock
	interval time.Duration

	order   []string
	players map[string]*player

	phase    string
	placers  map[string]string
	flags    map[string]*Flag
	pending  map[string]Position
	nextTick time.Time
	ticks    int
	scores   map[string]int
	winner   string
}

type Option func(*Game)

func WithMap(m Map) Option {
	return func(g *Game) { g.world = m }
}

func WithTickInterval(d time.Duration) Option {
	return func(g *Game) { g.interval = d }
}

func New(env games.Env, opts ...Option) *Game {
	g := &Game{
		world:    DefaultMap,
		rng:      env.Rand,
		clock:    env.Clock,
		interval: TickInterval,
		players:  make(map[string]*player),
		phase:    PhaseWaiting,
		placers:  make(map[string]string),
		flags:    make(map[string]*Flag),
		pending:  make(map[string]Position),
		scores:   map[string]int{TeamRed: 0, TeamBlue: 0},
	}

	if g.rng == nil {
		g.rng = games.NewRand(0, 0)
	}
	if g.clock == nil {
		g.clock = games.SystemClock
	}

	for _, opt := range opts {
		opt(g)
	}

	for _, team := range teams {
		g.flags[team] = &Flag{Team: team}
	}

	return g
}

func (g *Game) Phase() string             { return g.phase }
func (g *Game) Finished() bool            { return g.phase == PhaseFinished }
func (g *Game) MaxPlayers() int           { return MaxPlayers }
func (g *Game) Winner() string            { return g.winner }
func (g *Game) Score(team string) int     { return g.scores[team] }
func (g *Game) NextTick() time.Time       { return g.nextTick }
func (g *Game) Flag(team string) Flag     { return *g.flags[team] }
func (g *Game) Placer(team string) string { return g.placers[team] }

func (g *Game) Team(id string) string {
	if p, ok := g.players[id]; ok {
		return p.team
	}

	return ""
}

func (g *Game) Position(id string) Position {
	if p, ok := g.players[id]; ok {
		return p.pos
	}

	return Position{}
}

func (g *Game) members(team string) []string {
	var ids []string
	for _, id := range g.order {
		if g.players[id].team == team {
			ids = append(ids, id)
		}
	}

	return ids
}

// AddPlayer seats a new player on the smaller team, red on a tie.
func (g *Game) AddPlayer(p games.Player) error {
	if g.phase != PhaseWaiting {
		return games.ErrAlreadyStarted
	}

	team := TeamRed
	if len(g.members(TeamBlue)) < len(g.members(TeamRed)) {
		team = TeamBlue
	}

	g.order = append(g.order, p.ID)
	g.players[p.ID] = &player{id: p.ID, name: p.Name, bot: p.IsBot, team: team}

	return nil
}

func (g *Game) RemovePlayer(id string) []games.Event {
	p, ok := g.players[id]
	if !ok {
		return nil
	}

	delete(g.players, id)
	g.order = slices.DeleteFunc(g.order, func(s string) bool { return s == id })
	delete(g.pending, id)

	if g.phase == PhaseWaiting || g.phase == PhaseFinished {
		return nil
	}

	var events []games.Event

	for _, f := range g.flags {
		if f.Carrier == id {
			g.resetFlag(f)
			events = append(events, games.Broadcast("flag-dropped", f.public()))
		}
	}

	if len(g.members(p.team)) == 0 {
		return append(events, g.finish(enemyOf(p.team), "forfeit")...)
	}

	if g.phase == PhasePlacement && g.placers[p.team] == id && !g.flags[p.team].Placed {
		events = append(events, g.choosePlacer(p.team)...)
		events = append(events, g.maybeActivate()...)
	}

	return events
}

func (g *Game) CanStart(players []games.Player) error {
	if err := games.CheckMinPlayers(players, games.MinPlayers); err != nil {
		return err
	}
	for _, team := range teams {
		if len(g.members(team)) == 0 {
			return games.Conflictf("team %s has no players", team)
		}
	}

	return nil
}

func (g *Game) Start(players []games.Player) ([]games.Event, error) {
	if g.phase != PhaseWaiting {
		return nil, games.ErrAlreadyStarted
	}
	if err := g.CanStart(players); err != nil {
		return nil, err
	}

	g.phase = PhasePlacement

	events := []games.Event{
		games.Broadcast("game-started", map[string]string{"phase": g.phase}),
		games.Broadcast("phase-advanced", map[string]string{"phase": g.phase}),
	}

	for _, team := range teams {
		events = append(events, g.choosePlacer(team)...)
	}

	return append(events, g.maybeActivate()...), nil
}

// choosePlacer picks a random member of team to hide its flag, preferring
// humans. A bot placer hides the flag at once.
func (g *Game) choosePlacer(team string) []games.Event {
	var humans, bots []string
	for _, id := range g.members(team) {
		if g.players[id].bot {
			bots = append(bots, id)
		} else {
			humans = append(humans, id)
		}
	}

	candidates := humans
	if len(candidates) == 0 {
		candidates = bots
	}
	if len(candidates) == 0 {
		return nil
	}

	placer := games.Pick(g.rng, candidates)
	g.placers[team] = placer

	events := []games.Event{games.Private("placer-assigned", map[string]string{"team": team}, placer)}

	if g.players[placer].bot {
		house := g.homeBuilding(team)
		x, y := house.Area.Center()
		g.place(team, house.Name, Position{X: x, Y: y, Floor: 1})
		events = append(events, games.Broadcast("flag-placed", map[string]string{"team": team}))
	}

	return events
}

// homeBuilding is the building named after team, or the first building.
func (g *Game) homeBuilding(team string) Building {
	if b, ok := g.world.Building(team + "-house"); ok {
		return b
	}

	return g.world.Buildings[0]
}

func (g *Game) place(team, house string, pos Position) {
	f := g.flags[team]
	f.Placed = true
	f.House = house
	f.Home = pos
	f.Pos = pos
}

func (g *Game) maybeActivate() []games.Event {
	if g.phase != PhasePlacement {
		return nil
	}
	for _, f := range g.flags {
		if !f.Placed {
			return nil
		}
	}

	g.phase = PhaseActive
	start := g.world.StagingPoint()
	for _, p := range g.players {
		p.pos = start
	}
	g.nextTick = g.clock.Now().Add(g.interval)

	return []games.Event{games.Broadcast("phase-advanced", map[string]any{
		"phase":    g.phase,
		"nextTick": g.nextTick,
	})}
}

func (g *Game) HandleAction(id string, a games.Action) ([]games.Event, error) {
	p, ok := g.players[id]
	if !ok {
		return nil, games.ErrPlayerNotFound
	}
	if g.phase == PhaseFinished {
		return nil, games.ErrGameOver
	}

	switch a := a.(type) {
	case games.TeamSelect:
		return g.selectTeam(p, a.Team)
	case games.FlagPlace:
		return g.placeFlag(p, a)
	case games.PlayerMove:
		return g.queueMove(p, a)
	case games.FlagCapture:
		return g.capture(p)
	case games.FlagReturn:
		return g.returnFlag(p)
	}

	return nil, games.Wrap(games.ErrUnknownEvent, "%s is not a capture-the-flag event", a.EventName())
}

func (g *Game) requirePhase(phase string) error {
	if g.phase != phase {
		return games.Wrap(games.ErrWrongPhase, "current phase is %s", g.phase)
	}

	return nil
}

func (g *Game) selectTeam(p *player, team string) ([]games.Event, error) {
	if err := g.requirePhase(PhaseWaiting); err != nil {
		return nil, err
	}

	p.team = team

	return []games.Event{games.Broadcast("team-updated", map[string]string{"playerId": p.id, "team": team})}, nil
}

func (g *Game) placeFlag(p *player, a games.FlagPlace) ([]games.Event, error) {
	if err := g.requirePhase(PhasePlacement); err != nil {
		return nil, err
	}
	if g.placers[p.team] != p.id {
		return nil, games.Authorizationf("only your team's placer can hide the flag")
	}
	if g.flags[p.team].Placed {
		return nil, games.Conflictf("your flag is already placed")
	}

	house, ok := g.world.Building(a.House)
	if !ok {
		return nil, games.Validationf("unknown building %q", a.House)
	}
	if a.Floor > house.Floors {
		return nil, games.Validationf("%s has no floor %d", house.Name, a.Floor)
	}
	if !house.Area.Contains(a.Coord.X, a.Coord.Y) {
		return nil, games.Validationf("(%d, %d) is outside %s", a.Coord.X, a.Coord.Y, house.Name)
	}

	g.place(p.team, house.Name, Position{X: a.Coord.X, Y: a.Coord.Y, Floor: a.Floor})

	events := []games.Event{games.Broadcast("flag-placed", map[string]string{"team": p.team})}

	return append(events, g.maybeActivate()...), nil
}

// queueMove validates a step against the player's applied position and
// buffers it until the next tick. A later request replaces an earlier one.
func (g *Game) queueMove(p *player, a games.PlayerMove) ([]games.Event, error) {
	if err := g.requirePhase(PhaseActive); err != nil {
		return nil, err
	}

	to := Position{X: a.X, Y: a.Y, Floor: p.pos.Floor}
	if a.Floor != nil {
		to.Floor = *a.Floor
	}

	if err := g.checkStep(p.pos, to); err != nil {
		return nil, err
	}

	g.pending[p.id] = to

	return []games.Event{games.Private("move-queued", map[string]any{
		"to":        to,
		"appliesAt": g.nextTick,
	}, p.id)}, nil
}

func (g *Game) checkStep(from, to Position) error {
	if !g.world.InBounds(to.X, to.Y) {
		return games.Validationf("(%d, %d) is off the map", to.X, to.Y)
	}

	if from == to {
		return games.Validationf("you are already there")
	}

	if to.Floor != from.Floor {
		if abs(to.Floor-from.Floor) != 1 {
			return games.Validationf("you can only change one floor at a time")
		}
		if to.X != from.X || to.Y != from.Y {
			return games.Validationf("change floors without moving across")
		}
		if _, inside := g.world.BuildingAt(to.X, to.Y); !inside {
			return games.Validationf("stairs are only inside buildings")
		}
	} else if Chebyshev(from, to) != 1 {
		return games.Validationf("you can only move to an adjacent cell")
	}

	if to.Floor > g.world.FloorsAt(to.X, to.Y) {
		return games.Validationf("there is no floor %d there", to.Floor)
	}

	return nil
}

func (g *Game) capture(p *player) ([]games.Event, error) {
	if err := g.requirePhase(PhaseActive); err != nil {
		return nil, err
	}

	enemy := g.flags[enemyOf(p.team)]
	if enemy.Carrier != "" {
		return nil, games.Conflictf("that flag is already taken")
	}
	if p.pos != enemy.Pos {
		return nil, games.Validationf("you must stand on the enemy flag")
	}

	enemy.Carrier = p.id

	return []games.Event{games.Broadcast("flag-captured", map[string]string{
		"team":     enemy.Team,
		"playerId": p.id,
	})}, nil
}

func (g *Game) returnFlag(p *player) ([]games.Event, error) {
	if err := g.requirePhase(PhaseActive); err != nil {
		return nil, err
	}

	enemy := g.flags[enemyOf(p.team)]
	if enemy.Carrier != p.id {
		return nil, games.Conflictf("you are not carrying the enemy flag")
	}
	if !g.world.InStaging(p.pos) {
		return nil, games.Validationf("bring the flag back to staging")
	}
	if g.flags[p.team].Carrier != "" {
		return nil, games.Conflictf("your own flag has been taken")
	}

	g.scores[p.team]++
	g.resetFlag(enemy)

	events := []games.Event{games.Broadcast("flag-returned", map[string]any{
		"team":     p.team,
		"playerId": p.id,
		"scores":   maps.Clone(g.scores),
	})}

	if g.scores[p.team] >= WinningScore {
		events = append(events, g.finish(p.team, "score")...)
	}

	return events, nil
}

func (g *Game) resetFlag(f *Flag) {
	f.Carrier = ""
	f.Pos = f.Home
}

func (g *Game) finish(winner, reason string) []games.Event {
	g.phase = PhaseFinished
	g.winner = winner
	clear(g.pending)

	return []games.Event{games.Broadcast("game-over", map[string]any{
		"winner": winner,
		"reason": reason,
		"scores": maps.Clone(g.scores),
	})}
}

// Tick applies every buffered move at once when the tick boundary has
// passed. Carried flags move with their carriers.
func (g *Game) Tick(now time.Time) []games.Event {
	if g.phase != PhaseActive || now.Before(g.nextTick) {
		return nil
	}

	g.nextTick = g.nextTick.Add(g.interval)
	if !g.nextTick.After(now) {
		g.nextTick = now.Add(g.interval)
	}
	g.ticks++

	if len(g.pending) == 0 {
		return nil
	}

	moved := make(map[string]Position, len(g.pending))
	for id, to := range g.pending {
		g.players[id].pos = to
		moved[id] = to
	}
	clear(g.pending)

	for _, f := range g.flags {
		if f.Carrier != "" {
			f.Pos = g.players[f.Carrier].pos
		}
	}

	return []games.Event{games.Broadcast("positions-updated", map[string]any{
		"tick":      g.ticks,
		"positions": moved,
		"nextTick":  g.nextTick,
	})}
}

func (f *Flag) public() map[string]any {
	return map[string]any{"team": f.Team, "placed": f.Placed, "carrier": f.Carrier}
}
