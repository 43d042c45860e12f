/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package ctf

import (
	"maps"
	"time"
)

type PlayerView struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	IsBot    bool      `json:"isBot"`
	Team     string    `json:"team"`
	Position *Position `json:"position,omitempty"`
	Pending  *Position `json:"pendingMove,omitempty"`
}

type View struct {
	Phase    string         `json:"phase"`
	Team     string         `json:"team,omitempty"`
	IsPlacer bool           `json:"isPlacer"`
	Map      Map            `json:"map"`
	Players  []PlayerView   `json:"players"`
	Flags    []Flag         `json:"flags"`
	Scores   map[string]int `json:"scores"`
	Target   int            `json:"winningScore"`
	NextTick time.Time      `json:"nextTick,omitzero"`
	Winner   string         `json:"winner,omitempty"`
}

// View projects the game for one player. The enemy flag's hiding spot
// stays secret until someone carries it or the game ends.
func (g *Game) View(id string) any {
	me := g.players[id]

	v := View{
		Phase:    g.phase,
		Map:      g.world,
		Players:  []PlayerView{},
		Scores:   maps.Clone(g.scores),
		Target:   WinningScore,
		NextTick: g.nextTick,
		Winner:   g.winner,
	}

	if me != nil {
		v.Team = me.team
		v.IsPlacer = g.placers[me.team] == id
	}

	showPositions := g.phase == PhaseActive || g.phase == PhaseFinished

	for _, pid := range g.order {
		p := g.players[pid]
		pv := PlayerView{ID: p.id, Name: p.name, IsBot: p.bot, Team: p.team}

		if showPositions {
			pos := p.pos
			pv.Position = &pos
		}

		if pid == id {
			if to, ok := g.pending[pid]; ok {
				pv.Pending = &to
			}
		}

		v.Players = append(v.Players, pv)
	}

	for _, team := range teams {
		f := *g.flags[team]

		hidden := g.phase != PhaseFinished && f.Carrier == "" && (me == nil || me.team != team)
		if hidden {
			f.House = ""
			f.Home = Position{}
			f.Pos = Position{}
		}

		v.Flags = append(v.Flags, f)
	}

	return v
}
