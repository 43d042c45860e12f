/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package psych

import (
	"maps"
	"time"
)

type PlayerView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsBot     bool   `json:"isBot"`
	Active    bool   `json:"active"`
	Intention string `json:"intention,omitempty"`
	Ready     bool   `json:"ready"`
	Locked    bool   `json:"locked"`
}

// View is one player's picture of the game. Scores only appear once the
// game is over.
type View struct {
	Phase    string         `json:"phase"`
	Round    int            `json:"round"`
	Deadline time.Time      `json:"deadline,omitzero"`
	Players  []PlayerView   `json:"players"`
	MyChoice string         `json:"myChoice,omitempty"`
	Last     *Result        `json:"lastResult,omitempty"`
	Winner   string         `json:"winner,omitempty"`
	Scores   map[string]int `json:"scores,omitempty"`
}

func (g *Game) View(id string) any {
	v := View{
		Phase:   g.phase,
		Round:   g.round,
		Players: []PlayerView{},
		Last:    g.last,
		Winner:  g.winner,
	}

	if g.phase == PhaseCountdown {
		v.Deadline = g.deadline
	}

	if m, ok := g.members[id]; ok {
		v.MyChoice = m.choice
	}

	for _, pid := range g.order {
		m := g.members[pid]
		v.Players = append(v.Players, PlayerView{
			ID:        m.id,
			Name:      m.name,
			IsBot:     m.bot,
			Active:    m.active,
			Intention: m.intention,
			Ready:     g.ready.Has(m.id),
			Locked:    g.phase == PhaseActualChoice && m.choice != "",
		})
	}

	if g.phase == PhaseGameOver {
		v.Scores = maps.Clone(g.scores)
	}

	return v
}
