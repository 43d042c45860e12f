/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package syndicate

type Progress struct {
	Count    int `json:"count"`
	Required int `json:"required"`
}

type PlayerView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	IsBot bool   `json:"isBot"`
	Alive bool   `json:"alive"`
	Role  Role   `json:"role,omitempty"`
}

type NightView struct {
	Votes  map[string]string `json:"votes"`
	Counts map[string]int    `json:"counts"`
	Locked []string          `json:"locked"`
}

type AccusationView struct {
	Counts   map[string]int `json:"counts"`
	Voted    int            `json:"voted"`
	Required int            `json:"required"`
	MyVote   string         `json:"myVote,omitempty"`
}

type VerdictView struct {
	DefendantID string `json:"defendantId"`
	Voted       int    `json:"voted"`
	Required    int    `json:"required"`
	MyVote      string `json:"myVote,omitempty"`
}

// View is one player's filtered picture of the game.
type View struct {
	Phase          string          `json:"phase"`
	Round          int             `json:"round"`
	RoundCap       int             `json:"roundCap"`
	Settings       Settings        `json:"settings"`
	Role           Role            `json:"role,omitempty"`
	Alive          bool            `json:"alive"`
	Winner         string          `json:"winner,omitempty"`
	CanInvestigate bool            `json:"canInvestigate"`
	Syndicate      []string        `json:"syndicate,omitempty"`
	Players        []PlayerView    `json:"players"`
	Night          *NightView      `json:"night,omitempty"`
	Murder         *Murder         `json:"murder,omitempty"`
	Clue           *Clue           `json:"investigation,omitempty"`
	Witnessed      string          `json:"witnessedAssassinId,omitempty"`
	Warning        string          `json:"warning,omitempty"`
	Progress       *Progress       `json:"progress,omitempty"`
	Accusation     *AccusationView `json:"accusation,omitempty"`
	Verdict        *VerdictView    `json:"verdict,omitempty"`
	Last           *Verdict        `json:"lastVerdict,omitempty"`
	Rumors         []Rumor         `json:"rumors"`
	Eliminated     []Elimination   `json:"eliminations"`
	CaseNotes      []CaseNotes     `json:"caseNotes,omitempty"`
}

// View projects the game for one player. Unknown ids get the public view.
func (g *Game) View(id string) any {
	v := View{
		Phase:      g.phase,
		Round:      g.round,
		RoundCap:   RoundCap,
		Settings:   g.settings,
		Winner:     g.winner,
		Rumors:     append([]Rumor{}, g.rumors...),
		Eliminated: append([]Elimination{}, g.eliminations...),
		Last:       g.verdict,
	}

	viewer, known := g.members[id]
	over := g.phase == PhaseGameOver

	if known {
		v.Role = viewer.role
		v.Alive = viewer.alive
	}

	isSyndicate := known && viewer.role == RoleSyndicate
	isDetective := known && viewer.role == RoleDetective

	v.Players = make([]PlayerView, 0, len(g.order))
	for _, pid := range g.order {
		m := g.members[pid]
		pv := PlayerView{ID: m.id, Name: m.name, IsBot: m.bot, Alive: m.alive}
		if over || pid == id || (isSyndicate && m.role == RoleSyndicate) {
			pv.Role = m.role
		}
		v.Players = append(v.Players, pv)
	}

	if isSyndicate {
		for _, pid := range g.order {
			if g.members[pid].role == RoleSyndicate {
				v.Syndicate = append(v.Syndicate, pid)
			}
		}
	}

	if isDetective {
		_, done := g.investigated[id]
		v.CanInvestigate = viewer.alive && g.phase == PhaseNight && g.round >= 2 && !done
		for _, pid := range g.order {
			if tags := g.Notes(id, pid); len(tags) > 0 {
				v.CaseNotes = append(v.CaseNotes, CaseNotes{TargetID: pid, Notes: tags})
			}
		}
	}

	humans := g.livingHumans()

	switch g.phase {
	case PhaseNight:
		if isSyndicate {
			v.Night = g.nightView()
		}
	case PhaseMurderReveal:
		v.Murder = g.murder
		v.Progress = &Progress{Count: g.ready.CountOf(humans), Required: len(humans)}
		if clue, ok := g.clues[id]; ok && isDetective {
			v.Clue = &clue
		}
		if g.settings.EyeWitness && known && viewer.alive && g.murder != nil && g.murder.assassin != "" {
			switch viewer.role {
			case RoleEyeWitness:
				v.Witnessed = g.murder.assassin
			case RoleSyndicate:
				if len(g.living(func(m *member) bool { return m.role == RoleEyeWitness })) > 0 {
					v.Warning = syndicateWarning
				}
			}
		}
	case PhaseTrial:
		v.Progress = &Progress{Count: g.done.CountOf(humans), Required: len(humans)}
	case PhaseAccusation:
		v.Accusation = g.accusationView(id)
	case PhaseVerdict:
		vv := &VerdictView{DefendantID: g.defendant, Voted: g.countVerdicts(humans), Required: len(humans)}
		if known {
			vv.MyVote = g.verdicts[id]
		}
		v.Verdict = vv
	}

	return v
}

func (g *Game) nightView() *NightView {
	nv := &NightView{
		Votes:  make(map[string]string),
		Counts: g.nightVotes.Counts(),
	}

	for _, voter := range g.nightVotes.Voters() {
		nv.Votes[voter], _ = g.nightVotes.Vote(voter)
	}

	for _, pid := range g.order {
		if g.locked.Has(pid) {
			nv.Locked = append(nv.Locked, pid)
		}
	}

	return nv
}

func (g *Game) accusationView(id string) *AccusationView {
	humans := g.livingHumans()
	voted := 0
	for _, h := range humans {
		if _, ok := g.accusations.Vote(h); ok {
			voted++
		}
	}

	av := &AccusationView{
		Counts:   g.accusations.Counts(),
		Voted:    voted,
		Required: len(humans),
	}
	if id != "" {
		av.MyVote, _ = g.accusations.Vote(id)
	}

	return av
}
