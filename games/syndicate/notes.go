/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package syndicate

import (
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/Seednode/partyline/games"
)

const (
	maxTagLength = 32
	maxTags      = 8
)

type CaseNotes struct {
	TargetID string   `json:"targetId"`
	Notes    []string `json:"notes"`
}

// updateCaseNotes edits a Detective's private tags on a living player.
// The edit is computed on a copy and committed only if it is valid.
func (g *Game) updateCaseNotes(m *member, a games.UpdateCaseNotes) ([]games.Event, error) {
	if m.role != RoleDetective {
		return nil, games.ErrNotPermitted
	}

	t, ok := g.members[a.TargetID]
	if !ok || !t.alive {
		return nil, games.Validationf("notes can only be kept on living players")
	}

	tags := make([]string, 0, len(a.Notes))
	for _, tag := range a.Notes {
		tag = strings.TrimSpace(tag)
		if n := utf8.RuneCountInString(tag); n == 0 || n > maxTagLength {
			return nil, games.Validationf("notes must be 1 to %d characters", maxTagLength)
		}
		if !slices.Contains(tags, tag) {
			tags = append(tags, tag)
		}
	}

	next := games.Set{}
	if a.Mode != games.NotesSet {
		maps.Copy(next, g.notes[m.id][t.id])
	}

	for _, tag := range tags {
		switch a.Mode {
		case games.NotesAdd, games.NotesSet:
			next.Add(tag)
		case games.NotesRemove:
			delete(next, tag)
		default:
			if next.Has(tag) {
				delete(next, tag)
			} else {
				next.Add(tag)
			}
		}
	}

	if len(next) > maxTags {
		return nil, games.Validationf("at most %d notes per player", maxTags)
	}

	byTarget := g.notes[m.id]
	if byTarget == nil {
		byTarget = make(map[string]games.Set)
		g.notes[m.id] = byTarget
	}
	byTarget[t.id] = next

	return []games.Event{games.Private("case-notes-updated", CaseNotes{
		TargetID: t.id,
		Notes:    sortedTags(next),
	}, m.id)}, nil
}

// Notes returns a Detective's tags on target, sorted.
func (g *Game) Notes(detective, target string) []string {
	return sortedTags(g.notes[detective][target])
}

func sortedTags(s games.Set) []string {
	return slices.Sorted(maps.Keys(s))
}
