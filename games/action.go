/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
)

// Action is a decoded game event. The set of implementations is closed:
// DecodeAction is the only way to build one from the wire.
type Action interface {
	EventName() string
	Validate() error
}

type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Social deduction.

type NightVote struct {
	Target string `json:"target"`
}

type NightLock struct{}

type Investigate struct {
	Target string `json:"target"`
}

type AccusationVote struct {
	Target string `json:"target"`
}

type TrialVote struct {
	Vote string `json:"vote"`
}

type PlayerReady struct{}

type PlayerDone struct{}

type UpdateCaseNotes struct {
	TargetID string   `json:"targetId"`
	Notes    []string `json:"notes"`
	Mode     string   `json:"mode"`
}

// Capture the flag.

type TeamSelect struct {
	Team string `json:"team"`
}

type FlagPlace struct {
	House string `json:"house"`
	Floor int    `json:"floor"`
	Coord Point  `json:"coord"`
}

type PlayerMove struct {
	X     int  `json:"x"`
	Y     int  `json:"y"`
	Floor *int `json:"floor,omitempty"`
}

type FlagCapture struct{}

type FlagReturn struct{}

// Psych.

type IntentionSelect struct {
	Intention string `json:"intention"`
}

type ActualChoice struct {
	Choice string `json:"choice"`
}

const (
	VoteGuilty    = "guilty"
	VoteNotGuilty = "not-guilty"

	NotesToggle = "toggle"
	NotesAdd    = "add"
	NotesRemove = "remove"
	NotesSet    = "set"

	Rock     = "rock"
	Paper    = "paper"
	Scissors = "scissors"
)

var choices = []string{Rock, Paper, Scissors}

func (NightVote) EventName() string       { return "night-vote" }
func (NightLock) EventName() string       { return "night-lock" }
func (Investigate) EventName() string     { return "investigate" }
func (AccusationVote) EventName() string  { return "accusation-vote" }
func (TrialVote) EventName() string       { return "trial-vote" }
func (PlayerReady) EventName() string     { return "player-ready" }
func (PlayerDone) EventName() string      { return "player-done" }
func (UpdateCaseNotes) EventName() string { return "update-case-notes" }
func (TeamSelect) EventName() string      { return "team:select" }
func (FlagPlace) EventName() string       { return "flag:place" }
func (PlayerMove) EventName() string      { return "player:move" }
func (FlagCapture) EventName() string     { return "flag:capture" }
func (FlagReturn) EventName() string      { return "flag:return" }
func (IntentionSelect) EventName() string { return "intentionSelect" }
func (ActualChoice) EventName() string    { return "actualChoice" }

func requireTarget(target string) error {
	if strings.TrimSpace(target) == "" {
		return Validationf("target is required")
	}

	return nil
}

func (a NightVote) Validate() error      { return requireTarget(a.Target) }
func (NightLock) Validate() error        { return nil }
func (a Investigate) Validate() error    { return requireTarget(a.Target) }
func (a AccusationVote) Validate() error { return requireTarget(a.Target) }
func (PlayerReady) Validate() error      { return nil }
func (PlayerDone) Validate() error       { return nil }
func (FlagCapture) Validate() error      { return nil }
func (FlagReturn) Validate() error       { return nil }

func (a TrialVote) Validate() error {
	if a.Vote != VoteGuilty && a.Vote != VoteNotGuilty {
		return Validationf("vote must be %q or %q", VoteGuilty, VoteNotGuilty)
	}

	return nil
}

func (a UpdateCaseNotes) Validate() error {
	if err := requireTarget(a.TargetID); err != nil {
		return err
	}
	switch a.Mode {
	case "", NotesToggle, NotesAdd, NotesRemove, NotesSet:
	default:
		return Validationf("unknown notes mode %q", a.Mode)
	}

	return nil
}

func (a TeamSelect) Validate() error {
	if a.Team != "red" && a.Team != "blue" {
		return Validationf("team must be red or blue")
	}

	return nil
}

func (a FlagPlace) Validate() error {
	if a.House == "" {
		return Validationf("house is required")
	}
	if a.Floor < 1 {
		return Validationf("floor must be at least 1")
	}

	return nil
}

func (a PlayerMove) Validate() error {
	if a.Floor != nil && *a.Floor < 1 {
		return Validationf("floor must be at least 1")
	}

	return nil
}

func (a IntentionSelect) Validate() error {
	if !slices.Contains(choices, a.Intention) {
		return Validationf("intention must be rock, paper or scissors")
	}

	return nil
}

func (a ActualChoice) Validate() error {
	if !slices.Contains(choices, a.Choice) {
		return Validationf("choice must be rock, paper or scissors")
	}

	return nil
}

var decoders = map[string]func() Action{
	"night-vote":        func() Action { return &NightVote{} },
	"night-lock":        func() Action { return &NightLock{} },
	"investigate":       func() Action { return &Investigate{} },
	"accusation-vote":   func() Action { return &AccusationVote{} },
	"trial-vote":        func() Action { return &TrialVote{} },
	"player-ready":      func() Action { return &PlayerReady{} },
	"player-done":       func() Action { return &PlayerDone{} },
	"update-case-notes": func() Action { return &UpdateCaseNotes{} },
	"team:select":       func() Action { return &TeamSelect{} },
	"flag:place":        func() Action { return &FlagPlace{} },
	"player:move":       func() Action { return &PlayerMove{} },
	"flag:capture":      func() Action { return &FlagCapture{} },
	"flag:return":       func() Action { return &FlagReturn{} },
	"intentionSelect":   func() Action { return &IntentionSelect{} },
	"actualChoice":      func() Action { return &ActualChoice{} },
}

// DecodeAction parses a named game event and validates its payload.
// The returned Action is a value, not a pointer, so variants can switch on it.
func DecodeAction(name string, payload json.RawMessage) (Action, error) {
	newAction, ok := decoders[name]
	if !ok {
		return nil, Wrap(ErrUnknownEvent, "%q", name)
	}

	a := newAction()
	if len(bytes.TrimSpace(payload)) > 0 && !bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		if err := json.Unmarshal(payload, a); err != nil {
			return nil, Wrap(ErrInvalidPayload, "%s: %v", name, err)
		}
	}

	a = deref(a)
	if err := a.Validate(); err != nil {
		return nil, err
	}

	return a, nil
}

func deref(a Action) Action {
	switch v := a.(type) {
	case *NightVote:
		return *v
	case *NightLock:
		return *v
	case *Investigate:
		return *v
	case *AccusationVote:
		return *v
	case *TrialVote:
		return *v
	case *PlayerReady:
		return *v
	case *PlayerDone:
		return *v
	case *UpdateCaseNotes:
		return *v
	case *TeamSelect:
		return *v
	case *FlagPlace:
		return *v
	case *PlayerMove:
		return *v
	case *FlagCapture:
		return *v
	case *FlagReturn:
		return *v
	case *IntentionSelect:
		return *v
	case *ActualChoice:
		return *v
	}

	return a
}

// EventNames lists every accepted game event name.
func EventNames() []string {
	names := make([]string, 0, len(decoders))
	for name := range decoders {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}
