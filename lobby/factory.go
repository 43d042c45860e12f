/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package lobby

import (
	"encoding/json"

	"github.com/Seednode/partyline/games"
	"github.com/Seednode/partyline/games/ctf"
	"github.com/Seednode/partyline/games/psych"
	"github.com/Seednode/partyline/games/syndicate"
)

// Factory builds a fresh variant from optional room settings.
type Factory func(settings json.RawMessage, env games.Env) (games.Variant, error)

var (
	_ games.Variant = (*syndicate.Game)(nil)
	_ games.Variant = (*ctf.Game)(nil)
	_ games.Variant = (*psych.Game)(nil)
	_ games.Ticker  = (*ctf.Game)(nil)
	_ games.Ticker  = (*psych.Game)(nil)
)

func DefaultFactories() map[string]Factory {
	return map[string]Factory{
		"syndicate": func(settings json.RawMessage, env games.Env) (games.Variant, error) {
			s, err := syndicate.ParseSettings(settings)
			if err != nil {
				return nil, err
			}

			return syndicate.New(s, env), nil
		},
		"ctf": func(_ json.RawMessage, env games.Env) (games.Variant, error) {
			return ctf.New(env), nil
		},
		"psych": func(_ json.RawMessage, env games.Env) (games.Variant, error) {
			return psych.New(env), nil
		},
	}
}
