/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package syndicate

import (
	"encoding/json"

	"github.com/Seednode/partyline/games"
)

type Role string

const (
	RoleSyndicate  Role = "syndicate"
	RoleDetective  Role = "detective"
	RoleEyeWitness Role = "eye-witness"
	RoleBodyGuard  Role = "body-guard"
	RoleBystander  Role = "bystander"
)

// roleOrder fixes the layout of the unshuffled role list.
var roleOrder = []Role{RoleSyndicate, RoleDetective, RoleEyeWitness, RoleBodyGuard, RoleBystander}

// Settings are the optional roles a host may enable at room creation.
type Settings struct {
	EyeWitness bool `json:"eyeWitness"`
	BodyGuard  bool `json:"bodyGuard"`
}

func ParseSettings(raw json.RawMessage) (Settings, error) {
	var s Settings
	if len(raw) == 0 || string(raw) == "null" {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, games.Wrap(games.ErrInvalidPayload, "settings: %v", err)
	}

	return s, nil
}

// RoleCounts computes role cardinalities for n players. Optional roles only
// take seats left after the Syndicate and Detectives; the Body Guard is the
// first to go when seats run out.
func RoleCounts(n int, s Settings) map[Role]int {
	counts := map[Role]int{
		RoleSyndicate: max(1, n/3),
		RoleDetective: max(1, n/4),
	}

	remaining := n - counts[RoleSyndicate] - counts[RoleDetective]

	if s.EyeWitness && remaining > 0 {
		counts[RoleEyeWitness] = 1
		remaining--
	}

	if s.BodyGuard && remaining > 0 {
		counts[RoleBodyGuard] = 1
		remaining--
	}

	if remaining > 0 {
		counts[RoleBystander] = remaining
	}

	return counts
}

// assignRoles shuffles the role list and zips it against ids in join order.
func assignRoles(ids []string, s Settings, rng games.Rand) map[string]Role {
	counts := RoleCounts(len(ids), s)

	roles := make([]Role, 0, len(ids))
	for _, role := range roleOrder {
		for range counts[role] {
			roles = append(roles, role)
		}
	}

	games.Shuffle(rng, roles)

	assigned := make(map[string]Role, len(ids))
	for i, id := range ids {
		assigned[id] = roles[i]
	}

	return assigned
}
