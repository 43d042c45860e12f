/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package syndicate

import (
	"fmt"

	"github.com/Seednode/partyline/games"
)

var locations = []string{
	"library",
	"conservatory",
	"wine cellar",
	"rooftop garden",
	"boiler room",
	"ballroom",
	"kitchen",
	"observatory",
}

var weapons = []string{
	"candlestick",
	"length of rope",
	"lead pipe",
	"letter opener",
	"poisoned teacup",
	"revolver",
	"wrench",
}

func murderStory(rng games.Rand, victim string) string {
	return fmt.Sprintf("%s was found in the %s. A %s lay nearby.",
		victim,
		games.Pick(rng, locations),
		games.Pick(rng, weapons),
	)
}
