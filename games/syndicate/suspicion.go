/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package syndicate

// Suspicion scores a player from their voting history across the game:
// accusations they received, plus their guilty and not-guilty verdict
// votes once those pass a usage floor. The result is clamped to 0..100.
func Suspicion(accusationsReceived, guiltyCast, notGuiltyCast int) int {
	score := 15 * accusationsReceived

	if guiltyCast >= 3 {
		score += 10 * guiltyCast
	}

	if notGuiltyCast >= 2 {
		score += 5 * notGuiltyCast
	}

	return min(max(score, 0), 100)
}

func SuspicionLabel(score int) string {
	switch {
	case score >= 90:
		return "Very Suspicious"
	case score >= 65:
		return "Suspicious"
	case score >= 40:
		return "Moderate"
	case score >= 15:
		return "Low"
	default:
		return "Clear"
	}
}
