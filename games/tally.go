/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import "slices"

type ballot struct {
	target string
	seq    int
}

// Tally records one vote per voter. Recasting overwrites the previous vote
// and records it anew, so tie-breaks follow the order votes currently
// standing were cast.
type Tally struct {
	votes map[string]ballot
	seq   int
}

func NewTally() *Tally {
	return &Tally{votes: make(map[string]ballot)}
}

func (t *Tally) Cast(voter, target string) {
	t.seq++
	t.votes[voter] = ballot{target: target, seq: t.seq}
}

func (t *Tally) Vote(voter string) (string, bool) {
	b, ok := t.votes[voter]

	return b.target, ok
}

func (t *Tally) Remove(voter string) {
	delete(t.votes, voter)
}

// RemoveTarget drops every vote pointing at target.
func (t *Tally) RemoveTarget(target string) {
	for voter, b := range t.votes {
		if b.target == target {
			delete(t.votes, voter)
		}
	}
}

func (t *Tally) Len() int {
	return len(t.votes)
}

func (t *Tally) Reset() {
	clear(t.votes)
	t.seq = 0
}

func (t *Tally) Counts() map[string]int {
	counts := make(map[string]int)
	for _, b := range t.votes {
		counts[b.target]++
	}

	return counts
}

// Voters returns voters in the order their standing votes were cast.
func (t *Tally) Voters() []string {
	voters := make([]string, 0, len(t.votes))
	for voter := range t.votes {
		voters = append(voters, voter)
	}
	slices.SortFunc(voters, func(a, b string) int {
		return t.votes[a].seq - t.votes[b].seq
	})

	return voters
}

// VotersFor returns the voters backing target, earliest first.
func (t *Tally) VotersFor(target string) []string {
	var out []string
	for _, voter := range t.Voters() {
		if t.votes[voter].target == target {
			out = append(out, voter)
		}
	}

	return out
}

// Leader resolves the plurality target. Ties go to the target whose
// earliest standing vote was recorded first.
func (t *Tally) Leader() (target string, count int, ok bool) {
	counts := t.Counts()
	first := make(map[string]int)
	for _, b := range t.votes {
		if s, seen := first[b.target]; !seen || b.seq < s {
			first[b.target] = b.seq
		}
	}

	for candidate, n := range counts {
		if !ok || n > count || (n == count && first[candidate] < first[target]) {
			target, count, ok = candidate, n, true
		}
	}

	return target, count, ok
}

// Set is an unordered collection of player IDs, used for ready and done quorums.
type Set map[string]struct{}

func (s Set) Add(id string) {
	s[id] = struct{}{}
}

func (s Set) Has(id string) bool {
	_, ok := s[id]

	return ok
}

// Covers reports whether every id in required is in the set.
func (s Set) Covers(required []string) bool {
	for _, id := range required {
		if !s.Has(id) {
			return false
		}
	}

	return true
}

// CountOf reports how many of required are in the set.
func (s Set) CountOf(required []string) int {
	n := 0
	for _, id := range required {
		if s.Has(id) {
			n++
		}
	}

	return n
}
