/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTallyPlurality(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		votes  [][2]string
		leader string
		count  int
	}{
		{"clear winner", [][2]string{{"A", "X"}, {"B", "X"}, {"C", "Y"}}, "X", 2},
		{"tie to first recorded", [][2]string{{"A", "Y"}, {"B", "X"}, {"C", "X"}, {"D", "Y"}}, "Y", 2},
		{"overwrite moves vote", [][2]string{{"A", "X"}, {"B", "Y"}, {"A", "Y"}}, "Y", 2},
		{"overwrite re-records order", [][2]string{{"A", "X"}, {"B", "Y"}, {"A", "Z"}, {"C", "X"}}, "Y", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tally := NewTally()
			for _, v := range tt.votes {
				tally.Cast(v[0], v[1])
			}

			leader, count, ok := tally.Leader()
			require.True(t, ok)
			assert.Equal(t, tt.leader, leader)
			assert.Equal(t, tt.count, count)
		})
	}
}

func TestTallyCountsAndVoters(t *testing.T) {
	t.Parallel()

	tally := NewTally()
	tally.Cast("A", "X")
	tally.Cast("B", "X")
	tally.Cast("C", "Y")

	assert.Equal(t, map[string]int{"X": 2, "Y": 1}, tally.Counts())
	assert.Equal(t, []string{"A", "B", "C"}, tally.Voters())
	assert.Equal(t, []string{"A", "B"}, tally.VotersFor("X"))

	tally.Cast("A", "Y")
	assert.Equal(t, []string{"B", "C", "A"}, tally.Voters())
	assert.Equal(t, 3, tally.Len(), "recasting never adds a vote")

	tally.RemoveTarget("Y")
	assert.Equal(t, map[string]int{"X": 1}, tally.Counts())

	tally.Reset()
	_, _, ok := tally.Leader()
	assert.False(t, ok)
}

func TestSetCovers(t *testing.T) {
	t.Parallel()

	s := Set{}
	s.Add("a")
	s.Add("b")

	assert.True(t, s.Covers([]string{"a", "b"}))
	assert.True(t, s.Covers(nil))
	assert.False(t, s.Covers([]string{"a", "c"}))
	assert.Equal(t, 1, s.CountOf([]string{"a", "c"}))
}

func TestShuffleIsPermutation(t *testing.T) {
	t.Parallel()

	rng := NewRand(3, 4)
	s := []int{1, 2, 3, 4, 5, 6, 7, 8}
	Shuffle(rng, s)

	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, s)
}
