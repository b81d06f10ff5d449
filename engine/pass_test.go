package engine

import (
	"testing"

	"hearts-server/models"
)

func TestRecipientSeatCyclesCorrectly(t *testing.T) {
	cases := []struct {
		seat      int
		direction models.PassDirection
		want      int
	}{
		{1, models.PassLeft, 2},
		{4, models.PassLeft, 1},
		{1, models.PassRight, 4},
		{3, models.PassRight, 2},
		{1, models.PassAcross, 3},
		{2, models.PassAcross, 4},
		{2, models.PassHold, 2},
	}
	for _, c := range cases {
		if got := RecipientSeat(c.seat, c.direction); got != c.want {
			t.Errorf("RecipientSeat(%d, %s) = %d, want %d", c.seat, c.direction, got, c.want)
		}
	}
}

func TestDirectionForRoundCyclesEveryFourRounds(t *testing.T) {
	cases := []struct {
		round int
		want  models.PassDirection
	}{
		{1, models.PassLeft},
		{2, models.PassRight},
		{3, models.PassAcross},
		{4, models.PassHold},
		{5, models.PassLeft},
		{8, models.PassHold},
	}
	for _, c := range cases {
		if got := models.DirectionForRound(c.round); got != c.want {
			t.Errorf("DirectionForRound(%d) = %s, want %s", c.round, got, c.want)
		}
	}
}
