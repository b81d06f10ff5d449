package engine

import (
	"testing"

	"hearts-server/models"
)

func newTestState(seatOrder []string) *models.SessionState {
	return &models.SessionState{
		RoundNumber:   1,
		Phase:         models.PhasePlaying,
		Hands:         make(map[string][]models.Card, len(seatOrder)),
		PassedCards:   make(map[string][]models.Card, len(seatOrder)),
		PassDirection: models.PassLeft,
		RoundScores:   map[string]int{},
		SeatOrder:     append([]string(nil), seatOrder...),
	}
}

func TestCompleteRoundShootTheMoonInvertsScoring(t *testing.T) {
	state := newTestState([]string{"a", "b", "c", "d"})
	state.RoundScores = map[string]int{"a": 26, "b": 0, "c": 0, "d": 0}

	result := CompleteRound(state)

	if result.ShotTheMoon != "a" {
		t.Fatalf("expected a to have shot the moon, got %q", result.ShotTheMoon)
	}
	if result.Deltas["a"] != 0 {
		t.Fatalf("shooter should score 0, got %d", result.Deltas["a"])
	}
	for _, uid := range []string{"b", "c", "d"} {
		if result.Deltas[uid] != 26 {
			t.Fatalf("expected %s to take 26, got %d", uid, result.Deltas[uid])
		}
	}
}

func TestCompleteRoundOrdinaryScoring(t *testing.T) {
	state := newTestState([]string{"a", "b", "c", "d"})
	state.RoundScores = map[string]int{"a": 10, "b": 6, "c": 9, "d": 1}

	result := CompleteRound(state)

	if result.ShotTheMoon != "" {
		t.Fatalf("expected no shooter, got %q", result.ShotTheMoon)
	}
	if result.Deltas["a"] != 10 || result.Deltas["b"] != 6 || result.Deltas["c"] != 9 || result.Deltas["d"] != 1 {
		t.Fatalf("unexpected deltas: %+v", result.Deltas)
	}
}

func TestDetermineGameOverBelowThreshold(t *testing.T) {
	totals := map[string]int{"a": 40, "b": 60, "c": 70, "d": 20}
	result := DetermineGameOver(totals, []string{"a", "b", "c", "d"})
	if result.Over {
		t.Fatalf("expected game not over, got %+v", result)
	}
}

func TestDetermineGameOverPicksLowestTotalOnThreshold(t *testing.T) {
	totals := map[string]int{"a": 104, "b": 88, "c": 120, "d": 95}
	result := DetermineGameOver(totals, []string{"a", "b", "c", "d"})
	if !result.Over {
		t.Fatalf("expected game over once someone crosses 100")
	}
	if result.WinnerID != "b" {
		t.Fatalf("expected b (lowest total) to win, got %s", result.WinnerID)
	}
}

func TestDetermineGameOverTiesBrokenByLowestSeat(t *testing.T) {
	seatOrder := []string{"a", "b", "c", "d"}
	totals := map[string]int{"a": 101, "b": 80, "c": 80, "d": 150}
	result := DetermineGameOver(totals, seatOrder)
	if !result.Over {
		t.Fatalf("expected game over")
	}
	if result.WinnerID != "b" {
		t.Fatalf("expected tie between b and c broken toward lowest seat (b), got %s", result.WinnerID)
	}
}

func TestResolvePassRotatesLeftAndSortsHands(t *testing.T) {
	state := newTestState([]string{"a", "b", "c", "d"})
	state.Phase = models.PhasePassing
	state.Hands = map[string][]models.Card{
		"a": {card(models.Nine, models.Clubs), card(models.Five, models.Hearts), models.TwoOfClubs},
		"b": {card(models.Ace, models.Spades), card(models.Three, models.Diamonds), card(models.Four, models.Clubs)},
		"c": {card(models.King, models.Hearts), card(models.Six, models.Clubs), card(models.Seven, models.Diamonds)},
		"d": {card(models.Jack, models.Clubs), card(models.Eight, models.Hearts), card(models.Ten, models.Spades)},
	}

	pass := []models.Card{card(models.Nine, models.Clubs), card(models.Five, models.Hearts), models.TwoOfClubs}
	if err := ValidatePass(state, "a", pass); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	RecordPass(state, "a", pass)
	RecordPass(state, "b", []models.Card{card(models.Ace, models.Spades), card(models.Three, models.Diamonds), card(models.Four, models.Clubs)})
	RecordPass(state, "c", []models.Card{card(models.King, models.Hearts), card(models.Six, models.Clubs), card(models.Seven, models.Diamonds)})
	RecordPass(state, "d", []models.Card{card(models.Jack, models.Clubs), card(models.Eight, models.Hearts), card(models.Ten, models.Spades)})

	if !PassReady(state) {
		t.Fatalf("expected all four passes to be ready")
	}
	ResolvePass(state)

	if state.Phase != models.PhasePlaying {
		t.Fatalf("expected phase to switch to playing, got %s", state.Phase)
	}
	// Left: a's pass goes to b (seat 1 -> seat 2), etc.
	if len(state.Hands["b"]) != 3 {
		t.Fatalf("expected b to receive a's 3 passed cards on top of its own remaining 0, got %d", len(state.Hands["b"]))
	}
	wantB := []models.Card{models.TwoOfClubs, card(models.Nine, models.Clubs), card(models.Five, models.Hearts)}
	for i, c := range state.Hands["b"] {
		if c != wantB[i] {
			t.Fatalf("expected b's hand to be a's passed cards sorted %v, got %v", wantB, state.Hands["b"])
		}
	}
	if state.TurnUserID != state.HolderOfTwoOfClubs() {
		t.Fatalf("turn_user_id should be whoever now holds 2♣")
	}
}
