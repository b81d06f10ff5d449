package engine

import (
	"testing"

	"hearts-server/models"
)

func card(rank models.Rank, suit models.Suit) models.Card {
	return models.Card{Rank: rank, Suit: suit}
}

func TestTrickWinnerIgnoresOffSuitCards(t *testing.T) {
	trick := []models.TrickCard{
		{UserID: "a", Card: card(models.Four, models.Clubs)},
		{UserID: "b", Card: card(models.Ace, models.Hearts)}, // off-suit ace cannot win
		{UserID: "c", Card: card(models.King, models.Clubs)},
		{UserID: "d", Card: card(models.Two, models.Clubs)},
	}

	winner, err := TrickWinner(trick, models.Clubs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if winner.UserID != "c" {
		t.Fatalf("expected c (K♣) to win, got %s", winner.UserID)
	}
}

func TestTrickWinnerEmptyTrick(t *testing.T) {
	if _, err := TrickWinner(nil, models.Hearts); err != ErrEmptyTrick {
		t.Fatalf("expected ErrEmptyTrick, got %v", err)
	}
}

func TestTrickPointsSumsHeartsAndQueenOfSpades(t *testing.T) {
	trick := []models.TrickCard{
		{UserID: "a", Card: card(models.Five, models.Hearts)},
		{UserID: "b", Card: card(models.Queen, models.Spades)},
		{UserID: "c", Card: card(models.King, models.Clubs)},
		{UserID: "d", Card: card(models.Two, models.Diamonds)},
	}
	if got := TrickPoints(trick); got != 14 {
		t.Fatalf("expected 14 points, got %d", got)
	}
}
