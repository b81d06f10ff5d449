package engine

import "hearts-server/models"

// StartRound deals a fresh shuffled deck to the seated users (in seat
// order), determines the passing direction for roundNumber, and returns the
// resulting Session State. On a hold round the passing phase is skipped and
// play starts immediately with the holder of 2♣.
func StartRound(seatOrder []string, roundNumber int) (*models.SessionState, error) {
	deck := models.NewDeck()
	hands, err := deck.DealAll(len(seatOrder))
	if err != nil {
		return nil, err
	}

	state := &models.SessionState{
		RoundNumber:   roundNumber,
		Hands:         make(map[string][]models.Card, len(seatOrder)),
		PassedCards:   make(map[string][]models.Card, len(seatOrder)),
		PassDirection: models.DirectionForRound(roundNumber),
		CurrentTrick:  nil,
		RoundScores:   make(map[string]int, len(seatOrder)),
		HeartsBroken:  false,
		SeatOrder:     append([]string(nil), seatOrder...),
		TrickNumber:   0,
	}
	for i, userID := range seatOrder {
		state.Hands[userID] = hands[i]
		state.RoundScores[userID] = 0
	}

	starter := state.HolderOfTwoOfClubs()
	if state.PassDirection == models.PassHold {
		state.Phase = models.PhasePlaying
		state.TurnUserID = starter
		state.TrickStarterID = starter
	} else {
		state.Phase = models.PhasePassing
	}
	return state, nil
}

// RecordPass stores a validated pass_cards submission. Call ValidatePass
// first; this does not re-check legality.
func RecordPass(state *models.SessionState, userID string, cards []models.Card) {
	state.PassedCards[userID] = append([]models.Card(nil), cards...)
}

// PassReady reports whether every seated user has submitted their three cards.
func PassReady(state *models.SessionState) bool {
	for _, userID := range state.SeatOrder {
		if len(state.PassedCards[userID]) != 3 {
			return false
		}
	}
	return true
}

// ResolvePass moves each sender's three submitted cards to their recipient's
// hand (per the round's passing direction), sorts every hand, switches the
// phase to playing, and sets turn_user_id to whoever now holds 2♣.
func ResolvePass(state *models.SessionState) {
	incoming := make(map[string][]models.Card, len(state.SeatOrder))
	for i, senderID := range state.SeatOrder {
		seat := i + 1
		recipientSeat := RecipientSeat(seat, state.PassDirection)
		recipientID := state.UserAtSeat(recipientSeat)
		cards := state.PassedCards[senderID]
		for _, c := range cards {
			state.RemoveFromHand(senderID, c)
		}
		incoming[recipientID] = append(incoming[recipientID], cards...)
	}
	for userID, cards := range incoming {
		state.Hands[userID] = append(state.Hands[userID], cards...)
		models.SortCards(state.Hands[userID])
	}
	state.PassedCards = make(map[string][]models.Card, len(state.SeatOrder))

	starter := state.HolderOfTwoOfClubs()
	state.Phase = models.PhasePlaying
	state.TurnUserID = starter
	state.TrickStarterID = starter
}

// ApplyPlay mutates state to reflect a validated play: the card leaves u's
// hand, joins the current trick, sets lead_suit on the opening play of a
// trick, and flips hearts_broken the first time a point card lands.
func ApplyPlay(state *models.SessionState, userID string, card models.Card) {
	state.RemoveFromHand(userID, card)
	if len(state.CurrentTrick) == 0 {
		suit := card.Suit
		state.LeadSuit = &suit
	}
	state.CurrentTrick = append(state.CurrentTrick, models.TrickCard{UserID: userID, Card: card})
	if card.Suit == models.Hearts || (card.Suit == models.Spades && card.Rank == models.Queen) {
		state.HeartsBroken = true
	}
}

// TrickComplete reports whether the current trick has all four plays.
func TrickComplete(state *models.SessionState) bool {
	return len(state.CurrentTrick) == len(state.SeatOrder)
}

// CompleteTrick scores the finished trick, banking its points on the
// winner, clears the trick, and sets the winner to lead the next one.
func CompleteTrick(state *models.SessionState) (winnerID string, points int, err error) {
	var leadSuit models.Suit
	if state.LeadSuit != nil {
		leadSuit = *state.LeadSuit
	}
	winner, err := TrickWinner(state.CurrentTrick, leadSuit)
	if err != nil {
		return "", 0, err
	}
	points = TrickPoints(state.CurrentTrick)
	state.RoundScores[winner.UserID] += points

	state.CurrentTrick = nil
	state.LeadSuit = nil
	state.TurnUserID = winner.UserID
	state.TrickStarterID = winner.UserID
	state.TrickNumber++

	return winner.UserID, points, nil
}

// RoundComplete reports whether every hand has been played out.
func RoundComplete(state *models.SessionState) bool {
	return state.AllHandsEmpty()
}

// RoundResult is the outcome of CompleteRound: per-user score deltas, and
// the shooter's user id if shoot-the-moon occurred this round.
type RoundResult struct {
	Deltas      map[string]int
	ShotTheMoon string
}

// CompleteRound computes final per-user deltas for the round. A user who
// banked all 26 points (shoot the moon) gets delta 0 while every other
// seated user gets +26; otherwise each user's delta is simply their
// round_scores tally.
func CompleteRound(state *models.SessionState) RoundResult {
	result := RoundResult{Deltas: make(map[string]int, len(state.SeatOrder))}

	shooter := ""
	for userID, score := range state.RoundScores {
		if score == 26 {
			shooter = userID
			break
		}
	}

	if shooter != "" {
		result.ShotTheMoon = shooter
		for _, userID := range state.SeatOrder {
			if userID == shooter {
				result.Deltas[userID] = 0
			} else {
				result.Deltas[userID] = 26
			}
		}
		return result
	}

	for _, userID := range state.SeatOrder {
		result.Deltas[userID] = state.RoundScores[userID]
	}
	return result
}

// GameOverResult is the outcome of DetermineGameOver.
type GameOverResult struct {
	Over     bool
	WinnerID string
}

// DetermineGameOver checks whether any seated user's total_score has
// reached the game-ending threshold (>=100) after a round. The winner is
// whoever has the lowest total; ties are broken by the lowest seat number.
func DetermineGameOver(totals map[string]int, seatOrder []string) GameOverResult {
	crossed := false
	for _, t := range totals {
		if t >= 100 {
			crossed = true
			break
		}
	}
	if !crossed {
		return GameOverResult{Over: false}
	}

	winner := ""
	best := 0
	for _, userID := range seatOrder {
		t, ok := totals[userID]
		if !ok {
			continue
		}
		if winner == "" || t < best {
			winner = userID
			best = t
		}
	}
	return GameOverResult{Over: true, WinnerID: winner}
}
