package coordinator

import (
	"context"
	"fmt"

	"hearts-server/internal/db"
	"hearts-server/models"
)

// buildStateSnapshot masks Session State for one recipient: their own hand
// is a card list, every other hand is a bare count, per spec.md §6.
func buildStateSnapshot(state *models.SessionState, recipientID string) models.StateSnapshotFrame {
	hands := make(map[string]models.HandView, len(state.SeatOrder))
	for userID, hand := range state.Hands {
		if userID == recipientID {
			hands[userID] = models.HandView{Cards: renderCards(hand), Count: len(hand)}
		} else {
			hands[userID] = models.HandView{Count: len(hand)}
		}
	}

	return models.StateSnapshotFrame{
		Event:         models.EventStateSnapshot,
		RoundNumber:   state.RoundNumber,
		Phase:         state.Phase,
		Hands:         hands,
		PassDirection: state.PassDirection,
		CurrentTrick:  renderTrick(state.CurrentTrick),
		LeadSuit:      state.LeadSuit,
		TurnUserID:    state.TurnUserID,
		RoundScores:   state.RoundScores,
		HeartsBroken:  state.HeartsBroken,
	}
}

// buildPlayerViews renders the player_update payload: every seated user's
// id, username, seat number and total score. Card counts are not filled in.
func buildPlayerViews(ctx context.Context, repo db.Repository, tableID string, seated []db.SeatedPlayer) ([]models.PlayerView, error) {
	players := make([]models.PlayerView, 0, len(seated))
	for _, s := range seated {
		user, err := repo.GetUserByID(ctx, s.UserID)
		if err != nil {
			return nil, fmt.Errorf("get user %s: %w", s.UserID, err)
		}
		players = append(players, models.PlayerView{
			User:       models.UserView{ID: user.ID, Username: user.Username},
			SeatNumber: s.SeatNumber,
			TotalScore: s.TotalScore,
		})
	}
	return players, nil
}

func playerUpdateFrame(players []models.PlayerView) models.PlayerUpdateFrame {
	return models.PlayerUpdateFrame{Event: models.EventPlayerUpdate, Players: players}
}

// BuildGameSnapshot assembles the REST-visible Game snapshot (table plus
// rounds) for GET /games/{id} and POST /games/find-or-create's response.
func BuildGameSnapshot(ctx context.Context, repo db.Repository, tableID string) (*models.GameSnapshot, error) {
	table, err := repo.GetGame(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("get game: %w", err)
	}

	seated, err := repo.GetSeatedPlayers(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("get seated players: %w", err)
	}

	players, err := buildPlayerViews(ctx, repo, tableID, seated)
	if err != nil {
		return nil, err
	}

	rounds, err := repo.GetRoundsWithScores(ctx, tableID)
	if err != nil {
		return nil, fmt.Errorf("get rounds: %w", err)
	}
	roundViews := make([]models.RoundView, 0, len(rounds))
	for _, r := range rounds {
		scores := make([]models.ScoreEntry, 0, len(r.Scores))
		for _, s := range r.Scores {
			scores = append(scores, models.ScoreEntry{UserID: s.UserID, Score: s.Delta})
		}
		roundViews = append(roundViews, models.RoundView{ID: r.ID, RoundNumber: r.RoundNumber, Scores: scores})
	}

	return &models.GameSnapshot{
		ID:        table.ID,
		Status:    table.Status,
		CreatedAt: table.CreatedAt,
		Players:   players,
		Winner:    table.WinnerID,
		Rounds:    roundViews,
	}, nil
}
