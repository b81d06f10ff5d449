// Package history records the audit trail behind the GET /games/{id}/events
// endpoint — one append-only row per notable thing that happens at a table.
// Adapted from the teacher's internal/server/history/tracker.go, retargeted
// from hand-sequenced poker actions onto table-sequenced Hearts events and
// from a raw db.DB handle onto the Repository interface.
package history

import (
	"context"
	"log"
	"sync"

	"hearts-server/internal/db"
)

// Event type names written to game_events.
const (
	EventRoundStarted      = "round_started"
	EventCardsPassed       = "cards_passed"
	EventCardPlayed        = "card_played"
	EventTrickEnded        = "trick_ended"
	EventRoundEnded        = "round_ended"
	EventGameOver          = "game_over"
	EventPlayerDisconnected = "player_disconnected"
	EventPlayerReconnected  = "player_reconnected"
)

// Tracker assigns a monotonically increasing sequence number per table and
// writes each event through the Repository.
type Tracker struct {
	repo db.Repository
	mu   sync.Mutex
	seqs map[string]int // table id -> next sequence number
}

func NewTracker(repo db.Repository) *Tracker {
	return &Tracker{repo: repo, seqs: make(map[string]int)}
}

func (t *Tracker) nextSeq(tableID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	seq := t.seqs[tableID]
	t.seqs[tableID] = seq + 1
	return seq
}

// ResetTable sets the table's in-memory sequence counter to startAt, so the
// next recorded event for that table gets that sequence number.
func (t *Tracker) ResetTable(tableID string, startAt int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seqs[tableID] = startAt
}

// RecordEvent writes one event row, logging but not failing the caller's
// operation if persistence errors — history is supplementary to the live
// game, never a gate on it.
func (t *Tracker) RecordEvent(ctx context.Context, tableID string, roundID *string, eventType string, userID *string, metadata map[string]interface{}) {
	seq := t.nextSeq(tableID)
	if err := t.repo.RecordEvent(ctx, tableID, roundID, seq, eventType, userID, metadata); err != nil {
		log.Printf("[HISTORY] failed to record %s for table %s: %v", eventType, tableID, err)
	}
}

// roundIDPtr turns "" into a nil pointer: callers pass "" when no Round row
// exists yet for the current round (it is only created once the round
// completes), and a nil round id is how GameEvent represents that.
func roundIDPtr(roundID string) *string {
	if roundID == "" {
		return nil
	}
	return &roundID
}

func (t *Tracker) RecordRoundStarted(ctx context.Context, tableID, roundID string, roundNumber int, passDirection string) {
	t.RecordEvent(ctx, tableID, roundIDPtr(roundID), EventRoundStarted, nil, map[string]interface{}{
		"round_number":   roundNumber,
		"pass_direction": passDirection,
	})
}

func (t *Tracker) RecordCardsPassed(ctx context.Context, tableID, roundID, userID string) {
	t.RecordEvent(ctx, tableID, roundIDPtr(roundID), EventCardsPassed, &userID, nil)
}

func (t *Tracker) RecordCardPlayed(ctx context.Context, tableID, roundID, userID, card string) {
	t.RecordEvent(ctx, tableID, roundIDPtr(roundID), EventCardPlayed, &userID, map[string]interface{}{"card": card})
}

func (t *Tracker) RecordTrickEnded(ctx context.Context, tableID, roundID, winnerID string, points int) {
	t.RecordEvent(ctx, tableID, roundIDPtr(roundID), EventTrickEnded, &winnerID, map[string]interface{}{"points": points})
}

func (t *Tracker) RecordRoundEnded(ctx context.Context, tableID, roundID string, deltas map[string]int, shotTheMoon string) {
	metadata := map[string]interface{}{"deltas": deltas}
	if shotTheMoon != "" {
		metadata["shot_the_moon"] = shotTheMoon
	}
	t.RecordEvent(ctx, tableID, roundIDPtr(roundID), EventRoundEnded, nil, metadata)
}

func (t *Tracker) RecordGameOver(ctx context.Context, tableID, winnerID string, finalScores map[string]int) {
	t.RecordEvent(ctx, tableID, nil, EventGameOver, &winnerID, map[string]interface{}{"final_scores": finalScores})
}

func (t *Tracker) RecordPlayerDisconnected(ctx context.Context, tableID, userID string) {
	t.RecordEvent(ctx, tableID, nil, EventPlayerDisconnected, &userID, nil)
}

func (t *Tracker) RecordPlayerReconnected(ctx context.Context, tableID, userID string) {
	t.RecordEvent(ctx, tableID, nil, EventPlayerReconnected, &userID, nil)
}
