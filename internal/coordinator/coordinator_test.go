package coordinator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"hearts-server/internal/db"
	"hearts-server/internal/history"
	"hearts-server/internal/ratelimit"
	"hearts-server/internal/registry"
	"hearts-server/internal/store"
	"hearts-server/models"
)

func newTestManager(repo *fakeRepository) *Manager {
	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerSecond: 1000, BurstSize: 1000, CleanupInterval: time.Hour})
	return NewManager(repo, store.NewMemoryStore(), registry.New(), noopLocker{}, history.NewTracker(repo), 30*time.Second, limiter)
}

func attachClient(reg *registry.Registry, tableID, userID string) *registry.Client {
	c := registry.NewClient(nil, tableID, userID)
	reg.Attach(c)
	return c
}

func recvFrame(t *testing.T, c *registry.Client, timeout time.Duration) map[string]interface{} {
	t.Helper()
	select {
	case raw := <-c.Send:
		var frame map[string]interface{}
		if err := json.Unmarshal(raw, &frame); err != nil {
			t.Fatalf("failed to unmarshal frame: %v", err)
		}
		return frame
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for frame for user=%s", c.UserID)
		return nil
	}
}

func TestHandlePassCardsResolvesOnceAllFourSubmit(t *testing.T) {
	repo := newFakeRepository()
	const tableID = "table-pass"
	repo.seatFour(tableID, [4]string{"a", "b", "c", "d"})

	mgr := newTestManager(repo)
	tc := mgr.For(tableID)
	ctx := context.Background()

	hands := map[string][]models.Card{
		"a": {models.TwoOfClubs, card(models.Five, models.Hearts), card(models.Nine, models.Clubs)},
		"b": {card(models.Four, models.Clubs), card(models.King, models.Hearts), card(models.Three, models.Diamonds)},
		"c": {card(models.Seven, models.Clubs), card(models.Ace, models.Spades), card(models.Six, models.Diamonds)},
		"d": {card(models.Jack, models.Clubs), card(models.Queen, models.Spades), card(models.Ten, models.Diamonds)},
	}
	state := &models.SessionState{
		RoundNumber:   1,
		Phase:         models.PhasePassing,
		Hands:         hands,
		PassedCards:   make(map[string][]models.Card),
		PassDirection: models.PassHold,
		RoundScores:   map[string]int{"a": 0, "b": 0, "c": 0, "d": 0},
		SeatOrder:     []string{"a", "b", "c", "d"},
	}
	if err := mgr.Store.Save(ctx, tableID, state); err != nil {
		t.Fatalf("seed state: %v", err)
	}

	clients := map[string]*registry.Client{}
	for uid := range hands {
		clients[uid] = attachClient(mgr.Registry, tableID, uid)
	}

	for uid, hand := range hands {
		cardStrs := make([]string, len(hand))
		for i, c := range hand {
			cardStrs[i] = c.String()
		}
		raw, _ := json.Marshal(models.InboundMessage{Event: models.EventPassCards, Cards: cardStrs})
		tc.HandleMessage(ctx, uid, raw)
	}

	for uid, c := range clients {
		frame := recvFrame(t, c, time.Second)
		if frame["event"] != models.EventCardsPassedUpdate {
			t.Fatalf("expected cards_passed_update for %s, got %v", uid, frame["event"])
		}
	}

	final, err := mgr.Store.Load(ctx, tableID)
	if err != nil {
		t.Fatalf("load final state: %v", err)
	}
	if final.Phase != models.PhasePlaying {
		t.Fatalf("expected phase playing after pass resolves, got %s", final.Phase)
	}
	if final.TurnUserID != "a" {
		t.Fatalf("expected a (2♣ holder) to lead, got %s", final.TurnUserID)
	}

	sawYourTurn := false
	for _, c := range clients {
		select {
		case raw := <-c.Send:
			var frame map[string]interface{}
			json.Unmarshal(raw, &frame)
			if frame["event"] == models.EventYourTurn {
				sawYourTurn = true
			}
		default:
		}
	}
	if !sawYourTurn {
		t.Fatalf("expected a your_turn broadcast once passing resolved")
	}
}

func TestHandlePlayCardOutOfTurnSendsPrivateError(t *testing.T) {
	repo := newFakeRepository()
	const tableID = "table-badturn"
	repo.seatFour(tableID, [4]string{"a", "b", "c", "d"})

	mgr := newTestManager(repo)
	tc := mgr.For(tableID)
	ctx := context.Background()

	state := &models.SessionState{
		RoundNumber: 1,
		Phase:       models.PhasePlaying,
		TurnUserID:  "a",
		Hands: map[string][]models.Card{
			"a": {models.TwoOfClubs},
			"b": {card(models.Five, models.Hearts)},
			"c": {card(models.Six, models.Hearts)},
			"d": {card(models.Seven, models.Hearts)},
		},
		PassedCards: make(map[string][]models.Card),
		RoundScores: map[string]int{"a": 0, "b": 0, "c": 0, "d": 0},
		SeatOrder:   []string{"a", "b", "c", "d"},
	}
	if err := mgr.Store.Save(ctx, tableID, state); err != nil {
		t.Fatalf("seed state: %v", err)
	}

	offender := attachClient(mgr.Registry, tableID, "b")

	raw, _ := json.Marshal(models.InboundMessage{Event: models.EventPlayCard, Card: card(models.Five, models.Hearts).String()})
	tc.HandleMessage(ctx, "b", raw)

	frame := recvFrame(t, offender, time.Second)
	if frame["event"] != models.EventError {
		t.Fatalf("expected error frame for out-of-turn play, got %v", frame["event"])
	}

	unchanged, err := mgr.Store.Load(ctx, tableID)
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	if unchanged.TurnUserID != "a" || unchanged.HandSize("b") != 1 {
		t.Fatalf("rejected play must not mutate state, got turn=%s b_hand=%d", unchanged.TurnUserID, unchanged.HandSize("b"))
	}
}

func TestFinalTrickEndsRoundAndGame(t *testing.T) {
	repo := newFakeRepository()
	const tableID = "table-gameover"
	repo.seatFour(tableID, [4]string{"a", "b", "c", "d"})
	setTotals := map[string]int{"a": 97, "b": 50, "c": 50, "d": 50}
	for i, s := range repo.seats[tableID] {
		repo.seats[tableID][i].TotalScore = setTotals[s.UserID]
	}

	mgr := newTestManager(repo)
	tc := mgr.For(tableID)
	ctx := context.Background()

	// Last trick of the round: one heart each, a leads and wins with the King.
	state := &models.SessionState{
		RoundNumber:  7,
		TrickNumber:  12,
		Phase:        models.PhasePlaying,
		TurnUserID:   "a",
		TrickStarterID: "a",
		HeartsBroken: true,
		Hands: map[string][]models.Card{
			"a": {card(models.King, models.Hearts)},
			"b": {card(models.Four, models.Hearts)},
			"c": {card(models.Two, models.Hearts)},
			"d": {card(models.Three, models.Hearts)},
		},
		PassedCards: make(map[string][]models.Card),
		RoundScores: map[string]int{"a": 0, "b": 0, "c": 0, "d": 0},
		SeatOrder:   []string{"a", "b", "c", "d"},
	}
	if err := mgr.Store.Save(ctx, tableID, state); err != nil {
		t.Fatalf("seed state: %v", err)
	}

	clients := map[string]*registry.Client{}
	for uid := range state.Hands {
		clients[uid] = attachClient(mgr.Registry, tableID, uid)
	}

	playOrder := []string{"a", "b", "c", "d"}
	for _, uid := range playOrder {
		cardStr := state.Hands[uid][0].String()
		raw, _ := json.Marshal(models.InboundMessage{Event: models.EventPlayCard, Card: cardStr})
		tc.HandleMessage(ctx, uid, raw)
		// Drain the card_played broadcast each play produces.
		for _, c := range clients {
			recvFrame(t, c, time.Second)
		}
	}

	// Trick-end broadcast (a wins with K♥, 4 points banked).
	for _, c := range clients {
		frame := recvFrame(t, c, time.Second)
		if frame["event"] != models.EventTrickEnd {
			t.Fatalf("expected trick_end, got %v", frame["event"])
		}
		if frame["winner_id"] != "a" {
			t.Fatalf("expected a to win the trick, got %v", frame["winner_id"])
		}
	}

	// Round-end summary follows after the inter-trick pause.
	for _, c := range clients {
		frame := recvFrame(t, c, 4*time.Second)
		if frame["event"] != models.EventRoundEndSummary {
			t.Fatalf("expected round_end_summary, got %v", frame["event"])
		}
	}

	// a's total (97+4=101) crosses the threshold; b is the lowest of the rest.
	for _, c := range clients {
		frame := recvFrame(t, c, time.Second)
		if frame["event"] != models.EventGameOver {
			t.Fatalf("expected game_over, got %v", frame["event"])
		}
		if frame["winner_id"] != "b" {
			t.Fatalf("expected b to win on lowest total, got %v", frame["winner_id"])
		}
	}

	finalGame, err := repo.GetGame(ctx, tableID)
	if err != nil {
		t.Fatalf("get game: %v", err)
	}
	if finalGame.Status != db.StatusFinished {
		t.Fatalf("expected table marked finished, got %s", finalGame.Status)
	}
	if finalGame.WinnerID == nil || *finalGame.WinnerID != "b" {
		t.Fatalf("expected winner_id b persisted, got %v", finalGame.WinnerID)
	}
}
