package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"hearts-server/engine"
	"hearts-server/internal/db"
	"hearts-server/internal/validation"
	"hearts-server/models"
)

// interTrickPause is how long the coordinator waits after a trick completes
// before starting the next one (or ending the round), so clients have time
// to render the finished trick.
const interTrickPause = 2500 * time.Millisecond

// TableCoordinator is the per-table state machine described in spec.md
// §4.E. All mutation of Session State for this table goes through it.
type TableCoordinator struct {
	tableID string
	manager *Manager

	mu sync.Mutex // serializes message handling within this process

	disconnectMu    sync.Mutex
	disconnectTimer *time.Timer
}

func newTableCoordinator(tableID string, m *Manager) *TableCoordinator {
	return &TableCoordinator{tableID: tableID, manager: m}
}

// HandleMessage dispatches one inbound WS frame from an authenticated,
// seated user.
func (tc *TableCoordinator) HandleMessage(ctx context.Context, userID string, raw []byte) {
	var msg models.InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("[COORDINATOR] table=%s user=%s malformed frame: %v", tc.tableID, userID, err)
		return
	}

	if err := validation.ValidateInboundEvent(msg.Event); err != nil {
		tc.sendError(userID, "Unrecognized event.")
		return
	}

	switch msg.Event {
	case models.EventRequestInitialState:
		tc.handleRequestInitialState(ctx, userID)
	case models.EventPassCards:
		if tc.manager.ActionLimiter != nil && !tc.manager.ActionLimiter.AllowAction(userID) {
			tc.sendError(userID, "Too many actions, slow down.")
			return
		}
		for _, card := range msg.Cards {
			if err := validation.ValidateCardString(card); err != nil {
				tc.sendError(userID, "Malformed card in pass.")
				return
			}
		}
		tc.handlePassCards(ctx, userID, msg.Cards)
	case models.EventPlayCard:
		if tc.manager.ActionLimiter != nil && !tc.manager.ActionLimiter.AllowAction(userID) {
			tc.sendError(userID, "Too many actions, slow down.")
			return
		}
		if err := validation.ValidateCardString(msg.Card); err != nil {
			tc.sendError(userID, "Malformed card.")
			return
		}
		tc.handlePlayCard(ctx, userID, msg.Card)
	default:
		log.Printf("[COORDINATOR] table=%s user=%s unknown event %q", tc.tableID, userID, msg.Event)
	}
}

func (tc *TableCoordinator) sendError(userID, message string) {
	if err := tc.manager.Registry.Send(tc.tableID, userID, models.NewErrorFrame(message)); err != nil {
		log.Printf("[COORDINATOR] failed to send error frame to user=%s: %v", userID, err)
	}
}

// handleRequestInitialState answers only the requester with a masked
// snapshot of the live Session State.
func (tc *TableCoordinator) handleRequestInitialState(ctx context.Context, userID string) {
	state, err := tc.manager.Store.Load(ctx, tc.tableID)
	if err != nil {
		tc.sendError(userID, "No active game state for this table yet.")
		return
	}
	frame := buildStateSnapshot(state, userID)
	if err := tc.manager.Registry.Send(tc.tableID, userID, frame); err != nil {
		log.Printf("[COORDINATOR] failed to send state snapshot to user=%s: %v", userID, err)
	}
}

// withLock runs fn holding both the in-process mutex and, across the
// load/save round trip only, the distributed table lock. fn returns the
// state to persist, or (nil, nil) to delete the table's Session State.
func (tc *TableCoordinator) withLock(ctx context.Context, fn func(state *models.SessionState) (*models.SessionState, error)) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	lock, err := tc.manager.Locks.AcquireGameLock(ctx, tc.tableID)
	if err != nil {
		return fmt.Errorf("acquire table lock: %w", err)
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			log.Printf("[COORDINATOR] failed to release lock for table=%s: %v", tc.tableID, err)
		}
	}()

	state, err := tc.manager.Store.Load(ctx, tc.tableID)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	newState, err := fn(state)
	if err != nil {
		return err
	}
	if newState == nil {
		return tc.manager.Store.Delete(ctx, tc.tableID)
	}
	return tc.manager.Store.Save(ctx, tc.tableID, newState)
}

// withRetry runs fn through withLock, retrying once on a transient
// store/repository failure. A rule violation (userFacingError) is never
// retried. If the retry also fails, the failure is fatal for the table per
// spec.md §7: a generic error is broadcast to every seat and the table is
// finished without a winner.
func (tc *TableCoordinator) withRetry(ctx context.Context, fn func(state *models.SessionState) (*models.SessionState, error)) error {
	err := tc.withLock(ctx, fn)
	if err == nil {
		return nil
	}
	if _, ok := err.(userFacingError); ok {
		return err
	}

	log.Printf("[COORDINATOR] table=%s transient failure, retrying once: %v", tc.tableID, err)
	err = tc.withLock(ctx, fn)
	if err == nil {
		return nil
	}
	if _, ok := err.(userFacingError); ok {
		return err
	}

	tc.failTable(ctx, err)
	return err
}

// failTable ends a table after a second consecutive transient failure:
// every seat gets a broadcast error frame, the game row is marked finished
// with no winner, the session state is deleted, every live connection is
// closed, and the in-memory coordinator is retired.
func (tc *TableCoordinator) failTable(ctx context.Context, cause error) {
	log.Printf("[COORDINATOR] table=%s fatal after retry, ending without a winner: %v", tc.tableID, cause)
	tc.broadcast(models.NewErrorFrame("This table hit an unrecoverable error and has ended."))
	if err := tc.manager.Repo.UpdateGameStatus(ctx, tc.tableID, db.StatusFinished); err != nil {
		log.Printf("[COORDINATOR] table=%s failed to mark finished after fatal error: %v", tc.tableID, err)
	}
	if err := tc.manager.Store.Delete(ctx, tc.tableID); err != nil {
		log.Printf("[COORDINATOR] table=%s failed to delete session state after fatal error: %v", tc.tableID, err)
	}
	tc.manager.Registry.CloseAll(tc.tableID)
	tc.manager.drop(tc.tableID)
}

func (tc *TableCoordinator) handlePassCards(ctx context.Context, userID string, cardStrs []string) {
	cards, err := parseCards(cardStrs)
	if err != nil {
		tc.sendError(userID, err.Error())
		return
	}

	var (
		resolved   bool
		afterState *models.SessionState
	)

	err = tc.withRetry(ctx, func(state *models.SessionState) (*models.SessionState, error) {
		if verr := engine.ValidatePass(state, userID, cards); verr != nil {
			return nil, userFacingError{verr}
		}
		engine.RecordPass(state, userID, cards)
		if engine.PassReady(state) {
			engine.ResolvePass(state)
			resolved = true
		}
		afterState = state
		return state, nil
	})
	if err != nil {
		tc.reportHandlerError(userID, err)
		return
	}

	tc.manager.History.RecordCardsPassed(ctx, tc.tableID, noRoundID, userID)

	if !resolved {
		return
	}

	counts := make(map[string]int, len(afterState.SeatOrder))
	for _, uid := range afterState.SeatOrder {
		counts[uid] = afterState.HandSize(uid)
	}
	for _, uid := range afterState.SeatOrder {
		frame := models.CardsPassedUpdateFrame{
			Event:      models.EventCardsPassedUpdate,
			CardCounts: counts,
			Hand:       renderCards(afterState.Hands[uid]),
		}
		if err := tc.manager.Registry.Send(tc.tableID, uid, frame); err != nil {
			log.Printf("[COORDINATOR] failed to send cards_passed_update to user=%s: %v", uid, err)
		}
	}
	tc.broadcast(models.YourTurnFrame{Event: models.EventYourTurn, UserID: afterState.TurnUserID})
}

func (tc *TableCoordinator) handlePlayCard(ctx context.Context, userID, cardStr string) {
	card, err := models.ParseCard(cardStr)
	if err != nil {
		tc.sendError(userID, "Malformed card.")
		return
	}

	var (
		trickCompleted bool
		winnerID       string
		points         int
		afterPlay      *models.SessionState
	)

	err = tc.withRetry(ctx, func(state *models.SessionState) (*models.SessionState, error) {
		if verr := engine.ValidatePlay(state, userID, card); verr != nil {
			return nil, userFacingError{verr}
		}
		engine.ApplyPlay(state, userID, card)

		if engine.TrickComplete(state) {
			w, p, err := engine.CompleteTrick(state)
			if err != nil {
				return nil, err
			}
			winnerID, points, trickCompleted = w, p, true
		}
		afterPlay = state
		return state, nil
	})
	if err != nil {
		tc.reportHandlerError(userID, err)
		return
	}

	tc.broadcast(models.CardPlayedFrame{
		Event:        models.EventCardPlayed,
		PlayerID:     userID,
		Card:         cardStr,
		CurrentTrick: renderTrick(afterPlay.CurrentTrick),
	})
	tc.manager.History.RecordCardPlayed(ctx, tc.tableID, noRoundID, userID, cardStr)

	if !trickCompleted {
		return
	}

	tc.broadcast(models.TrickEndFrame{Event: models.EventTrickEnd, WinnerID: winnerID, Points: points})
	tc.manager.History.RecordTrickEnded(ctx, tc.tableID, noRoundID, winnerID, points)

	go tc.afterTrick(afterPlay.RoundNumber)
}

// noRoundID is passed to history calls that have no Round database row yet
// (the round row is only created once the round completes, per spec.md
// §3's Round entity); these events are still tied to the table.
const noRoundID = ""

// afterTrick runs the inter-trick pause and then either starts the next
// trick or finishes the round, outside the table lock for the duration of
// the sleep as spec.md §5 requires.
func (tc *TableCoordinator) afterTrick(roundNumber int) {
	time.Sleep(interTrickPause)
	ctx := context.Background()

	var (
		roundOver bool
		gameOver  bool
		winnerID  string
		deltas    map[string]int
		totals    map[string]int
		shooter   string
		nextTurn  string
	)

	err := tc.withRetry(ctx, func(state *models.SessionState) (*models.SessionState, error) {
		if !engine.RoundComplete(state) {
			nextTurn = state.TurnUserID
			return state, nil
		}
		roundOver = true

		result := engine.CompleteRound(state)
		deltas = result.Deltas
		shooter = result.ShotTheMoon

		if err := tc.persistRoundResult(ctx, state, result); err != nil {
			return nil, err
		}

		totalsByUser, err := tc.totalsMap(ctx)
		if err != nil {
			return nil, err
		}
		totals = totalsByUser

		outcome := engine.DetermineGameOver(totalsByUser, state.SeatOrder)
		if outcome.Over {
			gameOver = true
			winnerID = outcome.WinnerID
			if err := tc.manager.Repo.EndGame(ctx, tc.tableID, winnerID); err != nil {
				return nil, err
			}
			return nil, nil
		}

		next, err := engine.StartRound(state.SeatOrder, state.RoundNumber+1)
		if err != nil {
			return nil, err
		}
		return next, nil
	})
	if err != nil {
		// withRetry already logged and, if this was the second consecutive
		// failure, broadcast the fatal error and retired the table.
		return
	}

	if !roundOver {
		tc.broadcast(models.YourTurnFrame{Event: models.EventYourTurn, UserID: nextTurn})
		return
	}

	var shooterPtr *string
	if shooter != "" {
		shooterPtr = &shooter
	}
	tc.broadcast(models.RoundEndSummaryFrame{
		Event:       models.EventRoundEndSummary,
		RoundNumber: roundNumber,
		Deltas:      deltas,
		Totals:      totals,
		ShotTheMoon: shooterPtr,
	})
	tc.manager.History.RecordRoundEnded(ctx, tc.tableID, noRoundID, deltas, shooter)

	if gameOver {
		tc.broadcast(models.GameOverFrame{Event: models.EventGameOver, WinnerID: winnerID, Totals: totals})
		tc.manager.History.RecordGameOver(ctx, tc.tableID, winnerID, totals)
		tc.manager.drop(tc.tableID)
		return
	}

	state, err := tc.manager.Store.Load(ctx, tc.tableID)
	if err != nil {
		log.Printf("[COORDINATOR] failed to reload state for table=%s after round start: %v", tc.tableID, err)
		return
	}
	if state.Phase == models.PhasePlaying {
		tc.broadcast(models.YourTurnFrame{Event: models.EventYourTurn, UserID: state.TurnUserID})
	}
}

func (tc *TableCoordinator) totalsMap(ctx context.Context) (map[string]int, error) {
	seated, err := tc.manager.Repo.GetSeatedPlayers(ctx, tc.tableID)
	if err != nil {
		return nil, err
	}
	totals := make(map[string]int, len(seated))
	for _, s := range seated {
		totals[s.UserID] = s.TotalScore
	}
	return totals, nil
}

// persistRoundResult writes the completed round's score rows and running
// totals as a single transaction: one CreateRound, up to four
// RecordRoundScore, and up to four AddTotalScore writes all commit together
// or not at all, so a failure partway through never leaves a round half
// persisted.
func (tc *TableCoordinator) persistRoundResult(ctx context.Context, state *models.SessionState, result engine.RoundResult) error {
	return tc.manager.Repo.Transaction(ctx, func(txRepo db.Repository) error {
		round, err := txRepo.CreateRound(ctx, tc.tableID, state.RoundNumber)
		if err != nil {
			return fmt.Errorf("create round: %w", err)
		}
		for userID, delta := range result.Deltas {
			if err := txRepo.RecordRoundScore(ctx, round.ID, userID, delta); err != nil {
				return fmt.Errorf("record round score: %w", err)
			}
			if err := txRepo.AddTotalScore(ctx, tc.tableID, userID, delta); err != nil {
				return fmt.Errorf("add total score: %w", err)
			}
		}
		return nil
	})
}

// startRound deals a fresh round and persists it, used for round 1 (called
// from Manager.startTable) where there is no prior trick to wait behind.
func (tc *TableCoordinator) startRound(ctx context.Context, roundNumber int) error {
	seated, err := tc.manager.Repo.GetSeatedPlayers(ctx, tc.tableID)
	if err != nil {
		return fmt.Errorf("get seated players: %w", err)
	}
	seatOrder := make([]string, len(seated))
	for i, s := range seated {
		seatOrder[i] = s.UserID
	}

	return tc.withLock(ctx, func(_ *models.SessionState) (*models.SessionState, error) {
		return engine.StartRound(seatOrder, roundNumber)
	})
}

func (tc *TableCoordinator) broadcast(frame interface{}) {
	if err := tc.manager.Registry.Broadcast(tc.tableID, frame); err != nil {
		log.Printf("[COORDINATOR] broadcast failed for table=%s: %v", tc.tableID, err)
	}
}

// reportHandlerError sends rule violations privately to the offender
// without mutating state. Anything else reaching here is a transient
// store/repository failure that withRetry has already retried once and,
// on a second failure, already broadcast to the whole table and made fatal
// for the table — so there is nothing left to notify the offender about.
func (tc *TableCoordinator) reportHandlerError(userID string, err error) {
	if ufe, ok := err.(userFacingError); ok {
		tc.sendError(userID, ufe.err.Error())
		return
	}
	log.Printf("[COORDINATOR] table=%s user=%s internal error: %v", tc.tableID, userID, err)
}

type userFacingError struct{ err error }

func (u userFacingError) Error() string { return u.err.Error() }

func parseCards(raw []string) ([]models.Card, error) {
	cards := make([]models.Card, 0, len(raw))
	for _, s := range raw {
		c, err := models.ParseCard(s)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}

func renderCards(cards []models.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.String()
	}
	return out
}

func renderTrick(trick []models.TrickCard) []models.TrickCardView {
	out := make([]models.TrickCardView, len(trick))
	for i, c := range trick {
		out[i] = models.TrickCardView{UserID: c.UserID, Card: c.Card.String()}
	}
	return out
}
