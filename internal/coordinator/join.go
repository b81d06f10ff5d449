package coordinator

import (
	"context"
	"log"
	"time"

	"hearts-server/internal/db"
	"hearts-server/internal/registry"
)

// ErrNotSeated is returned by JoinChannel when the caller holds no seat at
// this table; the caller should close the socket with policy-violation.
type ErrNotSeated struct{}

func (ErrNotSeated) Error() string { return "user is not seated at this table" }

// JoinChannel attaches a newly-upgraded connection to this table, verifying
// the user already holds a seat (spec.md §4.E "Connection join"). If this
// brings all four seats to a live connection and no Session State exists
// yet, it deals round 1.
func (tc *TableCoordinator) JoinChannel(ctx context.Context, client *registry.Client) error {
	seated, err := tc.manager.Repo.GetSeatedPlayers(ctx, tc.tableID)
	if err != nil {
		return err
	}
	found := false
	for _, s := range seated {
		if s.UserID == client.UserID {
			found = true
			break
		}
	}
	if !found {
		return ErrNotSeated{}
	}

	tc.cancelDisconnectTimer()
	tc.manager.Registry.Attach(client)
	tc.manager.History.RecordPlayerReconnected(ctx, tc.tableID, client.UserID)

	tc.broadcastPlayerUpdate(ctx, seated)

	if len(seated) == 4 && tc.allSeatsLive(seated) {
		if _, err := tc.manager.Store.Load(ctx, tc.tableID); err != nil {
			if err := tc.startRound(ctx, 1); err != nil {
				log.Printf("[COORDINATOR] failed to start round for table=%s: %v", tc.tableID, err)
			}
		}
	}

	return nil
}

func (tc *TableCoordinator) allSeatsLive(seated []db.SeatedPlayer) bool {
	for _, s := range seated {
		if !tc.manager.Registry.IsConnected(tc.tableID, s.UserID) {
			return false
		}
	}
	return true
}

func (tc *TableCoordinator) broadcastPlayerUpdate(ctx context.Context, seated []db.SeatedPlayer) {
	players, err := buildPlayerViews(ctx, tc.manager.Repo, tc.tableID, seated)
	if err != nil {
		log.Printf("[COORDINATOR] failed to build player_update for table=%s: %v", tc.tableID, err)
		return
	}
	tc.broadcast(playerUpdateFrame(players))
}

// LeaveChannel detaches a connection. If it was the table's last live
// connection, starts the reconnection grace timer; if the timer fires with
// still nobody connected, the in-memory coordinator is freed.
func (tc *TableCoordinator) LeaveChannel(ctx context.Context, client *registry.Client) {
	tc.manager.Registry.Detach(client)
	tc.manager.History.RecordPlayerDisconnected(ctx, tc.tableID, client.UserID)

	seated, err := tc.manager.Repo.GetSeatedPlayers(ctx, tc.tableID)
	if err == nil {
		tc.broadcastPlayerUpdate(ctx, seated)
	}

	if tc.manager.Registry.LiveCount(tc.tableID) == 0 {
		tc.startDisconnectTimer()
	}
}

func (tc *TableCoordinator) startDisconnectTimer() {
	tc.disconnectMu.Lock()
	defer tc.disconnectMu.Unlock()
	if tc.disconnectTimer != nil {
		tc.disconnectTimer.Stop()
	}
	tc.disconnectTimer = time.AfterFunc(tc.manager.ReconnectGrace, tc.onGracePeriodElapsed)
}

func (tc *TableCoordinator) cancelDisconnectTimer() {
	tc.disconnectMu.Lock()
	defer tc.disconnectMu.Unlock()
	if tc.disconnectTimer != nil {
		tc.disconnectTimer.Stop()
		tc.disconnectTimer = nil
	}
}

func (tc *TableCoordinator) onGracePeriodElapsed() {
	if tc.manager.Registry.LiveCount(tc.tableID) > 0 {
		return
	}

	ctx := context.Background()
	table, err := tc.manager.Repo.GetGame(ctx, tc.tableID)
	if err == nil && table.Status == db.StatusFinished {
		if err := tc.manager.Store.Delete(ctx, tc.tableID); err != nil {
			log.Printf("[COORDINATOR] failed to delete finished table=%s state: %v", tc.tableID, err)
		}
	}

	log.Printf("[COORDINATOR] reconnection grace period elapsed for table=%s, freeing in-memory coordinator", tc.tableID)
	tc.manager.drop(tc.tableID)
}
