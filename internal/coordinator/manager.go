// Package coordinator is the session coordinator (component E): the
// per-table state machine that dispatches WS messages, drives the rules
// engine, and broadcasts outcomes. Grounded on the teacher's
// internal/server/game bridge + internal/server/events dispatch pattern,
// generalized from a global poker bridge into one coordinator per table.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hearts-server/internal/db"
	"hearts-server/internal/history"
	"hearts-server/internal/locks"
	"hearts-server/internal/ratelimit"
	"hearts-server/internal/registry"
	"hearts-server/internal/store"
)

// TableLock is the subset of *locks.Lock the coordinator needs, narrowed to
// an interface so tests can exercise the coordinator without a live Redis.
type TableLock interface {
	Release(ctx context.Context) error
	Extend(ctx context.Context, additional time.Duration) error
}

// TableLocker hands out the distributed lock (component H) guarding a
// table's read-modify-write cycle.
type TableLocker interface {
	AcquireGameLock(ctx context.Context, tableID string) (TableLock, error)
}

// redisLocker adapts *locks.Manager (whose AcquireGameLock returns the
// concrete *locks.Lock) to the TableLocker interface.
type redisLocker struct{ mgr *locks.Manager }

func NewRedisLocker(mgr *locks.Manager) TableLocker { return redisLocker{mgr: mgr} }

func (r redisLocker) AcquireGameLock(ctx context.Context, tableID string) (TableLock, error) {
	return r.mgr.AcquireGameLock(ctx, tableID)
}

// Manager owns every live TableCoordinator in this process.
type Manager struct {
	Repo           db.Repository
	Store          store.Store
	Registry       *registry.Registry
	Locks          TableLocker
	History        *history.Tracker
	ReconnectGrace time.Duration
	ActionLimiter  *ratelimit.Limiter

	mu     sync.Mutex
	tables map[string]*TableCoordinator
}

func NewManager(repo db.Repository, sessionStore store.Store, reg *registry.Registry, locker TableLocker, tracker *history.Tracker, reconnectGrace time.Duration, actionLimiter *ratelimit.Limiter) *Manager {
	return &Manager{
		Repo:           repo,
		Store:          sessionStore,
		Registry:       reg,
		Locks:          locker,
		History:        tracker,
		ReconnectGrace: reconnectGrace,
		ActionLimiter:  actionLimiter,
		tables:         make(map[string]*TableCoordinator),
	}
}

// For gets (or lazily creates) the in-memory coordinator for a table. It
// does not touch the session store; that happens lazily on first message.
func (m *Manager) For(tableID string) *TableCoordinator {
	m.mu.Lock()
	defer m.mu.Unlock()
	tc, ok := m.tables[tableID]
	if !ok {
		tc = newTableCoordinator(tableID, m)
		m.tables[tableID] = tc
	}
	return tc
}

// drop removes a table's in-memory coordinator, called once its
// reconnection grace period elapses or the game finishes.
func (m *Manager) drop(tableID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tables, tableID)
}

// FindOrCreate implements the matchmaking entrypoint from spec.md §4.E: seat
// the caller at the oldest waiting table with a free seat (that doesn't
// already contain them), or open a new table at seat 1.
func (m *Manager) FindOrCreate(ctx context.Context, userID, username string) (*db.Table, bool, error) {
	if err := m.Repo.UpsertUser(ctx, userID, username); err != nil {
		return nil, false, fmt.Errorf("upsert user: %w", err)
	}

	waiting, err := m.Repo.FindWaitingGames(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("find waiting games: %w", err)
	}

	for _, table := range waiting {
		seated, err := m.Repo.GetSeatedPlayers(ctx, table.ID)
		if err != nil {
			return nil, false, fmt.Errorf("get seated players: %w", err)
		}
		if len(seated) >= 4 {
			continue
		}
		seat := lowestFreeSeat(seated)
		if _, err := m.Repo.SeatPlayer(ctx, table.ID, userID, seat); err != nil {
			return nil, false, fmt.Errorf("seat player: %w", err)
		}
		if len(seated)+1 == 4 {
			if err := m.startTable(ctx, table.ID); err != nil {
				return nil, false, err
			}
		}
		updated, err := m.Repo.GetGame(ctx, table.ID)
		if err != nil {
			return nil, false, err
		}
		return updated, false, nil
	}

	table, err := m.Repo.CreateGame(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("create game: %w", err)
	}
	if _, err := m.Repo.SeatPlayer(ctx, table.ID, userID, 1); err != nil {
		return nil, false, fmt.Errorf("seat player: %w", err)
	}
	return table, true, nil
}

func lowestFreeSeat(seated []db.SeatedPlayer) int {
	taken := make(map[int]bool, len(seated))
	for _, s := range seated {
		taken[s.SeatNumber] = true
	}
	for seat := 1; seat <= 4; seat++ {
		if !taken[seat] {
			return seat
		}
	}
	return 0
}

// startTable transitions a just-filled table to in_progress and deals
// round 1, called from FindOrCreate when the fourth seat is taken.
func (m *Manager) startTable(ctx context.Context, tableID string) error {
	if err := m.Repo.UpdateGameStatus(ctx, tableID, db.StatusInProgress); err != nil {
		return fmt.Errorf("update game status: %w", err)
	}
	tc := m.For(tableID)
	return tc.startRound(ctx, 1)
}
