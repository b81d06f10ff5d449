// Package recovery re-hydrates in-progress tables into the coordinator's
// in-memory registry on server boot, so a restart doesn't strand live games.
// Adapted from the teacher's internal/recovery/table_recovery.go: the
// poker-specific engine/tournament reconstruction is replaced with loading
// each table's already-persisted Session State from the store, since this
// server's state lives in Redis rather than needing to be rebuilt from
// database rows.
package recovery

import (
	"context"
	"fmt"
	"log"

	"hearts-server/internal/db"
	"hearts-server/internal/store"
)

// Recovery restores active tables on startup.
type Recovery struct {
	repo  db.Repository
	store store.Store
}

func New(repo db.Repository, sessionStore store.Store) *Recovery {
	return &Recovery{repo: repo, store: sessionStore}
}

// RecoverFn is called once per in-progress table found whose session state
// is present in the store, with that table's id. The caller (the
// coordinator's Manager) registers a live TableCoordinator for it.
type RecoverFn func(tableID string) error

// RecoverActiveTables finds every table the database still marks
// in_progress and invokes recover for each one whose session state is
// still present; a table whose state has vanished from the store (e.g. a
// Redis flush) is logged and skipped rather than resurrected empty.
func (r *Recovery) RecoverActiveTables(ctx context.Context, recover RecoverFn) (int, error) {
	tables, err := r.repo.FindInProgressGames(ctx)
	if err != nil {
		return 0, fmt.Errorf("query in-progress games: %w", err)
	}

	if len(tables) == 0 {
		log.Println("[RECOVERY] no in-progress tables to recover")
		return 0, nil
	}

	log.Printf("[RECOVERY] found %d in-progress tables", len(tables))

	recovered := 0
	for _, table := range tables {
		if _, err := r.store.Load(ctx, table.ID); err != nil {
			log.Printf("[RECOVERY] table %s has no session state, skipping: %v", table.ID, err)
			continue
		}

		if err := recover(table.ID); err != nil {
			log.Printf("[RECOVERY] failed to recover table %s: %v", table.ID, err)
			continue
		}

		recovered++
		log.Printf("[RECOVERY] recovered table %s", table.ID)
	}

	log.Printf("[RECOVERY] recovery complete: %d/%d tables recovered", recovered, len(tables))
	return recovered, nil
}

// CleanupOrphanedTables marks any table still in_progress whose session
// state no longer exists in the store as finished with no winner, so it
// stops showing up in future recovery sweeps.
func (r *Recovery) CleanupOrphanedTables(ctx context.Context) (int, error) {
	tables, err := r.repo.FindInProgressGames(ctx)
	if err != nil {
		return 0, fmt.Errorf("query in-progress games: %w", err)
	}

	cleaned := 0
	for _, table := range tables {
		if _, err := r.store.Load(ctx, table.ID); err == nil {
			continue
		}
		if err := r.repo.UpdateGameStatus(ctx, table.ID, db.StatusFinished); err != nil {
			log.Printf("[RECOVERY] failed to mark orphaned table %s finished: %v", table.ID, err)
			continue
		}
		cleaned++
	}

	if cleaned > 0 {
		log.Printf("[RECOVERY] cleaned up %d orphaned tables with no session state", cleaned)
	}
	return cleaned, nil
}
