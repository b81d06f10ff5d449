package recovery

import (
	"context"
	"errors"
	"testing"

	"hearts-server/internal/db"
	"hearts-server/internal/store"
	"hearts-server/models"
)

// fakeRepository stubs only the Repository methods recovery needs.
type fakeRepository struct {
	db.Repository
	tables        []db.Table
	statusUpdates map[string]string
}

func (f *fakeRepository) FindInProgressGames(context.Context) ([]db.Table, error) {
	return f.tables, nil
}

func (f *fakeRepository) UpdateGameStatus(_ context.Context, tableID, status string) error {
	if f.statusUpdates == nil {
		f.statusUpdates = make(map[string]string)
	}
	f.statusUpdates[tableID] = status
	return nil
}

func TestRecoverActiveTablesSkipsTablesWithNoSessionState(t *testing.T) {
	repo := &fakeRepository{tables: []db.Table{{ID: "with-state"}, {ID: "without-state"}}}
	sessionStore := store.NewMemoryStore()
	sessionStore.Save(context.Background(), "with-state", &models.SessionState{})

	r := New(repo, sessionStore)

	var recovered []string
	count, err := r.RecoverActiveTables(context.Background(), func(tableID string) error {
		recovered = append(recovered, tableID)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 table recovered, got %d", count)
	}
	if len(recovered) != 1 || recovered[0] != "with-state" {
		t.Fatalf("expected only with-state to be recovered, got %v", recovered)
	}
}

func TestRecoverActiveTablesSkipsOnCallbackError(t *testing.T) {
	repo := &fakeRepository{tables: []db.Table{{ID: "table-1"}}}
	sessionStore := store.NewMemoryStore()
	sessionStore.Save(context.Background(), "table-1", &models.SessionState{})

	r := New(repo, sessionStore)
	count, err := r.RecoverActiveTables(context.Background(), func(string) error {
		return errors.New("boom")
	})
	if err != nil {
		t.Fatalf("unexpected top-level error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 recovered when callback fails, got %d", count)
	}
}

func TestCleanupOrphanedTablesMarksVanishedStateFinished(t *testing.T) {
	repo := &fakeRepository{tables: []db.Table{{ID: "gone"}, {ID: "alive"}}}
	sessionStore := store.NewMemoryStore()
	sessionStore.Save(context.Background(), "alive", &models.SessionState{})

	r := New(repo, sessionStore)
	cleaned, err := r.CleanupOrphanedTables(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cleaned != 1 {
		t.Fatalf("expected 1 orphaned table cleaned, got %d", cleaned)
	}
	if repo.statusUpdates["gone"] != db.StatusFinished {
		t.Fatalf("expected gone table marked finished, got %v", repo.statusUpdates)
	}
	if _, stillTracked := repo.statusUpdates["alive"]; stillTracked {
		t.Fatalf("alive table should not have been touched")
	}
}
