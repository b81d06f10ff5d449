package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hearts-server/internal/db"
)

// fakeRepository is an in-memory db.Repository double, letting coordinator
// tests run without a real database.
type fakeRepository struct {
	mu      sync.Mutex
	users   map[string]*db.User
	tables  map[string]*db.Table
	seats   map[string][]db.SeatedPlayer // table id -> seats
	rounds  map[string][]db.RoundWithScores
	nextSeq int
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		users:  make(map[string]*db.User),
		tables: make(map[string]*db.Table),
		seats:  make(map[string][]db.SeatedPlayer),
		rounds: make(map[string][]db.RoundWithScores),
	}
}

func (f *fakeRepository) GetUserByID(_ context.Context, id string) (*db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s not found", id)
	}
	return u, nil
}

func (f *fakeRepository) UpsertUser(_ context.Context, id, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] = &db.User{ID: id, Username: username}
	return nil
}

func (f *fakeRepository) FindWaitingGames(_ context.Context, excludingUserID string) ([]db.Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.Table
	for _, t := range f.tables {
		if t.Status != db.StatusWaiting {
			continue
		}
		excluded := false
		for _, s := range f.seats[t.ID] {
			if s.UserID == excludingUserID {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeRepository) GetGame(_ context.Context, id string) (*db.Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tables[id]
	if !ok {
		return nil, fmt.Errorf("table %s not found", id)
	}
	cp := *t
	return &cp, nil
}

func (f *fakeRepository) CreateGame(_ context.Context) (*db.Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("table-%d", len(f.tables)+1)
	t := &db.Table{ID: id, Status: db.StatusWaiting, CreatedAt: time.Now()}
	f.tables[id] = t
	return t, nil
}

func (f *fakeRepository) SeatPlayer(_ context.Context, tableID, userID string, seat int) (*db.SeatedPlayer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sp := db.SeatedPlayer{TableID: tableID, UserID: userID, SeatNumber: seat, JoinedAt: time.Now()}
	f.seats[tableID] = append(f.seats[tableID], sp)
	return &sp, nil
}

func (f *fakeRepository) UpdateGameStatus(_ context.Context, tableID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tables[tableID]
	if !ok {
		return fmt.Errorf("table %s not found", tableID)
	}
	t.Status = status
	return nil
}

func (f *fakeRepository) EndGame(_ context.Context, tableID, winnerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tables[tableID]
	if !ok {
		return fmt.Errorf("table %s not found", tableID)
	}
	t.Status = db.StatusFinished
	t.WinnerID = &winnerID
	return nil
}

func (f *fakeRepository) CreateRound(_ context.Context, tableID string, roundNumber int) (*db.Round, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	round := db.Round{ID: fmt.Sprintf("%s-round-%d", tableID, roundNumber), TableID: tableID, RoundNumber: roundNumber, CreatedAt: time.Now()}
	f.rounds[tableID] = append(f.rounds[tableID], db.RoundWithScores{Round: round})
	return &round, nil
}

func (f *fakeRepository) RecordRoundScore(_ context.Context, roundID, userID string, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for tableID, rounds := range f.rounds {
		for i, r := range rounds {
			if r.ID == roundID {
				f.rounds[tableID][i].Scores = append(f.rounds[tableID][i].Scores, db.RoundScore{RoundID: roundID, UserID: userID, Delta: delta})
				return nil
			}
		}
	}
	return fmt.Errorf("round %s not found", roundID)
}

func (f *fakeRepository) AddTotalScore(_ context.Context, tableID, userID string, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.seats[tableID] {
		if s.UserID == userID {
			f.seats[tableID][i].TotalScore += delta
			return nil
		}
	}
	return fmt.Errorf("user %s not seated at %s", userID, tableID)
}

func (f *fakeRepository) GetSeatedPlayers(_ context.Context, tableID string) ([]db.SeatedPlayer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]db.SeatedPlayer(nil), f.seats[tableID]...)
	return out, nil
}

func (f *fakeRepository) GetRoundsWithScores(_ context.Context, tableID string) ([]db.RoundWithScores, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]db.RoundWithScores(nil), f.rounds[tableID]...), nil
}

func (f *fakeRepository) RecordEvent(_ context.Context, _ string, _ *string, _ int, _ string, _ *string, _ map[string]interface{}) error {
	return nil
}

func (f *fakeRepository) GetEventsPage(_ context.Context, _ string, _, _ int) ([]db.GameEvent, int64, error) {
	return nil, 0, nil
}

// Transaction has no rollback semantics to fake: fn just runs against this
// same in-memory repository.
func (f *fakeRepository) Transaction(ctx context.Context, fn func(txRepo db.Repository) error) error {
	return fn(f)
}

func (f *fakeRepository) FindInProgressGames(_ context.Context) ([]db.Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []db.Table
	for _, t := range f.tables {
		if t.Status == db.StatusInProgress {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeRepository) seatFour(tableID string, userIDs [4]string) {
	f.mu.Lock()
	f.tables[tableID] = &db.Table{ID: tableID, Status: db.StatusWaiting, CreatedAt: time.Now()}
	for i, uid := range userIDs {
		f.users[uid] = &db.User{ID: uid, Username: uid}
		f.seats[tableID] = append(f.seats[tableID], db.SeatedPlayer{TableID: tableID, UserID: uid, SeatNumber: i + 1, JoinedAt: time.Now()})
	}
	f.mu.Unlock()
}

// noopLock and noopLocker are a TableLocker/TableLock pair that grants the
// lock immediately, so coordinator tests never need a live Redis.
type noopLock struct{}

func (noopLock) Release(context.Context) error                       { return nil }
func (noopLock) Extend(context.Context, time.Duration) error { return nil }

type noopLocker struct{}

func (noopLocker) AcquireGameLock(context.Context, string) (TableLock, error) {
	return noopLock{}, nil
}
