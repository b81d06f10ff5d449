package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Statuses a Table can hold.
const (
	StatusWaiting    = "waiting"
	StatusInProgress = "in_progress"
	StatusFinished   = "finished"
)

// Repository is the narrow CRUD surface the core game engine consumes,
// matching spec.md §6 plus the supplemental event/recovery operations
// component L and component I need.
type Repository interface {
	GetUserByID(ctx context.Context, id string) (*User, error)
	UpsertUser(ctx context.Context, id, username string) error

	FindWaitingGames(ctx context.Context, excludingUserID string) ([]Table, error)
	GetGame(ctx context.Context, id string) (*Table, error)
	CreateGame(ctx context.Context) (*Table, error)
	SeatPlayer(ctx context.Context, tableID, userID string, seat int) (*SeatedPlayer, error)
	UpdateGameStatus(ctx context.Context, tableID, status string) error
	EndGame(ctx context.Context, tableID, winnerID string) error

	CreateRound(ctx context.Context, tableID string, roundNumber int) (*Round, error)
	RecordRoundScore(ctx context.Context, roundID, userID string, delta int) error
	AddTotalScore(ctx context.Context, tableID, userID string, delta int) error

	GetSeatedPlayers(ctx context.Context, tableID string) ([]SeatedPlayer, error)
	GetRoundsWithScores(ctx context.Context, tableID string) ([]RoundWithScores, error)

	RecordEvent(ctx context.Context, tableID string, roundID *string, seq int, eventType string, userID *string, metadata map[string]interface{}) error
	FindInProgressGames(ctx context.Context) ([]Table, error)
	GetEventsPage(ctx context.Context, tableID string, offset, limit int) ([]GameEvent, int64, error)

	// Transaction runs fn against a Repository bound to a single database
	// transaction, committing if fn returns nil and rolling back otherwise.
	// Mirrors the teacher's database.Transaction(func(tx *gorm.DB) error
	// {...}) idiom for any multi-row write such as round completion, scoped
	// to Repository rather than a raw *gorm.DB so callers stay testable
	// against the in-memory fakes the coordinator tests use.
	Transaction(ctx context.Context, fn func(txRepo Repository) error) error
}

// RoundWithScores is a Round joined with its per-user score deltas, the
// shape the Game snapshot's "rounds" field needs.
type RoundWithScores struct {
	Round
	Scores []RoundScore
}

type gormRepository struct {
	db *DB
}

// NewRepository builds a gorm-backed Repository.
func NewRepository(database *DB) Repository {
	return &gormRepository{db: database}
}

func (r *gormRepository) GetUserByID(ctx context.Context, id string) (*User, error) {
	var u User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *gormRepository) UpsertUser(ctx context.Context, id, username string) error {
	user := User{ID: id, Username: username, CreatedAt: time.Now()}
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Assign(User{Username: username}).
		FirstOrCreate(&user).Error
}

func (r *gormRepository) FindWaitingGames(ctx context.Context, excludingUserID string) ([]Table, error) {
	var tables []Table
	err := r.db.WithContext(ctx).
		Where("status = ?", StatusWaiting).
		Where("id NOT IN (?)", r.db.Model(&SeatedPlayer{}).Select("table_id").Where("user_id = ?", excludingUserID)).
		Order("created_at ASC").
		Find(&tables).Error
	return tables, err
}

func (r *gormRepository) GetGame(ctx context.Context, id string) (*Table, error) {
	var t Table
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *gormRepository) CreateGame(ctx context.Context) (*Table, error) {
	table := Table{ID: uuid.NewString(), Status: StatusWaiting, CreatedAt: time.Now()}
	if err := r.db.WithContext(ctx).Create(&table).Error; err != nil {
		return nil, err
	}
	return &table, nil
}

func (r *gormRepository) SeatPlayer(ctx context.Context, tableID, userID string, seat int) (*SeatedPlayer, error) {
	sp := SeatedPlayer{TableID: tableID, UserID: userID, SeatNumber: seat, JoinedAt: time.Now()}
	if err := r.db.WithContext(ctx).Create(&sp).Error; err != nil {
		return nil, err
	}
	return &sp, nil
}

func (r *gormRepository) UpdateGameStatus(ctx context.Context, tableID, status string) error {
	return r.db.WithContext(ctx).Model(&Table{}).Where("id = ?", tableID).Update("status", status).Error
}

func (r *gormRepository) EndGame(ctx context.Context, tableID, winnerID string) error {
	return r.db.WithContext(ctx).Model(&Table{}).Where("id = ?", tableID).Updates(map[string]interface{}{
		"status":    StatusFinished,
		"winner_id": winnerID,
	}).Error
}

func (r *gormRepository) CreateRound(ctx context.Context, tableID string, roundNumber int) (*Round, error) {
	round := Round{ID: uuid.NewString(), TableID: tableID, RoundNumber: roundNumber, CreatedAt: time.Now()}
	if err := r.db.WithContext(ctx).Create(&round).Error; err != nil {
		return nil, err
	}
	return &round, nil
}

func (r *gormRepository) RecordRoundScore(ctx context.Context, roundID, userID string, delta int) error {
	return r.db.WithContext(ctx).Create(&RoundScore{RoundID: roundID, UserID: userID, Delta: delta}).Error
}

func (r *gormRepository) AddTotalScore(ctx context.Context, tableID, userID string, delta int) error {
	return r.db.WithContext(ctx).Model(&SeatedPlayer{}).
		Where("table_id = ? AND user_id = ?", tableID, userID).
		Update("total_score", gorm.Expr("total_score + ?", delta)).Error
}

func (r *gormRepository) GetSeatedPlayers(ctx context.Context, tableID string) ([]SeatedPlayer, error) {
	var players []SeatedPlayer
	err := r.db.WithContext(ctx).Where("table_id = ?", tableID).Order("seat_number ASC").Find(&players).Error
	return players, err
}

func (r *gormRepository) GetRoundsWithScores(ctx context.Context, tableID string) ([]RoundWithScores, error) {
	var rounds []Round
	if err := r.db.WithContext(ctx).Where("table_id = ?", tableID).Order("round_number ASC").Find(&rounds).Error; err != nil {
		return nil, err
	}
	result := make([]RoundWithScores, 0, len(rounds))
	for _, round := range rounds {
		var scores []RoundScore
		if err := r.db.WithContext(ctx).Where("round_id = ?", round.ID).Find(&scores).Error; err != nil {
			return nil, err
		}
		result = append(result, RoundWithScores{Round: round, Scores: scores})
	}
	return result, nil
}

func (r *gormRepository) RecordEvent(ctx context.Context, tableID string, roundID *string, seq int, eventType string, userID *string, metadata map[string]interface{}) error {
	var metaJSON string
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshal event metadata: %w", err)
		}
		metaJSON = string(b)
	} else {
		metaJSON = "{}"
	}
	event := GameEvent{
		TableID:        tableID,
		RoundID:        roundID,
		SequenceNumber: seq,
		EventType:      eventType,
		UserID:         userID,
		Metadata:       metaJSON,
		CreatedAt:      time.Now(),
	}
	return r.db.WithContext(ctx).Create(&event).Error
}

func (r *gormRepository) FindInProgressGames(ctx context.Context) ([]Table, error) {
	var tables []Table
	err := r.db.WithContext(ctx).Where("status = ?", StatusInProgress).Find(&tables).Error
	return tables, err
}

// GetEventsPage returns one page of a table's audit trail, oldest first,
// alongside the total row count for the caller to compute more pages.
func (r *gormRepository) GetEventsPage(ctx context.Context, tableID string, offset, limit int) ([]GameEvent, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&GameEvent{}).Where("table_id = ?", tableID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var events []GameEvent
	err := r.db.WithContext(ctx).
		Where("table_id = ?", tableID).
		Order("sequence_number ASC").
		Offset(offset).Limit(limit).
		Find(&events).Error
	return events, total, err
}

func (r *gormRepository) Transaction(ctx context.Context, fn func(txRepo Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: &DB{DB: tx}})
	})
}
