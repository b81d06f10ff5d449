package db

import "time"

// User mirrors the external identity system's stable id/display name so
// game snapshots can render a username without a network round trip. It is
// a read-through cache row, not the system of record for credentials.
type User struct {
	ID        string `gorm:"primaryKey"`
	Username  string
	CreatedAt time.Time
}

// Table is the persisted table/game row. Status is one of
// waiting/in_progress/finished.
type Table struct {
	ID        string `gorm:"primaryKey"`
	Status    string `gorm:"index"`
	WinnerID  *string
	CreatedAt time.Time
}

// SeatedPlayer is one user's seat at a table, carrying their running total.
type SeatedPlayer struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	TableID    string `gorm:"index:idx_table_user,unique;index:idx_table_seat,unique"`
	UserID     string `gorm:"index:idx_table_user,unique"`
	SeatNumber int    `gorm:"index:idx_table_seat,unique"`
	TotalScore int
	JoinedAt   time.Time
}

// Round is one completed round of a table.
type Round struct {
	ID          string `gorm:"primaryKey"`
	TableID     string `gorm:"index"`
	RoundNumber int
	CreatedAt   time.Time
}

// RoundScore is one user's delta for a completed round.
type RoundScore struct {
	ID      int64  `gorm:"primaryKey;autoIncrement"`
	RoundID string `gorm:"index"`
	UserID  string
	Delta   int
}

// GameEvent is an append-only audit trail entry, written by the history
// tracker for the game events it records (component L). Never read by the core game logic;
// exposed only through the supplemental GET /games/{id}/events endpoint.
type GameEvent struct {
	ID             int64   `gorm:"primaryKey;autoIncrement"`
	TableID        string  `gorm:"index"`
	RoundID        *string `gorm:"index"`
	SequenceNumber int
	EventType      string
	UserID         *string
	Metadata       string // JSON-encoded
	CreatedAt      time.Time
}
