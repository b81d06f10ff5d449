package engine

import "hearts-server/models"

// RecipientSeat computes the 1-based seat that receives sender seat s's
// passed cards under direction d. Seats are 1..4; "across" only makes sense
// for 4 players, but hold is a seat-independent no-op.
func RecipientSeat(s int, d models.PassDirection) int {
	switch d {
	case models.PassLeft:
		return (s % 4) + 1
	case models.PassRight:
		return ((s + 2) % 4) + 1
	case models.PassAcross:
		return ((s + 1) % 4) + 1
	default:
		return s
	}
}
