package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"hearts-server/internal/coordinator"
	"hearts-server/internal/validation"
)

// findOrCreateRequest carries the caller's display name, since the
// Authenticator shim only identifies a user id. Username defaults to the
// user id when omitted — a local decision, logged in DESIGN.md, standing in
// for whatever profile service a real deployment would consult.
type findOrCreateRequest struct {
	Username string `json:"username"`
}

func (s *Server) handleFindOrCreate(c *gin.Context) {
	userID := c.GetString("user_id")

	var req findOrCreateRequest
	_ = c.ShouldBindJSON(&req)
	username := req.Username
	if username == "" {
		username = userID
	} else if sanitized, err := validation.ValidateSafeString(username, 1, 32, "username"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	} else {
		username = sanitized
	}

	table, created, err := s.Coordinator.FindOrCreate(c.Request.Context(), userID, username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to find or create game"})
		return
	}

	snapshot, err := coordinator.BuildGameSnapshot(c.Request.Context(), s.Coordinator.Repo, table.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load game"})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, snapshot)
}

func (s *Server) handleGetGame(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.Coordinator.Repo.GetGame(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
		return
	}
	snapshot, err := coordinator.BuildGameSnapshot(c.Request.Context(), s.Coordinator.Repo, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load game"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) handleListWaitingGames(c *gin.Context) {
	tables, err := s.Coordinator.Repo.FindWaitingGames(c.Request.Context(), "")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list games"})
		return
	}

	snapshots := make([]interface{}, 0, len(tables))
	for _, t := range tables {
		snap, err := coordinator.BuildGameSnapshot(c.Request.Context(), s.Coordinator.Repo, t.ID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load game"})
			return
		}
		snapshots = append(snapshots, snap)
	}
	c.JSON(http.StatusOK, snapshots)
}

const defaultEventsPageSize = 50

func (s *Server) handleGetEvents(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	userID := c.GetString("user_id")

	if _, err := s.Coordinator.Repo.GetGame(ctx, id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
		return
	}
	if !s.callerIsSeated(ctx, id, userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not seated at this game"})
		return
	}

	offset, _ := strconv.Atoi(c.Query("offset"))
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		limit = defaultEventsPageSize
	}

	events, total, err := s.Coordinator.Repo.GetEventsPage(ctx, id, offset, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "total": total, "offset": offset, "limit": limit})
}

func (s *Server) callerIsSeated(ctx context.Context, tableID, userID string) bool {
	seated, err := s.Coordinator.Repo.GetSeatedPlayers(ctx, tableID)
	if err != nil {
		return false
	}
	for _, seat := range seated {
		if seat.UserID == userID {
			return true
		}
	}
	return false
}
