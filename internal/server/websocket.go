package server

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"hearts-server/internal/coordinator"
	"hearts-server/internal/registry"
)

// handleWebSocket upgrades the connection, then verifies the bearer token
// from the query string and the caller's seat; a missing or invalid token,
// or a caller not seated at the table, closes the socket with 1008.
// Adapted from the teacher's internal/server/websocket/websocket.go
// HandleWebSocket: upgrade-then-verify-then-pump.
func (s *Server) handleWebSocket(c *gin.Context) {
	tableID := c.Param("id")
	token := c.Query("token")

	conn, err := s.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[SERVER] websocket upgrade failed for table=%s: %v", tableID, err)
		return
	}

	userID, err := s.Auth.Identify(token)
	if err != nil {
		closeMsg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid or missing token")
		conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(5*time.Second))
		conn.Close()
		return
	}

	tc := s.Coordinator.For(tableID)

	client := registry.NewClient(conn, tableID, userID)

	ctx := c.Request.Context()
	if err := tc.JoinChannel(ctx, client); err != nil {
		if _, notSeated := err.(coordinator.ErrNotSeated); notSeated {
			closeMsg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "not seated at this table")
			conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(5*time.Second))
		} else {
			log.Printf("[SERVER] join failed for table=%s user=%s: %v", tableID, userID, err)
		}
		conn.Close()
		return
	}

	go client.WritePump()
	client.ReadPump(
		func(raw []byte) { tc.HandleMessage(ctx, userID, raw) },
		func() { tc.LeaveChannel(context.Background(), client) },
	)
}
