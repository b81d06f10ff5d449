// Package server is the REST+WS surface (spec.md §6): gin routes, the
// channel upgrade, and the middleware chain. Grounded on the teacher's
// cmd/server/server.go setupRoutes/NewServer pair, retargeted from the
// poker platform's table/tournament routes onto find-or-create matchmaking
// and a single per-table WS channel.
package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"hearts-server/internal/auth"
	"hearts-server/internal/coordinator"
	"hearts-server/internal/ratelimit"
)

// Server holds every dependency the HTTP/WS layer needs to handle a
// request, grounded on the teacher's Server struct.
type Server struct {
	Coordinator *coordinator.Manager
	Auth        *auth.Authenticator
	HTTPLimiter *ratelimit.Limiter
	Upgrader    websocket.Upgrader
}

// New builds a Server with the teacher's permissive same-process CheckOrigin
// (a reverse proxy is assumed to own origin policy in front of this
// process, matching the teacher's deployment model).
func New(mgr *coordinator.Manager, authenticator *auth.Authenticator, httpLimiter *ratelimit.Limiter) *Server {
	return &Server{
		Coordinator: mgr,
		Auth:        authenticator,
		HTTPLimiter: httpLimiter,
		Upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Router builds the gin engine: CORS, rate limiting, auth middleware, and
// every route from spec.md §6.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-Requested-With", "Accept", "Origin"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           86400 * time.Second,
	}))
	r.Use(s.HTTPLimiter.HTTPMiddleware())

	authorized := r.Group("/games")
	authorized.Use(s.authMiddleware())
	{
		authorized.POST("/find-or-create", s.handleFindOrCreate)
		authorized.GET("", s.handleListWaitingGames)
		authorized.GET("/:id", s.handleGetGame)
		authorized.GET("/:id/events", s.handleGetEvents)
	}

	// The channel upgrade identifies the caller from a query parameter
	// rather than a header, so it authenticates itself rather than sitting
	// behind authMiddleware (mirrors the teacher's r.GET("/ws", ...) sitting
	// outside its authorized group).
	r.GET("/games/:id/ws", s.handleWebSocket)

	return r
}
