// Command server boots the Hearts table server: wires storage, the
// distributed lock, the session coordinator, and the REST+WS layer, then
// recovers any tables left in_progress by a prior crash before accepting
// traffic. Adapted from the teacher's cmd/server/main.go entrypoint.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"hearts-server/internal/auth"
	"hearts-server/internal/config"
	"hearts-server/internal/coordinator"
	"hearts-server/internal/db"
	"hearts-server/internal/history"
	"hearts-server/internal/locks"
	"hearts-server/internal/ratelimit"
	"hearts-server/internal/recovery"
	"hearts-server/internal/registry"
	"hearts-server/internal/server"
	"hearts-server/internal/store"
)

func main() {
	cmd := config.NewCommand(run)
	if err := cmd.Execute(); err != nil {
		log.Printf("[SERVER] fatal: %v", err)
		os.Exit(1)
	}
}

func run(_ *cobra.Command, cfg *config.Config) error {
	database, err := db.New(db.Config{
		Driver:     cfg.DBDriver,
		MySQLDSN:   cfg.MySQLDSN,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	sessionStore, err := store.NewRedisStore(store.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer sessionStore.Close()

	lockManager := locks.NewManager(sessionStore.Client())
	authenticator := auth.NewAuthenticator(cfg.JWTSecret)
	repo := db.NewRepository(database)
	tracker := history.NewTracker(repo)
	reg := registry.New()
	actionLimiter := ratelimit.NewLimiter(ratelimit.WebSocketActionConfig())
	defer actionLimiter.Stop()
	httpLimiter := ratelimit.NewLimiter(ratelimit.DefaultHTTPConfig())
	defer httpLimiter.Stop()

	mgr := coordinator.NewManager(
		repo,
		sessionStore,
		reg,
		coordinator.NewRedisLocker(lockManager),
		tracker,
		cfg.ReconnectGrace,
		actionLimiter,
	)

	if err := recoverActiveTables(mgr, repo, sessionStore); err != nil {
		log.Printf("[SERVER] table recovery encountered an error: %v", err)
	}

	if !cfg.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := server.New(mgr, authenticator, httpLimiter)
	addr := fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port)
	log.Printf("[SERVER] listening on %s", addr)
	return srv.Router().Run(addr)
}

// recoverActiveTables restores in-memory coordinators for every table the
// database still marks in_progress, so a restart doesn't strand a live game.
func recoverActiveTables(mgr *coordinator.Manager, repo db.Repository, sessionStore store.Store) error {
	r := recovery.New(repo, sessionStore)

	if _, err := r.CleanupOrphanedTables(context.Background()); err != nil {
		log.Printf("[SERVER] failed to clean up orphaned tables: %v", err)
	}

	_, err := r.RecoverActiveTables(context.Background(), func(tableID string) error {
		mgr.For(tableID)
		return nil
	})
	return err
}
