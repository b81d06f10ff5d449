package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"hearts-server/models"
)

// RedisConfig configures the connection to the session store's backing
// Redis instance. Grounded on the teacher's internal/redis/redis.go wrapper.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisStore is the production Session Store: a Redis hash per table,
// complex fields JSON-encoded, scalars as plain strings, keyed
// "game:{id}:state" per spec.md §6.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies it's reachable before
// returning, matching the teacher's redis.New() fail-fast-on-boot style.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func stateKey(tableID string) string {
	return fmt.Sprintf("game:%s:state", tableID)
}

func (s *RedisStore) Load(ctx context.Context, tableID string) (*models.SessionState, error) {
	fields, err := s.client.HGetAll(ctx, stateKey(tableID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	state := &models.SessionState{}

	if v, ok := fields["round_number"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("decode round_number: %w", err)
		}
		state.RoundNumber = n
	}
	if v, ok := fields["trick_number"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("decode trick_number: %w", err)
		}
		state.TrickNumber = n
	}
	state.Phase = models.Phase(fields["phase"])
	state.PassDirection = models.PassDirection(fields["pass_direction"])
	state.TurnUserID = fields["turn_user_id"]
	state.TrickStarterID = fields["trick_starter_id"]
	state.HeartsBroken = fields["hearts_broken"] == "true"

	if v := fields["lead_suit"]; v != "" {
		suit := models.Suit(v)
		state.LeadSuit = &suit
	}

	if err := decodeJSONField(fields["hands"], &state.Hands); err != nil {
		return nil, fmt.Errorf("decode hands: %w", err)
	}
	if err := decodeJSONField(fields["passed_cards"], &state.PassedCards); err != nil {
		return nil, fmt.Errorf("decode passed_cards: %w", err)
	}
	if err := decodeJSONField(fields["current_trick"], &state.CurrentTrick); err != nil {
		return nil, fmt.Errorf("decode current_trick: %w", err)
	}
	if err := decodeJSONField(fields["round_scores"], &state.RoundScores); err != nil {
		return nil, fmt.Errorf("decode round_scores: %w", err)
	}
	if err := decodeJSONField(fields["seat_order"], &state.SeatOrder); err != nil {
		return nil, fmt.Errorf("decode seat_order: %w", err)
	}

	return state, nil
}

func decodeJSONField(raw string, dest interface{}) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dest)
}

// Save fully replaces the hash for this table. The caller (the coordinator)
// is responsible for holding the table's lock across the load/save cycle;
// this call alone is not atomic against a concurrent Save on the same key.
func (s *RedisStore) Save(ctx context.Context, tableID string, state *models.SessionState) error {
	hands, err := json.Marshal(state.Hands)
	if err != nil {
		return fmt.Errorf("encode hands: %w", err)
	}
	passedCards, err := json.Marshal(state.PassedCards)
	if err != nil {
		return fmt.Errorf("encode passed_cards: %w", err)
	}
	currentTrick, err := json.Marshal(state.CurrentTrick)
	if err != nil {
		return fmt.Errorf("encode current_trick: %w", err)
	}
	roundScores, err := json.Marshal(state.RoundScores)
	if err != nil {
		return fmt.Errorf("encode round_scores: %w", err)
	}
	seatOrder, err := json.Marshal(state.SeatOrder)
	if err != nil {
		return fmt.Errorf("encode seat_order: %w", err)
	}

	leadSuit := ""
	if state.LeadSuit != nil {
		leadSuit = string(*state.LeadSuit)
	}

	fields := map[string]interface{}{
		"round_number":     strconv.Itoa(state.RoundNumber),
		"trick_number":     strconv.Itoa(state.TrickNumber),
		"phase":            string(state.Phase),
		"hands":            string(hands),
		"passed_cards":     string(passedCards),
		"pass_direction":   string(state.PassDirection),
		"current_trick":    string(currentTrick),
		"lead_suit":        leadSuit,
		"turn_user_id":     state.TurnUserID,
		"trick_starter_id": state.TrickStarterID,
		"round_scores":     string(roundScores),
		"hearts_broken":    strconv.FormatBool(state.HeartsBroken),
		"seat_order":       string(seatOrder),
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, stateKey(tableID))
	pipe.HSet(ctx, stateKey(tableID), fields)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save pipeline: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, tableID string) error {
	if err := s.client.Del(ctx, stateKey(tableID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Client exposes the underlying connection so other components backed by
// the same Redis instance (internal/locks) can share one pool instead of
// opening a second connection.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}
