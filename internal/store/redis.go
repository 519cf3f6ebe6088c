package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	redisFifoListKey     = "ocpp:fifo:entries"
	redisFifoSeqKey      = "ocpp:fifo:seq"
	redisConnectorHash   = "ocpp:connector:state"
	redisAuthCacheHash   = "ocpp:authcache"
)

// redisFifoEntry is the JSON wire shape stored in the list. Kept separate
// from FifoEntry so the wire format doesn't silently change if the exported
// struct grows fields later.
type redisFifoEntry struct {
	ID          int64     `json:"id"`
	Action      string    `json:"action"`
	ConnectorID int       `json:"connectorId"`
	Payload     string    `json:"payload"`
	RetryCount  int       `json:"retryCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// RedisStore implements Store against a Redis instance, for charge points
// that front a shared Redis rather than a local encrypted SQLite file (spec
// requires the same write-through durability contract either way).
type RedisStore struct {
	client *redis.Client
	ctx    context.Context
}

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore connects to Redis and verifies connectivity with a ping.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, ctx: ctx}, nil
}

func (s *RedisStore) PushFifoEntry(action string, connectorID int, payload string) (int64, error) {
	id, err := s.client.Incr(s.ctx, redisFifoSeqKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate fifo id: %w", err)
	}

	entry := redisFifoEntry{
		ID:          id,
		Action:      action,
		ConnectorID: connectorID,
		Payload:     payload,
		CreatedAt:   time.Now(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal fifo entry: %w", err)
	}

	if err := s.client.RPush(s.ctx, redisFifoListKey, data).Err(); err != nil {
		return 0, fmt.Errorf("failed to push fifo entry: %w", err)
	}

	return id, nil
}

func (s *RedisStore) FrontFifoEntry() (*FifoEntry, bool, error) {
	data, err := s.client.LIndex(s.ctx, redisFifoListKey, 0).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read fifo front: %w", err)
	}

	var entry redisFifoEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal fifo entry: %w", err)
	}

	return &FifoEntry{
		ID:          entry.ID,
		Action:      entry.Action,
		ConnectorID: entry.ConnectorID,
		Payload:     entry.Payload,
		RetryCount:  entry.RetryCount,
		CreatedAt:   entry.CreatedAt,
	}, true, nil
}

// PopFifoEntry removes the front entry. id is checked against the current
// front to guard against a concurrent pop already having advanced the
// queue — callers are expected to call this only from the single drain
// consumer, but the check keeps the operation safe either way.
func (s *RedisStore) PopFifoEntry(id int64) error {
	front, ok, err := s.FrontFifoEntry()
	if err != nil {
		return err
	}
	if !ok || front.ID != id {
		return fmt.Errorf("fifo entry %d is not at the front", id)
	}

	if err := s.client.LPop(s.ctx, redisFifoListKey).Err(); err != nil {
		return fmt.Errorf("failed to pop fifo entry %d: %w", id, err)
	}
	return nil
}

func (s *RedisStore) IncrementFifoRetryCount(id int64) error {
	front, ok, err := s.FrontFifoEntry()
	if err != nil {
		return err
	}
	if !ok || front.ID != id {
		return fmt.Errorf("fifo entry %d is not at the front", id)
	}

	front.RetryCount++
	entry := redisFifoEntry{
		ID:          front.ID,
		Action:      front.Action,
		ConnectorID: front.ConnectorID,
		Payload:     front.Payload,
		RetryCount:  front.RetryCount,
		CreatedAt:   front.CreatedAt,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal fifo entry: %w", err)
	}

	if err := s.client.LSet(s.ctx, redisFifoListKey, 0, data).Err(); err != nil {
		return fmt.Errorf("failed to increment fifo retry count for %d: %w", id, err)
	}
	return nil
}

func (s *RedisStore) FifoSize() (int, error) {
	size, err := s.client.LLen(s.ctx, redisFifoListKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get fifo size: %w", err)
	}
	return int(size), nil
}

func (s *RedisStore) UpsertConnectorState(state *ConnectorState) error {
	state.UpdatedAt = time.Now()
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal connector state: %w", err)
	}

	if err := s.client.HSet(s.ctx, redisConnectorHash, state.ConnectorID, data).Err(); err != nil {
		return fmt.Errorf("failed to upsert connector state for connector %d: %w", state.ConnectorID, err)
	}
	return nil
}

func (s *RedisStore) GetConnectorState(connectorID int) (*ConnectorState, error) {
	data, err := s.client.HGet(s.ctx, redisConnectorHash, fmt.Sprintf("%d", connectorID)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("connector %d not found", connectorID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connector state for connector %d: %w", connectorID, err)
	}

	var state ConnectorState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal connector state: %w", err)
	}
	return &state, nil
}

func (s *RedisStore) GetAllConnectorStates() ([]*ConnectorState, error) {
	all, err := s.client.HGetAll(s.ctx, redisConnectorHash).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list connector states: %w", err)
	}

	states := make([]*ConnectorState, 0, len(all))
	for _, data := range all {
		var state ConnectorState
		if err := json.Unmarshal([]byte(data), &state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal connector state: %w", err)
		}
		states = append(states, &state)
	}
	return states, nil
}

func (s *RedisStore) UpsertAuthorizationCache(entry *AuthCacheEntry) error {
	entry.UpdatedAt = time.Now()
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal auth cache entry: %w", err)
	}

	if err := s.client.HSet(s.ctx, redisAuthCacheHash, entry.IdTag, data).Err(); err != nil {
		return fmt.Errorf("failed to upsert authorization cache for %s: %w", entry.IdTag, err)
	}
	return nil
}

func (s *RedisStore) GetAuthorizationCache(idTag string) (*AuthCacheEntry, error) {
	data, err := s.client.HGet(s.ctx, redisAuthCacheHash, idTag).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get authorization cache for %s: %w", idTag, err)
	}

	var entry AuthCacheEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal auth cache entry: %w", err)
	}
	return &entry, nil
}

func (s *RedisStore) DeleteAuthorizationCache(idTag string) error {
	if err := s.client.HDel(s.ctx, redisAuthCacheHash, idTag).Err(); err != nil {
		return fmt.Errorf("failed to delete authorization cache for %s: %w", idTag, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
