package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/tradeflow-ai/tradeflow/internal/database"
)

// ErrStateNotFound is returned for unknown, expired or already used states.
var ErrStateNotFound = errors.New("oauth state not found")

// State is what an OAuth state value stands for.
type State struct {
	UserID      string `json:"user_id"`
	RedirectURI string `json:"redirect_uri,omitempty"`
}

// StateStore keeps OAuth states for a limited time. Consume is single use.
type StateStore interface {
	Save(ctx context.Context, key string, state State, ttl time.Duration) error
	Consume(ctx context.Context, key string) (*State, error)
}

const stateKeyPrefix = "oauth_state:"

// RedisStateStore stores states in Redis.
type RedisStateStore struct {
	client redis.Cmdable
}

// NewRedisStateStore creates a store over client.
func NewRedisStateStore(client redis.Cmdable) *RedisStateStore {
	return &RedisStateStore{client: client}
}

// NewRedisClient connects to the Redis server at url.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

func (s *RedisStateStore) Save(ctx context.Context, key string, state State, ttl time.Duration) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, stateKeyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStateStore) Consume(ctx context.Context, key string) (*State, error) {
	val, err := s.client.GetDel(ctx, stateKeyPrefix+key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("redis getdel: %w", err)
	}
	var st State
	if err := json.Unmarshal([]byte(val), &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &st, nil
}

// DBStateStore stores states as verification rows.
type DBStateStore struct {
	repo database.RepositoryInterface
	now  func() time.Time
}

// NewDBStateStore creates a store over repo.
func NewDBStateStore(repo database.RepositoryInterface) *DBStateStore {
	return &DBStateStore{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

func (s *DBStateStore) Save(ctx context.Context, key string, state State, ttl time.Duration) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.repo.CreateVerification(ctx, &database.Verification{
		Identifier: stateKeyPrefix + key,
		Value:      string(data),
		ExpiresAt:  s.now().Add(ttl),
	})
}

func (s *DBStateStore) Consume(ctx context.Context, key string) (*State, error) {
	v, err := s.repo.ConsumeVerification(ctx, stateKeyPrefix+key)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrStateNotFound
		}
		return nil, err
	}
	var st State
	if err := json.Unmarshal([]byte(v.Value), &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &st, nil
}
