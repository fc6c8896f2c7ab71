package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrNotFound is returned when no session exists for an id
var ErrNotFound = errors.New("session not found")

// Store is the narrow contract for the server-side session store
type Store interface {
	// Get loads a session by id. Returns ErrNotFound when absent or
	// expired.
	Get(ctx context.Context, id string) (*Session, error)

	// Save persists the session with the given TTL, resetting expiry.
	Save(ctx context.Context, s *Session, ttl time.Duration) error

	// Destroy removes the session. Destroying an absent session is not an
	// error.
	Destroy(ctx context.Context, id string) error
}

// RedisStore implements Store on Redis with JSON payloads
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a session store over an existing Redis client
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "session"}
}

// NewRedisClient connects a Redis client from a URL with bounded
// connection timeouts.
func NewRedisClient(url, password string, db int) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	if db >= 0 {
		opts.DB = db
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

func (s *RedisStore) key(id string) string {
	return fmt.Sprintf("%s:%s", s.prefix, id)
}

// Get loads a session by id
func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, s.key(id)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		// Corrupt payload; drop it rather than serving garbage
		s.client.Del(ctx, s.key(id))
		return nil, ErrNotFound
	}

	return &sess, nil
}

// Save persists the session with the given TTL
func (s *RedisStore) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.client.Set(ctx, s.key(sess.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	sess.MarkClean()
	return nil
}

// Destroy removes the session
func (s *RedisStore) Destroy(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}
