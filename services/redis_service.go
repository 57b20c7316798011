package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Xine003/ResQWave-sub002/config"

	"github.com/go-redis/redis/v8"
)

// presenceTTL caps how long a presence entry survives without refresh
const presenceTTL = 2 * time.Minute

// InterfaceRedisService defines the Redis cache interface
type InterfaceRedisService interface {
	Set(key string, value interface{}, expiration time.Duration) error
	Get(key string, dest interface{}) error
	Delete(key string) error
	SetTerminalPresence(terminalID, status string) error
	GetTerminalPresence(terminalID string) (string, error)
	SetLastSeen(terminalID string, at time.Time) error
}

// RedisService handles Redis operations
type RedisService struct {
	Client *redis.Client
	Ctx    context.Context
}

// NewRedisService creates a new Redis service
func NewRedisService(cfg *config.Config) InterfaceRedisService {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.GetRedisAddr(),
		DB:   cfg.RedisDB,
	})

	return &RedisService{
		Client: client,
		Ctx:    context.Background(),
	}
}

// Set sets a key-value pair in Redis with expiration
func (s *RedisService) Set(key string, value interface{}, expiration time.Duration) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return s.Client.Set(s.Ctx, key, jsonValue, expiration).Err()
}

// Get gets a value from Redis by key
func (s *RedisService) Get(key string, dest interface{}) error {
	val, err := s.Client.Get(s.Ctx, key).Result()
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(val), dest)
}

// Delete deletes a key from Redis
func (s *RedisService) Delete(key string) error {
	return s.Client.Del(s.Ctx, key).Err()
}

// SetTerminalPresence mirrors a terminal's live status into the cache
func (s *RedisService) SetTerminalPresence(terminalID, status string) error {
	key := "terminal_presence:" + terminalID
	return s.Client.Set(s.Ctx, key, status, presenceTTL).Err()
}

// GetTerminalPresence reads a terminal's cached status
func (s *RedisService) GetTerminalPresence(terminalID string) (string, error) {
	key := "terminal_presence:" + terminalID
	return s.Client.Get(s.Ctx, key).Result()
}

// SetLastSeen records when a terminal was last heard from
func (s *RedisService) SetLastSeen(terminalID string, at time.Time) error {
	key := "terminal_last_seen:" + terminalID
	return s.Client.Set(s.Ctx, key, at.Format(time.RFC3339), 0).Err()
}
