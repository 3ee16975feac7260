// Package redisstore keeps the fact set in a Redis set. A Store is both a
// facts.Backend and a live facts.Querier, so a shared Redis registry can serve
// as the reference of a delegating store.
package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vybium/vybium-fact-registry/internal/vybium-fact-registry/core"
)

const defaultKey = "vybium:facts"

// Config describes the Redis connection
type Config struct {
	Addr     string
	Password string
	DB       int
	Key      string
	// QueryTimeout bounds IsValid round trips. Default 2s.
	QueryTimeout time.Duration
}

// Store is a Redis-backed fact set
type Store struct {
	client  *redis.Client
	key     string
	timeout time.Duration
	logger  *zap.Logger
}

// Open connects and pings Redis.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.Addr == "" {
		return nil, core.Configf("redis address is empty")
	}
	key := cfg.Key
	if key == "" {
		key = defaultKey
	}
	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, core.Wrap(core.ErrStorage, err, "connect redis %s", cfg.Addr)
	}
	return &Store{client: client, key: key, timeout: timeout, logger: logger}, nil
}

// LoadFacts returns every member of the set
func (s *Store) LoadFacts(ctx context.Context) ([]core.Fact, error) {
	members, err := s.client.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, core.Wrap(core.ErrStorage, err, "smembers %s", s.key)
	}
	out := make([]core.Fact, 0, len(members))
	for _, m := range members {
		f, err := core.ParseFact(m)
		if err != nil {
			return nil, core.Wrap(core.ErrStorage, err, "corrupt member in %s", s.key)
		}
		out = append(out, f)
	}
	return out, nil
}

// SaveFact adds fact to the set
func (s *Store) SaveFact(ctx context.Context, fact core.Fact) error {
	if err := s.client.SAdd(ctx, s.key, fact.Hex()).Err(); err != nil {
		return core.Wrap(core.ErrStorage, err, "sadd %s", s.key)
	}
	return nil
}

// IsValid reports set membership. A failed round trip answers false.
func (s *Store) IsValid(fact core.Fact) bool {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	ok, err := s.client.SIsMember(ctx, s.key, fact.Hex()).Result()
	if err != nil {
		s.logger.Warn("redis membership query failed", zap.String("key", s.key), zap.Error(err))
		return false
	}
	return ok
}

// RegisterFact makes the store usable as a facts.Registry
func (s *Store) RegisterFact(ctx context.Context, fact core.Fact) error {
	return s.SaveFact(ctx, fact)
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client
func (s *Store) Close() error {
	return s.client.Close()
}
