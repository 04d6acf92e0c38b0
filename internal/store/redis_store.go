package store

import (
	"context"
	"io"

	"hq-entitlements/internal/model"

	"github.com/cockroachdb/errors"
	rd "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultRedisKey is where the order document lives unless configured otherwise.
const DefaultRedisKey = "entitlements:orders"

// redisStore keeps the order document under a single key. SET replaces
// the value atomically.
type redisStore struct {
	client rd.Cmdable
	key    string
	closer io.Closer
	logger zerolog.Logger
}

// NewRedisStore creates a store holding the document at key. If client is
// a *redis.Client it is closed together with the store.
func NewRedisStore(client rd.Cmdable, key string, logger zerolog.Logger) Store {
	if key == "" {
		key = DefaultRedisKey
	}

	s := &redisStore{
		client: client,
		key:    key,
		logger: logger.With().Str("store", BackendRedis).Str("key", key).Logger(),
	}
	if c, ok := client.(io.Closer); ok {
		s.closer = c
	}
	return s
}

func (s *redisStore) Backend() string {
	return BackendRedis
}

func (s *redisStore) LoadAll(ctx context.Context) ([]model.Order, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			s.logger.Debug().Msg("order document does not exist yet")
			return []model.Order{}, nil
		}
		return nil, fail(OpLoad, BackendRedis, err, "get order document")
	}

	orders, err := decodeDocument(data)
	if err != nil {
		return nil, fail(OpLoad, BackendRedis, err, "parse order document")
	}

	s.logger.Debug().Int("order_count", len(orders)).Msg("order document loaded from redis")
	return orders, nil
}

func (s *redisStore) SaveAll(ctx context.Context, orders []model.Order) error {
	data, err := encodeDocument(orders)
	if err != nil {
		return fail(OpSave, BackendRedis, err, "marshal order document")
	}

	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fail(OpSave, BackendRedis, err, "set order document")
	}

	s.logger.Debug().Int("order_count", len(orders)).Msg("order document saved to redis")
	return nil
}

func (s *redisStore) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
