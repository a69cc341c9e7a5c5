package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/boddenberg/telecom-support-go/internal/domain"

	backend "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("infra/accounts")

// RedisStore keeps the authoritative collection as one JSON document and
// publishes every new version on a channel so other instances reconcile.
type RedisStore struct {
	client  *backend.Client
	key     string
	channel string
	logger  *zap.Logger
}

// Option configures a RedisStore.
type Option func(*RedisStore)

// WithKey sets the document key. The update channel is key + ":updates".
func WithKey(key string) Option {
	return func(s *RedisStore) {
		s.key = key
		s.channel = key + ":updates"
	}
}

// NewRedisStore connects to address.
func NewRedisStore(address, password string, db int, logger *zap.Logger, opts ...Option) *RedisStore {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewRedisStoreFromClient(rdb, logger, opts...)
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *backend.Client, logger *zap.Logger, opts ...Option) *RedisStore {
	s := &RedisStore{
		client:  client,
		key:     "support:customers",
		channel: "support:customers:updates",
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the collection. A missing key is an empty collection.
func (s *RedisStore) Load(ctx context.Context) ([]domain.CustomerRecord, error) {
	ctx, span := tracer.Start(ctx, "RedisStore.Load")
	defer span.End()

	val, err := s.client.Get(ctx, s.key).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return []domain.CustomerRecord{}, nil
		}
		return nil, &domain.ErrExternalService{Service: "redis", Err: err}
	}

	var customers []domain.CustomerRecord
	if err := json.Unmarshal([]byte(val), &customers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal customers: %w", err)
	}
	return customers, nil
}

// Save writes the collection and publishes it in one pipeline.
func (s *RedisStore) Save(ctx context.Context, customers []domain.CustomerRecord) error {
	ctx, span := tracer.Start(ctx, "RedisStore.Save")
	defer span.End()

	if customers == nil {
		customers = []domain.CustomerRecord{}
	}
	data, err := json.Marshal(customers)
	if err != nil {
		return fmt.Errorf("failed to marshal customers: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key, data, 0)
	pipe.Publish(ctx, s.channel, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return &domain.ErrExternalService{Service: "redis", Err: err}
	}
	return nil
}

// Watch subscribes to the update channel and calls fn for every published
// collection until ctx is done.
func (s *RedisStore) Watch(ctx context.Context, fn func([]domain.CustomerRecord)) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return &domain.ErrExternalService{Service: "redis", Err: err}
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var customers []domain.CustomerRecord
			if err := json.Unmarshal([]byte(msg.Payload), &customers); err != nil {
				s.logger.Warn("redis: dropping malformed customers update", zap.Error(err))
				continue
			}
			fn(customers)
		}
	}
}

// Ping checks the connection. Used by the health probe.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return &domain.ErrExternalService{Service: "redis", Err: err}
	}
	return nil
}

// Close closes the redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
