package prefs

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const redisKeyPrefix = "gmxsms:prefs:"

// RedisStore keeps preferences in a Redis hash per account.
type RedisStore struct {
	redis   *redis.Client
	account string
	tracer  trace.Tracer
}

// NewRedisStore creates a store for account.
func NewRedisStore(client *redis.Client, account string) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("prefs: redis client required")
	}
	return &RedisStore{
		redis:   client,
		account: accountOrDefault(account),
		tracer:  otel.Tracer("gmx-sms-connector.internal.prefs.redis"),
	}, nil
}

func (s *RedisStore) key() string {
	return redisKeyPrefix + s.account
}

func (s *RedisStore) Load(ctx context.Context) (Preferences, error) {
	ctx, span := s.tracer.Start(ctx, "prefs.redis.load")
	defer span.End()

	values, err := s.redis.HGetAll(ctx, s.key()).Result()
	if err != nil && err != redis.Nil {
		span.RecordError(err)
		return Preferences{}, fmt.Errorf("prefs: load %s: %w", s.key(), err)
	}
	var p Preferences
	if v, ok := values[KeyEnabled]; ok {
		p.Enabled, _ = strconv.ParseBool(v)
	}
	p.Username = values[KeyUsername]
	p.Password = values[KeyPassword]
	p.CustomerID = values[KeyCustomerID]
	if v, ok := values[KeyHostCursor]; ok {
		cursor, err := strconv.Atoi(v)
		if err != nil {
			return Preferences{}, fmt.Errorf("prefs: invalid %s %q: %w", KeyHostCursor, v, err)
		}
		p.HostCursor = cursor
	}
	return p, nil
}

func (s *RedisStore) Save(ctx context.Context, p Preferences) error {
	ctx, span := s.tracer.Start(ctx, "prefs.redis.save")
	defer span.End()

	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, s.key(),
		KeyEnabled, strconv.FormatBool(p.Enabled),
		KeyUsername, p.Username,
		KeyPassword, p.Password,
		KeyCustomerID, p.CustomerID,
		KeyHostCursor, strconv.Itoa(p.HostCursor),
	)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("prefs: save %s: %w", s.key(), err)
	}
	return nil
}
