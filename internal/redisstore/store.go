package redisstore

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/appclacks/sloworker/internal/validator"
	"github.com/appclacks/sloworker/pkg/slo"
	"github.com/appclacks/sloworker/pkg/slo/aggregates"
	"github.com/redis/go-redis/v9"
)

const (
	successfulField = "successful_responses"
	fastField       = "fast_responses"
	totalField      = "total_responses"
)

// incrementScript increments the counters of an existing row only.
var incrementScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HINCRBY", KEYS[1], "successful_responses", ARGV[1])
redis.call("HINCRBY", KEYS[1], "fast_responses", ARGV[2])
redis.call("HINCRBY", KEYS[1], "total_responses", 1)
return 1
`)

// Store keeps one hash per url and a set indexing the known urls.
type Store struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

var _ slo.Store = (*Store)(nil)

func New(ctx context.Context, logger *slog.Logger, config Configuration) (*Store, error) {
	err := validator.Validator.Struct(config)
	if err != nil {
		return nil, err
	}
	prefix := config.Prefix
	if prefix == "" {
		prefix = "sloworker"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
	})
	err = client.Ping(ctx).Err()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: fail to connect to redis: %w", slo.ErrStoreUnavailable, err)
	}
	return &Store{
		client: client,
		prefix: prefix,
		logger: logger,
	}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) indexKey() string {
	return s.prefix + ":slis"
}

func (s *Store) rowKey(url string) string {
	return s.prefix + ":sli:" + url
}

func toIncrement(value bool) int64 {
	if value {
		return 1
	}
	return 0
}

func (s *Store) ensureRow(ctx context.Context, pipe redis.Pipeliner, url string) {
	key := s.rowKey(url)
	pipe.HSetNX(ctx, key, successfulField, 0)
	pipe.HSetNX(ctx, key, fastField, 0)
	pipe.HSetNX(ctx, key, totalField, 0)
	pipe.SAdd(ctx, s.indexKey(), url)
}

func (s *Store) EnsureRow(ctx context.Context, url string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		s.ensureRow(ctx, pipe, url)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: fail to create SLI row for %s: %w", slo.ErrStoreUnavailable, url, err)
	}
	return nil
}

func (s *Store) RecordOutcome(ctx context.Context, outcome aggregates.Outcome) error {
	err := incrementScript.Run(ctx, s.client, []string{s.rowKey(outcome.URL)}, toIncrement(outcome.Successful), toIncrement(outcome.Fast)).Err()
	if err != nil {
		return fmt.Errorf("%w: fail to update SLI row for %s: %w", slo.ErrStoreUnavailable, outcome.URL, err)
	}
	return nil
}

// RecordBatch queues every outcome in a single MULTI/EXEC transaction.
func (s *Store) RecordBatch(ctx context.Context, outcomes []aggregates.Outcome) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, outcome := range outcomes {
			s.ensureRow(ctx, pipe, outcome.URL)
			key := s.rowKey(outcome.URL)
			pipe.HIncrBy(ctx, key, successfulField, toIncrement(outcome.Successful))
			pipe.HIncrBy(ctx, key, fastField, toIncrement(outcome.Fast))
			pipe.HIncrBy(ctx, key, totalField, 1)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: fail to record SLI batch: %w", slo.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *Store) ListCounters(ctx context.Context) ([]aggregates.Counters, error) {
	urls, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: fail to list SLIs: %w", slo.ErrStoreUnavailable, err)
	}
	commands := make([]*redis.MapStringStringCmd, len(urls))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, url := range urls {
			commands[i] = pipe.HGetAll(ctx, s.rowKey(url))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: fail to read SLIs: %w", slo.ErrStoreUnavailable, err)
	}
	result := make([]aggregates.Counters, 0, len(urls))
	for i, url := range urls {
		fields := commands[i].Val()
		if len(fields) == 0 {
			s.logger.Warn(fmt.Sprintf("url %s is indexed but has no SLI row", url))
			continue
		}
		counters := aggregates.Counters{URL: url}
		for field, target := range map[string]*int64{
			successfulField: &counters.Successful,
			fastField:       &counters.Fast,
			totalField:      &counters.Total,
		} {
			value, err := strconv.ParseInt(fields[field], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid value %q for field %s of %s: %w", fields[field], field, url, err)
			}
			*target = value
		}
		result = append(result, counters)
	}
	return result, nil
}
