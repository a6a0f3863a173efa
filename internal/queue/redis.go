package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"door-opener-bridge/internal/bridge"
	"door-opener-bridge/internal/logging"
	"door-opener-bridge/internal/types"
)

const (
	defaultPollTimeout = 5 * time.Second
	retryBackoff       = time.Second
)

// Submitter hands decoded envelopes to the dispatch loop
type Submitter interface {
	Submit(ctx context.Context, env types.Envelope) (bridge.Result, error)
}

// RedisConfig holds the connection settings for the event list
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Queue    string
}

// RedisSource pops envelopes pushed by the host onto a Redis list
type RedisSource struct {
	client      *redis.Client
	queue       string
	events      Submitter
	logger      *logrus.Entry
	pollTimeout time.Duration
}

// NewRedisSource connects to Redis and verifies the connection
func NewRedisSource(ctx context.Context, cfg RedisConfig, events Submitter, logger *logrus.Logger) (*RedisSource, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisSource(client, cfg.Queue, events, logger), nil
}

func newRedisSource(client *redis.Client, queue string, events Submitter, logger *logrus.Logger) *RedisSource {
	return &RedisSource{
		client: client,
		queue:  queue,
		events: events,
		logger: logging.NewTransportLogger(logger, "redis").WithField("queue", queue),

		pollTimeout: defaultPollTimeout,
	}
}

// DeadLetterQueue is the list malformed payloads are moved to
func (s *RedisSource) DeadLetterQueue() string {
	return s.queue + ":dlq"
}

// Run pops and submits events until ctx is cancelled or the dispatcher closes
func (s *RedisSource) Run(ctx context.Context) error {
	s.logger.Info("Redis event source started")
	defer s.logger.Info("Redis event source stopped")

	for {
		result, err := s.client.BRPop(ctx, s.pollTimeout, s.queue).Result()
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			logging.LogTransportError(s.logger, err, "redis", "brpop")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryBackoff):
			}
			continue
		}

		// BRPOP replies with [key, value]
		if len(result) < 2 {
			continue
		}

		deadLetter, err := s.process(ctx, result[1])
		if deadLetter {
			if dlqErr := s.client.LPush(ctx, s.DeadLetterQueue(), result[1]).Err(); dlqErr != nil {
				logging.LogTransportError(s.logger, dlqErr, "redis", "dead_letter")
			}
		}
		if errors.Is(err, bridge.ErrDispatcherClosed) {
			return nil
		}
	}
}

// process submits one payload. Payloads that can never be delivered are flagged for the dead letter list.
func (s *RedisSource) process(ctx context.Context, payload string) (deadLetter bool, err error) {
	env, err := types.DecodeEnvelope([]byte(payload))
	if err != nil {
		logging.LogTransportError(s.logger, err, "redis", "decode")
		return true, err
	}

	result, err := s.events.Submit(ctx, env)
	if err != nil {
		if !errors.Is(err, bridge.ErrDispatcherClosed) && ctx.Err() == nil {
			logging.LogTransportError(s.logger, err, "redis", "submit")
		}
		return false, err
	}

	s.logger.WithFields(logrus.Fields{
		"type":      result.Type,
		"outcome":   result.Outcome,
		"cancelled": result.Cancelled,
	}).Debug("Redis event handled")
	return false, nil
}

// Publish pushes env onto the list, the way the host does
func (s *RedisSource) Publish(ctx context.Context, env types.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}
	return s.client.LPush(ctx, s.queue, data).Err()
}

// Len returns the number of envelopes waiting on the list
func (s *RedisSource) Len(ctx context.Context) (int64, error) {
	return s.client.LLen(ctx, s.queue).Result()
}

// Health checks the Redis connection health
func (s *RedisSource) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisSource) Close() error {
	return s.client.Close()
}
