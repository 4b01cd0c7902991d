package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/logger"
	"github.com/spigell/job-radar/internal/utils"
)

const keyPrefix = "job-radar:ratelimit:"

// reserveScript stores the next free slot in milliseconds of server time
// and returns how long the caller has to wait for it.
var reserveScript = redis.NewScript(`
local t = redis.call('TIME')
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)
local interval = tonumber(ARGV[1])
local last = tonumber(redis.call('GET', KEYS[1]) or '0')
local slot = math.max(now, last + interval)
redis.call('SET', KEYS[1], slot, 'PX', (slot - now) + interval * 2)
return slot - now
`)

// Redis shares slots between processes through one key per source.
type Redis struct {
	client    redis.Scripter
	intervals map[string]time.Duration
	wait      func(context.Context, time.Duration) error
	logger    *zap.Logger
}

func NewRedis(client redis.Scripter, rates map[string]float64, log *zap.Logger) *Redis {
	return &Redis{
		client:    client,
		intervals: Intervals(rates),
		wait:      utils.WaitFor,
		logger:    logger.OrNop(log),
	}
}

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func (r *Redis) Throttle(ctx context.Context, source string) error {
	source = strings.ToLower(source)
	interval, ok := r.intervals[source]
	if !ok {
		return ctx.Err()
	}

	waitMs, err := reserveScript.Run(ctx, r.client, []string{keyPrefix + source}, interval.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("reserve %s slot: %w", source, err)
	}
	if waitMs <= 0 {
		return ctx.Err()
	}

	delay := time.Duration(waitMs) * time.Millisecond
	r.logger.Debug("rate limit wait", zap.String(logger.FieldPlatform, source), zap.Duration("delay", delay))
	return r.wait(ctx, delay)
}
