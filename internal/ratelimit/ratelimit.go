// Package ratelimit spaces out requests to each job board.
package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/logger"
	"github.com/spigell/job-radar/internal/utils"
)

// Limiter blocks until the caller may issue the next request to source.
type Limiter interface {
	Throttle(ctx context.Context, source string) error
}

// DefaultRates are requests per second per source.
var DefaultRates = map[string]float64{
	"indeed":       0.5,
	"linkedin":     2,
	"ziprecruiter": 2,
	"dice":         2,
	"remoteok":     1,
	"adzuna":       2,
	"headhunter":   1,
}

// Intervals converts requests-per-second rates into minimum spacing.
// Non-positive rates leave the source unlimited.
func Intervals(rates map[string]float64) map[string]time.Duration {
	out := make(map[string]time.Duration, len(rates))
	for source, rps := range rates {
		if rps <= 0 {
			continue
		}
		out[strings.ToLower(source)] = time.Duration(float64(time.Second) / rps)
	}
	return out
}

// MergeRates overlays configured rates on the defaults.
func MergeRates(configured map[string]float64) map[string]float64 {
	merged := make(map[string]float64, len(DefaultRates)+len(configured))
	for k, v := range DefaultRates {
		merged[k] = v
	}
	for k, v := range configured {
		merged[strings.ToLower(k)] = v
	}
	return merged
}

// Memory is a process-local limiter. Callers reserve the next slot under the
// lock and wait for it outside, so concurrent callers of one source queue up.
type Memory struct {
	mu        sync.Mutex
	intervals map[string]time.Duration
	last      map[string]time.Time

	now    func() time.Time
	wait   func(context.Context, time.Duration) error
	logger *zap.Logger
}

func NewMemory(rates map[string]float64, log *zap.Logger) *Memory {
	return &Memory{
		intervals: Intervals(rates),
		last:      make(map[string]time.Time),
		now:       time.Now,
		wait:      utils.WaitFor,
		logger:    logger.OrNop(log),
	}
}

func (m *Memory) Throttle(ctx context.Context, source string) error {
	source = strings.ToLower(source)

	m.mu.Lock()
	interval, ok := m.intervals[source]
	if !ok {
		m.mu.Unlock()
		return ctx.Err()
	}
	now := m.now()
	slot := now
	if last, seen := m.last[source]; seen {
		if next := last.Add(interval); next.After(now) {
			slot = next
		}
	}
	m.last[source] = slot
	m.mu.Unlock()

	delay := slot.Sub(now)
	if delay <= 0 {
		return ctx.Err()
	}
	m.logger.Debug("rate limit wait", zap.String(logger.FieldPlatform, source), zap.Duration("delay", delay))
	return m.wait(ctx, delay)
}
