package sources

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/spigell/job-radar/internal/transport"
)

var testNow = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

type stubFetcher struct {
	mu       sync.Mutex
	requests []transport.Request
	respond  func(req transport.Request, call int) ([]byte, error)
}

func (f *stubFetcher) Fetch(_ context.Context, req transport.Request) ([]byte, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	call := len(f.requests) - 1
	f.mu.Unlock()
	if f.respond == nil {
		return nil, errors.New("no response configured")
	}
	return f.respond(req, call)
}

func (f *stubFetcher) calls() []transport.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transport.Request(nil), f.requests...)
}

// pages serves bodies in order and an empty body afterwards.
func pages(bodies ...string) func(transport.Request, int) ([]byte, error) {
	return func(_ transport.Request, call int) ([]byte, error) {
		if call < len(bodies) {
			return []byte(bodies[call]), nil
		}
		return []byte{}, nil
	}
}

type countingLimiter struct {
	mu    sync.Mutex
	calls map[string]int
}

func (l *countingLimiter) Throttle(ctx context.Context, source string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.calls == nil {
		l.calls = make(map[string]int)
	}
	l.calls[source]++
	return ctx.Err()
}

func testDeps(f transport.Fetcher, proxies transport.ProxyProvider) Deps {
	return Deps{
		Fetcher: f,
		Proxies: proxies,
		Limiter: &countingLimiter{},
		Now:     func() time.Time { return testNow },
	}
}
