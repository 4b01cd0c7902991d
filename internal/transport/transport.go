// Package transport fetches remote pages for the job board sources.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/spigell/job-radar/internal/logger"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

type Request struct {
	URL      string
	Headers  http.Header
	ProxyURL string
}

// Fetcher returns the body of a successful GET.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Code)
}

// IsStatus reports whether err carries the given HTTP status.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

type CollyOptions struct {
	UserAgent string
	Timeout   time.Duration
}

// CollyFetcher builds a fresh collector for every call so that proxies and
// deadlines never leak between sources.
type CollyFetcher struct {
	userAgent string
	timeout   time.Duration
	logger    *zap.Logger
}

func NewCollyFetcher(opts CollyOptions, log *zap.Logger) *CollyFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if strings.TrimSpace(opts.UserAgent) == "" {
		opts.UserAgent = DefaultUserAgent
	}
	return &CollyFetcher{
		userAgent: opts.UserAgent,
		timeout:   opts.Timeout,
		logger:    logger.OrNop(log),
	}
}

func (f *CollyFetcher) Fetch(ctx context.Context, req Request) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
		colly.UserAgent(f.userAgent),
	)
	c.SetRequestTimeout(f.timeout)
	if req.ProxyURL != "" {
		if err := c.SetProxy(req.ProxyURL); err != nil {
			return nil, fmt.Errorf("set proxy: %w", err)
		}
	}

	var (
		body   []byte
		status int
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	c.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	start := time.Now()
	err := c.Request(http.MethodGet, req.URL, nil, nil, req.Headers)
	f.logger.Debug("fetch",
		zap.String("url", req.URL),
		zap.Bool("proxied", req.ProxyURL != ""),
		zap.Int("status", status),
		zap.Duration("took", time.Since(start)),
	)

	if status != 0 && (status < 200 || status >= 300) {
		return nil, &StatusError{URL: req.URL, Code: status}
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("GET %s: %w", req.URL, ctxErr)
		}
		return nil, fmt.Errorf("GET %s: %w", req.URL, err)
	}
	return body, nil
}
