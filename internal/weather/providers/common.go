package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// RetryConfig controls the fixed-delay retry behaviour.
type RetryConfig struct {
	// Attempts is the total number of tries, including the first one.
	Attempts int
	// Delay is the fixed wait between attempts.
	Delay time.Duration
	// Timeout bounds every single attempt.
	Timeout time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client *http.Client
	Retry  RetryConfig
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid retry configuration")
)

func newCircuitBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    1 * time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("providers: circuit %s changed from %s to %s", name, from, to)
		},
	})
}

// circuits hands out one breaker per location so failures of one city never
// short-circuit requests for another.
type circuits struct {
	name string

	mu     sync.Mutex
	byCity map[string]*gobreaker.CircuitBreaker
}

func newCircuits(name string) *circuits {
	return &circuits{name: name, byCity: make(map[string]*gobreaker.CircuitBreaker)}
}

// For returns the breaker guarding key, creating it on first use.
func (c *circuits) For(key string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	cb, ok := c.byCity[key]
	if !ok {
		cb = newCircuitBreaker(c.name + ":" + key)
		c.byCity[key] = cb
	}
	return cb
}

// doRequestWithRetry executes the request built by buildRequest with a fixed
// number of attempts, a fixed delay between them and a circuit breaker.
// Only transport errors, 429 and 5xx count against the breaker; any non-2xx
// status is retried. On success the response body is returned fully read.
func doRequestWithRetry(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func(ctx context.Context) (*http.Request, error),
) ([]byte, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Retry.Attempts < 1 || cfg.Retry.Delay < 0 {
		return nil, errInvalidConfig
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.Retry.Attempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		body, err := doAttempt(ctx, cfg, cb, buildRequest)
		if err == nil {
			return body, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}

		lastErr = err
		log.Warnf("providers: attempt %d/%d failed: %v", attempt, cfg.Retry.Attempts, err)
		if attempt == cfg.Retry.Attempts {
			break
		}

		timer := time.NewTimer(cfg.Retry.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
			// continue to next attempt
		}
	}

	return nil, fmt.Errorf("giving up after %d attempts: %w", cfg.Retry.Attempts, lastErr)
}

func doAttempt(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func(ctx context.Context) (*http.Request, error),
) ([]byte, error) {
	if cfg.Retry.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Retry.Timeout)
		defer cancel()
	}

	req, err := buildRequest(ctx)
	if err != nil {
		return nil, err
	}

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := cfg.Client.Do(req)
		if execErr != nil {
			return nil, execErr
		}

		// Handle rate limiting and server errors explicitly.
		if resp.StatusCode == http.StatusTooManyRequests {
			drain(resp)
			return nil, errRateLimited
		}
		if resp.StatusCode >= 500 {
			drain(resp)
			return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
		}

		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	resp, ok := result.(*http.Response)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
