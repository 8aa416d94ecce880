package llm

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kvant/advisor/internal/models"
	"github.com/kvant/advisor/internal/types"
)

// ClientConfig represents the retry and timing policy of the generation
// client.
type ClientConfig struct {
	MaxAttempts     int
	BaseBackoff     time.Duration
	MaxBackoff      time.Duration
	Jitter          time.Duration
	OverallDeadline time.Duration
	RateLimit       float64 // outbound requests per second, 0 disables
}

// Attempt is one observed generation attempt. It feeds logging and metrics
// and is never part of the returned value.
type Attempt struct {
	Number  int
	Elapsed time.Duration
	Err     error
}

// AttemptObserver receives every attempt outcome as it happens.
type AttemptObserver func(Attempt)

// Client drives completion calls with exponential backoff, a hard attempt
// cap and an overall deadline. Transient failures (timeout, rate limit,
// 5xx-class, transport errors) are retried; authentication and
// malformed-request errors fail immediately.
type Client struct {
	config    ClientConfig
	completer types.Completer
	limiter   *rate.Limiter
	sleeper   types.Sleeper
	logger    *zap.Logger
	onAttempt AttemptObserver
	reachable atomic.Bool
}

// Option configures optional client collaborators.
type Option func(*Client)

// WithSleeper replaces the real backoff timer, mainly for tests.
func WithSleeper(s types.Sleeper) Option {
	return func(c *Client) { c.sleeper = s }
}

// WithAttemptObserver registers a per-attempt callback.
func WithAttemptObserver(fn AttemptObserver) Option {
	return func(c *Client) { c.onAttempt = fn }
}

func NewClient(config ClientConfig, completer types.Completer, logger *zap.Logger, opts ...Option) *Client {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.BaseBackoff <= 0 {
		config.BaseBackoff = time.Second
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = 8 * time.Second
	}
	if config.OverallDeadline <= 0 {
		config.OverallDeadline = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		config:    config,
		completer: completer,
		sleeper:   timerSleeper{},
		logger:    logger,
	}
	if config.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate runs the prompt through the completion model, retrying transient
// failures with exponential backoff until the attempt cap or the overall
// deadline is reached. The result is either the full answer or a typed
// failure, never something in between.
func (c *Client) Generate(ctx context.Context, prompt models.Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.OverallDeadline)
	defer cancel()

	backoff := retry.WithCappedDuration(c.config.MaxBackoff, retry.NewExponential(c.config.BaseBackoff))
	if c.config.Jitter > 0 {
		backoff = retry.WithJitter(c.config.Jitter, backoff)
	}

	var lastErr error
	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return "", &models.GenerationError{Attempts: attempt - 1, Err: models.ErrDeadlineExceeded}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", &models.GenerationError{Attempts: attempt - 1, Err: models.ErrDeadlineExceeded}
			}
		}

		start := time.Now()
		answer, err := c.completer.Complete(ctx, prompt)
		c.observe(Attempt{Number: attempt, Elapsed: time.Since(start), Err: err})

		if err == nil {
			c.reachable.Store(true)
			return answer, nil
		}
		lastErr = err
		c.reachable.Store(false)

		// Overall deadline expiry masquerades as a completion error.
		if ctx.Err() != nil {
			return "", &models.GenerationError{Attempts: attempt, Err: models.ErrDeadlineExceeded}
		}

		if !isTransient(err) {
			c.logger.Warn("generation failed fatally",
				zap.Int("attempt", attempt),
				zap.Error(err))
			return "", &models.GenerationError{Attempts: attempt, Err: err}
		}

		if attempt == c.config.MaxAttempts {
			break
		}

		delay, stop := backoff.Next()
		if stop {
			break
		}
		c.logger.Warn("generation attempt failed, backing off",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err))

		if err := c.sleeper.Sleep(ctx, delay); err != nil {
			return "", &models.GenerationError{Attempts: attempt, Err: models.ErrDeadlineExceeded}
		}
	}

	return "", &models.GenerationError{Attempts: c.config.MaxAttempts, Err: lastErr}
}

// Reachable reports the last-known reachability of the model endpoint.
func (c *Client) Reachable() bool {
	return c.reachable.Load()
}

func (c *Client) observe(a Attempt) {
	if a.Err == nil {
		c.logger.Info("generation attempt succeeded",
			zap.Int("attempt", a.Number),
			zap.Duration("elapsed", a.Elapsed))
	}
	if c.onAttempt != nil {
		c.onAttempt(a)
	}
}

// isTransient classifies a completion failure. Timeouts, rate limits,
// 5xx-class responses and transport errors may be retried; anything else
// (authentication, malformed request) is final.
func isTransient(err error) bool {
	if models.IsRetryable(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"429", "too many requests", "rate limit",
		"500", "502", "503", "504",
		"connection refused", "connection reset", "timeout", "temporarily unavailable",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// timerSleeper waits on a real timer, honoring context cancellation.
type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
