// Copyright 2019 the diamond-deployer authors
// This file is part of the diamond-deployer library in the Orbs project.
//
// This source code is licensed under the MIT license found in the LICENSE file in the root directory of this source tree.
// The above notice should be included in all copies or substantial portions of the software.

package synchronization

import (
	"context"
	"fmt"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
	"math"
	"math/rand"
	"sync"
	"time"
)

type BackoffConfig struct {
	MaxAttempts  uint32
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Jitter       bool
}

// Delay is the wait after the given (1 based) failed attempt, before jitter.
// Without a MaxDelay the doubling stops at the largest representable duration.
func (c BackoffConfig) Delay(attempt uint32) time.Duration {
	ceiling := c.MaxDelay
	if ceiling <= 0 {
		ceiling = time.Duration(math.MaxInt64)
	}
	delay := c.InitialDelay
	for i := uint32(1); i < attempt && delay > 0 && delay < ceiling; i++ {
		if delay > ceiling/2 {
			return ceiling
		}
		delay *= 2
	}
	if delay > ceiling {
		return ceiling
	}
	return delay
}

func (c BackoffConfig) Validate() error {
	if c.MaxAttempts == 0 {
		return errors.New("max attempts must be positive")
	}
	if c.InitialDelay < 0 || c.MaxDelay < 0 {
		return errors.New("delays must not be negative")
	}
	if c.MaxDelay > 0 && c.InitialDelay > c.MaxDelay {
		return errors.Errorf("initial delay %s exceeds max delay %s", c.InitialDelay, c.MaxDelay)
	}
	return nil
}

type AttemptsExhaustedError struct {
	Attempts uint32
	Waited   time.Duration
}

func (e *AttemptsExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts (%s of waiting)", e.Attempts, e.Waited)
}

func IsAttemptsExhausted(err error) bool {
	_, ok := errors.Cause(err).(*AttemptsExhaustedError)
	return ok
}

// CheckFunc reports whether the polled condition is reached; an error stops polling immediately
type CheckFunc func(ctx context.Context, attempt uint32) (done bool, err error)

// BackoffPoller retries a check with exponentially growing, bounded waits. It never polls forever:
// once MaxAttempts checks returned not done it fails with *AttemptsExhaustedError.
type BackoffPoller struct {
	config  BackoffConfig
	limiter *rate.Limiter

	mu struct {
		sync.Mutex
		rand *rand.Rand
	}
}

// NewBackoffPoller creates a poller; a nil limiter means checks are not rate limited
func NewBackoffPoller(config BackoffConfig, limiter *rate.Limiter) *BackoffPoller {
	p := &BackoffPoller{config: config, limiter: limiter}
	p.mu.rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	return p
}

// NewLimiter allows requestsPerSecond checks per second, zero disables limiting
func NewLimiter(requestsPerSecond uint32) *rate.Limiter {
	if requestsPerSecond == 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
}

func (p *BackoffPoller) Poll(ctx context.Context, check CheckFunc) error {
	if err := p.config.Validate(); err != nil {
		return err
	}

	var waited time.Duration
	for attempt := uint32(1); ; attempt++ {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return errors.Wrap(err, "polling aborted while rate limited")
			}
		}

		done, err := check(ctx, attempt)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if attempt >= p.config.MaxAttempts {
			return &AttemptsExhaustedError{Attempts: attempt, Waited: waited}
		}

		delay := p.withJitter(p.config.Delay(attempt))
		if err := Sleep(ctx, delay); err != nil {
			return err
		}
		waited += delay
	}
}

// withJitter spreads the delay over [delay/2, delay]
func (p *BackoffPoller) withJitter(delay time.Duration) time.Duration {
	if !p.config.Jitter || delay <= 1 {
		return delay
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	half := delay / 2
	return half + time.Duration(p.mu.rand.Int63n(int64(delay-half)+1))
}

// Sleep waits for d or until ctx ends, whichever comes first
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
