package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"RateSync/internal/domain/models"
)

// State of one endpoint's retry bookkeeping.
type State int

const (
	StateInitial State = iota
	StateRetrying
	StateExhausted
	StateSucceeded
)

const (
	defaultMaxAttempts  = 3
	defaultBaseDelay    = 500 * time.Millisecond
	defaultMaxDelay     = 8 * time.Second
	defaultJitterLow    = 0.8
	defaultJitterHigh   = 1.2
	defaultMaxEndpoints = 64
)

// Config encapsulates exponential backoff settings.
type Config struct {
	MaxAttempts  int // retry budget; the first attempt is not counted
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterLow    float64
	JitterHigh   float64
	MaxEndpoints int // bound on tracked endpoint keys
}

type endpointState struct {
	state    State
	attempt  int
	lastUsed time.Time
}

// Coordinator serializes retry bookkeeping per logical endpoint. The calls
// themselves run outside the lock; only state increments are atomic.
type Coordinator struct {
	cfg Config

	mu        sync.Mutex
	endpoints map[string]*endpointState
	rng       *rand.Rand

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error

	// onAttempt, when set, observes every counted attempt.
	onAttempt func(endpoint string)
}

// SetAttemptObserver installs a hook called on every counted attempt.
func (c *Coordinator) SetAttemptObserver(fn func(endpoint string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onAttempt = fn
}

// New constructs a coordinator with sane defaults.
func New(cfg Config) *Coordinator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultMaxDelay
	}
	if cfg.JitterLow <= 0 || cfg.JitterHigh < cfg.JitterLow {
		cfg.JitterLow = defaultJitterLow
		cfg.JitterHigh = defaultJitterHigh
	}
	if cfg.MaxEndpoints <= 0 {
		cfg.MaxEndpoints = defaultMaxEndpoints
	}
	return &Coordinator{
		cfg:       cfg,
		endpoints: make(map[string]*endpointState),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:     sleepCtx,
	}
}

// Do runs fn, retrying retryable failures with capped, jittered backoff.
// The first attempt runs immediately and does not consume budget.
// Cancellation during the delay or the call resets the endpoint to Initial
// and re-raises the context error, never a connectivity failure.
func (c *Coordinator) Do(ctx context.Context, endpoint string, fn func(ctx context.Context) error) error {
	if !c.CanRetry(endpoint) {
		st := c.stateFor(endpoint)
		return &models.RetryExhaustedError{Endpoint: endpoint, Attempts: st.attempt}
	}

	for {
		err := fn(ctx)
		if err == nil {
			c.transition(endpoint, StateSucceeded, 0)
			return nil
		}

		if canceled(ctx, err) {
			c.transition(endpoint, StateInitial, 0)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		if !Retryable(err) {
			return err
		}

		attempt := c.recordAttempt(endpoint)
		if attempt > c.cfg.MaxAttempts {
			c.transition(endpoint, StateExhausted, c.cfg.MaxAttempts)
			return &models.RetryExhaustedError{Endpoint: endpoint, Attempts: c.cfg.MaxAttempts, Last: err}
		}

		if serr := c.sleep(ctx, c.delay(attempt)); serr != nil {
			c.transition(endpoint, StateInitial, 0)
			return serr
		}
	}
}

// CanRetry reports whether the endpoint still has budget left.
func (c *Coordinator) CanRetry(endpoint string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.endpoints[endpoint]
	if !ok {
		return true
	}
	st.lastUsed = time.Now()
	return st.state != StateExhausted
}

// Attempt returns the endpoint's current attempt count.
func (c *Coordinator) Attempt(endpoint string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.endpoints[endpoint]; ok {
		return st.attempt
	}
	return 0
}

// StateOf returns the endpoint's current state.
func (c *Coordinator) StateOf(endpoint string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.endpoints[endpoint]; ok {
		return st.state
	}
	return StateInitial
}

// Reset returns the endpoint to Initial, e.g. after a network reconnect.
func (c *Coordinator) Reset(endpoint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.endpoints, endpoint)
}

// ResetAll clears all endpoint state.
func (c *Coordinator) ResetAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endpoints = make(map[string]*endpointState)
}

func (c *Coordinator) recordAttempt(endpoint string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.stateLocked(endpoint)
	st.attempt++
	st.state = StateRetrying
	st.lastUsed = time.Now()
	if c.onAttempt != nil {
		c.onAttempt(endpoint)
	}
	return st.attempt
}

func (c *Coordinator) transition(endpoint string, to State, attempt int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if to == StateInitial {
		delete(c.endpoints, endpoint)
		return
	}
	st := c.stateLocked(endpoint)
	st.state = to
	st.attempt = attempt
	st.lastUsed = time.Now()
}

func (c *Coordinator) stateFor(endpoint string) endpointState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st, ok := c.endpoints[endpoint]; ok {
		return *st
	}
	return endpointState{}
}

func (c *Coordinator) stateLocked(endpoint string) *endpointState {
	st, ok := c.endpoints[endpoint]
	if !ok {
		if len(c.endpoints) >= c.cfg.MaxEndpoints {
			c.evictOldestLocked()
		}
		st = &endpointState{}
		c.endpoints[endpoint] = st
	}
	return st
}

// evictOldestLocked drops the least-recently-used endpoint; an evicted
// endpoint's effective state is Initial.
func (c *Coordinator) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	first := true
	for key, st := range c.endpoints {
		if first || st.lastUsed.Before(oldest) {
			oldest = st.lastUsed
			oldestKey = key
			first = false
		}
	}
	if oldestKey != "" {
		delete(c.endpoints, oldestKey)
	}
}

// delay computes min(base*2^(attempt-1), max) scaled by uniform jitter.
func (c *Coordinator) delay(attempt int) time.Duration {
	d := math.Min(
		float64(c.cfg.BaseDelay)*math.Pow(2, float64(attempt-1)),
		float64(c.cfg.MaxDelay),
	)
	c.mu.Lock()
	j := c.cfg.JitterLow + c.rng.Float64()*(c.cfg.JitterHigh-c.cfg.JitterLow)
	c.mu.Unlock()
	return time.Duration(d * j)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func canceled(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
