package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"RateSync/internal/domain/models"

	"github.com/stretchr/testify/require"
)

func newTestCoordinator(cfg Config) (*Coordinator, *[]time.Duration) {
	c := New(cfg)
	var slept []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return c, &slept
}

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c := New(Config{})
		require.Equal(t, defaultMaxAttempts, c.cfg.MaxAttempts)
		require.Equal(t, defaultBaseDelay, c.cfg.BaseDelay)
		require.Equal(t, defaultMaxDelay, c.cfg.MaxDelay)
		require.Equal(t, defaultJitterLow, c.cfg.JitterLow)
		require.Equal(t, defaultJitterHigh, c.cfg.JitterHigh)
		require.Equal(t, defaultMaxEndpoints, c.cfg.MaxEndpoints)
	})

	t.Run("inverted jitter uses defaults", func(t *testing.T) {
		c := New(Config{JitterLow: 1.5, JitterHigh: 0.5})
		require.Equal(t, defaultJitterLow, c.cfg.JitterLow)
		require.Equal(t, defaultJitterHigh, c.cfg.JitterHigh)
	})
}

func TestCoordinatorDo(t *testing.T) {
	transport := &models.TransportError{Kind: models.TransportConnection, Err: errors.New("refused")}

	t.Run("success on first try", func(t *testing.T) {
		c, slept := newTestCoordinator(Config{MaxAttempts: 3})

		calls := 0
		err := c.Do(context.Background(), "ep", func(ctx context.Context) error {
			calls++
			return nil
		})

		require.NoError(t, err)
		require.Equal(t, 1, calls)
		require.Empty(t, *slept)
		require.Equal(t, StateSucceeded, c.StateOf("ep"))
	})

	t.Run("first attempt does not consume budget", func(t *testing.T) {
		c, _ := newTestCoordinator(Config{MaxAttempts: 2})

		calls := 0
		err := c.Do(context.Background(), "ep", func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return transport
			}
			return nil
		})

		require.NoError(t, err)
		require.Equal(t, 3, calls) // initial + 2 retries
	})

	t.Run("exhausted retries", func(t *testing.T) {
		c, slept := newTestCoordinator(Config{MaxAttempts: 2})

		calls := 0
		err := c.Do(context.Background(), "ep", func(ctx context.Context) error {
			calls++
			return transport
		})

		var exhausted *models.RetryExhaustedError
		require.ErrorAs(t, err, &exhausted)
		require.Equal(t, 2, exhausted.Attempts)
		require.ErrorIs(t, err, transport)
		require.Equal(t, 3, calls)
		require.Len(t, *slept, 2)
		require.Equal(t, StateExhausted, c.StateOf("ep"))
	})

	t.Run("exhausted endpoint refuses further work", func(t *testing.T) {
		c, _ := newTestCoordinator(Config{MaxAttempts: 1})

		_ = c.Do(context.Background(), "ep", func(ctx context.Context) error {
			return transport
		})
		require.False(t, c.CanRetry("ep"))

		calls := 0
		err := c.Do(context.Background(), "ep", func(ctx context.Context) error {
			calls++
			return nil
		})

		var exhausted *models.RetryExhaustedError
		require.ErrorAs(t, err, &exhausted)
		require.Equal(t, 0, calls)
	})

	t.Run("reset restores budget", func(t *testing.T) {
		c, _ := newTestCoordinator(Config{MaxAttempts: 1})

		_ = c.Do(context.Background(), "ep", func(ctx context.Context) error {
			return transport
		})
		c.Reset("ep")
		require.True(t, c.CanRetry("ep"))
		require.Equal(t, StateInitial, c.StateOf("ep"))
	})

	t.Run("non-retryable error propagates untouched", func(t *testing.T) {
		c, _ := newTestCoordinator(Config{MaxAttempts: 3})
		apiErr := &models.APIStatusError{StatusCode: 404}

		calls := 0
		err := c.Do(context.Background(), "ep", func(ctx context.Context) error {
			calls++
			return apiErr
		})

		require.Equal(t, apiErr, err)
		require.Equal(t, 1, calls)
	})

	t.Run("cancellation resets state and re-raises context error", func(t *testing.T) {
		c, _ := newTestCoordinator(Config{MaxAttempts: 3})
		ctx, cancel := context.WithCancel(context.Background())

		calls := 0
		err := c.Do(ctx, "ep", func(ctx context.Context) error {
			calls++
			cancel()
			return transport
		})

		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 1, calls)
		require.Equal(t, StateInitial, c.StateOf("ep"))
		require.True(t, c.CanRetry("ep"))
	})

	t.Run("cancellation during backoff", func(t *testing.T) {
		c := New(Config{MaxAttempts: 3, BaseDelay: time.Millisecond})
		c.sleep = func(ctx context.Context, d time.Duration) error {
			return context.Canceled
		}

		err := c.Do(context.Background(), "ep", func(ctx context.Context) error {
			return transport
		})

		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, StateInitial, c.StateOf("ep"))
	})

	t.Run("attempt observer sees counted attempts", func(t *testing.T) {
		c, _ := newTestCoordinator(Config{MaxAttempts: 2})
		var observed []string
		c.SetAttemptObserver(func(endpoint string) {
			observed = append(observed, endpoint)
		})

		_ = c.Do(context.Background(), "ep", func(ctx context.Context) error {
			return transport
		})

		require.Equal(t, []string{"ep", "ep", "ep"}, observed)
	})
}

func TestCoordinatorDelay(t *testing.T) {
	c := New(Config{BaseDelay: 100 * time.Millisecond, MaxDelay: 400 * time.Millisecond})

	t.Run("doubles then caps", func(t *testing.T) {
		for attempt, want := range map[int]time.Duration{
			1: 100 * time.Millisecond,
			2: 200 * time.Millisecond,
			3: 400 * time.Millisecond,
			4: 400 * time.Millisecond, // capped
		} {
			d := c.delay(attempt)
			low := time.Duration(float64(want) * c.cfg.JitterLow)
			high := time.Duration(float64(want) * c.cfg.JitterHigh)
			require.GreaterOrEqual(t, d, low, "attempt %d", attempt)
			require.LessOrEqual(t, d, high, "attempt %d", attempt)
		}
	})
}

func TestCoordinatorEndpointBound(t *testing.T) {
	c, _ := newTestCoordinator(Config{MaxAttempts: 1, MaxEndpoints: 2})
	transport := &models.TransportError{Kind: models.TransportTimeout, Err: errors.New("timeout")}

	exhaust := func(ep string) {
		_ = c.Do(context.Background(), ep, func(ctx context.Context) error {
			return transport
		})
	}

	exhaust("a")
	exhaust("b")
	exhaust("c") // evicts a, the least recently used

	require.Equal(t, StateInitial, c.StateOf("a"))
	require.True(t, c.CanRetry("a"))
	require.Equal(t, StateExhausted, c.StateOf("c"))
}

func TestResetAll(t *testing.T) {
	c, _ := newTestCoordinator(Config{MaxAttempts: 1})
	transport := &models.TransportError{Kind: models.TransportDNS, Err: errors.New("nxdomain")}

	_ = c.Do(context.Background(), "a", func(ctx context.Context) error { return transport })
	_ = c.Do(context.Background(), "b", func(ctx context.Context) error { return transport })

	c.ResetAll()
	require.True(t, c.CanRetry("a"))
	require.True(t, c.CanRetry("b"))
	require.Equal(t, 0, c.Attempt("a"))
}

func TestRetryable(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		require.False(t, Retryable(nil))
	})

	t.Run("context errors", func(t *testing.T) {
		require.False(t, Retryable(context.Canceled))
		require.False(t, Retryable(context.DeadlineExceeded))
	})

	t.Run("server status is retryable", func(t *testing.T) {
		for _, code := range []int{500, 502, 503, 504} {
			require.True(t, Retryable(&models.APIStatusError{StatusCode: code}), "status %d", code)
		}
	})

	t.Run("client status is not retryable", func(t *testing.T) {
		for _, code := range []int{400, 401, 404, 422, 429} {
			require.False(t, Retryable(&models.APIStatusError{StatusCode: code}), "status %d", code)
		}
	})

	t.Run("transport errors are retryable", func(t *testing.T) {
		for _, kind := range []string{
			models.TransportTimeout,
			models.TransportDNS,
			models.TransportConnection,
			models.TransportOffline,
		} {
			err := &models.TransportError{Kind: kind, Err: errors.New("boom")}
			require.True(t, Retryable(err), "kind %s", kind)
		}
	})

	t.Run("decode errors are not retryable", func(t *testing.T) {
		require.False(t, Retryable(&models.DecodeError{Err: errors.New("bad json")}))
	})

	t.Run("generic error is not retryable", func(t *testing.T) {
		require.False(t, Retryable(errors.New("boom")))
	})
}
