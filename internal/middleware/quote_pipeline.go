package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"RateSync/internal/domain/models"
	"RateSync/internal/service/metrics"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, q models.RatePoint) error
}

// QuotePipeline sits between the quote stream and the snapshot updater.
// It validates, throttles per currency, and buffers when downstream is
// unavailable.
type QuotePipeline struct {
	proc     Proc
	maxRPS   int
	bufSize  int
	bufCh    chan models.RatePoint
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-currency last accepted time
}

type PipelineOption func(*QuotePipeline)

// WithMaxRPS sets the max quotes per second per currency.
func WithMaxRPS(n int) PipelineOption {
	return func(p *QuotePipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *QuotePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewQuotePipeline creates a new pipeline.
func NewQuotePipeline(proc Proc, opts ...PipelineOption) *QuotePipeline {
	p := &QuotePipeline{
		proc:     proc,
		maxRPS:   20,
		bufSize:  1000,
		bufCh:    make(chan models.RatePoint, 1000),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan models.RatePoint, p.bufSize)
	}
	metrics.Register()
	return p
}

// Start launches background flushing of buffered quotes.
func (p *QuotePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case q := <-p.bufCh:
				if err := p.proc.Process(ctx, q); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					metrics.PipelineEvents.WithLabelValues("flush_error").Inc()
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- q:
					default:
						metrics.PipelineEvents.WithLabelValues("buffer_drop").Inc()
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *QuotePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards a quote, buffering on errors.
func (p *QuotePipeline) Process(ctx context.Context, q models.RatePoint) error {
	now := time.Now()
	if err := validateQuote(q); err != nil {
		metrics.PipelineEvents.WithLabelValues("invalid").Inc()
		return err
	}
	if !p.allow(q.Code, now) {
		// throttled; record and drop silently
		metrics.PipelineEvents.WithLabelValues("throttled").Inc()
		return nil
	}

	if err := p.proc.Process(ctx, q); err != nil {
		metrics.PipelineEvents.WithLabelValues("process_error").Inc()
		select {
		case p.bufCh <- q:
		default:
			metrics.PipelineEvents.WithLabelValues("buffer_full").Inc()
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	metrics.PipelineEvents.WithLabelValues("ok").Inc()
	return nil
}

func validateQuote(q models.RatePoint) error {
	if q.Code == "" {
		return fmt.Errorf("currency empty")
	}
	if q.Rate <= 0 {
		return fmt.Errorf("rate not positive")
	}
	return nil
}

func (p *QuotePipeline) allow(code string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[code]
	if last.IsZero() {
		p.lastSeen[code] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[code] = now
	return true
}
