package usecase

import (
	"context"

	"RateSync/internal/domain/models"
	mid "RateSync/internal/middleware"
	"RateSync/internal/service/quotes"
)

// SnapshotUpdater folds accepted quotes into the snapshot class.
type SnapshotUpdater struct {
	sync *SyncOrchestrator
}

func NewSnapshotUpdater(sync *SyncOrchestrator) *SnapshotUpdater {
	return &SnapshotUpdater{sync: sync}
}

func (u *SnapshotUpdater) Process(ctx context.Context, q models.RatePoint) error {
	u.sync.ApplyQuote(q.Code, q.Rate)
	return nil
}

// QuoteCollector collects live quotes from the stream and routes them
// through the pipeline into the snapshot.
type QuoteCollector struct {
	stream *quotes.Stream
	pipe   *mid.QuotePipeline
}

// NewQuoteCollector creates a new QuoteCollector instance.
func NewQuoteCollector(stream *quotes.Stream, pipe *mid.QuotePipeline) *QuoteCollector {
	return &QuoteCollector{stream: stream, pipe: pipe}
}

// IsConnected returns true if the quote stream is connected.
func (c *QuoteCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *QuoteCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	qCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, qCh, errCh)
	return nil
}

func (c *QuoteCollector) consume(ctx context.Context, qCh <-chan models.RatePoint, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if ok && err == nil {
				continue
			}
			// The stream closes both channels after a read error, so fresh
			// ones must be acquired along with the new connection.
			qCh, errCh = c.reconnect(ctx)
		case q, ok := <-qCh:
			if !ok {
				qCh, errCh = c.reconnect(ctx)
				continue
			}
			if q.Code == "" {
				continue
			}
			_ = c.pipe.Process(ctx, q)
		}
	}
}

// reconnect retries until the stream is back or the context ends. Nil
// channels block the select, leaving only ctx.Done to fire.
func (c *QuoteCollector) reconnect(ctx context.Context) (<-chan models.RatePoint, <-chan error) {
	for {
		if ctx.Err() != nil {
			return nil, nil
		}
		// Reconnect waits the configured delay before dialing, pacing retries.
		if err := c.stream.Reconnect(ctx); err != nil {
			continue
		}
		return c.stream.Read(ctx)
	}
}

// Shutdown stops the pipeline and closes the stream.
func (c *QuoteCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
