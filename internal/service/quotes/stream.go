package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"RateSync/internal/domain/models"

	"github.com/gorilla/websocket"
)

// Stream is a live quote feed over WebSocket. It supplements the daily
// historical sync with intraday rate updates for the current snapshot.
type Stream struct {
	url            string
	currencies     []string
	reconnectDelay time.Duration
	pingInterval   time.Duration

	// mu guards the connection state and serializes writes. gorilla/websocket
	// allows one concurrent reader and one concurrent writer, so the ping
	// loop and Subscribe must never write at the same time.
	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	pingDone  chan struct{}
}

// New creates a quote stream for the given currency codes.
func New(url string, currencies []string, reconnectDelay, pingInterval time.Duration) *Stream {
	return &Stream{
		url:            url,
		currencies:     currencies,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
	}
}

// Connect establishes the WebSocket connection and starts a ping loop bound
// to it. The loop ends with the connection, so reconnects never stack
// writers on one conn.
func (s *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("quotes connect: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.pingDone = make(chan struct{})
	go s.pingLoop(conn, s.pingDone)
	s.mu.Unlock()
	return nil
}

func (s *Stream) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.conn == conn && s.connected {
				_ = conn.WriteMessage(websocket.PingMessage, nil)
			}
			s.mu.Unlock()
		}
	}
}

// Subscribe registers interest in the configured currencies.
func (s *Stream) Subscribe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil || !s.connected {
		return fmt.Errorf("quotes not connected")
	}
	for _, code := range s.currencies {
		msg := map[string]string{"type": "subscribe", "currency": code}
		if err := s.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", code, err)
		}
	}
	return nil
}

type quoteFrame struct {
	Type     string  `json:"type"`
	Currency string  `json:"currency"`
	Rate     float64 `json:"rate"`
}

// Read streams quote updates and errors until the context ends or the
// connection drops. Both channels close when the read loop exits; the caller
// must Reconnect and call Read again for fresh ones.
func (s *Stream) Read(ctx context.Context) (<-chan models.RatePoint, <-chan error) {
	quotes := make(chan models.RatePoint, 256)
	errs := make(chan error, 1)

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	go func() {
		defer close(quotes)
		defer close(errs)
		if conn == nil {
			errs <- fmt.Errorf("quotes conn nil")
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			_, b, err := conn.ReadMessage()
			if err != nil {
				errs <- fmt.Errorf("quotes read: %w", err)
				return
			}
			var frame quoteFrame
			if err := json.Unmarshal(b, &frame); err != nil {
				// ignore non-quote frames
				continue
			}
			if frame.Type != "quote" || frame.Currency == "" {
				continue
			}
			select {
			case quotes <- models.RatePoint{Code: frame.Currency, Rate: frame.Rate}:
			default:
				// drop on backpressure
			}
		}
	}()

	return quotes, errs
}

// Reconnect closes and reconnects.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.reconnectDelay):
	}
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx)
}

// Close stops the ping loop and closes the connection.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	if s.pingDone != nil {
		close(s.pingDone)
		s.pingDone = nil
	}
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

// IsConnected indicates status.
func (s *Stream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}
