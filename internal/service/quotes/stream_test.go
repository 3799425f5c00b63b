package quotes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"RateSync/internal/domain/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// quoteServer upgrades every request and answers each subscribe message with
// one quote frame for the subscribed currency. Ping frames are absorbed by
// the read loop.
func quoteServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var msg map[string]string
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg["type"] != "subscribe" {
				continue
			}
			out := map[string]interface{}{
				"type":     "quote",
				"currency": msg["currency"],
				"rate":     1.23,
			}
			if err := conn.WriteJSON(out); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func recvQuote(t *testing.T, ch <-chan models.RatePoint) models.RatePoint {
	t.Helper()
	select {
	case q, ok := <-ch:
		require.True(t, ok)
		return q
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for quote")
	}
	return models.RatePoint{}
}

func TestStreamDeliversQuotes(t *testing.T) {
	srv := quoteServer(t)
	defer srv.Close()

	s := New(wsURL(srv), []string{"EUR"}, time.Millisecond, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Connect(ctx))
	defer s.Close()
	require.NoError(t, s.Subscribe(ctx))
	require.True(t, s.IsConnected())

	qCh, _ := s.Read(ctx)
	q := recvQuote(t, qCh)
	require.Equal(t, "EUR", q.Code)
	require.InDelta(t, 1.23, q.Rate, 1e-12)
}

func TestStreamReconnectKeepsOnePinger(t *testing.T) {
	srv := quoteServer(t)
	defer srv.Close()

	// A ping interval far below the test duration makes leftover ping loops
	// from earlier connections write to the new conn alongside the current
	// one, which gorilla/websocket turns into a panic.
	s := New(wsURL(srv), []string{"EUR"}, time.Millisecond, 2*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Connect(ctx))
	defer s.Close()
	require.NoError(t, s.Subscribe(ctx))

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Reconnect(ctx))
	}
	time.Sleep(30 * time.Millisecond)

	require.True(t, s.IsConnected())
	qCh, _ := s.Read(ctx)
	q := recvQuote(t, qCh)
	require.Equal(t, "EUR", q.Code)
}

func TestStreamCloseStopsWriters(t *testing.T) {
	srv := quoteServer(t)
	defer srv.Close()

	s := New(wsURL(srv), []string{"EUR"}, time.Millisecond, 2*time.Millisecond)
	require.NoError(t, s.Connect(context.Background()))
	require.NoError(t, s.Close())

	require.False(t, s.IsConnected())
	require.Error(t, s.Subscribe(context.Background()))

	// Closing twice is a no-op, not a double close of the ping channel.
	require.NoError(t, s.Close())
}

func TestStreamReadAfterDropClosesChannels(t *testing.T) {
	srv := quoteServer(t)
	defer srv.Close()

	s := New(wsURL(srv), []string{"EUR"}, time.Millisecond, 50*time.Millisecond)
	ctx := context.Background()
	require.NoError(t, s.Connect(ctx))

	qCh, errCh := s.Read(ctx)
	require.NoError(t, s.Close())

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for read error")
	}
	_, ok := <-qCh
	require.False(t, ok)
}
