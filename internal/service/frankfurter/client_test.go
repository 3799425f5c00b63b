package frankfurter

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"RateSync/internal/domain/models"

	"github.com/stretchr/testify/require"
)

func mustDay(t *testing.T, s string) models.Day {
	t.Helper()
	d, err := models.ParseDay(s)
	require.NoError(t, err)
	return d
}

func TestFetchHistorical(t *testing.T) {
	t.Run("decodes a range response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/2024-06-03..2024-06-04", r.URL.Path)
			require.Equal(t, "USD", r.URL.Query().Get("base"))
			w.Write([]byte(`{"base":"USD","rates":{
				"2024-06-03":{"EUR":0.90},
				"2024-06-04":{"EUR":0.91}
			}}`))
		}))
		defer srv.Close()

		c := New(srv.URL, 5*time.Second)
		rates, err := c.FetchHistorical(context.Background(), "USD",
			mustDay(t, "2024-06-03"), mustDay(t, "2024-06-04"))

		require.NoError(t, err)
		require.Len(t, rates, 2)
		require.InDelta(t, 0.91, rates["2024-06-04"]["EUR"], 1e-12)
	})

	t.Run("missing rates decode to an empty map", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"base":"USD"}`))
		}))
		defer srv.Close()

		c := New(srv.URL, 5*time.Second)
		rates, err := c.FetchHistorical(context.Background(), "USD",
			mustDay(t, "2030-01-01"), mustDay(t, "2030-01-02"))

		require.NoError(t, err)
		require.NotNil(t, rates)
		require.Empty(t, rates)
	})

	t.Run("non-2xx becomes a status error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		c := New(srv.URL, 5*time.Second)
		_, err := c.FetchHistorical(context.Background(), "USD",
			mustDay(t, "2024-06-03"), mustDay(t, "2024-06-04"))

		var statusErr *models.APIStatusError
		require.ErrorAs(t, err, &statusErr)
		require.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	})

	t.Run("malformed body becomes a decode error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"rates":`))
		}))
		defer srv.Close()

		c := New(srv.URL, 5*time.Second)
		_, err := c.FetchHistorical(context.Background(), "USD",
			mustDay(t, "2024-06-03"), mustDay(t, "2024-06-04"))

		var decodeErr *models.DecodeError
		require.ErrorAs(t, err, &decodeErr)
	})

	t.Run("cancellation passes through", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-r.Context().Done()
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		c := New(srv.URL, 5*time.Second)
		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		_, err := c.FetchHistorical(ctx, "USD",
			mustDay(t, "2024-06-03"), mustDay(t, "2024-06-04"))

		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("unreachable host becomes a transport error", func(t *testing.T) {
		// A closed listener port refuses connections immediately.
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().String()
		require.NoError(t, ln.Close())

		c := New("http://"+addr, time.Second)
		_, err = c.FetchHistorical(context.Background(), "USD",
			mustDay(t, "2024-06-03"), mustDay(t, "2024-06-04"))

		var transportErr *models.TransportError
		require.ErrorAs(t, err, &transportErr)
	})
}

func TestClassifyTransport(t *testing.T) {
	ctx := context.Background()

	t.Run("dns failure", func(t *testing.T) {
		err := classifyTransport(ctx, &net.DNSError{Name: "api.example.com", IsNotFound: true})
		var transportErr *models.TransportError
		require.ErrorAs(t, err, &transportErr)
		require.Equal(t, models.TransportDNS, transportErr.Kind)
	})

	t.Run("timeout", func(t *testing.T) {
		err := classifyTransport(ctx, &net.DNSError{Name: "api.example.com", IsTimeout: true})
		var transportErr *models.TransportError
		require.ErrorAs(t, err, &transportErr)
		require.Equal(t, models.TransportTimeout, transportErr.Kind)
	})

	t.Run("unknown errors default to connection", func(t *testing.T) {
		err := classifyTransport(ctx, errors.New("boom"))
		var transportErr *models.TransportError
		require.ErrorAs(t, err, &transportErr)
		require.Equal(t, models.TransportConnection, transportErr.Kind)
	})

	t.Run("deadline passes through", func(t *testing.T) {
		require.ErrorIs(t, classifyTransport(ctx, context.DeadlineExceeded), context.DeadlineExceeded)
	})
}
