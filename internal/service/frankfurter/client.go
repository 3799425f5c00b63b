package frankfurter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"RateSync/internal/domain/models"
	drepo "RateSync/internal/domain/repository"
	apphttp "RateSync/pkg/http"
)

const defaultBaseURL = "https://api.frankfurter.dev/v1"

// Client implements a RateSource backed by the Frankfurter date-range API.
type Client struct {
	baseURL string
	http    *apphttp.Client
}

// New creates a Frankfurter RateSource.
func New(baseURL string, timeout time.Duration) drepo.RateSource {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		http:    apphttp.NewClient(apphttp.WithTimeout(timeout)),
	}
}

type rangeResponse struct {
	Base  string                        `json:"base"`
	Rates map[string]map[string]float64 `json:"rates"`
}

// FetchHistorical retrieves daily rates for [from, to] against base. The
// returned map keys are YYYY-MM-DD date strings; an empty map means the
// source has nothing published for the window yet.
func (c *Client) FetchHistorical(ctx context.Context, base string, from, to models.Day) (map[string]map[string]float64, error) {
	resp, err := c.http.SendRequest(ctx, &apphttp.RequestOptions{
		Method: apphttp.MethodGet,
		URL:    fmt.Sprintf("%s/%s..%s", c.baseURL, from, to),
		QueryParams: map[string][]string{
			"base": {base},
		},
	})
	if err != nil {
		return nil, classifyTransport(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &models.APIStatusError{StatusCode: resp.StatusCode}
	}

	var parsed rangeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &models.DecodeError{Err: err}
	}
	if parsed.Rates == nil {
		return map[string]map[string]float64{}, nil
	}
	return parsed.Rates, nil
}

// classifyTransport maps a transport failure onto the retry taxonomy.
// Cancellation passes through untouched so callers can tell a stopped
// request apart from a broken network.
func classifyTransport(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &models.TransportError{Kind: models.TransportTimeout, Err: err}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &models.TransportError{Kind: models.TransportDNS, Err: err}
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return &models.TransportError{Kind: models.TransportConnection, Err: err}
	}
	if errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.EHOSTUNREACH) {
		return &models.TransportError{Kind: models.TransportOffline, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &models.TransportError{Kind: models.TransportConnection, Err: err}
	}
	return &models.TransportError{Kind: models.TransportConnection, Err: err}
}
