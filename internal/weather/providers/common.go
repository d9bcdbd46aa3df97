package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/boris-companion/internal/weather"
)

var errNoHTTPClient = errors.New("http client not configured")

// maxErrorBody caps how much of a failed response ends up in an error.
const maxErrorBody = 512

// newBreaker returns the breaker guarding one provider. It trips after five
// consecutive failures and half-opens after two minutes.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
	})
}

// doRequest executes a single request: no retries, no backoff. When cb is
// non-nil the call goes through the breaker. The caller closes the body.
func doRequest(
	ctx context.Context,
	client *http.Client,
	cb *gobreaker.CircuitBreaker,
	buildRequest func(ctx context.Context) (*http.Request, error),
) (*http.Response, error) {
	if client == nil {
		return nil, errNoHTTPClient
	}

	req, err := buildRequest(ctx)
	if err != nil {
		return nil, err
	}

	exec := func() (interface{}, error) {
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			defer resp.Body.Close()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return nil, fmt.Errorf("%w: %d: %s", weather.ErrBadStatus, resp.StatusCode, body)
		}
		return resp, nil
	}

	if cb == nil {
		result, err := exec()
		if err != nil {
			return nil, err
		}
		return result.(*http.Response), nil
	}

	result, err := cb.Execute(exec)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", weather.ErrCircuitOpen, err)
	}
	if err != nil {
		return nil, err
	}

	resp, ok := result.(*http.Response)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return resp, nil
}
