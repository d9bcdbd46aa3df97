package weather

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrBadStatus is returned when the weather API answers with a non-2xx status.
	ErrBadStatus = errors.New("unexpected status code")
	// ErrDecode is returned when the response body is not valid JSON.
	ErrDecode = errors.New("malformed weather response")
	// ErrMissingTemperature is returned when main.temp is absent.
	ErrMissingTemperature = errors.New("weather response has no temperature")
	// ErrTemperatureRange is returned when main.temp is not a plausible Kelvin value.
	ErrTemperatureRange = errors.New("weather response temperature out of range")
	// ErrNoConditions is returned when the weather array is empty.
	ErrNoConditions = errors.New("weather response has no conditions")
	// ErrCircuitOpen is returned when the provider's circuit breaker rejects the call.
	ErrCircuitOpen = errors.New("circuit breaker open")
)

// Provider abstracts the weather data source.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, loc Location) (Conditions, error)
}

// Store is the contract for the delivery history.
type Store interface {
	SaveDelivery(d Delivery)
	GetLatest(loc Location) (Delivery, error)
	GetRange(loc Location, from, to time.Time) ([]Delivery, error)
}

// fetchOutcome names an error for the fetch metrics.
func fetchOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrBadStatus):
		return "http_error"
	case errors.Is(err, ErrDecode):
		return "decode_error"
	case errors.Is(err, ErrMissingTemperature), errors.Is(err, ErrTemperatureRange), errors.Is(err, ErrNoConditions):
		return "shape_error"
	case errors.Is(err, ErrCircuitOpen):
		return "breaker_open"
	default:
		return "transport_error"
	}
}
