package weather

import (
	"math"
	"strings"
	"time"

	"github.com/i474232898/boris-companion/internal/device"
)

// absoluteZeroC is 0 K expressed in degrees Celsius.
const absoluteZeroC = 273.15

// Location identifies what a provider is asked for. The API key travels with
// the location because it comes from the user's settings, not from config.
type Location struct {
	City   string `json:"city"`
	APIKey string `json:"-"`
}

// Key returns a canonical string key for indexing this location in stores.
func (l Location) Key() string {
	return strings.ToLower(strings.TrimSpace(l.City))
}

// Conditions is one provider's reading of the current weather.
type Conditions struct {
	ProviderName string
	Timestamp    time.Time

	TemperatureK float64
	Icon         string
	Main         string
	Description  string
}

// Delivery records a weather message that reached the device.
type Delivery struct {
	RequestID string                `json:"requestId"`
	Location  Location              `json:"location"`
	Provider  string                `json:"provider"`
	Message   device.WeatherMessage `json:"message"`
	SentAt    time.Time             `json:"sentAt"` // always UTC
}

// maxKelvin bounds what ValidKelvin accepts. Anything beyond it is a broken
// response, not weather.
const maxKelvin = 1e4

// ValidKelvin reports whether k is finite and within ±maxKelvin.
func ValidKelvin(k float64) bool {
	return !math.IsNaN(k) && !math.IsInf(k, 0) && math.Abs(k) <= maxKelvin
}

// KelvinToCelsius converts to whole degrees Celsius, rounding halves up.
func KelvinToCelsius(kelvin float64) int {
	return RoundHalfUp(kelvin - absoluteZeroC)
}

// RoundHalfUp rounds to the nearest integer with ties toward +Inf, so
// 2.5 -> 3 and -2.5 -> -2. NaN maps to 0 and values beyond the int range
// saturate.
func RoundHalfUp(x float64) int {
	if math.IsNaN(x) {
		return 0
	}
	f := math.Floor(x)
	if x-f >= 0.5 {
		f++
	}
	switch {
	case f >= math.MaxInt:
		return math.MaxInt
	case f <= math.MinInt:
		return math.MinInt
	}
	return int(f)
}
