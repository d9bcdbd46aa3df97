package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/boris-companion/internal/weather"
)

// DefaultOpenWeatherURL is the current-weather endpoint.
const DefaultOpenWeatherURL = "http://api.openweathermap.org/data/2.5/weather"

// OpenWeatherProvider implements the weather.Provider interface for OpenWeatherMap.
type OpenWeatherProvider struct {
	name    string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

// NewOpenWeatherProvider creates the provider. An empty baseURL uses
// DefaultOpenWeatherURL; withBreaker puts the call behind a circuit breaker.
func NewOpenWeatherProvider(client *http.Client, baseURL string, withBreaker bool) *OpenWeatherProvider {
	if baseURL == "" {
		baseURL = DefaultOpenWeatherURL
	}
	p := &OpenWeatherProvider{
		name:    "openweathermap",
		baseURL: baseURL,
		client:  client,
	}
	if withBreaker {
		p.circuit = newBreaker("openweather")
	}
	return p
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

// RequestURL builds the query URL. City and key are query-encoded; empty
// values are sent as empty parameters.
func (p *OpenWeatherProvider) RequestURL(loc weather.Location) string {
	values := url.Values{}
	values.Set("q", loc.City)
	values.Set("appid", loc.APIKey)
	return fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
}

func (p *OpenWeatherProvider) Fetch(ctx context.Context, loc weather.Location) (weather.Conditions, error) {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, p.RequestURL(loc), nil)
	}

	resp, err := doRequest(ctx, p.client, p.circuit, buildRequest)
	if err != nil {
		return weather.Conditions{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp *float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
			Icon        string `json:"icon"`
		} `json:"weather"`
	}

	// The whole body must be one JSON document; trailing bytes are an error.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return weather.Conditions{}, fmt.Errorf("read weather response: %w", err)
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return weather.Conditions{}, fmt.Errorf("%w: %v", weather.ErrDecode, err)
	}

	if payload.Main.Temp == nil {
		return weather.Conditions{}, weather.ErrMissingTemperature
	}
	if !weather.ValidKelvin(*payload.Main.Temp) {
		return weather.Conditions{}, fmt.Errorf("%w: %g K", weather.ErrTemperatureRange, *payload.Main.Temp)
	}
	if len(payload.Weather) == 0 {
		return weather.Conditions{}, weather.ErrNoConditions
	}

	ts := time.Now().UTC()
	if payload.Dt > 0 {
		ts = time.Unix(payload.Dt, 0).UTC()
	}

	first := payload.Weather[0]
	return weather.Conditions{
		ProviderName: p.name,
		Timestamp:    ts,
		TemperatureK: *payload.Main.Temp,
		Icon:         first.Icon,
		Main:         first.Main,
		Description:  first.Description,
	}, nil
}
