package weather

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/i474232898/boris-companion/internal/device"
	"github.com/i474232898/boris-companion/internal/observability"
	"github.com/i474232898/boris-companion/internal/settings"
)

// SettingsSource hands out the current settings record.
type SettingsSource interface {
	Current() settings.Record
}

// Service fetches current conditions for the configured city and relays
// them to the device.
type Service struct {
	provider Provider
	settings SettingsSource
	channel  device.Channel
	store    Store
	metrics  *observability.Metrics
	logger   zerolog.Logger
	clock    clockwork.Clock
}

// NewService creates a new Service. A nil clock uses the real clock.
func NewService(
	provider Provider,
	src SettingsSource,
	channel device.Channel,
	store Store,
	metrics *observability.Metrics,
	logger zerolog.Logger,
	clock clockwork.Clock,
) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		provider: provider,
		settings: src,
		channel:  channel,
		store:    store,
		metrics:  metrics,
		logger:   logger,
		clock:    clock,
	}
}

// FetchAndForward performs one request/transform/forward cycle. Every call is
// independent: concurrent calls issue concurrent requests and sends. Failures
// are logged and returned; nothing is retried.
func (s *Service) FetchAndForward(ctx context.Context) error {
	requestID := uuid.NewString()
	logger := s.logger.With().Str("request_id", requestID).Logger()

	rec := s.settings.Current()
	loc := Location{City: rec.WeatherCity(), APIKey: rec.WeatherKey()}

	start := s.clock.Now()
	cond, err := s.provider.Fetch(ctx, loc)
	s.metrics.FetchDuration.Observe(s.clock.Since(start).Seconds())
	s.metrics.WeatherFetches.WithLabelValues(fetchOutcome(err)).Inc()
	if err != nil {
		logger.Warn().Err(err).Str("city", loc.City).Str("provider", s.provider.Name()).Msg("weather fetch failed")
		return fmt.Errorf("fetch weather for %q: %w", loc.City, err)
	}

	msg := device.WeatherMessage{
		Temperature: KelvinToCelsius(cond.TemperatureK),
		Icon:        cond.Icon,
	}
	logger.Debug().Int("temperature", msg.Temperature).Str("icon", msg.Icon).Msg("weather received")

	if err := s.channel.Send(ctx, msg); err != nil {
		s.metrics.MessagesSent.WithLabelValues(msg.Kind(), "failure").Inc()
		logger.Error().Err(err).Msg("error sending weather info to device")
		return fmt.Errorf("send weather message: %w", err)
	}
	s.metrics.MessagesSent.WithLabelValues(msg.Kind(), "success").Inc()
	s.metrics.LastTemperature.Set(float64(msg.Temperature))
	logger.Info().Int("temperature", msg.Temperature).Str("icon", msg.Icon).Msg("weather info sent to device")

	if s.store != nil {
		s.store.SaveDelivery(Delivery{
			RequestID: requestID,
			Location:  loc,
			Provider:  cond.ProviderName,
			Message:   msg,
			SentAt:    s.clock.Now().UTC(),
		})
	}
	return nil
}

// GetLatest delegates to the underlying store.
func (s *Service) GetLatest(loc Location) (Delivery, error) {
	return s.store.GetLatest(loc)
}

// GetRange delegates to the underlying store.
func (s *Service) GetRange(loc Location, from, to time.Time) ([]Delivery, error) {
	return s.store.GetRange(loc, from, to)
}

// CurrentLocation is the location the next fetch will ask for.
func (s *Service) CurrentLocation() Location {
	return Location{City: s.settings.Current().WeatherCity()}
}
