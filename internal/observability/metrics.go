package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the weather relay.
type Metrics struct {
	WeatherFetches  *prometheus.CounterVec // labels: outcome={success,http_error,decode_error,shape_error,breaker_open,transport_error}
	FetchDuration   prometheus.Histogram
	MessagesSent    *prometheus.CounterVec // labels: type={weather,settings}, outcome={success,failure}
	EventsTriggered *prometheus.CounterVec // labels: event={ready,appmessage,refresh}
	LastTemperature prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.WeatherFetches,
		m.FetchDuration,
		m.MessagesSent,
		m.EventsTriggered,
		m.LastTemperature,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		WeatherFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "boris",
			Name:      "weather_fetches_total",
			Help:      "Weather API fetches by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "boris",
			Name:      "weather_fetch_duration_seconds",
			Help:      "Duration of a weather API request including decoding.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "boris",
			Name:      "device_messages_total",
			Help:      "Messages sent to the device by type and outcome.",
		}, []string{"type", "outcome"}),
		EventsTriggered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "boris",
			Name:      "host_events_total",
			Help:      "Host events that triggered a weather refresh.",
		}, []string{"event"}),
		LastTemperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "boris",
			Name:      "last_temperature_celsius",
			Help:      "Temperature of the last weather message forwarded to the device.",
		}),
	}
}
