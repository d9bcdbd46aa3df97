package weather_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/boris-companion/internal/device"
	"github.com/i474232898/boris-companion/internal/observability"
	"github.com/i474232898/boris-companion/internal/settings"
	"github.com/i474232898/boris-companion/internal/store"
	"github.com/i474232898/boris-companion/internal/weather"
	"github.com/i474232898/boris-companion/internal/weather/providers"
)

type staticSettings settings.Record

func (s staticSettings) Current() settings.Record { return settings.Record(s).Clone() }

// recordingChannel captures every payload sent to the device.
type recordingChannel struct {
	mu   sync.Mutex
	sent []device.Payload
	err  error
}

func (c *recordingChannel) Send(_ context.Context, p device.Payload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, p)
	return nil
}

func (c *recordingChannel) Sent() []device.Payload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]device.Payload(nil), c.sent...)
}

type fixture struct {
	svc     *weather.Service
	channel *recordingChannel
	store   *store.MemoryStore
	metrics *observability.Metrics
	clock   *clockwork.FakeClock
}

func newFixture(t *testing.T, handler http.HandlerFunc, rec settings.Record) *fixture {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC))
	f := &fixture{
		channel: &recordingChannel{},
		store:   store.NewMemoryStoreWithClock(0, 0, clock),
		metrics: observability.NewMetricsForTesting(),
		clock:   clock,
	}
	f.svc = weather.NewService(
		providers.NewOpenWeatherProvider(srv.Client(), srv.URL, false),
		staticSettings(rec),
		f.channel,
		f.store,
		f.metrics,
		zerolog.Nop(),
		clock,
	)
	return f
}

func respond(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

var copenhagen = settings.Record{settings.KeyWeatherCity: "Copenhagen", settings.KeyWeatherKey: "k"}

func TestFetchAndForward_Success(t *testing.T) {
	f := newFixture(t, respond(`{"main":{"temp":300.15},"weather":[{"icon":"01d"}]}`), copenhagen)

	require.NoError(t, f.svc.FetchAndForward(context.Background()))

	require.Equal(t, []device.Payload{device.WeatherMessage{Temperature: 27, Icon: "01d"}}, f.channel.Sent())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.WeatherFetches.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.MessagesSent.WithLabelValues("weather", "success")))
	assert.Equal(t, 27.0, testutil.ToFloat64(f.metrics.LastTemperature))

	d, err := f.store.GetLatest(weather.Location{City: "copenhagen"})
	require.NoError(t, err)
	assert.Equal(t, device.WeatherMessage{Temperature: 27, Icon: "01d"}, d.Message)
	assert.Equal(t, "openweathermap", d.Provider)
	assert.Equal(t, f.clock.Now(), d.SentAt)
	assert.NotEmpty(t, d.RequestID)
}

func TestFetchAndForward_FailuresForwardNothing(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
		outcome string
	}{
		{"empty weather array", respond(`{"main":{"temp":280},"weather":[]}`), weather.ErrNoConditions, "shape_error"},
		{"unparsable json", respond(`{"main": nope`), weather.ErrDecode, "decode_error"},
		{"missing temperature", respond(`{"weather":[{"icon":"01d"}]}`), weather.ErrMissingTemperature, "shape_error"},
		{"bad api key", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"cod":401}`))
		}, weather.ErrBadStatus, "http_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.handler, copenhagen)

			err := f.svc.FetchAndForward(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, f.channel.Sent())
			assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.WeatherFetches.WithLabelValues(tt.outcome)))

			_, err = f.store.GetLatest(weather.Location{City: "Copenhagen"})
			assert.ErrorIs(t, err, store.ErrNotFound)
		})
	}
}

func TestFetchAndForward_SendFailure(t *testing.T) {
	f := newFixture(t, respond(`{"main":{"temp":283.15},"weather":[{"icon":"10n"}]}`), copenhagen)
	f.channel.err = errors.New("watch not connected")

	err := f.svc.FetchAndForward(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch not connected")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.MessagesSent.WithLabelValues("weather", "failure")))

	_, err = f.store.GetLatest(weather.Location{City: "Copenhagen"})
	assert.ErrorIs(t, err, store.ErrNotFound, "failed sends are not recorded")
}

func TestFetchAndForward_EmptySettingsStillRequests(t *testing.T) {
	var gotQuery string
	f := newFixture(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusUnauthorized)
	}, settings.Record{})

	err := f.svc.FetchAndForward(context.Background())
	require.ErrorIs(t, err, weather.ErrBadStatus)
	assert.Equal(t, "appid=&q=", gotQuery)
	assert.Empty(t, f.channel.Sent())
}

func TestFetchAndForward_ConcurrentTriggersSendTwice(t *testing.T) {
	// Both requests are held until both have arrived, proving nothing serializes them.
	var arrived sync.WaitGroup
	arrived.Add(2)
	f := newFixture(t, func(w http.ResponseWriter, _ *http.Request) {
		arrived.Done()
		arrived.Wait()
		respond(`{"main":{"temp":290.15},"weather":[{"icon":"04d"}]}`)(w, nil)
	}, copenhagen)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.svc.FetchAndForward(context.Background())
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Len(t, f.channel.Sent(), 2)

	deliveries, err := f.store.GetRange(weather.Location{City: "Copenhagen"}, f.clock.Now(), f.clock.Now())
	require.NoError(t, err)
	require.Len(t, deliveries, 2)
	assert.NotEqual(t, deliveries[0].RequestID, deliveries[1].RequestID)
}

func TestService_CurrentLocation(t *testing.T) {
	f := newFixture(t, respond(`{}`), copenhagen)
	assert.Equal(t, "Copenhagen", f.svc.CurrentLocation().City)
	assert.Empty(t, f.svc.CurrentLocation().APIKey)
}
