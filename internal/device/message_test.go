package device

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/boris-companion/internal/settings"
)

func TestWeatherMessage_JSON(t *testing.T) {
	data, err := json.Marshal(WeatherMessage{Temperature: 27, Icon: "01d"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"TEMPERATURE":27,"ICON":"01d"}`, string(data))
}

func TestNewSettingsMessage(t *testing.T) {
	msg := NewSettingsMessage(settings.Record{
		settings.KeyWeatherKey:      "secret",
		settings.KeyBedtime:         "23:00",
		settings.KeyGetUpTime:       "07:00",
		settings.KeyBackgroundColor: "0x005500",
	})

	assert.Equal(t, SettingsMessage{Bedtime: "23:00", GetUpTime: "07:00", BackgroundColor: "0x005500"}, msg)
	assert.Equal(t, "settings", msg.Kind())
}

func TestLogChannel_Send(t *testing.T) {
	var buf bytes.Buffer
	ch := NewLogChannel(zerolog.New(&buf))

	require.NoError(t, ch.Send(context.Background(), WeatherMessage{Temperature: -3, Icon: "13n"}))
	assert.Contains(t, buf.String(), `"message_type":"weather"`)
	assert.Contains(t, buf.String(), `"ICON":"13n"`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ch.Send(ctx, WeatherMessage{}), context.Canceled)
}
