package device

import (
	"context"

	"github.com/i474232898/boris-companion/internal/settings"
)

// Payload is a dictionary sent to the watch. Kind names it for transports
// and metrics.
type Payload interface {
	Kind() string
}

// WeatherMessage is the fixed-shape weather update: whole degrees Celsius and
// an OpenWeatherMap icon code such as "01d".
type WeatherMessage struct {
	Temperature int    `json:"TEMPERATURE"`
	Icon        string `json:"ICON"`
}

func (WeatherMessage) Kind() string { return "weather" }

// SettingsMessage carries the settings the watchface renders itself.
type SettingsMessage struct {
	Bedtime         string `json:"Bedtime"`
	GetUpTime       string `json:"GetUpTime"`
	BackgroundColor string `json:"BackgroundColor"`
}

func (SettingsMessage) Kind() string { return "settings" }

// NewSettingsMessage picks the device-side settings out of a record.
func NewSettingsMessage(rec settings.Record) SettingsMessage {
	return SettingsMessage{
		Bedtime:         rec.Bedtime(),
		GetUpTime:       rec.GetUpTime(),
		BackgroundColor: rec.BackgroundColor(),
	}
}

// Channel delivers payloads to the watch. A nil error is the delivery ack;
// anything else is a NACK or transport failure. Implementations do not retry.
type Channel interface {
	Send(ctx context.Context, p Payload) error
}
