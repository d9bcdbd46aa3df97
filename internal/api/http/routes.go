package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/i474232898/boris-companion/internal/device"
	"github.com/i474232898/boris-companion/internal/observability"
	"github.com/i474232898/boris-companion/internal/settings"
	"github.com/i474232898/boris-companion/internal/store"
	"github.com/i474232898/boris-companion/internal/weather"
)

var validate = validator.New()

// WeatherHistory reads forwarded weather messages.
type WeatherHistory interface {
	GetLatest(loc weather.Location) (weather.Delivery, error)
	GetRange(loc weather.Location, from, to time.Time) ([]weather.Delivery, error)
	CurrentLocation() weather.Location
}

// SettingsStore is the read side of the settings record.
type SettingsStore interface {
	Current() settings.Record
	Reload() settings.Record
}

// ItemSetter writes raw items to host storage.
type ItemSetter interface {
	SetItem(key, value string) error
}

// MessageEmitter turns an inbound device message into a host event.
type MessageEmitter interface {
	MessageReceived(ctx context.Context, payload map[string]any) <-chan error
}

// Dependencies are the collaborators behind the HTTP routes.
type Dependencies struct {
	// BaseContext outlives requests; handlers start background work with it.
	BaseContext context.Context

	Weather     WeatherHistory
	Settings    SettingsStore
	Storage     ItemSetter
	SettingsKey string
	Host        MessageEmitter
	Device      device.Channel
	Metrics     *observability.Metrics
	Logger      zerolog.Logger
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Dependencies) {
	if deps.BaseContext == nil {
		deps.BaseContext = context.Background()
	}

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/api/v1")

	// saveMu serializes the read-merge-write of a settings save.
	var saveMu sync.Mutex

	v1.Get("/config", func(c *fiber.Ctx) error {
		return c.JSON(settings.Schema())
	})

	v1.Get("/settings", func(c *fiber.Ctx) error {
		return c.JSON(deps.Settings.Current())
	})

	v1.Post("/settings", func(c *fiber.Ctx) error {
		var submitted map[string]string
		if err := json.Unmarshal(c.Body(), &submitted); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "settings must be a JSON object of strings")
		}
		if err := validateSubmission(submitted); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		rec, err := saveSettings(&saveMu, deps, submitted)
		if err != nil {
			return err
		}

		msg := device.NewSettingsMessage(rec)
		notified := true
		if err := deps.Device.Send(deps.BaseContext, msg); err != nil {
			notified = false
			deps.Metrics.MessagesSent.WithLabelValues(msg.Kind(), "failure").Inc()
			deps.Logger.Error().Err(err).Msg("error sending settings to device")
		} else {
			deps.Metrics.MessagesSent.WithLabelValues(msg.Kind(), "success").Inc()
		}

		return c.JSON(fiber.Map{
			"settings":       rec,
			"deviceNotified": notified,
		})
	})

	v1.Post("/appmessage", func(c *fiber.Ctx) error {
		payload := map[string]any{}
		if body := c.Body(); len(body) > 0 {
			if err := json.Unmarshal(body, &payload); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "app message must be a JSON dictionary")
			}
		}

		deps.Host.MessageReceived(deps.BaseContext, payload)

		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted"})
	})

	v1.Get("/weather/latest", func(c *fiber.Ctx) error {
		loc := locationFor(c, deps.Weather)

		delivery, err := deps.Weather.GetLatest(loc)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no weather sent for requested city")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read weather history")
		}

		return c.JSON(delivery)
	})

	v1.Get("/weather/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		loc := locationFor(c, deps.Weather)
		deliveries, err := deps.Weather.GetRange(loc, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no weather history for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read weather history")
		}

		return c.JSON(fiber.Map{
			"location":   loc,
			"from":       req.From,
			"to":         req.To,
			"deliveries": deliveries,
		})
	})
}

// saveSettings merges submitted into the current record, persists it and
// reloads the store, all under mu.
func saveSettings(mu *sync.Mutex, deps Dependencies, submitted map[string]string) (settings.Record, error) {
	mu.Lock()
	defer mu.Unlock()

	rec := deps.Settings.Current()
	for k, v := range submitted {
		rec[k] = v
	}
	blob, err := json.Marshal(rec)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to encode settings")
	}
	if err := deps.Storage.SetItem(deps.SettingsKey, string(blob)); err != nil {
		deps.Logger.Error().Err(err).Msg("failed to persist settings")
		return nil, fiber.NewError(fiber.StatusInternalServerError, "failed to persist settings")
	}
	return deps.Settings.Reload(), nil
}

// validateSubmission checks keys against the form and values against each
// field's length limit. Contents are otherwise accepted as typed.
func validateSubmission(submitted map[string]string) error {
	fields := make(map[string]settings.Item)
	for _, f := range settings.Fields() {
		fields[f.MessageKey] = f
	}

	for k, v := range submitted {
		f, ok := fields[k]
		if !ok {
			return fmt.Errorf("unknown setting %q", k)
		}
		if f.Attributes == nil || f.Attributes.Limit <= 0 {
			continue
		}
		if err := validate.Var(v, fmt.Sprintf("max=%d", f.Attributes.Limit)); err != nil {
			return fmt.Errorf("%s must be at most %d characters", k, f.Attributes.Limit)
		}
	}
	return nil
}

// locationFor uses ?city= when given, otherwise the configured city.
func locationFor(c *fiber.Ctx, w WeatherHistory) weather.Location {
	if city := c.Query("city"); city != "" {
		return weather.Location{City: city}
	}
	return w.CurrentLocation()
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
