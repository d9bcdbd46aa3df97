package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	kafkaadapter "github.com/i474232898/boris-companion/internal/adapter/kafka"
	httpapi "github.com/i474232898/boris-companion/internal/api/http"
	"github.com/i474232898/boris-companion/internal/config"
	"github.com/i474232898/boris-companion/internal/device"
	"github.com/i474232898/boris-companion/internal/host"
	"github.com/i474232898/boris-companion/internal/observability"
	"github.com/i474232898/boris-companion/internal/scheduler"
	"github.com/i474232898/boris-companion/internal/settings"
	"github.com/i474232898/boris-companion/internal/store"
	"github.com/i474232898/boris-companion/internal/weather"
	"github.com/i474232898/boris-companion/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Settings are read once here and again after every form save.
	storage := settings.NewLocalStorage(cfg.SettingsPath)
	settingsStore := settings.NewStore(storage, cfg.SettingsKey, logger)
	settingsStore.Load()

	// Device message channel.
	var (
		channel device.Channel
		writer  *kafkaadapter.Writer
		reader  *kafkaadapter.Reader
	)
	switch cfg.DeviceTransport {
	case config.TransportKafka:
		writer = kafkaadapter.NewWriter(cfg, logger)
		reader = kafkaadapter.NewReader(cfg, logger)
		channel = writer
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("outbox", cfg.KafkaOutboxTopic).Str("inbox", cfg.KafkaInboxTopic).Msg("device transport: kafka")
	default:
		channel = device.NewLogChannel(logger)
		logger.Info().Msg("device transport: log")
	}

	// Timeout is zero (none) unless WEATHER_HTTP_TIMEOUT is set.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}
	provider := providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherBaseURL, cfg.CircuitBreaker)

	// In-memory delivery history with configured retention.
	memStore := store.NewMemoryStoreWithClock(cfg.StoreMaxHistory, cfg.StoreMaxAge, clock)

	service := weather.NewService(provider, settingsStore, channel, memStore, metrics, logger, clock)

	// Both lifecycle events trigger an independent refresh.
	companion := host.New(logger, clock)
	refresh := func(event string) host.Handler {
		return func(ctx context.Context, _ host.Envelope) error {
			metrics.EventsTriggered.WithLabelValues(event).Inc()
			return service.FetchAndForward(ctx)
		}
	}
	companion.On(host.EventReady, refresh(string(host.EventReady)))
	companion.On(host.EventAppMessage, refresh(string(host.EventAppMessage)))

	sched := scheduler.New(ctx, cfg.RefreshInterval, service, metrics, logger)
	if err := sched.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "boris-companion",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "boris-companion",
		})
	})

	httpapi.RegisterRoutes(app, httpapi.Dependencies{
		BaseContext: ctx,
		Weather:     service,
		Settings:    settingsStore,
		Storage:     storage,
		SettingsKey: cfg.SettingsKey,
		Host:        companion,
		Device:      channel,
		Metrics:     metrics,
		Logger:      logger,
	})

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error().Err(err).Msg("fiber server stopped")
		}
	}()

	readerDone := make(chan struct{})
	if reader == nil {
		close(readerDone)
	} else {
		go func() {
			defer close(readerDone)
			err := reader.Run(ctx, func(ctx context.Context, payload map[string]any) {
				companion.MessageReceived(ctx, payload)
			})
			if err != nil {
				logger.Error().Err(err).Msg("kafka inbox reader stopped")
			}
		}()
	}

	companion.Ready(ctx)

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during shutdown")
	}
	// The inbox reader is the last source of events; stop it before closing the host.
	<-readerDone
	companion.Close()

	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error().Err(err).Msg("kafka reader close error")
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error().Err(err).Msg("kafka writer close error")
		}
	}

	logger.Info().Msg("shutdown complete")
}
