package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arprequest/tide-gauge/internal/config"
	"github.com/arprequest/tide-gauge/internal/gauge"
	"github.com/arprequest/tide-gauge/internal/logger"
	"github.com/arprequest/tide-gauge/internal/needle"
	"github.com/arprequest/tide-gauge/internal/noaa"
	"github.com/arprequest/tide-gauge/internal/openmeteo"
	"github.com/arprequest/tide-gauge/internal/scheduler"
	"github.com/arprequest/tide-gauge/internal/storage"
	"github.com/arprequest/tide-gauge/internal/telegram"
	"github.com/arprequest/tide-gauge/internal/web"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	store, err := storage.New(cfg.Storage.MaxReadings, cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	var driver needle.Driver
	if cfg.Needle.SerialPort != "" {
		dac, err := needle.OpenSerialDAC(cfg.Needle.SerialPort, cfg.Needle.BaudRate)
		if err != nil {
			logger.Fatal("Failed to open needle DAC: %v", err)
		}
		defer func() {
			if err := dac.Close(); err != nil {
				logger.Error("Failed to close needle DAC: %v", err)
			}
		}()
		driver = dac
		logger.Info("Needle DAC on %s @ %d baud", cfg.Needle.SerialPort, cfg.Needle.BaudRate)
	} else {
		driver = needle.LogDriver{}
		logger.Info("No serial port configured, needle writes are log-only")
	}

	cal := needle.Calibration{
		FullScaleFt: cfg.Needle.FullScaleFt,
		Center:      uint8(cfg.Needle.Center),
	}
	seq := needle.NewSequencer(driver, cal, cfg.Needle.SweepStep, cfg.Needle.SweepStepDelay, cfg.Needle.SweepHold)

	noaaClient := noaa.NewClient(cfg.NOAA.APIURL, cfg.NOAA.Station, cfg.NOAA.Datum, cfg.NOAA.Timeout)
	meteoClient := openmeteo.NewClient(cfg.OpenMeteo.APIURL, cfg.OpenMeteo.Latitude, cfg.OpenMeteo.Longitude, cfg.OpenMeteo.Timeout)

	tideSync := gauge.NewTideSync(noaaClient, cfg.NOAA.MSLOffsetFt, cfg.NOAA.PredictionWindowDays)
	weatherSync := gauge.NewWeatherSync(meteoClient)

	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if telegramClient != nil {
		telegramClient.ListenForCommands(ctx, func() string {
			return telegram.FormatStatus(tideSync.Snapshot(), weatherSync.Snapshot())
		})
	}

	if cfg.Web.Enabled {
		srv := web.NewServer(tideSync, weatherSync, store, cal, cfg.NOAA.Station, func() {
			// Reprovisioning is the supervisor's job; this process just exits.
			logger.Info("Reset requested via web, shutting down")
			cancel()
		})
		go func() {
			logger.Info("Status page listening on %s", cfg.Web.ListenAddr)
			if err := srv.ListenAndServe(cfg.Web.ListenAddr); err != nil {
				logger.Error("Status server stopped: %v", err)
			}
		}()
	}

	logger.Info("Starting tide gauge (station: %s, tide interval: %v, weather interval: %v, needle interval: %v)",
		cfg.NOAA.Station,
		cfg.NOAA.PollInterval,
		cfg.OpenMeteo.PollInterval,
		cfg.Needle.UpdateInterval,
	)

	// Exercise the full mechanical range before live data arrives.
	seq.BootSweep()

	consecutiveFailures := 0
	handleCycleResult := func(err error) {
		if err != nil {
			consecutiveFailures++
			if consecutiveFailures == 1 && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
		} else {
			if consecutiveFailures > 0 && telegramClient != nil {
				if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
					logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
				}
			}
			consecutiveFailures = 0
		}
	}

	loop := scheduler.New()

	loop.Add("tide", cfg.NOAA.PollInterval, func(now time.Time) {
		logger.Debug("Starting tide refresh")
		err := tideSync.Refresh(ctx)
		handleCycleResult(err)
		if err != nil {
			return
		}
		snap := tideSync.Snapshot()
		if err := store.RecordTide(snap); err != nil {
			logger.Warn("Failed to record tide reading: %v", err)
		}
		if err := store.Prune(); err != nil {
			logger.Warn("Failed to prune readings: %v", err)
		}
		if telegramClient != nil {
			if sent, err := telegramClient.MaybeSendTideAlert(snap, cfg.Telegram.EventLeadTime, now); err != nil {
				logger.Warn("Failed to send tide alert: %v", err)
			} else if sent {
				logger.Info("Sent tide alert for next %s at %s", snap.NextEventKind, snap.NextEventTime)
			}
		}
	})

	loop.Add("weather", cfg.OpenMeteo.PollInterval, func(now time.Time) {
		logger.Debug("Starting weather refresh")
		err := weatherSync.Refresh(ctx)
		handleCycleResult(err)
		if err != nil {
			return
		}
		if err := store.RecordWeather(weatherSync.Snapshot()); err != nil {
			logger.Warn("Failed to record weather reading: %v", err)
		}
	})

	loop.Add("needle", cfg.Needle.UpdateInterval, func(now time.Time) {
		snap := tideSync.Snapshot()
		if !snap.Valid {
			return
		}
		v := seq.SetDelta(snap.DeltaMSL)
		logger.Debug("Needle set to %d/255 (delta %+.2f ft)", v, snap.DeltaMSL)
	})

	loop.Run(ctx.Done(), cfg.Scheduler.TickInterval)
	logger.Info("Service stopped")
}
