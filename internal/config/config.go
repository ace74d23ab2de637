package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	NOAA      NOAAConfig      `mapstructure:"noaa"`
	OpenMeteo OpenMeteoConfig `mapstructure:"openmeteo"`
	Needle    NeedleConfig    `mapstructure:"needle"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Web       WebConfig       `mapstructure:"web"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// NOAAConfig holds tide data source configuration
type NOAAConfig struct {
	APIURL               string        `mapstructure:"api_url"`
	Station              string        `mapstructure:"station"`
	Datum                string        `mapstructure:"datum"`
	MSLOffsetFt          float64       `mapstructure:"msl_offset_ft"` // mean sea level above the datum
	PollInterval         time.Duration `mapstructure:"poll_interval"`
	PredictionWindowDays int           `mapstructure:"prediction_window_days"`
	Timeout              time.Duration `mapstructure:"timeout"`
}

// OpenMeteoConfig holds weather data source configuration
type OpenMeteoConfig struct {
	APIURL       string        `mapstructure:"api_url"`
	Latitude     float64       `mapstructure:"latitude"`
	Longitude    float64       `mapstructure:"longitude"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// NeedleConfig holds galvanometer output configuration
type NeedleConfig struct {
	SerialPort     string        `mapstructure:"serial_port"` // empty = log-only driver
	BaudRate       int           `mapstructure:"baud_rate"`
	Center         int           `mapstructure:"center"`        // DAC value for zero delta
	FullScaleFt    float64       `mapstructure:"full_scale_ft"` // ± feet mapped to the extremes
	SweepStep      int           `mapstructure:"sweep_step"`
	SweepStepDelay time.Duration `mapstructure:"sweep_step_delay"`
	SweepHold      time.Duration `mapstructure:"sweep_hold"`
	UpdateInterval time.Duration `mapstructure:"update_interval"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	EventLeadTime  time.Duration `mapstructure:"event_lead_time"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds the readings log configuration
type StorageConfig struct {
	DBPath      string `mapstructure:"db_path"`
	MaxReadings int    `mapstructure:"max_readings"`
}

// WebConfig holds status page configuration
type WebConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// SchedulerConfig holds refresh loop configuration
type SchedulerConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	setDefaults(v)

	v.SetEnvPrefix("TIDE_GAUGE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options.
// The tide and needle defaults are the Port Townsend installation:
// station 9444900, MSL 8.35 ft above MLLW, ±8 ft full deflection.
func setDefaults(v *viper.Viper) {
	// NOAA defaults
	v.SetDefault("noaa.api_url", "https://api.tidesandcurrents.noaa.gov/api/prod/datagetter")
	v.SetDefault("noaa.station", "9444900")
	v.SetDefault("noaa.datum", "MLLW")
	v.SetDefault("noaa.msl_offset_ft", 8.35)
	v.SetDefault("noaa.poll_interval", "6m")
	v.SetDefault("noaa.prediction_window_days", 2)
	v.SetDefault("noaa.timeout", "30s")

	// Open-Meteo defaults (Freeland, WA)
	v.SetDefault("openmeteo.api_url", "https://api.open-meteo.com/v1/forecast")
	v.SetDefault("openmeteo.latitude", 48.115)
	v.SetDefault("openmeteo.longitude", -122.760)
	v.SetDefault("openmeteo.poll_interval", "15m")
	v.SetDefault("openmeteo.timeout", "30s")

	// Needle defaults
	v.SetDefault("needle.serial_port", "")
	v.SetDefault("needle.baud_rate", 9600)
	v.SetDefault("needle.center", 128)
	v.SetDefault("needle.full_scale_ft", 8.0)
	v.SetDefault("needle.sweep_step", 3)
	v.SetDefault("needle.sweep_step_delay", "12ms")
	v.SetDefault("needle.sweep_hold", "200ms")
	v.SetDefault("needle.update_interval", "5s")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.event_lead_time", "30m")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/tide-gauge.db")
	v.SetDefault("storage.max_readings", 1000)

	// Web defaults
	v.SetDefault("web.enabled", true)
	v.SetDefault("web.listen_addr", ":8080")

	// Scheduler defaults
	v.SetDefault("scheduler.tick_interval", "1s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate NOAA config
	if c.NOAA.APIURL == "" {
		return fmt.Errorf("noaa.api_url is required")
	}
	if c.NOAA.Station == "" {
		return fmt.Errorf("noaa.station is required")
	}
	if c.NOAA.Datum == "" {
		return fmt.Errorf("noaa.datum is required")
	}
	if c.NOAA.PollInterval < 1*time.Minute {
		return fmt.Errorf("noaa.poll_interval must be at least 1 minute")
	}
	if c.NOAA.PredictionWindowDays < 1 || c.NOAA.PredictionWindowDays > 31 {
		return fmt.Errorf("noaa.prediction_window_days must be between 1 and 31")
	}
	if c.NOAA.Timeout < 1*time.Second {
		return fmt.Errorf("noaa.timeout must be at least 1 second")
	}

	// Validate Open-Meteo config
	if c.OpenMeteo.APIURL == "" {
		return fmt.Errorf("openmeteo.api_url is required")
	}
	if c.OpenMeteo.Latitude < -90 || c.OpenMeteo.Latitude > 90 {
		return fmt.Errorf("openmeteo.latitude must be between -90 and 90")
	}
	if c.OpenMeteo.Longitude < -180 || c.OpenMeteo.Longitude > 180 {
		return fmt.Errorf("openmeteo.longitude must be between -180 and 180")
	}
	if c.OpenMeteo.PollInterval < 1*time.Minute {
		return fmt.Errorf("openmeteo.poll_interval must be at least 1 minute")
	}

	// Validate Needle config
	if c.Needle.Center < 0 || c.Needle.Center > 255 {
		return fmt.Errorf("needle.center must be between 0 and 255")
	}
	if c.Needle.FullScaleFt <= 0 {
		return fmt.Errorf("needle.full_scale_ft must be positive")
	}
	if c.Needle.SweepStep < 1 || c.Needle.SweepStep > 255 {
		return fmt.Errorf("needle.sweep_step must be between 1 and 255")
	}
	if c.Needle.UpdateInterval < 1*time.Second {
		return fmt.Errorf("needle.update_interval must be at least 1 second")
	}
	if c.Needle.SerialPort != "" && c.Needle.BaudRate < 300 {
		return fmt.Errorf("needle.baud_rate must be at least 300")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
		if c.Telegram.EventLeadTime < 1*time.Minute {
			return fmt.Errorf("telegram.event_lead_time must be at least 1 minute")
		}
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.MaxReadings < 10 {
		return fmt.Errorf("storage.max_readings must be at least 10")
	}

	// Validate Web config
	if c.Web.Enabled && c.Web.ListenAddr == "" {
		return fmt.Errorf("web.listen_addr is required when web is enabled")
	}

	// Validate Scheduler config
	if c.Scheduler.TickInterval < 100*time.Millisecond {
		return fmt.Errorf("scheduler.tick_interval must be at least 100ms")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
