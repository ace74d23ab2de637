// Package openmeteo provides a client for the Open-Meteo forecast API.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/arprequest/tide-gauge/internal/models"
)

// Client fetches current conditions for a fixed coordinate.
type Client struct {
	apiURL     string
	latitude   float64
	longitude  float64
	httpClient *http.Client
}

type forecastResponse struct {
	Current struct {
		Temperature   float64 `json:"temperature_2m"`
		WeatherCode   int     `json:"weathercode"`
		WindSpeed     float64 `json:"windspeed_10m"`
		WindDirection float64 `json:"winddirection_10m"`
	} `json:"current"`
	Reason *string `json:"reason"` // set on API-level errors
}

// NewClient creates a new Open-Meteo client.
func NewClient(apiURL string, latitude, longitude float64, timeout time.Duration) *Client {
	return &Client{
		apiURL:    apiURL,
		latitude:  latitude,
		longitude: longitude,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Current fetches the current temperature, wind, and coded sky condition.
// On any error the caller's previous snapshot stays untouched.
func (c *Client) Current(ctx context.Context) (models.WeatherSnapshot, error) {
	var snap models.WeatherSnapshot

	u, err := url.Parse(c.apiURL)
	if err != nil {
		return snap, fmt.Errorf("failed to parse URL: %w", err)
	}
	q := u.Query()
	q.Set("latitude", strconv.FormatFloat(c.latitude, 'f', 3, 64))
	q.Set("longitude", strconv.FormatFloat(c.longitude, 'f', 3, 64))
	q.Set("current", "temperature_2m,weathercode,windspeed_10m,winddirection_10m")
	q.Set("temperature_unit", "fahrenheit")
	q.Set("windspeed_unit", "mph")
	q.Set("timezone", "UTC")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return snap, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return snap, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return snap, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var fr forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return snap, fmt.Errorf("failed to decode response: %w", err)
	}
	if fr.Reason != nil {
		return snap, fmt.Errorf("forecast request rejected: %s", *fr.Reason)
	}

	snap = models.WeatherSnapshot{
		TempF:       fr.Current.Temperature,
		WindMph:     fr.Current.WindSpeed,
		WindDirDeg:  fr.Current.WindDirection,
		Condition:   DescribeWeatherCode(fr.Current.WeatherCode),
		WeatherCode: fr.Current.WeatherCode,
		Valid:       true,
	}
	return snap, nil
}

// DescribeWeatherCode maps a WMO weather code to a short human-readable
// description. Common codes match exactly, grouped phenomena match as
// contiguous bands, anything else echoes the numeric code.
func DescribeWeatherCode(code int) string {
	switch {
	case code == 0:
		return "Clear sky"
	case code == 1:
		return "Mainly clear"
	case code == 2:
		return "Partly cloudy"
	case code == 3:
		return "Overcast"
	case code >= 45 && code <= 48:
		return "Fog"
	case code >= 51 && code <= 55:
		return "Drizzle"
	case code >= 61 && code <= 65:
		return "Rain"
	case code >= 71 && code <= 75:
		return "Snow"
	case code >= 80 && code <= 82:
		return "Showers"
	case code == 95:
		return "Thunderstorm"
	default:
		return fmt.Sprintf("Unknown (%d)", code)
	}
}

var compassPoints = [8]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// CompassDirection converts wind degrees to an eight-point compass name.
func CompassDirection(deg float64) string {
	for deg < 0 {
		deg += 360
	}
	idx := int((deg+22.5)/45.0) % 8
	return compassPoints[idx]
}
