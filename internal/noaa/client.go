// Package noaa provides a client for the NOAA CO-OPS tides and currents API.
package noaa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/arprequest/tide-gauge/internal/logger"
	"github.com/arprequest/tide-gauge/internal/models"
)

// predictionTimeLayout is the local-format timestamp NOAA returns when
// time_zone=gmt is requested. Parsed as UTC, never through a local calendar.
const predictionTimeLayout = "2006-01-02 15:04"

// Client provides access to the CO-OPS datagetter endpoint for a fixed station.
type Client struct {
	apiURL     string
	station    string
	datum      string
	httpClient *http.Client
}

// waterLevelResponse wraps the water_level product's observation array.
// Levels arrive string-encoded.
type waterLevelResponse struct {
	Data []struct {
		Time  string `json:"t"`
		Value string `json:"v"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// predictionsResponse wraps the predictions product with interval=hilo.
type predictionsResponse struct {
	Predictions []struct {
		Time  string `json:"t"`
		Value string `json:"v"`
		Type  string `json:"type"`
	} `json:"predictions"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient creates a new CO-OPS client.
func NewClient(apiURL, station, datum string, timeout time.Duration) *Client {
	return &Client{
		apiURL:  apiURL,
		station: station,
		datum:   datum,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Station returns the fixed station identifier this client queries.
func (c *Client) Station() string {
	return c.station
}

// LatestWaterLevel fetches the most recent six-minute water level
// observation, in feet above the configured datum.
func (c *Client) LatestWaterLevel(ctx context.Context) (float64, error) {
	q := c.baseQuery()
	q.Set("product", "water_level")
	q.Set("range", "1")

	var wl waterLevelResponse
	if err := c.get(ctx, q, &wl); err != nil {
		return 0, fmt.Errorf("failed to fetch water level: %w", err)
	}
	if wl.Error != nil {
		return 0, fmt.Errorf("water level request rejected: %s", wl.Error.Message)
	}
	if len(wl.Data) == 0 {
		return 0, fmt.Errorf("water level response contained no observations")
	}

	// Latest reading is the last element in the data array
	latest := wl.Data[len(wl.Data)-1]
	level, err := strconv.ParseFloat(latest.Value, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse water level %q: %w", latest.Value, err)
	}
	return level, nil
}

// HiLoPredictions fetches high/low tide predictions between begin and end
// (dates only; times are ignored by the API). Entries with unparseable
// fields are skipped so one bad record does not hide the ones after it.
func (c *Client) HiLoPredictions(ctx context.Context, begin, end time.Time) ([]models.TidePrediction, error) {
	q := c.baseQuery()
	q.Set("product", "predictions")
	q.Set("interval", "hilo")
	q.Set("begin_date", begin.UTC().Format("20060102"))
	q.Set("end_date", end.UTC().Format("20060102"))

	var pr predictionsResponse
	if err := c.get(ctx, q, &pr); err != nil {
		return nil, fmt.Errorf("failed to fetch predictions: %w", err)
	}
	if pr.Error != nil {
		return nil, fmt.Errorf("predictions request rejected: %s", pr.Error.Message)
	}

	preds := make([]models.TidePrediction, 0, len(pr.Predictions))
	for _, p := range pr.Predictions {
		ts, err := time.ParseInLocation(predictionTimeLayout, p.Time, time.UTC)
		if err != nil {
			logger.Warn("Skipping prediction with malformed timestamp %q: %v", p.Time, err)
			continue
		}
		height, err := strconv.ParseFloat(p.Value, 64)
		if err != nil {
			logger.Warn("Skipping prediction with malformed level %q: %v", p.Value, err)
			continue
		}
		preds = append(preds, models.TidePrediction{
			Kind:     models.KindFromFlag(p.Type),
			HeightFt: height,
			Time:     ts,
		})
	}
	return preds, nil
}

// baseQuery returns the parameters shared by every datagetter product.
func (c *Client) baseQuery() url.Values {
	q := url.Values{}
	q.Set("station", c.station)
	q.Set("datum", c.datum)
	q.Set("time_zone", "gmt")
	q.Set("units", "english")
	q.Set("format", "json")
	return q
}

// get performs a single GET and decodes the JSON body into out. The fixed
// polling interval is the retry mechanism; no backoff here.
func (c *Client) get(ctx context.Context, q url.Values, out interface{}) error {
	u, err := url.Parse(c.apiURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
