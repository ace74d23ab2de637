// Package web serves the status page: current tide, next event, weather,
// needle output, and recent readings. Read-only against the snapshots;
// the reset endpoint only invokes a hook supplied by the caller.
package web

import (
	"encoding/json"
	"html/template"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/arprequest/tide-gauge/internal/logger"
	"github.com/arprequest/tide-gauge/internal/models"
	"github.com/arprequest/tide-gauge/internal/needle"
	"github.com/arprequest/tide-gauge/internal/openmeteo"
	"github.com/arprequest/tide-gauge/internal/storage"
)

const historyRows = 10

// TideProvider exposes a read-copy of the tide snapshot.
type TideProvider interface {
	Snapshot() models.TideSnapshot
}

// WeatherProvider exposes a read-copy of the weather snapshot.
type WeatherProvider interface {
	Snapshot() models.WeatherSnapshot
}

// HistorySource feeds the recent-readings table.
type HistorySource interface {
	RecentTideReadings(limit int) ([]storage.TideReading, error)
}

// Server renders the status page and JSON status.
type Server struct {
	tide    TideProvider
	weather WeatherProvider
	history HistorySource
	cal     needle.Calibration
	station string
	reset   func()
	router  *mux.Router
}

// NewServer creates the status server. resetHook may be nil; history may
// be nil when the readings log is disabled.
func NewServer(tide TideProvider, weather WeatherProvider, history HistorySource, cal needle.Calibration, station string, resetHook func()) *Server {
	s := &Server{
		tide:    tide,
		weather: weather,
		history: history,
		cal:     cal,
		station: station,
		reset:   resetHook,
	}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/reset", s.handleReset).Methods(http.MethodGet, http.MethodPost)
	s.router = r

	return s
}

// Handler returns the HTTP handler for mounting.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks serving on addr.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

// statusResponse is the /api/status payload.
type statusResponse struct {
	Station     string                 `json:"station"`
	Tide        models.TideSnapshot    `json:"tide"`
	Weather     models.WeatherSnapshot `json:"weather"`
	DAC         uint8                  `json:"dac"`
	BarPercent  int                    `json:"bar_percent"`
	WindCompass string                 `json:"wind_compass"`
}

func (s *Server) status() statusResponse {
	tide := s.tide.Snapshot()
	weather := s.weather.Snapshot()
	return statusResponse{
		Station:     s.station,
		Tide:        tide,
		Weather:     weather,
		DAC:         s.cal.DeltaToDAC(tide.DeltaMSL),
		BarPercent:  barPercent(tide.DeltaMSL, s.cal.FullScaleFt),
		WindCompass: openmeteo.CompassDirection(weather.WindDirDeg),
	}
}

// barPercent maps the MSL delta to the page's 0-100% bar, center = 50%.
func barPercent(delta, fullScale float64) int {
	if math.IsNaN(delta) || fullScale <= 0 {
		return 50
	}
	pct := 50.0 + (delta/fullScale)*50.0
	return int(math.Max(0, math.Min(100, pct)))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.status()); err != nil {
		logger.Error("Failed to encode status: %v", err)
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	data := struct {
		statusResponse
		History []storage.TideReading
	}{statusResponse: s.status()}

	if s.history != nil {
		readings, err := s.history.RecentTideReadings(historyRows)
		if err != nil {
			logger.Warn("Failed to load reading history: %v", err)
		} else {
			data.History = readings
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		logger.Error("Failed to render status page: %v", err)
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte("<html><body><h2>Reset requested.</h2><p>The device will reprovision and restart.</p></body></html>"))
	if s.reset != nil {
		go s.reset()
	} else {
		logger.Info("Reset requested but no reset hook configured")
	}
}

var pageTemplate = template.Must(template.New("status").Funcs(template.FuncMap{
	"fmtTime": func(t time.Time) string {
		if t.IsZero() {
			return "--"
		}
		return t.UTC().Format("Jan 2 15:04 MST")
	},
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="30">
<title>Tide Gauge</title>
<style>
  body { font-family: -apple-system, "Segoe UI", sans-serif; background: #0d1117;
         color: #c9d1d9; padding: 20px; }
  h1 { color: #58a6ff; font-size: 1.4rem; margin-bottom: 4px; }
  .subtitle { color: #8b949e; font-size: 0.85rem; margin-bottom: 20px; }
  .card { background: #161b22; border: 1px solid #30363d; border-radius: 10px;
          padding: 16px; margin-bottom: 14px; max-width: 480px; }
  .card h2 { font-size: 0.8rem; text-transform: uppercase; color: #8b949e; margin: 0 0 12px; }
  .big { font-size: 2.2rem; font-weight: 700; color: #f0f6fc; }
  .unit { font-size: 1rem; color: #8b949e; }
  .pos { color: #3fb950; } .neg { color: #f78166; }
  .bar-wrap { background: #21262d; border-radius: 4px; height: 16px; margin: 12px 0;
              position: relative; overflow: hidden; }
  .bar-fill { height: 100%; background: #2196F3; }
  .bar-mid { position: absolute; left: 50%; top: 0; bottom: 0; width: 2px; background: #484f58; }
  table { width: 100%; border-collapse: collapse; font-size: 0.85rem; }
  td, th { padding: 4px 6px; border-bottom: 1px solid #21262d; text-align: left; }
  th { color: #8b949e; font-weight: 500; }
  .fetched { font-size: 0.72rem; color: #484f58; margin-top: 8px; text-align: right; }
  .btn { display: inline-block; margin-top: 8px; padding: 6px 14px; color: #f85149;
         border: 1px solid #f85149; border-radius: 6px; text-decoration: none; font-size: 0.85rem; }
</style>
</head>
<body>
<h1>&#127754; Tide Gauge</h1>
<div class="subtitle">Station {{.Station}}</div>

<div class="card">
<h2>Current Tide</h2>
{{if .Tide.Valid}}
  <div><span class="big">{{printf "%.2f" .Tide.CurrentFt}}</span> <span class="unit">ft above datum</span></div>
  <div class="{{if ge .Tide.DeltaMSL 0.0}}pos{{else}}neg{{end}}">MSL delta: {{printf "%+.2f" .Tide.DeltaMSL}} ft</div>
  <div class="bar-wrap"><div class="bar-fill" style="width:{{.BarPercent}}%"></div><div class="bar-mid"></div></div>
  <div>Next {{.Tide.NextEventKind}}: {{printf "%.2f" .Tide.NextEventFt}} ft at {{fmtTime .Tide.NextEventTime}}</div>
{{else}}
  <div class="unit">Fetching&hellip;</div>
{{end}}
<div class="fetched">Updated {{fmtTime .Tide.FetchedAt}}</div>
</div>

<div class="card">
<h2>Current Weather</h2>
{{if .Weather.Valid}}
  <div><span class="big">{{printf "%.1f" .Weather.TempF}}</span> <span class="unit">&deg;F</span></div>
  <div class="unit">{{.Weather.Condition}}</div>
  <div>Wind: {{printf "%.1f" .Weather.WindMph}} mph {{.WindCompass}} ({{printf "%.0f" .Weather.WindDirDeg}}&deg;)</div>
{{else}}
  <div class="unit">Fetching&hellip;</div>
{{end}}
<div class="fetched">Updated {{fmtTime .Weather.FetchedAt}}</div>
</div>

{{if .History}}
<div class="card">
<h2>Recent Readings</h2>
<table>
<tr><th>Time</th><th>Level (ft)</th><th>MSL delta</th><th>Next</th></tr>
{{range .History}}
<tr><td>{{fmtTime .RecordedAt}}</td><td>{{printf "%.2f" .CurrentFt}}</td><td>{{printf "%+.2f" .DeltaMSL}}</td><td>{{.NextEventKind}} {{printf "%.2f" .NextEventFt}} ft</td></tr>
{{end}}
</table>
</div>
{{end}}

<div class="card">
<h2>Device</h2>
<div>Needle output: {{.DAC}} / 255</div>
<a class="btn" href="/reset">&#x21BA; Reset device</a>
</div>

<div class="fetched">Page auto-refreshes every 30 s</div>
</body></html>
`))
