package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"cragcast/internal/conditions"
	"cragcast/internal/weather"
)

const (
	defaultDays = 7
	maxDays     = 16
)

type conditionsJSON struct {
	Location locationJSON   `json:"location"`
	Stale    bool           `json:"stale"`
	Days     []analysisJSON `json:"days"`
}

type locationJSON struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type analysisJSON struct {
	Date           string        `json:"date"`
	Score          float64       `json:"score"`
	Rating         string        `json:"rating"`
	Color          string        `json:"color"`
	HumidityRating string        `json:"humidity_rating"`
	Recommendation string        `json:"recommendation"`
	Breakdown      breakdownJSON `json:"breakdown"`
	Weather        dayJSON       `json:"weather"`
}

type breakdownJSON struct {
	Temperature   float64 `json:"temperature"`
	Humidity      float64 `json:"humidity"`
	Precipitation float64 `json:"precipitation"`
	Conditions    float64 `json:"conditions"`
}

type dayJSON struct {
	Temp          float64 `json:"temp"`
	Humidity      int     `json:"humidity"`
	Precipitation int     `json:"precipitation"`
	Description   string  `json:"description"`
	Icon          string  `json:"icon"`
	IconURL       string  `json:"icon_url"`
}

func iconURL(icon string) string {
	return "https://openweathermap.org/img/wn/" + icon + "@2x.png"
}

func toAnalysisJSON(analyses []conditions.Analysis) []analysisJSON {
	out := make([]analysisJSON, 0, len(analyses))
	for _, a := range analyses {
		out = append(out, analysisJSON{
			Date:           a.Date,
			Score:          a.Score,
			Rating:         string(a.Rating),
			Color:          a.ColorTag,
			HumidityRating: string(a.HumidityRating),
			Recommendation: a.Recommendation,
			Breakdown: breakdownJSON{
				Temperature:   a.Breakdown.Temperature,
				Humidity:      a.Breakdown.Humidity,
				Precipitation: a.Breakdown.Precipitation,
				Conditions:    a.Breakdown.Conditions,
			},
			Weather: dayJSON{
				Temp:          a.Weather.Temp,
				Humidity:      a.Weather.Humidity,
				Precipitation: a.Weather.Precipitation,
				Description:   a.Weather.Description,
				Icon:          a.Weather.Icon,
				IconURL:       iconURL(a.Weather.Icon),
			},
		})
	}
	return out
}

func parseDays(r *http.Request) (int, error) {
	v := r.URL.Query().Get("days")
	if v == "" {
		return defaultDays, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > maxDays {
		return 0, errors.New("invalid days parameter")
	}
	return n, nil
}

func (h *Handler) getConditions(w http.ResponseWriter, r *http.Request) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		writeJSONError(w, "invalid lat parameter", http.StatusBadRequest)
		return
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil || lon < -180 || lon > 180 {
		writeJSONError(w, "invalid lon parameter", http.StatusBadRequest)
		return
	}
	days, err := parseDays(r)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	fc, err := h.forecasts.Forecast(r.Context(), lat, lon)
	if err != nil {
		slog.Error("get conditions failed", "err", err, "lat", lat, "lon", lon)
		writeError(w, err)
		return
	}

	forecastDays := fc.Days
	if len(forecastDays) > days {
		forecastDays = forecastDays[:days]
	}
	resp := conditionsJSON{
		Location: locationJSON{Lat: fc.GridLat, Lon: fc.GridLon},
		Stale:    fc.Stale,
		Days:     toAnalysisJSON(h.scoring.Analyze(forecastDays)),
	}

	if !fc.Stale {
		w.Header().Set("Cache-Control", "public, max-age=300")
	}
	writeJSON(w, http.StatusOK, resp)
}

// analyzeConditions scores a forecast supplied by the caller, in the same
// shape the upstream source delivers it.
func (h *Handler) analyzeConditions(w http.ResponseWriter, r *http.Request) {
	var entries []json.RawMessage
	if err := decodeBody(w, r, &entries); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	days, err := normalizeEntries(entries)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": toAnalysisJSON(h.scoring.Analyze(days))})
}

// normalizeEntries decodes each forecast entry on its own so a value of the
// wrong JSON type is reported like any other malformed field, with its
// entry index. Entries before the bad one are still checked first.
func normalizeEntries(entries []json.RawMessage) ([]weather.ForecastDay, error) {
	raw := make([]weather.RawDay, 0, len(entries))
	for i, e := range entries {
		var day weather.RawDay
		if err := json.Unmarshal(e, &day); err != nil {
			if _, err := weather.Normalize(raw); err != nil {
				return nil, err
			}
			return nil, entryError(i, err)
		}
		raw = append(raw, day)
	}
	return weather.Normalize(raw)
}

func entryError(i int, err error) *weather.MalformedError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		if typeErr.Field == "" {
			return &weather.MalformedError{Index: i, Field: "entry", Reason: "is not an object"}
		}
		return &weather.MalformedError{
			Index:  i,
			Field:  typeErr.Field,
			Reason: fmt.Sprintf("has JSON type %s, want %s", typeErr.Value, typeErr.Type),
		}
	}
	return &weather.MalformedError{Index: i, Field: "entry", Reason: "is not valid JSON"}
}
