package weather

import "time"

const DateLayout = "2006-01-02"

// ForecastDay is one calendar day of canonical forecast data. Temp is in
// °F, Humidity and Precipitation are percentages in [0,100].
type ForecastDay struct {
	Date          time.Time
	Temp          float64
	Humidity      int
	Precipitation int
	Description   string
	Icon          string
}

// RawDay is a forecast entry as delivered by the upstream weather source.
// Pointer fields distinguish a missing value from a zero value.
type RawDay struct {
	Date          *string  `json:"date"`
	Temp          *float64 `json:"temp"`
	Humidity      *float64 `json:"humidity"`
	Precipitation *float64 `json:"precipitation"`
	Description   *string  `json:"description"`
	Icon          *string  `json:"icon"`
}

type Crag struct {
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

// Forecast is the result of a forecast lookup. Stale is set when the
// upstream fetch failed and Days came from last-known-good data.
type Forecast struct {
	GridLat   float64
	GridLon   float64
	Days      []ForecastDay
	FetchedAt time.Time
	Stale     bool
}
