package weather

import (
	"math"
	"strings"
	"time"
)

// Normalize validates raw upstream entries and converts them into
// ForecastDays. Any bad entry rejects the whole forecast; nothing is
// coerced. Dates must be strictly ascending, one entry per day.
func Normalize(raw []RawDay) ([]ForecastDay, error) {
	days := make([]ForecastDay, 0, len(raw))
	var prev time.Time
	for i, r := range raw {
		day, err := normalizeDay(i, r)
		if err != nil {
			return nil, err
		}
		if i > 0 && !day.Date.After(prev) {
			return nil, &MalformedError{Index: i, Field: "date", Reason: "is duplicated or out of order"}
		}
		prev = day.Date
		days = append(days, day)
	}
	return days, nil
}

func normalizeDay(i int, r RawDay) (ForecastDay, error) {
	if r.Date == nil {
		return ForecastDay{}, missing(i, "date")
	}
	date, err := time.Parse(DateLayout, strings.TrimSpace(*r.Date))
	if err != nil {
		return ForecastDay{}, &MalformedError{Index: i, Field: "date", Reason: "is not an ISO-8601 date"}
	}

	if r.Temp == nil {
		return ForecastDay{}, missing(i, "temp")
	}
	if math.IsNaN(*r.Temp) || math.IsInf(*r.Temp, 0) {
		return ForecastDay{}, &MalformedError{Index: i, Field: "temp", Reason: "is not a finite number"}
	}

	humidity, err := percent(i, "humidity", r.Humidity)
	if err != nil {
		return ForecastDay{}, err
	}
	precip, err := percent(i, "precipitation", r.Precipitation)
	if err != nil {
		return ForecastDay{}, err
	}

	if r.Description == nil || strings.TrimSpace(*r.Description) == "" {
		return ForecastDay{}, missing(i, "description")
	}
	if r.Icon == nil || strings.TrimSpace(*r.Icon) == "" {
		return ForecastDay{}, missing(i, "icon")
	}

	return ForecastDay{
		Date:          date,
		Temp:          *r.Temp,
		Humidity:      humidity,
		Precipitation: precip,
		Description:   *r.Description,
		Icon:          *r.Icon,
	}, nil
}

func percent(i int, field string, v *float64) (int, error) {
	if v == nil {
		return 0, missing(i, field)
	}
	if math.IsNaN(*v) || *v < 0 || *v > 100 {
		return 0, &MalformedError{Index: i, Field: field, Reason: "is outside [0,100]"}
	}
	if *v != math.Trunc(*v) {
		return 0, &MalformedError{Index: i, Field: field, Reason: "is not an integer percent"}
	}
	return int(*v), nil
}

func missing(i int, field string) error {
	return &MalformedError{Index: i, Field: field, Reason: "is missing"}
}
