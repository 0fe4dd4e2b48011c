package conditions

import "cragcast/internal/weather"

// Analysis is the climbing verdict for one forecast day.
type Analysis struct {
	Date           string
	Score          float64
	Breakdown      Breakdown
	Rating         Rating
	ColorTag       string
	HumidityRating HumidityLabel
	Recommendation string
	Weather        weather.ForecastDay
}

// Analyze rates every day in order. The output has the same length and
// order as the input.
func (c Config) Analyze(days []weather.ForecastDay) []Analysis {
	out := make([]Analysis, 0, len(days))
	for _, day := range days {
		b := c.Score(day)
		rating, color := c.Rate(b.Total)
		out = append(out, Analysis{
			Date:           day.Date.Format(weather.DateLayout),
			Score:          b.Total,
			Breakdown:      b,
			Rating:         rating,
			ColorTag:       color,
			HumidityRating: c.HumidityLabel(day.Humidity),
			Recommendation: c.Recommend(rating, day),
			Weather:        day,
		})
	}
	return out
}

// Analyze runs the default configuration.
func Analyze(days []weather.ForecastDay) []Analysis {
	return DefaultConfig().Analyze(days)
}
