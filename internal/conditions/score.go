package conditions

import (
	"math"
	"strings"

	"cragcast/internal/weather"
)

// Breakdown is the per-factor result of scoring one day. Each factor is
// in [0,1]; Total is their weighted sum.
type Breakdown struct {
	Temperature   float64
	Humidity      float64
	Precipitation float64
	Conditions    float64
	Total         float64
}

func (c Config) Score(day weather.ForecastDay) Breakdown {
	b := Breakdown{
		Temperature:   c.Temperature.score(day.Temp),
		Humidity:      c.Humidity.score(float64(day.Humidity)),
		Precipitation: c.Precipitation.score(day.Precipitation),
		Conditions:    c.Conditions.score(day.Description),
	}
	b.Total = b.Temperature*c.Temperature.Weight +
		b.Humidity*c.Humidity.Weight +
		b.Precipitation*c.Precipitation.Weight +
		b.Conditions*c.Conditions.Weight
	return b
}

func (b Band) score(v float64) float64 {
	if v >= b.Min && v <= b.Max {
		return 1
	}
	dist := math.Min(math.Abs(v-b.Min), math.Abs(v-b.Max))
	return math.Max(0, 1-dist/b.Range)
}

func (p PrecipitationFactor) score(chance int) float64 {
	switch {
	case chance <= p.Excellent:
		return 1
	case chance <= p.Good:
		return 0.7
	case chance <= p.Fair:
		return 0.3
	default:
		return 0
	}
}

func (f ConditionsFactor) score(description string) float64 {
	d := strings.ToLower(description)
	if containsAny(d, f.Favorable) {
		return 1
	}
	if containsAny(d, f.Acceptable) {
		return 0.5
	}
	return 0
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
