// Package conditions rates forecast days for outdoor climbing.
package conditions

// Band is an ideal closed range with a linear falloff of Range units on
// either side.
type Band struct {
	Min    float64
	Max    float64
	Range  float64
	Weight float64
}

type PrecipitationFactor struct {
	Weight    float64
	Excellent int
	Good      int
	Fair      int
}

type ConditionsFactor struct {
	Weight     float64
	Favorable  []string
	Acceptable []string
}

// Thresholds are the inclusive lower bounds of the rating tiers.
type Thresholds struct {
	Excellent float64
	Good      float64
	Fair      float64
}

// Config holds every weight and threshold the scorer and recommendation
// generator use.
type Config struct {
	Temperature   Band
	Humidity      Band
	Precipitation PrecipitationFactor
	Conditions    ConditionsFactor
	Ratings       Thresholds

	// Humidity above VeryHumid or Humid picks the grip warnings.
	VeryHumid int
	Humid     int
	// Humidity below VeryDry is labeled very dry.
	VeryDry int
}

func DefaultConfig() Config {
	return Config{
		Temperature: Band{Min: 50, Max: 60, Range: 20, Weight: 0.25},
		Humidity:    Band{Min: 30, Max: 50, Range: 20, Weight: 0.35},
		Precipitation: PrecipitationFactor{
			Weight:    0.25,
			Excellent: 20,
			Good:      40,
			Fair:      60,
		},
		Conditions: ConditionsFactor{
			Weight:     0.15,
			Favorable:  []string{"clear sky", "few clouds", "scattered clouds"},
			Acceptable: []string{"broken clouds", "overcast clouds"},
		},
		Ratings:   Thresholds{Excellent: 0.8, Good: 0.6, Fair: 0.4},
		VeryHumid: 70,
		Humid:     55,
		VeryDry:   20,
	}
}

func (c Config) totalWeight() float64 {
	return c.Temperature.Weight + c.Humidity.Weight + c.Precipitation.Weight + c.Conditions.Weight
}
