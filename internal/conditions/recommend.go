package conditions

import (
	"fmt"
	"math"

	"cragcast/internal/weather"
)

type Rating string

const (
	Excellent Rating = "Excellent"
	Good      Rating = "Good"
	Fair      Rating = "Fair"
	Poor      Rating = "Poor"
)

type HumidityLabel string

const (
	VeryDry   HumidityLabel = "Very Dry"
	Dry       HumidityLabel = "Dry"
	Ideal     HumidityLabel = "Ideal"
	Humid     HumidityLabel = "Humid"
	VeryHumid HumidityLabel = "Very Humid"
)

// Rate maps a score to its tier and display color tag.
func (c Config) Rate(score float64) (Rating, string) {
	switch {
	case score >= c.Ratings.Excellent:
		return Excellent, "green"
	case score >= c.Ratings.Good:
		return Good, "blue"
	case score >= c.Ratings.Fair:
		return Fair, "yellow"
	default:
		return Poor, "red"
	}
}

func (c Config) HumidityLabel(humidity int) HumidityLabel {
	switch {
	case humidity < c.VeryDry:
		return VeryDry
	case float64(humidity) < c.Humidity.Min:
		return Dry
	case float64(humidity) <= c.Humidity.Max:
		return Ideal
	case humidity <= c.VeryHumid:
		return Humid
	default:
		return VeryHumid
	}
}

// Recommend picks the advice text for a rated day. Within Fair and Poor
// the first matching condition wins.
func (c Config) Recommend(rating Rating, day weather.ForecastDay) string {
	t := c.Temperature
	switch rating {
	case Excellent:
		return "Perfect conditions for climbing. Get out there!"
	case Good:
		return "Good conditions for climbing. Consider planning a session."
	case Fair:
		switch {
		case day.Temp < t.Min:
			return fmt.Sprintf("A bit cold (%d°F). Layer up and bring hand warmers.", int(roundHalfUp(day.Temp)))
		case day.Temp > t.Max:
			return fmt.Sprintf("A bit warm (%d°F). Consider climbing earlier or later in the day.", int(roundHalfUp(day.Temp)))
		case day.Humidity > c.VeryHumid:
			return "Very humid conditions. Grip may be significantly affected."
		case day.Humidity > c.Humid:
			return "High humidity may affect grip. Consider using extra chalk."
		default:
			return fmt.Sprintf("Climbing is possible but be prepared for %d%% chance of rain.", day.Precipitation)
		}
	default:
		switch {
		case day.Precipitation > c.Precipitation.Fair:
			return "High chance of rain. Consider indoor climbing."
		case day.Humidity > c.VeryHumid:
			return "Very humid conditions. Grip may be significantly affected."
		case day.Temp < t.Min-t.Range:
			return "Too cold for optimal climbing. Indoor session recommended."
		case day.Temp > t.Max+t.Range:
			return "Too warm for optimal climbing. Consider indoor climbing or rest day."
		default:
			return "Not recommended for climbing. Consider indoor alternatives."
		}
	}
}

// roundHalfUp rounds .5 toward positive infinity, so -2.5 becomes -2.
func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}
