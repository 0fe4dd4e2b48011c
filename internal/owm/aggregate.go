package owm

import (
	"math"
	"time"

	"cragcast/internal/weather"
)

type forecastResponse struct {
	List []entry `json:"list"`
}

type entry struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Pop float64 `json:"pop"`
}

type dayBucket struct {
	date         string
	temps        []float64
	humidity     []float64
	precip       []float64
	descriptions []string
	icons        []string
}

// aggregate groups 3-hour entries by UTC calendar date. Temperature and
// humidity are rounded means, precipitation is the rounded maximum
// probability in percent, description and icon are the most frequent
// values of the day. An entry missing a field leaves that field unset for
// its day, which the normalizer then rejects.
func aggregate(entries []entry) []weather.RawDay {
	var (
		order   []string
		buckets = make(map[string]*dayBucket)
		broken  = make(map[string]map[string]bool)
	)
	for _, e := range entries {
		date := time.Unix(e.Dt, 0).UTC().Format(weather.DateLayout)
		b, ok := buckets[date]
		if !ok {
			b = &dayBucket{date: date}
			buckets[date] = b
			broken[date] = make(map[string]bool)
			order = append(order, date)
		}

		if e.Main.Temp == nil {
			broken[date]["temp"] = true
		} else {
			b.temps = append(b.temps, *e.Main.Temp)
		}
		if e.Main.Humidity == nil {
			broken[date]["humidity"] = true
		} else {
			b.humidity = append(b.humidity, *e.Main.Humidity)
		}
		b.precip = append(b.precip, e.Pop*100)
		if len(e.Weather) == 0 {
			broken[date]["description"] = true
			broken[date]["icon"] = true
		} else {
			b.descriptions = append(b.descriptions, e.Weather[0].Description)
			b.icons = append(b.icons, e.Weather[0].Icon)
		}
	}

	days := make([]weather.RawDay, 0, len(order))
	for _, date := range order {
		b := buckets[date]
		miss := broken[date]
		d := weather.RawDay{Date: ptr(b.date)}
		if !miss["temp"] {
			d.Temp = ptr(roundHalfUp(mean(b.temps)))
		}
		if !miss["humidity"] {
			d.Humidity = ptr(roundHalfUp(mean(b.humidity)))
		}
		d.Precipitation = ptr(roundHalfUp(maxOf(b.precip)))
		if !miss["description"] {
			d.Description = ptr(mode(b.descriptions))
			d.Icon = ptr(mode(b.icons))
		}
		days = append(days, d)
	}
	return days
}

func ptr[T any](v T) *T { return &v }

// roundHalfUp rounds .5 toward positive infinity, so -2.5 becomes -2.
func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func maxOf(xs []float64) float64 {
	m := xs[0]
	for _, x := range xs[1:] {
		m = max(m, x)
	}
	return m
}

// mode returns the most frequent value. On a tie the value that occurred
// latest wins.
func mode(xs []string) string {
	counts := make(map[string]int, len(xs))
	last := make(map[string]int, len(xs))
	for i, x := range xs {
		counts[x]++
		last[x] = i
	}
	best := xs[0]
	for x, n := range counts {
		if n > counts[best] || (n == counts[best] && last[x] > last[best]) {
			best = x
		}
	}
	return best
}
