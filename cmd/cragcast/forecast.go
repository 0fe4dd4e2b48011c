package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"cragcast/internal/conditions"
	"cragcast/internal/config"
	"cragcast/internal/owm"
	"cragcast/internal/weather"
)

var ratingColors = map[string]*color.Color{
	"green":  color.New(color.FgGreen, color.Bold),
	"blue":   color.New(color.FgBlue, color.Bold),
	"yellow": color.New(color.FgYellow, color.Bold),
	"red":    color.New(color.FgRed, color.Bold),
}

func runForecast(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("forecast", flag.ContinueOnError)
	lat := fs.Float64("lat", 0, "latitude")
	lon := fs.Float64("lon", 0, "longitude")
	crag := fs.String("crag", "", "crag name from CRAGS_FILE instead of -lat/-lon")
	days := fs.Int("days", 7, "number of days to show (1-16)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *days < 1 || *days > 16 {
		return fmt.Errorf("days must be between 1 and 16")
	}

	name := fmt.Sprintf("%.4f, %.4f", *lat, *lon)
	if *crag != "" {
		c, err := findCrag(cfg.CragsFile, *crag)
		if err != nil {
			return err
		}
		*lat, *lon, name = c.Lat, c.Lon, c.Name
	} else if !isSet(fs, "lat") || !isSet(fs, "lon") {
		return fmt.Errorf("either -crag or both -lat and -lon are required")
	}
	if cfg.OWMAPIKey == "" {
		return fmt.Errorf("OWM_API_KEY is not set")
	}

	client := owm.NewClient(cfg.OWMBaseURL, cfg.OWMAPIKey, cfg.OWMRateLimit)
	svc := weather.NewService(nil, client, cfg.ForecastCacheTTL, cfg.ForecastRetryAttempts)
	fc, err := svc.Forecast(ctx, *lat, *lon)
	if err != nil {
		return err
	}

	forecastDays := fc.Days
	if len(forecastDays) > *days {
		forecastDays = forecastDays[:*days]
	}
	printAnalyses(name, conditions.Analyze(forecastDays))
	return nil
}

func printAnalyses(name string, analyses []conditions.Analysis) {
	fmt.Printf("\nClimbing conditions for %s\n", name)
	fmt.Println(strings.Repeat("─", 60))
	for _, a := range analyses {
		c, ok := ratingColors[a.ColorTag]
		if !ok {
			c = color.New(color.Reset)
		}
		fmt.Printf("%s  %s %3.0f%%  %5.1f°F  %3d%% humidity (%s)  %3d%% rain  %s\n",
			a.Date,
			c.Sprintf("%-9s", a.Rating),
			a.Score*100,
			a.Weather.Temp,
			a.Weather.Humidity,
			a.HumidityRating,
			a.Weather.Precipitation,
			a.Weather.Description,
		)
		fmt.Printf("            %s\n", color.New(color.FgHiBlack).Sprint(a.Recommendation))
	}
	fmt.Println()
}

func findCrag(path, name string) (weather.Crag, error) {
	if path == "" {
		return weather.Crag{}, fmt.Errorf("CRAGS_FILE is not set")
	}
	crags, err := config.LoadCrags(path)
	if err != nil {
		return weather.Crag{}, err
	}
	for _, c := range crags {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return weather.Crag{}, fmt.Errorf("no crag named %q in %s", name, path)
}

func isSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
