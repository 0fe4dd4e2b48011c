package fetcher

import (
	"context"
	"log/slog"
	"time"

	"cragcast/internal/weather"
)

type Forecaster interface {
	Forecast(ctx context.Context, lat, lon float64) (*weather.Forecast, error)
}

// Warmer keeps the forecast caches and store populated for a fixed list of
// crags so the first request for a popular crag does not wait on upstream.
type Warmer struct {
	forecasts Forecaster
	crags     []weather.Crag
}

func New(forecasts Forecaster, crags []weather.Crag) *Warmer {
	return &Warmer{forecasts: forecasts, crags: crags}
}

func (w *Warmer) Run(ctx context.Context, interval time.Duration) {
	if len(w.crags) == 0 {
		slog.Info("forecast warmer idle, no crags configured")
		return
	}
	slog.Info("forecast warmer starting", "interval", interval, "crags", len(w.crags))

	w.warm(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("forecast warmer stopped")
			return
		case <-ticker.C:
			w.warm(ctx)
		}
	}
}

func (w *Warmer) warm(ctx context.Context) {
	start := time.Now()
	var ok, stale int
	for _, c := range w.crags {
		if ctx.Err() != nil {
			return
		}
		fc, err := w.forecasts.Forecast(ctx, c.Lat, c.Lon)
		if err != nil {
			slog.Error("failed to warm forecast", "crag", c.Name, "err", err)
			continue
		}
		ok++
		if fc.Stale {
			stale++
		}
	}
	slog.Info("forecasts warmed",
		"crags", len(w.crags),
		"ok", ok,
		"stale", stale,
		"duration", time.Since(start),
	)
}
