package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

type ForecastStore interface {
	GetForecast(ctx context.Context, gridLat, gridLon float64) ([]ForecastDay, time.Time, error)
	UpsertForecast(ctx context.Context, gridLat, gridLon float64, days []ForecastDay, fetchedAt time.Time) error
}

type ForecastFetcher interface {
	FetchForecast(ctx context.Context, lat, lon float64) ([]RawDay, error)
}

type Service struct {
	store      ForecastStore
	fetcher    ForecastFetcher
	cacheTTL   time.Duration
	fresh      *Cache[Forecast]
	lastGood   *Cache[Forecast]
	attempts   uint
	retryDelay time.Duration
	now        func() time.Time
}

// NewService builds a forecast service. store may be nil, in which case
// only the in-memory caches back the fetcher.
func NewService(store ForecastStore, fetcher ForecastFetcher, cacheTTL time.Duration, attempts uint) *Service {
	if attempts == 0 {
		attempts = 1
	}
	return &Service{
		store:      store,
		fetcher:    fetcher,
		cacheTTL:   cacheTTL,
		fresh:      NewCache[Forecast](cacheTTL),
		lastGood:   NewCache[Forecast](0),
		attempts:   attempts,
		retryDelay: 500 * time.Millisecond,
		now:        time.Now,
	}
}

// Forecast returns the daily forecast for a location. Fresh cache and
// store hits skip the upstream call; upstream failures fall back to the
// last known good forecast, marked stale. Malformed upstream data is never
// replaced by a fallback.
func (s *Service) Forecast(ctx context.Context, lat, lon float64) (*Forecast, error) {
	gridLat, gridLon := snapToGrid(lat, lon)
	key := fmt.Sprintf("%.2f,%.2f", gridLat, gridLon)

	if cached, ok := s.fresh.Get(key); ok {
		return &cached, nil
	}

	if s.store != nil {
		days, fetchedAt, err := s.store.GetForecast(ctx, gridLat, gridLon)
		if err != nil {
			slog.Warn("failed to read stored forecast", "err", err, "grid", key)
		} else if len(days) > 0 && s.now().Sub(fetchedAt) < s.cacheTTL {
			fc := Forecast{GridLat: gridLat, GridLon: gridLon, Days: days, FetchedAt: fetchedAt}
			s.fresh.Set(key, fc)
			s.lastGood.Set(key, fc)
			return &fc, nil
		}
	}

	var (
		days      []ForecastDay
		malformed error
	)
	err := retry.Do(
		func() error {
			raw, err := s.fetcher.FetchForecast(ctx, gridLat, gridLon)
			if errors.Is(err, ErrMalformedForecast) {
				malformed = err
				return retry.Unrecoverable(err)
			}
			if err != nil {
				return err
			}
			normalized, err := Normalize(raw)
			if err != nil {
				malformed = err
				return retry.Unrecoverable(err)
			}
			days = normalized
			return nil
		},
		retry.Attempts(s.attempts),
		retry.Delay(s.retryDelay),
		retry.MaxDelay(10*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("retrying forecast fetch", "attempt", n+1, "err", err, "grid", key)
		}),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if malformed != nil {
		slog.Error("rejected malformed forecast", "err", malformed, "grid", key)
		return nil, malformed
	}
	if err != nil {
		return s.fallback(ctx, key, gridLat, gridLon, err)
	}

	fc := Forecast{GridLat: gridLat, GridLon: gridLon, Days: days, FetchedAt: s.now()}
	if s.store != nil {
		if storeErr := s.store.UpsertForecast(ctx, gridLat, gridLon, days, fc.FetchedAt); storeErr != nil {
			slog.Warn("failed to store forecast", "err", storeErr)
		}
	}
	s.fresh.Set(key, fc)
	s.lastGood.Set(key, fc)
	return &fc, nil
}

func (s *Service) fallback(ctx context.Context, key string, gridLat, gridLon float64, cause error) (*Forecast, error) {
	if cached, ok := s.lastGood.Get(key); ok {
		slog.Warn("using cached forecast after fetch failure", "err", cause, "grid", key)
		cached.Stale = true
		return &cached, nil
	}
	if s.store != nil && !errors.Is(cause, context.Canceled) {
		days, fetchedAt, err := s.store.GetForecast(ctx, gridLat, gridLon)
		if err == nil && len(days) > 0 {
			slog.Warn("using stored forecast after fetch failure", "err", cause, "grid", key, "fetched_at", fetchedAt)
			return &Forecast{GridLat: gridLat, GridLon: gridLon, Days: days, FetchedAt: fetchedAt, Stale: true}, nil
		}
	}
	slog.Error("forecast fetch failed", "err", cause, "grid", key)
	return nil, &FetchError{Attempts: s.attempts, Err: cause}
}

func snapToGrid(lat, lon float64) (float64, float64) {
	return math.Round(lat*100) / 100, math.Round(lon*100) / 100
}
