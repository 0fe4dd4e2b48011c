// Package owm fetches the OpenWeatherMap 5 day / 3 hour forecast and folds
// it into one entry per calendar day.
package owm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"golang.org/x/time/rate"

	"cragcast/internal/weather"
)

const DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient builds a client allowing rps requests per second upstream.
// rps <= 0 disables the limiter.
func NewClient(baseURL, apiKey string, rps float64) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// FetchForecast returns daily entries for the location in date order.
func (c *Client) FetchForecast(ctx context.Context, lat, lon float64) ([]weather.RawDay, error) {
	params := url.Values{
		"lat":   {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":   {strconv.FormatFloat(lon, 'f', -1, 64)},
		"appid": {c.apiKey},
		"units": {"imperial"},
	}

	data, err := c.fetch(ctx, "/forecast", params)
	if err != nil {
		return nil, fmt.Errorf("fetch forecast: %w", err)
	}

	var resp forecastResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &weather.MalformedError{Index: -1, Reason: "decode response: " + err.Error()}
	}
	if resp.List == nil {
		return nil, &weather.MalformedError{Index: -1, Reason: "response has no forecast list"}
	}
	return aggregate(resp.List), nil
}

func (c *Client) fetch(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqURL := c.baseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("OpenWeatherMap returned %d: %s", resp.StatusCode, string(body))
		// Bad key or bad coordinates will not fix themselves on retry.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Unrecoverable(err)
		}
		return nil, err
	}

	return io.ReadAll(resp.Body)
}
