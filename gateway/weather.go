package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/oyasar/loadcast/timeseries"
)

// weatherResponse mirrors the historical weather provider's hourly payload.
type weatherResponse struct {
	Hourly struct {
		Time          []string  `json:"time"`
		Temperature2M []float64 `json:"temperature_2m"`
	} `json:"hourly"`
}

// FetchWeather returns hourly forecast temperature for the date range
// [start, end]. The provider only supports a single call per range, so any
// failure yields an empty series rather than a partial one.
func (c *Client) FetchWeather(ctx context.Context, start, end time.Time) (*timeseries.Series, error) {
	loc := c.opt.Location

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(c.opt.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(c.opt.Longitude, 'f', -1, 64))
	params.Set("start_date", start.In(loc).Format("2006-01-02"))
	params.Set("end_date", end.In(loc).Format("2006-01-02"))
	params.Set("hourly", "temperature_2m")
	params.Set("timezone", loc.String())

	res, err := c.fetchWeather(ctx, params, loc)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		slog.Warn("weather fetch failed, returning empty series", "error", err)
		return timeseries.Empty(), nil
	}

	c.opt.Recorder.RecordFetch(ProviderWeather, res.Len())
	return res, nil
}

func (c *Client) fetchWeather(ctx context.Context, params url.Values, loc *time.Location) (*timeseries.Series, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opt.WeatherURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var payload weatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("unable to decode weather response, %w", err)
	}

	n := len(payload.Hourly.Time)
	if len(payload.Hourly.Temperature2M) < n {
		n = len(payload.Hourly.Temperature2M)
	}

	res := timeseries.Empty()
	for i := 0; i < n; i++ {
		pnt, err := time.ParseInLocation(weatherTimeFormat, payload.Hourly.Time[i], loc)
		if err != nil {
			return nil, fmt.Errorf("unparseable weather time %q, %w", payload.Hourly.Time[i], err)
		}
		res.T = append(res.T, pnt)
		res.V = append(res.V, payload.Hourly.Temperature2M[i])
	}

	sortDedup(res)
	return res, nil
}
