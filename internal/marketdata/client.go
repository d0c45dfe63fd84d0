package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/hmoussa/egx-quant/internal/contracts"
	"github.com/hmoussa/egx-quant/pkg/config"
	"github.com/hmoussa/egx-quant/pkg/httputil"
	"github.com/hmoussa/egx-quant/pkg/logger"
	"github.com/hmoussa/egx-quant/pkg/redis"
)

// Client fetches OHLCV history from the chart API, with a daily redis
// cache in front so repeated pipeline runs do not re-download the same
// history. Implements contracts.BarsProvider.
type Client struct {
	http        *httputil.Client
	cache       *redis.Cache
	baseURL     string
	cacheExpiry time.Duration
	logger      *logger.Logger
}

// NewClient creates a market data client.
func NewClient(cfg *config.Config, httpClient *httputil.Client, cache *redis.Cache, log *logger.Logger) *Client {
	return &Client{
		http:        httpClient,
		cache:       cache,
		baseURL:     cfg.Market.ChartBaseURL,
		cacheExpiry: cfg.Market.CacheExpiry,
		logger:      log.WithField("module", "marketdata"),
	}
}

// chartResponse mirrors the chart API payload shape.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Bars returns the instrument's daily bars in [from, to], ordered by
// date ascending. Zero-volume sessions are dropped: the exchange
// reports them for suspended instruments and they carry no tradable
// information. Missing sessions are simply absent; nothing is filled.
func (c *Client) Bars(ctx context.Context, ticker string, from, to time.Time) ([]contracts.Bar, error) {
	cacheKey := fmt.Sprintf("bars:%s:%s:%s", ticker, contracts.DateKey(from), contracts.DateKey(to))

	var cached []contracts.Bar
	if c.cache != nil {
		if hit, err := c.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	url := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d",
		c.baseURL, ticker, from.Unix(), to.AddDate(0, 0, 1).Unix())

	body, err := c.http.Get(ctx, url, map[string]string{
		"User-Agent": "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
	})
	if err != nil {
		return nil, fmt.Errorf("fetch bars for %s: %w", ticker, err)
	}

	bars, err := parseChart(ticker, body)
	if err != nil {
		return nil, fmt.Errorf("parse bars for %s: %w", ticker, err)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, cacheKey, bars, c.cacheExpiry); err != nil {
			c.logger.WithError(err).WithField("ticker", ticker).Warn("Bar cache write failed")
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"bars":   len(bars),
	}).Debug("Fetched bars")

	return bars, nil
}

// parseChart converts the chart payload into ordered bars.
func parseChart(ticker string, body []byte) ([]contracts.Bar, error) {
	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode chart response: %w", err)
	}

	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error: %s", resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("empty chart response")
	}

	result := resp.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	bars := make([]contracts.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || i >= len(quote.Volume) {
			break
		}
		if quote.Volume[i] <= 0 {
			continue
		}

		bars = append(bars, contracts.Bar{
			Ticker: ticker,
			Date:   time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Open:   quote.Open[i],
			High:   quote.High[i],
			Low:    quote.Low[i],
			Close:  quote.Close[i],
			Volume: quote.Volume[i],
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

// DownloadAll fetches bars for every ticker, isolating per-ticker
// failures: a ticker that cannot be downloaded is logged and omitted,
// never fatal to the batch.
func (c *Client) DownloadAll(ctx context.Context, tickers []string, from, to time.Time) map[string][]contracts.Bar {
	barsByTicker := make(map[string][]contracts.Bar, len(tickers))

	for _, ticker := range tickers {
		bars, err := c.Bars(ctx, ticker, from, to)
		if err != nil {
			c.logger.WithError(err).WithField("ticker", ticker).Warn("Download failed, skipping ticker")
			continue
		}
		if len(bars) > 0 {
			barsByTicker[ticker] = bars
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"requested":  len(tickers),
		"downloaded": len(barsByTicker),
	}).Info("Bar download completed")

	return barsByTicker
}
