package twelvedata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	httpClient "github.com/Alias1177/fxguard/internal/platform/http"
	"github.com/Alias1177/fxguard/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Client is the TwelveData API client
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *httpClient.Client
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new TwelveData client
type ClientOptions struct {
	APIKey            string
	BaseURL           string
	ConnectTimeout    time.Duration
	RequestTimeout    time.Duration
	RequestsPerSec    int
	MaxRetries        int
	RetryDelay        time.Duration
	BackoffMultiplier float64
	MaxRetryTimeout   time.Duration
}

// apiError is the body Twelve Data returns with "status":"error"
type apiError struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewClient creates a new TwelveData API client
func NewClient(options ClientOptions) *Client {
	httpOpts := httpClient.ClientOptions{
		ConnectTimeout:    options.ConnectTimeout,
		Timeout:           options.RequestTimeout,
		RequestsPerSec:    options.RequestsPerSec,
		MaxRetries:        options.MaxRetries,
		RetryDelay:        options.RetryDelay,
		BackoffMultiplier: options.BackoffMultiplier,
		MaxRetryTimeout:   options.MaxRetryTimeout,
	}

	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = "https://api.twelvedata.com"
	}

	return &Client{
		apiKey:     options.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient.NewClient(httpOpts),
		logger:     log.With().Str("component", "twelvedata_client").Logger(),
	}
}

// GetPrice fetches the latest price as the raw string the API returns
func (c *Client) GetPrice(ctx context.Context, symbol string) (string, error) {
	body, err := c.get(ctx, "/price", url.Values{"symbol": {symbol}})
	if err != nil {
		return "", err
	}

	var data models.TwelvePrice
	if err := json.Unmarshal(body, &data); err != nil {
		c.logger.Error().Err(err).Str("response", string(body)).Msg("Error parsing JSON")
		return "", fmt.Errorf("parsing JSON: %w", err)
	}

	c.logger.Debug().Str("symbol", symbol).Str("price", data.Price).Msg("Fetched price")
	return data.Price, nil
}

// GetQuote fetches the current OHLCV quote
func (c *Client) GetQuote(ctx context.Context, symbol string) (models.RawQuote, error) {
	body, err := c.get(ctx, "/quote", url.Values{"symbol": {symbol}})
	if err != nil {
		return models.RawQuote{}, err
	}

	var quote models.RawQuote
	if err := json.Unmarshal(body, &quote); err != nil {
		c.logger.Error().Err(err).Str("response", string(body)).Msg("Error parsing JSON")
		return models.RawQuote{}, fmt.Errorf("parsing JSON: %w", err)
	}

	c.logger.Debug().Str("symbol", symbol).Msg("Fetched quote")
	return quote, nil
}

// GetSeries fetches candle data from Twelve Data API, oldest first
func (c *Client) GetSeries(ctx context.Context, symbol, interval string, count int) ([]models.RawCandle, error) {
	params := url.Values{
		"symbol":     {symbol},
		"interval":   {interval},
		"outputsize": {fmt.Sprint(count)},
		"timezone":   {"UTC"},
	}
	body, err := c.get(ctx, "/time_series", params)
	if err != nil {
		return nil, err
	}

	var data models.TwelveResponse
	if err := json.Unmarshal(body, &data); err != nil {
		c.logger.Error().Err(err).Str("response", string(body)).Msg("Error parsing JSON")
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	if len(data.Values) == 0 {
		c.logger.Warn().Str("response", string(body)).Msg("No candles in response")
		return nil, fmt.Errorf("empty data returned")
	}

	// Sort candles by datetime (oldest first for proper calculations)
	sort.SliceStable(data.Values, func(i, j int) bool {
		return data.Values[i].Datetime < data.Values[j].Datetime
	})

	c.logger.Debug().Int("count", len(data.Values)).Str("interval", interval).Msg("Fetched candles")
	return data.Values, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + endpoint + "?" + params.Encode()

	c.logger.Debug().Str("endpoint", endpoint).Str("symbol", params.Get("symbol")).Msg("Calling Twelve Data")

	// Create a new request with context
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	// Never put the key in the URL: url.Error quotes it verbatim
	req.Header.Set("Authorization", "apikey "+c.apiKey)

	resp, err := c.httpClient.DoRequest(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if bytes.Contains(body, []byte(`"status":"error"`)) {
		c.logger.Error().Str("response", string(body)).Msg("Twelve Data API error")

		var apiErr apiError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Code == http.StatusTooManyRequests {
			return nil, fmt.Errorf("Twelve Data API error: %s: %w", apiErr.Message,
				&httpClient.HTTPStatusError{StatusCode: apiErr.Code})
		}
		return nil, fmt.Errorf("Twelve Data API error: %s", string(body))
	}

	return body, nil
}
