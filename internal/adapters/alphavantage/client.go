package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://www.alphavantage.co"
	queryPath      = "/query"

	// Free tier: 5 requests/min. Por debajo del límite para no gastar la cuota diaria.
	defaultRequestsPerMinute = 5

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// ErrRateLimited indica que la API devolvió un aviso de cuota ("Note"/"Information").
var ErrRateLimited = errors.New("alphavantage: api rate limit reached")

// Options configura el Client. Los campos vacíos usan valores de producción.
type Options struct {
	BaseURL           string
	APIKey            string
	RequestsPerMinute int
	RSIPeriod         int    // time_period del RSI, 14 por defecto
	SeriesType        string // open | close | high | low
	HTTPClient        *http.Client
}

// Client es el HTTP client de Alpha Vantage con rate limiting y retries.
// Implementa ports.IndicatorSource y ports.PriceSource.
type Client struct {
	http       *http.Client
	baseURL    string
	apiKey     string
	rsiPeriod  int
	seriesType string
	limiter    *rate.Limiter
}

// NewClient crea un Client. Sin APIKey las peticiones fallan en la API, no aquí.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.RequestsPerMinute <= 0 {
		opts.RequestsPerMinute = defaultRequestsPerMinute
	}
	if opts.RSIPeriod <= 0 {
		opts.RSIPeriod = 14
	}
	if opts.SeriesType == "" {
		opts.SeriesType = "open"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		http:       opts.HTTPClient,
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		rsiPeriod:  opts.RSIPeriod,
		seriesType: opts.SeriesType,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1),
	}
}

// query hace un GET /query con los parámetros dados y decodifica el JSON en out.
func (c *Client) query(ctx context.Context, params url.Values, out any) error {
	params.Set("apikey", c.apiKey)
	u := c.baseURL + queryPath + "?" + params.Encode()

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("rate limited by API", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if err := checkAPIMessage(body); err != nil {
			return err
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// checkAPIMessage detecta los errores que la API devuelve con status 200.
func checkAPIMessage(body []byte) error {
	var msg apiMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil // lo reporta el decode principal
	}
	switch {
	case msg.ErrorMessage != "":
		return fmt.Errorf("api error: %s", msg.ErrorMessage)
	case msg.Note != "":
		return fmt.Errorf("%w: %s", ErrRateLimited, msg.Note)
	case msg.Information != "":
		return fmt.Errorf("%w: %s", ErrRateLimited, msg.Information)
	}
	return nil
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
