package alphavantage

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
)

// FetchRSI devuelve el RSI diario del símbolo (fecha → valor).
func (c *Client) FetchRSI(ctx context.Context, symbol string) (map[string]float64, error) {
	params := url.Values{}
	params.Set("function", "RSI")
	params.Set("symbol", symbol)
	params.Set("interval", "daily")
	params.Set("time_period", strconv.Itoa(c.rsiPeriod))
	params.Set("series_type", c.seriesType)

	var resp rsiResponse
	if err := c.query(ctx, params, &resp); err != nil {
		return nil, fmt.Errorf("alphavantage.FetchRSI %s: %w", symbol, err)
	}
	if len(resp.Series) == 0 {
		return nil, fmt.Errorf("alphavantage.FetchRSI %s: empty series", symbol)
	}

	out := make(map[string]float64, len(resp.Series))
	for date, v := range resp.Series {
		out[date] = parseValue(symbol, date, v.RSI)
	}
	return out, nil
}

// FetchCloses devuelve los cierres diarios del símbolo (historia completa).
func (c *Client) FetchCloses(ctx context.Context, symbol string) (map[string]float64, error) {
	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY")
	params.Set("symbol", symbol)
	params.Set("outputsize", "full")

	var resp dailyResponse
	if err := c.query(ctx, params, &resp); err != nil {
		return nil, fmt.Errorf("alphavantage.FetchCloses %s: %w", symbol, err)
	}
	if len(resp.Series) == 0 {
		return nil, fmt.Errorf("alphavantage.FetchCloses %s: empty series", symbol)
	}

	out := make(map[string]float64, len(resp.Series))
	for date, bar := range resp.Series {
		out[date] = parseValue(symbol, date, bar.Close)
	}
	return out, nil
}

// parseValue convierte el string de la API. Lo no numérico queda como NaN:
// el simulador lo rechaza con DataError solo si llega a procesar esa fecha.
func parseValue(symbol, date, raw string) float64 {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		slog.Debug("non-numeric value from api", "symbol", symbol, "date", date, "raw", raw)
		return math.NaN()
	}
	return v
}
