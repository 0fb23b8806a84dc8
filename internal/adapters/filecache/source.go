package filecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/rsisweep/internal/ports"
)

// Indicators devuelve un IndicatorSource que lee de la cache y, en un miss
// (o siempre si refresh), pide a upstream y guarda el resultado.
// Con upstream nil funciona solo con la cache.
func (s *Store) Indicators(upstream ports.IndicatorSource, refresh bool) ports.IndicatorSource {
	return &cachedIndicators{store: s, upstream: upstream, refresh: refresh}
}

// Prices es el equivalente de Indicators para los cierres.
func (s *Store) Prices(upstream ports.PriceSource, refresh bool) ports.PriceSource {
	return &cachedPrices{store: s, upstream: upstream, refresh: refresh}
}

type cachedIndicators struct {
	store    *Store
	upstream ports.IndicatorSource
	refresh  bool
}

func (c *cachedIndicators) FetchRSI(ctx context.Context, symbol string) (map[string]float64, error) {
	if !c.refresh || c.upstream == nil {
		rsi, err := c.store.LoadRSI(symbol)
		if err == nil {
			return rsi, nil
		}
		if !errors.Is(err, ErrMiss) || c.upstream == nil {
			return nil, err
		}
	}

	slog.Info("fetching rsi", "symbol", symbol)
	rsi, err := c.upstream.FetchRSI(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("filecache: upstream: %w", err)
	}
	if err := c.store.SaveRSI(symbol, rsi); err != nil {
		slog.Warn("rsi cache write failed", "symbol", symbol, "err", err)
	}
	return rsi, nil
}

type cachedPrices struct {
	store    *Store
	upstream ports.PriceSource
	refresh  bool
}

func (c *cachedPrices) FetchCloses(ctx context.Context, symbol string) (map[string]float64, error) {
	if !c.refresh || c.upstream == nil {
		closes, err := c.store.LoadCloses(symbol)
		if err == nil {
			return closes, nil
		}
		if !errors.Is(err, ErrMiss) || c.upstream == nil {
			return nil, err
		}
	}

	slog.Info("fetching daily prices", "symbol", symbol)
	closes, err := c.upstream.FetchCloses(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("filecache: upstream: %w", err)
	}
	if err := c.store.SaveCloses(symbol, closes); err != nil {
		slog.Warn("price cache write failed", "symbol", symbol, "err", err)
	}
	return closes, nil
}
