package series

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/rsisweep/internal/domain"
	"github.com/alejandrodnm/rsisweep/internal/ports"
)

// Loader implementa ports.SeriesProvider: pide RSI y cierres, los alinea por
// fecha y recorta a la ventana [since, ∞).
type Loader struct {
	indicators ports.IndicatorSource
	prices     ports.PriceSource
	since      time.Time
}

// NewLoader crea un Loader. Un since cero no recorta la serie.
func NewLoader(indicators ports.IndicatorSource, prices ports.PriceSource, since time.Time) *Loader {
	return &Loader{indicators: indicators, prices: prices, since: since}
}

// Series devuelve la serie alineada del símbolo.
func (l *Loader) Series(ctx context.Context, symbol string) (domain.AlignedSeries, error) {
	rsi, err := l.indicators.FetchRSI(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("series.Load %s: rsi: %w", symbol, err)
	}
	closes, err := l.prices.FetchCloses(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("series.Load %s: prices: %w", symbol, err)
	}

	aligned, err := domain.Align(rsi, closes)
	if err != nil {
		return nil, fmt.Errorf("series.Load %s: %w", symbol, err)
	}
	aligned = aligned.Since(l.since)

	slog.Debug("series loaded",
		"symbol", symbol,
		"rsi_points", len(rsi),
		"price_points", len(closes),
		"aligned", len(aligned),
	)
	return aligned, nil
}
