package indicator

import (
	"context"
	"fmt"
	"sort"

	"github.com/markcheno/go-talib"

	"github.com/alejandrodnm/rsisweep/internal/ports"
)

const defaultPeriod = 14

// LocalRSI calcula el RSI a partir de los cierres, sin pedirlo a la API.
// Implementa ports.IndicatorSource.
type LocalRSI struct {
	prices ports.PriceSource
	period int
}

// NewLocalRSI crea un LocalRSI. period <= 0 usa 14.
func NewLocalRSI(prices ports.PriceSource, period int) *LocalRSI {
	if period <= 0 {
		period = defaultPeriod
	}
	return &LocalRSI{prices: prices, period: period}
}

// FetchRSI devuelve el RSI de Wilder sobre los cierres ordenados por fecha.
// Las primeras `period` fechas no tienen valor y se omiten.
func (l *LocalRSI) FetchRSI(ctx context.Context, symbol string) (map[string]float64, error) {
	closes, err := l.prices.FetchCloses(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("indicator.LocalRSI %s: %w", symbol, err)
	}
	return Compute(closes, l.period), nil
}

// Compute calcula el RSI de una serie fecha → cierre.
// Las claves ISO-8601 ordenan cronológicamente como strings.
func Compute(closes map[string]float64, period int) map[string]float64 {
	if len(closes) <= period {
		return map[string]float64{}
	}

	dates := make([]string, 0, len(closes))
	for d := range closes {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	in := make([]float64, len(dates))
	for i, d := range dates {
		in[i] = closes[d]
	}

	rsi := talib.Rsi(in, period)
	out := make(map[string]float64, len(dates)-period)
	for i := period; i < len(dates); i++ {
		out[dates[i]] = rsi[i]
	}
	return out
}
