package ports

import (
	"context"

	"github.com/alejandrodnm/rsisweep/internal/domain"
)

// IndicatorSource obtiene la serie diaria de RSI de un símbolo.
// Las claves son fechas ISO-8601; los valores no numéricos llegan como NaN.
type IndicatorSource interface {
	FetchRSI(ctx context.Context, symbol string) (map[string]float64, error)
}

// PriceSource obtiene los cierres diarios de un símbolo.
type PriceSource interface {
	FetchCloses(ctx context.Context, symbol string) (map[string]float64, error)
}

// SeriesProvider devuelve la serie alineada (RSI + cierre) de un instrumento.
// La carga termina antes de devolver: el simulador no mantiene recursos abiertos.
type SeriesProvider interface {
	Series(ctx context.Context, symbol string) (domain.AlignedSeries, error)
}
