package domain

import (
	"fmt"
	"sort"
	"time"
)

// DateLayout es el formato ISO-8601 de las claves de fecha de las series.
const DateLayout = "2006-01-02"

// IndicatorPoint es un valor de RSI en una fecha.
type IndicatorPoint struct {
	Date  time.Time
	Value float64 // RSI ∈ [0, 100]
}

// PricePoint es un precio de cierre en una fecha.
type PricePoint struct {
	Date  time.Time
	Value float64 // cierre > 0
}

// AlignedPoint es una fecha presente en ambas series, con sus dos valores.
type AlignedPoint struct {
	Date      time.Time
	Indicator float64
	Price     float64
}

// AlignedSeries está ordenada estrictamente ascendente por fecha, sin duplicados.
type AlignedSeries []AlignedPoint

// Since devuelve los puntos con fecha >= from. Un from cero no filtra nada.
func (s AlignedSeries) Since(from time.Time) AlignedSeries {
	if from.IsZero() {
		return s
	}
	i := sort.Search(len(s), func(i int) bool { return !s[i].Date.Before(from) })
	return s[i:]
}

// AlignmentError indica una clave de fecha que no se pudo parsear.
type AlignmentError struct {
	Series string // "indicator" o "price"
	Key    string
	Err    error
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("align: %s series: bad date key %q: %v", e.Series, e.Key, e.Err)
}

func (e *AlignmentError) Unwrap() error { return e.Err }

// Align cruza la serie de indicador con la de precios: solo quedan las fechas
// presentes en ambas, ordenadas ascendente. Las fechas sueltas se descartan
// sin error; una clave malformada en cualquiera de las dos sí es error.
func Align(indicator, price map[string]float64) (AlignedSeries, error) {
	ind, err := parseDates("indicator", indicator)
	if err != nil {
		return nil, err
	}
	prc, err := parseDates("price", price)
	if err != nil {
		return nil, err
	}

	out := make(AlignedSeries, 0, min(len(ind), len(prc)))
	for day, v := range ind {
		p, ok := prc[day]
		if !ok {
			continue
		}
		out = append(out, AlignedPoint{Date: day, Indicator: v, Price: p})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// parseDates convierte las claves a time.Time (UTC, medianoche).
// Dos claves distintas que caen en el mismo día no pueden existir con DateLayout.
func parseDates(name string, in map[string]float64) (map[time.Time]float64, error) {
	out := make(map[time.Time]float64, len(in))
	for key, v := range in {
		day, err := time.Parse(DateLayout, key)
		if err != nil {
			return nil, &AlignmentError{Series: name, Key: key, Err: err}
		}
		out[day] = v
	}
	return out, nil
}
