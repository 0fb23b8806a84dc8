package domain

import (
	"sort"
	"time"
)

// ThresholdPair es el par (buy, sell) que parametriza una simulación.
type ThresholdPair struct {
	Buy  float64
	Sell float64
}

// Valid devuelve true si buy < sell. Los pares inválidos no se simulan.
func (p ThresholdPair) Valid() bool {
	return p.Buy < p.Sell
}

// Pairs enumera los pares válidos: buy es el bucle externo, sell el interno.
func Pairs(buys, sells []float64) []ThresholdPair {
	var out []ThresholdPair
	for _, b := range buys {
		for _, s := range sells {
			p := ThresholdPair{Buy: b, Sell: s}
			if !p.Valid() {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}

// InstrumentResult es el resultado de un instrumento para un par.
type InstrumentResult struct {
	Symbol string
	Result Result
}

// InstrumentFailure registra un instrumento que no se pudo cargar o simular.
type InstrumentFailure struct {
	Symbol string
	Err    error
}

// SweepRecord agrega los resultados de todos los instrumentos para un par.
type SweepRecord struct {
	Pair            ThresholdPair
	AggregateProfit float64 // suma de TotalProfit de Results
	Results         []InstrumentResult
	// Excluded son los instrumentos que fallaron y NO están en AggregateProfit.
	Excluded []string
}

// Complete devuelve true si ningún instrumento quedó fuera del agregado.
func (r SweepRecord) Complete() bool {
	return len(r.Excluded) == 0
}

// Totals devuelve compras y ventas sumadas sobre todos los instrumentos.
func (r SweepRecord) Totals() (buys, sells int) {
	for _, ir := range r.Results {
		buys += ir.Result.BuyCount
		sells += ir.Result.SellCount
	}
	return buys, sells
}

// Profits devuelve el TotalProfit de cada instrumento, en orden.
func (r SweepRecord) Profits() []float64 {
	out := make([]float64, len(r.Results))
	for i, ir := range r.Results {
		out[i] = ir.Result.TotalProfit
	}
	return out
}

// Rank ordena por AggregateProfit descendente. Es estable: los empates
// conservan el orden de enumeración. No modifica el slice de entrada.
func Rank(records []SweepRecord) []SweepRecord {
	out := make([]SweepRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AggregateProfit > out[j].AggregateProfit
	})
	return out
}

// SweepRun es un sweep completo: parámetros, ranking y fallos.
type SweepRun struct {
	ID          string
	StartedAt   time.Time
	Duration    time.Duration
	Instruments []string
	Params      Params
	Records     []SweepRecord // ya rankeados
	Failures    []InstrumentFailure
}

// Best devuelve el mejor record, si existe.
func (r SweepRun) Best() (SweepRecord, bool) {
	if len(r.Records) == 0 {
		return SweepRecord{}, false
	}
	return r.Records[0], true
}
