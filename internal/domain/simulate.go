package domain

import (
	"fmt"
	"math"
	"time"
)

const (
	DefaultStartingCash = 10_000.0
	DefaultTradeSize    = 200.0

	rsiMin = 0.0
	rsiMax = 100.0
)

// Params son los parámetros de capital de una simulación.
type Params struct {
	StartingCash float64
	TradeSize    float64 // cash fijo asignado a cada compra
	// LiquidateAtEnd vende los lotes abiertos al último cierre de la serie.
	// Apagado por defecto: los lotes abiertos no entran en TotalProfit.
	LiquidateAtEnd bool
}

// DefaultParams devuelve 10000 de capital inicial y 200 por compra.
func DefaultParams() Params {
	return Params{StartingCash: DefaultStartingCash, TradeSize: DefaultTradeSize}
}

// Validate comprueba que los parámetros de capital sean positivos.
func (p Params) Validate() error {
	if !(p.StartingCash > 0) {
		return fmt.Errorf("starting cash must be > 0, got %v", p.StartingCash)
	}
	if !(p.TradeSize > 0) {
		return fmt.Errorf("trade size must be > 0, got %v", p.TradeSize)
	}
	return nil
}

// Lot es un bloque de acciones comprado en un único evento.
type Lot struct {
	Shares   int
	BuyPrice float64
}

// Cost devuelve lo que costó el lote.
func (l Lot) Cost() float64 {
	return float64(l.Shares) * l.BuyPrice
}

// Result es el resumen de una simulación.
type Result struct {
	FinalCash        float64
	TotalProfit      float64 // solo ventas completadas
	BuyCount         int
	SellCount        int
	ProfitPercentage float64 // TotalProfit / StartingCash × 100

	// Posición abierta al final (no valorada a mercado).
	OpenShares int
	OpenCost   float64

	// Volúmenes brutos: FinalCash = StartingCash - Bought + Sold.
	Bought float64
	Sold   float64
}

// DataError indica un valor inválido en una fecha que se estaba procesando.
type DataError struct {
	Instrument string // lo completa el runner del sweep
	Date       time.Time
	Field      string // "indicator" o "price"
	Value      float64
	Reason     string
}

func (e *DataError) Error() string {
	inst := e.Instrument
	if inst == "" {
		inst = "?"
	}
	return fmt.Sprintf("data error: %s on %s: %s %v: %s",
		inst, e.Date.Format(DateLayout), e.Field, e.Value, e.Reason)
}

// simState es el estado mutable de una sola simulación. Lo posee Simulate
// en exclusiva y se descarta al devolver el Result.
type simState struct {
	cash      float64
	lots      []Lot
	buys      int
	sells     int
	profit    float64
	bought    float64
	sold      float64
	tradeSize float64
}

// buy abre un lote si el precio permite al menos 1 acción.
// El chequeo de cash lo hace el llamador: forma parte de la señal.
func (s *simState) buy(price float64) {
	shares := int(math.Floor(s.tradeSize / price))
	if shares < 1 {
		return
	}
	cost := float64(shares) * price
	s.lots = append(s.lots, Lot{Shares: shares, BuyPrice: price})
	s.cash -= cost
	s.bought += cost
	s.buys++
}

// sellAll liquida todos los lotes abiertos al precio dado.
func (s *simState) sellAll(price float64) {
	if len(s.lots) == 0 {
		return
	}
	shares, cost := s.open()
	proceeds := float64(shares) * price
	s.cash += proceeds
	s.sold += proceeds
	s.profit += proceeds - cost
	s.lots = s.lots[:0]
	s.sells++
}

func (s *simState) open() (shares int, cost float64) {
	for _, l := range s.lots {
		shares += l.Shares
		cost += l.Cost()
	}
	return shares, cost
}

// Simulate recorre la serie una vez aplicando la regla:
// RSI < buy compra TradeSize; si no, RSI > sell vende todo.
// La compra se evalúa antes que la venta en cada fecha (elif).
func Simulate(series AlignedSeries, buy, sell float64, p Params) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, fmt.Errorf("domain.Simulate: %w", err)
	}

	st := simState{cash: p.StartingCash, tradeSize: p.TradeSize}

	for _, pt := range series {
		if err := checkPoint(pt); err != nil {
			return Result{}, err
		}

		if pt.Indicator < buy && st.cash >= p.TradeSize {
			st.buy(pt.Price)
		} else if pt.Indicator > sell && len(st.lots) > 0 {
			st.sellAll(pt.Price)
		}
	}

	if p.LiquidateAtEnd && len(series) > 0 {
		st.sellAll(series[len(series)-1].Price)
	}

	openShares, openCost := st.open()
	return Result{
		FinalCash:        st.cash,
		TotalProfit:      st.profit,
		BuyCount:         st.buys,
		SellCount:        st.sells,
		ProfitPercentage: st.profit / p.StartingCash * 100,
		OpenShares:       openShares,
		OpenCost:         openCost,
		Bought:           st.bought,
		Sold:             st.sold,
	}, nil
}

func checkPoint(pt AlignedPoint) error {
	switch {
	case math.IsNaN(pt.Indicator) || math.IsInf(pt.Indicator, 0):
		return &DataError{Date: pt.Date, Field: "indicator", Value: pt.Indicator, Reason: "non-numeric"}
	case pt.Indicator < rsiMin || pt.Indicator > rsiMax:
		return &DataError{Date: pt.Date, Field: "indicator", Value: pt.Indicator, Reason: "outside [0,100]"}
	case math.IsNaN(pt.Price) || math.IsInf(pt.Price, 0):
		return &DataError{Date: pt.Date, Field: "price", Value: pt.Price, Reason: "non-numeric"}
	case pt.Price <= 0:
		return &DataError{Date: pt.Date, Field: "price", Value: pt.Price, Reason: "must be > 0"}
	}
	return nil
}
