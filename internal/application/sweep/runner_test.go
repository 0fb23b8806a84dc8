package sweep

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/rsisweep/internal/domain"
)

type mockSeriesProvider struct {
	series map[string]domain.AlignedSeries
	errs   map[string]error
	calls  atomic.Int32
}

func (m *mockSeriesProvider) Series(_ context.Context, symbol string) (domain.AlignedSeries, error) {
	m.calls.Add(1)
	if err, ok := m.errs[symbol]; ok {
		return nil, err
	}
	s, ok := m.series[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %s", symbol)
	}
	return s, nil
}

func mkSeries(pts ...[2]float64) domain.AlignedSeries {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make(domain.AlignedSeries, len(pts))
	for i, p := range pts {
		out[i] = domain.AlignedPoint{Date: start.AddDate(0, 0, i), Indicator: p[0], Price: p[1]}
	}
	return out
}

// scenarioA: compra 2 @90, vende 2 @110 con buy=65 sell=80 → +40.
func scenarioA() domain.AlignedSeries {
	return mkSeries([2]float64{70, 100}, [2]float64{60, 90}, [2]float64{90, 110})
}

func newRunner(p *mockSeriesProvider, failFast bool) *Runner {
	cfg := DefaultConfig()
	cfg.Workers = 4
	cfg.FailFast = failFast
	return New(cfg, p)
}

func TestSweep_EqualThresholdsProduceNoRecords(t *testing.T) {
	p := &mockSeriesProvider{series: map[string]domain.AlignedSeries{"AAA": scenarioA()}}

	run, err := newRunner(p, false).Sweep(context.Background(), []string{"AAA"}, []float64{80}, []float64{80})
	require.NoError(t, err)
	assert.Empty(t, run.Records)
	assert.Empty(t, run.Failures)
}

func TestSweep_AggregatesAcrossInstruments(t *testing.T) {
	p := &mockSeriesProvider{series: map[string]domain.AlignedSeries{
		"AAA": scenarioA(),
		"BBB": scenarioA(),
		"CCC": mkSeries([2]float64{50, 100}), // sin señales
	}}

	run, err := newRunner(p, false).Sweep(context.Background(), []string{"AAA", "BBB", "CCC"}, []float64{65}, []float64{80})
	require.NoError(t, err)
	require.Len(t, run.Records, 1)

	rec := run.Records[0]
	assert.Equal(t, domain.ThresholdPair{Buy: 65, Sell: 80}, rec.Pair)
	assert.InDelta(t, 80.0, rec.AggregateProfit, 1e-9)
	assert.True(t, rec.Complete())
	require.Len(t, rec.Results, 3)
	assert.Equal(t, "AAA", rec.Results[0].Symbol)
	assert.Equal(t, "CCC", rec.Results[2].Symbol)
	assert.Zero(t, rec.Results[2].Result.TotalProfit)
	assert.NotEmpty(t, run.ID)
}

func TestSweep_LoadsEachSeriesOnce(t *testing.T) {
	p := &mockSeriesProvider{series: map[string]domain.AlignedSeries{"AAA": scenarioA(), "BBB": scenarioA()}}
	th := []float64{20, 40, 60, 80}

	_, err := newRunner(p, false).Sweep(context.Background(), []string{"AAA", "BBB"}, th, th)
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestSweep_NeverRecordsBuyAtOrAboveSell(t *testing.T) {
	p := &mockSeriesProvider{series: map[string]domain.AlignedSeries{"AAA": scenarioA()}}
	th := []float64{60, 62, 64, 66, 68, 70}

	run, err := newRunner(p, false).Sweep(context.Background(), []string{"AAA"}, th, th)
	require.NoError(t, err)
	// 6 valores → 15 pares con buy < sell
	assert.Len(t, run.Records, 15)
	for _, r := range run.Records {
		assert.Less(t, r.Pair.Buy, r.Pair.Sell)
	}
}

func TestSweep_RankedDescendingWithStableTies(t *testing.T) {
	p := &mockSeriesProvider{series: map[string]domain.AlignedSeries{"AAA": scenarioA()}}

	// (65,80) gana 40; (10,80) y (10,95) no operan → empate a 0 en orden de enumeración
	run, err := newRunner(p, false).Sweep(context.Background(), []string{"AAA"}, []float64{10, 65}, []float64{80, 95})
	require.NoError(t, err)
	require.Len(t, run.Records, 4)

	assert.Equal(t, domain.ThresholdPair{Buy: 65, Sell: 80}, run.Records[0].Pair)
	assert.Equal(t, domain.ThresholdPair{Buy: 10, Sell: 80}, run.Records[1].Pair)
	assert.Equal(t, domain.ThresholdPair{Buy: 10, Sell: 95}, run.Records[2].Pair)
	assert.Equal(t, domain.ThresholdPair{Buy: 65, Sell: 95}, run.Records[3].Pair)
}

func TestSweep_ConcurrentMatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	series := map[string]domain.AlignedSeries{}
	var symbols []string
	for i := 0; i < 5; i++ {
		pts := make([][2]float64, 400)
		price := 50.0
		for j := range pts {
			price *= 1 + (rng.Float64()-0.5)*0.05
			pts[j] = [2]float64{rng.Float64() * 100, price}
		}
		sym := fmt.Sprintf("S%d", i)
		series[sym] = mkSeries(pts...)
		symbols = append(symbols, sym)
	}
	th := []float64{20, 30, 40, 50, 60, 70, 80}

	seqCfg := DefaultConfig()
	seqCfg.Workers = 1
	seq, err := New(seqCfg, &mockSeriesProvider{series: series}).Sweep(context.Background(), symbols, th, th)
	require.NoError(t, err)

	parCfg := DefaultConfig()
	parCfg.Workers = 16
	par, err := New(parCfg, &mockSeriesProvider{series: series}).Sweep(context.Background(), symbols, th, th)
	require.NoError(t, err)

	assert.Equal(t, seq.Records, par.Records)
}

func TestSweep_LoadFailureExcludedAndFlagged(t *testing.T) {
	p := &mockSeriesProvider{
		series: map[string]domain.AlignedSeries{"AAA": scenarioA()},
		errs:   map[string]error{"BAD": errors.New("no cache file")},
	}

	run, err := newRunner(p, false).Sweep(context.Background(), []string{"AAA", "BAD"}, []float64{65}, []float64{80})
	require.NoError(t, err)
	require.Len(t, run.Failures, 1)
	assert.Equal(t, "BAD", run.Failures[0].Symbol)

	require.Len(t, run.Records, 1)
	rec := run.Records[0]
	assert.False(t, rec.Complete())
	assert.Equal(t, []string{"BAD"}, rec.Excluded)
	assert.Len(t, rec.Results, 1)
	assert.InDelta(t, 40.0, rec.AggregateProfit, 1e-9)
}

func TestSweep_LoadFailureFailFast(t *testing.T) {
	p := &mockSeriesProvider{
		series: map[string]domain.AlignedSeries{"AAA": scenarioA()},
		errs:   map[string]error{"BAD": errors.New("boom")},
	}

	_, err := newRunner(p, true).Sweep(context.Background(), []string{"AAA", "BAD"}, []float64{65}, []float64{80})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BAD")
}

func TestSweep_DataErrorCarriesInstrument(t *testing.T) {
	p := &mockSeriesProvider{series: map[string]domain.AlignedSeries{
		"AAA": scenarioA(),
		"ZRO": mkSeries([2]float64{50, 100}, [2]float64{50, 0}),
	}}

	run, err := newRunner(p, false).Sweep(context.Background(), []string{"AAA", "ZRO"}, []float64{30, 65}, []float64{80})
	require.NoError(t, err)
	require.Len(t, run.Failures, 1)

	var derr *domain.DataError
	require.True(t, errors.As(run.Failures[0].Err, &derr))
	assert.Equal(t, "ZRO", derr.Instrument)
	assert.Equal(t, "price", derr.Field)
	for _, rec := range run.Records {
		assert.Equal(t, []string{"ZRO"}, rec.Excluded)
		require.Len(t, rec.Results, 1)
		assert.Equal(t, "AAA", rec.Results[0].Symbol)
	}

	_, err = newRunner(p, true).Sweep(context.Background(), []string{"AAA", "ZRO"}, []float64{65}, []float64{80})
	require.Error(t, err)
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, "ZRO", derr.Instrument)
}

func TestSweep_AllInstrumentsFail(t *testing.T) {
	p := &mockSeriesProvider{errs: map[string]error{"AAA": errors.New("x")}}
	_, err := newRunner(p, false).Sweep(context.Background(), []string{"AAA"}, []float64{30}, []float64{70})
	assert.ErrorIs(t, err, ErrNoInstruments)

	p = &mockSeriesProvider{series: map[string]domain.AlignedSeries{"ZRO": mkSeries([2]float64{50, -1})}}
	_, err = newRunner(p, false).Sweep(context.Background(), []string{"ZRO"}, []float64{30}, []float64{70})
	assert.ErrorIs(t, err, ErrNoInstruments)
}

func TestSweep_CancelledContext(t *testing.T) {
	p := &mockSeriesProvider{series: map[string]domain.AlignedSeries{"AAA": scenarioA()}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newRunner(p, false).Sweep(ctx, []string{"AAA"}, []float64{30}, []float64{70})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSweep_InvalidParams(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Params.TradeSize = 0
	_, err := New(cfg, &mockSeriesProvider{}).Sweep(context.Background(), []string{"AAA"}, []float64{30}, []float64{70})
	assert.Error(t, err)
}
