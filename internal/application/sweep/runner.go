package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/rsisweep/internal/domain"
	"github.com/alejandrodnm/rsisweep/internal/ports"
)

// ErrNoInstruments indica que ningún instrumento pudo cargarse.
var ErrNoInstruments = errors.New("sweep: no instrument series available")

const defaultLoadConcurrency = 4

// Config contiene la configuración del runner.
type Config struct {
	Params domain.Params
	// Workers para las simulaciones. <= 0 usa runtime.NumCPU().
	Workers int
	// LoadConcurrency limita las cargas de series en paralelo.
	LoadConcurrency int
	// FailFast aborta el sweep con el primer instrumento que falle.
	// Si es false, el instrumento queda en Failures y fuera de cada agregado.
	FailFast bool
}

// DefaultConfig devuelve la configuración por defecto.
func DefaultConfig() Config {
	return Config{
		Params:          domain.DefaultParams(),
		LoadConcurrency: defaultLoadConcurrency,
	}
}

// Runner ejecuta el grid de umbrales sobre una cesta de instrumentos.
type Runner struct {
	cfg    Config
	series ports.SeriesProvider
}

// New crea un Runner con el provider de series dado.
func New(cfg Config, series ports.SeriesProvider) *Runner {
	if cfg.LoadConcurrency <= 0 {
		cfg.LoadConcurrency = defaultLoadConcurrency
	}
	return &Runner{cfg: cfg, series: series}
}

// loaded es la serie de un instrumento, o el error que impidió cargarla.
type loaded struct {
	symbol string
	series domain.AlignedSeries
	err    error
}

// Sweep simula cada par (buy < sell) para cada instrumento y devuelve el run
// con los records ya rankeados por beneficio agregado.
func (r *Runner) Sweep(ctx context.Context, instruments []string, buys, sells []float64) (domain.SweepRun, error) {
	if err := r.cfg.Params.Validate(); err != nil {
		return domain.SweepRun{}, fmt.Errorf("sweep.Sweep: %w", err)
	}

	start := time.Now()
	run := domain.SweepRun{
		ID:          uuid.New().String(),
		StartedAt:   start.UTC(),
		Instruments: instruments,
		Params:      r.cfg.Params,
	}

	data, err := r.load(ctx, instruments)
	if err != nil {
		return domain.SweepRun{}, err
	}

	var ok []loaded
	for _, d := range data {
		if d.err != nil {
			if r.cfg.FailFast {
				return domain.SweepRun{}, fmt.Errorf("sweep.Sweep: load %s: %w", d.symbol, d.err)
			}
			slog.Warn("instrument excluded from sweep", "symbol", d.symbol, "err", d.err)
			run.Failures = append(run.Failures, domain.InstrumentFailure{Symbol: d.symbol, Err: d.err})
			continue
		}
		ok = append(ok, d)
	}
	if len(ok) == 0 {
		return domain.SweepRun{}, ErrNoInstruments
	}

	pairs := domain.Pairs(buys, sells)
	slog.Info("sweep starting",
		"run_id", run.ID,
		"instruments", len(ok),
		"pairs", len(pairs),
		"skipped_pairs", len(buys)*len(sells)-len(pairs),
	)

	grid, err := simulateGrid(ctx, pairs, ok, r.cfg.Params, r.cfg.Workers)
	if err != nil {
		return domain.SweepRun{}, err
	}

	var loadFailed []string
	for _, f := range run.Failures {
		loadFailed = append(loadFailed, f.Symbol)
	}
	records, failures, err := reduce(pairs, ok, grid, loadFailed, r.cfg.FailFast)
	if err != nil {
		return domain.SweepRun{}, err
	}
	if len(failures) == len(ok) {
		return domain.SweepRun{}, fmt.Errorf("%w: every instrument failed to simulate", ErrNoInstruments)
	}
	run.Failures = append(run.Failures, failures...)
	run.Records = domain.Rank(records)
	run.Duration = time.Since(start)

	slog.Info("sweep complete",
		"run_id", run.ID,
		"records", len(run.Records),
		"failures", len(run.Failures),
		"elapsed", run.Duration.Round(time.Millisecond),
	)
	return run, nil
}

// load obtiene cada serie una sola vez; se reutiliza para todos los pares.
// Los errores por instrumento se guardan en su slot, no cortan el grupo.
func (r *Runner) load(ctx context.Context, instruments []string) ([]loaded, error) {
	out := make([]loaded, len(instruments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.LoadConcurrency)
	for i, sym := range instruments {
		g.Go(func() error {
			s, err := r.series.Series(gctx, sym)
			out[i] = loaded{symbol: sym, series: s, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("sweep.load: %w", err)
	}
	return out, nil
}

// reduce suma los slots de cada par. Un instrumento que falló en cualquier
// par queda excluido de todos: así todos los records agregan la misma cesta.
// excluded trae los instrumentos que ya fallaron al cargar.
func reduce(
	pairs []domain.ThresholdPair,
	inst []loaded,
	grid [][]cell,
	excluded []string,
	failFast bool,
) ([]domain.SweepRecord, []domain.InstrumentFailure, error) {
	failed := make([]error, len(inst))
	for p := range pairs {
		for i := range inst {
			if err := grid[p][i].err; err != nil && failed[i] == nil {
				if failFast {
					return nil, nil, fmt.Errorf("sweep.Sweep: simulate %s buy=%v sell=%v: %w",
						inst[i].symbol, pairs[p].Buy, pairs[p].Sell, err)
				}
				failed[i] = err
			}
		}
	}

	var failures []domain.InstrumentFailure
	for i, err := range failed {
		if err == nil {
			continue
		}
		slog.Warn("instrument excluded from sweep", "symbol", inst[i].symbol, "err", err)
		failures = append(failures, domain.InstrumentFailure{Symbol: inst[i].symbol, Err: err})
		excluded = append(excluded, inst[i].symbol)
	}

	records := make([]domain.SweepRecord, 0, len(pairs))
	for p, pair := range pairs {
		rec := domain.SweepRecord{Pair: pair, Excluded: excluded}
		for i := range inst {
			if failed[i] != nil {
				continue
			}
			res := grid[p][i].result
			rec.Results = append(rec.Results, domain.InstrumentResult{Symbol: inst[i].symbol, Result: res})
			rec.AggregateProfit += res.TotalProfit
		}
		records = append(records, rec)
	}
	return records, failures, nil
}
