package sweep

// concurrent.go — worker pool para las simulaciones del grid.
//
// Cada simulación es secuencial por dentro, pero (par, instrumento) son
// independientes entre sí. Cada tarea escribe solo en su propio slot de la
// matriz; la suma por par se hace después, en reduce.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/alejandrodnm/rsisweep/internal/domain"
)

// cell es el resultado de una simulación (par, instrumento).
type cell struct {
	result domain.Result
	err    error
}

// simulateGrid devuelve grid[par][instrumento].
// Si workers <= 0 usa runtime.NumCPU(): la simulación es CPU-bound.
func simulateGrid(
	ctx context.Context,
	pairs []domain.ThresholdPair,
	inst []loaded,
	params domain.Params,
	workers int,
) ([][]cell, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	grid := make([][]cell, len(pairs))
	for p := range grid {
		grid[p] = make([]cell, len(inst))
	}

	type work struct {
		pair, inst int
	}

	workCh := make(chan work, workers*2)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for w := range workCh {
				pair := pairs[w.pair]
				in := inst[w.inst]
				res, err := domain.Simulate(in.series, pair.Buy, pair.Sell, params)
				if err != nil {
					var derr *domain.DataError
					if errors.As(err, &derr) {
						derr.Instrument = in.symbol
					}
				}
				grid[w.pair][w.inst] = cell{result: res, err: err}
			}
		}()
	}

	// Alimentar el work channel; se corta si el contexto se cancela.
	queued := 0
feed:
	for p := range pairs {
		for i := range inst {
			select {
			case <-ctx.Done():
				break feed
			case workCh <- work{pair: p, inst: i}:
				queued++
			}
		}
	}
	close(workCh)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("sweep.simulateGrid: %w", err)
	}

	slog.Debug("grid simulation complete",
		"tasks", queued,
		"workers", workers,
	)
	return grid, nil
}
