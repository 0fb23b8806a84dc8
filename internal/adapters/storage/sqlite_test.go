package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/rsisweep/internal/adapters/storage"
	"github.com/alejandrodnm/rsisweep/internal/domain"
)

func makeRun(id string, startedAt time.Time) domain.SweepRun {
	return domain.SweepRun{
		ID:          id,
		StartedAt:   startedAt,
		Duration:    1500 * time.Millisecond,
		Instruments: []string{"MSFT", "AAPL", "BAD"},
		Params:      domain.DefaultParams(),
		Records: []domain.SweepRecord{
			{
				Pair:            domain.ThresholdPair{Buy: 30, Sell: 70},
				AggregateProfit: 55,
				Results: []domain.InstrumentResult{
					{Symbol: "MSFT", Result: domain.Result{FinalCash: 10040, TotalProfit: 40, BuyCount: 2, SellCount: 1, ProfitPercentage: 0.4}},
					{Symbol: "AAPL", Result: domain.Result{FinalCash: 9815, TotalProfit: 15, BuyCount: 3, SellCount: 1, OpenShares: 1, OpenCost: 200}},
				},
				Excluded: []string{"BAD"},
			},
			{
				Pair:            domain.ThresholdPair{Buy: 40, Sell: 70},
				AggregateProfit: -3,
				Results: []domain.InstrumentResult{
					{Symbol: "MSFT", Result: domain.Result{TotalProfit: -1}},
					{Symbol: "AAPL", Result: domain.Result{TotalProfit: -2}},
				},
				Excluded: []string{"BAD"},
			},
		},
		Failures: []domain.InstrumentFailure{{Symbol: "BAD", Err: errors.New("not cached")}},
	}
}

func TestSQLiteStorage_SaveAndGetRecords(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	run := makeRun("run-1", time.Now().UTC())
	require.NoError(t, db.SaveRun(ctx, run))

	recs, err := db.GetRecords(ctx, "run-1", 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, run.Records[0].Pair, recs[0].Pair)
	assert.InDelta(t, 55.0, recs[0].AggregateProfit, 1e-9)
	assert.Equal(t, []string{"BAD"}, recs[0].Excluded)
	require.Len(t, recs[0].Results, 2)
	assert.Equal(t, "MSFT", recs[0].Results[0].Symbol)
	assert.Equal(t, 2, recs[0].Results[0].Result.BuyCount)
	assert.Equal(t, 1, recs[0].Results[1].Result.OpenShares)
	assert.InDelta(t, -3.0, recs[1].AggregateProfit, 1e-9)
}

func TestSQLiteStorage_GetRecordsLimit(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.SaveRun(ctx, makeRun("run-1", time.Now().UTC())))

	recs, err := db.GetRecords(ctx, "run-1", 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Len(t, recs[0].Results, 2)
}

func TestSQLiteStorage_UnknownRun(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	recs, err := db.GetRecords(context.Background(), "nope", 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSQLiteStorage_LatestRunID(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	_, err = db.LatestRunID(ctx)
	assert.ErrorIs(t, err, storage.ErrNoRuns)

	now := time.Now().UTC()
	require.NoError(t, db.SaveRun(ctx, makeRun("older", now.Add(-time.Hour))))
	require.NoError(t, db.SaveRun(ctx, makeRun("newer", now)))

	id, err := db.LatestRunID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "newer", id)
}

func TestSQLiteStorage_DuplicateRunRejected(t *testing.T) {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	run := makeRun("dup", time.Now().UTC())
	require.NoError(t, db.SaveRun(ctx, run))
	assert.Error(t, db.SaveRun(ctx, run))

	// el segundo intento hizo rollback: sigue habiendo 2 records
	recs, err := db.GetRecords(ctx, "dup", 0)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}
