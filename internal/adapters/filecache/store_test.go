package filecache_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/rsisweep/internal/adapters/filecache"
)

type countingSource struct {
	rsi    map[string]float64
	closes map[string]float64
	calls  int
	err    error
}

func (c *countingSource) FetchRSI(context.Context, string) (map[string]float64, error) {
	c.calls++
	return c.rsi, c.err
}

func (c *countingSource) FetchCloses(context.Context, string) (map[string]float64, error) {
	c.calls++
	return c.closes, c.err
}

func TestStore_RoundTripKeepsNaN(t *testing.T) {
	s := filecache.New(t.TempDir())

	require.NoError(t, s.SaveRSI("MSFT", map[string]float64{"2024-01-02": 55.5, "2024-01-03": math.NaN()}))
	rsi, err := s.LoadRSI("MSFT")
	require.NoError(t, err)
	assert.InDelta(t, 55.5, rsi["2024-01-02"], 1e-9)
	assert.True(t, math.IsNaN(rsi["2024-01-03"]))

	require.NoError(t, s.SaveCloses("MSFT", map[string]float64{"2024-01-02": 371.25}))
	closes, err := s.LoadCloses("MSFT")
	require.NoError(t, err)
	assert.InDelta(t, 371.25, closes["2024-01-02"], 1e-9)
}

func TestStore_ReadsDownloadedLayout(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "rsi"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "price"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rsi", "AAPL_rsi.json"),
		[]byte(`{"2014-01-02": {"RSI": "44.1"}, "2014-01-03": {}}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "price", "AAPL_price.json"),
		[]byte(`{"2014-01-02": "553.13", "2014-01-03": 540.98, "2014-01-06": null}`), 0o644))

	s := filecache.New(dir)
	rsi, err := s.LoadRSI("AAPL")
	require.NoError(t, err)
	assert.InDelta(t, 44.1, rsi["2014-01-02"], 1e-9)
	assert.True(t, math.IsNaN(rsi["2014-01-03"]))

	closes, err := s.LoadCloses("AAPL")
	require.NoError(t, err)
	assert.InDelta(t, 553.13, closes["2014-01-02"], 1e-9)
	assert.InDelta(t, 540.98, closes["2014-01-03"], 1e-9)
	assert.True(t, math.IsNaN(closes["2014-01-06"]))
}

func TestStore_Miss(t *testing.T) {
	_, err := filecache.New(t.TempDir()).LoadRSI("NOPE")
	assert.True(t, errors.Is(err, filecache.ErrMiss))
}

func TestCachedSource_FetchesOnceThenReadsCache(t *testing.T) {
	s := filecache.New(t.TempDir())
	up := &countingSource{rsi: map[string]float64{"2024-01-02": 30}}
	src := s.Indicators(up, false)

	for i := 0; i < 3; i++ {
		rsi, err := src.FetchRSI(context.Background(), "NVDA")
		require.NoError(t, err)
		assert.Equal(t, 30.0, rsi["2024-01-02"])
	}
	assert.Equal(t, 1, up.calls)
}

func TestCachedSource_RefreshAlwaysFetches(t *testing.T) {
	s := filecache.New(t.TempDir())
	up := &countingSource{closes: map[string]float64{"2024-01-02": 10}}
	src := s.Prices(up, true)

	for i := 0; i < 2; i++ {
		_, err := src.FetchCloses(context.Background(), "NVDA")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, up.calls)
}

func TestCachedSource_OfflineMiss(t *testing.T) {
	src := filecache.New(t.TempDir()).Prices(nil, false)
	_, err := src.FetchCloses(context.Background(), "NVDA")
	assert.ErrorIs(t, err, filecache.ErrMiss)
}

func TestCachedSource_UpstreamError(t *testing.T) {
	up := &countingSource{err: errors.New("quota")}
	src := filecache.New(t.TempDir()).Indicators(up, false)
	_, err := src.FetchRSI(context.Background(), "NVDA")
	assert.ErrorContains(t, err, "quota")
}
