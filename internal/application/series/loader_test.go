package series_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/rsisweep/internal/application/series"
	"github.com/alejandrodnm/rsisweep/internal/domain"
)

type stubSource struct {
	rsi    map[string]float64
	closes map[string]float64
	err    error
}

func (s stubSource) FetchRSI(context.Context, string) (map[string]float64, error) {
	return s.rsi, s.err
}

func (s stubSource) FetchCloses(context.Context, string) (map[string]float64, error) {
	return s.closes, s.err
}

func TestLoader_AlignsAndFiltersWindow(t *testing.T) {
	src := stubSource{
		rsi:    map[string]float64{"2013-12-31": 40, "2014-01-02": 45, "2014-01-03": 50},
		closes: map[string]float64{"2013-12-31": 10, "2014-01-02": 11, "2014-01-06": 12},
	}
	since := time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC)

	got, err := series.NewLoader(src, src, since).Series(context.Background(), "MSFT")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 45.0, got[0].Indicator)
	assert.Equal(t, 11.0, got[0].Price)
}

func TestLoader_PropagatesAlignmentError(t *testing.T) {
	src := stubSource{
		rsi:    map[string]float64{"not-a-date": 40},
		closes: map[string]float64{"2014-01-02": 11},
	}

	_, err := series.NewLoader(src, src, time.Time{}).Series(context.Background(), "MSFT")
	var aerr *domain.AlignmentError
	require.True(t, errors.As(err, &aerr))
	assert.Contains(t, err.Error(), "MSFT")
}

func TestLoader_SourceError(t *testing.T) {
	src := stubSource{err: errors.New("offline")}
	_, err := series.NewLoader(src, src, time.Time{}).Series(context.Background(), "MSFT")
	assert.ErrorContains(t, err, "offline")
}
