package feature

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oyasar/loadcast/calendar"
	"github.com/oyasar/loadcast/timeseries"
)

func newEngineer(t *testing.T) *Engineer {
	t.Helper()
	cal, err := calendar.New(time.UTC)
	require.NoError(t, err)
	return NewEngineer(cal, time.UTC)
}

func hourlySeries(t *testing.T, start time.Time, v []float64) *timeseries.Series {
	t.Helper()
	pts := make([]time.Time, len(v))
	for i := range v {
		pts[i] = start.Add(time.Duration(i) * time.Hour)
	}
	s, err := timeseries.New(pts, v)
	require.NoError(t, err)
	return s
}

func TestTransformRowCountPreserved(t *testing.T) {
	e := newEngineer(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, n := range []int{1, 24, 200, 400} {
		v := make([]float64, n)
		for i := range v {
			v[i] = float64(i)
		}
		obs := hourlySeries(t, start, v)
		tb, err := e.Transform(obs, timeseries.Empty())
		require.NoError(t, err)
		assert.Equal(t, n, tb.Len())
	}
}

func TestTransformLags(t *testing.T) {
	e := newEngineer(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	n := 300
	v := make([]float64, n)
	for i := range v {
		v[i] = float64(i) * 1.5
	}
	obs := hourlySeries(t, start, v)

	tb, err := e.Transform(obs, timeseries.Empty())
	require.NoError(t, err)

	for _, td := range []struct {
		label string
		lag   int
	}{
		{LabelLag48, 48},
		{LabelLag72, 72},
		{LabelLag168, 168},
	} {
		data, ok := tb.Col(td.label)
		require.True(t, ok)
		for i := 0; i < n; i++ {
			if i < td.lag {
				assert.True(t, math.IsNaN(data[i]), "%s[%d]", td.label, i)
				continue
			}
			assert.Equal(t, v[i-td.lag], data[i], "%s[%d]", td.label, i)
		}
	}
}

func TestTransformRolling(t *testing.T) {
	e := newEngineer(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	n := 250
	v := make([]float64, n)
	for i := range v {
		v[i] = float64(i % 7)
	}
	obs := hourlySeries(t, start, v)

	tb, err := e.Transform(obs, timeseries.Empty())
	require.NoError(t, err)

	mean1d, ok := tb.Col(LabelRollMean1D)
	require.True(t, ok)
	std1d, ok := tb.Col(LabelRollStd1D)
	require.True(t, ok)

	// lag_48 is NaN through index 47, so any 24-window touching those rows
	// must be NaN; the first complete window ends at index 48+24-1
	firstValid := Lag48 + RollWindow1D - 1
	for i := 0; i < firstValid; i++ {
		assert.True(t, math.IsNaN(mean1d[i]), "mean1d[%d]", i)
		assert.True(t, math.IsNaN(std1d[i]), "std1d[%d]", i)
	}
	require.True(t, n > firstValid)
	assert.False(t, math.IsNaN(mean1d[firstValid]))
	assert.False(t, math.IsNaN(std1d[firstValid]))

	// spot check the arithmetic mean over exactly 24 lag values
	i := firstValid
	var sum float64
	for j := i - RollWindow1D + 1; j <= i; j++ {
		sum += v[j-Lag48]
	}
	assert.InDelta(t, sum/float64(RollWindow1D), mean1d[i], 1e-9)
}

func TestTransformFlags(t *testing.T) {
	e := newEngineer(t)
	// covers Republic Day 2025-10-29
	start := time.Date(2025, 10, 28, 0, 0, 0, 0, time.UTC)
	obs := hourlySeries(t, start, make([]float64, 72))

	tb, err := e.Transform(obs, timeseries.Empty())
	require.NoError(t, err)

	isHoliday, ok := tb.Col(LabelIsHoliday)
	require.True(t, ok)
	for i := 0; i < 24; i++ {
		assert.Equal(t, 0.0, isHoliday[i])
		assert.Equal(t, 1.0, isHoliday[24+i])
		assert.Equal(t, 0.0, isHoliday[48+i])
	}

	// repeated transforms over the same index yield identical flags
	tb2, err := e.Transform(obs, timeseries.Empty())
	require.NoError(t, err)
	isHoliday2, _ := tb2.Col(LabelIsHoliday)
	assert.Equal(t, isHoliday, isHoliday2)
}

func TestTransformWeatherMerge(t *testing.T) {
	e := newEngineer(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	obs := hourlySeries(t, start, make([]float64, 4))

	// weather only covers hours 1 and 2
	weather := hourlySeries(t, start.Add(time.Hour), []float64{3.0, -2.0})

	tb, err := e.Transform(obs, weather)
	require.NoError(t, err)

	temp, ok := tb.Col(LabelForecastTemp)
	require.True(t, ok)
	assert.True(t, math.IsNaN(temp[0]))
	assert.Equal(t, 3.0, temp[1])
	assert.Equal(t, -2.0, temp[2])
	assert.True(t, math.IsNaN(temp[3]))

	tempSq, ok := tb.Col(LabelTempSquared)
	require.True(t, ok)
	assert.True(t, math.IsNaN(tempSq[0]))
	assert.Equal(t, 9.0, tempSq[1])
	assert.Equal(t, 4.0, tempSq[2])
}

func TestTransformCalendarColumns(t *testing.T) {
	e := newEngineer(t)
	// Sunday 2026-02-15
	start := time.Date(2026, 2, 15, 5, 0, 0, 0, time.UTC)
	obs := hourlySeries(t, start, []float64{0})

	tb, err := e.Transform(obs, timeseries.Empty())
	require.NoError(t, err)

	expected := map[string]float64{
		LabelHour:      5,
		LabelDayOfWeek: 6, // Monday=0 convention
		LabelDayOfYear: 46,
		LabelMonth:     2,
		LabelQuarter:   1,
		LabelYear:      2026,
	}
	for label, want := range expected {
		data, ok := tb.Col(label)
		require.True(t, ok, label)
		assert.Equal(t, want, data[0], label)
	}
}

func TestMatrixColumnOrder(t *testing.T) {
	e := newEngineer(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	obs := hourlySeries(t, start, make([]float64, 200))

	tb, err := e.Transform(obs, timeseries.Empty())
	require.NoError(t, err)

	x, err := tb.Matrix(Columns)
	require.NoError(t, err)
	m, n := x.Dims()
	assert.Equal(t, 200, m)
	assert.Equal(t, len(Columns), n)

	// column 0 of the matrix must be the hour column
	hour, _ := tb.Col(LabelHour)
	for i := 0; i < m; i++ {
		assert.Equal(t, hour[i], x.At(i, 0))
	}
}

func TestComplete(t *testing.T) {
	tb := NewTable([]time.Time{
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 1, 2, 0, 0, 0, time.UTC),
	})
	require.NoError(t, tb.Set("a", []float64{1, math.NaN(), 3}))
	require.NoError(t, tb.Set("b", []float64{4, 5, math.NaN()}))

	res, err := tb.Complete([]string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	a, _ := res.Col("a")
	b, _ := res.Col("b")
	assert.Equal(t, []float64{1}, a)
	assert.Equal(t, []float64{4}, b)

	_, err = tb.Complete([]string{"missing"})
	assert.ErrorIs(t, err, ErrUnknownLabel)
}
