// Package feature engineers the model input table for day-ahead load
// forecasting: calendar fields, holiday and religious-period flags,
// consumption lags, rolling statistics over the 48h lag, and weather terms.
package feature

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrLabelExists       = errors.New("label already exists in table")
	ErrUnknownLabel      = errors.New("unknown column label")
	ErrMismatchedDataLen = errors.New("input data has different length than time index")
)

// Column labels of the engineered table. Columns is the canonical ordered
// feature list shared by the training and inference pipelines; both sides
// must extract exactly this set in this order at the model boundary.
const (
	LabelHour         = "hour"
	LabelDayOfWeek    = "dayofweek"
	LabelDayOfYear    = "dayofyear"
	LabelMonth        = "month"
	LabelQuarter      = "quarter"
	LabelYear         = "year"
	LabelIsHoliday    = "is_holiday"
	LabelIsRamadan    = "is_ramadan"
	LabelIsKurban     = "is_kurban"
	LabelForecastTemp = "forecast_temp"
	LabelTempSquared  = "temp_squared"
	LabelLag48        = "lag_48"
	LabelLag72        = "lag_72"
	LabelLag168       = "lag_168"
	LabelRollMean1D   = "roll_mean_1d"
	LabelRollStd1D    = "roll_std_1d"
	LabelRollMean1W   = "roll_mean_1w"
	LabelRollStd1W    = "roll_std_1w"

	LabelConsumption = "consumption"
)

var Columns = []string{
	LabelHour,
	LabelDayOfWeek,
	LabelDayOfYear,
	LabelMonth,
	LabelQuarter,
	LabelYear,
	LabelIsHoliday,
	LabelIsRamadan,
	LabelIsKurban,
	LabelForecastTemp,
	LabelTempSquared,
	LabelLag48,
	LabelLag72,
	LabelLag168,
	LabelRollMean1D,
	LabelRollStd1D,
	LabelRollMean1W,
	LabelRollStd1W,
}

// Table is a column store keyed by label over a shared time index. Columns
// keep their insertion order. A NaN cell marks an absent value.
type Table struct {
	T []time.Time

	order []string
	cols  map[string][]float64
}

// NewTable creates an empty table over the given time index.
func NewTable(t []time.Time) *Table {
	tSeries := make([]time.Time, len(t))
	copy(tSeries, t)
	return &Table{
		T:    tSeries,
		cols: make(map[string][]float64),
	}
}

// Len returns the number of rows.
func (tb *Table) Len() int {
	return len(tb.T)
}

// Labels returns the column labels in insertion order.
func (tb *Table) Labels() []string {
	labels := make([]string, len(tb.order))
	copy(labels, tb.order)
	return labels
}

// Set adds a column to the table. The data length must match the time index
// and the label must not already exist.
func (tb *Table) Set(label string, data []float64) error {
	if len(data) != len(tb.T) {
		return fmt.Errorf("column %q has length %d but index has %d, %w",
			label, len(data), len(tb.T), ErrMismatchedDataLen)
	}
	if _, ok := tb.cols[label]; ok {
		return fmt.Errorf("column %q, %w", label, ErrLabelExists)
	}
	tb.order = append(tb.order, label)
	tb.cols[label] = data
	return nil
}

// Col returns the column data for a label along with whether it exists.
func (tb *Table) Col(label string) ([]float64, bool) {
	data, ok := tb.cols[label]
	return data, ok
}

// Matrix returns the design matrix for the requested labels in the given
// order with one row per time point. NaN cells are preserved.
func (tb *Table) Matrix(labels []string) (*mat.Dense, error) {
	m := len(tb.T)
	n := len(labels)
	if m == 0 || n == 0 {
		return nil, nil
	}

	obs := make([]float64, m*n)
	for featNum, label := range labels {
		data, ok := tb.cols[label]
		if !ok {
			return nil, fmt.Errorf("column %q, %w", label, ErrUnknownLabel)
		}
		for i := 0; i < m; i++ {
			obs[n*i+featNum] = data[i]
		}
	}
	return mat.NewDense(m, n, obs), nil
}

// Complete returns a new table containing only the rows where every
// requested label has a non-NaN value. Column order is preserved and all
// columns are carried over.
func (tb *Table) Complete(labels []string) (*Table, error) {
	keep := make([]int, 0, len(tb.T))
	for i := range tb.T {
		ok := true
		for _, label := range labels {
			data, exists := tb.cols[label]
			if !exists {
				return nil, fmt.Errorf("column %q, %w", label, ErrUnknownLabel)
			}
			if math.IsNaN(data[i]) {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, i)
		}
	}

	t := make([]time.Time, 0, len(keep))
	for _, i := range keep {
		t = append(t, tb.T[i])
	}
	res := NewTable(t)
	for _, label := range tb.order {
		src := tb.cols[label]
		data := make([]float64, 0, len(keep))
		for _, i := range keep {
			data = append(data, src[i])
		}
		if err := res.Set(label, data); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// FilterDate returns a new table with only the rows whose calendar date in
// loc equals the date of day.
func (tb *Table) FilterDate(day time.Time, loc *time.Location) (*Table, error) {
	y, m, d := day.In(loc).Date()
	keep := make([]int, 0, 24)
	for i := range tb.T {
		py, pm, pd := tb.T[i].In(loc).Date()
		if py == y && pm == m && pd == d {
			keep = append(keep, i)
		}
	}

	t := make([]time.Time, 0, len(keep))
	for _, i := range keep {
		t = append(t, tb.T[i])
	}
	res := NewTable(t)
	for _, label := range tb.order {
		src := tb.cols[label]
		data := make([]float64, 0, len(keep))
		for _, i := range keep {
			data = append(data, src[i])
		}
		if err := res.Set(label, data); err != nil {
			return nil, err
		}
	}
	return res, nil
}
