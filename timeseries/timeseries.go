// Package timeseries provides the hourly series container shared by the
// fetch, feature, and pipeline layers. Values are float64 with NaN marking
// an absent measurement, e.g. a placeholder hour that has not been observed
// yet or a gap left by a failed upstream fetch.
package timeseries

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

var (
	ErrLenMismatch   = errors.New("time index has a different length than values")
	ErrNonMonotonic  = errors.New("time index is not strictly increasing")
	ErrNotHourAligned = errors.New("time index is not hour aligned")
)

// Series represents an hourly time series storing a slice of time points and
// values. Both must be of the same length. A NaN value marks an absent
// observation at that hour.
type Series struct {
	T []time.Time
	V []float64
}

// New returns a Series after validating that the index is hour aligned,
// strictly increasing, and matches the value slice in length. The inputs are
// copied.
func New(t []time.Time, v []float64) (*Series, error) {
	if len(t) != len(v) {
		return nil, fmt.Errorf(
			"time index has length of %d, but values has a length of %d, %w",
			len(t), len(v), ErrLenMismatch,
		)
	}

	var lastT time.Time
	for i := 0; i < len(t); i++ {
		if t[i].Truncate(time.Hour) != t[i] {
			return nil, fmt.Errorf("non hour-aligned point at %d, %w", i, ErrNotHourAligned)
		}
		if i > 0 && !t[i].After(lastT) {
			return nil, fmt.Errorf("non-monotonic at %d, %w", i, ErrNonMonotonic)
		}
		lastT = t[i]
	}

	tSeries := make([]time.Time, len(t))
	vSeries := make([]float64, len(v))
	copy(tSeries, t)
	copy(vSeries, v)
	return &Series{T: tSeries, V: vSeries}, nil
}

// Empty returns a zero-length series.
func Empty() *Series {
	return &Series{}
}

// Len returns the number of points in the series.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.T)
}

// Copy returns a deep copy of the series.
func (s *Series) Copy() *Series {
	tSeries := make([]time.Time, len(s.T))
	vSeries := make([]float64, len(s.V))
	copy(tSeries, s.T)
	copy(vSeries, s.V)
	return &Series{T: tSeries, V: vSeries}
}

// StartTime returns the first time point or the zero time for an empty series.
func (s *Series) StartTime() time.Time {
	var startTime time.Time
	if s.Len() < 1 {
		return startTime
	}
	return s.T[0]
}

// EndTime returns the last time point or the zero time for an empty series.
func (s *Series) EndTime() time.Time {
	var lastTime time.Time
	if s.Len() < 1 {
		return lastTime
	}
	return s.T[len(s.T)-1]
}

// Append adds a point to the end of the series. The point must be after the
// current last point to preserve the ordering invariant.
func (s *Series) Append(t time.Time, v float64) error {
	if t.Truncate(time.Hour) != t {
		return fmt.Errorf("point at %s, %w", t, ErrNotHourAligned)
	}
	if n := s.Len(); n > 0 && !t.After(s.T[n-1]) {
		return fmt.Errorf("point at %s not after %s, %w", t, s.T[n-1], ErrNonMonotonic)
	}
	s.T = append(s.T, t)
	s.V = append(s.V, v)
	return nil
}

// point pairs a time with its value for sorting during merges.
type point struct {
	t time.Time
	v float64
}

// MergePrefer concatenates s with other, deduplicates by timestamp, and
// returns a new strictly increasing series. When both sides carry the same
// hour the point from s wins unless it is NaN, so real observations are
// preferred over placeholders regardless of argument order.
func (s *Series) MergePrefer(other *Series) *Series {
	pts := make(map[int64]point, s.Len()+other.Len())
	for i := range other.T {
		pts[other.T[i].Unix()] = point{other.T[i], other.V[i]}
	}
	for i := range s.T {
		key := s.T[i].Unix()
		if prev, ok := pts[key]; ok && math.IsNaN(s.V[i]) && !math.IsNaN(prev.v) {
			continue
		}
		pts[key] = point{s.T[i], s.V[i]}
	}

	merged := make([]point, 0, len(pts))
	for _, p := range pts {
		merged = append(merged, p)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].t.Before(merged[j].t) })

	res := &Series{
		T: make([]time.Time, 0, len(merged)),
		V: make([]float64, 0, len(merged)),
	}
	for _, p := range merged {
		res.T = append(res.T, p.t)
		res.V = append(res.V, p.v)
	}
	return res
}

// Reindex expands the series onto a complete hourly grid from its first to
// its last point, inserting NaN for any missing hour. Lag and rolling
// computations use positional offsets, which are only calendar-correct on a
// gapless index, so callers reindex before engineering features.
func (s *Series) Reindex() *Series {
	if s.Len() == 0 {
		return Empty()
	}

	byHour := make(map[int64]float64, s.Len())
	for i := range s.T {
		byHour[s.T[i].Unix()] = s.V[i]
	}

	n := int(s.EndTime().Sub(s.StartTime())/time.Hour) + 1
	res := &Series{
		T: make([]time.Time, 0, n),
		V: make([]float64, 0, n),
	}
	for ct := s.StartTime(); !ct.After(s.EndTime()); ct = ct.Add(time.Hour) {
		res.T = append(res.T, ct)
		v, ok := byHour[ct.Unix()]
		if !ok {
			v = math.NaN()
		}
		res.V = append(res.V, v)
	}
	return res
}

// SliceDate returns the points whose calendar date in loc equals the date of
// day, preserving order.
func (s *Series) SliceDate(day time.Time, loc *time.Location) *Series {
	y, m, d := day.In(loc).Date()
	res := Empty()
	for i := range s.T {
		py, pm, pd := s.T[i].In(loc).Date()
		if py == y && pm == m && pd == d {
			res.T = append(res.T, s.T[i])
			res.V = append(res.V, s.V[i])
		}
	}
	return res
}

// Placeholders returns a series with one NaN point per hour of the calendar
// day of day in loc, starting at midnight.
func Placeholders(day time.Time, loc *time.Location) *Series {
	y, m, d := day.In(loc).Date()

	res := &Series{
		T: make([]time.Time, 0, 24),
		V: make([]float64, 0, 24),
	}
	// iterate by wall-clock hour so DST-short days produce fewer points
	// rather than spilling into the next date
	for h := 0; h < 24; h++ {
		ct := time.Date(y, m, d, h, 0, 0, 0, loc)
		py, pm, pd := ct.Date()
		if py != y || pm != m || pd != d {
			continue
		}
		if n := res.Len(); n > 0 && !ct.After(res.T[n-1]) {
			continue
		}
		res.T = append(res.T, ct)
		res.V = append(res.V, math.NaN())
	}
	return res
}
