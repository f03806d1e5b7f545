package feature

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/oyasar/loadcast/calendar"
	"github.com/oyasar/loadcast/timeseries"
)

// Lag offsets and rolling windows in hours. Lags are positional look-backs,
// so the observation index must be gapless for them to be calendar-correct.
// Callers reindex the series onto a complete hourly grid first.
const (
	Lag48  = 48
	Lag72  = 72
	Lag168 = 168

	RollWindow1D = 24
	RollWindow1W = 168
)

// Engineer derives the feature table from raw observations. It performs no
// I/O and holds no mutable state beyond the calendar's lazy holiday cache.
type Engineer struct {
	cal *calendar.Calendar
	loc *time.Location
}

// NewEngineer creates an Engineer resolving calendar fields in loc.
func NewEngineer(cal *calendar.Calendar, loc *time.Location) *Engineer {
	return &Engineer{cal: cal, loc: loc}
}

// Transform derives the full feature table from an hourly observation series
// and a weather series. The output has exactly one row per observation; no
// rows are dropped here. Weather is left-merged by exact timestamp, so hours
// without a matching weather point get a NaN forecast temperature.
func (e *Engineer) Transform(obs, weather *timeseries.Series) (*Table, error) {
	tb := NewTable(obs.T)

	if err := tb.Set(LabelConsumption, append([]float64(nil), obs.V...)); err != nil {
		return nil, err
	}

	if err := e.setCalendarColumns(tb); err != nil {
		return nil, err
	}
	if err := e.setFlagColumns(tb); err != nil {
		return nil, err
	}

	lag48 := shift(obs.V, Lag48)
	lag72 := shift(obs.V, Lag72)
	lag168 := shift(obs.V, Lag168)
	if err := tb.Set(LabelLag48, lag48); err != nil {
		return nil, err
	}
	if err := tb.Set(LabelLag72, lag72); err != nil {
		return nil, err
	}
	if err := tb.Set(LabelLag168, lag168); err != nil {
		return nil, err
	}

	mean1d, std1d := rolling(lag48, RollWindow1D)
	mean1w, std1w := rolling(lag48, RollWindow1W)
	if err := tb.Set(LabelRollMean1D, mean1d); err != nil {
		return nil, err
	}
	if err := tb.Set(LabelRollStd1D, std1d); err != nil {
		return nil, err
	}
	if err := tb.Set(LabelRollMean1W, mean1w); err != nil {
		return nil, err
	}
	if err := tb.Set(LabelRollStd1W, std1w); err != nil {
		return nil, err
	}

	temp := mergeWeather(obs.T, weather)
	if err := tb.Set(LabelForecastTemp, temp); err != nil {
		return nil, err
	}

	tempSq := make([]float64, len(temp))
	for i, v := range temp {
		tempSq[i] = v * v
	}
	if err := tb.Set(LabelTempSquared, tempSq); err != nil {
		return nil, err
	}

	return tb, nil
}

func (e *Engineer) setCalendarColumns(tb *Table) error {
	n := tb.Len()
	hour := make([]float64, n)
	dayOfWeek := make([]float64, n)
	dayOfYear := make([]float64, n)
	month := make([]float64, n)
	quarter := make([]float64, n)
	year := make([]float64, n)

	for i, pnt := range tb.T {
		pnt = pnt.In(e.loc)
		hour[i] = float64(pnt.Hour())
		// Monday is 0 to match the upstream series convention
		dayOfWeek[i] = float64((int(pnt.Weekday()) + 6) % 7)
		dayOfYear[i] = float64(pnt.YearDay())
		month[i] = float64(pnt.Month())
		quarter[i] = float64((int(pnt.Month())-1)/3 + 1)
		year[i] = float64(pnt.Year())
	}

	cols := []struct {
		label string
		data  []float64
	}{
		{LabelHour, hour},
		{LabelDayOfWeek, dayOfWeek},
		{LabelDayOfYear, dayOfYear},
		{LabelMonth, month},
		{LabelQuarter, quarter},
		{LabelYear, year},
	}
	for _, col := range cols {
		if err := tb.Set(col.label, col.data); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engineer) setFlagColumns(tb *Table) error {
	n := tb.Len()
	isHoliday := make([]float64, n)
	isRamadan := make([]float64, n)
	isKurban := make([]float64, n)

	for i, pnt := range tb.T {
		if e.cal.IsHoliday(pnt) {
			isHoliday[i] = 1.0
		}
		if e.cal.IsRamadan(pnt) {
			isRamadan[i] = 1.0
		}
		if e.cal.IsKurban(pnt) {
			isKurban[i] = 1.0
		}
	}

	if err := tb.Set(LabelIsHoliday, isHoliday); err != nil {
		return err
	}
	if err := tb.Set(LabelIsRamadan, isRamadan); err != nil {
		return err
	}
	return tb.Set(LabelIsKurban, isKurban)
}

// shift returns the series moved forward by lag positions. The first lag
// entries are NaN since the index does not extend that far back.
func shift(v []float64, lag int) []float64 {
	res := make([]float64, len(v))
	for i := range res {
		if i < lag {
			res[i] = math.NaN()
		} else {
			res[i] = v[i-lag]
		}
	}
	return res
}

// rolling computes the trailing mean and sample standard deviation over
// windows of exactly window points including the current one. Any NaN inside
// the window, or fewer than window available points, yields NaN for both.
func rolling(v []float64, window int) (mean, std []float64) {
	mean = make([]float64, len(v))
	std = make([]float64, len(v))
	for i := range v {
		if i < window-1 {
			mean[i] = math.NaN()
			std[i] = math.NaN()
			continue
		}
		win := v[i-window+1 : i+1]
		complete := true
		for _, w := range win {
			if math.IsNaN(w) {
				complete = false
				break
			}
		}
		if !complete {
			mean[i] = math.NaN()
			std[i] = math.NaN()
			continue
		}
		mean[i] = stat.Mean(win, nil)
		std[i] = stat.StdDev(win, nil)
	}
	return mean, std
}

func mergeWeather(t []time.Time, weather *timeseries.Series) []float64 {
	byHour := make(map[int64]float64, weather.Len())
	for i := 0; i < weather.Len(); i++ {
		byHour[weather.T[i].Unix()] = weather.V[i]
	}

	res := make([]float64, len(t))
	for i := range t {
		v, ok := byHour[t[i].Unix()]
		if !ok {
			v = math.NaN()
		}
		res[i] = v
	}
	return res
}
