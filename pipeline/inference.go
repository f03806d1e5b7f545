// Package pipeline orchestrates the gateway, feature engineer, and
// regression model into the day-ahead inference and bulk training flows.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oyasar/loadcast/feature"
	"github.com/oyasar/loadcast/metrics"
	"github.com/oyasar/loadcast/models"
	"github.com/oyasar/loadcast/timeseries"
)

var (
	ErrNoHistoricalData = errors.New("no historical consumption data")
	ErrModelNotLoaded   = errors.New("no model loaded")
)

// HistoryDays is the look-back needed so the longest lag (168h) and rolling
// window (168h over the 48h lag) are fully populated for every target hour.
const HistoryDays = 10

// DataSource is the fetch contract the pipelines require from the gateway.
type DataSource interface {
	FetchConsumption(ctx context.Context, start, end time.Time) (*timeseries.Series, error)
	FetchOfficialForecast(ctx context.Context, start, end time.Time) (*timeseries.Series, error)
	FetchWeather(ctx context.Context, start, end time.Time) (*timeseries.Series, error)
}

// Prediction is one hourly point prediction for the target day.
type Prediction struct {
	Time  time.Time
	Value float64
}

// Inference produces hourly point predictions for a single target date.
type Inference struct {
	source   DataSource
	engineer *feature.Engineer
	reg      models.Regressor
	loc      *time.Location
	recorder metrics.Recorder
}

// NewInference creates an Inference pipeline. reg may be nil when no model
// artifact is available; PredictForDate then fails with ErrModelNotLoaded.
func NewInference(source DataSource, engineer *feature.Engineer, reg models.Regressor, loc *time.Location, recorder metrics.Recorder) *Inference {
	if recorder == nil {
		recorder = metrics.NewNoopRecorder()
	}
	return &Inference{
		source:   source,
		engineer: engineer,
		reg:      reg,
		loc:      loc,
		recorder: recorder,
	}
}

// PredictForDate returns one prediction per hour of the target date in
// ascending order. Hours of the target date that survive feature extraction
// determine the row count; a DST-short day yields fewer than 24 rows and is
// never padded.
func (p *Inference) PredictForDate(ctx context.Context, targetDate time.Time) ([]Prediction, error) {
	if p.reg == nil {
		return nil, ErrModelNotLoaded
	}

	y, m, d := targetDate.In(p.loc).Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, p.loc)
	historyStart := day.AddDate(0, 0, -HistoryDays)

	history, err := p.source.FetchConsumption(ctx, historyStart, day)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch consumption history, %w", err)
	}
	if history.Len() == 0 {
		return nil, fmt.Errorf("window [%s, %s], %w",
			historyStart.Format("2006-01-02"), day.Format("2006-01-02"), ErrNoHistoricalData)
	}

	// real observations win over target-day placeholders on overlap
	full := history.MergePrefer(timeseries.Placeholders(day, p.loc))
	full = full.Reindex()

	// the target day's own temperature comes from the provider's forward
	// window, so the query deliberately stops one day early
	weather, err := p.source.FetchWeather(ctx, historyStart, day.AddDate(0, 0, -1))
	if err != nil {
		return nil, fmt.Errorf("unable to fetch weather, %w", err)
	}

	tb, err := p.engineer.Transform(full, weather)
	if err != nil {
		return nil, fmt.Errorf("unable to engineer features, %w", err)
	}

	target, err := tb.FilterDate(day, p.loc)
	if err != nil {
		return nil, err
	}
	if target.Len() == 0 {
		slog.Warn("no target rows after filtering", "target_date", day.Format("2006-01-02"))
		return []Prediction{}, nil
	}

	x, err := target.Matrix(feature.Columns)
	if err != nil {
		return nil, err
	}
	preds, err := p.reg.Predict(x)
	if err != nil {
		return nil, fmt.Errorf("unable to predict, %w", err)
	}

	res := make([]Prediction, 0, len(preds))
	for i, v := range preds {
		res = append(res, Prediction{Time: target.T[i], Value: v})
	}

	p.recorder.RecordPredictionRun()
	slog.Info("prediction complete", "target_date", day.Format("2006-01-02"), "rows", len(res))
	return res, nil
}
