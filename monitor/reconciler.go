package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/oyasar/loadcast/metrics"
	"github.com/oyasar/loadcast/pipeline"
	"github.com/oyasar/loadcast/timeseries"
)

// Result summarizes one reconcile run for a target day.
type Result struct {
	Saved       int
	Scored      int
	ModelMAE    float64
	OfficialMAE float64
	Alert       bool
}

// Reconciler fetches the actual consumption and the official estimate for a
// day, reruns the model prediction, and folds all three into the monitoring
// store before scoring both forecasts against the observed values.
type Reconciler struct {
	source    pipeline.DataSource
	inference *pipeline.Inference
	store     *Store
	loc       *time.Location
	recorder  metrics.Recorder
}

func NewReconciler(source pipeline.DataSource, inference *pipeline.Inference, store *Store, loc *time.Location, recorder metrics.Recorder) *Reconciler {
	if recorder == nil {
		recorder = metrics.NewNoopRecorder()
	}
	return &Reconciler{
		source:    source,
		inference: inference,
		store:     store,
		loc:       loc,
		recorder:  recorder,
	}
}

// Reconcile updates the monitoring store for the given day and computes the
// model and official mean absolute errors over the hours where all three
// values are present. Hours seen by only some sources are still stored; a day
// with no fully populated hour skips the metrics instead of failing.
func (r *Reconciler) Reconcile(ctx context.Context, targetDate time.Time) (*Result, error) {
	y, m, d := targetDate.In(r.loc).Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, r.loc)

	actual, err := r.source.FetchConsumption(ctx, day, day)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch actual consumption, %w", err)
	}
	official, err := r.source.FetchOfficialForecast(ctx, day, day)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch official forecast, %w", err)
	}
	preds, err := r.inference.PredictForDate(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("unable to rerun prediction, %w", err)
	}

	model := timeseries.Empty()
	for _, p := range preds {
		if err := model.Append(p.Time, p.Value); err != nil {
			return nil, fmt.Errorf("unexpected prediction ordering, %w", err)
		}
	}

	records := outerJoin(day, r.loc, actual, official, model)
	res := &Result{}
	for _, rec := range records {
		if err := r.store.Upsert(rec); err != nil {
			return nil, fmt.Errorf("unable to upsert record at %s, %w", rec.Date, err)
		}
		res.Saved++
	}
	slog.Info("monitoring records saved", "target_date", day.Format("2006-01-02"), "rows", res.Saved)

	stored, err := r.store.FullyPopulated(day)
	if err != nil {
		return nil, fmt.Errorf("unable to read back monitoring records, %w", err)
	}

	var modelPreds, officialPreds, actuals []float64
	for _, rec := range stored {
		modelPreds = append(modelPreds, *rec.ModelPrediction)
		officialPreds = append(officialPreds, *rec.OfficialForecast)
		actuals = append(actuals, *rec.ActualConsumption)
	}
	if len(actuals) == 0 {
		slog.Warn("skipping accuracy metrics",
			"target_date", day.Format("2006-01-02"), "reason", ErrInsufficientData)
		return res, nil
	}
	res.Scored = len(actuals)

	res.ModelMAE, err = pipeline.MAE(modelPreds, actuals)
	if err != nil {
		return nil, err
	}
	res.OfficialMAE, err = pipeline.MAE(officialPreds, actuals)
	if err != nil {
		return nil, err
	}

	if res.OfficialMAE > 0 && res.ModelMAE > 2*res.OfficialMAE {
		res.Alert = true
		r.recorder.RecordAlert()
		slog.Warn("model accuracy degraded",
			"target_date", day.Format("2006-01-02"),
			"model_mae", res.ModelMAE, "official_mae", res.OfficialMAE)
	} else {
		slog.Info("accuracy metrics",
			"target_date", day.Format("2006-01-02"),
			"model_mae", res.ModelMAE, "official_mae", res.OfficialMAE, "hours", res.Scored)
	}
	return res, nil
}

// outerJoin builds one record per timestamp present in any of the three
// series for the target day. NaN values are treated as absent so they never
// clobber a populated column on upsert.
func outerJoin(day time.Time, loc *time.Location, actual, official, model *timeseries.Series) []Record {
	byHour := make(map[int64]*Record)
	at := func(ct time.Time) *Record {
		key := ct.Unix()
		rec, ok := byHour[key]
		if !ok {
			rec = &Record{Date: ct}
			byHour[key] = rec
		}
		return rec
	}

	collect := func(s *timeseries.Series, assign func(*Record, *float64)) {
		for i := range s.T {
			if math.IsNaN(s.V[i]) {
				continue
			}
			v := s.V[i]
			assign(at(s.T[i]), &v)
		}
	}
	collect(actual.SliceDate(day, loc), func(rec *Record, v *float64) { rec.ActualConsumption = v })
	collect(official.SliceDate(day, loc), func(rec *Record, v *float64) { rec.OfficialForecast = v })
	collect(model.SliceDate(day, loc), func(rec *Record, v *float64) { rec.ModelPrediction = v })

	records := make([]Record, 0, len(byHour))
	for _, rec := range byHour {
		records = append(records, *rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })
	return records
}
