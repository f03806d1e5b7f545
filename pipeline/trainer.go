package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/oyasar/loadcast/feature"
	"github.com/oyasar/loadcast/models"
)

// TrainerOptions configures a bulk training run.
type TrainerOptions struct {
	Start  time.Time
	End    time.Time
	Cutoff time.Time

	ModelPath string
	GBT       *models.GBTOptions
}

// TrainReport summarizes a completed training run.
type TrainReport struct {
	Rows        int
	TrainRows   int
	HoldoutRows int
	HoldoutMAE  float64
	HoldoutRMSE float64
	ModelPath   string
}

// Trainer builds the multi-year feature table, fits the regression
// ensemble, and persists the artifact.
type Trainer struct {
	source   DataSource
	engineer *feature.Engineer
	opt      *TrainerOptions
}

func NewTrainer(source DataSource, engineer *feature.Engineer, opt *TrainerOptions) *Trainer {
	return &Trainer{
		source:   source,
		engineer: engineer,
		opt:      opt,
	}
}

// Train fetches the full history, engineers features, drops every row with
// any absent feature or target value, fits on the rows before the cutoff,
// scores the holdout, and saves the model artifact. Training is the only
// place incompleteness is resolved by deletion rather than propagation.
func (t *Trainer) Train(ctx context.Context) (*TrainReport, error) {
	cons, err := t.source.FetchConsumption(ctx, t.opt.Start, t.opt.End)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch consumption history, %w", err)
	}
	if cons.Len() == 0 {
		return nil, fmt.Errorf("window [%s, %s], %w",
			t.opt.Start.Format("2006-01-02"), t.opt.End.Format("2006-01-02"), ErrNoHistoricalData)
	}

	weather, err := t.source.FetchWeather(ctx, cons.StartTime(), cons.EndTime())
	if err != nil {
		return nil, fmt.Errorf("unable to fetch weather, %w", err)
	}

	full := cons.Reindex()
	tb, err := t.engineer.Transform(full, weather)
	if err != nil {
		return nil, fmt.Errorf("unable to engineer features, %w", err)
	}

	needed := append(append([]string(nil), feature.Columns...), feature.LabelConsumption)
	complete, err := tb.Complete(needed)
	if err != nil {
		return nil, err
	}
	if complete.Len() == 0 {
		return nil, fmt.Errorf("no complete rows after dropping absent values, %w", ErrNoHistoricalData)
	}

	x, err := complete.Matrix(feature.Columns)
	if err != nil {
		return nil, err
	}
	target, _ := complete.Col(feature.LabelConsumption)
	yData := mat.NewDense(complete.Len(), 1, append([]float64(nil), target...))

	// rows are time ordered, so the cutoff is a single split index
	split := complete.Len()
	for i, pnt := range complete.T {
		if !pnt.Before(t.opt.Cutoff) {
			split = i
			break
		}
	}
	if split == 0 {
		return nil, fmt.Errorf("no rows before training cutoff %s, %w",
			t.opt.Cutoff.Format("2006-01-02"), ErrNoHistoricalData)
	}

	m, n := x.Dims()
	xTrain := x.Slice(0, split, 0, n)
	yTrain := yData.Slice(0, split, 0, 1)

	g := models.NewGBT(t.opt.GBT)
	slog.Info("training model", "rows", split, "features", n)
	if err := g.Fit(xTrain, yTrain); err != nil {
		return nil, fmt.Errorf("unable to fit model, %w", err)
	}

	report := &TrainReport{
		Rows:      complete.Len(),
		TrainRows: split,
		ModelPath: t.opt.ModelPath,
	}

	if split < m {
		xHold := x.Slice(split, m, 0, n)
		holdPreds, err := g.Predict(xHold)
		if err != nil {
			return nil, fmt.Errorf("unable to score holdout, %w", err)
		}
		holdActual := target[split:]

		mae, err := MAE(holdPreds, holdActual)
		if err != nil {
			return nil, err
		}
		rmse, err := RMSE(holdPreds, holdActual)
		if err != nil {
			return nil, err
		}
		report.HoldoutRows = m - split
		report.HoldoutMAE = mae
		report.HoldoutRMSE = rmse
		slog.Info("holdout scores", "mae", mae, "rmse", rmse, "rows", report.HoldoutRows)
	} else {
		slog.Warn("no holdout rows after cutoff, skipping holdout scores")
	}

	if err := g.Save(t.opt.ModelPath); err != nil {
		return nil, fmt.Errorf("unable to save model artifact, %w", err)
	}
	slog.Info("model saved", "path", t.opt.ModelPath)
	return report, nil
}
