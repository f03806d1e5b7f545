// Command loadcast trains, runs, and monitors the day-ahead hourly
// electricity consumption forecast for the Turkish grid territory.
//
// Usage:
//
//	loadcast train     [-config path] [-metrics-addr addr]
//	loadcast predict   [-config path] [-date YYYY-MM-DD] [-metrics-addr addr]
//	loadcast reconcile [-config path] [-date YYYY-MM-DD] [-chart path] [-metrics-addr addr]
//
// predict defaults to tomorrow. reconcile defaults to two days ago, by when
// the realtime consumption figures for that day have settled.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oyasar/loadcast/calendar"
	"github.com/oyasar/loadcast/config"
	"github.com/oyasar/loadcast/feature"
	"github.com/oyasar/loadcast/gateway"
	"github.com/oyasar/loadcast/metrics"
	"github.com/oyasar/loadcast/models"
	"github.com/oyasar/loadcast/monitor"
	"github.com/oyasar/loadcast/pipeline"
)

const dateFormat = "2006-01-02"

type app struct {
	cfg      *config.Config
	loc      *time.Location
	engineer *feature.Engineer
	gw       *gateway.Client
	recorder metrics.Recorder
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: loadcast <train|predict|reconcile> [flags]")
		os.Exit(2)
	}

	cmd := os.Args[1]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config file, defaults apply when empty")
	dateStr := fs.String("date", "", "target date as YYYY-MM-DD")
	chartPath := fs.String("chart", "", "write a comparison chart HTML to this path after reconciling")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address while running")
	fs.Parse(os.Args[2:])

	if err := run(cmd, *configPath, *dateStr, *chartPath, *metricsAddr); err != nil {
		slog.Error("command failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}

func run(cmd, configPath, dateStr, chartPath, metricsAddr string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	hcal, err := calendar.New(loc)
	if err != nil {
		return err
	}

	var recorder metrics.Recorder = metrics.NewNoopRecorder()
	if metricsAddr != "" {
		prom := metrics.NewPrometheusRecorder()
		recorder = prom
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(prom.Registry(), promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				slog.Error("metrics server stopped", "error", err)
			}
		}()
	}

	gw, err := gateway.New(&gateway.Options{
		BaseURL:    cfg.Provider.BaseURL,
		AuthURL:    cfg.Provider.AuthURL,
		Username:   cfg.Provider.Username,
		Password:   cfg.Provider.Password,
		WeatherURL: cfg.Weather.BaseURL,
		Latitude:   cfg.Weather.Latitude,
		Longitude:  cfg.Weather.Longitude,
		Location:   loc,
		Recorder:   recorder,
	})
	if err != nil {
		return err
	}

	a := &app{
		cfg:      cfg,
		loc:      loc,
		engineer: feature.NewEngineer(hcal, loc),
		gw:       gw,
		recorder: recorder,
	}

	ctx := context.Background()
	switch cmd {
	case "train":
		return a.train(ctx)
	case "predict":
		return a.predict(ctx, dateStr)
	case "reconcile":
		return a.reconcile(ctx, dateStr, chartPath)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) train(ctx context.Context) error {
	start, err := time.ParseInLocation(dateFormat, a.cfg.Model.TrainStart, a.loc)
	if err != nil {
		return fmt.Errorf("invalid trainStart, %w", err)
	}
	end, err := time.ParseInLocation(dateFormat, a.cfg.Model.TrainEnd, a.loc)
	if err != nil {
		return fmt.Errorf("invalid trainEnd, %w", err)
	}
	cutoff, err := time.ParseInLocation(dateFormat, a.cfg.Model.Cutoff, a.loc)
	if err != nil {
		return fmt.Errorf("invalid cutoff, %w", err)
	}

	trainer := pipeline.NewTrainer(a.gw, a.engineer, &pipeline.TrainerOptions{
		Start:     start,
		End:       end,
		Cutoff:    cutoff,
		ModelPath: a.cfg.Model.Path,
	})
	report, err := trainer.Train(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("trained on %d of %d rows, holdout mae %.1f rmse %.1f, saved %s\n",
		report.TrainRows, report.Rows, report.HoldoutMAE, report.HoldoutRMSE, report.ModelPath)
	return nil
}

func (a *app) predict(ctx context.Context, dateStr string) error {
	day, err := a.targetDate(dateStr, 1)
	if err != nil {
		return err
	}
	inf, err := a.inference()
	if err != nil {
		return err
	}

	preds, err := inf.PredictForDate(ctx, day)
	if err != nil {
		return err
	}
	for _, p := range preds {
		fmt.Printf("%s\t%.1f\n", p.Time.Format("2006-01-02T15:04"), p.Value)
	}
	return nil
}

func (a *app) reconcile(ctx context.Context, dateStr, chartPath string) error {
	day, err := a.targetDate(dateStr, -2)
	if err != nil {
		return err
	}
	inf, err := a.inference()
	if err != nil {
		return err
	}
	store, err := monitor.Open(a.cfg.Database.Driver, a.cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer store.Close()

	rec := monitor.NewReconciler(a.gw, inf, store, a.loc, a.recorder)
	res, err := rec.Reconcile(ctx, day)
	if err != nil {
		return err
	}

	fmt.Printf("%s: saved %d rows, scored %d, model mae %.1f, official mae %.1f, alert %t\n",
		day.Format(dateFormat), res.Saved, res.Scored, res.ModelMAE, res.OfficialMAE, res.Alert)

	if chartPath != "" {
		records, err := store.Range(day, day.AddDate(0, 0, 1).Add(-time.Hour))
		if err != nil {
			return err
		}
		if err := monitor.WriteComparisonChart(chartPath, day.Format(dateFormat), records); err != nil {
			return err
		}
		slog.Info("comparison chart written", "path", chartPath)
	}
	return nil
}

func (a *app) inference() (*pipeline.Inference, error) {
	reg, err := models.Load(a.cfg.Model.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to load model, run train first, %w", err)
	}
	return pipeline.NewInference(a.gw, a.engineer, reg, a.loc, a.recorder), nil
}

// targetDate resolves the -date flag, falling back to today shifted by
// defaultOffset days.
func (a *app) targetDate(dateStr string, defaultOffset int) (time.Time, error) {
	if dateStr != "" {
		day, err := time.ParseInLocation(dateFormat, dateStr, a.loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid -date, %w", err)
		}
		return day, nil
	}
	y, m, d := time.Now().In(a.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, a.loc).AddDate(0, 0, defaultOffset), nil
}
