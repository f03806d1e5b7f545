package monitor

import (
	"fmt"
	"os"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// ComparisonChart generates an echart line chart from monitoring records
// plotting the actual consumption against the official and model forecasts.
// Absent fields render as gaps in their series.
func ComparisonChart(title string, records []Record) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(
			opts.Title{
				Title: title,
			},
		),
	)

	xAxis := make([]time.Time, 0, len(records))
	lineDataActual := make([]opts.LineData, 0, len(records))
	lineDataOfficial := make([]opts.LineData, 0, len(records))
	lineDataModel := make([]opts.LineData, 0, len(records))

	toPoint := func(v *float64) opts.LineData {
		if v == nil {
			return opts.LineData{Value: nil}
		}
		return opts.LineData{Value: *v}
	}
	for _, rec := range records {
		xAxis = append(xAxis, rec.Date)
		lineDataActual = append(lineDataActual, toPoint(rec.ActualConsumption))
		lineDataOfficial = append(lineDataOfficial, toPoint(rec.OfficialForecast))
		lineDataModel = append(lineDataModel, toPoint(rec.ModelPrediction))
	}

	line.SetXAxis(xAxis).
		AddSeries("Actual", lineDataActual).
		AddSeries("Official", lineDataOfficial).
		AddSeries("Model", lineDataModel)
	return line
}

// WriteComparisonChart renders the chart for the given records to an HTML
// file at path.
func WriteComparisonChart(path, title string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create chart file, %w", err)
	}
	defer f.Close()

	if err := ComparisonChart(title, records).Render(f); err != nil {
		return fmt.Errorf("unable to render chart, %w", err)
	}
	return nil
}
