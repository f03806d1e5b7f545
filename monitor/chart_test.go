package monitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteComparisonChart(t *testing.T) {
	day := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	records := []Record{
		{Date: day, ActualConsumption: fptr(100), OfficialForecast: fptr(99), ModelPrediction: fptr(101)},
		{Date: day.Add(time.Hour), ActualConsumption: fptr(98), ModelPrediction: fptr(97)},
	}

	path := filepath.Join(t.TempDir(), "comparison.html")
	require.NoError(t, WriteComparisonChart(path, "2026-02-15", records))

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(out), "Actual")
	assert.Contains(t, string(out), "Official")
	assert.Contains(t, string(out), "Model")
}
