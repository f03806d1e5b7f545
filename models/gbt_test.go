package models

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func toyDataset(n int) (*mat.Dense, *mat.Dense) {
	x := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a := float64(i % 24)
		b := float64(i % 7)
		x.Set(i, 0, a)
		x.Set(i, 1, b)
		y.Set(i, 0, 10*a-3*b+5)
	}
	return x, y
}

func testOptions() *GBTOptions {
	return &GBTOptions{
		NumRounds:      200,
		LearningRate:   0.1,
		MaxDepth:       4,
		MinSamplesLeaf: 1,
		SubsampleRatio: 1,
		Seed:           7,
	}
}

func TestGBTFitPredict(t *testing.T) {
	x, y := toyDataset(500)

	g := NewGBT(testOptions())
	require.NoError(t, g.Fit(x, y))
	require.Equal(t, 200, g.NumTrees())

	res, err := g.Predict(x)
	require.NoError(t, err)
	require.Len(t, res, 500)

	var worst float64
	for i := 0; i < 500; i++ {
		diff := math.Abs(res[i] - y.At(i, 0))
		if diff > worst {
			worst = diff
		}
	}
	// the toy target is a pure function of the two features so the fit
	// should be tight
	assert.Less(t, worst, 10.0)

	r2, err := g.Score(x, y)
	require.NoError(t, err)
	assert.Greater(t, r2, 0.99)
}

func TestGBTFitValidation(t *testing.T) {
	x, y := toyDataset(10)

	testData := map[string]struct {
		x   mat.Matrix
		y   mat.Matrix
		err error
	}{
		"nil training": {
			y:   y,
			err: ErrNoTrainingMatrix,
		},
		"nil target": {
			x:   x,
			err: ErrNoTargetMatrix,
		},
		"row mismatch": {
			x:   x,
			y:   mat.NewDense(3, 1, nil),
			err: ErrTargetLenMismatch,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			g := NewGBT(testOptions())
			require.ErrorIs(t, g.Fit(td.x, td.y), td.err)
		})
	}
}

func TestGBTPredictUnfitted(t *testing.T) {
	g := NewGBT(nil)
	_, err := g.Predict(mat.NewDense(1, 2, nil))
	assert.ErrorIs(t, err, ErrNotFitted)
}

func TestGBTPredictFeatureMismatch(t *testing.T) {
	x, y := toyDataset(100)
	g := NewGBT(testOptions())
	require.NoError(t, g.Fit(x, y))

	_, err := g.Predict(mat.NewDense(2, 5, nil))
	assert.ErrorIs(t, err, ErrFeatureLenMismatch)
}

func TestGBTMissingValues(t *testing.T) {
	// target depends only on feature 0; feature 1 carries NaN rows
	n := 300
	x := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		a := float64(i % 10)
		x.Set(i, 0, a)
		if i%3 == 0 {
			x.Set(i, 1, math.NaN())
		} else {
			x.Set(i, 1, float64(i%5))
		}
		y.Set(i, 0, 4*a)
	}

	g := NewGBT(testOptions())
	require.NoError(t, g.Fit(x, y))

	res, err := g.Predict(x)
	require.NoError(t, err)
	for i := range res {
		require.False(t, math.IsNaN(res[i]), "prediction %d is NaN", i)
	}

	r2, err := g.Score(x, y)
	require.NoError(t, err)
	assert.Greater(t, r2, 0.95)
}

func TestGBTSaveLoad(t *testing.T) {
	x, y := toyDataset(200)
	g := NewGBT(testOptions())
	require.NoError(t, g.Fit(x, y))

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, g.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	want, err := g.Predict(x)
	require.NoError(t, err)
	got, err := loaded.Predict(x)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestGBTSaveUnfitted(t *testing.T) {
	g := NewGBT(nil)
	assert.ErrorIs(t, g.Save(filepath.Join(t.TempDir(), "model.json")), ErrNotFitted)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
