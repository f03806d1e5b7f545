// Package models provides the trainable regression ensemble behind the
// load-forecast pipelines. The pipelines only depend on the Regressor
// contract so any implementation with the same fit/predict semantics can be
// substituted.
package models

import (
	"gonum.org/v1/gonum/mat"
)

// Regressor is the capability contract the pipelines require from a model.
type Regressor interface {
	Fit(x, y mat.Matrix) error
	Predict(x mat.Matrix) ([]float64, error)
	Score(x, y mat.Matrix) (float64, error)
}
