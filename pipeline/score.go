package pipeline

import (
	"errors"
	"math"
)

var (
	ErrResLenMismatch = errors.New("predicted and actual have different lengths")
	ErrNoValidPoints  = errors.New("no valid points to score")
)

// MAE computes the mean absolute error over the pairs where both predicted
// and actual are present. Pairs with a NaN on either side are excluded from
// numerator and denominator.
func MAE(predicted, actual []float64) (float64, error) {
	if len(predicted) != len(actual) {
		return 0, ErrResLenMismatch
	}

	var sum float64
	var cnt int
	for i := 0; i < len(actual); i++ {
		if math.IsNaN(actual[i]) || math.IsNaN(predicted[i]) {
			continue
		}
		sum += math.Abs(actual[i] - predicted[i])
		cnt++
	}
	if cnt == 0 {
		return 0, ErrNoValidPoints
	}
	return sum / float64(cnt), nil
}

// RMSE computes the root mean squared error over the pairs where both sides
// are present.
func RMSE(predicted, actual []float64) (float64, error) {
	if len(predicted) != len(actual) {
		return 0, ErrResLenMismatch
	}

	var sum float64
	var cnt int
	for i := 0; i < len(actual); i++ {
		if math.IsNaN(actual[i]) || math.IsNaN(predicted[i]) {
			continue
		}
		sum += math.Pow(actual[i]-predicted[i], 2.0)
		cnt++
	}
	if cnt == 0 {
		return 0, ErrNoValidPoints
	}
	return math.Sqrt(sum / float64(cnt)), nil
}
