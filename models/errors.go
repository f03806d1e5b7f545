package models

import (
	"errors"
)

var (
	ErrNoOptions          = errors.New("no initialized model options")
	ErrNoTrainingMatrix   = errors.New("no training matrix")
	ErrNoTargetMatrix     = errors.New("no target matrix")
	ErrNoDesignMatrix     = errors.New("no design matrix for inference")
	ErrTargetLenMismatch  = errors.New("target length does not match training rows")
	ErrNotFitted          = errors.New("model has not been fitted")
	ErrFeatureLenMismatch = errors.New("number of features does not match the fitted model")
	ErrNoTrainingRows     = errors.New("no training rows")
)
