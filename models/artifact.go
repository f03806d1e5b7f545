package models

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
)

// artifact is the serializable form of a fitted GBT ensemble.
type artifact struct {
	Options     *GBTOptions `json:"options"`
	BaseScore   float64     `json:"base_score"`
	NumFeatures int         `json:"num_features"`
	Trees       []*tree     `json:"trees"`
}

// Save writes the fitted ensemble to path as a JSON artifact.
func (g *GBT) Save(path string) error {
	if len(g.trees) == 0 {
		return ErrNotFitted
	}

	data, err := json.Marshal(artifact{
		Options:     g.opt,
		BaseScore:   g.baseScore,
		NumFeatures: g.numFeat,
		Trees:       g.trees,
	})
	if err != nil {
		return fmt.Errorf("unable to encode model artifact, %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("unable to write model artifact to %s, %w", path, err)
	}
	return nil
}

// Load reads a previously saved ensemble artifact from path.
func Load(path string) (*GBT, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read model artifact from %s, %w", path, err)
	}

	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("unable to decode model artifact, %w", err)
	}
	if a.Options == nil {
		return nil, ErrNoOptions
	}

	return &GBT{
		opt:       a.Options,
		baseScore: a.BaseScore,
		numFeat:   a.NumFeatures,
		trees:     a.Trees,
	}, nil
}
