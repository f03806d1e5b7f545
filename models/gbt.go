package models

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// GBTOptions configures the gradient-boosted tree ensemble. Defaults mirror
// the production training setup for hourly load forecasting.
type GBTOptions struct {
	NumRounds      int     `json:"num_rounds"`
	LearningRate   float64 `json:"learning_rate"`
	MaxDepth       int     `json:"max_depth"`
	MinSamplesLeaf int     `json:"min_samples_leaf"`
	SubsampleRatio float64 `json:"subsample_ratio"`
	Seed           uint64  `json:"seed"`
}

func NewDefaultGBTOptions() *GBTOptions {
	return &GBTOptions{
		NumRounds:      600,
		LearningRate:   0.03,
		MaxDepth:       6,
		MinSamplesLeaf: 20,
		SubsampleRatio: 0.8,
		Seed:           1,
	}
}

func (o *GBTOptions) validate() {
	if o.NumRounds < 1 {
		o.NumRounds = 1
	}
	if o.LearningRate <= 0 {
		o.LearningRate = 0.1
	}
	if o.MaxDepth < 1 {
		o.MaxDepth = 1
	}
	if o.MinSamplesLeaf < 1 {
		o.MinSamplesLeaf = 1
	}
	if o.SubsampleRatio <= 0 || o.SubsampleRatio > 1 {
		o.SubsampleRatio = 1
	}
}

// node is a single split or leaf inside a regression tree. Left and Right
// index into the owning tree's node slice; -1 marks a leaf. NaN feature
// values follow the learned default direction.
type node struct {
	Feature     int     `json:"feature"`
	Threshold   float64 `json:"threshold"`
	Left        int     `json:"left"`
	Right       int     `json:"right"`
	DefaultLeft bool    `json:"default_left"`
	Value       float64 `json:"value"`
}

type tree struct {
	Nodes []node `json:"nodes"`
}

func (t *tree) predict(row []float64) float64 {
	idx := 0
	for {
		nd := t.Nodes[idx]
		if nd.Left < 0 {
			return nd.Value
		}
		v := row[nd.Feature]
		switch {
		case math.IsNaN(v):
			if nd.DefaultLeft {
				idx = nd.Left
			} else {
				idx = nd.Right
			}
		case v < nd.Threshold:
			idx = nd.Left
		default:
			idx = nd.Right
		}
	}
}

// GBT is a gradient-boosted ensemble of regression trees minimizing squared
// error. Missing feature values are routed through learned default split
// directions, so inference rows may carry NaN features.
type GBT struct {
	opt *GBTOptions

	baseScore float64
	trees     []*tree
	numFeat   int
}

// NewGBT creates an unfitted ensemble. If no options are provided a default
// is used.
func NewGBT(opt *GBTOptions) *GBT {
	if opt == nil {
		opt = NewDefaultGBTOptions()
	}
	opt.validate()
	return &GBT{opt: opt}
}

// Fit trains the ensemble on the design matrix x against target y, which
// must be a single-column matrix with as many rows as x.
func (g *GBT) Fit(x, y mat.Matrix) error {
	if g.opt == nil {
		return ErrNoOptions
	}
	if x == nil {
		return ErrNoTrainingMatrix
	}
	if y == nil {
		return ErrNoTargetMatrix
	}
	m, n := x.Dims()
	ym, _ := y.Dims()
	if ym != m {
		return fmt.Errorf("training data has %d rows and target has %d rows, %w", m, ym, ErrTargetLenMismatch)
	}
	if m == 0 {
		return ErrNoTrainingRows
	}

	rows := make([][]float64, m)
	target := make([]float64, m)
	for i := 0; i < m; i++ {
		rows[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			rows[i][j] = x.At(i, j)
		}
		target[i] = y.At(i, 0)
	}

	g.numFeat = n
	g.baseScore = stat.Mean(target, nil)
	g.trees = make([]*tree, 0, g.opt.NumRounds)

	pred := make([]float64, m)
	for i := range pred {
		pred[i] = g.baseScore
	}

	rng := rand.New(rand.NewPCG(g.opt.Seed, g.opt.Seed))
	residual := make([]float64, m)
	sampleSize := int(math.Ceil(g.opt.SubsampleRatio * float64(m)))

	for round := 0; round < g.opt.NumRounds; round++ {
		for i := range residual {
			residual[i] = target[i] - pred[i]
		}

		sample := make([]int, 0, sampleSize)
		if sampleSize >= m {
			for i := 0; i < m; i++ {
				sample = append(sample, i)
			}
		} else {
			perm := rng.Perm(m)
			sample = append(sample, perm[:sampleSize]...)
			sort.Ints(sample)
		}

		tr := &tree{}
		g.grow(tr, rows, residual, sample, 0)
		g.trees = append(g.trees, tr)

		for i := 0; i < m; i++ {
			pred[i] += g.opt.LearningRate * tr.predict(rows[i])
		}
	}
	return nil
}

// grow recursively builds a tree over the sample indexes and returns the
// index of the created node.
func (g *GBT) grow(tr *tree, rows [][]float64, residual []float64, sample []int, depth int) int {
	var sum float64
	for _, i := range sample {
		sum += residual[i]
	}
	leafValue := sum / float64(len(sample))

	idx := len(tr.Nodes)
	tr.Nodes = append(tr.Nodes, node{Left: -1, Right: -1, Value: leafValue})

	if depth >= g.opt.MaxDepth || len(sample) < 2*g.opt.MinSamplesLeaf {
		return idx
	}

	split, ok := g.bestSplit(rows, residual, sample)
	if !ok {
		return idx
	}

	left := make([]int, 0, len(sample))
	right := make([]int, 0, len(sample))
	for _, i := range sample {
		v := rows[i][split.feature]
		switch {
		case math.IsNaN(v):
			if split.defaultLeft {
				left = append(left, i)
			} else {
				right = append(right, i)
			}
		case v < split.threshold:
			left = append(left, i)
		default:
			right = append(right, i)
		}
	}
	if len(left) < g.opt.MinSamplesLeaf || len(right) < g.opt.MinSamplesLeaf {
		return idx
	}

	tr.Nodes[idx].Feature = split.feature
	tr.Nodes[idx].Threshold = split.threshold
	tr.Nodes[idx].DefaultLeft = split.defaultLeft
	leftIdx := g.grow(tr, rows, residual, left, depth+1)
	rightIdx := g.grow(tr, rows, residual, right, depth+1)
	tr.Nodes[idx].Left = leftIdx
	tr.Nodes[idx].Right = rightIdx
	return idx
}

type splitCandidate struct {
	feature     int
	threshold   float64
	defaultLeft bool
}

type valueGrad struct {
	v float64
	r float64
}

// bestSplit scans every feature for the threshold giving the largest squared
// error reduction. Rows with a NaN feature value are assigned to whichever
// side scores better, and that direction is stored on the split.
func (g *GBT) bestSplit(rows [][]float64, residual []float64, sample []int) (splitCandidate, bool) {
	var best splitCandidate
	var bestGain float64
	found := false

	var totalSum float64
	for _, i := range sample {
		totalSum += residual[i]
	}
	totalCnt := float64(len(sample))
	baseScore := totalSum * totalSum / totalCnt

	numFeat := len(rows[sample[0]])
	pairs := make([]valueGrad, 0, len(sample))

	for feat := 0; feat < numFeat; feat++ {
		pairs = pairs[:0]
		var nanSum float64
		var nanCnt float64
		for _, i := range sample {
			v := rows[i][feat]
			if math.IsNaN(v) {
				nanSum += residual[i]
				nanCnt++
				continue
			}
			pairs = append(pairs, valueGrad{v: v, r: residual[i]})
		}
		if len(pairs) < 2 {
			continue
		}
		sort.Slice(pairs, func(a, b int) bool { return pairs[a].v < pairs[b].v })

		var leftSum, leftCnt float64
		for k := 0; k < len(pairs)-1; k++ {
			leftSum += pairs[k].r
			leftCnt++
			if pairs[k].v == pairs[k+1].v {
				continue
			}
			rightSum := totalSum - nanSum - leftSum
			rightCnt := totalCnt - nanCnt - leftCnt

			// try NaN rows on each side and keep the better assignment
			for _, nanLeft := range []bool{true, false} {
				ls, lc, rs, rc := leftSum, leftCnt, rightSum, rightCnt
				if nanLeft {
					ls += nanSum
					lc += nanCnt
				} else {
					rs += nanSum
					rc += nanCnt
				}
				if lc == 0 || rc == 0 {
					continue
				}
				gain := ls*ls/lc + rs*rs/rc - baseScore
				if !found || gain > bestGain {
					found = true
					bestGain = gain
					best = splitCandidate{
						feature:     feat,
						threshold:   (pairs[k].v + pairs[k+1].v) / 2,
						defaultLeft: nanLeft,
					}
				}
			}
		}
	}

	if !found || bestGain <= 1e-12 {
		return splitCandidate{}, false
	}
	return best, true
}

// Predict returns one prediction per row of the design matrix, preserving
// row order.
func (g *GBT) Predict(x mat.Matrix) ([]float64, error) {
	if g.opt == nil {
		return nil, ErrNoOptions
	}
	if x == nil {
		return nil, ErrNoDesignMatrix
	}
	if len(g.trees) == 0 {
		return nil, ErrNotFitted
	}
	m, n := x.Dims()
	if n != g.numFeat {
		return nil, fmt.Errorf("got %d features in design matrix, but expected %d, %w", n, g.numFeat, ErrFeatureLenMismatch)
	}

	res := make([]float64, m)
	row := make([]float64, n)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			row[j] = x.At(i, j)
		}
		val := g.baseScore
		for _, tr := range g.trees {
			val += g.opt.LearningRate * tr.predict(row)
		}
		res[i] = val
	}
	return res, nil
}

// Score returns the coefficient of determination of the predictions against
// the single-column target matrix y.
func (g *GBT) Score(x, y mat.Matrix) (float64, error) {
	if x == nil {
		return 0.0, ErrNoDesignMatrix
	}
	if y == nil {
		return 0.0, ErrNoTargetMatrix
	}
	m, _ := x.Dims()
	ym, _ := y.Dims()
	if m != ym {
		return 0.0, fmt.Errorf("design matrix has %d rows and target has %d rows, %w", m, ym, ErrTargetLenMismatch)
	}

	res, err := g.Predict(x)
	if err != nil {
		return 0.0, err
	}
	ySlice := mat.Col(nil, 0, y)
	return stat.RSquaredFrom(res, ySlice, nil), nil
}

// NumTrees returns the number of fitted boosting rounds.
func (g *GBT) NumTrees() int {
	return len(g.trees)
}
