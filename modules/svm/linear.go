package svm

import (
	"context"
	"fmt"
	"math"

	"github.com/vk/hpsweep/internal/config"
	"github.com/vk/hpsweep/internal/dataset"
	"github.com/vk/hpsweep/internal/estimator"
	"github.com/vk/hpsweep/internal/registry"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LinearClassifier is a one-vs-rest linear SVM trained with primal
// Pegasos. The intercept is learned as the weight of a constant feature.
type LinearClassifier struct {
	c       float64
	maxIter int
	seed    int

	features int
	classes  []float64
	// w[c] holds the feature weights followed by the intercept.
	w [][]float64
}

// NewLinearSVC builds a LinearSVC from the compile phase options.
func NewLinearSVC(spec registry.Spec) (registry.Estimator, error) {
	p := spec.Phase(config.PhaseCompile)
	m := &LinearClassifier{}
	var err error
	if m.c, err = p.Float("C", 1.0); err != nil {
		return nil, err
	}
	if m.c <= 0 {
		return nil, fmt.Errorf("%w: C must be positive, got %v", config.ErrMalformedConfig, m.c)
	}
	if m.maxIter, err = p.Int("max_iter", 1000); err != nil {
		return nil, err
	}
	if m.maxIter < 1 {
		return nil, fmt.Errorf("%w: max_iter must be positive, got %d", config.ErrMalformedConfig, m.maxIter)
	}
	if m.seed, err = p.Int("random_state", 0); err != nil {
		return nil, err
	}
	return m, nil
}

// Fit runs max_iter passes of stochastic sub-gradient steps per class.
func (m *LinearClassifier) Fit(ctx context.Context, x, y *mat.Dense) error {
	if err := estimator.CheckXY(x, y); err != nil {
		return err
	}
	labels := dataset.Labels(y)
	m.classes = estimator.Classes(labels)
	n, cols := x.Dims()
	m.features = cols

	aug := make([][]float64, n)
	for i := range aug {
		aug[i] = append(mat.Row(nil, i, x), 1)
	}

	lambda := 1 / (m.c * float64(n))
	radius := 1 / math.Sqrt(lambda)
	T := m.maxIter * n
	rng := estimator.NewRand(m.seed)

	m.w = make([][]float64, len(m.classes))
	for c, class := range m.classes {
		w := make([]float64, cols+1)
		for t := 1; t <= T; t++ {
			if err := estimator.CheckContext(ctx, t); err != nil {
				return err
			}
			i := rng.IntN(n)
			sign := -1.0
			if labels[i] == class {
				sign = 1
			}
			eta := 1 / (lambda * float64(t))
			margin := sign * floats.Dot(w, aug[i])
			floats.Scale(1-eta*lambda, w)
			if margin < 1 {
				floats.AddScaled(w, eta*sign, aug[i])
			}
			if norm := floats.Norm(w, 2); norm > radius {
				floats.Scale(radius/norm, w)
			}
		}
		m.w[c] = w
	}
	return nil
}

// Predict returns the class with the largest decision value.
func (m *LinearClassifier) Predict(ctx context.Context, x *mat.Dense) ([]float64, error) {
	if m.w == nil {
		return nil, estimator.ErrNotFitted
	}
	if err := estimator.CheckFeatures(x, m.features); err != nil {
		return nil, err
	}
	rows, _ := x.Dims()
	out := make([]float64, rows)
	scores := make([]float64, len(m.classes))
	for i := 0; i < rows; i++ {
		if err := estimator.CheckContext(ctx, i); err != nil {
			return nil, err
		}
		row := x.RawRowView(i)
		for c, w := range m.w {
			scores[c] = floats.Dot(w[:m.features], row) + w[m.features]
		}
		out[i] = m.classes[estimator.Argmax(scores)]
	}
	return out, nil
}

// Evaluate reports mean accuracy.
func (m *LinearClassifier) Evaluate(ctx context.Context, x, y *mat.Dense) (map[string]float64, error) {
	return estimator.Score(ctx, m, x, y)
}
