package naivebayes

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
	"gonum.org/v1/gonum/stat"
)

// Gaussian is a naive Bayes classifier with normally distributed features.
type Gaussian struct {
	varSmoothing float64

	classes  []float64
	logPrior []float64
	mean     [][]float64
	variance [][]float64
}

// NewGaussian builds a GaussianNB from the compile phase options.
func NewGaussian(spec registry.Spec) (registry.Estimator, error) {
	vs, err := spec.Phase(config.PhaseCompile).Float("var_smoothing", 1e-9)
	if err != nil {
		return nil, err
	}
	return &Gaussian{varSmoothing: vs}, nil
}

// Fit estimates per-class feature means and variances.
func (g *Gaussian) Fit(_ context.Context, x, y *mat.Dense) error {
	if err := estimator.CheckXY(x, y); err != nil {
		return err
	}
	labels := dataset.Labels(y)
	g.classes = estimator.Classes(labels)
	rows, cols := x.Dims()

	// var_smoothing is relative to the largest feature variance.
	maxVar := 0.0
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, x)
		_, v := stat.PopMeanVariance(col, nil)
		maxVar = math.Max(maxVar, v)
	}
	epsilon := g.varSmoothing * maxVar

	g.logPrior = make([]float64, len(g.classes))
	g.mean = make([][]float64, len(g.classes))
	g.variance = make([][]float64, len(g.classes))
	for c, class := range g.classes {
		var members []int
		for i, l := range labels {
			if l == class {
				members = append(members, i)
			}
		}
		g.logPrior[c] = math.Log(float64(len(members)) / float64(rows))
		g.mean[c] = make([]float64, cols)
		g.variance[c] = make([]float64, cols)

		vals := make([]float64, len(members))
		for j := 0; j < cols; j++ {
			for k, i := range members {
				vals[k] = x.At(i, j)
			}
			m, v := stat.PopMeanVariance(vals, nil)
			g.mean[c][j] = m
			g.variance[c][j] = v + epsilon
		}
	}
	return nil
}

// Predict returns the most likely class per row.
func (g *Gaussian) Predict(ctx context.Context, x *mat.Dense) ([]float64, error) {
	if g.classes == nil {
		return nil, estimator.ErrNotFitted
	}
	if err := estimator.CheckFeatures(x, len(g.mean[0])); err != nil {
		return nil, err
	}
	rows, _ := x.Dims()
	out := make([]float64, rows)
	jll := make([]float64, len(g.classes))
	for i := 0; i < rows; i++ {
		if err := estimator.CheckContext(ctx, i); err != nil {
			return nil, err
		}
		row := x.RawRowView(i)
		for c := range g.classes {
			ll := g.logPrior[c]
			for j, v := range row {
				variance := g.variance[c][j]
				if variance <= 0 {
					return nil, fmt.Errorf("feature %d has zero variance in class %v; raise var_smoothing", j, g.classes[c])
				}
				d := v - g.mean[c][j]
				ll -= 0.5*math.Log(2*math.Pi*variance) + d*d/(2*variance)
			}
			jll[c] = ll
		}
		out[i] = g.classes[floats.MaxIdx(jll)]
	}
	return out, nil
}

// Evaluate reports mean accuracy.
func (g *Gaussian) Evaluate(ctx context.Context, x, y *mat.Dense) (map[string]float64, error) {
	return estimator.Score(ctx, g, x, y)
}
