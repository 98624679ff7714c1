// Package neighbors provides KNeighborsClassifier and
// RadiusNeighborsClassifier.
package neighbors

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/vk/hpsweep/internal/config"
	"github.com/vk/hpsweep/internal/dataset"
	"github.com/vk/hpsweep/internal/estimator"
	"github.com/vk/hpsweep/internal/registry"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the neighbour-based model types with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.Register("KNeighborsClassifier", &registry.RegisteredModel{Family: registry.FamilyClassical, Constructor: NewKNeighbors})
	r.Register("RadiusNeighborsClassifier", &registry.RegisteredModel{Family: registry.FamilyClassical, Constructor: NewRadiusNeighbors})
}

type weighting int

const (
	uniform weighting = iota
	byDistance
)

// Classifier votes among stored training samples. With radius > 0 the
// neighbourhood is every sample within radius, otherwise the k nearest.
type Classifier struct {
	k            int
	radius       float64
	weights      weighting
	p            float64
	outlierLabel *float64

	x       *mat.Dense
	labels  []float64
	classes []float64
}

type neighbor struct {
	dist  float64
	label float64
}

// NewKNeighbors builds a KNeighborsClassifier.
func NewKNeighbors(spec registry.Spec) (registry.Estimator, error) {
	p := spec.Phase(config.PhaseCompile)
	c, err := newCommon(p)
	if err != nil {
		return nil, err
	}
	if c.k, err = p.Int("n_neighbors", 5); err != nil {
		return nil, err
	}
	if c.k < 1 {
		return nil, fmt.Errorf("%w: n_neighbors must be positive, got %d", config.ErrMalformedConfig, c.k)
	}
	return c, nil
}

// NewRadiusNeighbors builds a RadiusNeighborsClassifier.
func NewRadiusNeighbors(spec registry.Spec) (registry.Estimator, error) {
	p := spec.Phase(config.PhaseCompile)
	c, err := newCommon(p)
	if err != nil {
		return nil, err
	}
	if c.radius, err = p.Float("radius", 1.0); err != nil {
		return nil, err
	}
	if c.radius <= 0 {
		return nil, fmt.Errorf("%w: radius must be positive, got %v", config.ErrMalformedConfig, c.radius)
	}
	if p.Has("outlier_label") {
		label, err := p.Float("outlier_label", 0)
		if err != nil {
			return nil, err
		}
		c.outlierLabel = &label
	}
	return c, nil
}

func newCommon(p config.Params) (*Classifier, error) {
	c := &Classifier{}
	w, err := p.String("weights", "uniform")
	if err != nil {
		return nil, err
	}
	switch w {
	case "uniform":
		c.weights = uniform
	case "distance":
		c.weights = byDistance
	default:
		return nil, fmt.Errorf("%w: weights must be \"uniform\" or \"distance\", got %q", config.ErrMalformedConfig, w)
	}
	if c.p, err = p.Float("p", 2); err != nil {
		return nil, err
	}
	if c.p < 1 {
		return nil, fmt.Errorf("%w: p must be at least 1, got %v", config.ErrMalformedConfig, c.p)
	}
	return c, nil
}

// Fit stores the training samples.
func (c *Classifier) Fit(_ context.Context, x, y *mat.Dense) error {
	if err := estimator.CheckXY(x, y); err != nil {
		return err
	}
	rows, _ := x.Dims()
	if c.radius == 0 && c.k > rows {
		return fmt.Errorf("n_neighbors is %d but only %d training samples are available", c.k, rows)
	}
	c.x = mat.DenseCopyOf(x)
	c.labels = dataset.Labels(y)
	c.classes = estimator.Classes(c.labels)
	return nil
}

// Predict votes over each row's neighbourhood.
func (c *Classifier) Predict(ctx context.Context, x *mat.Dense) ([]float64, error) {
	if c.x == nil {
		return nil, estimator.ErrNotFitted
	}
	_, cols := c.x.Dims()
	if err := estimator.CheckFeatures(x, cols); err != nil {
		return nil, err
	}

	trainRows, _ := c.x.Dims()
	rows, _ := x.Dims()
	out := make([]float64, rows)
	all := make([]neighbor, trainRows)
	for i := 0; i < rows; i++ {
		if err := estimator.CheckContext(ctx, i); err != nil {
			return nil, err
		}
		q := x.RawRowView(i)
		for j := 0; j < trainRows; j++ {
			all[j] = neighbor{dist: floats.Distance(q, c.x.RawRowView(j), c.p), label: c.labels[j]}
		}

		var hood []neighbor
		if c.radius > 0 {
			for _, n := range all {
				if n.dist <= c.radius {
					hood = append(hood, n)
				}
			}
		} else {
			sort.SliceStable(all, func(a, b int) bool { return all[a].dist < all[b].dist })
			hood = all[:c.k]
		}

		if len(hood) == 0 {
			if c.outlierLabel == nil {
				return nil, fmt.Errorf("no training samples within radius %v of test row %d; set outlier_label", c.radius, i+1)
			}
			out[i] = *c.outlierLabel
			continue
		}
		out[i] = c.vote(hood)
	}
	return out, nil
}

func (c *Classifier) vote(hood []neighbor) float64 {
	tally := make(map[float64]float64, len(c.classes))
	exact := false
	if c.weights == byDistance {
		for _, n := range hood {
			if n.dist == 0 {
				exact = true
				break
			}
		}
	}
	for _, n := range hood {
		switch {
		case c.weights == uniform:
			tally[n.label]++
		case exact:
			// Exact matches take all the weight.
			if n.dist == 0 {
				tally[n.label]++
			}
		default:
			tally[n.label] += 1 / n.dist
		}
	}

	best, bestScore := math.NaN(), -1.0
	for _, class := range c.classes {
		if s := tally[class]; s > bestScore {
			best, bestScore = class, s
		}
	}
	return best
}

// Evaluate reports mean accuracy.
func (c *Classifier) Evaluate(ctx context.Context, x, y *mat.Dense) (map[string]float64, error) {
	return estimator.Score(ctx, c, x, y)
}
