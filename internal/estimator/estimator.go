// Package estimator holds helpers shared by the estimator modules: label
// bookkeeping, shape checks, accuracy scoring and seeded randomness.
package estimator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/vk/hpsweep/internal/dataset"
	"github.com/vk/hpsweep/internal/registry"
	"gonum.org/v1/gonum/mat"
)

// ErrNotFitted is returned when a model is evaluated before Fit succeeded.
var ErrNotFitted = errors.New("model is not fitted")

// Predictor is implemented by classifiers that output one label per row.
type Predictor interface {
	Predict(ctx context.Context, x *mat.Dense) ([]float64, error)
}

// Classes returns the distinct labels in ascending order.
func Classes(labels []float64) []float64 {
	seen := make(map[float64]struct{}, 8)
	var out []float64
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	sort.Float64s(out)
	return out
}

// Accuracy is the fraction of predictions equal to the truth.
func Accuracy(pred, truth []float64) float64 {
	if len(truth) == 0 {
		return 0
	}
	hits := 0
	for i := range truth {
		if pred[i] == truth[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(truth))
}

// Score evaluates a classifier the way classical models report: a single
// mean accuracy under registry.ScoreKey.
func Score(ctx context.Context, p Predictor, x, y *mat.Dense) (map[string]float64, error) {
	if err := CheckXY(x, y); err != nil {
		return nil, err
	}
	pred, err := p.Predict(ctx, x)
	if err != nil {
		return nil, err
	}
	return map[string]float64{registry.ScoreKey: Accuracy(pred, dataset.Labels(y))}, nil
}

// CheckXY verifies that x and y are non-empty and have matching row counts.
func CheckXY(x, y *mat.Dense) error {
	if x == nil || y == nil {
		return errors.New("features and labels are required")
	}
	xr, _ := x.Dims()
	yr, _ := y.Dims()
	if xr == 0 {
		return errors.New("no samples")
	}
	if xr != yr {
		return fmt.Errorf("features have %d rows but labels have %d", xr, yr)
	}
	return nil
}

// CheckFeatures verifies that x has the number of columns a model was fitted on.
func CheckFeatures(x *mat.Dense, want int) error {
	_, c := x.Dims()
	if c != want {
		return fmt.Errorf("model was fitted on %d features, got %d", want, c)
	}
	return nil
}

// NewRand returns a deterministic generator for a seed.
func NewRand(seed int) *rand.Rand {
	s := uint64(seed)
	return rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))
}

// Argmax returns the index of the largest score; ties go to the lowest index.
func Argmax(scores []float64) int {
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best
}

// CheckContext returns the context error every 1024 iterations.
func CheckContext(ctx context.Context, iter int) error {
	if iter&1023 == 0 {
		return ctx.Err()
	}
	return nil
}
