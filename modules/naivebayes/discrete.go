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
)

type variant int

const (
	multinomial variant = iota
	complement
	bernoulli
)

func (v variant) String() string {
	switch v {
	case multinomial:
		return "MultinomialNB"
	case complement:
		return "ComplementNB"
	}
	return "BernoulliNB"
}

// Discrete is a naive Bayes classifier over count or binary features. The
// variant decides how per-class feature weights are derived from counts.
type Discrete struct {
	variant  variant
	alpha    float64
	norm     bool
	binarize *float64

	classes  []float64
	logPrior []float64
	// weights[c][j] is the log-probability weight of feature j for class c.
	weights [][]float64
	// negWeights[c][j] is log(1-p) for the Bernoulli variant.
	negWeights [][]float64
}

// NewMultinomial builds a MultinomialNB.
func NewMultinomial(spec registry.Spec) (registry.Estimator, error) {
	return newDiscrete(multinomial, spec.Phase(config.PhaseCompile))
}

// NewComplement builds a ComplementNB.
func NewComplement(spec registry.Spec) (registry.Estimator, error) {
	return newDiscrete(complement, spec.Phase(config.PhaseCompile))
}

// NewBernoulli builds a BernoulliNB.
func NewBernoulli(spec registry.Spec) (registry.Estimator, error) {
	return newDiscrete(bernoulli, spec.Phase(config.PhaseCompile))
}

func newDiscrete(v variant, p config.Params) (*Discrete, error) {
	a, err := alpha(p)
	if err != nil {
		return nil, err
	}
	d := &Discrete{variant: v, alpha: a}

	switch v {
	case complement:
		if d.norm, err = p.Bool("norm", false); err != nil {
			return nil, err
		}
	case bernoulli:
		// binarize: null disables thresholding, the default threshold is 0.
		threshold := 0.0
		if _, set := p["binarize"]; set && p["binarize"] == nil {
			break
		}
		if threshold, err = p.Float("binarize", threshold); err != nil {
			return nil, err
		}
		d.binarize = &threshold
	}
	return d, nil
}

func (d *Discrete) prepare(x *mat.Dense) (*mat.Dense, error) {
	if d.variant == bernoulli {
		if d.binarize == nil {
			return x, nil
		}
		r, c := x.Dims()
		out := mat.NewDense(r, c, nil)
		out.Apply(func(_, _ int, v float64) float64 {
			if v > *d.binarize {
				return 1
			}
			return 0
		}, x)
		return out, nil
	}
	if mat.Min(x) < 0 {
		return nil, fmt.Errorf("%s requires non-negative features", d.variant)
	}
	return x, nil
}

// Fit accumulates per-class feature counts and turns them into weights.
func (d *Discrete) Fit(_ context.Context, x, y *mat.Dense) error {
	if err := estimator.CheckXY(x, y); err != nil {
		return err
	}
	x, err := d.prepare(x)
	if err != nil {
		return err
	}
	labels := dataset.Labels(y)
	d.classes = estimator.Classes(labels)
	rows, cols := x.Dims()
	k := len(d.classes)

	index := make(map[float64]int, k)
	for c, class := range d.classes {
		index[class] = c
	}
	counts := make([][]float64, k)
	for c := range counts {
		counts[c] = make([]float64, cols)
	}
	classCount := make([]float64, k)
	for i := 0; i < rows; i++ {
		c := index[labels[i]]
		classCount[c]++
		floats.Add(counts[c], x.RawRowView(i))
	}

	d.logPrior = make([]float64, k)
	for c := range classCount {
		d.logPrior[c] = math.Log(classCount[c] / float64(rows))
	}

	d.weights = make([][]float64, k)
	switch d.variant {
	case multinomial:
		for c := range counts {
			smoothed := make([]float64, cols)
			for j, v := range counts[c] {
				smoothed[j] = v + d.alpha
			}
			total := floats.Sum(smoothed)
			for j := range smoothed {
				smoothed[j] = math.Log(smoothed[j] / total)
			}
			d.weights[c] = smoothed
		}

	case complement:
		all := make([]float64, cols)
		for c := range counts {
			floats.Add(all, counts[c])
		}
		for c := range counts {
			comp := make([]float64, cols)
			for j := range comp {
				comp[j] = all[j] - counts[c][j] + d.alpha
			}
			total := floats.Sum(comp)
			for j := range comp {
				comp[j] = math.Log(comp[j] / total)
			}
			if d.norm {
				floats.Scale(1/floats.Sum(comp), comp)
			} else {
				floats.Scale(-1, comp)
			}
			d.weights[c] = comp
		}

	case bernoulli:
		d.negWeights = make([][]float64, k)
		for c := range counts {
			d.weights[c] = make([]float64, cols)
			d.negWeights[c] = make([]float64, cols)
			for j := range counts[c] {
				p := (counts[c][j] + d.alpha) / (classCount[c] + 2*d.alpha)
				d.weights[c][j] = math.Log(p)
				d.negWeights[c][j] = math.Log(1 - p)
			}
		}
	}

	for c := range d.weights {
		for _, w := range d.weights[c] {
			if math.IsNaN(w) || math.IsInf(w, 0) {
				return fmt.Errorf("%s produced non-finite feature weights; use alpha > 0", d.variant)
			}
		}
	}
	return nil
}

// Predict returns the most likely class per row.
func (d *Discrete) Predict(ctx context.Context, x *mat.Dense) ([]float64, error) {
	if d.classes == nil {
		return nil, estimator.ErrNotFitted
	}
	if err := estimator.CheckFeatures(x, len(d.weights[0])); err != nil {
		return nil, err
	}
	x, err := d.prepare(x)
	if err != nil {
		return nil, err
	}

	rows, _ := x.Dims()
	out := make([]float64, rows)
	jll := make([]float64, len(d.classes))
	for i := 0; i < rows; i++ {
		if err := estimator.CheckContext(ctx, i); err != nil {
			return nil, err
		}
		row := x.RawRowView(i)
		for c := range d.classes {
			switch d.variant {
			case bernoulli:
				ll := d.logPrior[c]
				for j, v := range row {
					ll += v*d.weights[c][j] + (1-v)*d.negWeights[c][j]
				}
				jll[c] = ll
			case complement:
				jll[c] = floats.Dot(row, d.weights[c])
				if len(d.classes) == 1 {
					jll[c] += d.logPrior[c]
				}
			default:
				jll[c] = d.logPrior[c] + floats.Dot(row, d.weights[c])
			}
		}
		out[i] = d.classes[floats.MaxIdx(jll)]
	}
	return out, nil
}

// Evaluate reports mean accuracy.
func (d *Discrete) Evaluate(ctx context.Context, x, y *mat.Dense) (map[string]float64, error) {
	return estimator.Score(ctx, d, x, y)
}
