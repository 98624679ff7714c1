package svm

import (
	"fmt"
	"math"

	"github.com/vk/hpsweep/internal/config"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// kernel computes the similarity of two samples.
type kernel func(a, b []float64) float64

type kernelSpec struct {
	name   string
	gamma  any // "scale", "auto" or a float64
	degree float64
	coef0  float64
}

func parseKernel(p config.Params) (kernelSpec, error) {
	k := kernelSpec{gamma: "scale"}
	var err error
	if k.name, err = p.String("kernel", "rbf"); err != nil {
		return k, err
	}
	switch k.name {
	case "rbf", "linear", "poly", "sigmoid":
	default:
		return k, fmt.Errorf("%w: kernel must be one of rbf, linear, poly, sigmoid; got %q", config.ErrMalformedConfig, k.name)
	}

	switch g := p["gamma"].(type) {
	case nil:
	case string:
		if g != "scale" && g != "auto" {
			return k, fmt.Errorf("%w: gamma must be \"scale\", \"auto\" or a number, got %q", config.ErrMalformedConfig, g)
		}
		k.gamma = g
	case float64:
		if g <= 0 {
			return k, fmt.Errorf("%w: gamma must be positive, got %v", config.ErrMalformedConfig, g)
		}
		k.gamma = g
	default:
		return k, fmt.Errorf("%w: gamma must be \"scale\", \"auto\" or a number, got %T", config.ErrMalformedConfig, g)
	}

	if k.degree, err = p.Float("degree", 3); err != nil {
		return k, err
	}
	if k.coef0, err = p.Float("coef0", 0); err != nil {
		return k, err
	}
	return k, nil
}

// resolve binds gamma to the training data and returns the kernel function.
func (k kernelSpec) resolve(x *mat.Dense) kernel {
	_, cols := x.Dims()
	gamma := 1 / float64(cols)
	switch g := k.gamma.(type) {
	case float64:
		gamma = g
	case string:
		if g == "scale" {
			if v := stat.PopVariance(mat.DenseCopyOf(x).RawMatrix().Data, nil); v > 0 {
				gamma = 1 / (float64(cols) * v)
			}
		}
	}

	switch k.name {
	case "linear":
		return floats.Dot
	case "poly":
		return func(a, b []float64) float64 {
			return math.Pow(gamma*floats.Dot(a, b)+k.coef0, k.degree)
		}
	case "sigmoid":
		return func(a, b []float64) float64 {
			return math.Tanh(gamma*floats.Dot(a, b) + k.coef0)
		}
	}
	return func(a, b []float64) float64 {
		d := floats.Distance(a, b, 2)
		return math.Exp(-gamma * d * d)
	}
}
