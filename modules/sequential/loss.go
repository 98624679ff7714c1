package sequential

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const epsilon = 1e-7

func clip(p float64) float64 {
	return math.Min(1-epsilon, math.Max(epsilon, p))
}

// loss scores one prediction row against its target row.
type loss struct {
	value func(pred, target []float64) float64
	// grad writes dL/dpred into out.
	grad func(pred, target, out []float64)
}

var losses = map[string]loss{
	"mean_squared_error": {
		value: func(p, t []float64) float64 {
			s := 0.0
			for j := range p {
				d := p[j] - t[j]
				s += d * d
			}
			return s / float64(len(p))
		},
		grad: func(p, t, out []float64) {
			for j := range p {
				out[j] = 2 * (p[j] - t[j]) / float64(len(p))
			}
		},
	},
	"mean_absolute_error": {
		value: func(p, t []float64) float64 {
			return floats.Distance(p, t, 1) / float64(len(p))
		},
		grad: func(p, t, out []float64) {
			for j := range p {
				switch {
				case p[j] > t[j]:
					out[j] = 1 / float64(len(p))
				case p[j] < t[j]:
					out[j] = -1 / float64(len(p))
				default:
					out[j] = 0
				}
			}
		},
	},
	"binary_crossentropy": {
		value: func(p, t []float64) float64 {
			s := 0.0
			for j := range p {
				q := clip(p[j])
				s -= t[j]*math.Log(q) + (1-t[j])*math.Log(1-q)
			}
			return s / float64(len(p))
		},
		grad: func(p, t, out []float64) {
			for j := range p {
				q := clip(p[j])
				out[j] = (q - t[j]) / (q * (1 - q)) / float64(len(p))
			}
		},
	},
	"categorical_crossentropy": {
		value: func(p, t []float64) float64 {
			s := 0.0
			for j := range p {
				if t[j] != 0 {
					s -= t[j] * math.Log(clip(p[j]))
				}
			}
			return s
		},
		grad: func(p, t, out []float64) {
			for j := range p {
				out[j] = -t[j] / clip(p[j])
			}
		},
	},
}

var lossAliases = map[string]string{
	"mse": "mean_squared_error",
	"mae": "mean_absolute_error",
}

func lookupLoss(name string) (loss, bool) {
	if alias, ok := lossAliases[name]; ok {
		name = alias
	}
	l, ok := losses[name]
	return l, ok
}

// metric reduces predictions and targets to one number.
type metric func(pred, target *mat.Dense) float64

func meanOver(pred, target *mat.Dense, f func(p, t []float64) float64) float64 {
	r, _ := pred.Dims()
	s := 0.0
	for i := 0; i < r; i++ {
		s += f(pred.RawRowView(i), target.RawRowView(i))
	}
	return s / float64(r)
}

func accuracy(pred, target *mat.Dense) float64 {
	_, c := pred.Dims()
	return meanOver(pred, target, func(p, t []float64) float64 {
		if c == 1 {
			if (p[0] >= 0.5) == (t[0] >= 0.5) {
				return 1
			}
			return 0
		}
		if floats.MaxIdx(p) == floats.MaxIdx(t) {
			return 1
		}
		return 0
	})
}

var metrics = map[string]metric{
	"accuracy":             accuracy,
	"acc":                  accuracy,
	"binary_accuracy":      accuracy,
	"categorical_accuracy": accuracy,
	"mse": func(p, t *mat.Dense) float64 {
		return meanOver(p, t, losses["mean_squared_error"].value)
	},
	"mae": func(p, t *mat.Dense) float64 {
		return meanOver(p, t, losses["mean_absolute_error"].value)
	},
}

func init() {
	metrics["mean_squared_error"] = metrics["mse"]
	metrics["mean_absolute_error"] = metrics["mae"]
}
