package sequential

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// activation maps pre-activations z to outputs a and back-propagates
// gradients through itself.
type activation interface {
	forward(z *mat.Dense) *mat.Dense
	// backward returns dL/dz given z, a = forward(z) and dL/da.
	backward(z, a, grad *mat.Dense) *mat.Dense
}

type elementwise struct {
	f  func(z float64) float64
	df func(z, a float64) float64
}

func (e elementwise) forward(z *mat.Dense) *mat.Dense {
	r, c := z.Dims()
	a := mat.NewDense(r, c, nil)
	a.Apply(func(_, _ int, v float64) float64 { return e.f(v) }, z)
	return a
}

func (e elementwise) backward(z, a, grad *mat.Dense) *mat.Dense {
	r, c := z.Dims()
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, g float64) float64 { return g * e.df(z.At(i, j), a.At(i, j)) }, grad)
	return out
}

type softmax struct{}

func (softmax) forward(z *mat.Dense) *mat.Dense {
	r, c := z.Dims()
	a := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		row := a.RawRowView(i)
		copy(row, z.RawRowView(i))
		m := floats.Max(row)
		for j := range row {
			row[j] = math.Exp(row[j] - m)
		}
		floats.Scale(1/floats.Sum(row), row)
	}
	return a
}

func (softmax) backward(_, a, grad *mat.Dense) *mat.Dense {
	r, c := a.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		s, g, o := a.RawRowView(i), grad.RawRowView(i), out.RawRowView(i)
		dot := floats.Dot(g, s)
		for j := range o {
			o[j] = s[j] * (g[j] - dot)
		}
	}
	return out
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

const (
	seluAlpha = 1.6732632423543772
	seluScale = 1.0507009873554805
)

var activations = map[string]activation{
	"linear": elementwise{
		f:  func(z float64) float64 { return z },
		df: func(_, _ float64) float64 { return 1 },
	},
	"relu": elementwise{
		f: func(z float64) float64 { return math.Max(0, z) },
		df: func(z, _ float64) float64 {
			if z > 0 {
				return 1
			}
			return 0
		},
	},
	"sigmoid": elementwise{
		f:  sigmoid,
		df: func(_, a float64) float64 { return a * (1 - a) },
	},
	"hard_sigmoid": elementwise{
		f: func(z float64) float64 { return math.Min(1, math.Max(0, 0.2*z+0.5)) },
		df: func(z, _ float64) float64 {
			if z > -2.5 && z < 2.5 {
				return 0.2
			}
			return 0
		},
	},
	"tanh": elementwise{
		f:  math.Tanh,
		df: func(_, a float64) float64 { return 1 - a*a },
	},
	"softplus": elementwise{
		f: func(z float64) float64 {
			if z > 30 {
				return z
			}
			return math.Log1p(math.Exp(z))
		},
		df: func(z, _ float64) float64 { return sigmoid(z) },
	},
	"softsign": elementwise{
		f: func(z float64) float64 { return z / (1 + math.Abs(z)) },
		df: func(z, _ float64) float64 {
			d := 1 + math.Abs(z)
			return 1 / (d * d)
		},
	},
	"elu": elementwise{
		f: func(z float64) float64 {
			if z > 0 {
				return z
			}
			return math.Expm1(z)
		},
		df: func(z, a float64) float64 {
			if z > 0 {
				return 1
			}
			return a + 1
		},
	},
	"selu": elementwise{
		f: func(z float64) float64 {
			if z > 0 {
				return seluScale * z
			}
			return seluScale * seluAlpha * math.Expm1(z)
		},
		df: func(z, a float64) float64 {
			if z > 0 {
				return seluScale
			}
			return a + seluScale*seluAlpha
		},
	},
	"softmax": softmax{},
}
