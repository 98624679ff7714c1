package sequential

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// dense is a fully connected layer. It keeps the tensors of the last
// forward pass for the backward pass that follows it.
type dense struct {
	w   *mat.Dense
	b   []float64
	act activation

	dw *mat.Dense
	db []float64

	in, z, a *mat.Dense
}

// newDense initialises weights Glorot-uniform and biases to zero.
func newDense(in, out int, act activation, rng *rand.Rand) *dense {
	limit := math.Sqrt(6 / float64(in+out))
	w := mat.NewDense(in, out, nil)
	raw := w.RawMatrix().Data
	for i := range raw {
		raw[i] = (rng.Float64()*2 - 1) * limit
	}
	return &dense{
		w:   w,
		b:   make([]float64, out),
		act: act,
		dw:  mat.NewDense(in, out, nil),
		db:  make([]float64, out),
	}
}

func (l *dense) units() int {
	_, c := l.w.Dims()
	return c
}

func (l *dense) forward(x *mat.Dense) *mat.Dense {
	r, _ := x.Dims()
	z := mat.NewDense(r, l.units(), nil)
	z.Mul(x, l.w)
	for i := 0; i < r; i++ {
		row := z.RawRowView(i)
		for j := range row {
			row[j] += l.b[j]
		}
	}
	l.in, l.z = x, z
	l.a = l.act.forward(z)
	return l.a
}

// backward takes dL/da, fills dw and db and returns dL/dx.
func (l *dense) backward(grad *mat.Dense) *mat.Dense {
	dz := l.act.backward(l.z, l.a, grad)
	l.dw.Mul(l.in.T(), dz)

	r, _ := dz.Dims()
	for j := range l.db {
		l.db[j] = 0
	}
	for i := 0; i < r; i++ {
		for j, v := range dz.RawRowView(i) {
			l.db[j] += v
		}
	}

	rows, _ := l.in.Dims()
	in, _ := l.w.Dims()
	dx := mat.NewDense(rows, in, nil)
	dx.Mul(dz, l.w.T())
	return dx
}

func (l *dense) params() []param {
	return []param{
		{value: l.w.RawMatrix().Data, grad: l.dw.RawMatrix().Data},
		{value: l.b, grad: l.db},
	}
}
