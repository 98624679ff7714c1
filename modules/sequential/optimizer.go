package sequential

import (
	"math"
)

// param pairs a flat weight slice with its gradient.
type param struct {
	value []float64
	grad  []float64
}

type optimizer interface {
	step(params []param)
}

// defaultLearningRates follows the Keras defaults for each optimizer.
var defaultLearningRates = map[string]float64{
	"sgd":      0.01,
	"rmsprop":  0.001,
	"adagrad":  0.01,
	"adadelta": 1.0,
	"adam":     0.001,
	"adamax":   0.002,
	"nadam":    0.002,
}

type optimizerOptions struct {
	name     string
	lr       float64
	momentum float64
	nesterov bool
}

func newOptimizer(o optimizerOptions) optimizer {
	switch o.name {
	case "sgd":
		return &sgd{lr: o.lr, momentum: o.momentum, nesterov: o.nesterov}
	case "rmsprop":
		return &rmsprop{lr: o.lr, rho: 0.9}
	case "adagrad":
		return &adagrad{lr: o.lr}
	case "adadelta":
		return &adadelta{lr: o.lr, rho: 0.95}
	case "adamax":
		return &adam{lr: o.lr, beta1: 0.9, beta2: 0.999, variant: adamaxVariant}
	case "nadam":
		return &adam{lr: o.lr, beta1: 0.9, beta2: 0.999, variant: nadamVariant}
	}
	return &adam{lr: o.lr, beta1: 0.9, beta2: 0.999}
}

// slots lazily allocates one state slice per parameter.
type slots [][]float64

func (s *slots) get(i, n int) []float64 {
	for len(*s) <= i {
		*s = append(*s, nil)
	}
	if (*s)[i] == nil {
		(*s)[i] = make([]float64, n)
	}
	return (*s)[i]
}

type sgd struct {
	lr, momentum float64
	nesterov     bool
	velocity     slots
}

func (o *sgd) step(params []param) {
	for i, p := range params {
		if o.momentum == 0 {
			for j, g := range p.grad {
				p.value[j] -= o.lr * g
			}
			continue
		}
		v := o.velocity.get(i, len(p.value))
		for j, g := range p.grad {
			v[j] = o.momentum*v[j] - o.lr*g
			if o.nesterov {
				p.value[j] += o.momentum*v[j] - o.lr*g
			} else {
				p.value[j] += v[j]
			}
		}
	}
}

type rmsprop struct {
	lr, rho float64
	acc     slots
}

func (o *rmsprop) step(params []param) {
	for i, p := range params {
		acc := o.acc.get(i, len(p.value))
		for j, g := range p.grad {
			acc[j] = o.rho*acc[j] + (1-o.rho)*g*g
			p.value[j] -= o.lr * g / (math.Sqrt(acc[j]) + epsilon)
		}
	}
}

type adagrad struct {
	lr  float64
	acc slots
}

func (o *adagrad) step(params []param) {
	for i, p := range params {
		acc := o.acc.get(i, len(p.value))
		for j, g := range p.grad {
			acc[j] += g * g
			p.value[j] -= o.lr * g / (math.Sqrt(acc[j]) + epsilon)
		}
	}
}

type adadelta struct {
	lr, rho  float64
	acc      slots
	deltaAcc slots
}

func (o *adadelta) step(params []param) {
	for i, p := range params {
		acc := o.acc.get(i, len(p.value))
		dacc := o.deltaAcc.get(i, len(p.value))
		for j, g := range p.grad {
			acc[j] = o.rho*acc[j] + (1-o.rho)*g*g
			update := g * math.Sqrt(dacc[j]+epsilon) / math.Sqrt(acc[j]+epsilon)
			p.value[j] -= o.lr * update
			dacc[j] = o.rho*dacc[j] + (1-o.rho)*update*update
		}
	}
}

type adamVariant int

const (
	adamPlain adamVariant = iota
	adamaxVariant
	nadamVariant
)

type adam struct {
	lr, beta1, beta2 float64
	variant          adamVariant
	t                int
	m, v             slots
}

func (o *adam) step(params []param) {
	o.t++
	t := float64(o.t)
	b1t := 1 - math.Pow(o.beta1, t)
	b2t := 1 - math.Pow(o.beta2, t)
	b1next := 1 - math.Pow(o.beta1, t+1)

	for i, p := range params {
		m := o.m.get(i, len(p.value))
		v := o.v.get(i, len(p.value))
		for j, g := range p.grad {
			m[j] = o.beta1*m[j] + (1-o.beta1)*g
			switch o.variant {
			case adamaxVariant:
				v[j] = math.Max(o.beta2*v[j], math.Abs(g))
				p.value[j] -= (o.lr / b1t) * m[j] / (v[j] + epsilon)
			case nadamVariant:
				v[j] = o.beta2*v[j] + (1-o.beta2)*g*g
				mHat := o.beta1*m[j]/b1next + (1-o.beta1)*g/b1t
				vHat := v[j] / b2t
				p.value[j] -= o.lr * mHat / (math.Sqrt(vHat) + epsilon)
			default:
				v[j] = o.beta2*v[j] + (1-o.beta2)*g*g
				lrT := o.lr * math.Sqrt(b2t) / b1t
				p.value[j] -= lrT * m[j] / (math.Sqrt(v[j]) + epsilon)
			}
		}
	}
}
