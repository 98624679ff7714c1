package svm

import (
	"context"
	"fmt"
	"math"

	"github.com/vk/hpsweep/internal/config"
	"github.com/vk/hpsweep/internal/dataset"
	"github.com/vk/hpsweep/internal/estimator"
	"github.com/vk/hpsweep/internal/registry"
	"gonum.org/v1/gonum/mat"
)

// gramLimit bounds the number of training rows for which the full kernel
// matrix is cached during training.
const gramLimit = 2048

// KernelClassifier is a one-vs-rest kernel machine trained with kernel
// Pegasos. The bias is learned by adding a constant to the kernel.
type KernelClassifier struct {
	kernel  kernelSpec
	lambda  func(n int) float64
	maxIter int
	seed    int

	k       kernel
	x       *mat.Dense
	y       []float64
	classes []float64
	// alpha[c][j] counts how often sample j violated the margin of machine c.
	alpha [][]float64
	scale []float64
}

// NewSVC builds a C-regularised kernel classifier.
func NewSVC(spec registry.Spec) (registry.Estimator, error) {
	p := spec.Phase(config.PhaseCompile)
	c, err := p.Float("C", 1.0)
	if err != nil {
		return nil, err
	}
	if c <= 0 {
		return nil, fmt.Errorf("%w: C must be positive, got %v", config.ErrMalformedConfig, c)
	}
	return newKernelClassifier(p, func(n int) float64 { return 1 / (c * float64(n)) })
}

// NewNuSVC builds a kernel classifier regularised by nu. nu is used
// directly as the Pegasos regularisation strength, so larger values admit
// more margin errors.
func NewNuSVC(spec registry.Spec) (registry.Estimator, error) {
	p := spec.Phase(config.PhaseCompile)
	nu, err := p.Float("nu", 0.5)
	if err != nil {
		return nil, err
	}
	if nu <= 0 || nu > 1 {
		return nil, fmt.Errorf("%w: nu must be in (0, 1], got %v", config.ErrMalformedConfig, nu)
	}
	return newKernelClassifier(p, func(int) float64 { return nu })
}

func newKernelClassifier(p config.Params, lambda func(int) float64) (*KernelClassifier, error) {
	ks, err := parseKernel(p)
	if err != nil {
		return nil, err
	}
	maxIter, err := p.Int("max_iter", -1)
	if err != nil {
		return nil, err
	}
	seed, err := p.Int("random_state", 0)
	if err != nil {
		return nil, err
	}
	return &KernelClassifier{kernel: ks, lambda: lambda, maxIter: maxIter, seed: seed}, nil
}

func (m *KernelClassifier) iterations(n int) int {
	if m.maxIter > 0 {
		return m.maxIter
	}
	return max(1000, 20*n)
}

// Fit trains one binary machine per class.
func (m *KernelClassifier) Fit(ctx context.Context, x, y *mat.Dense) error {
	if err := estimator.CheckXY(x, y); err != nil {
		return err
	}
	m.x = mat.DenseCopyOf(x)
	m.y = dataset.Labels(y)
	m.classes = estimator.Classes(m.y)
	m.k = m.kernel.resolve(m.x)

	n, _ := m.x.Dims()
	kij := m.trainingKernel(n)
	lambda := m.lambda(n)
	T := m.iterations(n)
	rng := estimator.NewRand(m.seed)

	m.alpha = make([][]float64, len(m.classes))
	m.scale = make([]float64, len(m.classes))
	signs := make([]float64, n)
	for c, class := range m.classes {
		for i, l := range m.y {
			signs[i] = -1
			if l == class {
				signs[i] = 1
			}
		}

		alpha := make([]float64, n)
		var support []int
		for t := 1; t <= T; t++ {
			if err := estimator.CheckContext(ctx, t); err != nil {
				return err
			}
			i := rng.IntN(n)
			s := 0.0
			for _, j := range support {
				s += alpha[j] * signs[j] * kij(j, i)
			}
			if signs[i]*s/(lambda*float64(t)) < 1 {
				if alpha[i] == 0 {
					support = append(support, i)
				}
				alpha[i]++
			}
		}
		for j := range alpha {
			alpha[j] *= signs[j]
		}
		m.alpha[c] = alpha
		m.scale[c] = 1 / (lambda * float64(T))
	}
	return nil
}

// trainingKernel returns K(i, j)+1 over training rows, cached when small.
func (m *KernelClassifier) trainingKernel(n int) func(i, j int) float64 {
	direct := func(i, j int) float64 {
		return m.k(m.x.RawRowView(i), m.x.RawRowView(j)) + 1
	}
	if n > gramLimit {
		return direct
	}
	gram := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			gram.SetSym(i, j, direct(i, j))
		}
	}
	return gram.At
}

// Predict returns the class whose machine scores highest.
func (m *KernelClassifier) Predict(ctx context.Context, x *mat.Dense) ([]float64, error) {
	if m.alpha == nil {
		return nil, estimator.ErrNotFitted
	}
	n, cols := m.x.Dims()
	if err := estimator.CheckFeatures(x, cols); err != nil {
		return nil, err
	}

	rows, _ := x.Dims()
	out := make([]float64, rows)
	kv := make([]float64, n)
	scores := make([]float64, len(m.classes))
	for i := 0; i < rows; i++ {
		if err := estimator.CheckContext(ctx, i); err != nil {
			return nil, err
		}
		q := x.RawRowView(i)
		for j := 0; j < n; j++ {
			kv[j] = math.NaN()
		}
		for c := range m.classes {
			s := 0.0
			for j, a := range m.alpha[c] {
				if a == 0 {
					continue
				}
				if math.IsNaN(kv[j]) {
					kv[j] = m.k(m.x.RawRowView(j), q) + 1
				}
				s += a * kv[j]
			}
			scores[c] = s * m.scale[c]
		}
		out[i] = m.classes[estimator.Argmax(scores)]
	}
	return out, nil
}

// Evaluate reports mean accuracy.
func (m *KernelClassifier) Evaluate(ctx context.Context, x, y *mat.Dense) (map[string]float64, error) {
	return estimator.Score(ctx, m, x, y)
}
