// Package sequential provides the Sequential feed-forward network: a stack
// of dense layers trained with mini-batch gradient descent.
package sequential

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/vk/hpsweep/internal/config"
	"github.com/vk/hpsweep/internal/ctxlog"
	"github.com/vk/hpsweep/internal/dataset"
	"github.com/vk/hpsweep/internal/estimator"
	"github.com/vk/hpsweep/internal/registry"
	"gonum.org/v1/gonum/mat"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the Sequential model type with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.Register("Sequential", &registry.RegisteredModel{Family: registry.FamilyNetwork, Constructor: New})
}

// LossKey is the Evaluate key holding the loss.
const LossKey = "loss"

// Network is a compiled Sequential model.
type Network struct {
	features int
	layers   []*dense

	lossName string
	loss     loss
	metrics  []string
	opt      optimizer

	epochs    int
	batchSize int
	shuffle   bool
	verbose   bool
	rng       *rand.Rand

	fitted  bool
	history []float64
}

// New builds and compiles a network. Layer and optimizer options come from
// the build phase overlaid with compile; training options from fit.
func New(spec registry.Spec) (registry.Estimator, error) {
	opts := spec.Phase(config.PhaseBuild).Merge(spec.Phase(config.PhaseCompile))
	arch := spec.Architecture

	if spec.NumFeatures < 1 {
		return nil, fmt.Errorf("network needs at least one input feature, got %d", spec.NumFeatures)
	}
	if len(arch.Dense) == 0 {
		return nil, fmt.Errorf("%w: architecture declares no Dense layers", config.ErrMalformedConfig)
	}
	if len(arch.Dense) != len(arch.Activation) {
		return nil, fmt.Errorf("%w: architecture has %d Dense widths but %d activations",
			config.ErrMalformedConfig, len(arch.Dense), len(arch.Activation))
	}

	seed, err := opts.Int("seed", 1)
	if err != nil {
		return nil, err
	}
	n := &Network{features: spec.NumFeatures, rng: estimator.NewRand(seed)}

	n.layers = append(n.layers, newDense(spec.NumFeatures, spec.NumFeatures, activations["linear"], n.rng))
	in := spec.NumFeatures
	for i, units := range arch.Dense {
		act, ok := activations[arch.Activation[i]]
		if !ok {
			return nil, fmt.Errorf("%w: unknown activation %q (known: %s)",
				config.ErrMalformedConfig, arch.Activation[i], known(activations))
		}
		if units < 1 {
			return nil, fmt.Errorf("%w: Dense layer %d has %d units", config.ErrMalformedConfig, i, units)
		}
		n.layers = append(n.layers, newDense(in, units, act, n.rng))
		in = units
	}

	if err := n.compile(opts); err != nil {
		return nil, err
	}
	if err := n.configureFit(spec.Phase(config.PhaseFit)); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Network) compile(opts config.Params) error {
	name, err := opts.String("optimizer", "adam")
	if err != nil {
		return err
	}
	name = strings.ToLower(name)
	lr, ok := defaultLearningRates[name]
	if !ok {
		return fmt.Errorf("%w: unknown optimizer %q (known: %s)", config.ErrMalformedConfig, name, known(defaultLearningRates))
	}
	if lr, err = opts.Float("lr", lr); err != nil {
		return err
	}
	if lr, err = opts.Float("learning_rate", lr); err != nil {
		return err
	}
	if lr <= 0 {
		return fmt.Errorf("%w: learning rate must be positive, got %v", config.ErrMalformedConfig, lr)
	}
	o := optimizerOptions{name: name, lr: lr}
	if o.momentum, err = opts.Float("momentum", 0); err != nil {
		return err
	}
	if o.nesterov, err = opts.Bool("nesterov", false); err != nil {
		return err
	}
	n.opt = newOptimizer(o)

	defLoss := "categorical_crossentropy"
	if n.outputs() == 1 {
		defLoss = "binary_crossentropy"
	}
	if n.lossName, err = opts.String("loss", defLoss); err != nil {
		return err
	}
	if n.loss, ok = lookupLoss(n.lossName); !ok {
		return fmt.Errorf("%w: unknown loss %q", config.ErrMalformedConfig, n.lossName)
	}

	if n.metrics, err = opts.Strings("metrics", nil); err != nil {
		return err
	}
	for _, m := range n.metrics {
		if _, ok := metrics[m]; !ok {
			return fmt.Errorf("%w: unknown metric %q (known: %s)", config.ErrMalformedConfig, m, known(metrics))
		}
	}
	return nil
}

func (n *Network) configureFit(fit config.Params) error {
	var err error
	if n.epochs, err = fit.Int("epochs", 1); err != nil {
		return err
	}
	if n.batchSize, err = fit.Int("batch_size", 32); err != nil {
		return err
	}
	if n.shuffle, err = fit.Bool("shuffle", true); err != nil {
		return err
	}
	// Keras accepts 0, 1 or 2 here.
	if fit.Has("verbose") {
		if n.verbose, err = fit.Bool("verbose", false); err != nil {
			v, ierr := fit.Int("verbose", 0)
			if ierr != nil {
				return err
			}
			n.verbose = v > 0
		}
	}
	if n.epochs < 0 {
		return fmt.Errorf("%w: epochs must be non-negative, got %d", config.ErrMalformedConfig, n.epochs)
	}
	if n.batchSize < 1 {
		return fmt.Errorf("%w: batch_size must be positive, got %d", config.ErrMalformedConfig, n.batchSize)
	}
	return nil
}

func (n *Network) outputs() int {
	return n.layers[len(n.layers)-1].units()
}

// targets reconciles y with the output layer. A label column feeding a
// wider output layer is one-hot encoded.
func (n *Network) targets(y *mat.Dense) (*mat.Dense, error) {
	_, cols := y.Dims()
	out := n.outputs()
	if cols == out {
		return y, nil
	}
	if cols == 1 {
		labels := mat.Col(nil, 0, y)
		t, err := dataset.OneHot(labels)
		if err != nil {
			return nil, err
		}
		r, c := t.Dims()
		if c > out {
			return nil, fmt.Errorf("labels span %d classes but the output layer has %d units", c, out)
		}
		padded := mat.NewDense(r, out, nil)
		padded.Slice(0, r, 0, c).(*mat.Dense).Copy(t)
		return padded, nil
	}
	return nil, fmt.Errorf("output layer has %d units but labels have %d columns", out, cols)
}

func (n *Network) predict(x *mat.Dense) *mat.Dense {
	a := x
	for _, l := range n.layers {
		a = l.forward(a)
	}
	return a
}

func (n *Network) lossOf(pred, target *mat.Dense) float64 {
	return meanOver(pred, target, n.loss.value)
}

// Fit trains for the configured number of epochs, recording the mean
// training loss of each epoch.
func (n *Network) Fit(ctx context.Context, x, y *mat.Dense) error {
	logger := ctxlog.FromContext(ctx)
	if err := estimator.CheckXY(x, y); err != nil {
		return err
	}
	if err := estimator.CheckFeatures(x, n.features); err != nil {
		return err
	}
	t, err := n.targets(y)
	if err != nil {
		return err
	}

	rows, _ := x.Dims()
	order := make([]int, rows)
	for i := range order {
		order[i] = i
	}

	var params []param
	for _, l := range n.layers {
		params = append(params, l.params()...)
	}

	n.history = n.history[:0]
	for epoch := 1; epoch <= n.epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if n.shuffle {
			n.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		}

		total := 0.0
		for start := 0; start < rows; start += n.batchSize {
			end := min(start+n.batchSize, rows)
			bx, bt := gather(x, order[start:end]), gather(t, order[start:end])

			pred := n.predict(bx)
			total += n.lossOf(pred, bt) * float64(end-start)
			n.backward(pred, bt)
			n.opt.step(params)
		}

		epochLoss := total / float64(rows)
		n.history = append(n.history, epochLoss)
		if n.verbose {
			logger.Debug("Epoch finished.", "epoch", epoch, "epochs", n.epochs, "loss", epochLoss)
		}
	}
	n.fitted = true
	return nil
}

func (n *Network) backward(pred, target *mat.Dense) {
	r, c := pred.Dims()
	grad := mat.NewDense(r, c, nil)
	scale := 1 / float64(r)
	for i := 0; i < r; i++ {
		row := grad.RawRowView(i)
		n.loss.grad(pred.RawRowView(i), target.RawRowView(i), row)
		for j := range row {
			row[j] *= scale
		}
	}
	for i := len(n.layers) - 1; i >= 0; i-- {
		grad = n.layers[i].backward(grad)
	}
}

func gather(m *mat.Dense, idx []int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for i, r := range idx {
		out.SetRow(i, m.RawRowView(r))
	}
	return out
}

// Evaluate returns the loss plus every compiled metric under its declared name.
func (n *Network) Evaluate(_ context.Context, x, y *mat.Dense) (map[string]float64, error) {
	if !n.fitted {
		return nil, estimator.ErrNotFitted
	}
	if err := estimator.CheckXY(x, y); err != nil {
		return nil, err
	}
	if err := estimator.CheckFeatures(x, n.features); err != nil {
		return nil, err
	}
	t, err := n.targets(y)
	if err != nil {
		return nil, err
	}

	pred := n.predict(x)
	out := map[string]float64{LossKey: n.lossOf(pred, t)}
	for _, m := range n.metrics {
		out[m] = metrics[m](pred, t)
	}
	return out, nil
}

// History returns the mean training loss of each epoch of the last Fit.
func (n *Network) History() []float64 {
	return append([]float64(nil), n.history...)
}

func known[V any](m map[string]V) string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
