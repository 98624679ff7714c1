// Package tree provides DecisionTreeClassifier, a CART tree grown greedily
// on axis-aligned threshold splits.
package tree

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/vk/hpsweep/internal/config"
	"github.com/vk/hpsweep/internal/dataset"
	"github.com/vk/hpsweep/internal/estimator"
	"github.com/vk/hpsweep/internal/registry"
	"gonum.org/v1/gonum/mat"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers DecisionTreeClassifier with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.Register("DecisionTreeClassifier", &registry.RegisteredModel{Family: registry.FamilyClassical, Constructor: New})
}

type criterion func(counts []float64, total float64) float64

func gini(counts []float64, total float64) float64 {
	if total == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range counts {
		p := c / total
		sum += p * p
	}
	return 1 - sum
}

func entropy(counts []float64, total float64) float64 {
	if total == 0 {
		return 0
	}
	h := 0.0
	for _, c := range counts {
		if c > 0 {
			p := c / total
			h -= p * math.Log2(p)
		}
	}
	return h
}

type node struct {
	leaf      bool
	class     int
	feature   int
	threshold float64
	left      *node
	right     *node
}

// Classifier is a fitted or unfitted decision tree.
type Classifier struct {
	impurity        criterion
	maxDepth        int // 0 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int

	classes  []float64
	features int
	root     *node
}

// New builds a DecisionTreeClassifier from the compile phase options.
func New(spec registry.Spec) (registry.Estimator, error) {
	p := spec.Phase(config.PhaseCompile)
	c := &Classifier{}

	name, err := p.String("criterion", "gini")
	if err != nil {
		return nil, err
	}
	switch name {
	case "gini":
		c.impurity = gini
	case "entropy", "log_loss":
		c.impurity = entropy
	default:
		return nil, fmt.Errorf("%w: criterion must be \"gini\" or \"entropy\", got %q", config.ErrMalformedConfig, name)
	}

	if c.maxDepth, err = p.Int("max_depth", 0); err != nil {
		return nil, err
	}
	if c.minSamplesSplit, err = p.Int("min_samples_split", 2); err != nil {
		return nil, err
	}
	if c.minSamplesLeaf, err = p.Int("min_samples_leaf", 1); err != nil {
		return nil, err
	}
	if c.maxDepth < 0 || c.minSamplesSplit < 2 || c.minSamplesLeaf < 1 {
		return nil, fmt.Errorf("%w: need max_depth >= 0, min_samples_split >= 2 and min_samples_leaf >= 1", config.ErrMalformedConfig)
	}
	return c, nil
}

// Fit grows the tree.
func (c *Classifier) Fit(ctx context.Context, x, y *mat.Dense) error {
	if err := estimator.CheckXY(x, y); err != nil {
		return err
	}
	labels := dataset.Labels(y)
	c.classes = estimator.Classes(labels)
	rows, cols := x.Dims()
	c.features = cols

	index := make(map[float64]int, len(c.classes))
	for i, class := range c.classes {
		index[class] = i
	}
	target := make([]int, rows)
	for i, l := range labels {
		target[i] = index[l]
	}
	samples := make([]int, rows)
	for i := range samples {
		samples[i] = i
	}

	g := &grower{c: c, x: x, y: target, ctx: ctx}
	root, err := g.grow(samples, 1)
	if err != nil {
		return err
	}
	c.root = root
	return nil
}

type grower struct {
	c     *Classifier
	x     *mat.Dense
	y     []int
	ctx   context.Context
	nodes int
}

func (g *grower) counts(samples []int) []float64 {
	counts := make([]float64, len(g.c.classes))
	for _, s := range samples {
		counts[g.y[s]]++
	}
	return counts
}

func majority(counts []float64) int {
	best := 0
	for i, v := range counts {
		if v > counts[best] {
			best = i
		}
	}
	return best
}

func (g *grower) grow(samples []int, depth int) (*node, error) {
	g.nodes++
	if err := estimator.CheckContext(g.ctx, g.nodes); err != nil {
		return nil, err
	}

	counts := g.counts(samples)
	total := float64(len(samples))
	leaf := &node{leaf: true, class: majority(counts)}
	parent := g.c.impurity(counts, total)

	if parent == 0 || len(samples) < g.c.minSamplesSplit || (g.c.maxDepth > 0 && depth > g.c.maxDepth) {
		return leaf, nil
	}

	feature, threshold, ok := g.bestSplit(samples, parent)
	if !ok {
		return leaf, nil
	}

	var left, right []int
	for _, s := range samples {
		if g.x.At(s, feature) <= threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	n := &node{feature: feature, threshold: threshold}
	var err error
	if n.left, err = g.grow(left, depth+1); err != nil {
		return nil, err
	}
	if n.right, err = g.grow(right, depth+1); err != nil {
		return nil, err
	}
	return n, nil
}

// bestSplit scans every feature for the threshold with the largest
// impurity decrease. Thresholds sit midway between consecutive distinct
// values. A split that does not decrease impurity is still taken when it is
// the only kind available, so XOR-like layouts can be separated deeper down.
func (g *grower) bestSplit(samples []int, parent float64) (int, float64, bool) {
	total := float64(len(samples))
	bestGain, bestFeature, bestThreshold := math.Inf(-1), -1, 0.0
	order := make([]int, len(samples))
	k := len(g.c.classes)

	for f := 0; f < g.c.features; f++ {
		copy(order, samples)
		sort.Slice(order, func(a, b int) bool { return g.x.At(order[a], f) < g.x.At(order[b], f) })

		left := make([]float64, k)
		right := g.counts(samples)
		for i := 0; i < len(order)-1; i++ {
			cls := g.y[order[i]]
			left[cls]++
			right[cls]--

			v, next := g.x.At(order[i], f), g.x.At(order[i+1], f)
			if v == next {
				continue
			}
			nl, nr := float64(i+1), total-float64(i+1)
			if int(nl) < g.c.minSamplesLeaf || int(nr) < g.c.minSamplesLeaf {
				continue
			}
			gain := parent - (nl/total)*g.c.impurity(left, nl) - (nr/total)*g.c.impurity(right, nr)
			if gain > bestGain+1e-12 {
				bestGain, bestFeature, bestThreshold = gain, f, v+(next-v)/2
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

// Depth returns the number of levels in the fitted tree.
func (c *Classifier) Depth() int {
	var walk func(n *node) int
	walk = func(n *node) int {
		if n == nil || n.leaf {
			return 1
		}
		return 1 + max(walk(n.left), walk(n.right))
	}
	if c.root == nil {
		return 0
	}
	return walk(c.root)
}

// Predict walks each row down the tree.
func (c *Classifier) Predict(ctx context.Context, x *mat.Dense) ([]float64, error) {
	if c.root == nil {
		return nil, estimator.ErrNotFitted
	}
	if err := estimator.CheckFeatures(x, c.features); err != nil {
		return nil, err
	}
	rows, _ := x.Dims()
	out := make([]float64, rows)
	for i := 0; i < rows; i++ {
		if err := estimator.CheckContext(ctx, i); err != nil {
			return nil, err
		}
		n := c.root
		for !n.leaf {
			if x.At(i, n.feature) <= n.threshold {
				n = n.left
			} else {
				n = n.right
			}
		}
		out[i] = c.classes[n.class]
	}
	return out, nil
}

// Evaluate reports mean accuracy.
func (c *Classifier) Evaluate(ctx context.Context, x, y *mat.Dense) (map[string]float64, error) {
	return estimator.Score(ctx, c, x, y)
}
