package naivebayes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/hpsweep/internal/config"
	"github.com/vk/hpsweep/internal/estimator"
	"github.com/vk/hpsweep/internal/registry"
	"github.com/vk/hpsweep/internal/testutil"
	"gonum.org/v1/gonum/mat"
)

func specWith(compile config.Params) registry.Spec {
	return registry.Spec{Hyperparameters: map[string]config.Params{config.PhaseCompile: compile}}
}

func TestModuleRegistersAllVariants(t *testing.T) {
	t.Parallel()

	r := registry.New()
	(&Module{}).Register(r)
	assert.Equal(t, []string{"BernoulliNB", "ComplementNB", "GaussianNB", "MultinomialNB"}, r.Types())
}

func TestGaussian(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	est, err := NewGaussian(specWith(nil))
	require.NoError(t, err)

	x, y := testutil.Clusters()
	require.NoError(t, est.Fit(ctx, x, y))

	scores, err := est.Evaluate(ctx, x, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, scores[registry.ScoreKey])

	px, py := testutil.ClusterProbes()
	scores, err = est.Evaluate(ctx, px, py)
	require.NoError(t, err)
	assert.Equal(t, 1.0, scores[registry.ScoreKey])
}

func TestGaussian_NotFitted(t *testing.T) {
	t.Parallel()

	est, err := NewGaussian(specWith(nil))
	require.NoError(t, err)
	px, py := testutil.ClusterProbes()
	_, err = est.Evaluate(context.Background(), px, py)
	require.ErrorIs(t, err, estimator.ErrNotFitted)
}

func TestCountModels(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		build   registry.Constructor
		compile config.Params
	}{
		{name: "multinomial", build: NewMultinomial},
		{name: "multinomial small alpha", build: NewMultinomial, compile: config.Params{"alpha": 0.1}},
		{name: "complement", build: NewComplement},
		{name: "complement normalised", build: NewComplement, compile: config.Params{"norm": true}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			est, err := tc.build(specWith(tc.compile))
			require.NoError(t, err)

			x, y := testutil.Counts()
			require.NoError(t, est.Fit(ctx, x, y))

			probes := mat.NewDense(3, 3, []float64{
				7, 0, 1,
				1, 8, 0,
				0, 1, 9,
			})
			scores, err := est.Evaluate(ctx, probes, mat.NewDense(3, 1, []float64{0, 1, 2}))
			require.NoError(t, err)
			assert.Equal(t, 1.0, scores[registry.ScoreKey])
		})
	}
}

func TestCountModels_RejectNegativeFeatures(t *testing.T) {
	t.Parallel()

	est, err := NewMultinomial(specWith(nil))
	require.NoError(t, err)
	x := mat.NewDense(2, 1, []float64{-1, 2})
	y := mat.NewDense(2, 1, []float64{0, 1})
	err = est.Fit(context.Background(), x, y)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-negative")
}

func TestBernoulli(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	est, err := NewBernoulli(specWith(nil))
	require.NoError(t, err)

	x, y := testutil.Counts()
	require.NoError(t, est.Fit(ctx, x, y))

	probes := mat.NewDense(3, 3, []float64{
		3, 0, 0,
		0, 2, 0,
		0, 0, 5,
	})
	scores, err := est.Evaluate(ctx, probes, mat.NewDense(3, 1, []float64{0, 1, 2}))
	require.NoError(t, err)
	assert.Equal(t, 1.0, scores[registry.ScoreKey])
}

func TestOptionErrors(t *testing.T) {
	t.Parallel()

	_, err := NewMultinomial(specWith(config.Params{"alpha": -1.0}))
	require.ErrorIs(t, err, config.ErrMalformedConfig)

	_, err = NewGaussian(specWith(config.Params{"var_smoothing": "tiny"}))
	require.ErrorIs(t, err, config.ErrMalformedConfig)

	_, err = NewComplement(specWith(config.Params{"norm": "yes"}))
	require.ErrorIs(t, err, config.ErrMalformedConfig)
}
