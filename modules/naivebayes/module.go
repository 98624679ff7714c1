// Package naivebayes provides the naive Bayes classifiers: GaussianNB,
// MultinomialNB, ComplementNB and BernoulliNB.
package naivebayes

import (
	"fmt"

	"github.com/vk/hpsweep/internal/config"
	"github.com/vk/hpsweep/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the naive Bayes model types with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.Register("GaussianNB", &registry.RegisteredModel{Family: registry.FamilyClassical, Constructor: NewGaussian})
	r.Register("MultinomialNB", &registry.RegisteredModel{Family: registry.FamilyClassical, Constructor: NewMultinomial})
	r.Register("ComplementNB", &registry.RegisteredModel{Family: registry.FamilyClassical, Constructor: NewComplement})
	r.Register("BernoulliNB", &registry.RegisteredModel{Family: registry.FamilyClassical, Constructor: NewBernoulli})
}

func alpha(p config.Params) (float64, error) {
	a, err := p.Float("alpha", 1.0)
	if err != nil {
		return 0, err
	}
	if a < 0 {
		return 0, fmt.Errorf("%w: alpha must be non-negative, got %v", config.ErrMalformedConfig, a)
	}
	return a, nil
}
