// Package svm provides the support vector classifiers SVC, NuSVC and
// LinearSVC. All three are trained with the Pegasos stochastic
// sub-gradient method and combine binary machines one-vs-rest.
package svm

import (
	"github.com/vk/hpsweep/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the support vector model types with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.Register("SVC", &registry.RegisteredModel{Family: registry.FamilyClassical, Constructor: NewSVC})
	r.Register("NuSVC", &registry.RegisteredModel{Family: registry.FamilyClassical, Constructor: NewNuSVC})
	r.Register("LinearSVC", &registry.RegisteredModel{Family: registry.FamilyClassical, Constructor: NewLinearSVC})
}
