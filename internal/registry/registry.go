package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/vk/hpsweep/internal/config"
	"gonum.org/v1/gonum/mat"
)

// ErrUnknownModelType is returned when a configuration names a model type
// that has no registered constructor.
var ErrUnknownModelType = errors.New("unknown model type")

// Family groups estimators by how they are evaluated.
type Family int

const (
	// FamilyNetwork models report a set of named metrics.
	FamilyNetwork Family = iota + 1
	// FamilyClassical models report a single accuracy score.
	FamilyClassical
)

func (f Family) String() string {
	switch f {
	case FamilyNetwork:
		return "network"
	case FamilyClassical:
		return "classical"
	}
	return fmt.Sprintf("Family(%d)", int(f))
}

// ScoreKey is the Evaluate key classical estimators report their accuracy under.
const ScoreKey = "score"

// Estimator is the fit/evaluate protocol every model type implements. x
// holds one sample per row; y holds a label column or one-hot rows.
type Estimator interface {
	Fit(ctx context.Context, x, y *mat.Dense) error
	Evaluate(ctx context.Context, x, y *mat.Dense) (map[string]float64, error)
}

// Spec is everything a constructor may read from a configuration.
type Spec struct {
	NumFeatures     int
	Architecture    config.Architecture
	Hyperparameters map[string]config.Params
}

// Phase returns the hyperparameters of one phase, empty when absent.
func (s Spec) Phase(name string) config.Params {
	if p, ok := s.Hyperparameters[name]; ok && p != nil {
		return p
	}
	return config.Params{}
}

// Constructor builds an unfitted estimator.
type Constructor func(spec Spec) (Estimator, error)

// RegisteredModel holds the Go parts of one model type.
type RegisteredModel struct {
	Family      Family
	Constructor Constructor
}

// Module is the interface that all estimator modules must implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds the registered model types for a single application instance.
type Registry struct {
	models map[string]*RegisteredModel
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{models: make(map[string]*RegisteredModel)}
}

// Register binds a model type tag to its constructor.
func (r *Registry) Register(tag string, model *RegisteredModel) {
	if _, exists := r.models[tag]; exists {
		panic(fmt.Sprintf("model type '%s' already registered", tag))
	}
	if model == nil || model.Constructor == nil {
		panic(fmt.Sprintf("model type '%s' registered without a constructor", tag))
	}
	slog.Debug("Registering model type.", "type", tag, "family", model.Family)
	r.models[tag] = model
}

// Build constructs the estimator registered under tag.
func (r *Registry) Build(tag string, spec Spec) (Estimator, Family, error) {
	model, ok := r.models[tag]
	if !ok {
		return nil, 0, fmt.Errorf("%w %q (registered: %s)", ErrUnknownModelType, tag, strings.Join(r.Types(), ", "))
	}
	est, err := model.Constructor(spec)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build %s model: %w", tag, err)
	}
	return est, model.Family, nil
}

// Types returns the registered tags in sorted order.
func (r *Registry) Types() []string {
	tags := make([]string, 0, len(r.models))
	for tag := range r.models {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
