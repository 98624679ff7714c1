// Package runner executes a single configuration: it loads the dataset,
// builds the declared model, trains and evaluates it, and writes the
// results back into the configuration file.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/vk/hpsweep/internal/config"
	"github.com/vk/hpsweep/internal/ctxlog"
	"github.com/vk/hpsweep/internal/dataset"
	"github.com/vk/hpsweep/internal/registry"
)

// ErrTrainingFailure wraps any error raised while fitting or evaluating a model.
var ErrTrainingFailure = errors.New("training failed")

// Result keys written by every run.
const (
	TimeKey  = "time"
	ScoreKey = "acc"
)

// Options controls how a Runner prepares data and reports.
type Options struct {
	// Root is the project directory holding data/<id>/{train,test}.csv.
	Root string
	// OneHot expands label columns to one indicator column per class.
	OneHot bool
	// Verbose prints each updated configuration to Output.
	Verbose bool
	Output  io.Writer
	// Rand shuffles loaded datasets. A nil Rand uses a randomly seeded source.
	Rand *rand.Rand
	// Train and Test, when set, are used as given instead of reading CSV
	// files, and are not shuffled.
	Train *dataset.Split
	Test  *dataset.Split
}

// Runner runs configurations against a registry of model types. It is safe
// for concurrent use when each call runs a different configuration file.
type Runner struct {
	registry *registry.Registry
	opts     Options

	mu sync.Mutex // guards opts.Rand
}

// Outcome describes a finished run.
type Outcome struct {
	ConfigPath string
	Config     *config.Config
	Family     registry.Family
	Scores     map[string]float64
	Duration   time.Duration
}

// New creates a Runner.
func New(reg *registry.Registry, opts Options) *Runner {
	if opts.Output == nil {
		opts.Output = io.Discard
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Runner{registry: reg, opts: opts}
}

// Run executes the configuration at path and saves it with results filled in.
// Any failure aborts the run and leaves the file untouched.
func (r *Runner) Run(ctx context.Context, path string) (*Outcome, error) {
	logger := ctxlog.FromContext(ctx).With("config", path)
	logger.Debug("Run started.")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	trainPath, testPath := dataset.Paths(r.opts.Root, cfg.Dataset.ID)
	train, err := r.split(trainPath, r.opts.Train)
	if err != nil {
		return nil, err
	}
	cfg.Dataset.Instances = train.Rows()
	cfg.Dataset.Features = train.Features()
	logger.Debug("Training data loaded.", "dataset", cfg.Dataset.ID, "instances", cfg.Dataset.Instances, "features", cfg.Dataset.Features)

	est, family, err := r.registry.Build(cfg.Model.Type, registry.Spec{
		NumFeatures:     train.Features(),
		Architecture:    cfg.Model.Architecture,
		Hyperparameters: cfg.Model.Hyperparameters,
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("Model built.", "type", cfg.Model.Type, "family", family)

	start := time.Now()
	if err := est.Fit(ctx, train.X, train.Y); err != nil {
		return nil, fmt.Errorf("%w: fitting %s: %w", ErrTrainingFailure, cfg.Model.Type, err)
	}
	elapsed := time.Since(start)
	cfg.Results[TimeKey] = elapsed.Seconds()
	logger.Debug("Model fitted.", "duration", elapsed)

	test, err := r.split(testPath, r.opts.Test)
	if err != nil {
		return nil, err
	}

	scores, err := est.Evaluate(ctx, test.X, test.Y)
	if err != nil {
		return nil, fmt.Errorf("%w: evaluating %s: %w", ErrTrainingFailure, cfg.Model.Type, err)
	}
	switch family {
	case registry.FamilyClassical:
		cfg.Results[ScoreKey] = scores[registry.ScoreKey]
	default:
		for name, v := range scores {
			cfg.Results[name] = v
		}
	}

	if r.opts.Verbose {
		doc, err := cfg.Encode()
		if err != nil {
			return nil, err
		}
		if _, err := r.opts.Output.Write(doc); err != nil {
			return nil, fmt.Errorf("failed to print configuration: %w", err)
		}
	}

	if err := cfg.Save(path); err != nil {
		return nil, err
	}

	logger.Info("Run finished.", "type", cfg.Model.Type, "time", elapsed.Seconds(), "scores", scores)
	return &Outcome{
		ConfigPath: path,
		Config:     cfg,
		Family:     family,
		Scores:     scores,
		Duration:   elapsed,
	}, nil
}

// split returns the pre-split data when given, otherwise reads, shuffles
// and splits the CSV file for the dataset.
func (r *Runner) split(path string, given *dataset.Split) (*dataset.Split, error) {
	if given != nil {
		return given, nil
	}

	m, err := dataset.LoadCSV(path)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	dataset.Shuffle(m, r.opts.Rand)
	r.mu.Unlock()

	return dataset.SplitLabels(m, r.opts.OneHot)
}
