// Package config defines the configuration document shared by the sweep
// generator and the runner: the dataset block, the model block with its
// architecture and per-phase hyperparameters, and the results block that a
// run writes back.
//
// A Config keeps the raw JSON it was loaded from. Saving only replaces the
// fields a run owns, so keys this package knows nothing about survive a
// load/save cycle untouched.
package config
