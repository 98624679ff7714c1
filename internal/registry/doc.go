// Package registry provides the closed mapping from a configuration's model
// type tag to the constructor that builds the matching estimator.
//
// Estimator families live in the modules/ tree. Each exposes a Module that
// registers its constructors at startup; a tag that nobody registered is
// rejected with ErrUnknownModelType before any data is fitted.
package registry
