// Package config defines the format-agnostic route manifest model, along
// with the Loader interface for reading it from various sources.
//
// The config.Model is the single source of truth for the scripted renderer
// and the app runner. Concrete loader implementations, such as for HCL,
// live in separate packages.
package config
