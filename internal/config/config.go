// Package config holds compiler options and their facet.yaml form. Flag
// values override file values, file values override @meta declarations, and
// @meta falls back to built-in defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Options configure one compile.
type Options struct {
	// Budget is the global token budget. Zero defers to the document's
	// @meta budget, then the allocator default.
	Budget int `yaml:"budget"`

	// GasLimit bounds pipeline evaluation. Zero defers to @meta
	// gas_limit, then the engine default.
	GasLimit int64 `yaml:"gas_limit"`

	// Roots are additional import roots beyond the input file's
	// directory.
	Roots []string `yaml:"roots"`

	// Pretty toggles cosmetic indentation of the canonical output.
	Pretty bool `yaml:"pretty"`

	// Inputs supply values for input directives, keyed by entry name.
	Inputs map[string]string `yaml:"inputs"`
}

// DefaultOptions returns the zero configuration: every limit defers to the
// document or the built-in defaults.
func DefaultOptions() *Options {
	return &Options{
		Inputs: map[string]string{},
	}
}

// Load reads a facet.yaml options file over the defaults.
func Load(path string) (*Options, error) {
	opts := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if opts.Inputs == nil {
		opts.Inputs = map[string]string{}
	}
	return opts, nil
}

// LoadIfPresent reads the options file when it exists and returns defaults
// otherwise.
func LoadIfPresent(path string) (*Options, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultOptions(), nil
	}
	return Load(path)
}
