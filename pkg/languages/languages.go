// Package languages bundles the grammars shipped with refract-tokenizer.
package languages

import (
	"embed"
	"sync"

	"github.com/pkg/errors"

	"github.com/spicery/refract-tokenizer/pkg/tokenizer"
)

//go:embed grammars/*.yaml
var grammarFS embed.FS

const grammarGlob = "grammars/*.yaml"

// Load registers the built-in grammars with reg. Languages already
// registered under the same names are left alone.
func Load(reg *tokenizer.Registry) error {
	if err := tokenizer.LoadFS(reg, grammarFS, grammarGlob); err != nil {
		return errors.Wrap(err, "loading built-in grammars")
	}
	return nil
}

// NewRegistry returns a registry holding the built-in grammars.
func NewRegistry(opts ...tokenizer.RegistryOption) (*tokenizer.Registry, error) {
	reg := tokenizer.NewRegistry(opts...)
	if err := Load(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

var (
	defaultOnce     sync.Once
	defaultRegistry *tokenizer.Registry
)

// Default returns a process-wide registry holding the built-in grammars.
// Callers may add languages to it during start-up.
func Default() *tokenizer.Registry {
	defaultOnce.Do(func() {
		reg, err := NewRegistry()
		if err != nil {
			panic("Invalid built-in grammars: " + err.Error())
		}
		defaultRegistry = reg
	})
	return defaultRegistry
}

// Files returns the names of the built-in grammar files.
func Files() []string {
	entries, err := grammarFS.ReadDir("grammars")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
