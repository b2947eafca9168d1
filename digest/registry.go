package digest

import "fmt"

// RegistryConfig selects the capability set of a Registry.
type RegistryConfig struct {
	// Legacy enables Adler-32, MD5 and SHA-1.
	Legacy bool
}

// Registry resolves Digest header algorithm identifiers. A Registry is
// immutable and safe for concurrent use.
//
// Algorithms outside the enabled set are indistinguishable from unknown
// names: Resolve reports no match for them.
type Registry struct {
	legacy bool
}

// DefaultRegistry enables the baseline algorithms. Legacy algorithms are
// enabled only when built with the digest_legacy tag.
var DefaultRegistry = NewRegistry(RegistryConfig{Legacy: legacyBuild})

// NewRegistry creates a Registry for the given configuration.
func NewRegistry(cfg RegistryConfig) *Registry {
	return &Registry{legacy: cfg.Legacy}
}

// Enabled reports whether alg is part of the registry's capability set.
func (r *Registry) Enabled(alg Algorithm) bool {
	info, ok := alg.info()
	if !ok {
		return false
	}

	return !info.legacy || r.legacy
}

// Resolve matches ident case-insensitively against the canonical names and
// aliases of the enabled algorithms.
func (r *Registry) Resolve(ident string) (Algorithm, bool) {
	for i := range algorithms {
		alg := Algorithm(i)
		if r.Enabled(alg) && alg.matches(ident) {
			return alg, true
		}
	}

	return AlgorithmUnknown, false
}

// Algorithms returns the enabled algorithms in registry order.
func (r *Registry) Algorithms() []Algorithm {
	var out []Algorithm

	for i := range algorithms {
		if alg := Algorithm(i); r.Enabled(alg) {
			out = append(out, alg)
		}
	}

	return out
}

// ParseAlgorithms resolves every name in order. It returns
// ErrUnsupportedDigest naming the first identifier that does not resolve.
func (r *Registry) ParseAlgorithms(names []string) ([]Algorithm, error) {
	out := make([]Algorithm, 0, len(names))

	for _, name := range names {
		alg, ok := r.Resolve(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedDigest, name)
		}

		out = append(out, alg)
	}

	return out, nil
}

// registryOrDefault lets configuration structs leave Registry nil.
func registryOrDefault(r *Registry) *Registry {
	if r == nil {
		return DefaultRegistry
	}

	return r
}
