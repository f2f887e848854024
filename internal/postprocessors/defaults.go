package postprocessors

import (
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driven"
	"github.com/custodia-labs/devrag-cli/internal/postprocessors/chunker"
	"github.com/custodia-labs/devrag-cli/internal/postprocessors/symbols"
)

// RegisterDefaults registers all built-in processors with the registry.
func RegisterDefaults(r *Registry) {
	r.Register("chunker", buildChunker)
	r.Register("symbols", buildSymbols)
}

// NewDefaultRegistry returns a registry with the built-in processors.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterDefaults(r)
	return r
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - max_size (int): maximum bytes per chunk (default: 1000)
//   - overlap (int): bytes shared between consecutive chunks (default: 200)
//   - lookback (int): bytes before the limit searched for a boundary (default: 200)
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if size, ok := getIntFromConfig(cfg, "max_size"); ok {
		opts = append(opts, chunker.WithMaxSize(size))
	}
	if overlap, ok := getIntFromConfig(cfg, "overlap"); ok {
		opts = append(opts, chunker.WithOverlap(overlap))
	}
	if lookback, ok := getIntFromConfig(cfg, "lookback"); ok {
		opts = append(opts, chunker.WithLookback(lookback))
	}

	return chunker.New(opts...)
}

// buildSymbols creates the symbol annotation processor.
// Supported config keys:
//   - max_per_kind (int): names kept per symbol kind and chunk (default: 10)
func buildSymbols(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []symbols.Option
	if limit, ok := getIntFromConfig(cfg, "max_per_kind"); ok {
		opts = append(opts, symbols.WithMaxPerKind(limit))
	}
	return symbols.New(opts...), nil
}

// getIntFromConfig extracts an int from a generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) (int, bool) {
	val, ok := cfg[key]
	if !ok {
		return 0, false
	}

	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
