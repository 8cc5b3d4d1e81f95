package postprocessors

import (
	"strconv"
	"strings"

	"github.com/custodia-labs/kcache/internal/core/ports/driven"
	"github.com/custodia-labs/kcache/internal/postprocessors/dedupe"
	"github.com/custodia-labs/kcache/internal/postprocessors/structure"
)

// RegisterDefaults registers all built-in processors with the registry.
// A nil structurer makes "structure" a pass-through.
func RegisterDefaults(r *Registry, structurer driven.Structurer) {
	r.Register("structure", func(cfg map[string]any) (driven.TextProcessor, error) {
		return structure.New(structurer), nil
	})
	r.Register("dedupe", buildDedupe)
}

// buildDedupe creates a duplicate-block processor from generic config.
// Supported config keys:
//   - dedupe_block_sizes ([]int): block sizes tried in order (default: 4,6,8,3,5,2)
func buildDedupe(cfg map[string]any) (driven.TextProcessor, error) {
	var opts []dedupe.Option

	if sizes := getIntSliceFromConfig(cfg, "dedupe_block_sizes"); len(sizes) > 0 {
		opts = append(opts, dedupe.WithBlockSizes(sizes...))
	}

	return dedupe.New(opts...), nil
}

// getIntFromValue converts numeric types that may come from TOML/JSON parsing.
func getIntFromValue(val any) (int, bool) {
	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	default:
		return 0, false
	}
}

// getIntSliceFromConfig safely extracts an int slice from generic config map.
func getIntSliceFromConfig(cfg map[string]any, key string) []int {
	val, ok := cfg[key]
	if !ok {
		return nil
	}

	switch v := val.(type) {
	case []int:
		return v
	case []string:
		out := make([]int, 0, len(v))
		for _, item := range v {
			if n, ok := getIntFromValue(item); ok && n > 0 {
				out = append(out, n)
			}
		}
		return out
	case []any:
		out := make([]int, 0, len(v))
		for _, item := range v {
			if n, ok := getIntFromValue(item); ok && n > 0 {
				out = append(out, n)
			}
		}
		return out
	default:
		return nil
	}
}
