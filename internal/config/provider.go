package config

import (
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Provider is a read-only key-path lookup over configuration. Missing keys
// yield the supplied default.
type Provider interface {
	Get(path string, def any) any
}

// MapProvider implements Provider over a nested settings map. The map is
// deep-copied on construction so later changes to the source do not leak in.
type MapProvider struct {
	root map[string]any
}

// NewProvider builds a MapProvider from nested settings. Keys are matched
// case-insensitively, the way viper stores them.
func NewProvider(settings map[string]any) *MapProvider {
	return &MapProvider{root: copyMap(settings)}
}

// Get returns the value at a dotted path such as "ai.leads.industries".
func (p *MapProvider) Get(path string, def any) any {
	if p == nil || path == "" {
		return def
	}
	var cur any = p.root
	for _, part := range strings.Split(strings.ToLower(path), ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return def
		}
		cur, ok = m[part]
		if !ok || cur == nil {
			return def
		}
	}
	return cur
}

// String returns the value at path as a string.
func String(p Provider, path, def string) string {
	v, err := cast.ToStringE(p.Get(path, def))
	if err != nil {
		return def
	}
	return v
}

// Strings returns the value at path as a string slice.
func Strings(p Provider, path string, def []string) []string {
	v, err := cast.ToStringSliceE(p.Get(path, def))
	if err != nil || len(v) == 0 {
		return def
	}
	return v
}

// Int returns the value at path as an int.
func Int(p Provider, path string, def int) int {
	v, err := cast.ToIntE(p.Get(path, def))
	if err != nil {
		return def
	}
	return v
}

// Float64 returns the value at path as a float64.
func Float64(p Provider, path string, def float64) float64 {
	v, err := cast.ToFloat64E(p.Get(path, def))
	if err != nil {
		return def
	}
	return v
}

// Bool returns the value at path as a bool.
func Bool(p Provider, path string, def bool) bool {
	v, err := cast.ToBoolE(p.Get(path, def))
	if err != nil {
		return def
	}
	return v
}

// Duration returns the value at path as a time.Duration. Strings such as
// "2500ms" and plain integers (nanoseconds) are accepted.
func Duration(p Provider, path string, def time.Duration) time.Duration {
	v, err := cast.ToDurationE(p.Get(path, def))
	if err != nil {
		return def
	}
	return v
}

// IntMap returns the value at path as a map of ints.
func IntMap(p Provider, path string, def map[string]int) map[string]int {
	raw, err := cast.ToStringMapE(p.Get(path, def))
	if err != nil || len(raw) == 0 {
		return def
	}
	out := make(map[string]int, len(raw))
	for k, v := range raw {
		n, err := cast.ToIntE(v)
		if err != nil {
			continue
		}
		out[k] = n
	}
	return out
}

// StringMap returns the value at path as a map of strings.
func StringMap(p Provider, path string, def map[string]string) map[string]string {
	v, err := cast.ToStringMapStringE(p.Get(path, def))
	if err != nil || len(v) == 0 {
		return def
	}
	return v
}

func copyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[strings.ToLower(k)] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return copyMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = copyValue(t[i])
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case []int:
		return append([]int(nil), t...)
	case map[string]int:
		out := make(map[string]int, len(t))
		for k, n := range t {
			out[k] = n
		}
		return out
	default:
		return v
	}
}
