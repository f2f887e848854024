package memory

import (
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/custodia-labs/devrag-cli/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore keeps configuration in process memory under the same flat
// dot keys the TOML store uses, so "llm.model" names the model key of the
// [llm] table. Nothing is persisted. The app bootstrap accepts it in place
// of the file store, which is how tests run the full stack offline.
type ConfigStore struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewConfigStore creates a store holding seed. Nested maps in seed are
// flattened into dot keys.
func NewConfigStore(seed ...map[string]any) *ConfigStore {
	s := &ConfigStore{values: make(map[string]any)}
	for _, m := range seed {
		for k, v := range m {
			s.put(k, v)
		}
	}
	return s
}

// put stores value under key. It expects the write lock or exclusive
// access.
func (s *ConfigStore) put(key string, value any) {
	nested, ok := value.(map[string]any)
	if !ok {
		s.values[key] = value
		return
	}
	for k, v := range nested {
		s.put(key+"."+k, v)
	}
}

// Get returns the raw value of key.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.values[key]
	return val, ok
}

// GetString returns key as a string. Numbers and booleans are not
// formatted.
func (s *ConfigStore) GetString(key string) string {
	str, _ := s.value(key).(string)
	return str
}

// GetInt returns key as an int. Whole floats and numeric strings are
// accepted, as when a value was set from a flag.
func (s *ConfigStore) GetInt(key string) int {
	f, ok := number(s.value(key))
	if !ok || f != float64(int(f)) {
		return 0
	}
	return int(f)
}

// GetFloat returns key as a float64.
func (s *ConfigStore) GetFloat(key string) float64 {
	f, _ := number(s.value(key))
	return f
}

// GetBool returns key as a bool. "true" and "false" strings are accepted.
func (s *ConfigStore) GetBool(key string) bool {
	switch v := s.value(key).(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

// GetStringSlice returns key as a list. Non-string items are dropped and a
// comma-separated string is split.
func (s *ConfigStore) GetStringSlice(key string) []string {
	switch v := s.value(key).(type) {
	case []string:
		return slices.Clone(v)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	case string:
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	default:
		return nil
	}
}

// Keys returns all set keys in sorted order.
func (s *ConfigStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.values))
}

// Set stores value under key. A map value sets one key per leaf.
func (s *ConfigStore) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(key, value)
	return nil
}

// Save is a no-op.
func (s *ConfigStore) Save() error {
	return nil
}

// Load is a no-op.
func (s *ConfigStore) Load() error {
	return nil
}

// Path returns ":memory:".
func (s *ConfigStore) Path() string {
	return ":memory:"
}

func (s *ConfigStore) value(key string) any {
	v, _ := s.Get(key)
	return v
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
