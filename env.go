package agentbridge

import (
	"maps"
	"slices"
	"strings"
)

// MergeEnv overlays overlay onto base, a list of KEY=VALUE entries such as
// os.Environ(). Overlay keys replace base entries with the same key; the
// result keeps base order followed by new keys in sorted order. Entries in
// base without '=' are preserved unchanged.
func MergeEnv(base []string, overlay map[string]string) []string {
	out := make([]string, 0, len(base)+len(overlay))
	seen := make(map[string]bool, len(overlay))
	for _, kv := range base {
		key, _, ok := strings.Cut(kv, "=")
		if ok {
			if v, override := overlay[key]; override {
				if !seen[key] {
					out = append(out, key+"="+v)
					seen[key] = true
				}
				continue
			}
		}
		out = append(out, kv)
	}
	for _, key := range slices.Sorted(maps.Keys(overlay)) {
		if !seen[key] {
			out = append(out, key+"="+overlay[key])
		}
	}
	return out
}

// ParseEnvAssignments parses KEY=VALUE strings into a map. Entries without
// '=' or with an empty key are reported as invalid.
func ParseEnvAssignments(assignments []string) (map[string]string, []string) {
	env := make(map[string]string, len(assignments))
	var invalid []string
	for _, a := range assignments {
		key, value, ok := strings.Cut(a, "=")
		if !ok || key == "" {
			invalid = append(invalid, a)
			continue
		}
		env[key] = value
	}
	return env, invalid
}
