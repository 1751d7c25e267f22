package fusion

import "strings"

// environment labels describe the setting rather than an object in it.
var environment = map[string]struct{}{
	"sky": {}, "dirt": {}, "grass": {}, "road": {},
	"water": {}, "ground": {}, "sand": {}, "snow": {},
}

// IsEnvironment reports whether label names scenery.
func IsEnvironment(label string) bool {
	_, ok := environment[label]
	return ok
}

// Fuse appends the labels not already expressed by baseline to it:
//
//	<baseline>, with A, B and C nearby, under/around X and Y
//
// Either clause is omitted when it has no labels. When every label is
// redundant the baseline is returned unchanged.
func (f *Filter) Fuse(baseline string, labels []string) string {
	survivors := f.Survivors(baseline, labels)
	if len(survivors) == 0 {
		return baseline
	}

	var objects, scenery []string
	for _, l := range survivors {
		if IsEnvironment(l) {
			scenery = append(scenery, l)
		} else {
			objects = append(objects, l)
		}
	}

	parts := []string{baseline}
	if len(objects) > 0 {
		parts = append(parts, "with "+joinList(objects)+" nearby")
	}
	if len(scenery) > 0 {
		parts = append(parts, "under/around "+joinList(scenery))
	}
	return strings.Join(parts, ", ")
}

// joinList renders items as "a", "a and b" or "a, b and c".
func joinList(items []string) string {
	if len(items) == 1 {
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}
