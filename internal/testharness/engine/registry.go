package engine

import (
	"fmt"
	"slices"
	"strings"
)

// Registry holds scenarios in registration order.
type Registry struct {
	scenarios []*Scenario
	byName    map[string]*Scenario
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Scenario)}
}

// Register adds scenarios. Names must be non-empty and unique; nothing is
// added if any scenario is rejected.
func (r *Registry) Register(scenarios ...*Scenario) error {
	seen := make(map[string]bool, len(scenarios))
	for _, s := range scenarios {
		if s == nil || s.Run == nil {
			return fmt.Errorf("scenario %q has no script", nameOf(s))
		}
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("scenario name is required")
		}
		if _, exists := r.byName[s.Name]; exists || seen[s.Name] {
			return fmt.Errorf("%w: %q", ErrDuplicateScenario, s.Name)
		}
		seen[s.Name] = true
	}
	for _, s := range scenarios {
		r.scenarios = append(r.scenarios, s)
		r.byName[s.Name] = s
	}
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(scenarios ...*Scenario) {
	if err := r.Register(scenarios...); err != nil {
		panic(err)
	}
}

// Lookup returns the named scenario.
func (r *Registry) Lookup(name string) (*Scenario, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// All returns every scenario in registration order.
func (r *Registry) All() []*Scenario {
	return slices.Clone(r.scenarios)
}

// Len returns the number of registered scenarios.
func (r *Registry) Len() int {
	return len(r.scenarios)
}

func nameOf(s *Scenario) string {
	if s == nil {
		return ""
	}
	return s.Name
}

// Selection restricts which scenarios run. A zero Selection selects all.
type Selection struct {
	// Names selects scenarios by exact name.
	Names []string

	// Pattern is a comma-separated list of glob patterns ("*" wildcards)
	// matched against names.
	Pattern string

	// Tags selects scenarios carrying any of the tags.
	Tags []string

	// ExcludeTags drops scenarios carrying any of the tags.
	ExcludeTags []string
}

// IsZero reports whether the selection selects everything.
func (s Selection) IsZero() bool {
	return len(s.Names) == 0 && strings.TrimSpace(strings.ReplaceAll(s.Pattern, ",", "")) == "" &&
		len(s.Tags) == 0 && len(s.ExcludeTags) == 0
}

// Select returns the selected scenarios in registration order.
func (r *Registry) Select(sel Selection) []*Scenario {
	var out []*Scenario
	names := make(map[string]bool, len(sel.Names))
	for _, n := range sel.Names {
		names[n] = true
	}
	patterns := splitList(sel.Pattern)

	for _, s := range r.scenarios {
		if len(names) > 0 && !names[s.Name] {
			continue
		}
		if len(patterns) > 0 && !matchAny(s.Name, patterns) {
			continue
		}
		if len(sel.Tags) > 0 && !hasAnyTag(s.Tags, sel.Tags) {
			continue
		}
		if len(sel.ExcludeTags) > 0 && hasAnyTag(s.Tags, sel.ExcludeTags) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Unknown returns the names in sel.Names that are not registered.
func (r *Registry) Unknown(sel Selection) []string {
	var out []string
	for _, n := range sel.Names {
		if _, ok := r.byName[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func hasAnyTag(tags, wanted []string) bool {
	for _, w := range wanted {
		if slices.Contains(tags, w) {
			return true
		}
	}
	return false
}

func matchAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if MatchPattern(name, p) {
			return true
		}
	}
	return false
}

// MatchPattern reports whether name matches a glob pattern where "*" matches
// any run of characters. Matching is case-insensitive.
func MatchPattern(name, pattern string) bool {
	name, pattern = strings.ToLower(name), strings.ToLower(pattern)
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return name == pattern
	}

	if !strings.HasPrefix(name, parts[0]) {
		return false
	}
	name = name[len(parts[0]):]

	last := parts[len(parts)-1]
	for _, part := range parts[1 : len(parts)-1] {
		i := strings.Index(name, part)
		if i < 0 {
			return false
		}
		name = name[i+len(part):]
	}
	return strings.HasSuffix(name, last) && len(name) >= len(last)
}
