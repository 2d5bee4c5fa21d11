package baseline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// Modified is a key whose live value differs from the baseline.
type Modified struct {
	Key      string `json:"key" yaml:"key"`
	Baseline string `json:"baseline" yaml:"baseline"`
	Current  string `json:"current" yaml:"current"`
}

// Added is a key that exists live but not in the baseline.
type Added struct {
	Key     string `json:"key" yaml:"key"`
	Current string `json:"current" yaml:"current"`
}

// Removed is a key that exists in the baseline but no longer live.
type Removed struct {
	Key      string `json:"key" yaml:"key"`
	Baseline string `json:"baseline" yaml:"baseline"`
}

// Report is the outcome of a baseline diff. Each category is sorted by key.
type Report struct {
	Modified []Modified `json:"modified" yaml:"modified"`
	Added    []Added    `json:"added" yaml:"added"`
	Removed  []Removed  `json:"removed" yaml:"removed"`

	// Ignored counts the distinct keys excluded by the ignore rules.
	Ignored int `json:"ignored" yaml:"ignored"`
}

// IsEmpty returns true if no key changed.
func (r Report) IsEmpty() bool {
	return len(r.Modified) == 0 && len(r.Added) == 0 && len(r.Removed) == 0
}

// ChangedKeys returns the keys of modified and added entries, sorted.
func (r Report) ChangedKeys() []string {
	keys := make([]string, 0, len(r.Modified)+len(r.Added))
	for _, m := range r.Modified {
		keys = append(keys, m.Key)
	}
	for _, a := range r.Added {
		keys = append(keys, a.Key)
	}
	sort.Strings(keys)
	return keys
}

// IgnoreRules configures which keys a diff leaves out.
type IgnoreRules struct {
	// Patterns are globs over the dotted path. "*" stays within one path segment,
	// "**" crosses segments.
	Patterns []string `json:"patterns,omitempty" yaml:"patterns,omitempty" koanf:"ignore_patterns"`

	// Namespaces are ignored along with every namespace nested below them.
	Namespaces []string `json:"namespaces,omitempty" yaml:"namespaces,omitempty" koanf:"ignored_namespaces"`
}

// Matcher decides whether a key is ignored.
type Matcher struct {
	globs      []glob.Glob
	namespaces []string
}

// NewMatcher compiles rules.
func NewMatcher(rules IgnoreRules) (*Matcher, error) {
	m := &Matcher{
		globs:      make([]glob.Glob, 0, len(rules.Patterns)),
		namespaces: make([]string, 0, len(rules.Namespaces)),
	}
	for _, p := range rules.Patterns {
		g, err := glob.Compile(p, '.')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", p, err)
		}
		m.globs = append(m.globs, g)
	}
	for _, ns := range rules.Namespaces {
		ns = strings.TrimSuffix(strings.TrimSpace(ns), ".")
		if ns != "" {
			m.namespaces = append(m.namespaces, ns)
		}
	}
	return m, nil
}

// Ignored reports whether key matches a pattern or lies in an ignored namespace.
func (m *Matcher) Ignored(key string) bool {
	if m == nil {
		return false
	}
	ns := Namespace(key)
	for _, ignored := range m.namespaces {
		if ns == ignored || strings.HasPrefix(ns, ignored+".") {
			return true
		}
	}
	for _, g := range m.globs {
		if g.Match(key) {
			return true
		}
	}
	return false
}

// Namespace returns the part of key before its last dot, or "" if there is none.
func Namespace(key string) string {
	i := strings.LastIndex(key, ".")
	if i < 0 {
		return ""
	}
	return key[:i]
}

// Split separates key into namespace and the final segment.
func Split(key string) (namespace, name string) {
	i := strings.LastIndex(key, ".")
	if i < 0 {
		return "", key
	}
	return key[:i], key[i+1:]
}

// Diff compares live values against baseline. A nil matcher ignores nothing.
func Diff(baseline, live map[string]string, ignore *Matcher) Report {
	report := Report{
		Modified: make([]Modified, 0),
		Added:    make([]Added, 0),
		Removed:  make([]Removed, 0),
	}

	for key, current := range live {
		if ignore.Ignored(key) {
			report.Ignored++
			continue
		}
		old, ok := baseline[key]
		switch {
		case !ok:
			report.Added = append(report.Added, Added{Key: key, Current: current})
		case old != current:
			report.Modified = append(report.Modified, Modified{Key: key, Baseline: old, Current: current})
		}
	}
	for key, old := range baseline {
		if _, ok := live[key]; ok {
			continue
		}
		if ignore.Ignored(key) {
			report.Ignored++
			continue
		}
		report.Removed = append(report.Removed, Removed{Key: key, Baseline: old})
	}

	sort.Slice(report.Modified, func(i, j int) bool { return report.Modified[i].Key < report.Modified[j].Key })
	sort.Slice(report.Added, func(i, j int) bool { return report.Added[i].Key < report.Added[j].Key })
	sort.Slice(report.Removed, func(i, j int) bool { return report.Removed[i].Key < report.Removed[j].Key })
	return report
}
