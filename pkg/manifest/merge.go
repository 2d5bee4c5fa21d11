package manifest

import "github.com/openfroyo/hostsync/pkg/engine"

// MergeFunc combines the system and user entries of one identity.
type MergeFunc[R engine.Resource] func(system, user R) R

// MergeResources merges two layers by identity. Entries keep the order in which
// their identity first appears (system layer first). For identities present in
// both layers, merge decides the result; a nil merge lets the user entry win.
// Duplicates inside a single layer collapse to their last occurrence.
func MergeResources[R engine.Resource](system, user []R, merge MergeFunc[R]) []R {
	if merge == nil {
		merge = func(_, u R) R { return u }
	}

	order := make([]string, 0, len(system)+len(user))
	seen := make(map[string]struct{}, len(system)+len(user))
	track := func(id string) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			order = append(order, id)
		}
	}

	systemByID := make(map[string]R, len(system))
	for _, r := range system {
		track(r.ResourceID())
		systemByID[r.ResourceID()] = r
	}
	userByID := make(map[string]R, len(user))
	for _, r := range user {
		track(r.ResourceID())
		userByID[r.ResourceID()] = r
	}

	merged := make([]R, 0, len(order))
	for _, id := range order {
		s, inSystem := systemByID[id]
		u, inUser := userByID[id]
		switch {
		case inSystem && inUser:
			merged = append(merged, merge(s, u))
		case inUser:
			merged = append(merged, u)
		default:
			merged = append(merged, s)
		}
	}
	return merged
}

// UnionBy concatenates two lists and drops later entries whose key was already seen.
func UnionBy[T any](a, b []T, key func(T) string) []T {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]T, 0, len(a)+len(b))
	for _, list := range [][]T{a, b} {
		for _, v := range list {
			k := key(v)
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// UnionStrings unions two string lists keeping first-seen order.
func UnionStrings(a, b []string) []string {
	return UnionBy(a, b, func(s string) string { return s })
}
