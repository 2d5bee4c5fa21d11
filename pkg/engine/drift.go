package engine

// Resource is a managed item of one subsystem.
//
// Two resources with the same ResourceID are the same logical item regardless of
// their other fields. The identity must be unique within a subsystem; subsystems
// with several resource kinds prefix the identity with the kind.
type Resource interface {
	ResourceID() string
}

// Pair holds the live and declared versions of a resource whose state differs.
type Pair[R Resource] struct {
	// Current is the resource as scanned from the system.
	Current R `json:"current"`

	// Desired is the resource as declared in the merged manifest.
	Desired R `json:"desired"`
}

// StateEqual reports whether two resources that share an identity also share state.
type StateEqual[R Resource] func(current, desired R) bool

// DriftReport is the categorized difference between live state and a manifest.
//
// Every manifest identity lands in exactly one of ToInstall, ToUpdate (as Desired)
// or SyncedCount; every system identity lands in exactly one of Untracked,
// ToUpdate (as Current) or SyncedCount.
type DriftReport[R Resource] struct {
	// ToInstall lists manifest resources absent from the system, in manifest order.
	ToInstall []R `json:"to_install"`

	// Untracked lists system resources absent from the manifest, in scan order.
	Untracked []R `json:"untracked"`

	// ToUpdate lists resources present in both with differing state, in manifest order.
	ToUpdate []Pair[R] `json:"to_update"`

	// SyncedCount is the number of resources present in both with equal state.
	SyncedCount int `json:"synced_count"`
}

// DriftCounts is the status projection of a DriftReport.
type DriftCounts struct {
	// Pending is len(ToInstall) + len(ToUpdate).
	Pending int `json:"pending"`

	// Untracked is len(Untracked).
	Untracked int `json:"untracked"`

	// Synced is SyncedCount.
	Synced int `json:"synced"`
}

// Counts projects the report onto the status counters.
func (r DriftReport[R]) Counts() DriftCounts {
	return DriftCounts{
		Pending:   len(r.ToInstall) + len(r.ToUpdate),
		Untracked: len(r.Untracked),
		Synced:    r.SyncedCount,
	}
}

// InSync returns true if nothing is pending. Untracked items do not count as drift
// that apply would act on.
func (r DriftReport[R]) InSync() bool {
	return len(r.ToInstall) == 0 && len(r.ToUpdate) == 0
}

// Diff computes presence drift between system and manifest items.
// Resources present on both sides count as synced; ToUpdate stays empty.
func Diff[R Resource](system, manifest []R) DriftReport[R] {
	return DiffWith(system, manifest, nil)
}

// DiffWith computes drift and, for identities present on both sides, compares
// state with equal. A nil equal behaves like Diff.
//
// Duplicate identities within one input are collapsed to their first occurrence,
// so the partition invariant holds even for sloppy adapter output.
func DiffWith[R Resource](system, manifest []R, equal StateEqual[R]) DriftReport[R] {
	system = dedupe(system)
	manifest = dedupe(manifest)

	live := make(map[string]R, len(system))
	for _, item := range system {
		live[item.ResourceID()] = item
	}
	declared := make(map[string]struct{}, len(manifest))

	report := DriftReport[R]{
		ToInstall: make([]R, 0),
		Untracked: make([]R, 0),
		ToUpdate:  make([]Pair[R], 0),
	}

	for _, want := range manifest {
		id := want.ResourceID()
		declared[id] = struct{}{}

		have, ok := live[id]
		switch {
		case !ok:
			report.ToInstall = append(report.ToInstall, want)
		case equal != nil && !equal(have, want):
			report.ToUpdate = append(report.ToUpdate, Pair[R]{Current: have, Desired: want})
		default:
			report.SyncedCount++
		}
	}

	for _, have := range system {
		if _, ok := declared[have.ResourceID()]; !ok {
			report.Untracked = append(report.Untracked, have)
		}
	}

	return report
}

// dedupe keeps the first occurrence of every identity, preserving order.
func dedupe[R Resource](items []R) []R {
	seen := make(map[string]struct{}, len(items))
	out := make([]R, 0, len(items))
	for _, item := range items {
		id := item.ResourceID()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, item)
	}
	return out
}

// IDs returns the identities of items in order.
func IDs[R Resource](items []R) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ResourceID())
	}
	return ids
}
