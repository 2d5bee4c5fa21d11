package engine

// OperationMapper turns drift entries of one subsystem into operations.
// A mapper may return no operation for an entry it cannot act on.
type OperationMapper[R Resource] interface {
	// Install returns the operations that bring a declared resource onto the system.
	Install(r R) []Operation

	// Update returns the operations that reconcile a resource whose state differs.
	Update(p Pair[R]) []Operation

	// Remove returns the operations that take an untracked resource off the system.
	Remove(r R) []Operation
}

// ApplyOptions tunes how an apply plan is built from a drift report.
type ApplyOptions struct {
	// Prune also removes untracked resources. Off by default: untracked items
	// are reported, not acted on.
	Prune bool

	// Preamble operations run before everything else (repositories, remotes, taps).
	Preamble []Operation
}

// BuildApplyOperations lists the operations that reconcile report.
// Order is preamble, installs (manifest order), updates (manifest order), then
// removals (scan order) when pruning.
func BuildApplyOperations[R Resource](report DriftReport[R], mapper OperationMapper[R], opts ApplyOptions) []Operation {
	ops := make([]Operation, 0, len(opts.Preamble)+len(report.ToInstall)+len(report.ToUpdate))
	ops = append(ops, opts.Preamble...)
	for _, r := range report.ToInstall {
		ops = append(ops, mapper.Install(r)...)
	}
	for _, p := range report.ToUpdate {
		ops = append(ops, mapper.Update(p)...)
	}
	if opts.Prune {
		for _, r := range report.Untracked {
			ops = append(ops, mapper.Remove(r)...)
		}
	}
	return ops
}

// BuildCaptureOperations lists the operations that record captured resources in the
// user manifest: one track operation per resource followed by a single write of the
// manifest file. It returns nil when there is nothing to capture.
func BuildCaptureOperations[R Resource](subsystem string, captured []R, manifestFile string) []Operation {
	if len(captured) == 0 {
		return nil
	}
	ops := make([]Operation, 0, len(captured)+1)
	for _, r := range captured {
		ops = append(ops, Operation{
			Subsystem: subsystem,
			Verb:      VerbTrack,
			Target:    r.ResourceID(),
		})
	}
	return append(ops, Operation{
		Subsystem: subsystem,
		Verb:      VerbWriteManifest,
		Target:    manifestFile,
	})
}
