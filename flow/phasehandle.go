package flow

// PhaseHandle is what the flow (and, for construction purposes, the
// preceding phase) sees for one phase: either a single PhaseWorker or the
// full member list of a ConvergenceGroup.
type PhaseHandle struct {
	workers []*PhaseWorker
	leader  *PhaseWorker // nil unless this phase converges
}

// Workers returns every worker instance backing this phase, in
// construction order. For a plain phase this has length 1.
func (h *PhaseHandle) Workers() []*PhaseWorker {
	return h.workers
}

// IsConverging reports whether this phase is a {converge, N} group.
func (h *PhaseHandle) IsConverging() bool {
	return h.leader != nil
}

// Leader returns the group's leader, or nil for a non-converging phase.
func (h *PhaseHandle) Leader() *PhaseWorker {
	return h.leader
}
