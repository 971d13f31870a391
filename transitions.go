package escrow

import (
	"fmt"
)

// TransitionGraph maps each status to the ordered set of statuses it may
// move to. A valid graph is total: every status has an entry.
type TransitionGraph map[EscrowStatus][]EscrowStatus

var defaultGraph = MustTransitionGraph(map[EscrowStatus][]EscrowStatus{
	StatusCreated: {
		StatusWaitingPayment,
	},
	StatusWaitingPayment: {
		StatusWaitingAdmin,
		StatusOnHold,
		StatusRefunded,
		StatusClosed,
	},
	StatusWaitingAdmin: {
		StatusPaymentConfirmed,
		StatusRefunded,
		StatusOnHold,
	},
	StatusPaymentConfirmed: {
		StatusInProgress,
		StatusOnHold,
		StatusRefunded,
	},
	StatusInProgress: {
		StatusCompleted,
		StatusOnHold,
		StatusRefunded,
	},
	StatusCompleted: {
		StatusClosed,
		StatusOnHold,
	},
	// on_hold resumes into review or work, or terminates.
	StatusOnHold: {
		StatusWaitingAdmin,
		StatusRefunded,
		StatusInProgress,
		StatusClosed,
	},
	StatusRefunded: {},
	StatusClosed:   {},
})

// NewTransitionGraph copies edges into a graph and checks its invariants:
// every known status has an entry, terminal statuses have no outgoing edges,
// every other status has at least one, and all targets are known.
func NewTransitionGraph(edges map[EscrowStatus][]EscrowStatus) (TransitionGraph, error) {
	graph := make(TransitionGraph, len(allStatuses))

	for from := range edges {
		if !from.Valid() {
			return nil, fmt.Errorf("transition graph: unknown source status %q", from)
		}
	}

	for _, from := range allStatuses {
		targets, ok := edges[from]
		if !ok {
			return nil, fmt.Errorf("transition graph: missing entry for %q", from)
		}

		if from.IsTerminal() && len(targets) > 0 {
			return nil, fmt.Errorf("transition graph: terminal status %q has outgoing edges", from)
		}

		if !from.IsTerminal() && len(targets) == 0 {
			return nil, fmt.Errorf("transition graph: status %q has no outgoing edges", from)
		}

		seen := make(map[EscrowStatus]struct{}, len(targets))
		copied := make([]EscrowStatus, 0, len(targets))
		for _, to := range targets {
			if !to.Valid() {
				return nil, fmt.Errorf("transition graph: %q targets unknown status %q", from, to)
			}
			if _, dup := seen[to]; dup {
				return nil, fmt.Errorf("transition graph: duplicate edge %q -> %q", from, to)
			}
			seen[to] = struct{}{}
			copied = append(copied, to)
		}
		graph[from] = copied
	}

	return graph, nil
}

// MustTransitionGraph is NewTransitionGraph that panics on invalid input.
func MustTransitionGraph(edges map[EscrowStatus][]EscrowStatus) TransitionGraph {
	graph, err := NewTransitionGraph(edges)
	if err != nil {
		panic(err)
	}
	return graph
}

// DefaultTransitions returns a copy of the escrow transition graph.
func DefaultTransitions() TransitionGraph {
	out := make(TransitionGraph, len(defaultGraph))
	for from, targets := range defaultGraph {
		out[from] = append([]EscrowStatus{}, targets...)
	}
	return out
}

// CanTransition reports whether from -> to is an edge of the graph.
// Unknown source statuses yield false.
func (g TransitionGraph) CanTransition(from, to EscrowStatus) bool {
	targets, ok := g[from]
	if !ok {
		return false
	}
	for _, t := range targets {
		if t == to {
			return true
		}
	}
	return false
}

// Next returns a copy of the statuses reachable in one step from from.
func (g TransitionGraph) Next(from EscrowStatus) []EscrowStatus {
	return append([]EscrowStatus{}, g[from]...)
}

// CanTransition checks from -> to against the default escrow graph.
func CanTransition(from, to EscrowStatus) bool {
	return defaultGraph.CanTransition(from, to)
}

// NextStatuses lists the legal targets of from in the default graph.
func NextStatuses(from EscrowStatus) []EscrowStatus {
	return defaultGraph.Next(from)
}

// CanForceComplete is the admin override rule: any known status other than
// completed or a terminal one may be moved straight to completed. The graph
// is not consulted.
func CanForceComplete(from EscrowStatus) bool {
	if !from.Valid() {
		return false
	}
	switch from {
	case StatusCompleted, StatusRefunded, StatusClosed:
		return false
	default:
		return true
	}
}
