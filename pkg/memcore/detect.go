package memcore

import (
	coreerrors "github.com/agentmem/agentmem/internal/errors"
)

// probeOrder is the fixed sequence BackendAuto walks.
var probeOrder = []Backend{BackendRuvector, BackendRVF, BackendHNSWLib}

// availableBackends lists the implementations this build actually
// registers. ruvector and rvf are third-party ANN backends this tree never
// links against (see DESIGN.md); only the in-process HNSW implementation
// is available, so probing always falls through to it.
var availableBackends = map[Backend]Capabilities{
	BackendHNSWLib: {
		GNN:         false,
		Graph:       true,
		Compression: true,
		Lineage:     true,
		Branching:   false,
		Native:      true,
		Version:     "coder/hnsw v0.6.1",
	},
}

// installHints gives an operator a concrete next step for a backend this
// build cannot open.
var installHints = map[Backend]string{
	BackendRuvector: "ruvector backend is not compiled into this build; no action will make it available here",
	BackendRVF:      "rvf backend is not compiled into this build; no action will make it available here",
}

// detectBackend resolves cfg.Backend to a concrete, available backend and
// its capabilities, probing in order for BackendAuto. Requesting a specific
// unavailable backend fails with an installation-hint error.
func detectBackend(requested Backend) (DetectionResult, error) {
	if requested == "" {
		requested = BackendAuto
	}

	if requested != BackendAuto {
		caps, ok := availableBackends[requested]
		if !ok {
			hint, known := installHints[requested]
			if !known {
				hint = "unknown backend"
			}
			return DetectionResult{}, coreerrors.BackendError(
				"requested backend is not available: "+string(requested), nil).
				WithSuggestion(hint)
		}
		return DetectionResult{Selected: requested, Capabilities: caps, Probed: []Backend{requested}}, nil
	}

	probed := make([]Backend, 0, len(probeOrder))
	for _, b := range probeOrder {
		probed = append(probed, b)
		if caps, ok := availableBackends[b]; ok {
			return DetectionResult{Selected: b, Capabilities: caps, Probed: probed}, nil
		}
	}
	return DetectionResult{}, coreerrors.BackendError("no backend implementation is available", nil).
		WithSuggestion("compile with at least one of: ruvector, rvf, hnswlib")
}
