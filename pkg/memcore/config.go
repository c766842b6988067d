// Package memcore is the facade over the vector memory core (C10): a
// single constructor that wires the index, compressor, metadata store,
// hybrid search engine, witness chain, and bandit into one Store, probing
// for the best available backend implementation.
package memcore

import (
	"github.com/agentmem/agentmem/internal/vectorindex"
)

// Backend names a vector-index implementation open_store may select.
type Backend string

const (
	BackendAuto     Backend = "auto"
	BackendRuvector Backend = "ruvector"
	BackendRVF      Backend = "rvf"
	BackendHNSWLib  Backend = "hnswlib"
)

// Metric mirrors vectorindex.Metric at the facade boundary so callers of
// this package never need to import internal/vectorindex directly.
type Metric = vectorindex.Metric

const (
	MetricCosine = vectorindex.MetricCosine
	MetricL2     = vectorindex.MetricL2
	MetricIP     = vectorindex.MetricIP
)

// OpenStoreConfig is the single request shape accepted by OpenStore.
type OpenStoreConfig struct {
	// Path is the directory a persistent store reads from and writes to.
	// Empty means in-memory only: nothing is loaded, and Save returns a
	// validation error.
	Path string

	Dimension int
	Metric    Metric

	// Backend selects the implementation. BackendAuto (the zero value)
	// probes ruvector, then rvf, then hnswlib, and opens the first one
	// available.
	Backend Backend

	// Adaptive toggles size-driven M and efSearch selection in the
	// underlying HNSW graph; efConstruction is not adapted.
	Adaptive bool

	// MMap requests memory-mapped loading of the persisted graph where the
	// backend supports it. The hnswlib-backed implementation loads fully
	// into process memory regardless; the flag is accepted but does not
	// change load behavior for that backend.
	MMap bool
}

// Capabilities reports the feature surface of a selected backend.
type Capabilities struct {
	GNN         bool
	Graph       bool
	Compression bool
	Lineage     bool
	Branching   bool
	Native      bool
	Version     string
}

// DetectionResult is returned alongside a Store reporting which backend
// open_store actually selected and what it can do.
type DetectionResult struct {
	Selected     Backend
	Capabilities Capabilities
	Probed       []Backend
}
